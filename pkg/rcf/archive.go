package rcf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/btree"

	common "github.com/beam-cloud/rcf/pkg/common"
)

type RcfArchiver struct {
}

func NewRcfArchiver() *RcfArchiver {
	return &RcfArchiver{}
}

// RcfArchiveTables holds everything decoded ahead of the data section.
// Index is sorted by declared offset; Filenames keep their on-disk table order.
type RcfArchiveTables struct {
	Header    *common.RcfArchiveHeader
	Index     []common.IndexEntry
	Filenames []string
}

// newIndex orders entries by declared offset, then by table position so that
// duplicate offsets never collapse into a single item.
func newIndex() *btree.BTreeG[common.IndexEntry] {
	compare := func(a, b common.IndexEntry) bool {
		if a.Offset != b.Offset {
			return a.Offset < b.Offset
		}
		return a.TablePos < b.TablePos
	}
	return btree.NewBTreeGOptions(compare, btree.Options{NoLocks: true})
}

// ReadTables decodes the header, index table and filename table, leaving r
// positioned at the first sector of the data section.
func (ca *RcfArchiver) ReadTables(r io.ReadSeeker) (*RcfArchiveTables, error) {
	header, err := ca.DecodeHeader(r)
	if err != nil {
		return nil, err
	}

	index, err := ca.DecodeIndex(r, header.FileCount)
	if err != nil {
		return nil, err
	}

	if _, err := common.SkipToSector(r, common.SectorSize); err != nil {
		return nil, common.NewArchiveError(common.StageIndex, common.KindIO, err)
	}
	if _, err := r.Seek(common.RcfFilenameTableSkip, io.SeekCurrent); err != nil {
		return nil, common.NewArchiveError(common.StageFilenames, common.KindIO, err)
	}

	filenames, err := ca.DecodeFilenames(r, header.FileCount)
	if err != nil {
		return nil, err
	}

	if _, err := common.SkipToSector(r, common.SectorSize); err != nil {
		return nil, common.NewArchiveError(common.StageFilenames, common.KindIO, err)
	}

	return &RcfArchiveTables{
		Header:    header,
		Index:     index,
		Filenames: filenames,
	}, nil
}

func (ca *RcfArchiver) DecodeHeader(r io.Reader) (*common.RcfArchiveHeader, error) {
	headerBytes := make([]byte, common.RcfHeaderLength)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, readError(common.StageHeader, 0, err)
	}

	header := &common.RcfArchiveHeader{
		DirectoryOffset:         binary.LittleEndian.Uint32(headerBytes[36:40]),
		DirectoryLength:         binary.LittleEndian.Uint32(headerBytes[40:44]),
		FilenameDirectoryOffset: binary.LittleEndian.Uint32(headerBytes[44:48]),
		FilenameDirectoryLength: binary.LittleEndian.Uint32(headerBytes[48:52]),
		FileCount:               binary.LittleEndian.Uint32(headerBytes[56:60]),
	}
	copy(header.Magic[:], headerBytes[:32])

	if header.HasCementSignature() {
		log.Info().Msg("ATG cement library header detected")
	}
	log.Info().Msgf("number of files: %d", header.FileCount)

	return header, nil
}

// DecodeIndex reads count index records from r and returns them sorted by
// declared offset.
func (ca *RcfArchiver) DecodeIndex(r io.Reader, count uint32) ([]common.IndexEntry, error) {
	index := newIndex()
	record := make([]byte, common.RcfIndexRecordLength)

	for i := 0; i < int(count); i++ {
		pos := int64(common.RcfHeaderLength) + int64(i)*common.RcfIndexRecordLength
		if _, err := io.ReadFull(r, record); err != nil {
			return nil, readError(common.StageIndex, pos, err)
		}

		entry := common.IndexEntry{
			Offset:   binary.LittleEndian.Uint32(record[4:8]),
			Length:   binary.LittleEndian.Uint32(record[8:12]),
			TablePos: i,
		}
		log.Debug().Uint32("offset", entry.Offset).Uint32("length", entry.Length).Msg("index record")
		index.Set(entry)
	}

	entries := make([]common.IndexEntry, 0, index.Len())
	index.Scan(func(entry common.IndexEntry) bool {
		entries = append(entries, entry)
		return true
	})

	return entries, nil
}

// DecodeFilenames reads count filename records from r in table order.
func (ca *RcfArchiver) DecodeFilenames(r io.ReadSeeker, count uint32) ([]string, error) {
	var filenames []string
	prefix := make([]byte, common.RcfNamePrefixLength)

	for i := 0; i < int(count); i++ {
		pos, err := r.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, common.NewArchiveError(common.StageFilenames, common.KindIO, err)
		}

		if _, err := io.ReadFull(r, prefix); err != nil {
			return nil, readError(common.StageFilenames, pos, err)
		}

		nameLength := binary.LittleEndian.Uint32(prefix[12:16])
		if nameLength == 0 || nameLength > common.MaxNameLength {
			return nil, &common.ArchiveError{
				Stage:  common.StageFilenames,
				Kind:   common.KindFormat,
				Offset: pos,
				Err:    fmt.Errorf("%w: %d", common.ErrInvalidNameLength, nameLength),
			}
		}

		// The stored length counts a NUL terminator that is not part of the name
		name := make([]byte, nameLength-1)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, readError(common.StageFilenames, pos, err)
		}

		if !utf8.Valid(name) {
			return nil, &common.ArchiveError{
				Stage:  common.StageFilenames,
				Kind:   common.KindFormat,
				Offset: pos,
				Err:    fmt.Errorf("%w: record %d is not valid UTF-8", common.ErrInvalidFilename, i),
			}
		}

		if _, err := r.Seek(common.RcfNamePadding, io.SeekCurrent); err != nil {
			return nil, common.NewArchiveError(common.StageFilenames, common.KindIO, err)
		}

		log.Debug().Str("name", string(name)).Msg("filename record")
		filenames = append(filenames, string(name))
	}

	return filenames, nil
}

// readError classifies a failed fixed-size read: running out of input is a
// format error, anything else is an I/O error.
func readError(stage common.Stage, offset int64, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &common.ArchiveError{
			Stage:  stage,
			Kind:   common.KindFormat,
			Offset: offset,
			Err:    fmt.Errorf("%w: %v", common.ErrTruncatedField, err),
		}
	}
	return &common.ArchiveError{Stage: stage, Kind: common.KindIO, Offset: offset, Err: err}
}
