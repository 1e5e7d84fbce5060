package rcf

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	common "github.com/beam-cloud/rcf/pkg/common"
)

// testFile describes one entry of a synthetic archive. Entries are laid out
// in the data section, and listed in the filename table, in slice order.
type testFile struct {
	name    string
	rawName []byte // overrides name when set
	data    []byte
	// declaredOffset is written to the index record; zero means the real offset
	declaredOffset uint32
}

type testArchive struct {
	magic []byte
	files []testFile
	// indexOrder permutes the on-disk index records; nil keeps file order
	indexOrder []int
}

func alignUp(pos int) int {
	return pos + int(common.Padding(int64(pos), common.SectorSize))
}

// build returns the archive bytes and the real payload offsets.
func (ta testArchive) build(t *testing.T) ([]byte, []uint32) {
	t.Helper()

	count := len(ta.files)
	indexEnd := common.RcfHeaderLength + count*common.RcfIndexRecordLength
	filenameStart := alignUp(indexEnd) + common.RcfFilenameTableSkip

	var names bytes.Buffer
	for _, f := range ta.files {
		name := f.rawName
		if name == nil {
			name = []byte(f.name)
		}
		names.Write(make([]byte, 12))
		binary.Write(&names, binary.LittleEndian, uint32(len(name)+1))
		names.Write(name)
		names.Write(make([]byte, common.RcfNamePadding))
	}

	dataStart := alignUp(filenameStart + names.Len())
	offsets := make([]uint32, count)
	pos := dataStart
	for i, f := range ta.files {
		offsets[i] = uint32(pos)
		pos = alignUp(pos + len(f.data))
	}
	total := pos
	if total < dataStart {
		total = dataStart
	}

	out := make([]byte, total)

	magic := ta.magic
	if magic == nil {
		magic = common.RcfFileStartBytes
	}
	copy(out[0:32], magic)
	binary.LittleEndian.PutUint32(out[36:40], common.RcfHeaderLength)
	binary.LittleEndian.PutUint32(out[40:44], uint32(count*common.RcfIndexRecordLength))
	binary.LittleEndian.PutUint32(out[44:48], uint32(filenameStart))
	binary.LittleEndian.PutUint32(out[48:52], uint32(names.Len()))
	binary.LittleEndian.PutUint32(out[56:60], uint32(count))

	order := ta.indexOrder
	if order == nil {
		order = make([]int, count)
		for i := range order {
			order[i] = i
		}
	}
	for slot, i := range order {
		record := out[common.RcfHeaderLength+slot*common.RcfIndexRecordLength:]
		declared := ta.files[i].declaredOffset
		if declared == 0 {
			declared = offsets[i]
		}
		binary.LittleEndian.PutUint32(record[4:8], declared)
		binary.LittleEndian.PutUint32(record[8:12], uint32(len(ta.files[i].data)))
	}

	copy(out[filenameStart:], names.Bytes())
	for i, f := range ta.files {
		copy(out[offsets[i]:], f.data)
	}

	return out, offsets
}

func writeArchive(t *testing.T, data []byte) string {
	t.Helper()

	archivePath := filepath.Join(t.TempDir(), "test.rcf")
	require.NoError(t, os.WriteFile(archivePath, data, 0644))
	return archivePath
}

// listFiles returns every regular file under root, relative to root.
func listFiles(t *testing.T, root string) []string {
	t.Helper()

	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			files = append(files, rel)
		}
		return nil
	})
	require.NoError(t, err)
	return files
}
