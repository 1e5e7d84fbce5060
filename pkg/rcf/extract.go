package rcf

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	common "github.com/beam-cloud/rcf/pkg/common"
	"github.com/beam-cloud/rcf/pkg/metrics"
)

const DefaultBufferSize = 4 * 1024 * 1024

type ExtractorOptions struct {
	OutputPath string
	BufferSize int
	// Strict turns a declared offset that disagrees with the archive position into a fatal error
	Strict    bool
	Sanitizer PathSanitizer
	Metrics   *metrics.ExtractionMetrics
}

// Extractor streams payloads from the data section into files under an
// output root. It owns a scratch buffer that is reused for every entry.
type Extractor struct {
	root      string
	buffer    []byte
	strict    bool
	sanitizer PathSanitizer
	metrics   *metrics.ExtractionMetrics
}

func NewExtractor(opts ExtractorOptions) *Extractor {
	bufferSize := opts.BufferSize
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	root := opts.OutputPath
	if root == "" {
		root = "."
	}

	sanitizer := opts.Sanitizer
	if sanitizer == nil {
		sanitizer = ComponentSanitizer{}
	}

	m := opts.Metrics
	if m == nil {
		m = metrics.NewExtractionMetrics()
	}

	return &Extractor{
		root:      root,
		buffer:    make([]byte, bufferSize),
		strict:    opts.Strict,
		sanitizer: sanitizer,
		metrics:   m,
	}
}

// Extract pairs the i-th offset-sorted index entry with the i-th filename in
// table order and writes each payload, starting at the current position of r.
// The pairing is only correct when table order matches ascending payload
// offset; each entry's declared offset is checked against the tracked
// position to surface archives where it does not.
func (e *Extractor) Extract(r io.ReadSeeker, index []common.IndexEntry, filenames []string) ([]Entry, error) {
	if len(index) != len(filenames) {
		return nil, common.NewArchiveError(common.StageExtraction, common.KindFormat,
			fmt.Errorf("%w: %d index entries, %d filenames", common.ErrTableMismatch, len(index), len(filenames)))
	}

	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, common.NewArchiveError(common.StageExtraction, common.KindIO, err)
	}

	entries := make([]Entry, 0, len(index))
	for i, record := range index {
		name := filenames[i]

		if int64(record.Offset) != pos {
			e.metrics.RecordOffsetMismatch()
			if e.strict {
				return entries, &common.ArchiveError{
					Stage:  common.StageExtraction,
					Kind:   common.KindFormat,
					Path:   name,
					Offset: pos,
					Err:    fmt.Errorf("%w: declared %d", common.ErrOffsetMismatch, record.Offset),
				}
			}
			log.Warn().
				Str("name", name).
				Uint32("declared_offset", record.Offset).
				Int64("position", pos).
				Msg("declared offset does not match archive position")
		}

		rel, err := e.sanitizer.Sanitize(name)
		if err != nil {
			return entries, &common.ArchiveError{
				Stage:  common.StageExtraction,
				Kind:   common.KindFormat,
				Path:   name,
				Offset: pos,
				Err:    err,
			}
		}

		log.Info().Msgf("extracting %s (%d bytes)", name, record.Length)

		length := int64(record.Length)
		if err := e.extractFile(r, filepath.Join(e.root, rel), length); err != nil {
			kind := common.KindIO
			if errors.Is(err, common.ErrTruncatedPayload) {
				kind = common.KindData
			}
			return entries, &common.ArchiveError{
				Stage:  common.StageExtraction,
				Kind:   kind,
				Path:   name,
				Offset: pos,
				Err:    err,
			}
		}
		pos += length
		e.metrics.RecordFile(rel, length)

		skipped, err := common.SkipToSector(r, common.SectorSize)
		if err != nil {
			return entries, &common.ArchiveError{
				Stage:  common.StageExtraction,
				Kind:   common.KindIO,
				Path:   name,
				Offset: pos,
				Err:    err,
			}
		}
		pos += skipped
		e.metrics.RecordPadding(skipped)

		entries = append(entries, Entry{
			Name:   name,
			Path:   rel,
			Offset: record.Offset,
			Length: record.Length,
		})
	}

	return entries, nil
}

// extractFile writes the payload to a temporary file next to target and only
// renames it into place once length bytes have been written.
func (e *Extractor) extractFile(r io.Reader, target string, length int64) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.%s.part", filepath.Base(target), uuid.New().String()[:6]))
	outFile, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", tmpPath, err)
	}

	if err := e.copyPayload(outFile, r, length); err != nil {
		outFile.Close()
		os.Remove(tmpPath)
		return err
	}

	if err := outFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move %s into place: %w", target, err)
	}

	return nil
}

func (e *Extractor) copyPayload(w io.Writer, r io.Reader, length int64) error {
	remaining := length
	for remaining > 0 {
		chunk := e.buffer
		if int64(len(chunk)) > remaining {
			chunk = chunk[:remaining]
		}

		n, err := r.Read(chunk)
		if n > 0 {
			if _, werr := w.Write(chunk[:n]); werr != nil {
				return fmt.Errorf("failed to write payload: %w", werr)
			}
			remaining -= int64(n)
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read payload: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %d of %d bytes missing", common.ErrTruncatedPayload, remaining, length)
		}
	}
	return nil
}
