package rcf

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	common "github.com/beam-cloud/rcf/pkg/common"
	"github.com/beam-cloud/rcf/pkg/metrics"
)

// SetLogLevel configures the logging verbosity for the rcf library.
// Valid levels: "debug", "info", "warn", "error", "disabled"
// Use "debug" to see every decoded index and filename record
func SetLogLevel(level string) error {
	switch strings.ToLower(level) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "disabled", "none", "off":
		zerolog.SetGlobalLevel(zerolog.Disabled)
	default:
		return fmt.Errorf("invalid log level %q: must be one of: debug, info, warn, error, disabled", level)
	}
	return nil
}

// Entry is an index record paired with its filename.
type Entry struct {
	Name   string // as stored in the filename table
	Path   string // sanitized, relative to the output root
	Offset uint32
	Length uint32
}

type ExtractOptions struct {
	InputFile  string
	OutputPath string
	BufferSize int
	Strict     bool
	Verify     bool
}

type ListOptions struct {
	InputFile string
}

type Report struct {
	Header  *common.RcfArchiveHeader
	Entries []Entry
	Metrics *metrics.ExtractionMetrics
}

// ExtractArchive decodes the archive tables and extracts every entry under
// OutputPath. The first error aborts the run.
func ExtractArchive(options ExtractOptions) (*Report, error) {
	if options.InputFile == "" {
		return nil, common.NewArchiveError(common.StageOpen, common.KindUsage, common.ErrMissingInput)
	}

	outputPath := options.OutputPath
	if outputPath == "" {
		outputPath = "."
	}

	log.Info().Msgf("extracting archive %s to %s", options.InputFile, outputPath)

	if err := os.MkdirAll(outputPath, 0755); err != nil {
		return nil, &common.ArchiveError{Stage: common.StageOpen, Kind: common.KindIO, Path: outputPath, Offset: -1, Err: err}
	}

	lock, err := lockOutput(outputPath)
	if err != nil {
		return nil, &common.ArchiveError{Stage: common.StageOpen, Kind: common.KindIO, Path: outputPath, Offset: -1, Err: err}
	}
	defer lock.Release()

	file, err := os.Open(options.InputFile)
	if err != nil {
		return nil, &common.ArchiveError{Stage: common.StageOpen, Kind: common.KindIO, Path: options.InputFile, Offset: -1, Err: err}
	}
	defer file.Close()

	m := metrics.NewExtractionMetrics()

	ca := NewRcfArchiver()
	tables, err := ca.ReadTables(file)
	if err != nil {
		return nil, err
	}

	extractor := NewExtractor(ExtractorOptions{
		OutputPath: outputPath,
		BufferSize: options.BufferSize,
		Strict:     options.Strict,
		Metrics:    m,
	})

	entries, err := extractor.Extract(file, tables.Index, tables.Filenames)
	if err != nil {
		return nil, err
	}

	if options.Verify {
		if err := VerifyOutput(outputPath, entries); err != nil {
			return nil, err
		}
		log.Info().Msgf("verified %d extracted files", len(entries))
	}

	m.Finish()
	m.LogSummary()

	return &Report{
		Header:  tables.Header,
		Entries: entries,
		Metrics: m,
	}, nil
}

// ListArchive decodes the archive tables and returns the entries in extraction
// order without writing anything.
func ListArchive(options ListOptions) ([]Entry, error) {
	if options.InputFile == "" {
		return nil, common.NewArchiveError(common.StageOpen, common.KindUsage, common.ErrMissingInput)
	}

	file, err := os.Open(options.InputFile)
	if err != nil {
		return nil, &common.ArchiveError{Stage: common.StageOpen, Kind: common.KindIO, Path: options.InputFile, Offset: -1, Err: err}
	}
	defer file.Close()

	tables, err := NewRcfArchiver().ReadTables(file)
	if err != nil {
		return nil, err
	}

	if len(tables.Index) != len(tables.Filenames) {
		return nil, common.NewArchiveError(common.StageFilenames, common.KindFormat, common.ErrTableMismatch)
	}

	sanitizer := ComponentSanitizer{}
	entries := make([]Entry, 0, len(tables.Index))
	for i, record := range tables.Index {
		name := tables.Filenames[i]
		rel, err := sanitizer.Sanitize(name)
		if err != nil {
			return nil, &common.ArchiveError{Stage: common.StageFilenames, Kind: common.KindFormat, Path: name, Offset: -1, Err: err}
		}
		entries = append(entries, Entry{Name: name, Path: rel, Offset: record.Offset, Length: record.Length})
	}

	return entries, nil
}
