package common

import (
	"errors"
	"fmt"
)

var (
	ErrMissingInput      = errors.New("missing input archive")
	ErrTruncatedField    = errors.New("unexpected end of archive")
	ErrInvalidFilename   = errors.New("malformed filename in filename table")
	ErrInvalidNameLength = errors.New("invalid filename length")
	ErrEmptyPath         = errors.New("empty path after sanitization")
	ErrTruncatedPayload  = errors.New("payload shorter than declared length")
	ErrOffsetMismatch    = errors.New("declared offset does not match archive position")
	ErrTableMismatch     = errors.New("index and filename tables differ in length")
	ErrOutputLocked      = errors.New("output directory is locked by another extraction")
)

type Stage string

const (
	StageOpen       Stage = "open"
	StageHeader     Stage = "header"
	StageIndex      Stage = "index"
	StageFilenames  Stage = "filenames"
	StageExtraction Stage = "extraction"
	StageVerify     Stage = "verify"
)

type ErrorKind string

const (
	KindUsage  ErrorKind = "usage"
	KindIO     ErrorKind = "io"
	KindFormat ErrorKind = "format"
	KindData   ErrorKind = "data"
)

// ArchiveError describes a fatal failure while reading or extracting an archive.
// Path and Offset are set when the failure can be attributed to an entry or position.
type ArchiveError struct {
	Stage  Stage
	Kind   ErrorKind
	Path   string
	Offset int64
	Err    error
}

func (e *ArchiveError) Error() string {
	msg := fmt.Sprintf("%s %s error", e.Stage, e.Kind)
	if e.Path != "" {
		msg += fmt.Sprintf(" at %q", e.Path)
	}
	if e.Offset >= 0 {
		msg += fmt.Sprintf(" (offset %d)", e.Offset)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// NewArchiveError builds an ArchiveError with no known offset.
func NewArchiveError(stage Stage, kind ErrorKind, err error) *ArchiveError {
	return &ArchiveError{Stage: stage, Kind: kind, Offset: -1, Err: err}
}

// KindOf returns the error kind carried by err, or "" if err is not an ArchiveError.
func KindOf(err error) ErrorKind {
	var ae *ArchiveError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}
