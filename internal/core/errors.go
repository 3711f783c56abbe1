package core

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyTable is returned by row operations before any file is loaded.
	ErrEmptyTable = errors.New("no table loaded")

	// ErrRowOutOfRange is matched by every RowRangeError.
	ErrRowOutOfRange = errors.New("row out of range")

	ErrNoFile       = errors.New("no file provided")
	ErrFileTooLarge = errors.New("file too large")
	ErrEmptyFile    = errors.New("empty file")
)

// RowRangeError reports a 1-based row index outside the table's data rows.
type RowRangeError struct {
	Row  int
	Rows int
}

func (e *RowRangeError) Error() string {
	return fmt.Sprintf("row out of range: %d (table has %d data rows)", e.Row, e.Rows)
}

func (e *RowRangeError) Is(target error) bool { return target == ErrRowOutOfRange }

// DecodeError means the uploaded bytes could not be read as a spreadsheet.
type DecodeError struct {
	Format Format
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := "invalid spreadsheet"
	if e.Format != FormatUnknown {
		msg += " (" + string(e.Format) + ")"
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

func decodeErrorf(format Format, err error, reason string, args ...any) *DecodeError {
	return &DecodeError{Format: format, Reason: fmt.Sprintf(reason, args...), Err: err}
}
