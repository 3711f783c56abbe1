package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"file too large", fmt.Errorf("upload: %w", ErrFileTooLarge), "FILE001"},
		{"decode error", &DecodeError{Format: FormatXLSX, Reason: "open workbook", Err: errors.New("zip: not a valid zip file")}, "FILE002"},
		{"empty upload wins over decode", &DecodeError{Err: ErrEmptyFile}, "FILE005"},
		{"no file", ErrNoFile, "FILE004"},
		{"busy", fmt.Errorf("ingest: %w", ErrTooManyUploads), "UPL002"},
		{"cancelled", fmt.Errorf("ingest: %w", context.Canceled), "UPL004"},
		{"timed out", fmt.Errorf("ingest: %w", context.DeadlineExceeded), "UPL005"},
		{"no table", fmt.Errorf("add_used row 1: %w", ErrEmptyTable), "TBL001"},
		{"row out of range", &RowRangeError{Row: 9, Rows: 2}, "TBL002"},
		{"invalid row path", errors.New("invalid row \"abc\""), "TBL002"},
		{"session expired", ErrSessionExpired, "SES001"},
		{"rate limit", errors.New("rate limit exceeded"), "RATE001"},
		{"case insensitive matching", errors.New("FILE TOO LARGE"), "FILE001"},
		{"unknown error returns default", errors.New("some random internal error"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapError(tt.err).Code; got != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestMessageForCode(t *testing.T) {
	for _, ep := range errorPatterns {
		got, ok := MessageForCode(ep.msg.Code)
		if !ok || got.Code != ep.msg.Code {
			t.Errorf("MessageForCode(%q) = %+v, %v", ep.msg.Code, got, ok)
		}
	}
	if got, ok := MessageForCode("ERR000"); !ok || got != defaultMessage {
		t.Errorf("MessageForCode(ERR000) = %+v, %v", got, ok)
	}
	if _, ok := MessageForCode("<script>"); ok {
		t.Error("MessageForCode accepted an unknown code")
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(ErrEmptyTable)
	want := "No spreadsheet is loaded yet (Code: TBL001). Drop an Excel file on the page first"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error is not user facing", nil, false},
		{"known error is user facing", ErrRowOutOfRange, true},
		{"unknown error is not user facing", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}
