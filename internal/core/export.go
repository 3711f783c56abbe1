package core

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

const (
	ExportFileName    = "export.csv"
	ExportContentType = "text/csv"
)

// Quoting selects how exported fields are escaped.
type Quoting string

const (
	// QuotingRFC4180 quotes fields holding a comma, quote, CR or LF and
	// doubles inner quotes.
	QuotingRFC4180 Quoting = "rfc4180"

	// QuotingLegacy joins cells with commas and rows with newlines, with no
	// escaping at all. Fields containing separators will not survive a
	// re-import.
	QuotingLegacy Quoting = "legacy"
)

// ParseQuoting accepts "rfc4180" or "legacy". The empty string means rfc4180.
func ParseQuoting(s string) (Quoting, error) {
	switch Quoting(s) {
	case "", QuotingRFC4180:
		return QuotingRFC4180, nil
	case QuotingLegacy:
		return QuotingLegacy, nil
	}
	return "", fmt.Errorf("unknown export quoting %q", s)
}

// Exporter serializes a table as CSV. Rows are separated by "\n" with no
// trailing newline and no byte order mark. An empty table produces no output.
type Exporter struct {
	Quoting Quoting
}

// WriteCSV writes t to w.
func (e Exporter) WriteCSV(w io.Writer, t Table) error {
	if t.IsEmpty() {
		return nil
	}
	var body []byte
	if e.Quoting == QuotingLegacy {
		body = joinLegacy(t)
	} else {
		b, err := encodeRFC4180(t)
		if err != nil {
			return err
		}
		body = b
	}
	_, err := w.Write(body)
	return err
}

// Export returns the CSV text for t.
func (e Exporter) Export(t Table) (string, error) {
	var buf bytes.Buffer
	if err := e.WriteCSV(&buf, t); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func encodeRFC4180(t Table) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	for _, rec := range t.Records() {
		if err := cw.Write(rec); err != nil {
			return nil, fmt.Errorf("write csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func joinLegacy(t Table) []byte {
	records := t.Records()
	lines := make([]string, len(records))
	for i, rec := range records {
		lines[i] = strings.Join(rec, ",")
	}
	return []byte(strings.Join(lines, "\n"))
}
