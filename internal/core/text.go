package core

// text.go prepares delimited text for the CSV decoder.
//
// Spreadsheet tools save CSV in a handful of encodings. The reader returned
// by newTextReader normalizes all of them to UTF-8:
//
//   - A UTF-8 byte order mark is dropped.
//   - UTF-16 input with a BOM ("Unicode text" exports) is transcoded.
//   - Input that is not valid UTF-8 is read as Windows-1252, the default
//     ANSI code page of desktop Excel.

import (
	"bytes"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	utf16LEBOM = []byte{0xFF, 0xFE}
	utf16BEBOM = []byte{0xFE, 0xFF}
)

func hasUTF16BOM(data []byte) bool {
	return bytes.HasPrefix(data, utf16LEBOM) || bytes.HasPrefix(data, utf16BEBOM)
}

func newTextReader(data []byte) io.Reader {
	fallback := unicode.UTF8.NewDecoder()
	if !hasUTF16BOM(data) && !utf8.Valid(data) {
		fallback = charmap.Windows1252.NewDecoder()
	}
	return transform.NewReader(bytes.NewReader(data), unicode.BOMOverride(fallback))
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toFloat accepts the numeric types the .xls reader hands back.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		return parseFloat(n)
	}
	return 0, false
}
