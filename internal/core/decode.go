package core

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"github.com/yamitzky/xlrd-go/xlrd"
)

// Format is the container a file was recognised as.
type Format string

const (
	FormatUnknown Format = ""
	FormatXLS     Format = "xls"
	FormatXLSX    Format = "xlsx"
	FormatCSV     Format = "csv"
)

var (
	oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	zipSignature = []byte("PK\x03\x04")
)

// oleHeaderSize is the fixed header of an OLE2 compound document.
const oleHeaderSize = 512

// textSniffLen is how many leading bytes are inspected for NUL bytes when
// deciding whether an unnamed file is text.
const textSniffLen = 8 << 10

// Sniff identifies the container from the file's leading bytes, falling back
// to the name's extension for text files.
func Sniff(name string, data []byte) Format {
	switch {
	case bytes.HasPrefix(data, oleSignature):
		return FormatXLS
	case bytes.HasPrefix(data, zipSignature):
		return FormatXLSX
	case hasUTF16BOM(data):
		return FormatCSV
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV
	}
	if !bytes.ContainsRune(data[:min(len(data), textSniffLen)], 0) {
		return FormatCSV
	}
	return FormatUnknown
}

// Decoder turns uploaded bytes into a Table.
type Decoder interface {
	Decode(ctx context.Context, name string, data []byte) (Table, error)
}

// SpreadsheetDecoder reads the first sheet of .xls, .xlsx or CSV input.
type SpreadsheetDecoder struct {
	// TempDir holds the scratch copy .xls decoding needs. Empty means
	// os.TempDir.
	TempDir string
}

func NewDecoder() *SpreadsheetDecoder {
	return &SpreadsheetDecoder{}
}

// Decode reads the first sheet of data. Every failure is a *DecodeError
// except context cancellation, which is returned as is.
func (d *SpreadsheetDecoder) Decode(ctx context.Context, name string, data []byte) (Table, error) {
	if len(data) == 0 {
		return Table{}, &DecodeError{Err: ErrEmptyFile}
	}

	format := Sniff(name, data)
	var (
		rows []Row
		err  error
	)
	switch format {
	case FormatXLS:
		rows, err = d.decodeXLS(ctx, data)
	case FormatXLSX:
		rows, err = decodeXLSX(ctx, data)
	case FormatCSV:
		rows, err = decodeCSV(ctx, data)
	default:
		return Table{}, &DecodeError{Reason: "unrecognised file format"}
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Table{}, ctxErr
		}
		var de *DecodeError
		if errors.As(err, &de) {
			return Table{}, de
		}
		return Table{}, &DecodeError{Format: format, Err: err}
	}
	rows = trimRows(rows)
	if len(rows) == 0 {
		return Table{}, &DecodeError{Format: format, Reason: "first sheet is empty"}
	}
	return NewTable(rows...), nil
}

func decodeXLSX(ctx context.Context, data []byte) ([]Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, decodeErrorf(FormatXLSX, nil, "workbook has no sheets")
	}
	sheet := sheets[0]

	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	rows := make([]Row, len(raw))
	for i, values := range raw {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := make(Row, len(values))
		for j, v := range values {
			if v == "" {
				continue
			}
			ref, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return nil, err
			}
			typ, err := f.GetCellType(sheet, ref)
			if err != nil {
				return nil, fmt.Errorf("cell %s: %w", ref, err)
			}
			row[j] = xlsxCell(typ, v)
		}
		rows[i] = row
	}
	return rows, nil
}

// xlsxCell keeps numbers numeric. Untyped cells are numbers in the OOXML
// schema and formulas carry their cached value, but anything that does not
// parse stays text.
func xlsxCell(typ excelize.CellType, v string) Cell {
	switch typ {
	case excelize.CellTypeNumber, excelize.CellTypeUnset, excelize.CellTypeDate, excelize.CellTypeFormula:
		if f, ok := parseFloat(v); ok {
			return Number(f)
		}
	}
	return Text(v)
}

func (d *SpreadsheetDecoder) decodeXLS(ctx context.Context, data []byte) (rows []Row, err error) {
	if len(data) < oleHeaderSize {
		return nil, decodeErrorf(FormatXLS, nil, "truncated compound document")
	}

	// The reader opens the workbook by path, so it gets a scratch copy.
	tmp, err := os.CreateTemp(d.TempDir, "sheetmark-*.xls")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	// Malformed BIFF records can panic inside the reader.
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, decodeErrorf(FormatXLS, nil, "corrupt workbook: %v", r)
		}
	}()

	book, err := xlrd.OpenWorkbook(tmp.Name(), &xlrd.OpenWorkbookOptions{
		FileContents: data,
		Logfile:      io.Discard,
	})
	if err != nil {
		return nil, err
	}
	defer book.ReleaseResources()

	if len(book.SheetNames()) == 0 {
		return nil, decodeErrorf(FormatXLS, nil, "workbook has no sheets")
	}
	sheet, err := book.SheetByIndex(0)
	if err != nil {
		return nil, err
	}

	rows = make([]Row, sheet.NRows)
	for r := 0; r < sheet.NRows; r++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := make(Row, sheet.NCols)
		for c := 0; c < sheet.NCols; c++ {
			row[c] = xlsCell(sheet.CellType(r, c), sheet.CellValue(r, c))
		}
		rows[r] = row
	}
	return rows, nil
}

func xlsCell(typ int, v any) Cell {
	switch typ {
	case xlrd.XL_CELL_EMPTY, xlrd.XL_CELL_BLANK:
		return Empty()
	case xlrd.XL_CELL_NUMBER, xlrd.XL_CELL_DATE:
		if f, ok := toFloat(v); ok {
			return Number(f)
		}
	case xlrd.XL_CELL_BOOLEAN:
		if b, ok := v.(bool); ok {
			if b {
				return Text("TRUE")
			}
			return Text("FALSE")
		}
		if n, ok := toFloat(v); ok {
			if n != 0 {
				return Text("TRUE")
			}
			return Text("FALSE")
		}
	case xlrd.XL_CELL_ERROR:
		if code, ok := v.(byte); ok {
			if text, ok := xlrd.ErrorTextFromCode[code]; ok {
				return Text(text)
			}
		}
		return Text("#ERROR")
	}
	if v == nil {
		return Empty()
	}
	s := fmt.Sprint(v)
	if s == "" {
		return Empty()
	}
	return Text(s)
}

func decodeCSV(ctx context.Context, data []byte) ([]Row, error) {
	r := csv.NewReader(newTextReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows []Row
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, decodeErrorf(FormatCSV, err, "malformed csv")
		}
		rows = append(rows, RowOf(rec...))
	}
	return rows, nil
}

// trimRows drops trailing empty cells from every row and then trailing rows
// left with no cells.
func trimRows(rows []Row) []Row {
	for i, r := range rows {
		rows[i] = trimTrailingEmpty(r)
	}
	n := len(rows)
	for n > 0 && len(rows[n-1]) == 0 {
		n--
	}
	return rows[:n]
}
