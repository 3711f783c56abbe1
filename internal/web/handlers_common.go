package web

// Shared request parsing and response shaping used by the page and API
// handlers.

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/sheetmark/internal/core"
	"github.com/JonMunkholm/sheetmark/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

// multipartOverhead is allowed on top of UPLOAD_MAX_FILE_SIZE for the
// multipart boundaries and headers.
const multipartOverhead = 64 << 10

// maxMultipartMemory is how much of a multipart body is kept in memory;
// the rest spills to temporary files that ParseMultipartForm manages.
const maxMultipartMemory = 8 << 20

// errInvalidRow means the {row} path segment is not a number.
var errInvalidRow = errors.New("invalid row")

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parseRow reads the 1-based data row from the {row} path segment. Range
// checks happen in the annotator, which knows the table.
func parseRow(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "row")
	row, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w %q", errInvalidRow, raw)
	}
	return row, nil
}

// readUpload returns the name and bytes of the multipart "file" field.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return "", nil, fmt.Errorf("read upload: %w", core.ErrFileTooLarge)
		}
		return "", nil, fmt.Errorf("read upload: %w", core.ErrNoFile)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", core.ErrNoFile)
	}
	defer file.Close()

	if header.Size > maxSize {
		return "", nil, fmt.Errorf("read upload: %w", core.ErrFileTooLarge)
	}

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxSize {
		return "", nil, fmt.Errorf("read upload: %w", core.ErrFileTooLarge)
	}
	return header.Filename, data, nil
}

// TableResponse is the JSON shape of a session's table.
type TableResponse struct {
	Rows     [][]string `json:"rows"`
	Used     []bool     `json:"used"`
	Version  int        `json:"version"`
	FileName string     `json:"fileName,omitempty"`
	Policy   string     `json:"policy"`
	Changed  bool       `json:"changed"`
}

func toResponse(v core.View) TableResponse {
	rows := v.Table.Records()
	if rows == nil {
		rows = [][]string{}
	}
	used := v.Used
	if used == nil {
		used = []bool{}
	}
	return TableResponse{
		Rows:     rows,
		Used:     used,
		Version:  v.Version,
		FileName: v.FileName,
		Policy:   string(v.Policy),
		Changed:  v.Changed,
	}
}

// toTableData projects a view onto the table component.
func toTableData(v core.View) templates.TableData {
	data := templates.TableData{
		FileName: v.FileName,
		Version:  v.Version,
		Header:   v.Table.Header().Strings(),
		Width:    v.Table.Width(),
	}
	for i, row := range v.Table.Data() {
		data.Rows = append(data.Rows, templates.RowData{
			Index: i + 1,
			Cells: row.Strings(),
			Used:  v.Used[i],
		})
	}
	return data
}
