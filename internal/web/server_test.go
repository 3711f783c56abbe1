package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JonMunkholm/sheetmark/internal/config"
	"github.com/JonMunkholm/sheetmark/internal/core"
	"github.com/JonMunkholm/sheetmark/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// testClient drives the router in-process and carries the session cookie
// between requests like a browser would.
type testClient struct {
	t       *testing.T
	handler http.Handler
	cookie  *http.Cookie
	header  http.Header
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.Defaults()
	cfg.Rate.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}
	svc, err := core.NewService(cfg, nil)
	require.NoError(t, err)

	srv := NewServer(svc, cfg)
	t.Cleanup(srv.stop)
	return srv
}

func newClient(t *testing.T, srv *Server) *testClient {
	return &testClient{t: t, handler: srv.Router(), header: http.Header{}}
}

func (c *testClient) do(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	req.RemoteAddr = "192.0.2.10:5555"

	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.Name == SessionCookieName {
			c.cookie = ck
		}
	}
	return rec
}

func (c *testClient) get(path string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (c *testClient) send(method, path string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(method, path, nil))
}

func (c *testClient) upload(path, name string, data []byte) *httptest.ResponseRecorder {
	c.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(c.t, err)
	_, err = part.Write(data)
	require.NoError(c.t, err)
	require.NoError(c.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req)
}

func xlsxBytes(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func decodeTable(t *testing.T, rec *httptest.ResponseRecorder) TableResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp TableResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestIndex_IssuesSessionCookie(t *testing.T) {
	c := newClient(t, newTestServer(t, nil))

	rec := c.get("/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, c.cookie, "no session cookie set")
	assert.True(t, c.cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.cookie.SameSite)

	body := rec.Body.String()
	assert.Contains(t, body, `id="drop-zone"`)
	assert.Contains(t, body, "Export to CSV")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))

	first := c.cookie.Value
	c.get("/")
	assert.Equal(t, first, c.cookie.Value, "session changed between requests")
}

func TestAPI_UploadAnnotateExport(t *testing.T) {
	c := newClient(t, newTestServer(t, nil))

	resp := decodeTable(t, c.upload("/api/upload", "sheet.xlsx", xlsxBytes(t, [][]any{{"A", "B"}, {"1", "2"}, {"3", "4"}})))
	assert.Equal(t, [][]string{{"A", "B"}, {"1", "2"}, {"3", "4"}}, resp.Rows)
	assert.Equal(t, []bool{false, false}, resp.Used)
	assert.Equal(t, "sheet.xlsx", resp.FileName)
	assert.Equal(t, 1, resp.Version)

	resp = decodeTable(t, c.send(http.MethodPost, "/api/rows/1/used"))
	assert.True(t, resp.Changed)
	assert.Equal(t, [][]string{{"A", "B", "Status"}, {"1", "2", "Used"}, {"3", "4"}}, resp.Rows)
	assert.Equal(t, []bool{true, false}, resp.Used)

	rec := c.get("/api/export")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="export.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "A,B,Status\n1,2,Used\n3,4", rec.Body.String())

	resp = decodeTable(t, c.send(http.MethodDelete, "/api/rows/1/used"))
	assert.True(t, resp.Changed)
	assert.Equal(t, [][]string{{"A", "B", "Status"}, {"1", "2"}, {"3", "4"}}, resp.Rows)

	resp = decodeTable(t, c.send(http.MethodDelete, "/api/rows/1/used"))
	assert.False(t, resp.Changed, "second remove should be a no-op")
	assert.Equal(t, 3, resp.Version)
}

func TestAPI_ReingestExportedCSV(t *testing.T) {
	c := newClient(t, newTestServer(t, nil))
	decodeTable(t, c.upload("/api/upload", "sheet.xlsx", xlsxBytes(t, [][]any{{"name", "qty"}, {"Smith, J", 3}})))

	exported := c.get("/api/export").Body.Bytes()
	resp := decodeTable(t, c.upload("/api/upload", "export.csv", exported))
	assert.Equal(t, [][]string{{"name", "qty"}, {"Smith, J", "3"}}, resp.Rows)
}

func TestAPI_Errors(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(c *testClient)
		request    func(c *testClient) *httptest.ResponseRecorder
		wantStatus int
		wantCode   string
	}{
		{
			name:       "annotate before upload",
			request:    func(c *testClient) *httptest.ResponseRecorder { return c.send(http.MethodPost, "/api/rows/1/used") },
			wantStatus: http.StatusBadRequest,
			wantCode:   "TBL001",
		},
		{
			name:       "row out of range",
			setup:      func(c *testClient) { c.upload("/api/upload", "a.csv", []byte("A\n1")) },
			request:    func(c *testClient) *httptest.ResponseRecorder { return c.send(http.MethodPost, "/api/rows/9/used") },
			wantStatus: http.StatusBadRequest,
			wantCode:   "TBL002",
		},
		{
			name:       "row is not a number",
			request:    func(c *testClient) *httptest.ResponseRecorder { return c.send(http.MethodDelete, "/api/rows/abc/used") },
			wantStatus: http.StatusBadRequest,
			wantCode:   "TBL002",
		},
		{
			name: "not a spreadsheet",
			request: func(c *testClient) *httptest.ResponseRecorder {
				return c.upload("/api/upload", "photo.png", []byte{0x89, 'P', 'N', 'G', 0, 1, 2})
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE002",
		},
		{
			name:       "empty file",
			request:    func(c *testClient) *httptest.ResponseRecorder { return c.upload("/api/upload", "empty.xlsx", nil) },
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE005",
		},
		{
			name:       "no file field",
			request:    func(c *testClient) *httptest.ResponseRecorder { return c.send(http.MethodPost, "/api/upload") },
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE004",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, newTestServer(t, nil))
			if tt.setup != nil {
				tt.setup(c)
			}
			rec := tt.request(c)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
		})
	}
}

func TestAPI_FailedUploadKeepsTable(t *testing.T) {
	c := newClient(t, newTestServer(t, nil))
	decodeTable(t, c.upload("/api/upload", "good.csv", []byte("A\n1")))

	rec := c.upload("/api/upload", "bad.xlsx", []byte("PK\x03\x04not really"))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeTable(t, c.get("/api/table"))
	assert.Equal(t, [][]string{{"A"}, {"1"}}, resp.Rows)
	assert.Equal(t, "good.csv", resp.FileName)
}

func TestAPI_FileTooLarge(t *testing.T) {
	c := newClient(t, newTestServer(t, func(cfg *config.Config) { cfg.Upload.MaxFileSize = 100 }))

	rec := c.upload("/api/upload", "big.csv", bytes.Repeat([]byte("a,b\n"), 50))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "FILE001", decodeError(t, rec).Code)
}

func TestAPI_ClearAndEmptyExport(t *testing.T) {
	c := newClient(t, newTestServer(t, nil))
	decodeTable(t, c.upload("/api/upload", "a.csv", []byte("A\n1")))

	resp := decodeTable(t, c.send(http.MethodDelete, "/api/table"))
	assert.Empty(t, resp.Rows)

	rec := c.get("/api/export")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestAPI_SessionsAreIsolated(t *testing.T) {
	srv := newTestServer(t, nil)
	alice, bob := newClient(t, srv), newClient(t, srv)

	decodeTable(t, alice.upload("/api/upload", "a.csv", []byte("A\n1")))
	resp := decodeTable(t, bob.get("/api/table"))
	assert.Empty(t, resp.Rows)
}

func TestAPI_Activity(t *testing.T) {
	c := newClient(t, newTestServer(t, nil))
	c.header.Set("User-Agent", "sheetmark-test")
	decodeTable(t, c.upload("/api/upload", "a.csv", []byte("A\n1")))
	decodeTable(t, c.send(http.MethodPost, "/api/rows/1/used"))

	rec := c.get("/api/activity?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ActivityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, core.ActionAddUsed, resp.Entries[0].Action)
	assert.Equal(t, 1, resp.Entries[0].Row)
	assert.Equal(t, "192.0.2.10", resp.Entries[0].IPAddress)
	assert.Equal(t, "sheetmark-test", resp.Entries[0].UserAgent)
}

func TestAPI_KeyRequired(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.Security.RequireAPIKey = true
		cfg.Security.APIKeys = []string{"secret"}
	})

	c := newClient(t, srv)
	rec := c.get("/api/table")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c.header.Set("X-API-Key", "wrong")
	assert.Equal(t, http.StatusForbidden, c.get("/api/table").Code)

	c.header.Set("X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, c.get("/api/table").Code)

	// Health and the pages stay open.
	anon := newClient(t, srv)
	assert.Equal(t, http.StatusOK, anon.get("/api/health").Code)
	assert.Equal(t, http.StatusOK, anon.get("/").Code)
}

func TestAPI_Health(t *testing.T) {
	c := newClient(t, newTestServer(t, nil))
	c.get("/")

	rec := c.get("/api/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Sessions)
	assert.Equal(t, "shared", resp.Policy)
	assert.Equal(t, 4, resp.Decodes.MaxConcurrent)
}

func TestRateLimit(t *testing.T) {
	c := newClient(t, newTestServer(t, func(cfg *config.Config) {
		cfg.Rate.Enabled = true
		cfg.Rate.RequestsPerMinute = 2
	}))

	assert.Equal(t, http.StatusOK, c.get("/api/health").Code)
	assert.Equal(t, http.StatusOK, c.get("/api/health").Code)

	rec := c.get("/api/health")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE001", decodeError(t, rec).Code)
}

func TestPages_PostRedirectGet(t *testing.T) {
	c := newClient(t, newTestServer(t, nil))

	rec := c.upload("/upload", "sheet.xlsx", xlsxBytes(t, [][]any{{"A", "B"}, {"1", "2"}}))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	rec = c.send(http.MethodPost, "/rows/1/used")
	require.Equal(t, http.StatusSeeOther, rec.Code)

	body := c.get("/").Body.String()
	assert.Contains(t, body, "<th>Status</th>")
	assert.Contains(t, body, `action="/rows/1/used/remove"`)
	assert.Contains(t, body, "Remove Used")

	rec = c.send(http.MethodPost, "/rows/1/used/remove")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	body = c.get("/").Body.String()
	assert.Contains(t, body, `action="/rows/1/used"`)
	assert.NotContains(t, body, "Remove Used")
}

func TestPages_ErrorsBecomeAlerts(t *testing.T) {
	c := newClient(t, newTestServer(t, nil))

	rec := c.send(http.MethodPost, "/rows/1/used")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/?error=TBL001", rec.Header().Get("Location"))

	rec = c.upload("/upload", "notes.bin", []byte{0, 1, 2, 3})
	assert.Equal(t, "/?error=FILE002", rec.Header().Get("Location"))

	body := c.get("/?error=FILE002").Body.String()
	assert.Contains(t, body, `role="alert"`)
	assert.Contains(t, body, "Code: FILE002")

	body = c.get("/?error=%3Cb%3E").Body.String()
	assert.NotContains(t, body, `role="alert"`)
}

func TestPages_EscapeCellText(t *testing.T) {
	c := newClient(t, newTestServer(t, nil))
	c.upload("/upload", "x.csv", []byte("name\n<script>alert(1)</script>"))

	body := c.get("/").Body.String()
	assert.NotContains(t, body, "<script>alert(1)</script>")
	assert.Contains(t, body, "&lt;script&gt;")
}

func TestPages_ExportDownload(t *testing.T) {
	c := newClient(t, newTestServer(t, func(cfg *config.Config) { cfg.Table.ExportQuoting = "legacy" }))
	c.upload("/upload", "x.csv", []byte("name,note\n\"Smith, J\",x"))

	rec := c.get("/export.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment"))
	assert.Equal(t, "name,note\nSmith, J,x", rec.Body.String())
}

// brokenPipe accepts headers but fails every body write.
type brokenPipe struct {
	*httptest.ResponseRecorder
}

func (brokenPipe) Write([]byte) (int, error) {
	return 0, errors.New("write: broken pipe")
}

func TestPages_ExportWriteFailureIsLogged(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(logging.New(&logs, "debug", "text"))
	t.Cleanup(func() { slog.SetDefault(prev) })

	srv := newTestServer(t, nil)
	c := newClient(t, srv)
	decodeTable(t, c.upload("/api/upload", "sheet.csv", []byte("A,B\n1,2\n")))

	req := httptest.NewRequest(http.MethodGet, "/export.csv", nil)
	req.AddCookie(c.cookie)
	w := brokenPipe{httptest.NewRecorder()}
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, logs.String(), "request error")
	assert.Contains(t, logs.String(), "broken pipe")
}

func TestStaticAssets(t *testing.T) {
	c := newClient(t, newTestServer(t, nil))

	for _, path := range []string{"/static/app.js", "/static/app.css"} {
		rec := c.get(path)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.NotEmpty(t, rec.Body.String(), path)
	}
	assert.Nil(t, c.cookie, "static assets should not start a session")
}
