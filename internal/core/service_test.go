package core

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/sheetmark/internal/config"
)

// decoderFunc adapts a function to the Decoder interface.
type decoderFunc func(ctx context.Context, name string, data []byte) (Table, error)

func (f decoderFunc) Decode(ctx context.Context, name string, data []byte) (Table, error) {
	return f(ctx, name, data)
}

func newTestService(t *testing.T, mutate func(*config.Config), opts ...Option) *Service {
	t.Helper()
	cfg := config.Defaults()
	if mutate != nil {
		mutate(cfg)
	}
	svc, err := NewService(cfg, nil, opts...)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func TestService_IngestAndAnnotate(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	sid, created := svc.Session("")
	if !created {
		t.Fatal("Session(\"\") created = false")
	}

	view, err := svc.Ingest(ctx, sid, "data.csv", []byte("A,B\n1,2\n3,4"))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if view.Version != 1 || view.FileName != "data.csv" || view.Table.DataLen() != 2 {
		t.Errorf("Ingest() view = %+v", view)
	}

	view, err = svc.AddUsed(ctx, sid, 2)
	if err != nil {
		t.Fatalf("AddUsed() error = %v", err)
	}
	if !view.Changed || view.Version != 2 {
		t.Errorf("AddUsed() Changed=%v Version=%d, want true/2", view.Changed, view.Version)
	}
	if got := view.Used; len(got) != 2 || got[0] || !got[1] {
		t.Errorf("Used = %v, want [false true]", got)
	}

	var buf bytes.Buffer
	if err := svc.Export(ctx, sid, &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if got, want := buf.String(), "A,B,Status\n1,2\n3,4,Used"; got != want {
		t.Errorf("Export() = %q, want %q", got, want)
	}
}

func TestService_NoopRemoveKeepsVersion(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	sid, _ := svc.Session("")
	svc.Ingest(ctx, sid, "data.csv", []byte("A\n1"))

	view, err := svc.RemoveUsed(ctx, sid, 1)
	if err != nil {
		t.Fatalf("RemoveUsed() error = %v", err)
	}
	if view.Changed || view.Version != 1 {
		t.Errorf("RemoveUsed() Changed=%v Version=%d, want false/1", view.Changed, view.Version)
	}
}

func TestService_FailedIngestKeepsTable(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	sid, _ := svc.Session("")
	svc.Ingest(ctx, sid, "good.csv", []byte("A\n1"))

	_, err := svc.Ingest(ctx, sid, "bad.xlsx", []byte("PK\x03\x04garbage"))
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("Ingest() error = %v, want DecodeError", err)
	}

	view := svc.View(sid)
	if view.FileName != "good.csv" || view.Version != 1 {
		t.Errorf("View() after failed ingest = %+v", view)
	}
	if got := view.Table.Records(); len(got) != 2 || got[1][0] != "1" {
		t.Errorf("table = %v, want previous table", got)
	}
}

func TestService_RowErrors(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	sid, _ := svc.Session("")

	if _, err := svc.AddUsed(ctx, sid, 1); !errors.Is(err, ErrEmptyTable) {
		t.Errorf("AddUsed() on empty = %v, want ErrEmptyTable", err)
	}

	svc.Ingest(ctx, sid, "data.csv", []byte("A\n1"))
	_, err := svc.AddUsed(ctx, sid, 5)
	if !errors.Is(err, ErrRowOutOfRange) {
		t.Errorf("AddUsed(5) = %v, want ErrRowOutOfRange", err)
	}
	if got := MapError(err).Code; got != "TBL002" {
		t.Errorf("MapError code = %s, want TBL002", got)
	}
}

func TestService_UnknownSession(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.AddUsed(context.Background(), "missing", 1)
	if !errors.Is(err, ErrSessionExpired) {
		t.Errorf("AddUsed() error = %v, want ErrSessionExpired", err)
	}
	if view := svc.View("missing"); !view.Table.IsEmpty() {
		t.Error("View(missing) returned a table")
	}
}

func TestService_Clear(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	sid, _ := svc.Session("")
	svc.Ingest(ctx, sid, "data.csv", []byte("A\n1"))

	view, err := svc.Clear(ctx, sid)
	if err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if !view.Table.IsEmpty() || view.Version != 2 {
		t.Errorf("Clear() view = %+v", view)
	}

	var buf bytes.Buffer
	svc.Export(ctx, sid, &buf)
	if buf.Len() != 0 {
		t.Errorf("Export() after Clear = %q, want empty", buf.String())
	}
}

func TestService_SessionsAreIsolated(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	a, _ := svc.Session("")
	b, _ := svc.Session("")

	svc.Ingest(ctx, a, "a.csv", []byte("A\n1"))
	if view := svc.View(b); !view.Table.IsEmpty() {
		t.Error("session b sees session a's table")
	}
}

func TestService_BusyDecoder(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	slow := decoderFunc(func(ctx context.Context, name string, data []byte) (Table, error) {
		started <- struct{}{}
		<-release
		return TableFromRecords([][]string{{"A"}}), nil
	})
	svc := newTestService(t, func(c *config.Config) {
		c.Upload.MaxConcurrent = 1
		c.Upload.MaxWaitTime = 50 * time.Millisecond
	}, WithDecoder(slow))

	ctx := context.Background()
	sid, _ := svc.Session("")
	done := make(chan error, 1)
	go func() {
		_, err := svc.Ingest(ctx, sid, "first.csv", []byte("A"))
		done <- err
	}()
	<-started

	_, err := svc.Ingest(ctx, sid, "second.csv", []byte("A"))
	if !errors.Is(err, ErrTooManyUploads) {
		t.Errorf("second Ingest() error = %v, want ErrTooManyUploads", err)
	}
	if got := svc.DecodeStatus().Active; got != 1 {
		t.Errorf("DecodeStatus().Active = %d, want 1", got)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("first Ingest() error = %v", err)
	}
	if err := svc.WaitForDecodes(ctx); err != nil {
		t.Errorf("WaitForDecodes() error = %v", err)
	}
}

func TestService_ActivityRecorded(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := ContextWithClient(context.Background(), "203.0.113.7", "test-agent")
	sid, _ := svc.Session("")

	svc.Ingest(ctx, sid, "data.csv", []byte("A\n1"))
	svc.AddUsed(ctx, sid, 1)
	svc.AddUsed(ctx, sid, 1) // shared policy: no change, not recorded
	svc.Export(ctx, sid, &strings.Builder{})

	entries, err := svc.Activity(ctx, sid, 0)
	if err != nil {
		t.Fatalf("Activity() error = %v", err)
	}
	var actions []AuditAction
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	want := []AuditAction{ActionExport, ActionAddUsed, ActionIngest}
	if len(actions) != len(want) {
		t.Fatalf("actions = %v, want %v", actions, want)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Errorf("actions = %v, want %v", actions, want)
			break
		}
	}
	if e := entries[1]; e.Row != 1 || e.IPAddress != "203.0.113.7" || e.UserAgent != "test-agent" {
		t.Errorf("add_used entry = %+v", e)
	}
}

func TestService_RejectsBadPolicy(t *testing.T) {
	cfg := config.Defaults()
	cfg.Table.AnnotationPolicy = "sideways"
	if _, err := NewService(cfg, nil); err == nil {
		t.Error("NewService() accepted an unknown policy")
	}
}
