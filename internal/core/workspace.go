package core

import "sync"

// Snapshot is a consistent read of a Workspace.
type Snapshot struct {
	Table    Table
	FileName string
	Version  int
}

// Workspace is the single state cell behind one session. The table is only
// ever replaced wholesale; every replacement bumps Version.
type Workspace struct {
	mu    sync.Mutex
	state Snapshot
}

func (w *Workspace) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Replace installs a freshly decoded table.
func (w *Workspace) Replace(t Table, fileName string) Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = Snapshot{Table: t, FileName: fileName, Version: w.state.Version + 1}
	return w.state
}

// Update runs fn on the current table while holding the workspace lock, so
// each table has exactly one writer at a time. The result is stored only when
// fn succeeds and reports a change.
func (w *Workspace) Update(fn func(Table) (Table, bool, error)) (Snapshot, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	next, changed, err := fn(w.state.Table)
	if err != nil || !changed {
		return w.state, false, err
	}
	w.state.Table = next
	w.state.Version++
	return w.state, true, nil
}

// Reset drops the table. The version keeps counting so clients polling it
// still see a change.
func (w *Workspace) Reset() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = Snapshot{Version: w.state.Version + 1}
	return w.state
}
