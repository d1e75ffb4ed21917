package memory

import (
	"context"
	"sync"

	"registro/internal/core"
	"registro/internal/sheets"
)

var _ sheets.SequenceWriter = (*Writer)(nil)

// Writer keeps the last rows written per tab in memory.
type Writer struct {
	mu     sync.Mutex
	tabs   map[string][][]interface{}
	writes int
}

func New() *Writer {
	return &Writer{tabs: make(map[string][][]interface{})}
}

func (w *Writer) WriteSequence(_ context.Context, st core.Statement) error {
	rows := sheets.Rows(st)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tabs[sheets.TabName(st.OwnerID, st.Sequence)] = rows
	w.writes++
	return nil
}

// Tab returns a copy of the rows last written to the named tab.
func (w *Writer) Tab(name string) ([][]interface{}, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	rows, ok := w.tabs[name]
	if !ok {
		return nil, false
	}
	return append([][]interface{}(nil), rows...), true
}

// Writes reports how many WriteSequence calls succeeded.
func (w *Writer) Writes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writes
}
