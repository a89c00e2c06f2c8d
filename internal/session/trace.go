package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// TraceEntry is one recorded session action. Offsets are relative to session
// start so traces from different attempts line up.
type TraceEntry struct {
	Seq      int            `json:"seq"`
	OffsetMS int64          `json:"offset_ms"`
	Kind     string         `json:"kind"`
	Detail   map[string]any `json:"detail,omitempty"`
}

// Trace records the ordered actions of one session for post-mortem review.
// Whether it is persisted is the runner's call, driven by the trace policy.
type Trace struct {
	mu      sync.Mutex
	start   time.Time
	entries []TraceEntry
}

func NewTrace() *Trace {
	return &Trace{start: time.Now()}
}

func (t *Trace) Record(kind string, detail map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, TraceEntry{
		Seq:      len(t.entries),
		OffsetMS: time.Since(t.start).Milliseconds(),
		Kind:     kind,
		Detail:   detail,
	})
}

// Entries returns a copy of the recorded entries.
func (t *Trace) Entries() []TraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TraceEntry(nil), t.entries...)
}

// WriteFile persists the trace as NDJSON, one entry per line.
func (t *Trace) WriteFile(path string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range t.Entries() {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("session: encode trace entry: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("session: write trace: %w", err)
	}
	return nil
}
