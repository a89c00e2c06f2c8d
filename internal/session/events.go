package session

import "sync"

// defaultEventLimit caps each event category. Chatty pages (a console.log in
// a render loop, a polling fetch) cannot grow memory without bound; older
// entries are dropped first and the drop is counted, never silent.
const defaultEventLimit = 1000

// ConsoleEntry is one console API call observed on the page.
type ConsoleEntry struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// PageError is one uncaught exception observed on the page.
type PageError struct {
	Text string `json:"text"`
}

// NetworkEntry is one request or response observed on the page.
type NetworkEntry struct {
	Phase  string `json:"phase"`
	Method string `json:"method,omitempty"`
	URL    string `json:"url"`
	Status int    `json:"status,omitempty"`
}

// EventLog collects page events into bounded per-category buffers. Writes
// come from the CDP listener goroutine; reads from the capture phase.
type EventLog struct {
	mu      sync.Mutex
	limit   int
	console []ConsoleEntry
	errors  []PageError
	network []NetworkEntry

	droppedConsole int
	droppedNetwork int
}

func NewEventLog(limit int) *EventLog {
	return &EventLog{limit: limit}
}

func (l *EventLog) AddConsole(e ConsoleEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.console) >= l.limit {
		l.console = l.console[1:]
		l.droppedConsole++
	}
	l.console = append(l.console, e)
}

func (l *EventLog) AddPageError(e PageError) {
	l.mu.Lock()
	defer l.mu.Unlock()
	// Errors are kept unconditionally up to the limit; past that the page is
	// broken enough that the earliest errors are the interesting ones.
	if len(l.errors) < l.limit {
		l.errors = append(l.errors, e)
	}
}

func (l *EventLog) AddNetwork(e NetworkEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.network) >= l.limit {
		l.network = l.network[1:]
		l.droppedNetwork++
	}
	l.network = append(l.network, e)
}

// Console returns a copy of the buffered console entries.
func (l *EventLog) Console() []ConsoleEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ConsoleEntry(nil), l.console...)
}

// PageErrors returns a copy of the buffered uncaught exceptions.
func (l *EventLog) PageErrors() []PageError {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]PageError(nil), l.errors...)
}

// Network returns a copy of the buffered network entries.
func (l *EventLog) Network() []NetworkEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]NetworkEntry(nil), l.network...)
}

// Dropped reports how many console and network entries were evicted.
func (l *EventLog) Dropped() (console, network int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.droppedConsole, l.droppedNetwork
}
