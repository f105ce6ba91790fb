package agent

import (
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/harun/toolwire/pkg/mcpclient"
	"github.com/harun/toolwire/pkg/planner"
)

// TimestampLayout formats history timestamps (UTC)
const TimestampLayout = "2006-01-02 15:04:05"

// DefaultHistorySize is the number of runs kept
const DefaultHistorySize = 10

// HistoryEntry records one agent run
type HistoryEntry struct {
	RunID         string                      `json:"run_id" yaml:"run_id"`
	Timestamp     string                      `json:"timestamp" yaml:"timestamp"`
	Transport     mcpclient.Kind              `json:"transport" yaml:"transport"`
	Endpoint      string                      `json:"endpoint" yaml:"endpoint"`
	Request       string                      `json:"request" yaml:"request"`
	Plan          planner.Plan                `json:"plan" yaml:"plan"`
	ArgumentsUsed map[string]any              `json:"arguments_used" yaml:"arguments_used"`
	ToolResult    *mcpclient.InvocationResult `json:"tool_result" yaml:"tool_result"`
	ToolError     string                      `json:"tool_error,omitempty" yaml:"tool_error,omitempty"`
	FinalResponse string                      `json:"final_response" yaml:"final_response"`
	State         State                       `json:"state" yaml:"state"`
}

// History is a bounded list of runs, newest first
type History struct {
	mu       sync.RWMutex
	capacity int
	entries  []HistoryEntry
}

// NewHistory creates a history. capacity <= 0 uses DefaultHistorySize.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{capacity: capacity}
}

// Add inserts entry at the front, evicting the oldest past capacity
func (h *History) Add(entry HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append([]HistoryEntry{entry}, h.entries...)
	if len(h.entries) > h.capacity {
		h.entries = h.entries[:h.capacity]
	}
}

// List returns the entries, newest first
func (h *History) List() []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]HistoryEntry(nil), h.entries...)
}

// Len returns the number of entries
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Get returns entry i, where 0 is the latest
func (h *History) Get(i int) (HistoryEntry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if i < 0 || i >= len(h.entries) {
		return HistoryEntry{}, false
	}
	return h.entries[i], true
}

// Export writes the final response of entry i as plain text
func (h *History) Export(w io.Writer, i int) error {
	entry, ok := h.Get(i)
	if !ok {
		return fmt.Errorf("no history entry at index %d", i)
	}
	_, err := io.WriteString(w, entry.FinalResponse)
	return err
}

// ExportYAML writes every entry as a YAML sequence
func (h *History) ExportYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(h.List()); err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return enc.Close()
}
