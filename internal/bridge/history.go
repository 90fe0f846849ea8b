package bridge

import (
	"sync"
	"time"

	"github.com/posterrama/fleet-core/internal/capability"
)

// HistoryEntry records one command routed through the bridge.
type HistoryEntry struct {
	DeviceID   string        `json:"deviceId"`
	Capability capability.ID `json:"capability"`
	Source     string        `json:"source"`
	Timestamp  time.Time     `json:"timestamp"`
	Error      string        `json:"error,omitempty"`
}

// commandHistory is a fixed-capacity ring of recent command entries.
// When full, the oldest entry is overwritten.
type commandHistory struct {
	mu      sync.Mutex
	entries []HistoryEntry
	next    int
	full    bool
}

func newCommandHistory(capacity int) *commandHistory {
	if capacity < 1 {
		capacity = 1
	}
	return &commandHistory{entries: make([]HistoryEntry, capacity)}
}

func (h *commandHistory) record(e HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[h.next] = e
	h.next = (h.next + 1) % len(h.entries)
	if h.next == 0 {
		h.full = true
	}
}

// list returns the recorded entries, newest first.
func (h *commandHistory) list() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	size := h.next
	if h.full {
		size = len(h.entries)
	}
	out := make([]HistoryEntry, 0, size)
	for i := 0; i < size; i++ {
		idx := (h.next - 1 - i + len(h.entries)) % len(h.entries)
		out = append(out, h.entries[idx])
	}
	return out
}

func (h *commandHistory) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.full {
		return len(h.entries)
	}
	return h.next
}
