package core

import "sync"

const defaultRunHistoryCapacity = 100

// runHistory is a fixed-size ring of the most recent routine records.
type runHistory struct {
	mu    sync.Mutex
	items []RoutineRecord
	head  int
	count int
}

func newRunHistory(capacity int) *runHistory {
	if capacity < 1 {
		capacity = defaultRunHistoryCapacity
	}
	return &runHistory{items: make([]RoutineRecord, capacity)}
}

func (h *runHistory) add(record RoutineRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.items[h.head] = record
	h.head = (h.head + 1) % len(h.items)
	if h.count < len(h.items) {
		h.count++
	}
}

// recent returns up to limit records, newest first. limit <= 0 means all.
func (h *runHistory) recent(limit int) []RoutineRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return nil
	}
	if limit <= 0 || limit > h.count {
		limit = h.count
	}

	out := make([]RoutineRecord, 0, limit)
	for i := range limit {
		idx := (h.head - 1 - i + len(h.items)) % len(h.items)
		out = append(out, h.items[idx])
	}
	return out
}

func (h *runHistory) last() (RoutineRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return RoutineRecord{}, false
	}
	return h.items[(h.head-1+len(h.items))%len(h.items)], true
}
