package cli

import (
	"sync"
	"time"
)

const defaultHistorySize = 50

// HistoryEntry 실행 기록 한 건
type HistoryEntry struct {
	Time     time.Time
	Question string
	SQL      string
	Rows     int
}

// History 크기가 제한된 세션 기록. 가장 오래된 항목부터 밀려난다
type History struct {
	mu      sync.Mutex
	max     int
	entries []HistoryEntry
}

// NewHistory max 가 0 이하면 defaultHistorySize
func NewHistory(max int) *History {
	if max <= 0 {
		max = defaultHistorySize
	}
	return &History{max: max}
}

func (h *History) Add(e HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	h.entries = append(h.entries, e)
	if over := len(h.entries) - h.max; over > 0 {
		h.entries = append([]HistoryEntry(nil), h.entries[over:]...)
	}
}

// Entries 오래된 순서의 복사본
func (h *History) Entries() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]HistoryEntry(nil), h.entries...)
}
