package logtee

import (
	"sync"
)

// keeps only the last "capacity" lines given to Write()
type StringTail struct {
	lines    []string
	next     int // slot for the next write once full
	capacity int
	mu       sync.Mutex
}

func NewStringTail(capacity int) *StringTail {
	return &StringTail{
		lines:    make([]string, 0, capacity),
		capacity: capacity,
	}
}

func (t *StringTail) Write(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.capacity == 0 {
		return
	}

	if len(t.lines) < t.capacity {
		t.lines = append(t.lines, line)
		return
	}

	t.lines[t.next] = line
	t.next = (t.next + 1) % t.capacity
}

// oldest first
func (t *StringTail) Snapshot() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ret := make([]string, 0, len(t.lines))
	ret = append(ret, t.lines[t.next:]...)
	ret = append(ret, t.lines[:t.next]...)

	return ret
}
