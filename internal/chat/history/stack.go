// Package history keeps a bounded in-memory record of recent chat lines,
// replayed to freshly authenticated sessions. It is not persistence: the
// record dies with the process.
package history

import (
	"fmt"
	"sync"
)

// Stack - accumulates a limited number of encoded lines. When the stack
// reaches its max length, it drops the oldest line on every push.
type Stack struct {
	max  int
	mu   sync.RWMutex
	data []string
}

// NewStack - builds a history stack with the given capacity.
func NewStack(max int) (*Stack, error) {
	if max <= 0 {
		return nil, fmt.Errorf("history.NewStack: max (%d) must be greater than 0", max)
	}
	return &Stack{max: max, data: make([]string, 0, max)}, nil
}

// Len - returns the number of currently held lines.
func (s *Stack) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Push - adds a line to history, evicting the oldest at capacity.
func (s *Stack) Push(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.data) == s.max {
		copy(s.data, s.data[1:])
		s.data[len(s.data)-1] = line
		return
	}
	s.data = append(s.data, line)
}

// Tail - copies the last n lines in chronological order,
// the first item of the result being the oldest.
func (s *Stack) Tail(n int) []string {
	if n < 0 {
		n = -n
	}
	if n == 0 {
		return []string{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l := len(s.data); n > l {
		n = l
	}
	tail := make([]string, n)
	copy(tail, s.data[len(s.data)-n:])
	return tail
}
