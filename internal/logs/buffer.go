package logs

import (
	"sync"

	"github.com/charliek/sidecarhost/internal/domain"
)

// RingBuffer is a fixed-size circular buffer of sidecar output lines
type RingBuffer struct {
	mu       sync.RWMutex
	lines    []domain.OutputLine
	head     int // next write position
	count    int // current number of lines
	capacity int
}

// NewRingBuffer creates a new ring buffer with the given capacity
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1000
	}
	return &RingBuffer{
		lines:    make([]domain.OutputLine, capacity),
		capacity: capacity,
	}
}

// Write adds a line, overwriting the oldest when full
func (b *RingBuffer) Write(line domain.OutputLine) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lines[b.head] = line
	b.head = (b.head + 1) % b.capacity

	if b.count < b.capacity {
		b.count++
	}
}

// Read returns all lines in arrival order
func (b *RingBuffer) Read() []domain.OutputLine {
	return b.ReadLast(b.Capacity())
}

// ReadLast returns the last n lines in arrival order
func (b *RingBuffer) ReadLast(n int) []domain.OutputLine {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.count == 0 || n <= 0 {
		return nil
	}
	if n > b.count {
		n = b.count
	}

	// head is one past the newest line
	start := (b.head - n + b.capacity) % b.capacity

	result := make([]domain.OutputLine, n)
	for i := 0; i < n; i++ {
		result[i] = b.lines[(start+i)%b.capacity]
	}
	return result
}

// Count returns the current number of lines in the buffer
func (b *RingBuffer) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Capacity returns the maximum capacity of the buffer
func (b *RingBuffer) Capacity() int {
	return b.capacity
}

// Clear removes all lines from the buffer
func (b *RingBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.count = 0
}
