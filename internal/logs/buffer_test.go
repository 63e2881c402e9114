package logs

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/charliek/sidecarhost/internal/domain"
)

func makeLine(line string) domain.OutputLine {
	return domain.OutputLine{
		Timestamp: time.Now(),
		Instance:  "test-instance",
		Source:    "backend",
		Stream:    domain.StreamStdout,
		Line:      line,
	}
}

func makeStderrLine(line string) domain.OutputLine {
	l := makeLine(line)
	l.Stream = domain.StreamStderr
	return l
}

func TestRingBuffer_Write_Read(t *testing.T) {
	b := NewRingBuffer(5)

	b.Write(makeLine("1"))
	b.Write(makeLine("2"))
	b.Write(makeLine("3"))

	lines := b.Read()
	assert.Len(t, lines, 3)
	assert.Equal(t, "1", lines[0].Line)
	assert.Equal(t, "2", lines[1].Line)
	assert.Equal(t, "3", lines[2].Line)
}

func TestRingBuffer_Overflow(t *testing.T) {
	b := NewRingBuffer(3)

	for i := 1; i <= 10; i++ {
		b.Write(makeLine(strconv.Itoa(i)))
	}

	lines := b.Read()
	assert.Len(t, lines, 3)
	assert.Equal(t, "8", lines[0].Line)
	assert.Equal(t, "9", lines[1].Line)
	assert.Equal(t, "10", lines[2].Line)
	assert.Equal(t, 3, b.Count())
}

func TestRingBuffer_ReadLast(t *testing.T) {
	tests := []struct {
		name   string
		writes int
		n      int
		want   []string
	}{
		{"empty buffer", 0, 3, nil},
		{"n larger than count", 2, 5, []string{"1", "2"}},
		{"partial buffer", 4, 2, []string{"3", "4"}},
		{"wrapped buffer", 7, 3, []string{"5", "6", "7"}},
		{"zero n", 3, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewRingBuffer(5)
			for i := 1; i <= tt.writes; i++ {
				b.Write(makeLine(strconv.Itoa(i)))
			}

			var got []string
			for _, l := range b.ReadLast(tt.n) {
				got = append(got, l.Line)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRingBuffer_Clear(t *testing.T) {
	b := NewRingBuffer(3)
	b.Write(makeLine("1"))
	b.Write(makeLine("2"))

	b.Clear()

	assert.Equal(t, 0, b.Count())
	assert.Nil(t, b.Read())
}

func TestRingBuffer_DefaultCapacity(t *testing.T) {
	b := NewRingBuffer(0)
	assert.Equal(t, 1000, b.Capacity())
}

func TestRingBuffer_Concurrent(t *testing.T) {
	b := NewRingBuffer(100)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Write(makeLine("x"))
				b.Read()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, b.Count())
}
