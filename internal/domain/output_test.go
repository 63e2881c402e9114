package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStream_String(t *testing.T) {
	assert.Equal(t, "stdout", StreamStdout.String())
	assert.Equal(t, "stderr", StreamStderr.String())
}

func TestOutputLine_Prefixed(t *testing.T) {
	line := OutputLine{Source: "backend", Line: "Uvicorn running on http://127.0.0.1:8000"}
	assert.Equal(t, "[backend] Uvicorn running on http://127.0.0.1:8000", line.Prefixed())
}

func TestLineFilter_IsEmpty(t *testing.T) {
	tests := []struct {
		name   string
		filter LineFilter
		want   bool
	}{
		{
			name:   "empty filter",
			filter: LineFilter{},
			want:   true,
		},
		{
			name:   "with streams",
			filter: LineFilter{Streams: []Stream{StreamStderr}},
			want:   false,
		},
		{
			name:   "with pattern",
			filter: LineFilter{Pattern: "error"},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.IsEmpty())
		})
	}
}

func TestLineFilter_MatchesStream(t *testing.T) {
	tests := []struct {
		name   string
		filter LineFilter
		stream Stream
		want   bool
	}{
		{"empty filter matches all", LineFilter{}, StreamStdout, true},
		{"matches included stream", LineFilter{Streams: []Stream{StreamStderr}}, StreamStderr, true},
		{"rejects excluded stream", LineFilter{Streams: []Stream{StreamStderr}}, StreamStdout, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.MatchesStream(tt.stream))
		})
	}
}
