package generation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func feedAll(s *Scanner, chunks ...string) string {
	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(s.Feed(c))
	}
	sb.WriteString(s.Flush())
	return sb.String()
}

func TestScanner(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		want   string
	}{
		{
			name:   "plain text passes through",
			chunks: []string{"hello ", "world"},
			want:   "hello world",
		},
		{
			name:   "hidden block in one chunk",
			chunks: []string{"<think>plan it</think><answer>Done.</answer>"},
			want:   "Done.",
		},
		{
			name:   "open delimiter split across chunks",
			chunks: []string{"intro <thi", "nk>secret</think> outro"},
			want:   "intro  outro",
		},
		{
			name:   "close delimiter split across chunks",
			chunks: []string{"<think>secret</th", "ink>visible"},
			want:   "visible",
		},
		{
			name:   "delimiter split one byte at a time",
			chunks: strings.Split("a<think>b</think>c", ""),
			want:   "ac",
		},
		{
			name:   "wrapper split across chunks",
			chunks: []string{"<ans", "wer>42</ans", "wer>"},
			want:   "42",
		},
		{
			name:   "lone angle bracket is released at flush",
			chunks: []string{"x <", " y <"},
			want:   "x < y <",
		},
		{
			name:   "unterminated hidden block stays hidden",
			chunks: []string{"ok<think>never closed"},
			want:   "ok",
		},
		{
			name:   "several hidden blocks",
			chunks: []string{"<think>a</think>1", "<think>b</think>2"},
			want:   "12",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, feedAll(NewReasoningScanner(), tt.chunks...))
		})
	}
}

func TestScannerTracksHiddenState(t *testing.T) {
	s := NewReasoningScanner()
	assert.Equal(t, "a", s.Feed("a<think>b"))
	assert.True(t, s.InsideHiddenBlock())
	assert.Equal(t, "", s.Feed("c</th"))
	assert.True(t, s.InsideHiddenBlock())
	assert.Equal(t, "d", s.Feed("ink>d"))
	assert.False(t, s.InsideHiddenBlock())
}
