package ui

import (
	"bytes"
	"sync"
)

// DefaultLogLines is the number of lines a LogBuffer keeps by default.
const DefaultLogLines = 200

// LogBuffer is an io.Writer that keeps the most recent complete lines
// written to it. A logger pointed at it feeds the dashboard's log pane.
type LogBuffer struct {
	mu      sync.Mutex
	max     int
	lines   []string
	partial []byte
}

// NewLogBuffer returns a buffer keeping at most max lines.
func NewLogBuffer(max int) *LogBuffer {
	if max <= 0 {
		max = DefaultLogLines
	}
	return &LogBuffer{max: max}
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data := append(b.partial, p...)
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		b.lines = append(b.lines, string(bytes.TrimRight(data[:i], "\r")))
		data = data[i+1:]
	}
	b.partial = append([]byte(nil), data...)

	if over := len(b.lines) - b.max; over > 0 {
		b.lines = append([]string(nil), b.lines[over:]...)
	}
	return len(p), nil
}

// Lines returns the last n lines, or all of them when n <= 0.
func (b *LogBuffer) Lines(n int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	lines := b.lines
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return append([]string(nil), lines...)
}
