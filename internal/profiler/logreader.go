package profiler

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// echoKeywords selects server log lines worth surfacing live. Anything the
// server says about performance, initialization, workspace scanning,
// packages, background work or diagnostics is shown as it happens.
var echoKeywords = []string{"perf", "init", "scan", "package", "background", "diag"}

// LogLine is one retained server log line with its offset from process start.
type LogLine struct {
	Elapsed time.Duration
	Text    string
}

// LogReader drains the server's stderr so the OS pipe buffer can never fill
// and stall the server. It runs until the server closes the stream and is
// never joined; the session does not depend on it.
type LogReader struct {
	mu    sync.Mutex
	lines []LogLine
}

// StartLogReader begins draining r in the background. Non-empty lines are
// retained with offsets from start; keyword-matched lines are echoed to out
// with a millisecond timestamp.
func StartLogReader(r io.Reader, start time.Time, out io.Writer) *LogReader {
	lr := &LogReader{}
	go lr.drain(r, start, out)
	return lr
}

func (lr *LogReader) drain(r io.Reader, start time.Time, out io.Writer) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		elapsed := time.Since(start)
		lr.mu.Lock()
		lr.lines = append(lr.lines, LogLine{Elapsed: elapsed, Text: line})
		lr.mu.Unlock()
		if relevantLogLine(line) {
			fmt.Fprintf(out, "  [%.0fms] %s\n", Millis(elapsed), line)
		}
	}
}

func relevantLogLine(line string) bool {
	lower := strings.ToLower(line)
	for _, kw := range echoKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Lines returns a snapshot of the retained log lines.
func (lr *LogReader) Lines() []LogLine {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	out := make([]LogLine, len(lr.lines))
	copy(out, lr.lines)
	return out
}
