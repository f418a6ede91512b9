package testutil

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// LogRecord is a captured log line
type LogRecord struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// LogCapture is a slog.Handler that keeps every record in memory
type LogCapture struct {
	mu      *sync.Mutex
	records *[]LogRecord
	attrs   []slog.Attr
	t       testing.TB
}

// NewLogCapture creates an empty capture. When t is non-nil records are
// echoed to the test log.
func NewLogCapture(t testing.TB) *LogCapture {
	return &LogCapture{mu: &sync.Mutex{}, records: &[]LogRecord{}, t: t}
}

// NewTestLogger returns a logger writing into a fresh capture
func NewTestLogger(t testing.TB) (*slog.Logger, *LogCapture) {
	c := NewLogCapture(t)
	return slog.New(c), c
}

// Enabled implements slog.Handler
func (c *LogCapture) Enabled(context.Context, slog.Level) bool { return true }

// Handle implements slog.Handler
func (c *LogCapture) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, r.NumAttrs()+len(c.attrs))
	for _, a := range c.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	c.mu.Lock()
	*c.records = append(*c.records, LogRecord{Level: r.Level, Message: r.Message, Attrs: attrs})
	c.mu.Unlock()

	if c.t != nil {
		c.t.Logf("[%s] %s %v", r.Level, r.Message, attrs)
	}
	return nil
}

// WithAttrs implements slog.Handler; records share the parent's buffer
func (c *LogCapture) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *c
	next.attrs = append(append([]slog.Attr{}, c.attrs...), attrs...)
	return &next
}

// WithGroup implements slog.Handler. Groups are flattened.
func (c *LogCapture) WithGroup(string) slog.Handler { return c }

// Records returns a copy of everything captured so far
func (c *LogCapture) Records() []LogRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]LogRecord, len(*c.records))
	copy(out, *c.records)
	return out
}

// Find returns the first record whose message contains msg
func (c *LogCapture) Find(msg string) (LogRecord, bool) {
	for _, r := range c.Records() {
		if strings.Contains(r.Message, msg) {
			return r, true
		}
	}
	return LogRecord{}, false
}

// Count returns how many records contain msg
func (c *LogCapture) Count(msg string) int {
	n := 0
	for _, r := range c.Records() {
		if strings.Contains(r.Message, msg) {
			n++
		}
	}
	return n
}

// AssertLogged fails the test when no record contains msg
func AssertLogged(t testing.TB, c *LogCapture, msg string) LogRecord {
	t.Helper()
	r, ok := c.Find(msg)
	if !ok {
		t.Errorf("expected a log record containing %q", msg)
	}
	return r
}
