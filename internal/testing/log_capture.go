package testing

import (
	"fmt"
	"strings"
	"sync"
)

// LogEntry is one message received by LogCapture.
type LogEntry struct {
	Level   string // verbose, info or error
	Message string
}

// LogCapture is a widload.Logger that records every message.
// Thread-safe for concurrent use.
type LogCapture struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewLogCapture creates an empty LogCapture.
func NewLogCapture() *LogCapture {
	return &LogCapture{}
}

func (c *LogCapture) Verbose(format string, args ...interface{}) { c.add("verbose", format, args) }
func (c *LogCapture) Info(format string, args ...interface{})    { c.add("info", format, args) }
func (c *LogCapture) Error(format string, args ...interface{})   { c.add("error", format, args) }

func (c *LogCapture) add(level, format string, args []interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, LogEntry{Level: level, Message: fmt.Sprintf(format, args...)})
}

// Entries returns a copy of all captured entries.
func (c *LogCapture) Entries() []LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]LogEntry, len(c.entries))
	copy(result, c.entries)
	return result
}

// Find returns the entries of level whose message contains substr.
// An empty level matches every level.
func (c *LogCapture) Find(level, substr string) []LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	var result []LogEntry
	for _, e := range c.entries {
		if (level == "" || e.Level == level) && strings.Contains(e.Message, substr) {
			result = append(result, e)
		}
	}
	return result
}

// Reset clears all captured entries.
func (c *LogCapture) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = nil
}
