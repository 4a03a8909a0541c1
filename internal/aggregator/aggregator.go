// Package aggregator joins backend output chunks into one text.
package aggregator

import (
	"strings"
	"sync"
)

// Aggregate concatenates chunks in order and trims whitespace from the ends
// of the joined result only.
func Aggregate(chunks []string) string {
	return strings.TrimSpace(strings.Join(chunks, ""))
}

// Collector accumulates chunks as they arrive from a streaming call. Its Add
// method can be passed directly as a backend chunk callback.
type Collector struct {
	mu sync.Mutex
	sb strings.Builder
	n  int
}

// Add appends one chunk verbatim.
func (c *Collector) Add(chunk string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sb.WriteString(chunk)
	c.n++
}

// Len returns the number of chunks received.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Partial returns the untrimmed text received so far.
func (c *Collector) Partial() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sb.String()
}

// Text returns the aggregated, trimmed result.
func (c *Collector) Text() string {
	return strings.TrimSpace(c.Partial())
}
