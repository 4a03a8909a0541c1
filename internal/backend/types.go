// Package backend talks to remote generative services. Every variant turns a
// source unit and a mode into text, either as one response or as a stream of
// chunks, behind the Adapter interface.
package backend

import (
	"context"
	"time"

	"github.com/valpere/playconv/internal"
	"github.com/valpere/playconv/internal/dialect"
)

// DefaultCollections are the retrieval collections used when none are configured.
var DefaultCollections = []string{"dialect-A-docs", "dialect-B-docs"}

const (
	DefaultMaxToolIterations = 4
	DefaultMaxTokens         = 2048
	DefaultTimeout           = 120 * time.Second
)

// Config is owned by the caller and must not be modified during a call.
type Config struct {
	Endpoint             string        `mapstructure:"endpoint" json:"endpoint"`
	Credential           string        `mapstructure:"credential" json:"-"`
	Model                string        `mapstructure:"model" json:"model"`
	Streaming            bool          `mapstructure:"streaming" json:"streaming"`
	RetrievalCollections []string      `mapstructure:"retrieval_collections" json:"retrieval_collections"`
	MaxToolIterations    int           `mapstructure:"max_tool_iterations" json:"max_tool_iterations"`
	MaxTokens            int           `mapstructure:"max_tokens" json:"max_tokens"`
	Temperature          float64       `mapstructure:"temperature" json:"temperature"`
	Timeout              time.Duration `mapstructure:"timeout" json:"timeout"`
}

// WithDefaults returns a copy of c with zero values replaced by defaults.
func (c Config) WithDefaults() Config {
	if len(c.RetrievalCollections) == 0 {
		c.RetrievalCollections = append([]string(nil), DefaultCollections...)
	}
	if c.MaxToolIterations <= 0 {
		c.MaxToolIterations = DefaultMaxToolIterations
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Request is the input of one Transform call.
type Request struct {
	Source  string
	Dialect dialect.Dialect
	Mode    internal.Mode
	// Hints maps source resources to target modules, e.g. cookbook_file -> copy.
	Hints map[string]string
}

// Result carries the chunks received, in arrival order. It is returned even
// when Transform fails so callers can inspect partial output.
type Result struct {
	Backend   string
	Model     string
	Chunks    []string
	Malformed []error
	Latency   time.Duration
	Metadata  map[string]string
}

// ChunkFunc receives each text chunk as it arrives.
type ChunkFunc func(chunk string)

// Adapter is a generative backend. Implementations must not share session
// state between calls.
type Adapter interface {
	Name() string
	Transform(ctx context.Context, cfg Config, req Request, onChunk ChunkFunc) (*Result, error)
}

func (r *Result) emit(onChunk ChunkFunc, text string) {
	if text == "" {
		return
	}
	r.Chunks = append(r.Chunks, text)
	if onChunk != nil {
		onChunk(text)
	}
}
