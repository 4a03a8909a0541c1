package orchestrator

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/valpere/playconv/internal"
	"github.com/valpere/playconv/internal/backend"
	"github.com/valpere/playconv/internal/diag"
	"github.com/valpere/playconv/internal/dialect"
	"github.com/valpere/playconv/internal/playbook"
	"github.com/valpere/playconv/internal/refiner"
	"github.com/valpere/playconv/internal/sink"
	"github.com/valpere/playconv/internal/store"
	"github.com/valpere/playconv/internal/translator"
	"github.com/valpere/playconv/internal/validator"
)

type OrchestratorConfig struct {
	Mode    internal.Mode
	Backend backend.Config
	// Workers bounds concurrent items in a batch. Zero or less means 1.
	Workers int
	// Timeout applies to each backend call. Zero uses Backend.Timeout.
	Timeout time.Duration
	// Language, when set, is the target language of analysis prose.
	Language string
}

// Status is the terminal state of one item.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusFallback Status = "fallback"
	StatusFailed   Status = "failed"
)

// Result is the outcome of converting one source unit. It is not modified
// after ConvertOne returns.
type Result struct {
	ID          string
	RequestID   string
	Dialect     dialect.Dialect
	Mode        internal.Mode
	Status      Status
	RawText     string
	Text        string
	Playbook    *playbook.Document
	Diagnostics []diag.Diagnostic
	Cached      bool
	Latency     time.Duration
}

// History records each conversion attempt.
type History interface {
	SaveRequest(ctx context.Context, req internal.ConversionRequest) error
	SaveResult(ctx context.Context, requestID, status, outputText string, latencyMs int64, diagnosticsJSON string) error
}

// HintSource supplies per-dialect module hints.
type HintSource interface {
	GetHints(ctx context.Context, dialect string) (map[string]string, error)
}

// Checkpoints tracks finished batch items for resume.
type Checkpoints interface {
	SaveItem(ctx context.Context, checkpointID, itemID, status string) error
	CompletedItems(ctx context.Context, checkpointID string) (map[string]string, error)
}

// ProgressFunc is called once per finished item with the running count.
type ProgressFunc func(done, total int64, r *Result)

type Orchestrator struct {
	adapter backend.Adapter
	sink    sink.Sink
	config  OrchestratorConfig

	memory      store.Memory
	history     History
	hints       HintSource
	checkpoints Checkpoints
	repairer    refiner.Repairer
	localizer   translator.Localizer
	validator   *validator.Validator
	onChunk     func(item, chunk string)
	onProgress  ProgressFunc

	log      *diag.Log
	progress atomic.Int64
}

type Option func(*Orchestrator)

func WithMemory(m store.Memory) Option { return func(o *Orchestrator) { o.memory = m } }
func WithHistory(h History) Option { return func(o *Orchestrator) { o.history = h } }
func WithHints(h HintSource) Option { return func(o *Orchestrator) { o.hints = h } }
func WithCheckpoints(c Checkpoints) Option { return func(o *Orchestrator) { o.checkpoints = c } }
func WithRepairer(r refiner.Repairer) Option { return func(o *Orchestrator) { o.repairer = r } }
func WithLocalizer(l translator.Localizer) Option { return func(o *Orchestrator) { o.localizer = l } }
func WithValidator(v *validator.Validator) Option { return func(o *Orchestrator) { o.validator = v } }
func WithProgress(fn ProgressFunc) Option { return func(o *Orchestrator) { o.onProgress = fn } }

// WithChunkHandler receives every chunk as it streams in, tagged with its item.
func WithChunkHandler(fn func(item, chunk string)) Option {
	return func(o *Orchestrator) { o.onChunk = fn }
}

// New builds an orchestrator around one adapter. A nil sink skips writing.
func New(adapter backend.Adapter, out sink.Sink, config OrchestratorConfig, opts ...Option) *Orchestrator {
	if config.Mode == "" {
		config.Mode = internal.ModeConvert
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	config.Backend = config.Backend.WithDefaults()
	if config.Timeout <= 0 {
		config.Timeout = config.Backend.Timeout
	}

	o := &Orchestrator{
		adapter: adapter,
		sink:    out,
		config:  config,
		log:     &diag.Log{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Log returns the diagnostics log shared by every item this orchestrator ran.
func (o *Orchestrator) Log() *diag.Log {
	return o.log
}

// Progress returns the number of items finished so far. It only increases.
func (o *Orchestrator) Progress() int64 {
	return o.progress.Load()
}
