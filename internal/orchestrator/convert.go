package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/valpere/playconv/internal"
	"github.com/valpere/playconv/internal/aggregator"
	"github.com/valpere/playconv/internal/backend"
	"github.com/valpere/playconv/internal/ctxlog"
	"github.com/valpere/playconv/internal/diag"
	"github.com/valpere/playconv/internal/dialect"
	"github.com/valpere/playconv/internal/playbook"
	"github.com/valpere/playconv/internal/postprocess"
	"github.com/valpere/playconv/internal/sink"
	"github.com/valpere/playconv/internal/store"
	"github.com/valpere/playconv/internal/validator"
)

// item carries the mutable state of one conversion until it is frozen into
// a Result. It is never shared between goroutines.
type item struct {
	unit      internal.SourceUnit
	requestID string
	batchID   string
	status    Status
	raw       string
	text      string
	doc       *playbook.Document
	diags     []diag.Diagnostic
	cached    bool
	started   time.Time

	// memKey is set when the backend output is worth remembering once the
	// item finishes cleanly.
	memKey   *store.MemoryKey
	repaired bool
}

func (it *item) add(ds ...diag.Diagnostic) {
	it.diags = append(it.diags, ds...)
}

func (it *item) fail(d diag.Diagnostic) {
	it.add(d)
	it.status = StatusFailed
}

// ConvertOne runs the full pipeline for one source unit. Every failure is
// reported through the result's diagnostics; it never returns an error.
func (o *Orchestrator) ConvertOne(ctx context.Context, unit internal.SourceUnit) *Result {
	return o.convert(ctx, unit, "")
}

func (o *Orchestrator) convert(ctx context.Context, unit internal.SourceUnit, batchID string) *Result {
	it := &item{
		unit:      unit,
		requestID: uuid.NewString(),
		batchID:   batchID,
		status:    StatusSuccess,
		started:   time.Now(),
	}
	logger := ctxlog.FromContext(ctx).With("item", unit.ID, "mode", string(o.config.Mode))
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Info("conversion started", "dialect", unit.Dialect.String())

	o.run(ctx, it)

	r := &Result{
		ID:          unit.ID,
		RequestID:   it.requestID,
		Dialect:     unit.Dialect,
		Mode:        o.config.Mode,
		Status:      it.status,
		RawText:     it.raw,
		Text:        it.text,
		Playbook:    it.doc,
		Diagnostics: append([]diag.Diagnostic(nil), it.diags...),
		Cached:      it.cached,
		Latency:     time.Since(it.started),
	}

	o.log.Append(unit.ID, r.Diagnostics...)
	o.record(ctx, r, batchID)
	logger.Info("conversion finished", "status", string(r.Status), "diagnostics", len(r.Diagnostics), "latency", r.Latency)
	return r
}

func (o *Orchestrator) run(ctx context.Context, it *item) {
	mode := o.config.Mode

	if it.unit.Dialect == dialect.Unknown {
		if mode == internal.ModeConvert {
			it.fail(diag.Fail(diag.StageClassify, diag.CodeClassificationAmbiguous,
				"%v: refusing to convert %s", dialect.ErrAmbiguous, it.unit.ID))
			return
		}
		it.add(diag.Warn(diag.StageClassify, diag.CodeClassificationAmbiguous,
			"%v: analyzing %s with generic framing", dialect.ErrAmbiguous, it.unit.ID))
	}

	raw, ok := o.generate(ctx, it)
	if !ok {
		return
	}
	it.raw = raw

	switch mode {
	case internal.ModeAnalyze:
		o.finishAnalysis(ctx, it)
	default:
		o.finishPlaybook(ctx, it)
	}
	if it.status == StatusFailed {
		return
	}

	o.remember(ctx, it)
	o.write(ctx, it)
}

// remember saves backend output to memory only when replaying it yields a
// clean playbook or analysis.
func (o *Orchestrator) remember(ctx context.Context, it *item) {
	if o.memory == nil || it.memKey == nil || it.status != StatusSuccess || it.repaired {
		return
	}
	if err := o.memory.SaveMemory(ctx, *it.memKey, it.raw); err != nil {
		ctxlog.FromContext(ctx).Warn("memory save failed", "error", err)
	}
}

// generate returns the aggregated backend text, consulting memory first.
func (o *Orchestrator) generate(ctx context.Context, it *item) (string, bool) {
	logger := ctxlog.FromContext(ctx)
	hints := o.lookupHints(ctx, it.unit.Dialect)
	key := store.MemoryKey{
		Source:  it.unit.Content,
		Mode:    string(o.config.Mode),
		Backend: o.adapter.Name(),
		Model:   o.config.Backend.Model,
		Hints:   store.HintsFingerprint(hints),
	}

	if o.memory != nil {
		text, found, err := o.memory.GetMemory(ctx, key)
		if err != nil {
			logger.Warn("memory lookup failed", "error", err)
		} else if found {
			logger.Debug("memory hit")
			it.cached = true
			return text, true
		}
	}

	req := backend.Request{
		Source:  it.unit.Content,
		Dialect: it.unit.Dialect,
		Mode:    o.config.Mode,
		Hints:   hints,
	}

	callCtx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	collector := &aggregator.Collector{}
	res, err := o.transform(callCtx, req, func(chunk string) {
		collector.Add(chunk)
		if o.onChunk != nil {
			o.onChunk(it.unit.ID, chunk)
		}
	})

	if res != nil {
		for _, m := range res.Malformed {
			it.add(diag.Warn(diag.StageBackend, diag.CodeMalformedResponse, "%v", m))
		}
	}

	text := collector.Text()
	if res != nil && len(res.Chunks) > 0 {
		text = aggregator.Aggregate(res.Chunks)
	}

	if err != nil {
		o.backendFailure(callCtx, it, err, text)
		return "", false
	}

	if res != nil && text != "" && len(res.Malformed) == 0 {
		it.memKey = &key
	}
	return text, true
}

func (o *Orchestrator) backendFailure(callCtx context.Context, it *item, err error, partial string) {
	code := codeFor(err)
	timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded) && (code == diag.CodeTimeout || code == diag.CodeBackendTransport)
	if !timedOut {
		it.fail(diag.Fail(diag.StageBackend, code, "%v", err))
		return
	}

	if o.config.Mode == internal.ModeConvert {
		it.fail(diag.Fail(diag.StageBackend, diag.CodeTimeout,
			"backend call exceeded %s; partial output discarded", o.config.Timeout))
		return
	}
	it.fail(diag.Fail(diag.StageBackend, diag.CodeTimeout, "backend call exceeded %s", o.config.Timeout))
	if partial != "" {
		it.add(diag.Warn(diag.StageAggregate, diag.CodePartialOutput, "%s", partial))
	}
}

// transform calls the adapter and turns a panic into an error.
func (o *Orchestrator) transform(ctx context.Context, req backend.Request, onChunk backend.ChunkFunc) (res *backend.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("%w: %v", errPanic, r)
		}
	}()
	return o.adapter.Transform(ctx, o.config.Backend, req, onChunk)
}

func (o *Orchestrator) lookupHints(ctx context.Context, d dialect.Dialect) map[string]string {
	if o.hints == nil || d == dialect.Unknown || o.config.Mode != internal.ModeConvert {
		return nil
	}
	hints, err := o.hints.GetHints(ctx, d.String())
	if err != nil {
		ctxlog.FromContext(ctx).Warn("hint lookup failed", "error", err)
		return nil
	}
	return hints
}

func (o *Orchestrator) finishPlaybook(ctx context.Context, it *item) {
	text := postprocess.Clean(it.raw)
	if body, ok := postprocess.ExtractFenced(text); ok {
		text = body
	}

	outcome := playbook.Flatten(text)
	if outcome.Document == nil && o.repairer != nil {
		if repaired, ok := o.repair(ctx, it, text, outcome); ok {
			outcome = repaired
			it.repaired = true
		}
	}

	it.text = outcome.Text
	it.add(outcome.Diagnostics...)
	if outcome.Document == nil {
		it.status = StatusFallback
		return
	}
	it.doc = outcome.Document
	it.add(validator.Lint(outcome.Document)...)
}

// repair asks the repairer for a parseable rewrite. The original fallback
// stands unless the rewrite flattens cleanly.
func (o *Orchestrator) repair(ctx context.Context, it *item, text string, failed playbook.Outcome) (playbook.Outcome, bool) {
	logger := ctxlog.FromContext(ctx)
	parseErr := ""
	if len(failed.Diagnostics) > 0 {
		parseErr = failed.Diagnostics[0].Message
	}

	repaired, err := o.repairer.Repair(ctx, it.unit.Content, text, parseErr)
	if err != nil {
		logger.Warn("repair failed", "error", err)
		return failed, false
	}
	outcome := playbook.Flatten(repaired)
	if outcome.Document == nil {
		logger.Warn("repaired output still does not parse")
		return failed, false
	}
	outcome.Diagnostics = append(outcome.Diagnostics,
		diag.Warn(diag.StageFlatten, diag.CodeRepaired, "output rewritten after parse failure: %s", parseErr))
	return outcome, true
}

func (o *Orchestrator) finishAnalysis(ctx context.Context, it *item) {
	text := postprocess.Clean(it.raw)
	lang := strings.TrimSpace(o.config.Language)

	if lang != "" && o.localizer != nil && text != "" {
		res, err := o.localizer.Localize(ctx, text, lang)
		if err != nil {
			it.add(diag.Warn(diag.StageLocalize, diag.CodeLocalize, "%s: %v", o.localizer.Name(), err))
		} else {
			text = res.Text
			if res.LostMarkers > 0 {
				it.add(diag.Warn(diag.StageLocalize, diag.CodeLocalize,
					"%s dropped %d code spans", o.localizer.Name(), res.LostMarkers))
			}
		}
	}

	if lang != "" && o.validator != nil {
		base, _, _ := strings.Cut(lang, "-")
		if ok, err := o.validator.IsValid(text, base); !ok && err != nil {
			it.add(diag.Warn(diag.StageValidate, diag.CodeLocalize, "%v", err))
		}
	}
	it.text = text
}

func (o *Orchestrator) write(ctx context.Context, it *item) {
	if o.sink == nil {
		return
	}
	artifact := sink.Artifact{
		Identifier:  it.unit.ID,
		Mode:        o.config.Mode,
		Dialect:     it.unit.Dialect.String(),
		Backend:     o.adapter.Name(),
		Model:       o.config.Backend.Model,
		Text:        it.text,
		Diagnostics: append([]diag.Diagnostic(nil), it.diags...),
	}
	if err := o.sink.Write(ctx, artifact); err != nil {
		it.fail(diag.Fail(diag.StageSink, diag.CodeSink, "%v", err))
	}
}

// record stores the attempt in history. Failures are logged only.
func (o *Orchestrator) record(ctx context.Context, r *Result, batchID string) {
	if o.history == nil {
		return
	}
	logger := ctxlog.FromContext(ctx)
	// history is written even when the item's own context was cancelled
	ctx = context.WithoutCancel(ctx)

	req := internal.ConversionRequest{
		ID:         r.RequestID,
		BatchID:    batchID,
		Identifier: r.ID,
		Dialect:    r.Dialect.String(),
		Mode:       r.Mode,
		Backend:    o.adapter.Name(),
		Model:      o.config.Backend.Model,
		Timestamp:  time.Now(),
	}
	if err := o.history.SaveRequest(ctx, req); err != nil {
		logger.Warn("failed to save request", "error", err)
		return
	}

	diagnostics := []byte("[]")
	if len(r.Diagnostics) > 0 {
		if data, err := json.Marshal(r.Diagnostics); err == nil {
			diagnostics = data
		}
	}
	if err := o.history.SaveResult(ctx, r.RequestID, string(r.Status), r.Text, r.Latency.Milliseconds(), string(diagnostics)); err != nil {
		logger.Warn("failed to save result", "error", err)
	}
}
