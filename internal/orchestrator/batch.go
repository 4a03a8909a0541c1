package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/valpere/playconv/internal"
	"github.com/valpere/playconv/internal/ctxlog"
)

// BatchResult collects per-item results keyed by source unit ID.
type BatchResult struct {
	ID        string
	Results   map[string]*Result
	Skipped   []string
	Succeeded int
	Fallback  int
	Failed    int
}

// ConvertBatch converts units with at most Workers items in flight. One
// item's failure never stops the others. When batchID names an existing
// checkpoint, items that already finished without failing are skipped.
func (o *Orchestrator) ConvertBatch(ctx context.Context, batchID string, units []internal.SourceUnit) *BatchResult {
	if batchID == "" {
		batchID = uuid.NewString()
	}
	logger := ctxlog.FromContext(ctx).With("batch", batchID)
	ctx = ctxlog.WithLogger(ctx, logger)

	br := &BatchResult{
		ID:      batchID,
		Results: make(map[string]*Result, len(units)),
	}

	done := o.completed(ctx, batchID)
	seen := make(map[string]bool, len(units))
	var todo []internal.SourceUnit
	for _, u := range units {
		switch {
		case seen[u.ID]:
			logger.Warn("duplicate item skipped", "item", u.ID)
		case done[u.ID]:
			br.Skipped = append(br.Skipped, u.ID)
		default:
			todo = append(todo, u)
		}
		seen[u.ID] = true
	}

	total := int64(len(todo))
	logger.Info("batch started", "items", total, "skipped", len(br.Skipped), "workers", o.config.Workers)

	var mu sync.Mutex
	var finished atomic.Int64
	var g errgroup.Group
	g.SetLimit(o.config.Workers)

	for _, u := range todo {
		g.Go(func() error {
			r := o.convert(ctx, u, batchID)

			mu.Lock()
			br.Results[u.ID] = r
			switch r.Status {
			case StatusSuccess:
				br.Succeeded++
			case StatusFallback:
				br.Fallback++
			default:
				br.Failed++
			}
			mu.Unlock()

			if o.checkpoints != nil {
				if err := o.checkpoints.SaveItem(context.WithoutCancel(ctx), batchID, u.ID, string(r.Status)); err != nil {
					logger.Warn("failed to save checkpoint item", "item", u.ID, "error", err)
				}
			}

			o.progress.Add(1)
			n := finished.Add(1)
			if o.onProgress != nil {
				o.onProgress(n, total, r)
			}
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("batch finished", "succeeded", br.Succeeded, "fallback", br.Fallback, "failed", br.Failed)
	return br
}

// completed returns the IDs a previous run of batchID finished without failing.
func (o *Orchestrator) completed(ctx context.Context, batchID string) map[string]bool {
	out := make(map[string]bool)
	if o.checkpoints == nil {
		return out
	}
	items, err := o.checkpoints.CompletedItems(ctx, batchID)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("failed to load checkpoint", "error", err)
		return out
	}
	for id, status := range items {
		if Status(status) != StatusFailed {
			out[id] = true
		}
	}
	return out
}
