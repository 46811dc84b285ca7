package pipeline

import (
	"context"
	"log/slog"

	"ferry/internal/logging"
	"ferry/internal/services"
	"ferry/internal/stage"
)

// Handler processes one item. On success it returns the items to forward
// downstream; they are ignored on failure.
type Handler func(ctx context.Context, item Item) (stage.Result, []Item)

// Stage is a named handler placed in the graph.
type Stage struct {
	Name    string
	Handler Handler
}

type worker struct {
	stage  Stage
	in     *Queue
	out    *Queue
	stats  *StageStats
	logger *slog.Logger
}

func (w *worker) run(ctx context.Context) {
	seen := make(map[string]struct{})
	for {
		item, ok := w.in.Get()
		if !ok {
			w.out.PutSentinel()
			w.logger.Debug("sentinel forwarded",
				logging.String(logging.FieldEventType, "sentinel_forwarded"),
				logging.String("to", w.out.Name()),
			)
			return
		}
		w.stats.Received++

		id := item.identity()
		if _, dup := seen[id]; dup {
			w.stats.Duplicates++
			logging.WarnWithContext(w.logger, "duplicate item dropped", "duplicate_item",
				logging.String(logging.FieldUnit, item.Key),
				logging.String("path", item.Path),
				logging.String(logging.FieldImpact, "item already handled in this run"),
			)
			continue
		}
		seen[id] = struct{}{}

		itemCtx := services.WithStage(services.WithUnit(ctx, item.Key), w.stage.Name)
		result, next := w.stage.Handler(itemCtx, item)
		if !result.OK {
			w.stats.Failed++
			w.stats.FailedUnits = append(w.stats.FailedUnits, item.Key)
			continue
		}
		if result.Skipped {
			w.stats.Skipped++
		} else {
			w.stats.Succeeded++
		}
		for _, out := range next {
			w.out.Put(out)
		}
	}
}
