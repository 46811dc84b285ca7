package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ferry/internal/logging"
)

// Graph wires stages in sequence with bounded queues.
type Graph struct {
	stages     []Stage
	capacities []int
	logger     *slog.Logger
}

// NewGraph builds a graph for stages. capacities lists the size of the unit
// queue followed by the queue after each stage, so it needs len(stages)+1
// entries.
func NewGraph(stages []Stage, capacities []int, logger *slog.Logger) (*Graph, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("pipeline: at least one stage is required")
	}
	if len(capacities) != len(stages)+1 {
		return nil, fmt.Errorf("pipeline: %d stages need %d queue capacities, got %d", len(stages), len(stages)+1, len(capacities))
	}
	for _, st := range stages {
		if st.Handler == nil {
			return nil, fmt.Errorf("pipeline: stage %q has no handler", st.Name)
		}
	}
	return &Graph{
		stages:     append([]Stage(nil), stages...),
		capacities: append([]int(nil), capacities...),
		logger:     logging.NewComponentLogger(logger, "pipeline"),
	}, nil
}

// Run feeds units through the graph and blocks until the final sentinel is
// drained. Cancelling ctx stops the feeder from admitting further units; the
// handlers receive a context that is not cancelled so in-flight units finish.
func (g *Graph) Run(ctx context.Context, units []Item) Report {
	start := time.Now()
	work := context.WithoutCancel(ctx)

	queues := make([]*Queue, len(g.stages)+1)
	queues[0] = NewQueue("units", g.capacities[0])
	for i, st := range g.stages {
		queues[i+1] = NewQueue(st.Name+"_out", g.capacities[i+1])
	}

	stats := make([]StageStats, len(g.stages))
	var wg sync.WaitGroup
	for i, st := range g.stages {
		stats[i].Name = st.Name
		w := &worker{
			stage:  st,
			in:     queues[i],
			out:    queues[i+1],
			stats:  &stats[i],
			logger: g.logger.With(logging.String(logging.FieldStage, st.Name)),
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.run(work)
		}()
	}

	fed := make(chan feedResult, 1)
	go func() { fed <- g.feed(ctx, queues[0], units) }()

	var completed []string
	done := queues[len(queues)-1]
	for {
		item, ok := done.Get()
		if !ok {
			break
		}
		completed = append(completed, item.Key)
	}
	wg.Wait()
	feedOutcome := <-fed

	return Report{
		Fed:         feedOutcome.fed,
		Completed:   completed,
		Stages:      stats,
		Interrupted: feedOutcome.interrupted,
		Duration:    time.Since(start),
	}
}

type feedResult struct {
	fed         int
	interrupted bool
}

// feed puts units on q until they run out or ctx is cancelled, then emits
// the single sentinel.
func (g *Graph) feed(ctx context.Context, q *Queue, units []Item) feedResult {
	var res feedResult
	for _, unit := range units {
		if ctx.Err() != nil {
			res.interrupted = true
			g.logger.Warn("run interrupted; no further units admitted",
				logging.String(logging.FieldEventType, "run_interrupted"),
				logging.Int("remaining", len(units)-res.fed),
			)
			break
		}
		q.Put(unit)
		res.fed++
	}
	q.PutSentinel()
	return res
}
