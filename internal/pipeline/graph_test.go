package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"ferry/internal/logging"
	"ferry/internal/pipeline"
	"ferry/internal/stage"
)

func passThrough(name string) pipeline.Stage {
	return pipeline.Stage{
		Name: name,
		Handler: func(_ context.Context, item pipeline.Item) (stage.Result, []pipeline.Item) {
			return stage.Success(), []pipeline.Item{{Key: item.Key, Path: name + "/" + item.Key}}
		},
	}
}

func units(keys ...string) []pipeline.Item {
	out := make([]pipeline.Item, len(keys))
	for i, key := range keys {
		out[i] = pipeline.Item{Key: key}
	}
	return out
}

func TestGraphCompletesAllUnits(t *testing.T) {
	graph, err := pipeline.NewGraph(
		[]pipeline.Stage{passThrough("fetch"), passThrough("unpack"), passThrough("transform"), passThrough("publish")},
		[]int{1, 2, 5, 50, 50},
		logging.NewNop(),
	)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	report := graph.Run(context.Background(), units("1", "2", "3"))

	if report.Fed != 3 || report.Interrupted {
		t.Fatalf("unexpected feed stats %+v", report)
	}
	if !slices.Equal(report.Completed, []string{"1", "2", "3"}) {
		t.Fatalf("unexpected completed units %v", report.Completed)
	}
	for _, st := range report.Stages {
		if st.Received != 3 || st.Succeeded != 3 || st.Failed != 0 {
			t.Fatalf("unexpected stats %+v", st)
		}
	}
}

func TestGraphFailureStopsUnitOnly(t *testing.T) {
	failing := pipeline.Stage{
		Name: "unpack",
		Handler: func(_ context.Context, item pipeline.Item) (stage.Result, []pipeline.Item) {
			if item.Key == "2" {
				return stage.Failure(errors.New("zip: not a valid zip file")), []pipeline.Item{item}
			}
			return stage.Success(), []pipeline.Item{item}
		},
	}
	graph, err := pipeline.NewGraph([]pipeline.Stage{passThrough("fetch"), failing, passThrough("publish")}, []int{1, 1, 1, 1}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	report := graph.Run(context.Background(), units("1", "2", "3"))

	if !slices.Equal(report.Completed, []string{"1", "3"}) {
		t.Fatalf("unexpected completed units %v", report.Completed)
	}
	st, _ := report.Stage("unpack")
	if st.Failed != 1 || st.Succeeded != 2 || !slices.Equal(st.FailedUnits, []string{"2"}) {
		t.Fatalf("unexpected unpack stats %+v", st)
	}
	if publish, _ := report.Stage("publish"); publish.Received != 2 {
		t.Fatalf("failed unit must not reach publish: %+v", publish)
	}
	if !slices.Equal(report.Failed(), []string{"2"}) {
		t.Fatalf("unexpected failed list %v", report.Failed())
	}
}

func TestGraphDropsDuplicates(t *testing.T) {
	graph, err := pipeline.NewGraph([]pipeline.Stage{passThrough("fetch")}, []int{1, 5}, logging.NewNop())
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	report := graph.Run(context.Background(), units("1", "1", "2"))
	st, _ := report.Stage("fetch")
	if st.Duplicates != 1 || st.Succeeded != 2 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if len(report.Completed) != 2 {
		t.Fatalf("unexpected completed %v", report.Completed)
	}
}

func TestGraphCountsSkips(t *testing.T) {
	skipping := pipeline.Stage{
		Name: "fetch",
		Handler: func(_ context.Context, item pipeline.Item) (stage.Result, []pipeline.Item) {
			return stage.Result{OK: true, Skipped: true}, []pipeline.Item{item}
		},
	}
	graph, _ := pipeline.NewGraph([]pipeline.Stage{skipping}, []int{1, 1}, logging.NewNop())
	report := graph.Run(context.Background(), units("1"))
	if st, _ := report.Stage("fetch"); st.Skipped != 1 || st.Succeeded != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if len(report.Completed) != 1 {
		t.Fatal("skipped unit should still flow downstream")
	}
}

func TestGraphManyUnitsWithSmallQueues(t *testing.T) {
	keys := make([]string, 200)
	for i := range keys {
		keys[i] = fmt.Sprintf("%05d", i)
	}
	graph, _ := pipeline.NewGraph([]pipeline.Stage{passThrough("a"), passThrough("b"), passThrough("c")}, []int{1, 1, 1, 1}, logging.NewNop())
	report := graph.Run(context.Background(), units(keys...))
	if len(report.Completed) != len(keys) {
		t.Fatalf("expected %d completed, got %d", len(keys), len(report.Completed))
	}
}

func TestGraphStopsFeedingWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	graph, _ := pipeline.NewGraph([]pipeline.Stage{passThrough("fetch")}, []int{1, 1}, logging.NewNop())
	report := graph.Run(ctx, units("1", "2"))
	if report.Fed != 0 || !report.Interrupted || len(report.Completed) != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestGraphHandlersOutliveCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var once sync.Once
	var handlerErr error
	var mu sync.Mutex
	st := pipeline.Stage{
		Name: "fetch",
		Handler: func(hctx context.Context, item pipeline.Item) (stage.Result, []pipeline.Item) {
			once.Do(cancel)
			mu.Lock()
			if hctx.Err() != nil {
				handlerErr = hctx.Err()
			}
			mu.Unlock()
			return stage.Success(), []pipeline.Item{item}
		},
	}
	graph, _ := pipeline.NewGraph([]pipeline.Stage{st}, []int{1, 10}, logging.NewNop())
	report := graph.Run(ctx, units("1", "2", "3", "4", "5"))
	if handlerErr != nil {
		t.Fatalf("handler context was cancelled: %v", handlerErr)
	}
	if report.Fed == 0 || len(report.Completed) != report.Fed {
		t.Fatalf("in-flight units should finish: %+v", report)
	}
}

func TestNewGraphValidates(t *testing.T) {
	if _, err := pipeline.NewGraph(nil, []int{1}, nil); err == nil {
		t.Fatal("expected error for no stages")
	}
	if _, err := pipeline.NewGraph([]pipeline.Stage{passThrough("a")}, []int{1}, nil); err == nil {
		t.Fatal("expected error for wrong capacity count")
	}
	if _, err := pipeline.NewGraph([]pipeline.Stage{{Name: "a"}}, []int{1, 1}, nil); err == nil {
		t.Fatal("expected error for missing handler")
	}
}
