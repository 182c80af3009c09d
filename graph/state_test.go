package graph_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/JaimeStill/gather/graph"
)

func runSingle(t *testing.T, steps ...graph.Step[deps]) *graph.Outcome {
	t.Helper()

	g, err := graph.New("state", steps...)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	r := graph.NewRunner(g, nil)
	return r.Run(context.Background(), steps[0].Name(), graph.NewState("https://example.org"), deps{}, graph.RunOptions{})
}

func TestScopePut(t *testing.T) {
	t.Run("undeclared slot", func(t *testing.T) {
		var putErr error
		runSingle(t, graph.NewStep("a", []string{graph.EdgeSuccess}, []string{"mine"},
			func(_ context.Context, sc *graph.Scope, _ deps) (graph.Next, error) {
				putErr = sc.Put("other", 1)
				return graph.Succeed(nil), nil
			}))

		if !errors.Is(putErr, graph.ErrUndeclaredSlot) {
			t.Errorf("got %v, want ErrUndeclaredSlot", putErr)
		}
	})

	t.Run("second write in one invocation", func(t *testing.T) {
		var putErr error
		o := runSingle(t, graph.NewStep("a", []string{graph.EdgeSuccess}, []string{"mine"},
			func(_ context.Context, sc *graph.Scope, _ deps) (graph.Next, error) {
				if err := sc.Put("mine", 1); err != nil {
					return graph.Next{}, err
				}
				putErr = sc.Put("mine", 2)
				return graph.Succeed(nil), nil
			}))

		if !errors.Is(putErr, graph.ErrSlotRewritten) {
			t.Errorf("got %v, want ErrSlotRewritten", putErr)
		}
		if v, _ := graph.Get[int](o.State, "mine"); v != 1 {
			t.Errorf("slot value: got %d, want 1", v)
		}
	})

	t.Run("slot owned by another step", func(t *testing.T) {
		var putErr error
		runSingle(t,
			graph.NewStep("a", []string{"b"}, []string{"shared"},
				func(_ context.Context, sc *graph.Scope, _ deps) (graph.Next, error) {
					return graph.Goto("b"), sc.Put("shared", "a")
				}),
			graph.NewStep("b", []string{graph.EdgeSuccess}, []string{"shared"},
				func(_ context.Context, sc *graph.Scope, _ deps) (graph.Next, error) {
					putErr = sc.Put("shared", "b")
					return graph.Succeed(nil), nil
				}),
		)

		if !errors.Is(putErr, graph.ErrSlotOwned) {
			t.Errorf("got %v, want ErrSlotOwned", putErr)
		}
	})

	t.Run("revisit overwrites own slot", func(t *testing.T) {
		o := runSingle(t, graph.NewStep("a", []string{"a", graph.EdgeSuccess}, []string{"count"},
			func(_ context.Context, sc *graph.Scope, _ deps) (graph.Next, error) {
				if err := sc.Put("count", sc.Visit()); err != nil {
					return graph.Next{}, err
				}
				if sc.Visit() < 3 {
					return graph.Goto("a"), nil
				}
				return graph.Succeed(nil), nil
			}))

		if !o.Succeeded() {
			t.Fatalf("run failed: %s %v", o.Reason, o.Err)
		}
		if v, _ := graph.Get[int](o.State, "count"); v != 3 {
			t.Errorf("count: got %d, want 3", v)
		}
		if names := o.State.Names(); len(names) != 1 {
			t.Errorf("names: got %v, want one slot", names)
		}
	})
}

func TestStateOrderAndJSON(t *testing.T) {
	o := runSingle(t, graph.NewStep("a", []string{graph.EdgeSuccess}, []string{"zeta", "alpha", "mid"},
		func(_ context.Context, sc *graph.Scope, _ deps) (graph.Next, error) {
			for _, slot := range []string{"zeta", "alpha", "mid"} {
				if err := sc.Put(slot, slot); err != nil {
					return graph.Next{}, err
				}
			}
			sc.IncrementAttempts()
			sc.RecordError("transport", errors.New("reset"))
			return graph.Succeed(nil), nil
		}))

	names := o.State.Names()
	want := []string{"zeta", "alpha", "mid"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names: got %v, want %v", names, want)
		}
	}

	data, err := json.Marshal(o.State)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	s := string(data)

	if strings.Index(s, `"zeta"`) > strings.Index(s, `"alpha"`) {
		t.Errorf("collected order lost: %s", s)
	}
	if !strings.Contains(s, `"attempt_count":1`) {
		t.Errorf("attempt_count missing: %s", s)
	}
	if !strings.Contains(s, `"target":"https://example.org"`) {
		t.Errorf("target missing: %s", s)
	}

	errs := o.State.Errors()
	if len(errs) != 1 || errs[0].Reason != "transport" || errs[0].Attempt != 1 {
		t.Errorf("errors: got %+v", errs)
	}
}

func TestGetTypeMismatch(t *testing.T) {
	o := runSingle(t, graph.NewStep("a", []string{graph.EdgeSuccess}, []string{"v"},
		func(_ context.Context, sc *graph.Scope, _ deps) (graph.Next, error) {
			return graph.Succeed(nil), sc.Put("v", "text")
		}))

	if _, ok := graph.Get[int](o.State, "v"); ok {
		t.Error("Get[int] on string slot should report false")
	}
	if v, ok := graph.Get[string](o.State, "v"); !ok || v != "text" {
		t.Errorf("Get[string]: got %q, %v", v, ok)
	}
	if _, ok := graph.Get[string](o.State, "missing"); ok {
		t.Error("missing slot should report false")
	}
}

func TestSealedAfterRun(t *testing.T) {
	var captured *graph.Scope
	o := runSingle(t, graph.NewStep("a", []string{graph.EdgeSuccess}, []string{"late"},
		func(_ context.Context, sc *graph.Scope, _ deps) (graph.Next, error) {
			captured = sc
			return graph.Succeed(nil), nil
		}))

	if !o.State.Sealed() {
		t.Fatal("state not sealed after run")
	}
	if err := captured.Put("late", 1); !errors.Is(err, graph.ErrStateSealed) {
		t.Errorf("late Put: got %v, want ErrStateSealed", err)
	}
	captured.RecordError("late", errors.New("late"))
	if len(o.State.Errors()) != 0 {
		t.Error("late error appended to sealed state")
	}
}
