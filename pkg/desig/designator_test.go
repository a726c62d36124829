package desig

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/openrove/openrove/pkg/plan"
	"github.com/openrove/openrove/pkg/world"
)

func TestResolveBindsFirstCandidate(t *testing.T) {
	loc := NewLocation("near-table", map[string]interface{}{"near": "table-1"},
		NewStatic(world.Pose{X: 1}, world.Pose{X: 2}))

	if _, ok := loc.Current(); ok {
		t.Fatal("Expected designator to start unresolved")
	}

	pose, err := loc.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if pose.X != 1 {
		t.Fatalf("Expected first candidate, got %+v", pose)
	}

	current, ok := loc.Current()
	if !ok || current.X != 1 {
		t.Fatalf("Expected current solution bound to first candidate, got %+v ok=%v", current, ok)
	}
}

func TestResolveIsIdempotentOnceBound(t *testing.T) {
	calls := 0
	loc := NewLocation("spot", nil, ResolverFunc[world.Pose](
		func(context.Context, map[string]interface{}) ([]world.Pose, error) {
			calls++
			return []world.Pose{{X: 7}}, nil
		}))

	if _, err := loc.Resolve(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if _, err := loc.Resolve(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if calls != 1 {
		t.Fatalf("Expected one resolver call for repeated Resolve, got %d", calls)
	}
}

func TestResolveNoCandidatesFails(t *testing.T) {
	loc := NewLocation("nowhere", nil, NewStatic[world.Pose]())

	_, err := loc.Resolve(context.Background())
	if !plan.IsDesignatorUnresolvable(err) {
		t.Fatalf("Expected designator-unresolvable, got: %v", err)
	}
}

func TestResolvePassesThroughResolverFailure(t *testing.T) {
	boom := plan.NewDesignatorUnresolvable("scene")
	obj := NewObject("mug", nil, ResolverFunc[world.Object](
		func(context.Context, map[string]interface{}) ([]world.Object, error) {
			return nil, boom
		}))

	_, err := obj.Resolve(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Expected the resolver failure, got: %v", err)
	}
}

func TestNextSolutionStepsThroughCandidates(t *testing.T) {
	loc := NewLocation("spot", nil,
		NewStatic(world.Pose{X: 1}, world.Pose{X: 2}, world.Pose{X: 3}))

	ctx := context.Background()
	if _, err := loc.Resolve(ctx); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	pose, err := loc.NextSolution(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if pose.X != 2 {
		t.Fatalf("Expected second candidate, got %+v", pose)
	}

	pose, err = loc.NextSolution(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if pose.X != 3 {
		t.Fatalf("Expected third candidate, got %+v", pose)
	}
}

func TestNextSolutionExhaustionFailsAndKeepsBinding(t *testing.T) {
	loc := NewLocation("spot", nil, NewStatic(world.Pose{X: 1}))

	ctx := context.Background()
	if _, err := loc.Resolve(ctx); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	_, err := loc.NextSolution(ctx)
	if !plan.IsDesignatorUnresolvable(err) {
		t.Fatalf("Expected designator-unresolvable on exhaustion, got: %v", err)
	}

	current, ok := loc.Current()
	if !ok || current.X != 1 {
		t.Fatalf("Expected last binding kept after exhaustion, got %+v ok=%v", current, ok)
	}
}

func TestNextSolutionOnUnresolvedResolvesFirst(t *testing.T) {
	loc := NewLocation("spot", nil, NewStatic(world.Pose{X: 1}, world.Pose{X: 2}))

	pose, err := loc.NextSolution(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if pose.X != 1 {
		t.Fatalf("Expected first candidate from an unresolved designator, got %+v", pose)
	}
}

func TestRebindFluentPulsesOnEveryBinding(t *testing.T) {
	loc := NewLocation("spot", nil, NewStatic(world.Pose{X: 1}, world.Pose{X: 2}))
	ctx := context.Background()

	if got := loc.Rebinds().Value(); got != 0 {
		t.Fatalf("Expected zero rebinds initially, got %d", got)
	}

	_, _ = loc.Resolve(ctx)
	if got := loc.Rebinds().Value(); got != 1 {
		t.Fatalf("Expected 1 rebind after resolve, got %d", got)
	}

	_, _ = loc.NextSolution(ctx)
	if got := loc.Rebinds().Value(); got != 2 {
		t.Fatalf("Expected 2 rebinds after next solution, got %d", got)
	}

	loc.Equate(map[string]interface{}{"side": "left"})
	if got := loc.Rebinds().Value(); got != 3 {
		t.Fatalf("Expected 3 rebinds after equate, got %d", got)
	}
}

func TestEquateInvalidatesAndMergesProps(t *testing.T) {
	var gotProps map[string]interface{}
	calls := 0
	loc := NewLocation("spot", map[string]interface{}{"near": "table-1"},
		ResolverFunc[world.Pose](func(_ context.Context, props map[string]interface{}) ([]world.Pose, error) {
			calls++
			gotProps = props
			return []world.Pose{{X: float64(calls)}}, nil
		}))

	ctx := context.Background()
	if _, err := loc.Resolve(ctx); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	loc.Equate(map[string]interface{}{"side": "left"})

	if _, ok := loc.Current(); ok {
		t.Fatal("Expected equate to invalidate the binding")
	}

	pose, err := loc.Resolve(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if pose.X != 2 {
		t.Fatalf("Expected a fresh candidate fetch, got %+v", pose)
	}
	if gotProps["near"] != "table-1" || gotProps["side"] != "left" {
		t.Fatalf("Expected merged properties, got %v", gotProps)
	}
}

func TestOnRebindCallback(t *testing.T) {
	loc := NewLocation("spot", nil, NewStatic(world.Pose{X: 1}, world.Pose{X: 2}))

	var mu sync.Mutex
	fired := 0
	remove := loc.OnRebind(func() {
		mu.Lock()
		fired++
		mu.Unlock()
	})

	ctx := context.Background()
	_, _ = loc.Resolve(ctx)
	_, _ = loc.NextSolution(ctx)
	remove()
	loc.Equate(nil)

	mu.Lock()
	defer mu.Unlock()
	if fired != 2 {
		t.Fatalf("Expected 2 callbacks before removal, got %d", fired)
	}
}

func TestWaitOnRebindFluent(t *testing.T) {
	loc := NewLocation("spot", nil, NewStatic(world.Pose{X: 1}))

	done := make(chan struct{})
	go func() {
		_, _ = loc.Rebinds().WaitFor(context.Background(), func(n int) bool { return n > 0 })
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("Expected waiter to block before any rebind")
	default:
	}

	loc.Equate(map[string]interface{}{"side": "left"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected equate to wake the rebind waiter")
	}
}

// A handler bounded at N stops retrying after N attempts even when the
// designator still has alternatives left.
func TestBoundedRetryStopsWithAlternativesRemaining(t *testing.T) {
	candidates := make([]world.Pose, 10)
	for i := range candidates {
		candidates[i] = world.Pose{X: float64(i)}
	}
	loc := NewLocation("spot", nil, NewStatic(candidates...))

	ctx := context.Background()
	if _, err := loc.Resolve(ctx); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	boom := plan.NewUnreachable("reachable-for", nil)
	retries := plan.NewCounter("navigation")
	attempts := 0

	err := plan.Handling(ctx,
		func(ctx context.Context) error {
			attempts++
			return boom
		},
		plan.On(plan.FailureUnreachable, func(f *plan.Failure) plan.Decision {
			return plan.DoRetry(retries, 2, func() {
				_, _ = loc.NextSolution(ctx)
			})
		}),
	)

	if !errors.Is(err, boom) {
		t.Fatalf("Expected the original failure after the bound, got: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("Expected initial attempt plus 2 retries, got %d", attempts)
	}

	current, _ := loc.Current()
	if current.X != 2 {
		t.Fatalf("Expected designator stepped twice, got %+v", current)
	}
	if _, err := loc.NextSolution(ctx); err != nil {
		t.Fatalf("Expected alternatives to remain after the bound, got: %v", err)
	}
}
