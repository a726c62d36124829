package mission

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/openrove/openrove/pkg/config"
	"github.com/openrove/openrove/pkg/desig"
	"github.com/openrove/openrove/pkg/journal"
	"github.com/openrove/openrove/pkg/plan"
	"github.com/openrove/openrove/pkg/world"
)

// fakeGoals scripts goal outcomes by designator name and records calls.
type fakeGoals struct {
	mu         sync.Mutex
	delay      time.Duration
	calls      []string
	failures   map[string]int
	block      map[string]bool
	bodies     map[string]bool
	running    int
	maxRunning int
}

func newFakeGoals() *fakeGoals {
	return &fakeGoals{
		failures: make(map[string]int),
		block:    make(map[string]bool),
		bodies:   make(map[string]bool),
	}
}

func (f *fakeGoals) failTimes(name string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[name] = n
}

func (f *fakeGoals) blockOn(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.block[name] = true
}

func (f *fakeGoals) AtLocation(ctx context.Context, loc *desig.Location, body plan.Step) error {
	f.mu.Lock()
	f.bodies[loc.Name()] = body != nil
	f.mu.Unlock()
	if err := f.run(ctx, loc.Name()); err != nil {
		return err
	}
	if body != nil {
		return body(ctx)
	}
	return nil
}

func (f *fakeGoals) FetchObject(ctx context.Context, obj *desig.Object, at *desig.Location) error {
	if at == nil {
		return errors.New("fetch without a target location")
	}
	return f.run(ctx, obj.Name())
}

func (f *fakeGoals) ObjectDesignator(name string, props map[string]interface{}) *desig.Object {
	return desig.NewObject(name, props, desig.NewStatic[world.Object]())
}

func (f *fakeGoals) run(ctx context.Context, name string) error {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.running++
	if f.running > f.maxRunning {
		f.maxRunning = f.running
	}
	fail := f.failures[name] > 0
	if fail {
		f.failures[name]--
	}
	blocked := f.block[name]
	delay := f.delay
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.running--
		f.mu.Unlock()
	}()

	if blocked {
		<-ctx.Done()
		return ctx.Err()
	}
	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	if fail {
		return plan.NewUnreachable("target", errors.New("scripted failure"))
	}
	return nil
}

func (f *fakeGoals) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeGoals) order() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeGoals) peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxRunning
}

func (f *fakeGoals) sawBody(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[name]
}

// newTestRunner builds a runner with a short retry backoff and optional
// option mutations.
func newTestRunner(t *testing.T, goals GoalRunner, mutate ...func(*Options)) *Runner {
	t.Helper()
	opts := Options{
		Goals:        goals,
		RetryBackoff: time.Millisecond,
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	r, err := NewRunner(opts)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	return r
}

func TestNewRunnerRequiresGoals(t *testing.T) {
	if _, err := NewRunner(Options{}); err == nil {
		t.Fatal("expected error for missing goal executive")
	}
}

func TestRunSequentialChain(t *testing.T) {
	goals := newFakeGoals()
	r := newTestRunner(t, goals)

	res, err := r.Run(context.Background(), makeMission(
		makeStep("a"),
		makeStep("b", requires("a")),
		makeStep("c", requires("b")),
	))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Status != StatusSucceeded {
		t.Errorf("Status = %s, want succeeded", res.Status)
	}
	if res.MissionID == "" {
		t.Error("MissionID is empty")
	}
	if res.Summary.Total != 3 || res.Summary.Succeeded != 3 {
		t.Errorf("Summary = %+v, want 3/3 succeeded", res.Summary)
	}
	want := []string{"a", "b", "c"}
	got := goals.order()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("calls = %v, want %v", got, want)
		}
	}
	if res.Steps["a"].Attempts != 1 {
		t.Errorf("step a attempts = %d, want 1", res.Steps["a"].Attempts)
	}
}

// rendezvousGoals only succeeds once the expected number of steps run at
// the same time, proving in-level parallelism.
type rendezvousGoals struct {
	mu      sync.Mutex
	needed  int
	arrived int
	release chan struct{}
}

func newRendezvousGoals(needed int) *rendezvousGoals {
	return &rendezvousGoals{needed: needed, release: make(chan struct{})}
}

func (g *rendezvousGoals) meet(ctx context.Context) error {
	g.mu.Lock()
	g.arrived++
	if g.arrived == g.needed {
		close(g.release)
	}
	g.mu.Unlock()
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *rendezvousGoals) AtLocation(ctx context.Context, _ *desig.Location, _ plan.Step) error {
	return g.meet(ctx)
}

func (g *rendezvousGoals) FetchObject(ctx context.Context, _ *desig.Object, _ *desig.Location) error {
	return g.meet(ctx)
}

func (g *rendezvousGoals) ObjectDesignator(name string, props map[string]interface{}) *desig.Object {
	return desig.NewObject(name, props, desig.NewStatic[world.Object]())
}

func TestRunIndependentStepsOverlap(t *testing.T) {
	goals := newRendezvousGoals(2)
	r := newTestRunner(t, goals, func(o *Options) { o.MaxConcurrent = 2 })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := r.Run(ctx, makeMission(makeStep("a"), makeStep("b")))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Status != StatusSucceeded {
		t.Errorf("Status = %s, want succeeded", res.Status)
	}
}

func TestRunHonorsConcurrencyLimit(t *testing.T) {
	goals := newFakeGoals()
	goals.delay = 10 * time.Millisecond
	r := newTestRunner(t, goals, func(o *Options) { o.MaxConcurrent = 1 })

	res, err := r.Run(context.Background(), makeMission(
		makeStep("a"), makeStep("b"), makeStep("c"),
	))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Status != StatusSucceeded {
		t.Errorf("Status = %s, want succeeded", res.Status)
	}
	if goals.peak() != 1 {
		t.Errorf("peak concurrency = %d, want 1", goals.peak())
	}
}

func TestRunSkipsWhenRequirementFails(t *testing.T) {
	goals := newFakeGoals()
	goals.failTimes("a", 1)
	r := newTestRunner(t, goals, func(o *Options) { o.ContinueOnFailure = true })

	res, err := r.Run(context.Background(), makeMission(
		makeStep("a"),
		makeStep("c"),
		makeStep("b", requires("a")),
	))
	if err == nil {
		t.Fatal("expected run error")
	}
	if !strings.Contains(err.Error(), "step a") {
		t.Errorf("error %q does not name step a", err)
	}

	if res.Status != StatusPartial {
		t.Errorf("Status = %s, want partial", res.Status)
	}
	if res.Summary.Succeeded != 1 || res.Summary.Failed != 1 || res.Summary.Skipped != 1 {
		t.Errorf("Summary = %+v, want 1 succeeded, 1 failed, 1 skipped", res.Summary)
	}
	if goals.callCount("b") != 0 {
		t.Error("skipped step b still ran")
	}
	if got := res.Steps["b"]; got.Status != StepSkipped || !strings.Contains(got.Error, "required step a") {
		t.Errorf("step b result = %+v, want skipped naming step a", got)
	}
}

func TestRunFailFastSkipsLaterLevels(t *testing.T) {
	goals := newFakeGoals()
	goals.failTimes("a", 1)
	r := newTestRunner(t, goals)

	res, err := r.Run(context.Background(), makeMission(
		makeStep("a"),
		makeStep("b", after("a")),
	))
	if err == nil {
		t.Fatal("expected run error")
	}

	if res.Status != StatusFailed {
		t.Errorf("Status = %s, want failed", res.Status)
	}
	if goals.callCount("b") != 0 {
		t.Error("step b ran after the mission stopped")
	}
	if got := res.Steps["b"]; got.Status != StepSkipped {
		t.Errorf("step b status = %s, want skipped", got.Status)
	}
}

func TestRunContinueOnFailureRunsAfterSteps(t *testing.T) {
	goals := newFakeGoals()
	goals.failTimes("a", 1)
	r := newTestRunner(t, goals, func(o *Options) { o.ContinueOnFailure = true })

	res, err := r.Run(context.Background(), makeMission(
		makeStep("a"),
		makeStep("b", after("a")),
	))
	if err == nil {
		t.Fatal("expected run error")
	}

	if res.Status != StatusPartial {
		t.Errorf("Status = %s, want partial", res.Status)
	}
	if goals.callCount("b") != 1 {
		t.Errorf("step b ran %d times, want 1", goals.callCount("b"))
	}
	if res.Steps["b"].Status != StepSucceeded {
		t.Errorf("step b status = %s, want succeeded", res.Steps["b"].Status)
	}
}

func TestRunRetriesUntilSuccess(t *testing.T) {
	goals := newFakeGoals()
	goals.failTimes("a", 2)
	r := newTestRunner(t, goals)

	res, err := r.Run(context.Background(), makeMission(
		makeStep("a", func(s *Step) { s.Retries = 3 }),
	))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Status != StatusSucceeded {
		t.Errorf("Status = %s, want succeeded", res.Status)
	}
	if goals.callCount("a") != 3 {
		t.Errorf("step a ran %d times, want 3", goals.callCount("a"))
	}
	if res.Steps["a"].Attempts != 3 {
		t.Errorf("step a attempts = %d, want 3", res.Steps["a"].Attempts)
	}
}

func TestRunRetryBudgetExhausted(t *testing.T) {
	goals := newFakeGoals()
	goals.failTimes("a", 5)
	r := newTestRunner(t, goals)

	res, err := r.Run(context.Background(), makeMission(
		makeStep("a", func(s *Step) { s.Retries = 1 }),
	))
	if err == nil || !strings.Contains(err.Error(), "step a") {
		t.Fatalf("expected step a failure, got %v", err)
	}

	if res.Status != StatusFailed {
		t.Errorf("Status = %s, want failed", res.Status)
	}
	if goals.callCount("a") != 2 {
		t.Errorf("step a ran %d times, want 2", goals.callCount("a"))
	}
	if res.Steps["a"].Status != StepFailed {
		t.Errorf("step a status = %s, want failed", res.Steps["a"].Status)
	}
}

func TestRunStepTimeout(t *testing.T) {
	goals := newFakeGoals()
	goals.blockOn("a")
	r := newTestRunner(t, goals)

	res, err := r.Run(context.Background(), makeMission(
		makeStep("a", func(s *Step) { s.Timeout = config.Duration(50 * time.Millisecond) }),
	))
	if err == nil {
		t.Fatal("expected run error")
	}

	if res.Status != StatusFailed {
		t.Errorf("Status = %s, want failed", res.Status)
	}
	got := res.Steps["a"]
	if got.Status != StepFailed {
		t.Errorf("step a status = %s, want failed", got.Status)
	}
	if !strings.Contains(got.Error, "deadline") {
		t.Errorf("step a error = %q, want a deadline error", got.Error)
	}
}

func TestRunDefaultStepTimeout(t *testing.T) {
	goals := newFakeGoals()
	goals.blockOn("a")
	r := newTestRunner(t, goals, func(o *Options) { o.StepTimeout = 50 * time.Millisecond })

	res, err := r.Run(context.Background(), makeMission(makeStep("a")))
	if err == nil {
		t.Fatal("expected run error")
	}
	if res.Steps["a"].Status != StepFailed {
		t.Errorf("step a status = %s, want failed", res.Steps["a"].Status)
	}
}

func TestRunAborted(t *testing.T) {
	goals := newFakeGoals()
	goals.blockOn("a")
	r := newTestRunner(t, goals)

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(50*time.Millisecond, cancel)
	defer timer.Stop()
	defer cancel()

	res, err := r.Run(ctx, makeMission(
		makeStep("a"),
		makeStep("b", requires("a")),
	))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	if res.Status != StatusAborted {
		t.Errorf("Status = %s, want aborted", res.Status)
	}
	if res.Steps["a"].Status != StepCancelled {
		t.Errorf("step a status = %s, want cancelled", res.Steps["a"].Status)
	}
	if res.Steps["b"].Status != StepCancelled {
		t.Errorf("step b status = %s, want cancelled", res.Steps["b"].Status)
	}
	if goals.callCount("b") != 0 {
		t.Error("step b ran in an aborted mission")
	}
}

func TestRunResolverTarget(t *testing.T) {
	goals := newFakeGoals()
	r := newTestRunner(t, goals, func(o *Options) {
		o.Resolvers = map[string]desig.Resolver[world.Pose]{
			"near-table": desig.NewStatic(world.Pose{X: 5}),
		}
	})

	res, err := r.Run(context.Background(), makeMission(
		makeStep("a", func(s *Step) {
			s.Target = &LocationSpec{Resolver: "near-table"}
		}),
	))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Status != StatusSucceeded {
		t.Errorf("Status = %s, want succeeded", res.Status)
	}
	if goals.callCount("a") != 1 {
		t.Errorf("step a ran %d times, want 1", goals.callCount("a"))
	}
}

func TestRunUnknownResolverFailsFast(t *testing.T) {
	goals := newFakeGoals()
	r := newTestRunner(t, goals)

	res, err := r.Run(context.Background(), makeMission(
		makeStep("a", func(s *Step) {
			s.Target = &LocationSpec{Resolver: "ghost"}
		}),
	))
	if err == nil || !strings.Contains(err.Error(), `unknown resolver "ghost"`) {
		t.Fatalf("expected unknown resolver error, got %v", err)
	}
	if res != nil {
		t.Error("expected nil result before execution starts")
	}
	if len(goals.order()) != 0 {
		t.Error("steps ran despite the failed pre-check")
	}
}

func TestRunHoldPassesBody(t *testing.T) {
	goals := newFakeGoals()
	r := newTestRunner(t, goals)

	res, err := r.Run(context.Background(), makeMission(
		makeStep("a", func(s *Step) { s.Hold = config.Duration(10 * time.Millisecond) }),
		makeStep("b", requires("a")),
	))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !goals.sawBody("a") {
		t.Error("hold step a ran without a body")
	}
	if goals.sawBody("b") {
		t.Error("plain step b received a body")
	}
	if res.Steps["a"].Duration < 10*time.Millisecond {
		t.Errorf("step a finished in %v, want at least the 10ms hold", res.Steps["a"].Duration)
	}
}

func TestRunnerReusableAcrossRuns(t *testing.T) {
	goals := newFakeGoals()
	r := newTestRunner(t, goals)
	m := makeMission(makeStep("a"))

	for i := 0; i < 2; i++ {
		res, err := r.Run(context.Background(), m)
		if err != nil {
			t.Fatalf("run %d failed: %v", i, err)
		}
		if res.Steps["a"].Attempts != 1 {
			t.Errorf("run %d attempts = %d, want 1", i, res.Steps["a"].Attempts)
		}
	}
	if goals.callCount("a") != 2 {
		t.Errorf("step a ran %d times, want 2", goals.callCount("a"))
	}
}

func newTestRecorder(t *testing.T) (*journal.Recorder, *journal.SQLiteStore) {
	t.Helper()
	store, err := journal.NewSQLiteStore(journal.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("store init failed: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("store migrate failed: %v", err)
	}

	rec, err := journal.NewRecorder(store, nil)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}
	return rec, store
}

func TestRunRecordsEpisode(t *testing.T) {
	rec, store := newTestRecorder(t)
	goals := newFakeGoals()
	r := newTestRunner(t, goals, func(o *Options) { o.Recorder = rec })

	if _, err := r.Run(context.Background(), makeMission(
		makeStep("a"),
		makeStep("b", requires("a")),
	)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	ctx := context.Background()
	episodes, err := store.ListEpisodes(ctx, nil, 10, 0)
	if err != nil {
		t.Fatalf("ListEpisodes failed: %v", err)
	}
	if len(episodes) != 1 {
		t.Fatalf("expected 1 episode, got %d", len(episodes))
	}
	ep := episodes[0]
	if ep.Mission != "test" {
		t.Errorf("episode mission = %q, want test", ep.Mission)
	}
	if ep.Status != journal.EpisodeStatusSucceeded {
		t.Errorf("episode status = %s, want succeeded", ep.Status)
	}

	tasks, err := store.ListTasksByEpisode(ctx, ep.ID)
	if err != nil {
		t.Fatalf("ListTasksByEpisode failed: %v", err)
	}
	found := false
	for _, task := range tasks {
		if task.Name == "mission:test" {
			found = true
		}
	}
	if !found {
		t.Errorf("task tree has no mission root, got %d tasks", len(tasks))
	}
}

func TestRunJournalsFailedMission(t *testing.T) {
	rec, store := newTestRecorder(t)
	goals := newFakeGoals()
	goals.failTimes("a", 1)
	r := newTestRunner(t, goals, func(o *Options) { o.Recorder = rec })

	if _, err := r.Run(context.Background(), makeMission(makeStep("a"))); err == nil {
		t.Fatal("expected run error")
	}

	episodes, err := store.ListEpisodes(context.Background(), nil, 10, 0)
	if err != nil {
		t.Fatalf("ListEpisodes failed: %v", err)
	}
	if len(episodes) != 1 {
		t.Fatalf("expected 1 episode, got %d", len(episodes))
	}
	if episodes[0].Status != journal.EpisodeStatusFailed {
		t.Errorf("episode status = %s, want failed", episodes[0].Status)
	}
}
