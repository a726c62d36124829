package mission

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/openrove/openrove/pkg/desig"
	"github.com/openrove/openrove/pkg/journal"
	"github.com/openrove/openrove/pkg/plan"
	"github.com/openrove/openrove/pkg/telemetry"
	"github.com/openrove/openrove/pkg/world"
)

// Default tuning for the runner.
const (
	DefaultMaxConcurrent = 2
	DefaultRetryBackoff  = time.Second

	maxRetryBackoff = time.Minute
)

// GoalRunner executes mission goals. *goal.Executive satisfies it.
type GoalRunner interface {
	AtLocation(ctx context.Context, loc *desig.Location, body plan.Step) error
	FetchObject(ctx context.Context, obj *desig.Object, at *desig.Location) error
	ObjectDesignator(name string, props map[string]interface{}) *desig.Object
}

// Options configures a Runner. Goals is required, everything else has a
// working default.
type Options struct {
	// Goals runs the individual mission steps.
	Goals GoalRunner

	// Resolvers maps the resolver names referenced by location specs to
	// pose resolvers.
	Resolvers map[string]desig.Resolver[world.Pose]

	// MaxConcurrent bounds how many steps of one level run in parallel.
	MaxConcurrent int

	// StepTimeout bounds a single attempt of steps that carry no timeout
	// of their own. Zero leaves those attempts unbounded.
	StepTimeout time.Duration

	// RetryBackoff is the base delay between attempts of a failed step.
	RetryBackoff time.Duration

	// ContinueOnFailure keeps later levels running after a step fails.
	// Steps that require the failed one are still skipped.
	ContinueOnFailure bool

	// Tree collects the task hierarchy of the run and is journaled with
	// the episode when a Recorder is set. Share it with the executive so
	// goal tasks nest under the mission task.
	Tree *plan.Tree

	// Recorder journals one episode per run when set.
	Recorder *journal.Recorder

	Logger  *telemetry.Logger
	Metrics *telemetry.Metrics
	Events  *telemetry.EventPublisher
	Tracer  *telemetry.Tracer
}

// Runner executes missions level by level. Within a level steps run
// concurrently up to MaxConcurrent; a level starts only after the
// previous one finished. A Runner is safe to reuse for sequential runs.
type Runner struct {
	goals             GoalRunner
	resolvers         map[string]desig.Resolver[world.Pose]
	maxConcurrent     int
	stepTimeout       time.Duration
	retryBackoff      time.Duration
	continueOnFailure bool
	tree              *plan.Tree
	recorder          *journal.Recorder

	log     *telemetry.Logger
	metrics *telemetry.Metrics
	events  *telemetry.EventPublisher
	tracer  *telemetry.Tracer
}

// Result summarizes a finished mission run.
type Result struct {
	MissionID string                 `json:"mission_id"`
	Mission   string                 `json:"mission"`
	Status    Status                 `json:"status"`
	StartedAt time.Time              `json:"started_at"`
	Duration  time.Duration          `json:"duration"`
	Summary   Summary                `json:"summary"`
	Steps     map[string]*StepResult `json:"steps"`
}

// Summary counts step outcomes.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Cancelled int `json:"cancelled"`
}

// StepResult records the outcome of one step.
type StepResult struct {
	Status   StepStatus    `json:"status"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// NewRunner builds a mission runner.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Goals == nil {
		return nil, errors.New("mission runner needs a goal executive")
	}

	r := &Runner{
		goals:             opts.Goals,
		resolvers:         opts.Resolvers,
		maxConcurrent:     opts.MaxConcurrent,
		stepTimeout:       opts.StepTimeout,
		retryBackoff:      opts.RetryBackoff,
		continueOnFailure: opts.ContinueOnFailure,
		tree:              opts.Tree,
		recorder:          opts.Recorder,
		log:               opts.Logger,
		metrics:           opts.Metrics,
		events:            opts.Events,
		tracer:            opts.Tracer,
	}

	if r.maxConcurrent <= 0 {
		r.maxConcurrent = DefaultMaxConcurrent
	}
	if r.retryBackoff <= 0 {
		r.retryBackoff = DefaultRetryBackoff
	}
	if r.tree == nil {
		r.tree = plan.NewTree()
	}

	if r.log == nil {
		logger, err := telemetry.NewLogger(telemetry.LoggingConfig{
			Level:  "error",
			Format: "json",
			Output: "stderr",
		})
		if err != nil {
			return nil, fmt.Errorf("default logger: %w", err)
		}
		r.log = logger
	}
	r.log = r.log.NewComponentLogger("mission")

	if r.metrics == nil {
		m, err := telemetry.NewMetrics(telemetry.MetricsConfig{Enabled: false})
		if err != nil {
			return nil, fmt.Errorf("default metrics: %w", err)
		}
		r.metrics = m
	}
	if r.events == nil {
		ep, err := telemetry.NewEventPublisher(telemetry.EventsConfig{Enabled: false})
		if err != nil {
			return nil, fmt.Errorf("default events: %w", err)
		}
		r.events = ep
	}
	if r.tracer == nil {
		tr, err := telemetry.NewTracer(telemetry.TracingConfig{Enabled: false}, "rove", "", "")
		if err != nil {
			return nil, fmt.Errorf("default tracer: %w", err)
		}
		r.tracer = tr
	}

	return r, nil
}

// Tree returns the task tree the runner journals with each episode.
func (r *Runner) Tree() *plan.Tree {
	return r.tree
}

// Run executes the mission and blocks until it finishes. The returned
// Result is non-nil whenever execution started; the error is nil only
// when every step succeeded.
func (r *Runner) Run(ctx context.Context, m *Mission) (*Result, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	graph, err := BuildGraph(m)
	if err != nil {
		return nil, err
	}
	if err := r.checkResolvers(m); err != nil {
		return nil, err
	}

	missionID := uuid.New().String()
	started := time.Now()

	ctx, span := r.tracer.StartMissionSpan(ctx, missionID)
	defer span.End()

	log := r.log.WithMissionID(missionID)
	log.Infof("Starting mission %s with %d steps across %d levels",
		m.Name, len(m.Steps), graph.Depth())

	began := false
	if r.recorder != nil {
		if _, err := r.recorder.Begin(ctx, m.Name, map[string]interface{}{
			"mission_id": missionID,
			"steps":      len(m.Steps),
			"levels":     graph.Depth(),
		}); err != nil {
			log.WithError(err).Warn("Failed to begin episode, continuing without journal")
		} else {
			began = true
		}
	}

	_ = r.events.PublishMissionStarted(missionID, m.Name)

	st := newRunState(graph)
	treeCtx, finishMission := r.tree.Begin(ctx, "mission:"+m.Name, map[string]interface{}{
		"mission_id": missionID,
	})

	stopped := false
	for i, level := range graph.Levels() {
		if stopped || ctx.Err() != nil {
			break
		}
		log.Debugf("Running level %d with %d steps", i, len(level))

		var g errgroup.Group
		g.SetLimit(r.maxConcurrent)
		for _, id := range level {
			step := graph.Step(id)
			if ok, blocker := st.requiresMet(step); !ok {
				st.skip(step.ID, blocker)
				r.metrics.RecordMissionStep(string(StepSkipped))
				log.Warnf("Skipping step %s, required step %s did not succeed", step.ID, blocker)
				continue
			}
			g.Go(func() error {
				r.runStep(treeCtx, st, missionID, step)
				return nil
			})
		}
		// Step outcomes land in st, the group only bounds concurrency.
		_ = g.Wait()

		if !r.continueOnFailure && st.levelFailed(level) {
			stopped = true
		}
	}

	st.finalize(ctx.Err() != nil)
	summary := st.summarize()

	var status Status
	switch {
	case ctx.Err() != nil:
		status = StatusAborted
	case summary.Failed == 0 && summary.Skipped == 0 && summary.Cancelled == 0:
		status = StatusSucceeded
	case summary.Succeeded > 0:
		status = StatusPartial
	default:
		status = StatusFailed
	}

	var runErr error
	switch {
	case status == StatusAborted:
		runErr = ctx.Err()
	case status != StatusSucceeded:
		runErr = st.firstError()
		if runErr == nil {
			runErr = fmt.Errorf("mission %s finished %s", m.Name, status)
		}
	}
	finishMission(runErr)

	duration := time.Since(started)
	if runErr == nil {
		telemetry.RecordSuccess(span)
		_ = r.events.PublishMissionCompleted(missionID, string(status), duration)
		log.Infof("Mission %s succeeded in %s", m.Name, duration.Round(time.Millisecond))
	} else {
		telemetry.RecordError(span, runErr)
		_ = r.events.PublishMissionFailed(missionID, runErr.Error())
		log.WithError(runErr).Errorf("Mission %s finished %s after %s",
			m.Name, status, duration.Round(time.Millisecond))
	}

	if began {
		// The run context may already be cancelled; the outcome still
		// has to reach the journal.
		if err := r.recorder.Finish(context.WithoutCancel(ctx), r.tree, runErr); err != nil {
			log.WithError(err).Warn("Failed to finish episode")
		}
	}

	return &Result{
		MissionID: missionID,
		Mission:   m.Name,
		Status:    status,
		StartedAt: started,
		Duration:  duration,
		Summary:   summary,
		Steps:     st.results,
	}, runErr
}

// checkResolvers fails fast when a step references a resolver that was
// never registered.
func (r *Runner) checkResolvers(m *Mission) error {
	for i := range m.Steps {
		step := &m.Steps[i]
		if step.Target == nil || step.Target.Resolver == "" {
			continue
		}
		if _, ok := r.resolvers[step.Target.Resolver]; !ok {
			return fmt.Errorf("step %s uses unknown resolver %q", step.ID, step.Target.Resolver)
		}
	}
	return nil
}

// runStep executes one step with its retry budget and records the
// outcome.
func (r *Runner) runStep(ctx context.Context, st *runState, missionID string, step *Step) {
	log := r.log.WithMissionID(missionID).WithField("step", step.ID)
	st.setRunning(step.ID)
	started := time.Now()

	var err error
	attempts := 0
retry:
	for attempt := 0; attempt <= step.Retries; attempt++ {
		attempts++
		err = r.attempt(ctx, step)
		if err == nil || attempt == step.Retries || !retryable(ctx, err) {
			break
		}

		delay := r.backoff(attempt)
		kind := string(plan.KindOf(err))
		log.Warnf("Step %s failed: %v, retry %d/%d in %s",
			step.ID, err, attempt+1, step.Retries, delay)
		_ = r.events.PublishRetryAttempted(step.ID, kind, attempt+1)
		r.metrics.RecordRetry(kind)

		select {
		case <-ctx.Done():
			err = ctx.Err()
			break retry
		case <-time.After(delay):
		}
	}

	res := &StepResult{Attempts: attempts, Duration: time.Since(started)}
	switch {
	case err == nil:
		res.Status = StepSucceeded
		log.Infof("Step %s succeeded in %s", step.ID, res.Duration.Round(time.Millisecond))
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		res.Status = StepCancelled
		res.Error = err.Error()
		log.Warnf("Step %s cancelled after %s", step.ID, res.Duration.Round(time.Millisecond))
	default:
		res.Status = StepFailed
		res.Error = err.Error()
		st.fail(fmt.Errorf("step %s: %w", step.ID, err))
		r.metrics.RecordFailure(string(plan.KindOf(err)))
		log.WithError(err).Errorf("Step %s failed after %d attempts", step.ID, attempts)
	}
	st.finish(step.ID, res)
	r.metrics.RecordMissionStep(string(res.Status))
}

// attempt runs the step's goal once, bounded by the step timeout.
func (r *Runner) attempt(ctx context.Context, step *Step) error {
	timeout := step.Timeout.Duration()
	if timeout <= 0 {
		timeout = r.stepTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	switch step.Goal {
	case GoalAtLocation:
		loc, err := r.location(step)
		if err != nil {
			return err
		}
		return r.goals.AtLocation(ctx, loc, holdStep(step.Hold.Duration()))
	case GoalFetchObject:
		loc, err := r.location(step)
		if err != nil {
			return err
		}
		obj := r.goals.ObjectDesignator(step.ObjectName(), step.Object.Props)
		return r.goals.FetchObject(ctx, obj, loc)
	default:
		return fmt.Errorf("unknown goal type %q", step.Goal)
	}
}

// location builds the target designator for a step, either from a fixed
// pose or from a registered resolver.
func (r *Runner) location(step *Step) (*desig.Location, error) {
	spec := step.Target
	if spec.Pose != nil {
		return desig.NewLocation(step.ID, spec.Props, desig.NewStatic(*spec.Pose)), nil
	}
	resolver, ok := r.resolvers[spec.Resolver]
	if !ok {
		return nil, fmt.Errorf("step %s uses unknown resolver %q", step.ID, spec.Resolver)
	}
	return desig.NewLocation(step.ID, spec.Props, resolver), nil
}

// holdStep parks the goal body at the target for d. Returning nil hands
// AtLocation a goal that completes as soon as the location is reached.
func holdStep(d time.Duration) plan.Step {
	if d <= 0 {
		return nil
	}
	return func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
			return nil
		}
	}
}

// backoff grows the retry delay exponentially from the base, capped at
// maxRetryBackoff, with a deterministic quarter-delay jitter.
func (r *Runner) backoff(attempt int) time.Duration {
	delay := time.Duration(float64(r.retryBackoff) * math.Pow(2, float64(attempt-1)))
	if delay > maxRetryBackoff {
		delay = maxRetryBackoff
	}
	jitter := time.Duration(float64(delay) * 0.25)
	return delay + jitter/2
}

// retryable reports whether a failed attempt is worth repeating. Attempt
// timeouts are, cancellation of the run is not.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

// runState tracks per-step progress of one Run call.
type runState struct {
	mu       sync.Mutex
	statuses map[string]StepStatus
	results  map[string]*StepResult
	firstErr error
}

func newRunState(g *Graph) *runState {
	st := &runState{
		statuses: make(map[string]StepStatus, len(g.order)),
		results:  make(map[string]*StepResult, len(g.order)),
	}
	for _, id := range g.order {
		st.statuses[id] = StepPending
	}
	return st
}

func (st *runState) setRunning(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.statuses[id] = StepRunning
}

func (st *runState) finish(id string, res *StepResult) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.statuses[id] = res.Status
	st.results[id] = res
}

func (st *runState) skip(id, blocker string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.statuses[id] = StepSkipped
	st.results[id] = &StepResult{
		Status: StepSkipped,
		Error:  fmt.Sprintf("required step %s did not succeed", blocker),
	}
}

func (st *runState) fail(err error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.firstErr == nil {
		st.firstErr = err
	}
}

func (st *runState) firstError() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.firstErr
}

// requiresMet reports whether every required step succeeded, naming the
// first blocker otherwise.
func (st *runState) requiresMet(step *Step) (bool, string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, dep := range step.Requires {
		if st.statuses[dep] != StepSucceeded {
			return false, dep
		}
	}
	return true, ""
}

func (st *runState) levelFailed(level []string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, id := range level {
		if st.statuses[id] == StepFailed {
			return true
		}
	}
	return false
}

// finalize marks steps that never ran: cancelled when the run was
// aborted, skipped when it stopped after a failure.
func (st *runState) finalize(aborted bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for id, status := range st.statuses {
		if status.IsTerminal() {
			continue
		}
		res := &StepResult{Status: StepSkipped, Error: "mission stopped before this step"}
		if aborted {
			res.Status = StepCancelled
			res.Error = "mission aborted"
		}
		st.statuses[id] = res.Status
		st.results[id] = res
	}
}

func (st *runState) summarize() Summary {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := Summary{Total: len(st.statuses)}
	for _, status := range st.statuses {
		switch status {
		case StepSucceeded:
			s.Succeeded++
		case StepFailed:
			s.Failed++
		case StepSkipped:
			s.Skipped++
		case StepCancelled:
			s.Cancelled++
		}
	}
	return s
}
