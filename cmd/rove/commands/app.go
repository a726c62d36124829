package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openrove/openrove/pkg/config"
	"github.com/openrove/openrove/pkg/desig"
	"github.com/openrove/openrove/pkg/goal"
	"github.com/openrove/openrove/pkg/journal"
	"github.com/openrove/openrove/pkg/mission"
	"github.com/openrove/openrove/pkg/plan"
	"github.com/openrove/openrove/pkg/policy"
	"github.com/openrove/openrove/pkg/telemetry"
	"github.com/openrove/openrove/pkg/world"
)

// loadConfig reads the file named by --config, falling back to defaults
// when the flag is unset. --verbose forces debug logging.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	return cfg, nil
}

// app bundles the collaborators built from the loaded config: telemetry,
// the simulated robot, the policy gate, the episode journal, the goal
// executive and the mission runner.
type app struct {
	cfg      *config.Config
	tel      *telemetry.Telemetry
	sim      *world.Sim
	exec     *goal.Executive
	runner   *mission.Runner
	store    *journal.SQLiteStore
	recorder *journal.Recorder
	policies *policy.Engine
	watcher  *policy.Loader
}

// runnerSettings carries per-command runner tuning into buildApp.
type runnerSettings struct {
	continueOnFailure bool
}

// buildApp wires a full execution stack. Call Close when done with it.
func buildApp(ctx context.Context, settings runnerSettings) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	// Only the built-in simulated world is wired as a robot driver.
	if cfg.Robot.Environment != "simulation" {
		return nil, fmt.Errorf("environment %q has no robot driver in this build, use simulation", cfg.Robot.Environment)
	}

	tel, err := telemetry.NewTelemetry(cfg.ToTelemetry(appVersion))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a := &app{cfg: cfg, tel: tel, sim: world.NewSim()}

	if err := tel.StartMetricsServer(); err != nil {
		tel.Logger.Warnf("Failed to start metrics server: %v", err)
	}

	gate, err := a.buildGate(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Journal.Enabled {
		if err := a.openJournal(ctx); err != nil {
			a.Close()
			return nil, err
		}
		a.recorder.Attach(tel.Events)
	}

	tree := plan.NewTree()
	exec, err := goal.NewExecutive(goal.Options{
		PoseFeed:  a.sim,
		Navigator: a.sim,
		Perceptor: a.sim,
		Performer: a.sim,
		Sink:      a.sim,
		Tree:      tree,
		Belief:    world.NewBelief(cfg.Executive.BeliefTTL.Duration()),
		Gate:      gate,
		Logger:    tel.Logger,
		Metrics:   tel.Metrics,
		Events:    tel.Events,
		Tracer:    tel.Tracer,

		PoseTolerance:          cfg.Executive.PoseTolerance,
		AtLocationRetryLimit:   cfg.Executive.AtLocationRetryLimit,
		NavigationRetryLimit:   cfg.Executive.NavigationRetryLimit,
		ManipulationRetryLimit: cfg.Executive.ManipulationRetryLimit,
		PerceptionRetryLimit:   cfg.Executive.PerceptionRetryLimit,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to build executive: %w", err)
	}
	a.exec = exec

	resolvers, err := loadResolvers(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	runner, err := mission.NewRunner(mission.Options{
		Goals:             exec,
		Resolvers:         resolvers,
		MaxConcurrent:     cfg.Mission.MaxConcurrent,
		StepTimeout:       cfg.Mission.StepTimeout.Duration(),
		ContinueOnFailure: settings.continueOnFailure,
		Tree:              tree,
		Recorder:          a.recorder,
		Logger:            tel.Logger,
		Metrics:           tel.Metrics,
		Events:            tel.Events,
		Tracer:            tel.Tracer,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to build mission runner: %w", err)
	}
	a.runner = runner

	return a, nil
}

// buildGate assembles the policy gate when policies are enabled. In
// advisory mode violations are logged but never block.
func (a *app) buildGate(ctx context.Context) (goal.ActionGate, error) {
	if !a.cfg.Policy.Enabled {
		return nil, nil
	}

	eng, err := policy.NewEngine(log.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build policy engine: %w", err)
	}
	eng.SetEnvironment(a.cfg.Robot.Environment)

	paths := a.cfg.Policy.Paths
	if len(paths) > 0 {
		if err := eng.LoadPolicies(ctx, paths); err != nil {
			return nil, err
		}
	}
	a.policies = eng

	if a.cfg.Policy.Watch && len(paths) > 0 {
		loader := policy.NewLoader(log.Logger)
		reload := func([]policy.Policy) error {
			if err := eng.ReloadPolicies(ctx); err != nil {
				return err
			}
			return eng.LoadPolicies(ctx, paths)
		}
		if err := loader.Watch(ctx, paths, reload); err != nil {
			a.tel.Logger.Warnf("Failed to watch policy paths: %v", err)
		} else {
			a.watcher = loader
		}
	}

	if a.cfg.Policy.Mode == "advisory" {
		return &advisoryGate{inner: eng, log: a.tel.Logger}, nil
	}
	return eng, nil
}

// openJournal opens and migrates the episode store.
func (a *app) openJournal(ctx context.Context) error {
	store, err := journal.NewSQLiteStore(a.cfg.Journal.StoreConfig())
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	a.store = store
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize journal: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate journal: %w", err)
	}

	recorder, err := journal.NewRecorder(store, a.tel.Logger)
	if err != nil {
		return err
	}
	a.recorder = recorder
	return nil
}

// loadResolvers reads the configured Starlark scripts and registers them
// under their names.
func loadResolvers(cfg *config.Config) (map[string]desig.Resolver[world.Pose], error) {
	if len(cfg.Resolvers) == 0 {
		return nil, nil
	}
	resolvers := make(map[string]desig.Resolver[world.Pose], len(cfg.Resolvers))
	for _, rc := range cfg.Resolvers {
		src, err := os.ReadFile(rc.Script)
		if err != nil {
			return nil, fmt.Errorf("failed to read resolver script %s: %w", rc.Script, err)
		}
		resolvers[rc.Name] = desig.NewScriptResolver(rc.Name, string(src), rc.Timeout.Duration())
	}
	return resolvers, nil
}

// Close releases the app's collaborators in reverse build order.
func (a *app) Close() {
	if a.watcher != nil {
		if err := a.watcher.StopWatching(); err != nil {
			log.Warn().Err(err).Msg("Failed to stop policy watcher")
		}
	}
	if a.exec != nil {
		_ = a.exec.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close journal store")
		}
	}
	if a.tel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tel.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to shut down telemetry")
		}
	}
}

// advisoryGate reports policy violations without blocking actions.
type advisoryGate struct {
	inner goal.ActionGate
	log   *telemetry.Logger
}

func (g *advisoryGate) EvaluateAction(ctx context.Context, action policy.ActionInput) (*policy.Decision, error) {
	decision, err := g.inner.EvaluateAction(ctx, action)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		g.log.Warnf("Policy violation (advisory): %s", decision.Reason())
		cleared := *decision
		cleared.Allowed = true
		return &cleared, nil
	}
	return decision, nil
}

// openStore opens just the episode store for journal inspection commands.
func openStore(ctx context.Context) (*journal.SQLiteStore, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Journal.Enabled {
		return nil, nil, errors.New("the journal is disabled in the config")
	}

	store, err := journal.NewSQLiteStore(cfg.Journal.StoreConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to initialize journal: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to migrate journal: %w", err)
	}
	return store, cfg, nil
}
