package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/openrove/openrove/pkg/mission"
	"github.com/openrove/openrove/pkg/world"
)

func newRunCommand() *cobra.Command {
	var (
		continueOnFailure bool
		demo              bool
		place             []string
	)

	cmd := &cobra.Command{
		Use:   "run [mission-file]",
		Short: "Run a mission",
		Long: `Execute a mission file, or the built-in demo scenario, against the
simulated robot.

Steps are scheduled level by level from their requires/after constraints,
with independent steps running concurrently. Failed steps are retried with
exponential backoff up to their retry budget, and steps whose requirements
did not succeed are skipped. When the journal is enabled the run is
recorded as an episode for later inspection with "rove episodes".`,
		Example: `  # Run a mission
  rove run missions/patrol.yaml

  # Run the built-in demo scenario
  rove run --demo

  # Seed the simulated world with objects first
  rove run missions/fetch.yaml --place id=mug-1,type=mug,x=2.1,y=1.4

  # Keep independent steps running after a failure
  rove run missions/survey.yaml --continue-on-failure`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var m *mission.Mission
			switch {
			case demo && len(args) > 0:
				return errors.New("pass a mission file or --demo, not both")
			case demo:
				m = demoMission()
			case len(args) == 1:
				loaded, err := mission.Load(args[0])
				if err != nil {
					return err
				}
				m = loaded
			default:
				return errors.New("pass a mission file or --demo")
			}

			objects := make([]world.Object, 0, len(place))
			for _, spec := range place {
				obj, err := parseSimObject(spec)
				if err != nil {
					return err
				}
				objects = append(objects, obj)
			}

			ctx := cmd.Context()
			a, err := buildApp(ctx, runnerSettings{continueOnFailure: continueOnFailure})
			if err != nil {
				return err
			}
			defer a.Close()

			if demo {
				a.sim.PlaceObject(world.Object{ID: "demo-mug", Type: "mug", Pose: world.Pose{X: 2.4, Y: 1.6}})
			}
			for _, obj := range objects {
				a.sim.PlaceObject(obj)
			}

			result, runErr := a.runner.Run(ctx, m)
			if result != nil {
				if err := printResult(m, result); err != nil {
					return err
				}
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&continueOnFailure, "continue-on-failure", false, "keep independent steps running after a failure")
	cmd.Flags().BoolVar(&demo, "demo", false, "run the built-in demo scenario")
	cmd.Flags().StringArrayVar(&place, "place", nil, "seed the simulated world with an object (id=...,type=...,x=...,y=...)")

	return cmd
}

// demoMission is the self-contained scenario behind --demo: patrol two
// corners, fetch the seeded demo mug, return home. Pose targets only, so
// it needs no configured resolvers.
func demoMission() *mission.Mission {
	return &mission.Mission{
		Name:        "demo",
		Description: "Patrol two corners, fetch the demo mug, return home.",
		Steps: []mission.Step{
			{
				ID:     "corner-a",
				Goal:   mission.GoalAtLocation,
				Target: &mission.LocationSpec{Pose: &world.Pose{X: 2, Y: 0}},
			},
			{
				ID:     "corner-b",
				Goal:   mission.GoalAtLocation,
				After:  []string{"corner-a"},
				Target: &mission.LocationSpec{Pose: &world.Pose{X: 2, Y: 2}},
			},
			{
				ID:       "fetch-mug",
				Goal:     mission.GoalFetchObject,
				Requires: []string{"corner-b"},
				Object: &mission.ObjectSpec{
					Name:  "demo-mug",
					Props: map[string]interface{}{"type": "mug"},
				},
				Target:  &mission.LocationSpec{Pose: &world.Pose{X: 0.5, Y: 0.5}},
				Retries: 1,
			},
			{
				ID:     "home",
				Goal:   mission.GoalAtLocation,
				After:  []string{"fetch-mug"},
				Target: &mission.LocationSpec{Pose: &world.Pose{}},
			},
		},
	}
}

// parseSimObject parses a --place value such as "id=mug-1,type=mug,x=2.1,y=1.4".
func parseSimObject(spec string) (world.Object, error) {
	var obj world.Object
	for _, part := range strings.Split(spec, ",") {
		key, value, found := strings.Cut(part, "=")
		if !found {
			return obj, fmt.Errorf("invalid --place entry %q, expected key=value pairs", spec)
		}
		switch key {
		case "id":
			obj.ID = value
		case "type":
			obj.Type = value
		case "x", "y", "z", "yaw":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return obj, fmt.Errorf("invalid --place coordinate %s=%q: %w", key, value, err)
			}
			switch key {
			case "x":
				obj.Pose.X = f
			case "y":
				obj.Pose.Y = f
			case "z":
				obj.Pose.Z = f
			case "yaw":
				obj.Pose.Yaw = f
			}
		default:
			return obj, fmt.Errorf("unknown --place key %q", key)
		}
	}
	if obj.ID == "" || obj.Type == "" {
		return obj, fmt.Errorf("--place needs at least id and type: %q", spec)
	}
	return obj, nil
}

// printResult writes the run outcome to stdout, honoring --json. Steps are
// listed in mission declaration order.
func printResult(m *mission.Mission, result *mission.Result) error {
	if jsonOutput {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("\nMission %s finished %s in %s\n", result.Mission, result.Status, result.Duration.Round(time.Millisecond))
	fmt.Printf("Steps: %d total, %d succeeded, %d failed, %d skipped, %d cancelled\n\n",
		result.Summary.Total, result.Summary.Succeeded, result.Summary.Failed,
		result.Summary.Skipped, result.Summary.Cancelled)

	fmt.Printf("%-20s %-10s %9s %12s  %s\n", "STEP", "STATUS", "ATTEMPTS", "DURATION", "ERROR")
	for _, step := range m.Steps {
		sr, ok := result.Steps[step.ID]
		if !ok {
			continue
		}
		fmt.Printf("%-20s %-10s %9d %12s  %s\n",
			step.ID, sr.Status, sr.Attempts, sr.Duration.Round(time.Millisecond), sr.Error)
	}
	return nil
}
