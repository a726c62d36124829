package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openrove/openrove/pkg/mission"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [mission-file...]",
		Short: "Validate the config and mission files",
		Long: `Check the configuration and any given mission files without running
anything.

Mission files are checked for:
  - YAML syntax and unknown fields
  - Step schema (goals, targets, objects, retry budgets)
  - Dependency references and cycles
  - Resolver names against the configured resolvers`,
		Example: `  # Validate just the config
  rove validate

  # Validate mission files as well
  rove validate missions/patrol.yaml missions/fetch.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Println("✓ Config is valid")

			known := make(map[string]bool, len(cfg.Resolvers))
			for _, rc := range cfg.Resolvers {
				known[rc.Name] = true
			}

			failed := 0
			for _, path := range args {
				if err := validateMission(path, known); err != nil {
					fmt.Printf("✗ %s: %v\n", path, err)
					failed++
					continue
				}
				fmt.Printf("✓ %s\n", path)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d mission files failed validation", failed, len(args))
			}
			return nil
		},
	}

	return cmd
}

// validateMission checks one mission file end to end: schema, dependency
// graph and resolver references.
func validateMission(path string, resolvers map[string]bool) error {
	m, err := mission.Load(path)
	if err != nil {
		return err
	}
	if _, err := mission.BuildGraph(m); err != nil {
		return err
	}
	for _, step := range m.Steps {
		if step.Target != nil && step.Target.Resolver != "" && !resolvers[step.Target.Resolver] {
			return fmt.Errorf("step %s uses unknown resolver %q", step.ID, step.Target.Resolver)
		}
	}
	return nil
}
