package config_test

import (
	"fmt"

	"github.com/openrove/openrove/pkg/config"
)

func ExampleParse() {
	content := []byte(`
executive:
  pose_tolerance: 0.3
journal:
  path: "episodes.db"
`)

	cfg, err := config.Parse(content)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	fmt.Printf("Tolerance: %.2f, Retries: %d, Journal: %s\n",
		cfg.Executive.PoseTolerance,
		cfg.Executive.AtLocationRetryLimit,
		cfg.Journal.Path)
	// Output: Tolerance: 0.30, Retries: 10, Journal: episodes.db
}

func ExampleDefault() {
	cfg := config.Default()

	fmt.Printf("Robot: %s, Environment: %s, Policy: %s\n",
		cfg.Robot.Name, cfg.Robot.Environment, cfg.Policy.Mode)
	// Output: Robot: rove, Environment: simulation, Policy: enforcing
}
