package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openrove/openrove/pkg/journal"
)

const configTemplate = `# OpenRove configuration

robot:
  name: %s
  environment: simulation

executive:
  pose_tolerance: 0.15
  at_location_retry_limit: 10
  navigation_retry_limit: 3
  manipulation_retry_limit: 3
  perception_retry_limit: 2
  belief_ttl: 30s

resolvers:
  - name: near-table
    script: %s
    timeout: 5s

mission:
  max_concurrent: 2
  step_timeout: 5m

policy:
  enabled: true
  mode: enforcing
  watch: false

journal:
  enabled: true
  path: %s
  prune_after: 168h

telemetry:
  logging:
    level: info
    format: console
    output: stdout
  metrics:
    enabled: true
    listen_address: ":9090"
  tracing:
    enabled: false
    exporter: stdout
  events:
    enabled: true
`

const exampleMission = `name: fetch-demo
description: Navigate to the table, fetch the mug and deliver it to the counter.

steps:
  - id: goto-table
    goal: at_location
    target:
      resolver: near-table
      props:
        table: kitchen
    hold: 1s

  - id: fetch-mug
    goal: fetch_object
    requires: [goto-table]
    object:
      name: mug-1
      props:
        type: mug
    target:
      pose: {x: 4.0, y: 1.0}
    retries: 1

  - id: return-home
    goal: at_location
    after: [fetch-mug]
    target:
      pose: {x: 0.0, y: 0.0}
`

const exampleResolver = `# Candidate poses near the kitchen table, best first. The executive
# falls back to the next candidate when one turns out unreachable.

def candidates(props):
    table = props.get("table", "kitchen")
    if table == "kitchen":
        return [
            {"x": 2.0, "y": 1.0, "yaw": 1.57},
            {"x": 2.6, "y": 1.4, "yaw": 2.3},
            {"x": 1.4, "y": 1.4, "yaw": 0.8},
        ]
    return []
`

func newInitCommand() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a rove workspace",
		Long: `Initialize a rove workspace: a config file, the episode journal
database, an example mission and an example Starlark resolver.

The workspace is created in the current directory, or next to the file
given with --config.`,
		Example: `  # Initialize in the current directory
  rove init

  # Initialize elsewhere
  rove init --config /srv/rove/rove.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info().Str("config", configPath).Msg("Initializing workspace")

			baseDir := "."
			if configPath != "" {
				baseDir = filepath.Dir(configPath)
			}

			fmt.Printf("Initializing rove workspace in %s\n\n", baseDir)

			// Step 1: Create directory structure
			dirs := []string{
				baseDir,
				filepath.Join(baseDir, "missions"),
				filepath.Join(baseDir, "resolvers"),
			}
			for _, dir := range dirs {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("failed to create directory %s: %w", dir, err)
				}
				fmt.Printf("✓ Created directory: %s\n", dir)
			}

			// Step 2: Initialize the journal database
			dbPath := filepath.Join(baseDir, "rove.db")
			store, err := journal.NewSQLiteStore(journal.Config{Path: dbPath})
			if err != nil {
				return fmt.Errorf("failed to create journal: %w", err)
			}
			defer func() { _ = store.Close() }()

			ctx := cmd.Context()
			if err := store.Init(ctx); err != nil {
				return fmt.Errorf("failed to initialize journal: %w", err)
			}
			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			fmt.Printf("✓ Initialized journal database: %s\n", dbPath)

			// Step 3: Write the config file
			if configPath == "" {
				configPath = filepath.Join(baseDir, "rove.yaml")
			}
			resolverPath := filepath.Join(baseDir, "resolvers", "near_table.star")
			content := fmt.Sprintf(configTemplate, name, resolverPath, dbPath)
			if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
			fmt.Printf("✓ Created config file: %s\n", configPath)

			// Step 4: Write the example mission and resolver
			missionPath := filepath.Join(baseDir, "missions", "example.yaml")
			if err := os.WriteFile(missionPath, []byte(exampleMission), 0o644); err != nil {
				return fmt.Errorf("failed to write example mission: %w", err)
			}
			fmt.Printf("✓ Created example mission: %s\n", missionPath)

			if err := os.WriteFile(resolverPath, []byte(exampleResolver), 0o644); err != nil {
				return fmt.Errorf("failed to write example resolver: %w", err)
			}
			fmt.Printf("✓ Created example resolver: %s\n", resolverPath)

			fmt.Printf("\n✅ Workspace initialized successfully!\n\n")
			fmt.Printf("Next steps:\n")
			fmt.Printf("  1. Validate the example mission:\n")
			fmt.Printf("     rove -c %s validate %s\n\n", configPath, missionPath)
			fmt.Printf("  2. Run it against the simulated world:\n")
			fmt.Printf("     rove -c %s run %s --place id=mug-1,type=mug,x=2.2,y=1.2\n\n", configPath, missionPath)

			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "rove-1", "robot name written to the config")

	return cmd
}
