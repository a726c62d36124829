// Package config provides YAML configuration loading and validation for
// the OpenRove executive.
//
// # Overview
//
// The config package loads a single YAML file describing a rove process:
// the robot's identity, the executive's tolerances and retry limits, the
// designator resolvers, the policy gate, the journal and the telemetry
// stack. Files are decoded on top of the defaults, so a partial document
// only overrides what it names and an empty file is a valid
// configuration.
//
// # Components
//
// Config: The root configuration tree. Validated with struct tags plus a
// few cross-field checks, and converted into the telemetry and journal
// configurations with ToTelemetry and StoreConfig.
//
// Watcher: Reloads the file when it changes on disk, with debouncing. A
// change that fails to parse or validate is logged and the previous
// configuration stays in effect.
//
// # Usage Example
//
//	cfg, err := config.Load("rove.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store, err := journal.NewSQLiteStore(cfg.Journal.StoreConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Configuration Structure
//
// A typical configuration:
//
//	robot:
//	  name: "rove-1"
//	  environment: "lab"
//
//	executive:
//	  pose_tolerance: 0.15
//	  at_location_retry_limit: 10
//
//	resolvers:
//	  - name: "table-poses"
//	    script: "resolvers/table_poses.star"
//
//	policy:
//	  enabled: true
//	  mode: "enforcing"
//	  paths: ["policies/"]
//
//	journal:
//	  path: "rove.db"
//	  prune_after: "168h"
//
// Durations use Go syntax, such as "500ms", "30s" or "5m".
//
// # Thread Safety
//
// A loaded Config is read-only and safe to share. The Watcher delivers
// each reloaded Config to the callback on a background goroutine.
package config
