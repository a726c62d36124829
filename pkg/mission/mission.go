package mission

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openrove/openrove/pkg/config"
	"github.com/openrove/openrove/pkg/world"
)

var validate = validator.New()

// GoalType selects which executive goal a step runs.
type GoalType string

const (
	// GoalAtLocation drives the robot to a target location and optionally
	// holds it there.
	GoalAtLocation GoalType = "at_location"

	// GoalFetchObject perceives an object and picks it up at a location.
	GoalFetchObject GoalType = "fetch_object"
)

// Mission is a named set of goal steps with ordering constraints between
// them. Steps without constraints run concurrently.
type Mission struct {
	Name        string `yaml:"name" validate:"required"`
	Description string `yaml:"description"`
	Steps       []Step `yaml:"steps" validate:"required,min=1,dive"`
}

// Step is a single goal within a mission.
type Step struct {
	ID   string   `yaml:"id" validate:"required"`
	Goal GoalType `yaml:"goal" validate:"required,oneof=at_location fetch_object"`

	// Target is the destination for at_location and the place to search
	// for fetch_object.
	Target *LocationSpec `yaml:"target"`

	// Object describes what fetch_object looks for.
	Object *ObjectSpec `yaml:"object"`

	// Hold keeps an at_location goal at its target for this long after
	// arriving. Zero returns as soon as the target is reached.
	Hold config.Duration `yaml:"hold"`

	// Requires lists steps that must succeed before this one runs. If any
	// of them fails or is skipped, this step is skipped too.
	Requires []string `yaml:"requires"`

	// After lists steps that must finish, with any outcome, before this
	// one runs.
	After []string `yaml:"after"`

	// Retries re-runs the goal after a failure, up to this many extra
	// attempts.
	Retries int `yaml:"retries" validate:"gte=0"`

	// Timeout bounds a single attempt. Zero uses the runner default.
	Timeout config.Duration `yaml:"timeout"`
}

// LocationSpec names a place either as a fixed pose or through a
// registered pose resolver, never both.
type LocationSpec struct {
	Pose     *world.Pose            `yaml:"pose"`
	Resolver string                 `yaml:"resolver"`
	Props    map[string]interface{} `yaml:"props"`
}

// ObjectSpec describes the object a fetch_object step looks for. Props
// constrain perception, for example {"type": "mug"}.
type ObjectSpec struct {
	Name  string                 `yaml:"name"`
	Props map[string]interface{} `yaml:"props"`
}

// Load reads and parses a mission file.
func Load(path string) (*Mission, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mission file: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return m, nil
}

// Parse parses mission YAML. Unknown fields are rejected and the result
// is validated.
func Parse(data []byte) (*Mission, error) {
	var m Mission
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse mission: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the mission for structural problems: missing fields,
// duplicate step IDs, references to unknown steps, and goal parameters
// that do not fit the goal type. Cycles are caught by BuildGraph.
func (m *Mission) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("mission validation failed: %w", err)
	}

	ids := make(map[string]bool, len(m.Steps))
	for _, step := range m.Steps {
		if ids[step.ID] {
			return fmt.Errorf("duplicate step ID: %s", step.ID)
		}
		ids[step.ID] = true
	}

	for i := range m.Steps {
		step := &m.Steps[i]
		if err := step.validate(); err != nil {
			return err
		}
		for _, dep := range step.Requires {
			if err := checkRef(ids, step.ID, dep); err != nil {
				return err
			}
		}
		for _, dep := range step.After {
			if err := checkRef(ids, step.ID, dep); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkRef(ids map[string]bool, stepID, dep string) error {
	if dep == stepID {
		return fmt.Errorf("step %s depends on itself", stepID)
	}
	if !ids[dep] {
		return fmt.Errorf("step %s depends on unknown step %s", stepID, dep)
	}
	return nil
}

func (s *Step) validate() error {
	switch s.Goal {
	case GoalAtLocation:
		if s.Target == nil {
			return fmt.Errorf("step %s: at_location needs a target", s.ID)
		}
		if s.Object != nil {
			return fmt.Errorf("step %s: at_location does not take an object", s.ID)
		}
	case GoalFetchObject:
		if s.Object == nil {
			return fmt.Errorf("step %s: fetch_object needs an object", s.ID)
		}
		if s.Target == nil {
			return fmt.Errorf("step %s: fetch_object needs a target location", s.ID)
		}
		if s.Hold > 0 {
			return fmt.Errorf("step %s: hold only applies to at_location", s.ID)
		}
	}
	if s.Hold < 0 {
		return fmt.Errorf("step %s: hold must not be negative", s.ID)
	}
	if s.Timeout < 0 {
		return fmt.Errorf("step %s: timeout must not be negative", s.ID)
	}
	if s.Target != nil {
		if s.Target.Pose == nil && s.Target.Resolver == "" {
			return fmt.Errorf("step %s: target needs a pose or a resolver", s.ID)
		}
		if s.Target.Pose != nil && s.Target.Resolver != "" {
			return fmt.Errorf("step %s: target takes a pose or a resolver, not both", s.ID)
		}
	}
	return nil
}

// ObjectName returns the name used for the object designator of a
// fetch_object step, defaulting to the step ID.
func (s *Step) ObjectName() string {
	if s.Object != nil && s.Object.Name != "" {
		return s.Object.Name
	}
	return s.ID
}
