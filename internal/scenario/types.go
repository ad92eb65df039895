package scenario

import "time"

// Scenario is one conversation-driven test loaded from YAML.
type Scenario struct {
	// Name is the unique identifier for the scenario
	Name string `yaml:"name" json:"name"`
	// Description provides human-readable scenario description
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	// Tags for additional categorization and filtering
	Tags []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	// Timeout is the per-step budget; zero uses the configured default
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	// Skip marks the scenario as skipped without running it
	Skip bool `yaml:"skip,omitempty" json:"skip,omitempty"`
	// Observe names the user whose consumed events appear in call stacks;
	// empty selects the first user
	Observe string `yaml:"observe,omitempty" json:"observe,omitempty"`
	// Users populate the simulated workspace
	Users []User `yaml:"users,omitempty" json:"users,omitempty"`
	// Data seeds the portal's data store
	Data map[string]interface{} `yaml:"data,omitempty" json:"data,omitempty"`
	// Steps define the chain executed after the portal's root step
	Steps []Step `yaml:"steps" json:"steps"`
	// Cleanup defines teardown steps run when the chain fails
	Cleanup []Step `yaml:"cleanup,omitempty" json:"cleanup,omitempty"`

	// SourcePath is the file the scenario was loaded from
	SourcePath string `yaml:"-" json:"source_path,omitempty"`
}

// User is a simulated workspace member and the events preloaded for it.
type User struct {
	Username string                   `yaml:"username" json:"username"`
	Token    string                   `yaml:"token,omitempty" json:"token,omitempty"`
	Events   []map[string]interface{} `yaml:"events,omitempty" json:"events,omitempty"`
}

// Step is one action invocation in a scenario.
type Step struct {
	// ID is the display name in call stacks; empty falls back to the action
	ID string `yaml:"id,omitempty" json:"id,omitempty"`
	// Action names a registered step action
	Action string `yaml:"action" json:"action"`
	// Args are passed to the action after templating
	Args map[string]interface{} `yaml:"args,omitempty" json:"args,omitempty"`
}

// DisplayName returns the name the step is shown under.
func (s Step) DisplayName() string {
	if s.ID != "" {
		return s.ID
	}
	return s.Action
}

// HasTag reports whether the scenario carries tag.
func (s Scenario) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
