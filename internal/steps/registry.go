package steps

import (
	"fmt"
	"sort"
	"sync"

	"coherence/internal/portal"
	"coherence/internal/template"
)

// Args are the raw, untemplated arguments of a step.
type Args map[string]interface{}

// ActionFunc is the body of an action. It receives arguments already
// rendered against the data store and is invoked once per poll.
type ActionFunc func(ctx *Context, args Args) portal.TestResult

// Action describes a registered action.
type Action struct {
	// Name is the identifier used in scenario files
	Name string
	// Description is shown by listing commands and MCP tools
	Description string
	// Required lists arguments that must be present
	Required []string
	// Run is the action body
	Run ActionFunc
}

// Registry maps action names to their implementations.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Action
	engine  *template.Engine
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		actions: make(map[string]Action),
		engine:  template.New(),
	}
}

// DefaultRegistry creates a registry holding every built-in action.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, action := range builtins() {
		// Built-in names are unique
		_ = r.Register(action)
	}
	return r
}

// Register adds action to the registry.
func (r *Registry) Register(action Action) error {
	if action.Name == "" {
		return fmt.Errorf("action name is required")
	}
	if action.Run == nil {
		return fmt.Errorf("action %s has no body", action.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.actions[action.Name]; exists {
		return fmt.Errorf("action %s is already registered", action.Name)
	}
	r.actions[action.Name] = action
	return nil
}

// Lookup returns the action registered under name.
func (r *Registry) Lookup(name string) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	action, ok := r.actions[name]
	return action, ok
}

// Actions returns every registered action sorted by name.
func (r *Registry) Actions() []Action {
	r.mu.RLock()
	defer r.mu.RUnlock()

	actions := make([]Action, 0, len(r.actions))
	for _, action := range r.actions {
		actions = append(actions, action)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i].Name < actions[j].Name })
	return actions
}

// CheckArgs reports the required arguments of action missing from args.
func (r *Registry) CheckArgs(action string, args Args) ([]string, error) {
	registered, ok := r.Lookup(action)
	if !ok {
		return nil, fmt.Errorf("unknown action %q", action)
	}

	var missing []string
	for _, name := range registered.Required {
		if _, present := args[name]; !present {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

// Build creates a chainable step displayed as name that runs action with args.
// A nil clock uses wall-clock time.
func (r *Registry) Build(name, action string, args Args, clock portal.Clock) (portal.Step, error) {
	registered, ok := r.Lookup(action)
	if !ok {
		return nil, fmt.Errorf("unknown action %q", action)
	}
	if name == "" {
		name = action
	}
	if clock == nil {
		clock = wallClock{}
	}

	return &templatedStep{
		name:   name,
		action: registered,
		args:   args,
		engine: r.engine,
		clock:  clock,
	}, nil
}
