package scenario

import (
	"fmt"
	"strings"

	"coherence/internal/steps"
)

// ValidationError describes one problem found in a scenario.
type ValidationError struct {
	Scenario string
	Field    string
	Message  string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return fmt.Sprintf("scenario %s: %s", ve.Scenario, ve.Message)
	}
	return fmt.Sprintf("scenario %s: field '%s': %s", ve.Scenario, ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	messages := make([]string, 0, len(ve))
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

func (ve *ValidationErrors) add(scenario, field, format string, args ...interface{}) {
	*ve = append(*ve, ValidationError{
		Scenario: scenario,
		Field:    field,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Validate checks s against registry. It returns nil or a ValidationErrors
// listing every problem found.
func Validate(s Scenario, registry *steps.Registry) error {
	var errs ValidationErrors
	name := s.Name
	if name == "" {
		name = "<unnamed>"
		errs.add(name, "name", "is required")
	}
	if s.Timeout < 0 {
		errs.add(name, "timeout", "must not be negative")
	}
	if len(s.Steps) == 0 {
		errs.add(name, "steps", "must have at least one step")
	}

	usernames := make(map[string]bool, len(s.Users))
	for i, user := range s.Users {
		field := fmt.Sprintf("users[%d].username", i)
		switch {
		case user.Username == "":
			errs.add(name, field, "is required")
		case usernames[user.Username]:
			errs.add(name, field, "duplicate user %q", user.Username)
		}
		usernames[user.Username] = true
	}
	if s.Observe != "" && !usernames[s.Observe] {
		errs.add(name, "observe", "unknown user %q", s.Observe)
	}

	ids := make(map[string]bool)
	validateSteps := func(list string, defs []Step) {
		for i, def := range defs {
			field := fmt.Sprintf("%s[%d]", list, i)
			if def.ID != "" {
				if ids[def.ID] {
					errs.add(name, field+".id", "duplicate step id %q", def.ID)
				}
				ids[def.ID] = true
			}
			if def.Action == "" {
				errs.add(name, field+".action", "is required")
				continue
			}
			missing, err := registry.CheckArgs(def.Action, def.Args)
			if err != nil {
				errs.add(name, field+".action", "%v", err)
				continue
			}
			for _, arg := range missing {
				errs.add(name, field+".args", "missing required argument %q for %s", arg, def.Action)
			}
			if as, ok := def.Args["as"].(string); ok && as != "" && !strings.Contains(as, "{{") && !usernames[as] {
				errs.add(name, field+".args.as", "unknown user %q", as)
			}
		}
	}
	validateSteps("steps", s.Steps)
	validateSteps("cleanup", s.Cleanup)

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// ValidateAll validates every scenario and returns the combined errors.
func ValidateAll(scenarios []Scenario, registry *steps.Registry) error {
	var all ValidationErrors
	for _, s := range scenarios {
		if err := Validate(s, registry); err != nil {
			all = append(all, err.(ValidationErrors)...)
		}
	}
	if all.HasErrors() {
		return all
	}
	return nil
}
