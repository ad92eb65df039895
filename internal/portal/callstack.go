package portal

import "strings"

// CallStackAction records one chained step that reached a terminal state.
type CallStackAction struct {
	// Name is the display name of the step
	Name string `json:"name"`
	// Data is a compact rendering of the first event the step processed, if any
	Data string `json:"data,omitempty"`
}

// NewCallStackAction creates an action record. Data is optional.
func NewCallStackAction(name string, data ...string) CallStackAction {
	return CallStackAction{Name: name, Data: firstOrEmpty(data)}
}

// line renders the action as a single ".then(...)" trace line.
func (a CallStackAction) line() string {
	if a.Data == "" {
		return ".then(" + a.Name + ")"
	}
	return ".then(" + a.Name + ") - " + a.Data
}

// renderCallStack renders a trace headed by the portal name, one line per action.
func renderCallStack(header string, actions []CallStackAction) string {
	var b strings.Builder
	b.WriteString(header)
	for _, action := range actions {
		b.WriteByte('\n')
		b.WriteString(action.line())
	}
	return b.String()
}
