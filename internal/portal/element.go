package portal

import "fmt"

// DataStore is the key/value store shared by every step of a portal.
type DataStore map[string]interface{}

// StepFunc is the signature of a step body.
type StepFunc func(ws Workspace, data DataStore) TestResult

// CleanUpFunc is invoked once when a portal terminates with a failure.
type CleanUpFunc func(ws Workspace)

// Step is a named unit of work that can be chained onto a portal.
type Step interface {
	// Name is the display name used in call-stack traces
	Name() string
	// Run executes one invocation of the step
	Run(ws Workspace, data DataStore) TestResult
}

// Resetter is implemented by steps that keep state between polls. Reset is
// called whenever the step starts a new unit of work, including after a
// timeout or Restart.
type Resetter interface {
	Reset()
}

type funcStep struct {
	name string
	fn   StepFunc
}

func (s funcStep) Name() string { return s.name }

func (s funcStep) Run(ws Workspace, data DataStore) TestResult {
	return s.fn(ws, data)
}

// NewStep wraps fn as a Step displayed under name.
func NewStep(name string, fn StepFunc) Step {
	return funcStep{name: name, fn: fn}
}

// ErrorStep wraps a step body that may return an error. A non-nil error
// becomes a failure whose message is the error text.
func ErrorStep(name string, fn func(ws Workspace, data DataStore) (TestResult, error)) Step {
	return funcStep{name: name, fn: func(ws Workspace, data DataStore) TestResult {
		result, err := fn(ws, data)
		if err != nil {
			return Failure(fmt.Sprintf("%s: %v", name, err))
		}
		return result
	}}
}

// TestElement is one node of a portal's step chain.
type TestElement struct {
	step Step
	next *TestElement
}

// Step returns the step wrapped by the element.
func (e *TestElement) Step() Step {
	return e.step
}

// Next returns the following element, or nil at the end of the chain.
func (e *TestElement) Next() *TestElement {
	return e.next
}

// then links a new element after e and returns it.
func (e *TestElement) then(step Step) *TestElement {
	e.next = &TestElement{step: step}
	return e.next
}
