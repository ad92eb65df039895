package portal

import "fmt"

// ResultCode is the outcome class of a single step invocation.
type ResultCode int

const (
	// ResultSuccess means the step reached its goal.
	ResultSuccess ResultCode = iota
	// ResultFailure means the step failed and the chain must stop.
	ResultFailure
	// ResultPending means the step needs to be polled again.
	ResultPending
)

// String returns the lowercase name of the code.
func (c ResultCode) String() string {
	switch c {
	case ResultSuccess:
		return "success"
	case ResultFailure:
		return "failure"
	case ResultPending:
		return "pending"
	default:
		return "unknown"
	}
}

// MarshalText lets result codes appear by name in JSON and YAML reports.
func (c ResultCode) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses a lowercase code name.
func (c *ResultCode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "success":
		*c = ResultSuccess
	case "failure":
		*c = ResultFailure
	case "pending":
		*c = ResultPending
	default:
		return fmt.Errorf("unknown result code %q", string(text))
	}
	return nil
}

// TestResult is the value a step returns on every invocation.
type TestResult struct {
	// Code is the outcome class
	Code ResultCode `json:"code"`
	// Message is an optional human-readable explanation
	Message string `json:"message,omitempty"`
	// CallStack is attached by the portal when the chain terminates with a failure
	CallStack string `json:"call_stack,omitempty"`
}

// NewTestResult creates a result with the given code and message.
func NewTestResult(code ResultCode, message string) TestResult {
	return TestResult{Code: code, Message: message}
}

// Success returns a successful result, optionally carrying a message.
func Success(message ...string) TestResult {
	return TestResult{Code: ResultSuccess, Message: firstOrEmpty(message)}
}

// Failure returns a failed result, optionally carrying a message.
func Failure(message ...string) TestResult {
	return TestResult{Code: ResultFailure, Message: firstOrEmpty(message)}
}

// Failuref returns a failed result with a formatted message.
func Failuref(format string, args ...interface{}) TestResult {
	return TestResult{Code: ResultFailure, Message: fmt.Sprintf(format, args...)}
}

// Pending returns a result asking the driver to poll again.
func Pending(message ...string) TestResult {
	return TestResult{Code: ResultPending, Message: firstOrEmpty(message)}
}

// Result returns the string form of the result code.
func (r TestResult) Result() string {
	return r.Code.String()
}

// IsTerminal reports whether the result ends the current unit of work.
func (r TestResult) IsTerminal() bool {
	return r.Code == ResultSuccess || r.Code == ResultFailure
}

func firstOrEmpty(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
