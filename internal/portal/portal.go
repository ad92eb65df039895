package portal

import (
	"fmt"
	"math"
	"time"

	"coherence/pkg/logging"
)

const (
	// DefaultName is the display name of a portal created without WithName.
	DefaultName = "TestPortal"

	// NoTimeout is the default step budget; it never expires in practice.
	NoTimeout = time.Duration(math.MaxInt64)

	// TimeoutMessagePrefix starts the message of every synthesized timeout failure.
	TimeoutMessagePrefix = "Time out occurred when calling "

	subsystem = "Portal"
)

// Clock supplies the current time for timeout measurement.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// StepReport describes a unit of work that reached a terminal state.
type StepReport struct {
	// Name is the display name of the step (the portal name for the root)
	Name string
	// Root is true for the portal's own root step
	Root bool
	// Result is the terminal result of the step
	Result TestResult
	// Polls is the number of invocations, including the terminal one
	Polls int
	// Elapsed is the time between the first invocation and termination
	Elapsed time.Duration
}

// StepObserver is notified every time a unit of work terminates.
type StepObserver func(StepReport)

// Option configures a TestPortal at construction time.
type Option func(*TestPortal)

// WithName sets the display name heading call-stack traces.
func WithName(name string) Option {
	return func(p *TestPortal) { p.name = name }
}

// WithTimeout sets the per-step polling budget. Zero or negative disables it.
func WithTimeout(timeout time.Duration) Option {
	return func(p *TestPortal) { p.timeout = timeout }
}

// WithClock replaces the wall clock used for timeouts.
func WithClock(clock Clock) Option {
	return func(p *TestPortal) { p.clock = clock }
}

// WithObservedUser selects which workspace user's events are captured in traces.
func WithObservedUser(username string) Option {
	return func(p *TestPortal) { p.observedUser = username }
}

// WithStepObserver registers a callback for terminated steps.
func WithStepObserver(observer StepObserver) Option {
	return func(p *TestPortal) { p.observer = observer }
}

// TestPortal drives a chain of steps one poll at a time.
//
// The portal runs its own root step first, then every chained step in order.
// Each call to Test executes at most one step invocation. A pending result is
// handed back to the caller, who must call Test again to make progress.
type TestPortal struct {
	name         string
	timeout      time.Duration
	clock        Clock
	observedUser string
	observer     StepObserver

	root *TestElement
	tail *TestElement

	// current is the element in flight, or the last one to finish; nil while idle
	current   *TestElement
	isLive    bool
	advance   bool
	startTime time.Time
	polls     int
	final     *TestResult
	// snapshot is the first event the current step processed, across its polls
	snapshot string

	dataStore       DataStore
	simpleCallStack []CallStackAction
	cleanUp         CleanUpFunc
}

// New creates an idle portal whose root step trivially succeeds.
func New(opts ...Option) *TestPortal {
	p := &TestPortal{
		name:      DefaultName,
		timeout:   NoTimeout,
		clock:     realClock{},
		dataStore: DataStore{},
	}
	p.root = &TestElement{step: NewStep(DefaultName, defaultRootStep)}
	p.tail = p.root

	for _, opt := range opts {
		opt(p)
	}
	return p
}

func defaultRootStep(Workspace, DataStore) TestResult {
	return Success()
}

// Then appends fn, displayed as name, to the end of the chain.
func (p *TestPortal) Then(name string, fn StepFunc) *TestPortal {
	return p.ThenStep(NewStep(name, fn))
}

// ThenStep appends step to the end of the chain.
func (p *TestPortal) ThenStep(step Step) *TestPortal {
	p.tail = p.tail.then(step)
	return p
}

// SetCleanUp sets the hook run once when the chain terminates with a failure.
func (p *TestPortal) SetCleanUp(fn CleanUpFunc) *TestPortal {
	p.cleanUp = fn
	return p
}

// SetRootStep replaces the portal's own root step body.
func (p *TestPortal) SetRootStep(fn StepFunc) *TestPortal {
	p.root.step = NewStep(DefaultName, fn)
	return p
}

// SetName changes the display name heading call-stack traces.
func (p *TestPortal) SetName(name string) *TestPortal {
	p.name = name
	return p
}

// SetTimeout changes the per-step polling budget. Zero or negative disables it.
func (p *TestPortal) SetTimeout(timeout time.Duration) *TestPortal {
	p.timeout = timeout
	return p
}

// SetObservedUser selects which workspace user's events are captured in traces.
func (p *TestPortal) SetObservedUser(username string) *TestPortal {
	p.observedUser = username
	return p
}

// Name returns the portal's display name.
func (p *TestPortal) Name() string { return p.name }

// Timeout returns the per-step polling budget.
func (p *TestPortal) Timeout() time.Duration { return p.timeout }

// IsLive reports whether the chain has started and not yet terminated.
func (p *TestPortal) IsLive() bool { return p.isLive }

// DataStore returns the store shared by every step.
func (p *TestPortal) DataStore() DataStore { return p.dataStore }

// SimpleCallStack returns the chained steps that reached a terminal state, in order.
func (p *TestPortal) SimpleCallStack() []CallStackAction { return p.simpleCallStack }

// CleanUp returns the configured clean-up hook, if any.
func (p *TestPortal) CleanUp() CleanUpFunc { return p.cleanUp }

// Head returns the root element of the chain.
func (p *TestPortal) Head() *TestElement { return p.root }

// Done reports whether the chain has terminated.
func (p *TestPortal) Done() bool { return p.final != nil }

// LastResult returns the terminal result of the chain once Done is true.
func (p *TestPortal) LastResult() (TestResult, bool) {
	if p.final == nil {
		return TestResult{}, false
	}
	return *p.final, true
}

// CurrentStepName returns the display name of the step in flight.
func (p *TestPortal) CurrentStepName() string {
	if p.current == nil {
		return ""
	}
	return p.displayName(p.current)
}

// Restart returns the portal to idle so the chain runs again from the root.
// The data store is kept.
func (p *TestPortal) Restart() *TestPortal {
	p.current = nil
	p.isLive = false
	p.advance = false
	p.startTime = time.Time{}
	p.polls = 0
	p.final = nil
	p.snapshot = ""
	p.simpleCallStack = nil
	return p
}

// BuildSimpleStackMessage renders the recorded call stack headed by the portal name.
func (p *TestPortal) BuildSimpleStackMessage() string {
	return renderCallStack(p.name, p.simpleCallStack)
}

// PushActionOntoStack records element as a terminated step.
func (p *TestPortal) PushActionOntoStack(element *TestElement, data ...string) {
	p.simpleCallStack = append(p.simpleCallStack, NewCallStackAction(p.displayName(element), data...))
}

// Test performs one poll of the chain against ws.
//
// The returned result is pending while work remains; call Test again. Once a
// terminal result is returned, later calls return it again without running
// anything until Restart is called.
func (p *TestPortal) Test(ws Workspace) TestResult {
	switch {
	case p.final != nil:
		return *p.final
	case p.current == nil:
		p.begin(p.root)
	case p.advance:
		p.advance = false
		p.begin(p.current.next)
	case p.expired():
		name := p.displayName(p.current)
		logging.Warn(subsystem, "Step %s exceeded timeout %v", name, p.timeout)
		return p.settle(ws, Failure(TimeoutMessagePrefix+name))
	}
	return p.execute(ws)
}

func (p *TestPortal) begin(element *TestElement) {
	p.current = element
	p.isLive = true
	p.startTime = p.clock.Now()
	p.polls = 0
	p.snapshot = ""
	if r, ok := element.step.(Resetter); ok {
		r.Reset()
	}
	logging.Debug(subsystem, "%s: starting step %s", p.name, p.displayName(element))
}

func (p *TestPortal) expired() bool {
	if p.timeout <= 0 {
		return false
	}
	return p.clock.Now().Sub(p.startTime) > p.timeout
}

func (p *TestPortal) execute(ws Workspace) TestResult {
	before := unprocessedEvents(ws, p.observedUser)

	p.polls++
	result := p.invoke(ws)
	if p.snapshot == "" {
		p.snapshot = firstNewlyProcessed(before)
	}
	if result.Code == ResultPending {
		return result
	}
	return p.settle(ws, result)
}

// invoke runs the current step, converting a panic into a failure.
func (p *TestPortal) invoke(ws Workspace) (result TestResult) {
	name := p.displayName(p.current)
	defer func() {
		if r := recover(); r != nil {
			logging.Error(subsystem, fmt.Errorf("%v", r), "Step %s panicked", name)
			result = Failuref("step %s panicked: %v", name, r)
		}
	}()
	return p.current.step.Run(ws, p.dataStore)
}

// settle applies terminal handling to result for the current element.
func (p *TestPortal) settle(ws Workspace, result TestResult) TestResult {
	element := p.current
	if element != p.root {
		p.PushActionOntoStack(element, p.snapshot)
	}
	p.report(element, result)
	p.startTime = time.Time{}

	if result.Code == ResultSuccess && element.next != nil {
		p.advance = true
		return Pending()
	}

	p.isLive = false
	if result.Code == ResultFailure {
		result.CallStack = p.BuildSimpleStackMessage()
		p.final = &result
		p.runCleanUp(ws)
		return result
	}

	result.CallStack = ""
	p.final = &result
	logging.Debug(subsystem, "%s: chain completed", p.name)
	return result
}

func (p *TestPortal) report(element *TestElement, result TestResult) {
	if p.observer == nil {
		return
	}
	p.observer(StepReport{
		Name:    p.displayName(element),
		Root:    element == p.root,
		Result:  result,
		Polls:   p.polls,
		Elapsed: p.clock.Now().Sub(p.startTime),
	})
}

// runCleanUp invokes the clean-up hook. A panic inside it is logged and dropped.
func (p *TestPortal) runCleanUp(ws Workspace) {
	if p.cleanUp == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logging.Error(subsystem, fmt.Errorf("%v", r), "%s: clean-up panicked", p.name)
		}
	}()
	logging.Debug(subsystem, "%s: running clean-up", p.name)
	p.cleanUp(ws)
}

func (p *TestPortal) displayName(element *TestElement) string {
	if element == p.root {
		return p.name
	}
	return element.step.Name()
}
