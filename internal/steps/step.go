package steps

import (
	"fmt"
	"time"

	"coherence/internal/portal"
	"coherence/internal/template"
	"coherence/internal/workspace"
	"coherence/pkg/logging"
)

const subsystem = "Steps"

// Chat is the workspace surface built-in actions operate on.
type Chat interface {
	portal.Workspace
	User(username string) (*workspace.SlackUser, bool)
	PostMessage(from, channel, text string) (map[string]interface{}, error)
}

var _ Chat = &workspace.SlackUserWorkspace{}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Context is handed to an action body on every invocation.
type Context struct {
	// Step is the display name of the running step
	Step string
	// Workspace is the workspace the portal is polled against
	Workspace portal.Workspace
	// Data is the portal's shared data store
	Data portal.DataStore
	// Clock is the clock used by time-based actions
	Clock portal.Clock
	// State survives between polls of the same step and is cleared when
	// the step terminates
	State map[string]interface{}
}

// Chat returns the workspace as a Chat, or an error when it is not one.
func (c *Context) Chat() (Chat, error) {
	chat, ok := c.Workspace.(Chat)
	if !ok {
		return nil, fmt.Errorf("workspace %T does not support chat operations", c.Workspace)
	}
	return chat, nil
}

type templatedStep struct {
	name   string
	action Action
	args   Args
	engine *template.Engine
	clock  portal.Clock
	state  map[string]interface{}
}

var _ portal.Resetter = &templatedStep{}

func (s *templatedStep) Name() string { return s.name }

// Reset drops the state kept between polls.
func (s *templatedStep) Reset() { s.state = nil }

func (s *templatedStep) Run(ws portal.Workspace, data portal.DataStore) portal.TestResult {
	rendered, err := s.engine.Replace(map[string]interface{}(s.args), template.MergeContexts(data))
	if err != nil {
		s.state = nil
		return portal.Failuref("%s: %v", s.name, err)
	}
	renderedArgs, _ := rendered.(map[string]interface{})

	if s.state == nil {
		s.state = make(map[string]interface{})
	}
	ctx := &Context{
		Step:      s.name,
		Workspace: ws,
		Data:      data,
		Clock:     s.clock,
		State:     s.state,
	}

	result := s.action.Run(ctx, renderedArgs)
	if result.IsTerminal() {
		logging.Debug(subsystem, "%s (%s) finished: %s", s.name, s.action.Name, result.Result())
		s.state = nil
	}
	return result
}

func stringArg(args Args, key string) (string, bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", false, nil
	}
	switch v := raw.(type) {
	case string:
		return v, true, nil
	case fmt.Stringer:
		return v.String(), true, nil
	case int, int64, float64, bool:
		return fmt.Sprint(v), true, nil
	default:
		return "", false, fmt.Errorf("argument %s must be a string, got %T", key, raw)
	}
}

func requiredString(args Args, key string) (string, error) {
	value, ok, err := stringArg(args, key)
	if err != nil {
		return "", err
	}
	if !ok || value == "" {
		return "", fmt.Errorf("argument %s is required", key)
	}
	return value, nil
}

func mapArg(args Args, key string) (map[string]interface{}, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("argument %s must be a mapping, got %T", key, raw)
	}
	return m, nil
}
