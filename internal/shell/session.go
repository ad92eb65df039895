package shell

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
	"unicode"

	"coherence/internal/portal"
	"coherence/internal/runner"
	"coherence/internal/scenario"
	"coherence/internal/steps"
	"coherence/internal/workspace"
	pkgstrings "coherence/pkg/strings"
)

// ErrExit is returned by Execute when the user asks to leave.
var ErrExit = errors.New("exit")

// Options tune a Session.
type Options struct {
	// DefaultTimeout is the step budget when the scenario sets none
	DefaultTimeout time.Duration
	// PollInterval is the delay between polls of the run command
	PollInterval time.Duration
	// Clock replaces wall-clock time inside the portal
	Clock portal.Clock
}

type command struct {
	usage       string
	description string
	run         func(s *Session, ctx context.Context, args string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"step":    {"step", "Poll the portal once", (*Session).step},
		"run":     {"run", "Poll until the chain terminates", (*Session).run},
		"deliver": {"deliver <user> <json>", "Load an event into a user's queue", (*Session).deliver},
		"post":    {"post <user> <channel> <text>", "Post a message as a user", (*Session).post},
		"status":  {"status", "Show the portal state", (*Session).status},
		"stack":   {"stack", "Show the call stack so far", (*Session).stack},
		"data":    {"data", "Show the data store", (*Session).data},
		"users":   {"users", "List users and their pending events", (*Session).users},
		"restart": {"restart", "Return the portal to idle, keeping the data store", (*Session).restart},
		"help":    {"help", "List commands", (*Session).help},
		"exit":    {"exit", "Leave the shell", func(*Session, context.Context, string) error { return ErrExit }},
	}
}

// CommandNames returns every command name sorted.
func CommandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Session drives one scenario's portal.
type Session struct {
	scenario scenario.Scenario
	portal   *portal.TestPortal
	ws       *workspace.SlackUserWorkspace
	out      io.Writer
	opts     Options
}

// NewSession builds s and prepares it for manual polling.
func NewSession(s scenario.Scenario, registry *steps.Registry, out io.Writer, opts Options) (*Session, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = runner.DefaultPollInterval
	}
	session := &Session{scenario: s, out: out, opts: opts}

	p, ws, err := scenario.Build(s, registry, scenario.BuildOptions{
		DefaultTimeout: opts.DefaultTimeout,
		Clock:          opts.Clock,
		Observer:       session.observe,
	})
	if err != nil {
		return nil, err
	}
	session.portal = p
	session.ws = ws
	return session, nil
}

// Portal returns the portal driven by the session.
func (s *Session) Portal() *portal.TestPortal { return s.portal }

// Workspace returns the session's simulated workspace.
func (s *Session) Workspace() *workspace.SlackUserWorkspace { return s.ws }

// Usernames returns the workspace users in registration order.
func (s *Session) Usernames() []string {
	users := s.ws.Users()
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Username())
	}
	return names
}

// Execute runs one command line. Unknown commands and bad arguments are
// returned as errors; ErrExit signals the end of the session.
func (s *Session) Execute(ctx context.Context, input string) error {
	parts := splitArgs(strings.TrimSpace(input), 2)
	if len(parts) == 0 {
		return nil
	}
	name := strings.ToLower(parts[0])
	if name == "quit" {
		name = "exit"
	}
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q (type 'help' for a list)", parts[0])
	}
	var args string
	if len(parts) > 1 {
		args = parts[1]
	}
	return cmd.run(s, ctx, args)
}

func (s *Session) observe(report portal.StepReport) {
	if report.Root {
		return
	}
	fmt.Fprintf(s.out, "   ↳ %s: %s (%d polls)\n", report.Name, report.Result.Result(), report.Polls)
}

func (s *Session) step(_ context.Context, _ string) error {
	s.printResult(s.portal.Test(s.ws))
	return nil
}

func (s *Session) run(ctx context.Context, _ string) error {
	if s.portal.Done() {
		result, _ := s.portal.LastResult()
		s.printResult(result)
		return nil
	}

	deadline := runner.ScenarioDeadline(s.scenario, s.opts.DefaultTimeout)
	if deadline != portal.NoTimeout {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		result := s.portal.Test(s.ws)
		if result.IsTerminal() {
			s.printResult(result)
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("stopped while %s was pending: %w", s.portal.CurrentStepName(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func (s *Session) deliver(_ context.Context, args string) error {
	parts := splitArgs(args, 2)
	if len(parts) < 2 {
		return fmt.Errorf("usage: %s", commands["deliver"].usage)
	}
	user, ok := s.ws.User(parts[0])
	if !ok {
		return fmt.Errorf("%w: %s", workspace.ErrUserNotFound, parts[0])
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(parts[1]), &payload); err != nil {
		return fmt.Errorf("event must be a JSON object: %w", err)
	}
	event := user.LoadEvents(payload)[0]
	fmt.Fprintf(s.out, "📨 Delivered %s event to %s\n", event.Type(), user.Username())
	return nil
}

func (s *Session) post(_ context.Context, args string) error {
	parts := splitArgs(args, 3)
	if len(parts) < 3 {
		return fmt.Errorf("usage: %s", commands["post"].usage)
	}
	if _, err := s.ws.PostMessage(parts[0], parts[1], parts[2]); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "💬 %s posted to %s\n", parts[0], parts[1])
	return nil
}

func (s *Session) status(_ context.Context, _ string) error {
	fmt.Fprintf(s.out, "Scenario: %s\n", s.scenario.Name)
	switch {
	case s.portal.Done():
		result, _ := s.portal.LastResult()
		fmt.Fprintf(s.out, "State:    finished (%s)\n", result.Result())
	case s.portal.IsLive():
		fmt.Fprintf(s.out, "State:    live\n")
		fmt.Fprintf(s.out, "Step:     %s\n", s.portal.CurrentStepName())
	default:
		fmt.Fprintf(s.out, "State:    idle\n")
	}
	fmt.Fprintf(s.out, "Steps:    %d\n", len(s.scenario.Steps))
	fmt.Fprintf(s.out, "Finished: %d\n", len(s.portal.SimpleCallStack()))
	return nil
}

func (s *Session) stack(_ context.Context, _ string) error {
	fmt.Fprintln(s.out, s.portal.BuildSimpleStackMessage())
	return nil
}

func (s *Session) data(_ context.Context, _ string) error {
	encoded, err := json.MarshalIndent(s.portal.DataStore(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render data store: %w", err)
	}
	fmt.Fprintln(s.out, string(encoded))
	return nil
}

func (s *Session) users(_ context.Context, _ string) error {
	for _, u := range s.ws.Users() {
		fmt.Fprintf(s.out, "%s (%d pending)\n", u.Username(), u.PendingCount())
	}
	return nil
}

func (s *Session) restart(_ context.Context, _ string) error {
	s.portal.Restart()
	fmt.Fprintf(s.out, "🔄 Portal restarted\n")
	return nil
}

func (s *Session) help(_ context.Context, _ string) error {
	fmt.Fprintln(s.out, "Available commands:")
	for _, name := range CommandNames() {
		cmd := commands[name]
		fmt.Fprintf(s.out, "  %-30s %s\n", cmd.usage, cmd.description)
	}
	return nil
}

func (s *Session) printResult(result portal.TestResult) {
	switch result.Code {
	case portal.ResultPending:
		fmt.Fprintf(s.out, "⏳ pending\n")
	case portal.ResultSuccess:
		fmt.Fprintf(s.out, "✅ success\n")
	default:
		fmt.Fprintf(s.out, "❌ failure: %s\n", result.Message)
		if result.CallStack != "" {
			fmt.Fprintln(s.out, pkgstrings.Indent(result.CallStack, "   "))
		}
	}
}

// splitArgs splits input on whitespace into at most n fields; the last field
// keeps the rest of the line verbatim.
func splitArgs(input string, n int) []string {
	var parts []string
	rest := strings.TrimLeftFunc(input, unicode.IsSpace)
	for rest != "" {
		if len(parts) == n-1 {
			parts = append(parts, strings.TrimRightFunc(rest, unicode.IsSpace))
			break
		}
		end := strings.IndexFunc(rest, unicode.IsSpace)
		if end < 0 {
			parts = append(parts, rest)
			break
		}
		parts = append(parts, rest[:end])
		rest = strings.TrimLeftFunc(rest[end:], unicode.IsSpace)
	}
	return parts
}
