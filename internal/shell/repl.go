package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"coherence/pkg/logging"

	"github.com/chzyer/readline"
)

const subsystem = "Shell"

// REPL reads commands from a terminal and executes them on a Session.
type REPL struct {
	session     *Session
	historyFile string
}

// NewREPL creates a REPL for session. History is kept in the system
// temporary directory.
func NewREPL(session *Session) *REPL {
	return &REPL{
		session:     session,
		historyFile: filepath.Join(os.TempDir(), ".coherence_shell_history"),
	}
}

func (r *REPL) completer() *readline.PrefixCompleter {
	users := func(string) []string { return r.session.Usernames() }

	items := make([]readline.PrefixCompleterInterface, 0, len(commands))
	for _, name := range CommandNames() {
		switch name {
		case "deliver", "post":
			items = append(items, readline.PcItem(name, readline.PcItemDynamic(users)))
		default:
			items = append(items, readline.PcItem(name))
		}
	}
	return readline.NewPrefixCompleter(items...)
}

// Run reads and executes commands until exit, EOF or ctx is cancelled.
func (r *REPL) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            fmt.Sprintf("%s » ", r.session.scenario.Name),
		HistoryFile:       r.historyFile,
		AutoComplete:      r.completer(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline instance: %w", err)
	}
	defer rl.Close()

	logging.Info(subsystem, "Shell started for scenario %s. Type 'help' for available commands.", r.session.scenario.Name)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		} else if err == io.EOF {
			return nil
		} else if err != nil {
			return fmt.Errorf("readline error: %w", err)
		}

		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := r.session.Execute(ctx, line); err != nil {
			if errors.Is(err, ErrExit) {
				return nil
			}
			fmt.Fprintf(rl.Stderr(), "Error: %v\n", err)
		}
	}
}
