package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/pion/logging"
)

// ConsoleConfig configures a Console.
type ConsoleConfig struct {
	// Registry holds the commands. Required.
	Registry *Registry

	// Prompt is shown before each line.
	// Default: "switch> "
	Prompt string

	// HistoryFile persists line history. Optional.
	HistoryFile string

	// Stdin and Stdout override the terminal. Optional.
	Stdin  io.ReadCloser
	Stdout io.Writer

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Console is an interactive prompt over a Registry.
type Console struct {
	registry *Registry
	rl       *readline.Instance
	log      logging.LeveledLogger
}

// NewConsole creates a Console with tab completion for the registry's
// command tree.
func NewConsole(config ConsoleConfig) (*Console, error) {
	if config.Registry == nil {
		return nil, fmt.Errorf("shell: console requires a registry")
	}
	if config.Prompt == "" {
		config.Prompt = "switch> "
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          config.Prompt,
		HistoryFile:     config.HistoryFile,
		AutoComplete:    readline.NewPrefixCompleter(completions(config.Registry)...),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdin:           config.Stdin,
		Stdout:          config.Stdout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	c := &Console{registry: config.Registry, rl: rl}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("shell")
	}
	return c, nil
}

// Stdout returns a writer that does not corrupt the prompt. Asynchronous
// command results and log output should go through it.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Run reads and executes lines until EOF, "exit" or ctx is done.
func (c *Console) Run(ctx context.Context) error {
	defer c.rl.Close()

	go func() {
		<-ctx.Done()
		c.rl.Close()
	}()

	out := c.rl.Stdout()
	for {
		line, err := c.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		}

		input := strings.TrimSpace(line)
		switch input {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		if err := c.registry.Execute(ctx, out, input); err != nil {
			if c.log != nil {
				c.log.Debugf("%q: %v", input, err)
			}
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
}

func completions(r *Registry) []readline.PrefixCompleterInterface {
	items := make([]readline.PrefixCompleterInterface, 0, len(r.nodes))
	for _, name := range r.Names() {
		n := r.nodes[name]
		if n.group != nil {
			items = append(items, readline.PcItem(name, completions(n.group)...))
			continue
		}
		items = append(items, readline.PcItem(name))
	}
	return items
}
