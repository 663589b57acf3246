// Package shell is the text front end of the switch.
//
// A Registry maps command paths such as "switch onoff on" to handlers.
// Registries are plain values owned by their caller; there is no global
// command table. Console feeds a Registry from an interactive readline
// prompt.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/google/shlex"
)

// Shell errors.
var (
	ErrUnknownCommand   = errors.New("shell: unknown command")
	ErrUsage            = errors.New("shell: invalid arguments")
	ErrDuplicateCommand = errors.New("shell: command already registered")
)

// Handler runs a command. args holds the words after the command path.
type Handler func(ctx context.Context, w io.Writer, args []string) error

// Command is one leaf of the command tree.
type Command struct {
	// Name is the word that selects the command.
	Name string

	// Usage is the argument synopsis shown in help, e.g. "<level> [transition]".
	Usage string

	// Help is a one-line description.
	Help string

	// MinArgs and MaxArgs bound the argument count. MaxArgs < 0 means
	// no upper bound.
	MinArgs int
	MaxArgs int

	Handler Handler
}

type node struct {
	cmd   *Command
	group *Registry
}

// Registry is a tree of commands and command groups. It is not safe for
// concurrent registration; Execute may be called from any goroutine once
// registration is done.
type Registry struct {
	path  string
	help  string
	nodes map[string]*node
}

// NewRegistry creates an empty root registry with a built-in help command.
func NewRegistry() *Registry {
	r := newRegistry("", "")
	r.nodes["help"] = &node{cmd: &Command{
		Name:    "help",
		Usage:   "[command...]",
		Help:    "Show available commands",
		MaxArgs: -1,
		Handler: func(_ context.Context, w io.Writer, args []string) error {
			return r.Help(w, args...)
		},
	}}
	return r
}

func newRegistry(path, help string) *Registry {
	return &Registry{path: path, help: help, nodes: make(map[string]*node)}
}

// Register adds cmd to r.
func (r *Registry) Register(cmd Command) error {
	if cmd.Name == "" || cmd.Handler == nil {
		return fmt.Errorf("shell: command needs a name and a handler")
	}
	if _, ok := r.nodes[cmd.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, r.join(cmd.Name))
	}
	c := cmd
	r.nodes[cmd.Name] = &node{cmd: &c}
	return nil
}

// Group returns the subcommand group name, creating it if needed.
func (r *Registry) Group(name, help string) (*Registry, error) {
	if n, ok := r.nodes[name]; ok {
		if n.group == nil {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCommand, r.join(name))
		}
		return n.group, nil
	}
	g := newRegistry(r.join(name), help)
	r.nodes[name] = &node{group: g}
	return g, nil
}

// Execute splits line into words with shell quoting rules and runs the
// command they name. A blank line is a no-op.
func (r *Registry) Execute(ctx context.Context, w io.Writer, line string) error {
	words, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if len(words) == 0 {
		return nil
	}
	return r.Run(ctx, w, words)
}

// Run runs the command named by the leading words. Naming a group without
// a subcommand prints the group's help.
func (r *Registry) Run(ctx context.Context, w io.Writer, words []string) error {
	cur := r
	for i, word := range words {
		n, ok := cur.nodes[strings.ToLower(word)]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCommand, cur.join(word))
		}
		if n.group != nil {
			cur = n.group
			continue
		}

		args := words[i+1:]
		if len(args) < n.cmd.MinArgs || (n.cmd.MaxArgs >= 0 && len(args) > n.cmd.MaxArgs) {
			return fmt.Errorf("%w: usage: %s", ErrUsage, cur.synopsis(n.cmd))
		}
		return n.cmd.Handler(ctx, w, args)
	}
	return cur.Help(w)
}

// Help prints every command under the group named by path.
func (r *Registry) Help(w io.Writer, path ...string) error {
	cur := r
	for _, word := range path {
		n, ok := cur.nodes[strings.ToLower(word)]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCommand, cur.join(word))
		}
		if n.group == nil {
			fmt.Fprintf(w, "%s\t%s\n", cur.synopsis(n.cmd), n.cmd.Help)
			return nil
		}
		cur = n.group
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if cur.help != "" {
		fmt.Fprintf(tw, "%s: %s\n", cur.path, cur.help)
	}
	cur.walk(func(path string, c *Command) {
		fmt.Fprintf(tw, "  %s\t%s\n", path, c.Help)
	})
	return tw.Flush()
}

// Names returns the top-level words in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.nodes))
	for name := range r.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) walk(fn func(synopsis string, c *Command)) {
	for _, name := range r.Names() {
		n := r.nodes[name]
		if n.group != nil {
			n.group.walk(fn)
			continue
		}
		fn(r.synopsis(n.cmd), n.cmd)
	}
}

func (r *Registry) synopsis(c *Command) string {
	s := r.join(c.Name)
	if c.Usage != "" {
		s += " " + c.Usage
	}
	return s
}

func (r *Registry) join(word string) string {
	if r.path == "" {
		return word
	}
	return r.path + " " + word
}
