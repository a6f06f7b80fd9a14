package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command groups, in the order the command listing shows them.
const (
	GroupRead    = "Read"
	GroupWrite   = "Write"
	GroupScript  = "Script"
	GroupSession = "Session"
)

var groupOrder = []string{GroupRead, GroupWrite, GroupScript, GroupSession}

// Command is one fsh subcommand.
type Command struct {
	// Flags holds the command's own flags; its name is unused.
	Flags *flag.FlagSet

	// Usage starts with the command name, followed by its arguments,
	// e.g. "rm [-r] <path>...".
	Usage string

	// Group places the command in the listing. Empty means [GroupSession].
	Group string

	// Short is the listing line; Long the "fsh <cmd> --help" body (Short if empty).
	Short string
	Long  string

	// Exec runs the command after flags are parsed. Positional arguments are
	// logical paths unless the command says otherwise.
	Exec func(ctx context.Context, o *IO, args []string) error
}

// Name returns the first word of Usage.
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")

	return name
}

func (c *Command) group() string {
	if c.Group == "" {
		return GroupSession
	}

	return c.Group
}

// PrintHelp prints the full help for "fsh <cmd> --help".
func (c *Command) PrintHelp(o *IO) {
	var b strings.Builder

	fmt.Fprintf(&b, "Usage: fsh %s\n\n", c.Usage)

	desc := c.Long
	if desc == "" {
		desc = c.Short
	}

	b.WriteString(desc)
	b.WriteString("\n")

	if c.Flags != nil && c.Flags.HasFlags() {
		b.WriteString("\nFlags:\n")
		b.WriteString(c.Flags.FlagUsages())
	}

	if c.group() != GroupSession {
		b.WriteString("\nPaths are logical: {alias} tokens are substituted and the storage root prefixed.\n")
	}

	o.Printf("%s", b.String())
}

// Run parses flags and executes the command. Returns exit code.
//
// A flag error prints the usage line to stderr; --help prints the full help
// to stdout.
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	c.Flags.SetOutput(io.Discard)

	if err := c.Flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			c.PrintHelp(o)

			return 0
		}

		o.ErrPrintln("error:", err)
		o.ErrPrintln("usage: fsh", c.Usage)
		o.ErrPrintln("Run 'fsh " + c.Name() + " --help' for details.")

		return 1
	}

	if err := c.Exec(ctx, o, c.Flags.Args()); err != nil {
		o.ErrPrintln("error:", err)

		return 1
	}

	return o.Finish()
}

// commandList renders cmds under their group headings, in [groupOrder].
func commandList(cmds []*Command) string {
	width := 0
	for _, cmd := range cmds {
		width = max(width, len(cmd.Usage))
	}

	var b strings.Builder

	for _, group := range groupOrder {
		first := true

		for _, cmd := range cmds {
			if cmd.group() != group {
				continue
			}

			if first {
				if b.Len() > 0 {
					b.WriteString("\n")
				}

				fmt.Fprintf(&b, " %s:\n", group)

				first = false
			}

			fmt.Fprintf(&b, "  %-*s  %s\n", width, cmd.Usage, cmd.Short)
		}
	}

	return b.String()
}

// ErrUsage marks argument count and shape errors.
var ErrUsage = errors.New("usage")

func wantArgs(args []string, n int, names string) error {
	if len(args) != n {
		return fmt.Errorf("%w: expected %s, got %d argument(s)", ErrUsage, names, len(args))
	}

	return nil
}
