package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
)

const shellPrompt = "fsh> "

// ShellCmd returns the shell command.
func ShellCmd(e *Env) *Command {
	return &Command{
		Flags: flag.NewFlagSet("shell", flag.ContinueOnError),
		Usage: "shell",
		Group: GroupSession,
		Short: "Interactive prompt for the commands above",
		Long: `Read commands line by line and run them against the same storage.
On a terminal the prompt has history (~/.fsh_history) and tab completion.
Type "help" for commands and "exit" to leave. A failing command prints its
error and the shell continues.`,
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			return runShell(ctx, e, o)
		},
	}
}

// lineReader is the part of *liner.State the shell uses, so piped input can
// be served without a terminal.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	Close() error
}

func runShell(ctx context.Context, e *Env, o *IO) error {
	reader := newLineReader(e.In, historyFile(e.Vars))
	defer func() { _ = reader.Close() }()

	// Nested commands must not read the shell's input.
	inner := *e
	inner.In = nil

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := reader.Prompt(shellPrompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		reader.AppendHistory(line)

		fields := strings.Fields(line)

		switch fields[0] {
		case "exit", "quit", "q":
			return nil
		case "help", "?":
			printUsage(o, commands(&inner))

			continue
		case "shell":
			o.ErrPrintln("error: already in a shell")

			continue
		}

		if code := dispatch(ctx, &inner, o, fields); code != 0 {
			e.Log.Debug("shell command failed", zap.String("line", line), zap.Int("exit_code", code))
		}
	}
}

func newLineReader(in io.Reader, history string) lineReader {
	if f, ok := in.(*os.File); ok && isTerminal(f) && liner.TerminalSupported() {
		state := liner.NewLiner()
		state.SetCtrlCAborts(true)
		state.SetCompleter(completeCommand)

		if history != "" {
			if hf, err := os.Open(history); err == nil {
				_, _ = state.ReadHistory(hf)
				_ = hf.Close()
			}
		}

		return &linerReader{State: state, history: history}
	}

	if in == nil {
		in = strings.NewReader("")
	}

	return &scanReader{scanner: bufio.NewScanner(in)}
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()

	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// historyFile returns the path to the history file, empty without $HOME.
func historyFile(env map[string]string) string {
	home := env["HOME"]
	if home == "" {
		return ""
	}

	return filepath.Join(home, ".fsh_history")
}

// completeCommand provides tab completion for command names.
func completeCommand(line string) []string {
	names := []string{"help", "exit", "quit"}
	for _, cmd := range commands(nil) {
		if cmd.Name() != "shell" {
			names = append(names, cmd.Name())
		}
	}

	var completions []string

	for _, name := range names {
		if strings.HasPrefix(name, line) {
			completions = append(completions, name)
		}
	}

	return completions
}

type linerReader struct {
	*liner.State

	history string
}

// Close persists history and restores the terminal.
func (r *linerReader) Close() error {
	if r.history != "" {
		if f, err := os.Create(r.history); err == nil {
			_, _ = r.WriteHistory(f)
			_ = f.Close()
		}
	}

	return r.State.Close()
}

type scanReader struct {
	scanner *bufio.Scanner
}

func (r *scanReader) Prompt(string) (string, error) {
	if r.scanner.Scan() {
		return r.scanner.Text(), nil
	}

	if err := r.scanner.Err(); err != nil {
		return "", err
	}

	return "", io.EOF
}

func (r *scanReader) AppendHistory(string) {}

func (r *scanReader) Close() error { return nil }
