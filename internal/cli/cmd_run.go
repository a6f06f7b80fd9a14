package cli

import (
	"context"
	"encoding/json"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/fshandle/pkg/script"
)

// RunCmd returns the run command.
func RunCmd(e *Env) *Command {
	return &Command{
		Flags: flag.NewFlagSet("run", flag.ContinueOnError),
		Usage: "run <script.js>",
		Group: GroupScript,
		Short: "Execute a trusted JavaScript file",
		Long: `Execute a .js file and print its result: module.exports if assigned,
otherwise the value of the last statement. Strings print as-is, other
values as JSON. console.log writes to stdout. The global "root" holds the
storage root. Runs are bounded by script_timeout from the config.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if err := wantArgs(args, 1, "<script.js>"); err != nil {
				return err
			}

			return execRun(ctx, e, o, args[0])
		},
	}
}

func execRun(ctx context.Context, e *Env, o *IO, logical string) error {
	f, err := e.Storage.OpenFile(logical)
	if err != nil {
		return err
	}

	runner := script.New(script.Config{
		Timeout: e.Config.Timeout,
		Globals: map[string]any{"root": e.Storage.Root()},
		Console: o,
	}).WithContext(ctx)

	result, err := f.Import(runner)
	if err != nil {
		return err
	}

	switch v := result.(type) {
	case nil:
		return nil
	case string:
		o.Println(v)

		return nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}

		o.Println(string(data))

		return nil
	}
}

// ResolveCmd returns the resolve command.
func ResolveCmd(e *Env) *Command {
	return &Command{
		Flags: flag.NewFlagSet("resolve", flag.ContinueOnError),
		Usage: "resolve <logical>...",
		Group: GroupSession,
		Short: "Print the absolute path for logical paths",
		Long:  "Substitute {alias} tokens and prefix the storage root. Nothing is checked on disk.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return wantArgs(args, 1, "<logical>")
			}

			for _, logical := range args {
				o.Println(e.Storage.Resolve(logical))
			}

			return nil
		},
	}
}
