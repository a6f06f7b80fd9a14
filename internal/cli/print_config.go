package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(e *Env) *Command {
	return &Command{
		Flags: flag.NewFlagSet("print-config", flag.ContinueOnError),
		Usage: "print-config",
		Group: GroupSession,
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration and which files it was loaded from.",
		Exec: func(_ context.Context, io *IO, _ []string) error {
			return execPrintConfig(e, io)
		},
	}
}

func execPrintConfig(e *Env, io *IO) error {
	cfg := e.Config

	io.Println("effective_cwd=" + cfg.EffectiveCwd)
	io.Println("root=" + cfg.RootAbs)
	io.Println("script_timeout=" + cfg.Timeout.String())

	aliases := e.Storage.Aliases()
	for _, token := range e.Storage.Tokens() {
		io.Println("alias." + token + "=" + aliases[token])
	}

	io.Println("")
	io.Println("# sources")

	if cfg.Sources.Global == "" && cfg.Sources.Project == "" {
		io.Println("(defaults only)")
	} else {
		if cfg.Sources.Global != "" {
			io.Println("global_config=" + cfg.Sources.Global)
		}

		if cfg.Sources.Project != "" {
			io.Println("project_config=" + cfg.Sources.Project)
		}
	}

	return nil
}
