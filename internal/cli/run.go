package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/calvinalkan/fshandle/internal/config"
	"github.com/calvinalkan/fshandle/pkg/fs"
	"github.com/calvinalkan/fshandle/pkg/storage"
)

const minArgs = 2

// Env is what commands operate on. It is built once per [Run] and shared by
// every command, including those run from the shell.
type Env struct {
	Config  *config.Config
	FS      fs.FS
	Storage *storage.Storage
	Log     *zap.Logger

	// In is stdin, used by write without text and by shell.
	In io.Reader

	// Vars is the process environment.
	Vars map[string]string
}

// Run is the main entry point. Returns exit code.
//
// A value on sigCh cancels the context passed to commands; a nil channel
// never cancels.
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	if len(args) < minArgs {
		printUsage(out, commands(nil))

		return 0
	}

	globals := flag.NewFlagSet("fsh", flag.ContinueOnError)
	globals.SetInterspersed(false)
	globals.SetOutput(io.Discard)

	workDir := globals.StringP("cwd", "C", "", "Run as if started in `dir`")
	configPath := globals.StringP("config", "c", "", "Use specified config `file`")
	root := globals.String("root", "", "Storage root `dir` (overrides config)")
	verbose := globals.BoolP("verbose", "v", false, "Log debug output to stderr")
	help := globals.BoolP("help", "h", false, "Show help")

	if err := globals.Parse(args[1:]); err != nil {
		fprintln(errOut, "error:", err)
		printUsage(errOut, commands(nil))

		return 1
	}

	remaining := globals.Args()
	if *help || len(remaining) == 0 {
		printUsage(out, commands(nil))

		return 0
	}

	log := newLogger(*verbose, errOut)
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load(config.LoadInput{
		WorkDirOverride: *workDir,
		ConfigPath:      *configPath,
		RootOverride:    *root,
		Env:             env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	log.Debug("config loaded",
		zap.String("root", cfg.RootAbs),
		zap.String("global", cfg.Sources.Global),
		zap.String("project", cfg.Sources.Project),
		zap.Int("aliases", len(cfg.Aliases)),
	)

	fsys := fs.NewReal()

	st, err := cfg.OpenStorage(fsys)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case sig := <-sigCh:
				log.Debug("signal received", zap.Stringer("signal", sig))
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	e := &Env{
		Config:  &cfg,
		FS:      fsys,
		Storage: st,
		Log:     log,
		In:      in,
		Vars:    env,
	}

	return dispatch(ctx, e, NewIO(out, errOut), remaining)
}

// commands returns a fresh command set. Flag sets keep parse state, so every
// dispatch builds its own.
func commands(e *Env) []*Command {
	return []*Command{
		LsCmd(e),
		CatCmd(e),
		StatCmd(e),
		HashCmd(e),
		FindCmd(e),
		WriteCmd(e),
		MkdirCmd(e),
		RmCmd(e),
		MvCmd(e),
		CpCmd(e),
		RunCmd(e),
		ResolveCmd(e),
		PrintConfigCmd(e),
		ShellCmd(e),
	}
}

func dispatch(ctx context.Context, e *Env, o *IO, args []string) int {
	name := args[0]

	for _, cmd := range commands(e) {
		if cmd.Name() != name {
			continue
		}

		e.Log.Debug("dispatch", zap.String("command", name), zap.Strings("args", args[1:]))

		code := cmd.Run(ctx, o, args[1:])
		if code != 0 {
			e.Log.Debug("command failed", zap.String("command", name), zap.Int("exit_code", code))
		}

		return code
	}

	o.ErrPrintln("error: unknown command:", name)
	printUsage(o.errOut, commands(e))

	return 1
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer, cmds []*Command) {
	fprintln(w, `fsh - typed file and directory handles over a storage root

Usage: fsh [options] <command> [args]

Options:
  -C, --cwd <dir>      Run as if started in <dir>
  -c, --config <file>  Use specified config file
      --root <dir>     Storage root (overrides config)
  -v, --verbose        Log debug output to stderr

Paths are logical: relative to the storage root, with {alias} tokens
substituted.

Commands:`)

	_, _ = io.WriteString(w, commandList(cmds))
}
