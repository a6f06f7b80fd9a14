package cli_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/calvinalkan/fshandle/internal/cli"
)

func Test_Invalid_Global_Flag_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout, stderr, exitCode := c.Run("--invalid-flag", "ls")

	if got, want := exitCode, 1; got != want {
		t.Errorf("exitCode=%d, want=%d", got, want)
	}

	if got, want := stdout, ""; got != want {
		t.Errorf("stdout=%q, want=%q", got, want)
	}

	cli.AssertContains(t, stderr, "unknown flag")
	cli.AssertContains(t, stderr, "--invalid-flag")

	// Should show valid global options
	cli.AssertContains(t, stderr, "--cwd")
	cli.AssertContains(t, stderr, "--config")
	cli.AssertContains(t, stderr, "--root")
}

func Test_Usage_Printed_When_No_Command_Given(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout, stderr, exitCode := c.Run()

	if got, want := exitCode, 0; got != want {
		t.Errorf("exitCode=%d, want=%d", got, want)
	}

	if stderr != "" {
		t.Errorf("stderr=%q, want empty", stderr)
	}

	cli.AssertContains(t, stdout, "Usage: fsh")

	for _, name := range []string{"ls", "cat", "stat", "hash", "find", "write", "mkdir", "rm", "mv", "cp", "run", "resolve", "print-config", "shell"} {
		cli.AssertContains(t, stdout, "  "+name)
	}
}

func Test_Usage_Printed_When_Help_Flag_Given(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	for _, args := range [][]string{{"--help"}, {"-h"}, {"-h", "ls"}} {
		stdout, _, exitCode := c.Run(args...)

		if got, want := exitCode, 0; got != want {
			t.Errorf("%v: exitCode=%d, want=%d", args, got, want)
		}

		cli.AssertContains(t, stdout, "Usage: fsh [options] <command>")
	}
}

func Test_Command_Help_Shows_Usage_And_Flags(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("rm", "--help")

	cli.AssertContains(t, stdout, "Usage: fsh rm [-r] <path>...")
	cli.AssertContains(t, stdout, "Flags:")
	cli.AssertContains(t, stdout, "--recursive")
}

func Test_Usage_Lists_Commands_Under_Their_Group(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("--help")

	sections := []string{" Read:", "  ls [dir]", " Write:", "  write ", " Script:", "  run <script.js>", " Session:", "  shell"}

	last := -1

	for _, s := range sections {
		i := strings.Index(stdout, s)
		if i < 0 {
			t.Fatalf("usage missing %q:\n%s", s, stdout)
		}

		if i < last {
			t.Fatalf("usage has %q out of order:\n%s", s, stdout)
		}

		last = i
	}
}

func Test_Command_Flag_Error_Prints_Usage_Line_To_Stderr_Only(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("cp", "--nope", "a", "b")

	cli.AssertContains(t, stderr, "unknown flag: --nope")
	cli.AssertContains(t, stderr, "usage: fsh cp [-f] <src> <dst>")
	cli.AssertContains(t, stderr, "Run 'fsh cp --help' for details.")
}

func Test_Unknown_Command_Fails_With_Usage_On_Stderr(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("frobnicate")

	cli.AssertContains(t, stderr, "unknown command: frobnicate")
	cli.AssertContains(t, stderr, "Commands:")
}

func Test_Unknown_Command_Flag_Fails(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	_, stderr, exitCode := c.Run("ls", "--bogus")

	if got, want := exitCode, 1; got != want {
		t.Errorf("exitCode=%d, want=%d", got, want)
	}

	cli.AssertContains(t, stderr, "unknown flag: --bogus")
}

func Test_Wrong_Argument_Count_Fails(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("mv", "only-one")

	cli.AssertContains(t, stderr, "usage: expected <src> <dst>, got 1 argument(s)")
}

func Test_Missing_Root_Fails_When_Root_Flag_Points_Nowhere(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("--root", "does-not-exist", "ls")

	cli.AssertContains(t, stderr, "directory not found")
}

func Test_Root_Flag_Changes_Storage_Root(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("data/inside.txt", "x")
	c.WriteFile("outside.txt", "y")

	stdout := c.MustRun("--root", "data", "ls")

	if got, want := stdout, "inside.txt"; got != want {
		t.Errorf("stdout=%q, want=%q", got, want)
	}
}

func Test_Explicit_Config_Missing_Fails(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("--config", "nope.json", "ls")

	cli.AssertContains(t, stderr, "config file not found")
}

func Test_Project_Config_Sets_Root_And_Aliases(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile(".fsh.json", `{
		// storage lives below the project
		"root": "store",
		"aliases": {"uploads": "user/uploads",},
	}`)
	c.WriteFile("store/user/uploads/a.png", "png")

	stdout := c.MustRun("ls", "{uploads}")

	if got, want := stdout, "a.png"; got != want {
		t.Errorf("stdout=%q, want=%q", got, want)
	}
}

func Test_Global_Config_Is_Overridden_By_Project_Config(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	globalDir := filepath.Join(c.Env["XDG_CONFIG_HOME"], "fsh")
	if err := os.MkdirAll(globalDir, 0o755); err != nil {
		t.Fatal(err)
	}

	err := os.WriteFile(filepath.Join(globalDir, "config.json"),
		[]byte(`{"script_timeout": "9s", "aliases": {"a": "from-global", "g": "global-only"}}`), 0o600)
	if err != nil {
		t.Fatal(err)
	}

	c.WriteFile(".fsh.yaml", "aliases:\n  a: from-project\n")

	stdout := c.MustRun("print-config")

	cli.AssertContains(t, stdout, "script_timeout=9s")
	cli.AssertContains(t, stdout, "alias.a="+c.Path("from-project")+string(filepath.Separator))
	cli.AssertContains(t, stdout, "alias.g="+c.Path("global-only")+string(filepath.Separator))
	cli.AssertContains(t, stdout, "global_config="+filepath.Join(globalDir, "config.json"))
	cli.AssertContains(t, stdout, "project_config="+c.Path(".fsh.yaml"))
}

func Test_Print_Config_Shows_Defaults_Only_Without_Files(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("print-config")

	cli.AssertContains(t, stdout, "effective_cwd="+c.Dir)
	cli.AssertContains(t, stdout, "root="+c.Dir)
	cli.AssertContains(t, stdout, "script_timeout=5s")
	cli.AssertContains(t, stdout, "(defaults only)")
	cli.AssertNotContains(t, stdout, "alias.")
}

func Test_Verbose_Logs_Debug_To_Stderr(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	_, stderr, exitCode := c.Run("-v", "ls")
	if got, want := exitCode, 0; got != want {
		t.Fatalf("exitCode=%d, want=%d (stderr=%s)", got, want, stderr)
	}

	cli.AssertContains(t, stderr, "DEBUG")
	cli.AssertContains(t, stderr, "config loaded")
	cli.AssertContains(t, stderr, "dispatch")

	_, stderr, _ = c.Run("ls")
	if stderr != "" {
		t.Errorf("stderr without -v=%q, want empty", stderr)
	}
}

func Test_Signal_Cancels_Running_Script(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile(".fsh.json", `{"script_timeout": "1m"}`)
	c.WriteFile("spin.js", "for (;;) {}")

	sigCh := make(chan os.Signal, 1)
	sigCh <- os.Interrupt

	var out, errOut bytes.Buffer

	start := time.Now()
	code := cli.Run(nil, &out, &errOut, []string{"fsh", "--cwd", c.Dir, "run", "spin.js"}, c.Env, sigCh)

	if got, want := code, 1; got != want {
		t.Errorf("exitCode=%d, want=%d", got, want)
	}

	if elapsed := time.Since(start); elapsed > 30*time.Second {
		t.Errorf("run took %s, want it cancelled by the signal", elapsed)
	}

	if !strings.Contains(errOut.String(), "script interrupted") {
		t.Errorf("stderr=%q, want timeout error", errOut.String())
	}
}
