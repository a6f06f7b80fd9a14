package script_test

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/fshandle/pkg/fs"
	"github.com/calvinalkan/fshandle/pkg/handle"
	"github.com/calvinalkan/fshandle/pkg/script"
)

func Test_Runner_Returns_Completion_Value(t *testing.T) {
	t.Parallel()

	r := script.New(script.Config{})

	got, err := r.Run("inline.js", []byte("var a = 20; a + 22"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got != int64(42) {
		t.Fatalf("Run()=%#v, want=42", got)
	}
}

func Test_Runner_Prefers_Module_Exports(t *testing.T) {
	t.Parallel()

	r := script.New(script.Config{})

	got, err := r.Run("config.js", []byte(`module.exports = { uploads: "user/uploads" }; 1`))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := map[string]any{"uploads": "user/uploads"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Run() mismatch (-want +got):\n%s", diff)
	}
}

func Test_Runner_Returns_Nil_When_Script_Has_No_Value(t *testing.T) {
	t.Parallel()

	got, err := script.New(script.Config{}).Run("empty.js", []byte("var x = 1;"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got != nil {
		t.Fatalf("Run()=%#v, want nil", got)
	}
}

func Test_Runner_Hides_Require_And_Process(t *testing.T) {
	t.Parallel()

	got, err := script.New(script.Config{}).Run("probe.js", []byte("typeof require + ',' + typeof process"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if want := "undefined,undefined"; got != want {
		t.Fatalf("Run()=%#v, want=%q", got, want)
	}
}

func Test_Runner_Exposes_Globals_And_Console(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	r := script.New(script.Config{
		Globals: map[string]any{"root": "/srv/data"},
		Console: &out,
	})

	got, err := r.Run("globals.js", []byte(`console.log("root is", root); root + "/x"`))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if want := "/srv/data/x"; got != want {
		t.Fatalf("Run()=%#v, want=%q", got, want)
	}

	if got, want := out.String(), "root is /srv/data\n"; got != want {
		t.Fatalf("console=%q, want=%q", got, want)
	}
}

func Test_Runner_Returns_ErrTimeout_When_Script_Runs_Too_Long(t *testing.T) {
	t.Parallel()

	r := script.New(script.Config{Timeout: 50 * time.Millisecond})

	_, err := r.Run("loop.js", []byte("for (;;) {}"))
	if !errors.Is(err, script.ErrTimeout) {
		t.Fatalf("Run err=%v, want=%v", err, script.ErrTimeout)
	}
}

func Test_Runner_Returns_ErrTimeout_When_Context_Is_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := script.New(script.Config{}).RunContext(ctx, "loop.js", []byte("for (;;) {}"))
	if !errors.Is(err, script.ErrTimeout) {
		t.Fatalf("RunContext err=%v, want=%v", err, script.ErrTimeout)
	}
}

func Test_Runner_Reports_Syntax_And_Runtime_Errors(t *testing.T) {
	t.Parallel()

	r := script.New(script.Config{})

	if _, err := r.Run("bad.js", []byte("var = ;")); err == nil {
		t.Fatal("Run(syntax error): want error, got nil")
	}

	if _, err := r.Run("throw.js", []byte(`throw new Error("boom")`)); err == nil {
		t.Fatal("Run(throw): want error, got nil")
	}
}

func Test_File_Import_Uses_Runner(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "plugin.js")

	f, err := handle.NewFile(fs.NewReal(), path)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	if _, err := f.WriteString(`module.exports = ["a", "b"];`, true); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := f.Import(script.New(script.Config{}))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	if diff := cmp.Diff([]any{"a", "b"}, got); diff != "" {
		t.Fatalf("Import() mismatch (-want +got):\n%s", diff)
	}
}
