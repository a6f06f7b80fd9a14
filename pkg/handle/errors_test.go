package handle_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/calvinalkan/fshandle/pkg/fs"
	"github.com/calvinalkan/fshandle/pkg/handle"
)

func Test_Error_Formats_Cause_Then_Context(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *handle.Error
		want string
	}{
		{
			name: "full",
			err:  &handle.Error{Op: "move", Path: "/data/a.txt", Dest: "/data/b.txt", Err: handle.ErrFileFound},
			want: "destination file already exists (op=move path=/data/a.txt dest=/data/b.txt)",
		},
		{
			name: "no dest",
			err:  &handle.Error{Op: "read", Path: "/data/a.txt", Err: handle.ErrFileNotFound},
			want: "file not found (op=read path=/data/a.txt)",
		},
		{
			name: "cause only",
			err:  &handle.Error{Err: handle.ErrFileNotFound},
			want: "file not found",
		},
		{
			name: "context only",
			err:  &handle.Error{Op: "open"},
			want: "(op=open)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.err.Error(); got != tt.want {
				t.Fatalf("Error()=%q, want=%q", got, tt.want)
			}
		})
	}
}

func Test_Error_Keeps_Innermost_Context_During_Recursive_Copy(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	bad := filepath.Join(src, "sub", "bad.txt")
	writeFile(t, bad, "x")

	chaos := fs.NewChaos(fs.NewReal(), 1, fs.ChaosConfig{})
	chaos.SetMode(fs.ChaosModeStickyOnly)
	chaos.SetPathState(bad, fs.PathNoPermission)

	d, err := handle.NewDirectory(chaos, src)
	if err != nil {
		t.Fatalf("NewDirectory: %v", err)
	}

	_, err = d.Copy(filepath.Join(dir, "dst"), false)
	if err == nil {
		t.Fatal("Copy: want error, got nil")
	}

	var hErr *handle.Error
	if !errors.As(err, &hErr) {
		t.Fatalf("Copy err=%T, want *handle.Error", err)
	}

	if got, want := hErr.Path, bad; got != want {
		t.Fatalf("Error.Path=%q, want=%q", got, want)
	}

	if !fs.IsInjected(err) {
		t.Fatalf("Copy err=%v, want injected cause", err)
	}
}

func Test_NewFile_Rejects_Empty_Path(t *testing.T) {
	t.Parallel()

	_, err := handle.NewFile(fs.NewReal(), "")
	if !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("NewFile(\"\") err=%v, want=%v", err, os.ErrInvalid)
	}
}
