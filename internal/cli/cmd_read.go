package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/calvinalkan/fshandle/pkg/handle"
)

// LsCmd returns the ls command.
func LsCmd(e *Env) *Command {
	flags := flag.NewFlagSet("ls", flag.ContinueOnError)
	abs := flags.BoolP("abs", "a", false, "Print absolute paths")

	return &Command{
		Flags: flags,
		Usage: "ls [dir]",
		Group: GroupRead,
		Short: "List directory entries",
		Long: `List the immediate children of a directory, sorted by name.
Directories end with "/". Symlinks and special files are not listed.
Without an argument the storage root is listed.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) > 1 {
				return wantArgs(args, 1, "[dir]")
			}

			logical := ""
			if len(args) == 1 {
				logical = args[0]
			}

			return execLs(e, o, logical, *abs)
		},
	}
}

func execLs(e *Env, o *IO, logical string, abs bool) error {
	dir, err := e.Storage.OpenDir(logical)
	if err != nil {
		return err
	}

	children, err := dir.Children()
	if err != nil {
		return err
	}

	for _, child := range children {
		name := child.Base()
		if abs {
			name = child.Path()
		}

		if child.IsDir() {
			name += "/"
		}

		o.Println(name)
	}

	return nil
}

// CatCmd returns the cat command.
func CatCmd(e *Env) *Command {
	return &Command{
		Flags: flag.NewFlagSet("cat", flag.ContinueOnError),
		Usage: "cat <file>...",
		Group: GroupRead,
		Short: "Print file content",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return wantArgs(args, 1, "<file>")
			}

			for _, logical := range args {
				f, err := e.Storage.OpenFile(logical)
				if err != nil {
					return err
				}

				data, err := f.Read()
				if err != nil {
					return err
				}

				if _, err := o.Write(data); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
			}

			return nil
		},
	}
}

// StatCmd returns the stat command.
func StatCmd(e *Env) *Command {
	return &Command{
		Flags: flag.NewFlagSet("stat", flag.ContinueOnError),
		Usage: "stat <path>",
		Group: GroupRead,
		Short: "Show path metadata",
		Long:  "Show type, size, mode and modification time. Files also get their sniffed MIME type.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if err := wantArgs(args, 1, "<path>"); err != nil {
				return err
			}

			return execStat(e, o, args[0])
		},
	}
}

func execStat(e *Env, o *IO, logical string) error {
	node, err := e.Storage.Open(logical)
	if err != nil {
		return err
	}

	if !node.Exists() {
		return &handle.Error{Op: "stat", Path: node.Path(), Err: handle.ErrFileNotFound}
	}

	info, err := e.FS.Stat(node.Path())
	if err != nil {
		return err
	}

	kind := "file"
	if node.IsDir() {
		kind = "directory"
	}

	o.Println("path=" + node.Path())
	o.Println("type=" + kind)
	o.Printf("size=%d\n", info.Size())
	o.Printf("mode=%s\n", info.Mode().Perm())
	o.Println("modified=" + info.ModTime().UTC().Format("2006-01-02T15:04:05Z"))

	if f, ok := node.(*handle.File); ok {
		mime, err := f.MimeType()
		if err != nil {
			return err
		}

		o.Println("mime=" + mime)
	}

	return nil
}

// HashCmd returns the hash command.
func HashCmd(e *Env) *Command {
	return &Command{
		Flags: flag.NewFlagSet("hash", flag.ContinueOnError),
		Usage: "hash <file>...",
		Group: GroupRead,
		Short: "Print 128-bit xxh3 content hashes",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return wantArgs(args, 1, "<file>")
			}

			for _, logical := range args {
				f, err := e.Storage.OpenFile(logical)
				if err != nil {
					return err
				}

				sum, err := f.Hash()
				if err != nil {
					return err
				}

				o.Printf("%s  %s\n", sum, logical)
			}

			return nil
		},
	}
}

// FindCmd returns the find command.
func FindCmd(e *Env) *Command {
	flags := flag.NewFlagSet("find", flag.ContinueOnError)
	workers := flags.Int("workers", 0, "Walker goroutines (0 = default)")

	return &Command{
		Flags: flags,
		Usage: "find <dir> <pattern>",
		Group: GroupRead,
		Short: "Find paths matching a glob",
		Long: `Walk <dir> and print paths, relative to it, that match <pattern>.
Patterns use doublestar syntax: "*" stays within one segment, "**" spans
directories, e.g. "**/*.png". Symlinks are not followed or printed.
Unreadable subdirectories are reported as warnings and skipped.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if err := wantArgs(args, 2, "<dir> <pattern>"); err != nil {
				return err
			}

			return execFind(ctx, e, o, args[0], args[1], *workers)
		},
	}
}

func execFind(ctx context.Context, e *Env, o *IO, logical, pattern string, workers int) error {
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("%w: %q", doublestar.ErrBadPattern, pattern)
	}

	dir, err := e.Storage.OpenDir(logical)
	if err != nil {
		return err
	}

	if err := dir.ExistsOrDie(); err != nil {
		return err
	}

	root := dir.Path()

	var (
		mu       sync.Mutex
		matches  []string
		failures []string
	)

	conf := fastwalk.Config{Follow: false, NumWorkers: workers}

	err = fastwalk.Walk(&conf, root, func(path string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			mu.Lock()
			failures = append(failures, err.Error())
			mu.Unlock()

			return nil
		}

		if path == root || d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		rel = filepath.ToSlash(rel)

		if ok, _ := doublestar.Match(pattern, rel); ok {
			if d.IsDir() {
				rel += "/"
			}

			mu.Lock()
			matches = append(matches, rel)
			mu.Unlock()
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("find interrupted: %w", err)
		}

		return fmt.Errorf("walk %s: %w", root, err)
	}

	e.Log.Debug("find done",
		zap.String("root", root),
		zap.String("pattern", pattern),
		zap.Int("matches", len(matches)),
		zap.Int("failures", len(failures)),
	)

	slices.Sort(matches)
	slices.Sort(failures)

	for _, failure := range failures {
		o.Warn("skipped: %s", failure)
	}

	if len(matches) > 0 {
		o.Println(strings.Join(matches, "\n"))
	}

	return nil
}
