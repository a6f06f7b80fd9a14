package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/fshandle/pkg/handle"
)

// ErrNoInput is returned by write when no text is given and stdin is absent.
var ErrNoInput = errors.New("no text given and no stdin")

// WriteCmd returns the write command.
func WriteCmd(e *Env) *Command {
	flags := flag.NewFlagSet("write", flag.ContinueOnError)
	appendMode := flags.BoolP("append", "a", false, "Append instead of replacing")
	atomicMode := flags.Bool("atomic", false, "Replace via temp file and rename")

	return &Command{
		Flags: flags,
		Usage: "write [--append] [--atomic] <file> [text...]",
		Group: GroupWrite,
		Short: "Write text to a file",
		Long: `Write text to a file, creating it if needed. The text arguments are joined
with spaces; without text, stdin is written. The content replaces the file
unless --append is given. --atomic makes readers see either the old or the
new content, never a mix.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return wantArgs(args, 1, "<file> [text...]")
			}

			if *appendMode && *atomicMode {
				return fmt.Errorf("%w: --append and --atomic are mutually exclusive", ErrUsage)
			}

			content, err := writeContent(e, args[1:])
			if err != nil {
				return err
			}

			f, err := e.Storage.OpenFile(args[0])
			if err != nil {
				return err
			}

			if *atomicMode {
				return f.WriteAtomic(content)
			}

			_, err = f.Write(content, !*appendMode)

			return err
		},
	}
}

func writeContent(e *Env, text []string) ([]byte, error) {
	if len(text) > 0 {
		return []byte(strings.Join(text, " ")), nil
	}

	if e.In == nil {
		return nil, ErrNoInput
	}

	data, err := io.ReadAll(e.In)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}

	return data, nil
}

// MkdirCmd returns the mkdir command.
func MkdirCmd(e *Env) *Command {
	flags := flag.NewFlagSet("mkdir", flag.ContinueOnError)
	parents := flags.BoolP("parents", "p", false, "Create missing parent directories")

	return &Command{
		Flags: flags,
		Usage: "mkdir [-p] <dir>...",
		Group: GroupWrite,
		Short: "Create directories",
		Long:  "Create directories. Existing directories are left alone.",
		Exec: func(_ context.Context, _ *IO, args []string) error {
			if len(args) == 0 {
				return wantArgs(args, 1, "<dir>")
			}

			for _, logical := range args {
				dir, err := e.Storage.OpenDir(logical)
				if err != nil {
					return err
				}

				if err := dir.Write(*parents, 0); err != nil {
					return err
				}
			}

			return nil
		},
	}
}

// RmCmd returns the rm command.
func RmCmd(e *Env) *Command {
	flags := flag.NewFlagSet("rm", flag.ContinueOnError)
	recursive := flags.BoolP("recursive", "r", false, "Remove directories and their contents")

	return &Command{
		Flags: flags,
		Usage: "rm [-r] <path>...",
		Group: GroupWrite,
		Short: "Remove files or directories",
		Long: `Remove files or directories. A non-empty directory needs -r.
A failure partway through -r leaves the remaining entries in place.`,
		Exec: func(_ context.Context, _ *IO, args []string) error {
			if len(args) == 0 {
				return wantArgs(args, 1, "<path>")
			}

			for _, logical := range args {
				node, err := e.Storage.Open(logical)
				if err != nil {
					return err
				}

				switch n := node.(type) {
				case *handle.Directory:
					err = n.Delete(*recursive)
				case *handle.File:
					if err = n.ExistsOrDie(); err == nil {
						err = n.Delete()
					}
				}

				if err != nil {
					return err
				}
			}

			return nil
		},
	}
}

// MvCmd returns the mv command.
func MvCmd(e *Env) *Command {
	flags := flag.NewFlagSet("mv", flag.ContinueOnError)
	force := flags.BoolP("force", "f", false, "Replace an existing destination")

	return &Command{
		Flags: flags,
		Usage: "mv [-f] <src> <dst>",
		Group: GroupWrite,
		Short: "Move a file or directory",
		Long: `Rename <src> to <dst>. An existing destination is an error unless -f is
given, in which case it is deleted (recursively for directories) first.`,
		Exec: func(_ context.Context, _ *IO, args []string) error {
			if err := wantArgs(args, 2, "<src> <dst>"); err != nil {
				return err
			}

			return transfer(e, args[0], args[1], *force, true)
		},
	}
}

// CpCmd returns the cp command.
func CpCmd(e *Env) *Command {
	flags := flag.NewFlagSet("cp", flag.ContinueOnError)
	force := flags.BoolP("force", "f", false, "Replace an existing destination")

	return &Command{
		Flags: flags,
		Usage: "cp [-f] <src> <dst>",
		Group: GroupWrite,
		Short: "Copy a file or directory tree",
		Long: `Copy <src> to <dst>. Directories are copied with their whole tree.
An existing destination is an error unless -f is given, in which case it is
deleted first. Copying a directory into itself is refused.`,
		Exec: func(_ context.Context, _ *IO, args []string) error {
			if err := wantArgs(args, 2, "<src> <dst>"); err != nil {
				return err
			}

			return transfer(e, args[0], args[1], *force, false)
		},
	}
}

func transfer(e *Env, srcLogical, dstLogical string, overwrite, move bool) error {
	src, err := e.Storage.Open(srcLogical)
	if err != nil {
		return err
	}

	dst := e.Storage.Resolve(dstLogical)

	switch n := src.(type) {
	case *handle.Directory:
		if move {
			_, err = n.Move(dst, overwrite)
		} else {
			_, err = n.Copy(dst, overwrite)
		}
	case *handle.File:
		if move {
			_, err = n.Move(dst, overwrite)
		} else {
			_, err = n.Copy(dst, overwrite)
		}
	}

	return err
}
