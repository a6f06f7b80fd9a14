// Package handle provides typed handles over filesystem paths.
//
// A [File] or [Directory] wraps a single absolute path and performs every
// operation against the live filesystem through an [fs.FS]. Handles hold no
// open descriptors between calls. The only in-memory state is the
// directory listing a [Directory] caches on its first [Directory.Read].
//
// Both handle kinds implement [Node], the capability recursive directory
// operations are written against.
//
// Nothing here is safe for concurrent mutation of the same path; outcomes of
// racing handles follow the host OS semantics.
package handle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/calvinalkan/fshandle/pkg/fs"
)

// Node is the capability shared by [File] and [Directory].
type Node interface {
	// Path returns the absolute path of the handle.
	Path() string

	// Base returns the last element of the path.
	Base() string

	// IsDir reports whether the handle is a [Directory].
	IsDir() bool

	// Exists reports whether the path currently holds the handle's kind.
	Exists() bool

	// Entries lists immediate children, sorted by path. Files have none.
	Entries() ([]Node, error)

	// Unlink removes the node itself. Directories must be empty.
	Unlink() error

	// CopyTo copies the node to path and returns a handle for the copy.
	CopyTo(path string, overwrite bool) (Node, error)
}

// DefaultFilePerm is the mode new files are created with (before umask).
const DefaultFilePerm os.FileMode = 0o666

// DefaultDirPerm is the mode new directories are created with (before umask).
const DefaultDirPerm os.FileMode = 0o777

// Open returns a [Directory] when path is a directory and a [File] otherwise.
// A missing path yields a [File].
func Open(fsys fs.FS, path string) (Node, error) {
	abs, err := absPath(path)
	if err != nil {
		return nil, err
	}

	info, err := fsys.Stat(abs)
	if err == nil && info.IsDir() {
		return NewDirectory(fsys, abs)
	}

	return NewFile(fsys, abs)
}

// Key returns the listing key for path: the absolute path with forward
// slashes regardless of host OS.
func Key(path string) string {
	return filepath.ToSlash(path)
}

func absPath(path string) (string, error) {
	if path == "" {
		return "", &Error{Op: "open", Err: fmt.Errorf("%w: empty path", os.ErrInvalid)}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", &Error{Op: "open", Path: path, Err: err}
	}

	return abs, nil
}

// occupied reports what currently sits at path. A dangling symlink reports
// exists=true with a nil info.
func occupied(fsys fs.FS, path string) (os.FileInfo, bool, error) {
	info, err := fsys.Stat(path)
	if err == nil {
		return info, true, nil
	}

	if !os.IsNotExist(err) {
		return nil, false, err
	}

	if _, lerr := fsys.Lstat(path); lerr == nil {
		return nil, true, nil
	}

	return nil, false, nil
}

// permissionErr maps a failed access check onto sentinel, keeping the OS
// error in the chain. Errors other than permission denials pass through.
func permissionErr(sentinel, err error) error {
	if errors.Is(err, os.ErrPermission) || isReadOnlyFS(err) {
		return fmt.Errorf("%w: %w", sentinel, err)
	}

	return err
}

func isReadOnlyFS(err error) bool {
	return errors.Is(err, syscall.EROFS)
}
