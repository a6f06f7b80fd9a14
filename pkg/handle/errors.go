package handle

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Sentinel errors. Every error returned by a handle is an [*Error] wrapping
// one of these (or an OS error), so callers match with [errors.Is].
var (
	ErrPathIsNotFile           = errors.New("path is not a file")
	ErrPathIsNotDirectory      = errors.New("path is not a directory")
	ErrFileNotFound            = errors.New("file not found")
	ErrDirectoryNotFound       = errors.New("directory not found")
	ErrFilePermissions         = errors.New("file permission denied")
	ErrDirectoryPermissions    = errors.New("directory permission denied")
	ErrFileFound               = errors.New("destination file already exists")
	ErrDirectoryFound          = errors.New("destination directory already exists")
	ErrDirectoryIsNotEmpty     = errors.New("directory is not empty")
	ErrFileExtensionNotAllowed = errors.New("file extension not allowed")
	ErrCopyIntoItself          = errors.New("cannot copy a directory into itself")
	ErrNoScriptRunner          = errors.New("no script runner configured")
)

// errSamePath guards move/copy onto the source itself, which with overwrite
// would delete the source before reading it.
var errSamePath = fmt.Errorf("%w: source and destination are the same path", os.ErrInvalid)

// errDestContainsSource guards an overwriting move/copy whose destination is
// an ancestor of the source.
var errDestContainsSource = fmt.Errorf("%w: destination contains the source", os.ErrInvalid)

// Error is the uniform error type returned by File and Directory operations.
//
// The underlying error message appears first, followed by the operation
// context:
//
//	destination file already exists (op=move path=/data/a.txt dest=/data/b.txt)
//
// Use [errors.As] to extract structured fields:
//
//	var hErr *handle.Error
//	if errors.As(err, &hErr) {
//	    fmt.Println(hErr.Op, hErr.Path)
//	}
type Error struct {
	// Op is the handle operation that failed (read, write, copy, ...).
	Op string

	// Path is the handle's own path.
	Path string

	// Dest is the destination path for move/copy. Empty otherwise.
	Dest string

	// Err is the underlying cause.
	Err error
}

// Error formats as "<cause> (op=X path=Y dest=Z)".
func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	cause := ""
	if e.Err != nil {
		cause = e.Err.Error()
	}

	suffix := e.suffix()

	if suffix == "" {
		return cause
	}

	if cause == "" {
		return suffix
	}

	return cause + " " + suffix
}

// Unwrap returns the underlying error for use with [errors.Is] and [errors.As].
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

func (e *Error) suffix() string {
	var parts []string

	if e.Op != "" {
		parts = append(parts, "op="+e.Op)
	}

	if e.Path != "" {
		parts = append(parts, "path="+e.Path)
	}

	if e.Dest != "" {
		parts = append(parts, "dest="+e.Dest)
	}

	if len(parts) == 0 {
		return ""
	}

	return "(" + strings.Join(parts, " ") + ")"
}

// wrap attaches operation context. An *Error coming from a nested handle
// (for example a child during recursive copy) is returned unchanged so the
// innermost context wins.
func wrap(err error, op, path string) error {
	return wrapDest(err, op, path, "")
}

func wrapDest(err error, op, path, dest string) error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) {
		return err
	}

	return &Error{Op: op, Path: path, Dest: dest, Err: err}
}
