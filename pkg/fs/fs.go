// Package fs provides the filesystem primitives used by file and directory handles.
//
// The main types are:
//   - [FS]: interface for the primitives handles are built on
//   - [Real]: production implementation using [os] package
//   - [Chaos]: testing implementation that injects random or sticky failures
//   - [StrictTestFS]: testing wrapper that fails the test on real OS errors
//
// Example usage:
//
//	fsys := fs.NewReal()
//	info, err := fsys.Stat("uploads/a.png")
//	if err != nil {
//	    return err
//	}
package fs

import (
	"io"
	"os"
)

// AccessMode selects the permission checked by [FS.Access].
type AccessMode uint32

const (
	// AccessRead checks that the caller may read the path.
	AccessRead AccessMode = 1 << iota
	// AccessWrite checks that the caller may write the path.
	AccessWrite
)

// FS defines the filesystem operations handles need.
//
// Implementations in this package include:
//   - [Real]: production use, wraps [os] package
//   - [Chaos]: testing use, injects failures
//   - [StrictTestFS]: testing use, traces operations
//
// Methods mirror their [os] package equivalents so that errors keep
// [os.IsNotExist] / [os.IsPermission] semantics.
//
// Paths use OS semantics (like the os package and path/filepath), not the
// slash-separated paths used by the standard library io/fs package.
type FS interface {
	// Stat returns file info, following symlinks. See [os.Stat].
	Stat(path string) (os.FileInfo, error)

	// Lstat returns file info without following symlinks. See [os.Lstat].
	Lstat(path string) (os.FileInfo, error)

	// Access reports whether the calling process has the given permission on
	// path. Returns nil when granted, an error wrapping [os.ErrPermission]
	// when denied.
	Access(path string, mode AccessMode) error

	// ReadFile reads an entire file into memory. See [os.ReadFile].
	ReadFile(path string) ([]byte, error)

	// WriteFile truncates (or creates) path and writes data. See [os.WriteFile].
	// Returns the number of bytes written.
	WriteFile(path string, data []byte, perm os.FileMode) (int, error)

	// AppendFile appends data to path, creating it if necessary.
	// Returns the number of bytes written.
	AppendFile(path string, data []byte, perm os.FileMode) (int, error)

	// WriteFileAtomic replaces path with the contents of r using a temp
	// file + rename, so readers never observe a partial file.
	WriteFileAtomic(path string, r io.Reader) error

	// CopyFile duplicates the regular file at src into dst (truncating dst).
	CopyFile(src, dst string) error

	// ReadDir reads a directory and returns its entries. See [os.ReadDir].
	// Entries are sorted by name.
	ReadDir(path string) ([]os.DirEntry, error)

	// Mkdir creates a single directory. See [os.Mkdir].
	Mkdir(path string, perm os.FileMode) error

	// MkdirAll creates a directory and all parents. See [os.MkdirAll].
	MkdirAll(path string, perm os.FileMode) error

	// Remove deletes a file or empty directory. See [os.Remove].
	Remove(path string) error

	// Rename moves/renames a file or directory. See [os.Rename].
	// Atomic on the same filesystem.
	Rename(oldpath, newpath string) error
}
