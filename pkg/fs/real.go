package fs

import (
	"fmt"
	"io"
	"os"

	"github.com/natefinch/atomic"
	"golang.org/x/sys/unix"
)

// Real implements [FS] using the real filesystem.
//
// Most methods are pure passthroughs to the [os] package with identical
// behavior and error semantics. The exceptions are [Real.Access] which
// uses access(2), [Real.WriteFileAtomic] which uses atomic file writes, and
// [Real.CopyFile] which streams one file into another.
type Real struct{}

// NewReal returns a new [Real] filesystem.
func NewReal() *Real {
	return &Real{}
}

// A passthrough wrapper for [os.Stat].
func (r *Real) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// A passthrough wrapper for [os.Lstat].
func (r *Real) Lstat(path string) (os.FileInfo, error) {
	return os.Lstat(path)
}

// Access checks permissions with access(2), using the real uid/gid.
func (r *Real) Access(path string, mode AccessMode) error {
	var how uint32
	if mode&AccessRead != 0 {
		how |= unix.R_OK
	}

	if mode&AccessWrite != 0 {
		how |= unix.W_OK
	}

	err := unix.Access(path, how)
	if err != nil {
		return &os.PathError{Op: "access", Path: path, Err: err}
	}

	return nil
}

// A passthrough wrapper for [os.ReadFile].
func (r *Real) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (r *Real) WriteFile(path string, data []byte, perm os.FileMode) (int, error) {
	return writeWithFlags(path, data, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
}

func (r *Real) AppendFile(path string, data []byte, perm os.FileMode) (int, error) {
	return writeWithFlags(path, data, os.O_WRONLY|os.O_CREATE|os.O_APPEND, perm)
}

func (r *Real) WriteFileAtomic(path string, reader io.Reader) error {
	return atomic.WriteFile(path, reader)
}

func (r *Real) CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()

		return fmt.Errorf("copy %q to %q: %w", src, dst, err)
	}

	return out.Close()
}

// A passthrough wrapper for [os.ReadDir].
func (r *Real) ReadDir(path string) ([]os.DirEntry, error) {
	return os.ReadDir(path)
}

// A passthrough wrapper for [os.Mkdir].
func (r *Real) Mkdir(path string, perm os.FileMode) error {
	return os.Mkdir(path, perm)
}

// A passthrough wrapper for [os.MkdirAll].
func (r *Real) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// A passthrough wrapper for [os.Remove].
func (r *Real) Remove(path string) error {
	return os.Remove(path)
}

// A passthrough wrapper for [os.Rename].
func (r *Real) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

func writeWithFlags(path string, data []byte, flag int, perm os.FileMode) (int, error) {
	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		return 0, err
	}

	n, err := f.Write(data)
	if err != nil {
		_ = f.Close()

		return n, err
	}

	return n, f.Close()
}

// Compile-time interface check.
var _ FS = (*Real)(nil)
