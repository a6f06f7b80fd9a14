package handle

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/zeebo/xxh3"

	"github.com/calvinalkan/fshandle/pkg/fs"
)

// File is a handle for a regular file.
//
// Content is never cached; every call reads or writes the filesystem.
type File struct {
	fsys fs.FS
	path string
}

// NewFile returns a handle for path, made absolute.
//
// Fails with [ErrPathIsNotFile] when something other than a regular file
// already exists at path (a directory, a device, a dangling symlink).
// Nothing is created on disk.
func NewFile(fsys fs.FS, path string) (*File, error) {
	abs, err := absPath(path)
	if err != nil {
		return nil, err
	}

	info, exists, err := occupied(fsys, abs)
	if err != nil {
		return nil, wrap(err, "open", abs)
	}

	if exists && (info == nil || !info.Mode().IsRegular()) {
		return nil, &Error{Op: "open", Path: abs, Err: ErrPathIsNotFile}
	}

	return &File{fsys: fsys, path: abs}, nil
}

func (f *File) Path() string { return f.path }

func (f *File) Base() string { return filepath.Base(f.path) }

func (f *File) IsDir() bool { return false }

// Ext returns the substring after the last "." of the base name, without the
// dot. Returns "" when the base name has no dot.
func (f *File) Ext() string {
	base := f.Base()

	i := strings.LastIndexByte(base, '.')
	if i < 0 {
		return ""
	}

	return base[i+1:]
}

// Exists reports whether the path currently denotes a regular file.
func (f *File) Exists() bool {
	info, err := f.fsys.Stat(f.path)

	return err == nil && info.Mode().IsRegular()
}

// ExistsOrDie fails with [ErrFileNotFound] when [File.Exists] is false.
func (f *File) ExistsOrDie() error {
	if !f.Exists() {
		return &Error{Op: "exists", Path: f.path, Err: ErrFileNotFound}
	}

	return nil
}

// Write stores content in the file, creating it if needed. With overwrite the
// content replaces the file, otherwise it is appended. Returns the number of
// bytes written, which may be non-zero on error.
//
// Fails with [ErrFilePermissions] when the file exists and is not writable.
// The write is not atomic; see [File.WriteAtomic].
func (f *File) Write(content []byte, overwrite bool) (int, error) {
	if err := f.checkWritable(); err != nil {
		return 0, err
	}

	var (
		n   int
		err error
	)

	if overwrite {
		n, err = f.fsys.WriteFile(f.path, content, DefaultFilePerm)
	} else {
		n, err = f.fsys.AppendFile(f.path, content, DefaultFilePerm)
	}

	return n, wrap(err, "write", f.path)
}

// WriteString is [File.Write] for string content.
func (f *File) WriteString(content string, overwrite bool) (int, error) {
	return f.Write([]byte(content), overwrite)
}

// WriteAtomic replaces the file content via a temp file and rename, so
// readers see either the old or the new content.
func (f *File) WriteAtomic(content []byte) error {
	if err := f.checkWritable(); err != nil {
		return err
	}

	return wrap(f.fsys.WriteFileAtomic(f.path, bytes.NewReader(content)), "write", f.path)
}

// Read returns the full file content.
//
// Fails with [ErrFileNotFound] when the file is missing and with
// [ErrFilePermissions] when it is not readable.
func (f *File) Read() ([]byte, error) {
	if err := f.ExistsOrDie(); err != nil {
		return nil, err
	}

	if err := f.fsys.Access(f.path, fs.AccessRead); err != nil {
		return nil, wrap(permissionErr(ErrFilePermissions, err), "read", f.path)
	}

	data, err := f.fsys.ReadFile(f.path)
	if err != nil {
		return nil, wrap(err, "read", f.path)
	}

	return data, nil
}

// MatchExtensions reports whether [File.Ext] equals one of exts.
// Matching is case-sensitive.
func (f *File) MatchExtensions(exts ...string) bool {
	return slices.Contains(exts, f.Ext())
}

// MatchExtensionsOrDie fails with [ErrFileExtensionNotAllowed] when
// [File.MatchExtensions] is false.
func (f *File) MatchExtensionsOrDie(exts ...string) error {
	if f.MatchExtensions(exts...) {
		return nil
	}

	return &Error{
		Op:   "match",
		Path: f.path,
		Err:  fmt.Errorf("%w: only %q accepted", ErrFileExtensionNotAllowed, strings.Join(exts, ", ")),
	}
}

// Import executes the file as a trusted script through runner and returns
// the script's result. The file must exist and carry runner's extension.
func (f *File) Import(runner ScriptRunner) (any, error) {
	if runner == nil {
		return nil, &Error{Op: "import", Path: f.path, Err: ErrNoScriptRunner}
	}

	if err := f.ExistsOrDie(); err != nil {
		return nil, err
	}

	if err := f.MatchExtensionsOrDie(runner.Extension()); err != nil {
		return nil, err
	}

	source, err := f.Read()
	if err != nil {
		return nil, err
	}

	result, err := runner.Run(f.path, source)
	if err != nil {
		return nil, wrap(err, "import", f.path)
	}

	return result, nil
}

// Delete removes the file. Does nothing when it does not exist.
func (f *File) Delete() error {
	if !f.Exists() {
		return nil
	}

	return wrap(f.fsys.Remove(f.path), "delete", f.path)
}

// Unlink implements [Node]; same as [File.Delete].
func (f *File) Unlink() error { return f.Delete() }

// Entries implements [Node]. Files have no children.
func (f *File) Entries() ([]Node, error) { return nil, nil }

// Move renames the file to newPath and returns a handle for it.
//
// Fails with [ErrFileNotFound] when the file is missing and with
// [ErrFileFound] when newPath exists and overwrite is false. With overwrite
// the destination is deleted first.
func (f *File) Move(newPath string, overwrite bool) (*File, error) {
	dst, err := f.prepareDestination("move", newPath, overwrite)
	if err != nil {
		return nil, err
	}

	if err := f.fsys.Rename(f.path, dst.path); err != nil {
		return nil, wrapDest(err, "move", f.path, dst.path)
	}

	return dst, nil
}

// Copy duplicates the file at newPath and returns a handle for the copy.
// Same existence and overwrite contract as [File.Move]; the source stays.
func (f *File) Copy(newPath string, overwrite bool) (*File, error) {
	dst, err := f.prepareDestination("copy", newPath, overwrite)
	if err != nil {
		return nil, err
	}

	if err := f.fsys.CopyFile(f.path, dst.path); err != nil {
		return nil, wrapDest(err, "copy", f.path, dst.path)
	}

	return dst, nil
}

// CopyTo implements [Node].
func (f *File) CopyTo(path string, overwrite bool) (Node, error) {
	return f.Copy(path, overwrite)
}

// Hash returns the hex encoded 128-bit xxh3 digest of the file content.
func (f *File) Hash() (string, error) {
	data, err := f.Read()
	if err != nil {
		return "", err
	}

	sum := xxh3.Hash128(data).Bytes()

	return hex.EncodeToString(sum[:]), nil
}

// MimeType sniffs the media type from the file content, for example
// "image/png" or "text/plain; charset=utf-8".
func (f *File) MimeType() (string, error) {
	data, err := f.Read()
	if err != nil {
		return "", err
	}

	return mimetype.Detect(data).String(), nil
}

func (f *File) checkWritable() error {
	if !f.Exists() {
		return nil
	}

	if err := f.fsys.Access(f.path, fs.AccessWrite); err != nil {
		return wrap(permissionErr(ErrFilePermissions, err), "write", f.path)
	}

	return nil
}

func (f *File) prepareDestination(op, newPath string, overwrite bool) (*File, error) {
	if err := f.ExistsOrDie(); err != nil {
		return nil, err
	}

	dst, err := NewFile(f.fsys, newPath)
	if err != nil {
		return nil, err
	}

	if !overwrite && dst.Exists() {
		return nil, &Error{Op: op, Path: f.path, Dest: dst.path, Err: ErrFileFound}
	}

	if dst.path == f.path {
		return nil, &Error{Op: op, Path: f.path, Dest: dst.path, Err: errSamePath}
	}

	if overwrite {
		if err := dst.Delete(); err != nil {
			return nil, err
		}
	}

	return dst, nil
}

// Compile-time interface check.
var _ Node = (*File)(nil)
