package handle

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/calvinalkan/fshandle/pkg/fs"
)

// Directory is a handle for a directory.
//
// The first successful [Directory.Read] caches the listing of immediate
// children. The cache is not invalidated by later filesystem changes, including
// writes made through child handles. Call [Directory.Refresh] to rescan.
type Directory struct {
	fsys fs.FS
	path string

	// entries is the cached listing, keyed by [Key]. Valid when loaded is set.
	entries map[string]Node
	loaded  bool
}

// NewDirectory returns a handle for path, made absolute.
//
// Fails with [ErrPathIsNotDirectory] when something other than a directory
// already exists at path. Nothing is created on disk.
func NewDirectory(fsys fs.FS, path string) (*Directory, error) {
	abs, err := absPath(path)
	if err != nil {
		return nil, err
	}

	info, exists, err := occupied(fsys, abs)
	if err != nil {
		return nil, wrap(err, "open", abs)
	}

	if exists && (info == nil || !info.IsDir()) {
		return nil, &Error{Op: "open", Path: abs, Err: ErrPathIsNotDirectory}
	}

	return &Directory{fsys: fsys, path: abs}, nil
}

func (d *Directory) Path() string { return d.path }

func (d *Directory) Base() string { return filepath.Base(d.path) }

func (d *Directory) IsDir() bool { return true }

// Exists reports whether the path currently denotes a directory.
func (d *Directory) Exists() bool {
	info, err := d.fsys.Stat(d.path)

	return err == nil && info.IsDir()
}

// ExistsOrDie fails with [ErrDirectoryNotFound] when [Directory.Exists] is false.
func (d *Directory) ExistsOrDie() error {
	if !d.Exists() {
		return &Error{Op: "exists", Path: d.path, Err: ErrDirectoryNotFound}
	}

	return nil
}

// Write creates the directory. Missing parents are created only when
// recursive is set. A zero perm means [DefaultDirPerm].
//
// Does nothing when the directory already exists.
func (d *Directory) Write(recursive bool, perm os.FileMode) error {
	if d.Exists() {
		return nil
	}

	if perm == 0 {
		perm = DefaultDirPerm
	}

	var err error
	if recursive {
		err = d.fsys.MkdirAll(d.path, perm)
	} else {
		err = d.fsys.Mkdir(d.path, perm)
	}

	if err != nil {
		if os.IsExist(err) {
			return &Error{Op: "write", Path: d.path, Err: ErrPathIsNotDirectory}
		}

		return wrap(permissionErr(ErrDirectoryPermissions, err), "write", d.path)
	}

	return nil
}

// Read returns the immediate children keyed by forward-slash absolute path.
//
// Symlinks are skipped, as is anything that is neither a regular file nor a
// directory. The listing is cached after the first call; the returned map is
// a copy the caller may modify.
//
// Fails with [ErrDirectoryNotFound] when the directory is missing and with
// [ErrDirectoryPermissions] when it is not readable.
func (d *Directory) Read() (map[string]Node, error) {
	if err := d.ExistsOrDie(); err != nil {
		return nil, err
	}

	if !d.loaded {
		entries, err := d.scan()
		if err != nil {
			return nil, err
		}

		d.entries = entries
		d.loaded = true
	}

	return maps.Clone(d.entries), nil
}

// Refresh drops the cached listing so the next [Directory.Read] rescans.
func (d *Directory) Refresh() {
	d.entries = nil
	d.loaded = false
}

// Children returns the [Directory.Read] listing sorted by path.
func (d *Directory) Children() ([]Node, error) {
	entries, err := d.Read()
	if err != nil {
		return nil, err
	}

	keys := slices.Sorted(maps.Keys(entries))

	nodes := make([]Node, 0, len(keys))
	for _, k := range keys {
		nodes = append(nodes, entries[k])
	}

	return nodes, nil
}

// Entries implements [Node]; same as [Directory.Children].
func (d *Directory) Entries() ([]Node, error) { return d.Children() }

// Empty reports whether [Directory.Read] yields no entries.
func (d *Directory) Empty() (bool, error) {
	entries, err := d.Read()
	if err != nil {
		return false, err
	}

	return len(entries) == 0, nil
}

// Delete removes the directory. Does nothing when it does not exist.
//
// Without recursive, fails with [ErrDirectoryIsNotEmpty] when the directory
// has entries. With recursive, the whole tree is removed children first.
// A failure partway leaves the tree partially deleted.
//
// Unlike the other operations, Delete drops the cached listing and rescans
// first, so entries created after the last [Directory.Read] are removed too.
// A caller relying on a stale listing keeps the map Read returned.
func (d *Directory) Delete(recursive bool) error {
	if !d.Exists() {
		return nil
	}

	d.Refresh()

	if !recursive {
		empty, err := d.Empty()
		if err != nil {
			return err
		}

		if !empty {
			return &Error{Op: "delete", Path: d.path, Err: ErrDirectoryIsNotEmpty}
		}

		return d.Unlink()
	}

	type frame struct {
		node     Node
		expanded bool
	}

	stack := []frame{{node: d}}

	for len(stack) > 0 {
		top := len(stack) - 1

		if !stack[top].node.IsDir() || stack[top].expanded {
			if err := stack[top].node.Unlink(); err != nil {
				return err
			}

			stack = stack[:top]

			continue
		}

		stack[top].expanded = true

		children, err := stack[top].node.Entries()
		if err != nil {
			return err
		}

		for _, child := range children {
			stack = append(stack, frame{node: child})
		}
	}

	return nil
}

// Unlink implements [Node]: it removes the directory itself, which must be
// empty. Does nothing when it does not exist.
func (d *Directory) Unlink() error {
	if !d.Exists() {
		return nil
	}

	if err := d.fsys.Remove(d.path); err != nil {
		return wrap(permissionErr(ErrDirectoryPermissions, err), "delete", d.path)
	}

	d.Refresh()

	return nil
}

// Move renames the directory tree to newPath and returns a handle for it.
//
// Fails with [ErrDirectoryNotFound] when the directory is missing and with
// [ErrDirectoryFound] when newPath exists and overwrite is false. With
// overwrite the destination is deleted recursively first.
func (d *Directory) Move(newPath string, overwrite bool) (*Directory, error) {
	dst, err := d.prepareDestination("move", newPath, overwrite)
	if err != nil {
		return nil, err
	}

	if err := d.fsys.Rename(d.path, dst.path); err != nil {
		return nil, wrapDest(err, "move", d.path, dst.path)
	}

	d.Refresh()

	return dst, nil
}

// Copy duplicates the directory tree at newPath and returns a handle for the
// copy. Same existence and overwrite contract as [Directory.Move]; overwrite
// also applies to every file in the tree.
//
// Fails with [ErrCopyIntoItself] when newPath is the directory or lies
// inside it. The tree is walked with an explicit stack, so depth is bounded
// only by memory.
func (d *Directory) Copy(newPath string, overwrite bool) (*Directory, error) {
	dst, err := d.prepareDestination("copy", newPath, overwrite)
	if err != nil {
		return nil, err
	}

	if err := dst.Write(true, 0); err != nil {
		return nil, err
	}

	type job struct {
		src Node
		dst string
	}

	var stack []job

	push := func(src Node, dstDir string) error {
		children, err := src.Entries()
		if err != nil {
			return err
		}

		// Reverse so children pop in sorted order.
		for _, child := range slices.Backward(children) {
			stack = append(stack, job{src: child, dst: filepath.Join(dstDir, child.Base())})
		}

		return nil
	}

	if err := push(d, dst.path); err != nil {
		return nil, err
	}

	for len(stack) > 0 {
		j := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !j.src.IsDir() {
			if _, err := j.src.CopyTo(j.dst, overwrite); err != nil {
				return nil, err
			}

			continue
		}

		sub, err := NewDirectory(d.fsys, j.dst)
		if err != nil {
			return nil, err
		}

		if err := sub.Write(true, 0); err != nil {
			return nil, err
		}

		if err := push(j.src, sub.path); err != nil {
			return nil, err
		}
	}

	return dst, nil
}

// CopyTo implements [Node].
func (d *Directory) CopyTo(path string, overwrite bool) (Node, error) {
	return d.Copy(path, overwrite)
}

// Glob returns the nodes below the directory whose slash-separated path
// relative to it matches pattern, sorted by path. Patterns use doublestar
// syntax, so "**/*.txt" matches at any depth.
func (d *Directory) Glob(pattern string) ([]Node, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, &Error{Op: "glob", Path: d.path, Err: fmt.Errorf("%w: %q", doublestar.ErrBadPattern, pattern)}
	}

	var matches []Node

	stack := []Node{d}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children, err := n.Entries()
		if err != nil {
			return nil, err
		}

		for _, child := range children {
			rel, err := filepath.Rel(d.path, child.Path())
			if err != nil {
				return nil, wrap(err, "glob", d.path)
			}

			if ok, _ := doublestar.Match(pattern, filepath.ToSlash(rel)); ok {
				matches = append(matches, child)
			}

			if child.IsDir() {
				stack = append(stack, child)
			}
		}
	}

	slices.SortFunc(matches, func(a, b Node) int {
		return strings.Compare(Key(a.Path()), Key(b.Path()))
	})

	return matches, nil
}

func (d *Directory) scan() (map[string]Node, error) {
	if err := d.fsys.Access(d.path, fs.AccessRead); err != nil {
		return nil, wrap(permissionErr(ErrDirectoryPermissions, err), "read", d.path)
	}

	dirents, err := d.fsys.ReadDir(d.path)
	if err != nil {
		return nil, wrap(permissionErr(ErrDirectoryPermissions, err), "read", d.path)
	}

	entries := make(map[string]Node, len(dirents))

	for _, e := range dirents {
		full := filepath.Join(d.path, e.Name())
		typ := e.Type()

		var node Node

		switch {
		case typ&os.ModeSymlink != 0:
			continue
		case typ.IsDir():
			node = &Directory{fsys: d.fsys, path: full}
		case typ.IsRegular():
			node = &File{fsys: d.fsys, path: full}
		default:
			continue
		}

		entries[Key(full)] = node
	}

	return entries, nil
}

func (d *Directory) prepareDestination(op, newPath string, overwrite bool) (*Directory, error) {
	if err := d.ExistsOrDie(); err != nil {
		return nil, err
	}

	dst, err := NewDirectory(d.fsys, newPath)
	if err != nil {
		return nil, err
	}

	// An existing destination is a conflict first, whatever its relation to
	// the source.
	if !overwrite && dst.Exists() {
		return nil, &Error{Op: op, Path: d.path, Dest: dst.path, Err: ErrDirectoryFound}
	}

	if dst.path == d.path {
		return nil, &Error{Op: op, Path: d.path, Dest: dst.path, Err: errSamePath}
	}

	if strings.HasPrefix(dst.path, d.path+string(filepath.Separator)) {
		return nil, &Error{Op: op, Path: d.path, Dest: dst.path, Err: ErrCopyIntoItself}
	}

	if overwrite {
		if strings.HasPrefix(d.path, dst.path+string(filepath.Separator)) {
			return nil, &Error{Op: op, Path: d.path, Dest: dst.path, Err: errDestContainsSource}
		}

		if err := dst.Delete(true); err != nil {
			return nil, err
		}
	}

	return dst, nil
}

// Compile-time interface check.
var _ Node = (*Directory)(nil)
