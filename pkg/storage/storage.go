// Package storage resolves logical paths under a root directory into
// [handle.File] and [handle.Directory] handles.
//
// A logical path may contain alias tokens in braces:
//
//	st, _ := storage.New(fs.NewReal(), "/srv/data")
//	_ = st.AddAlias("uploads", "user/uploads")
//	f, _ := st.OpenFile("{uploads}/a.png") // /srv/data/user/uploads/a.png
//
// Resolution is pure string work. No existence check happens until the
// returned handle is used.
package storage

import (
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/calvinalkan/fshandle/pkg/fs"
	"github.com/calvinalkan/fshandle/pkg/handle"
)

// ErrInvalidAlias is returned by [Storage.AddAlias] for an empty token or one
// containing braces.
var ErrInvalidAlias = errors.New("invalid alias token")

const sep = string(filepath.Separator)

// Storage is a root directory plus an alias table.
//
// Not safe for concurrent AddAlias/RemoveAlias; resolving from several
// goroutines is fine once the table is set up.
type Storage struct {
	fsys fs.FS

	// root is absolute and ends with exactly one separator.
	root string

	// aliases maps token -> absolute path ending with a separator.
	aliases map[string]string
}

// New returns a storage rooted at root.
//
// Fails with [handle.ErrDirectoryNotFound] when root does not exist and with
// [handle.ErrPathIsNotDirectory] when it is not a directory.
func New(fsys fs.FS, root string) (*Storage, error) {
	dir, err := handle.NewDirectory(fsys, root)
	if err != nil {
		return nil, err
	}

	if err := dir.ExistsOrDie(); err != nil {
		return nil, err
	}

	return &Storage{
		fsys:    fsys,
		root:    withTrailingSep(dir.Path()),
		aliases: make(map[string]string),
	}, nil
}

// Root returns the storage root, ending with a separator.
func (s *Storage) Root() string { return s.root }

// AddAlias registers {token} as a stand-in for path. A path not already under
// the root is taken relative to it. Registering a token again replaces it.
func (s *Storage) AddAlias(token, path string) error {
	if token == "" || strings.ContainsAny(token, "{}") {
		return fmt.Errorf("%w: %q", ErrInvalidAlias, token)
	}

	s.aliases[token] = withTrailingSep(s.underRoot(path))

	return nil
}

// RemoveAlias drops token. Unknown tokens are ignored.
func (s *Storage) RemoveAlias(token string) {
	delete(s.aliases, token)
}

// Aliases returns a copy of the alias table.
func (s *Storage) Aliases() map[string]string {
	return maps.Clone(s.aliases)
}

// Tokens returns the registered alias tokens in sorted order.
func (s *Storage) Tokens() []string {
	return slices.Sorted(maps.Keys(s.aliases))
}

// Resolve turns a logical path into an absolute path under the root.
//
// Every {token} is substituted, longest token first so overlapping names
// resolve the same way every time. The root is prepended when the result is
// not already under it, then the path is cleaned. Unknown tokens are left in
// place. ".." segments are not confined to the root.
func (s *Storage) Resolve(logical string) string {
	path := s.substitute(logical)

	return filepath.Clean(s.underRoot(path))
}

// OpenDir resolves logical and returns a directory handle for it.
func (s *Storage) OpenDir(logical string) (*handle.Directory, error) {
	return handle.NewDirectory(s.fsys, s.Resolve(logical))
}

// OpenFile resolves logical and returns a file handle for it.
func (s *Storage) OpenFile(logical string) (*handle.File, error) {
	return handle.NewFile(s.fsys, s.Resolve(logical))
}

// Open resolves logical and returns the handle kind found on disk; see
// [handle.Open].
func (s *Storage) Open(logical string) (handle.Node, error) {
	return handle.Open(s.fsys, s.Resolve(logical))
}

func (s *Storage) substitute(logical string) string {
	if len(s.aliases) == 0 || !strings.Contains(logical, "{") {
		return logical
	}

	tokens := s.Tokens()
	slices.SortStableFunc(tokens, func(a, b string) int {
		return len(b) - len(a)
	})

	// Doubled separators left by "{token}/" are removed by Resolve's Clean.
	for _, token := range tokens {
		logical = strings.ReplaceAll(logical, "{"+token+"}", s.aliases[token])
	}

	return logical
}

// underRoot prefixes path with the root unless it already lies under it.
func (s *Storage) underRoot(path string) string {
	if path+sep == s.root || strings.HasPrefix(path, s.root) {
		return path
	}

	return s.root + strings.TrimLeft(path, sep+"/")
}

func withTrailingSep(path string) string {
	return strings.TrimRight(path, sep+"/") + sep
}
