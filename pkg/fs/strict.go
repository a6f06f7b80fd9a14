package fs

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// TestBuilder is the subset of [testing.T] used by [StrictTestFS].
//
// This keeps [StrictTestFS] usable from tests in other packages without
// depending on _test.go files.
type TestBuilder interface {
	// [testing.T.Helper]
	Helper()
	// [testing.T.Cleanup]
	Cleanup(func())
	// [testing.T.Failed]
	Failed() bool
	// [testing.T.Logf]
	Logf(format string, args ...any)
	// [testing.T.Fatalf]
	Fatalf(format string, args ...any)
}

// StrictTestFS wraps an [FS] for tests:
//   - Records a bounded trace of recent FS operations
//   - Fails the test on any non-injected (real) filesystem error
//
// Some errors are expected by handle code and never fail the test: a missing
// path from Stat/Lstat (existence probes) and an existing destination from
// Mkdir. Use [StrictTestFSOptions.Allow] to add more.
type StrictTestFS struct {
	tb    TestBuilder
	fs    FS
	allow func(op string, err error) bool
	trace *traceLog
}

// StrictTestFSOptions configures a [StrictTestFS].
type StrictTestFSOptions struct {
	// FS is the underlying filesystem to wrap.
	FS FS
	// TraceCapacity is the max number of operations to keep in the trace log.
	// Defaults to 200. Set to a pointer to 0 to disable tracing.
	TraceCapacity *int
	// Allow reports whether a real error from op is expected by the test.
	Allow func(op string, err error) bool
}

// NewStrictTestFS creates a new [StrictTestFS] wrapping the given [FS].
//
// On test failure, logs the trace of recent FS operations via tb.Cleanup.
func NewStrictTestFS(tb TestBuilder, opts StrictTestFSOptions) *StrictTestFS {
	tb.Helper()

	s := &StrictTestFS{
		tb:    tb,
		fs:    opts.FS,
		allow: opts.Allow,
		trace: newTraceLog(opts.TraceCapacity),
	}

	tb.Cleanup(func() {
		if tb.Failed() {
			if trace := s.Trace(); trace != "" {
				tb.Logf("fs trace:\n%s", trace)
			}
		}
	})

	return s
}

// Trace returns a formatted string of recent FS operations.
func (s *StrictTestFS) Trace() string {
	return s.trace.String()
}

func (s *StrictTestFS) Stat(path string) (os.FileInfo, error) {
	s.tb.Helper()
	info, err := s.fs.Stat(path)

	return info, s.wrap("stat", path, err)
}

func (s *StrictTestFS) Lstat(path string) (os.FileInfo, error) {
	s.tb.Helper()
	info, err := s.fs.Lstat(path)

	return info, s.wrap("lstat", path, err)
}

func (s *StrictTestFS) Access(path string, mode AccessMode) error {
	s.tb.Helper()

	return s.wrap("access", path, s.fs.Access(path, mode), attr("mode", strconv.Itoa(int(mode))))
}

func (s *StrictTestFS) ReadFile(path string) ([]byte, error) {
	s.tb.Helper()
	data, err := s.fs.ReadFile(path)

	return data, s.wrap("readfile", path, err, attr("n", strconv.Itoa(len(data))))
}

func (s *StrictTestFS) WriteFile(path string, data []byte, perm os.FileMode) (int, error) {
	s.tb.Helper()
	n, err := s.fs.WriteFile(path, data, perm)

	return n, s.wrap("writefile", path, err, attr("n", strconv.Itoa(n)), attr("perm", fmt.Sprintf("%#o", perm)))
}

func (s *StrictTestFS) AppendFile(path string, data []byte, perm os.FileMode) (int, error) {
	s.tb.Helper()
	n, err := s.fs.AppendFile(path, data, perm)

	return n, s.wrap("appendfile", path, err, attr("n", strconv.Itoa(n)))
}

func (s *StrictTestFS) WriteFileAtomic(path string, r io.Reader) error {
	s.tb.Helper()

	return s.wrap("writefileatomic", path, s.fs.WriteFileAtomic(path, r))
}

func (s *StrictTestFS) CopyFile(src, dst string) error {
	s.tb.Helper()

	return s.wrap("copyfile", src, s.fs.CopyFile(src, dst), attr("dest", dst))
}

func (s *StrictTestFS) ReadDir(path string) ([]os.DirEntry, error) {
	s.tb.Helper()
	entries, err := s.fs.ReadDir(path)

	return entries, s.wrap("readdir", path, err, attr("n", strconv.Itoa(len(entries))))
}

func (s *StrictTestFS) Mkdir(path string, perm os.FileMode) error {
	s.tb.Helper()

	return s.wrap("mkdir", path, s.fs.Mkdir(path, perm), attr("perm", fmt.Sprintf("%#o", perm)))
}

func (s *StrictTestFS) MkdirAll(path string, perm os.FileMode) error {
	s.tb.Helper()

	return s.wrap("mkdirall", path, s.fs.MkdirAll(path, perm), attr("perm", fmt.Sprintf("%#o", perm)))
}

func (s *StrictTestFS) Remove(path string) error {
	s.tb.Helper()

	return s.wrap("remove", path, s.fs.Remove(path))
}

func (s *StrictTestFS) Rename(oldpath, newpath string) error {
	s.tb.Helper()

	return s.wrap("rename", oldpath, s.fs.Rename(oldpath, newpath), attr("dest", newpath))
}

// Interface compliance.
var _ FS = (*StrictTestFS)(nil)

// wrap traces the operation and fatals on unexpected real errors.
func (s *StrictTestFS) wrap(op, path string, err error, attrs ...kv) error {
	s.tb.Helper()

	s.trace.add(op, path, err, attrs...)

	if err == nil || IsInjected(err) || s.expected(op, err) {
		return err
	}

	trace := s.Trace()
	if trace != "" {
		trace = "\n" + trace
	}

	s.tb.Fatalf("strictfs: underlying filesystem error: %v%s", err, trace)

	return err
}

func (s *StrictTestFS) expected(op string, err error) bool {
	switch {
	case (op == "stat" || op == "lstat") && os.IsNotExist(err):
		return true
	case op == "mkdir" && os.IsExist(err):
		return true
	}

	return s.allow != nil && s.allow(op, err)
}

// kv is a key-value pair for trace context.
type kv struct {
	k string
	v string
}

func attr(k, v string) kv {
	return kv{k: k, v: v}
}

// traceEvent records a single FS operation.
type traceEvent struct {
	seq      uint64
	op       string
	path     string
	err      error
	injected bool
	attrs    []kv
}

func (e traceEvent) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "#%d %s", e.seq, e.op)

	if e.path != "" {
		fmt.Fprintf(&b, " path=%q", e.path)
	}

	for _, a := range e.attrs {
		fmt.Fprintf(&b, " %s=%s", a.k, a.v)
	}

	if e.err == nil {
		b.WriteString(" ok")

		return b.String()
	}

	fmt.Fprintf(&b, " err=%v injected=%t", e.err, e.injected)

	return b.String()
}

// traceLog keeps the last capacity events. Event n lives at slot
// (n-1) % capacity, so the ring needs no separate head index.
type traceLog struct {
	mu     sync.Mutex
	events []traceEvent
	seq    uint64
}

func newTraceLog(capacity *int) *traceLog {
	size := 200
	if capacity != nil {
		size = *capacity
	}

	return &traceLog{events: make([]traceEvent, size)}
}

func (t *traceLog) add(op, path string, err error, attrs ...kv) {
	if len(t.events) == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++
	t.events[(t.seq-1)%uint64(len(t.events))] = traceEvent{
		seq:      t.seq,
		op:       op,
		path:     path,
		err:      err,
		injected: IsInjected(err),
		attrs:    attrs,
	}
}

// snapshot returns the retained events, oldest first.
func (t *traceLog) snapshot() []traceEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	size := uint64(len(t.events))
	count := min(t.seq, size)

	out := make([]traceEvent, 0, count)
	for n := t.seq - count + 1; n <= t.seq; n++ {
		out = append(out, t.events[(n-1)%size])
	}

	return out
}

func (t *traceLog) String() string {
	lines := make([]string, 0, len(t.events))
	for _, e := range t.snapshot() {
		lines = append(lines, e.String())
	}

	return strings.Join(lines, "\n")
}
