package fs

import (
	"io"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
)

// ChaosConfig controls fault injection probabilities.
// Each rate is a float64 from 0.0 (never) to 1.0 (always).
type ChaosConfig struct {
	// Read faults
	ReadFailRate    float64 // Fail ReadFile entirely
	ReadDirFailRate float64 // Fail ReadDir entirely

	// Write faults
	WriteFailRate    float64 // Fail WriteFile/AppendFile/WriteFileAtomic entirely
	PartialWriteRate float64 // Write a prefix then fail (simulates ENOSPC mid-write)
	CopyFailRate     float64 // Fail CopyFile

	// Other faults
	StatFailRate   float64 // Fail Stat/Lstat/Access
	MkdirFailRate  float64 // Fail Mkdir/MkdirAll
	RemoveFailRate float64 // Fail Remove
	RenameFailRate float64 // Fail Rename
}

// DefaultChaosConfig returns a config with reasonable fault rates for testing.
func DefaultChaosConfig() ChaosConfig {
	return ChaosConfig{
		ReadFailRate:     0.02,
		ReadDirFailRate:  0.02,
		WriteFailRate:    0.02,
		PartialWriteRate: 0.03,
		CopyFailRate:     0.02,
		StatFailRate:     0.01,
		MkdirFailRate:    0.02,
		RemoveFailRate:   0.02,
		RenameFailRate:   0.02,
	}
}

// PathState tracks the fault state of a path for consistent error injection.
//
// A state set on a directory also applies to everything beneath it.
type PathState int

const (
	// PathNormal means no persistent fault - errors are transient.
	// This is the zero value, so untracked paths are normal.
	PathNormal PathState = iota
	// PathIOError is sticky - the path has a "bad sector" and always returns EIO.
	PathIOError
	// PathReadOnly is sticky for mutations - returns EROFS, reads still work.
	PathReadOnly
	// PathNoPermission denies reads and writes with EACCES. Stat keeps working,
	// like a file with mode 0000.
	PathNoPermission
)

// ChaosMode controls how [Chaos] behaves.
type ChaosMode uint8

const (
	// ChaosModePassthrough behaves like the underlying FS.
	// It ignores fault rates and sticky path state.
	ChaosModePassthrough ChaosMode = iota

	// ChaosModeInject enables fault-rate injection and sticky path state.
	ChaosModeInject

	// ChaosModeStickyOnly applies only sticky path state. Fault rates are disabled.
	ChaosModeStickyOnly
)

// Chaos wraps an [FS] and injects failures for testing.
//
// Errors are state-aware: once a path gets EIO (bad sector), it stays broken.
// All injected errors are real OS errors (syscall.Errno wrapped in
// *fs.PathError) so os.IsPermission and errors.Is keep working. Use
// [IsInjected] to tell them apart from real failures.
//
// Use [Chaos.SetMode] to control behavior, [Chaos.SetPathState] to pin a
// deterministic fault on a path, and [Chaos.Stats] to inspect counters.
type Chaos struct {
	fs     FS
	config ChaosConfig
	mode   atomic.Uint32

	rngMu sync.Mutex
	rng   *rand.Rand

	mu         sync.RWMutex
	pathStates map[string]PathState

	readFails     atomic.Int64
	readDirFails  atomic.Int64
	writeFails    atomic.Int64
	partialWrites atomic.Int64
	copyFails     atomic.Int64
	statFails     atomic.Int64
	mkdirFails    atomic.Int64
	removeFails   atomic.Int64
	renameFails   atomic.Int64
	stickyFails   atomic.Int64
}

// NewChaos creates a new [Chaos] filesystem wrapping the given [FS].
// The seed controls random fault injection for reproducibility.
// Panics if underlying is nil.
func NewChaos(underlying FS, seed int64, config ChaosConfig) *Chaos {
	if underlying == nil {
		panic("underlying fs is nil")
	}

	return &Chaos{
		fs:         underlying,
		config:     config,
		rng:        rand.New(rand.NewPCG(uint64(seed), uint64(seed))),
		pathStates: make(map[string]PathState),
	}
}

// SetMode updates [Chaos] behavior. Safe to call concurrently with
// filesystem operations. Switching modes never clears sticky path state.
func (c *Chaos) SetMode(m ChaosMode) { c.mode.Store(uint32(m)) }

// ChaosStats contains counts of injected faults.
type ChaosStats struct {
	ReadFails     int64
	ReadDirFails  int64
	WriteFails    int64
	PartialWrites int64
	CopyFails     int64
	StatFails     int64
	MkdirFails    int64
	RemoveFails   int64
	RenameFails   int64
	StickyFails   int64
}

// Stats returns the current fault injection counts.
func (c *Chaos) Stats() ChaosStats {
	return ChaosStats{
		ReadFails:     c.readFails.Load(),
		ReadDirFails:  c.readDirFails.Load(),
		WriteFails:    c.writeFails.Load(),
		PartialWrites: c.partialWrites.Load(),
		CopyFails:     c.copyFails.Load(),
		StatFails:     c.statFails.Load(),
		MkdirFails:    c.mkdirFails.Load(),
		RemoveFails:   c.removeFails.Load(),
		RenameFails:   c.renameFails.Load(),
		StickyFails:   c.stickyFails.Load(),
	}
}

// TotalFaults returns the total number of injected faults.
func (c *Chaos) TotalFaults() int64 {
	s := c.Stats()

	return s.ReadFails + s.ReadDirFails + s.WriteFails + s.PartialWrites +
		s.CopyFails + s.StatFails + s.MkdirFails + s.RemoveFails +
		s.RenameFails + s.StickyFails
}

// PathState returns the fault state recorded for exactly path.
func (c *Chaos) PathState(path string) PathState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.pathStates[filepath.Clean(path)]
}

// SetPathState pins a sticky fault on path (and everything beneath it).
// Setting [PathNormal] clears it.
func (c *Chaos) SetPathState(path string, state PathState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	path = filepath.Clean(path)
	if state == PathNormal {
		delete(c.pathStates, path)

		return
	}

	c.pathStates[path] = state
}

// ResetAllPathStates clears all sticky faults.
func (c *Chaos) ResetAllPathStates() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pathStates = make(map[string]PathState)
}

func (c *Chaos) Stat(path string) (os.FileInfo, error) {
	if err := c.inject(path, opStat, c.config.StatFailRate, &c.statFails); err != nil {
		return nil, err
	}

	return c.fs.Stat(path)
}

func (c *Chaos) Lstat(path string) (os.FileInfo, error) {
	if err := c.inject(path, opStat, c.config.StatFailRate, &c.statFails); err != nil {
		return nil, err
	}

	return c.fs.Lstat(path)
}

func (c *Chaos) Access(path string, mode AccessMode) error {
	op := opAccessRead
	if mode&AccessWrite != 0 {
		op = opAccessWrite
	}

	if err := c.inject(path, op, c.config.StatFailRate, &c.statFails); err != nil {
		return err
	}

	return c.fs.Access(path, mode)
}

func (c *Chaos) ReadFile(path string) ([]byte, error) {
	if err := c.inject(path, opRead, c.config.ReadFailRate, &c.readFails); err != nil {
		return nil, err
	}

	return c.fs.ReadFile(path)
}

func (c *Chaos) WriteFile(path string, data []byte, perm os.FileMode) (int, error) {
	if err := c.inject(path, opWrite, c.config.WriteFailRate, &c.writeFails); err != nil {
		return 0, err
	}

	if cut, ok := c.partialCut(len(data)); ok {
		n, err := c.fs.WriteFile(path, data[:cut], perm)
		if err != nil {
			return n, err
		}

		return n, pathError("write", path, syscall.ENOSPC)
	}

	return c.fs.WriteFile(path, data, perm)
}

func (c *Chaos) AppendFile(path string, data []byte, perm os.FileMode) (int, error) {
	if err := c.inject(path, opWrite, c.config.WriteFailRate, &c.writeFails); err != nil {
		return 0, err
	}

	if cut, ok := c.partialCut(len(data)); ok {
		n, err := c.fs.AppendFile(path, data[:cut], perm)
		if err != nil {
			return n, err
		}

		return n, pathError("write", path, syscall.ENOSPC)
	}

	return c.fs.AppendFile(path, data, perm)
}

func (c *Chaos) WriteFileAtomic(path string, r io.Reader) error {
	if err := c.inject(path, opWrite, c.config.WriteFailRate, &c.writeFails); err != nil {
		return err
	}

	return c.fs.WriteFileAtomic(path, r)
}

func (c *Chaos) CopyFile(src, dst string) error {
	if err := c.inject(src, opRead, 0, nil); err != nil {
		return err
	}

	if err := c.inject(dst, opWrite, c.config.CopyFailRate, &c.copyFails); err != nil {
		return err
	}

	return c.fs.CopyFile(src, dst)
}

func (c *Chaos) ReadDir(path string) ([]os.DirEntry, error) {
	if err := c.inject(path, opRead, c.config.ReadDirFailRate, &c.readDirFails); err != nil {
		return nil, err
	}

	return c.fs.ReadDir(path)
}

func (c *Chaos) Mkdir(path string, perm os.FileMode) error {
	if err := c.inject(path, opMutate, c.config.MkdirFailRate, &c.mkdirFails); err != nil {
		return err
	}

	return c.fs.Mkdir(path, perm)
}

func (c *Chaos) MkdirAll(path string, perm os.FileMode) error {
	if err := c.inject(path, opMutate, c.config.MkdirFailRate, &c.mkdirFails); err != nil {
		return err
	}

	return c.fs.MkdirAll(path, perm)
}

func (c *Chaos) Remove(path string) error {
	if err := c.inject(path, opMutate, c.config.RemoveFailRate, &c.removeFails); err != nil {
		return err
	}

	return c.fs.Remove(path)
}

func (c *Chaos) Rename(oldpath, newpath string) error {
	if err := c.inject(oldpath, opMutate, c.config.RenameFailRate, &c.renameFails); err != nil {
		return err
	}

	if err := c.inject(newpath, opMutate, 0, nil); err != nil {
		return err
	}

	return c.fs.Rename(oldpath, newpath)
}

// Compile-time interface check.
var _ FS = (*Chaos)(nil)

// --- Private api ---

type chaosOp uint8

const (
	opStat chaosOp = iota
	opAccessRead
	opAccessWrite
	opRead
	opWrite
	opMutate
)

func (c *Chaos) getMode() ChaosMode {
	return ChaosMode(c.mode.Load())
}

// stateFor returns the nearest sticky state recorded for path or one of its
// ancestors.
func (c *Chaos) stateFor(path string) PathState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.pathStates) == 0 {
		return PathNormal
	}

	p := filepath.Clean(path)
	for {
		if state, ok := c.pathStates[p]; ok {
			return state
		}

		parent := filepath.Dir(p)
		if parent == p {
			return PathNormal
		}

		p = parent
	}
}

// stickyErrno maps a sticky state to the errno an operation observes.
// Returns 0 when the operation is unaffected.
func stickyErrno(state PathState, op chaosOp) syscall.Errno {
	switch state {
	case PathIOError:
		return syscall.EIO
	case PathReadOnly:
		if op == opWrite || op == opMutate || op == opAccessWrite {
			return syscall.EROFS
		}
	case PathNoPermission:
		if op != opStat {
			return syscall.EACCES
		}
	}

	return 0
}

// inject returns an injected error for the operation, or nil to proceed.
// counter may be nil for operations that only honor sticky state.
func (c *Chaos) inject(path string, op chaosOp, rate float64, counter *atomic.Int64) error {
	mode := c.getMode()
	if mode == ChaosModePassthrough {
		return nil
	}

	if errno := stickyErrno(c.stateFor(path), op); errno != 0 {
		c.stickyFails.Add(1)

		return pathError(opName(op), path, errno)
	}

	if mode != ChaosModeInject || counter == nil || !c.should(rate) {
		return nil
	}

	counter.Add(1)

	errno := c.pickErrno(op)
	if errno == syscall.EIO {
		c.SetPathState(path, PathIOError)
	}

	return pathError(opName(op), path, errno)
}

func (c *Chaos) pickErrno(op chaosOp) syscall.Errno {
	var candidates []syscall.Errno

	switch op {
	case opStat, opAccessRead, opAccessWrite:
		candidates = []syscall.Errno{syscall.EACCES, syscall.ENAMETOOLONG}
	case opRead:
		candidates = []syscall.Errno{syscall.EIO, syscall.EACCES, syscall.EMFILE}
	case opWrite:
		candidates = []syscall.Errno{syscall.ENOSPC, syscall.EDQUOT, syscall.EACCES}
	case opMutate:
		candidates = []syscall.Errno{syscall.EACCES, syscall.EBUSY, syscall.EPERM}
	}

	return candidates[c.randIntn(len(candidates))]
}

func opName(op chaosOp) string {
	switch op {
	case opStat:
		return "stat"
	case opAccessRead, opAccessWrite:
		return "access"
	case opRead:
		return "read"
	case opWrite:
		return "write"
	default:
		return "mutate"
	}
}

// partialCut decides whether a write should be cut short and where.
func (c *Chaos) partialCut(n int) (int, bool) {
	if c.getMode() != ChaosModeInject || n < 2 || !c.should(c.config.PartialWriteRate) {
		return 0, false
	}

	c.partialWrites.Add(1)

	return c.randIntn(n-1) + 1, true
}

func (c *Chaos) should(rate float64) bool {
	if rate <= 0 {
		return false
	}

	c.rngMu.Lock()
	defer c.rngMu.Unlock()

	return c.rng.Float64() < rate
}

func (c *Chaos) randIntn(n int) int {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()

	return c.rng.IntN(n)
}

// pathError creates an *fs.PathError with the given operation, path, and errno.
// This matches what the real OS returns, so errors.Is() works correctly.
func pathError(op, path string, errno syscall.Errno) error {
	pe := &fs.PathError{Op: op, Path: path, Err: errno}
	markInjectedPathError(pe)

	return pe
}
