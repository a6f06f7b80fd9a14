// Package script runs trusted JavaScript files for [handle.File.Import].
//
// Each run gets a fresh goja VM, so scripts share no state. A script's result
// is module.exports when the script assigns it, otherwise the completion value
// of the last statement:
//
//	// config.js
//	({ uploads: "user/uploads" })
//
// Scripts are trusted code. The runner removes require and process, bounds the
// call stack and enforces a timeout, but it is not a sandbox.
package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/calvinalkan/fshandle/pkg/handle"
)

// Extension is the file extension the runner accepts.
const Extension = "js"

// DefaultTimeout bounds a run when [Config.Timeout] is zero.
const DefaultTimeout = 5 * time.Second

const maxCallStackSize = 1024

// ErrTimeout is returned when a script runs longer than the configured timeout
// or its context is cancelled.
var ErrTimeout = errors.New("script interrupted")

// Config configures a [Runner].
type Config struct {
	// Timeout bounds a single run. Zero means [DefaultTimeout].
	Timeout time.Duration

	// Globals are set on the VM before the script runs.
	Globals map[string]any

	// Console receives console.log output, one line per call. Nil discards it.
	Console io.Writer
}

// Runner executes .js files with goja. The zero value is not usable; create
// one with [New].
type Runner struct {
	config Config
	ctx    context.Context
}

// New returns a runner for config.
func New(config Config) *Runner {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	return &Runner{config: config}
}

// Extension implements [handle.ScriptRunner].
func (r *Runner) Extension() string { return Extension }

// WithContext returns a copy of the runner whose [Runner.Run] is cancelled
// with ctx. Used to pass cancellation through [handle.File.Import].
func (r *Runner) WithContext(ctx context.Context) *Runner {
	c := *r
	c.ctx = ctx

	return &c
}

// Run implements [handle.ScriptRunner].
func (r *Runner) Run(path string, source []byte) (any, error) {
	ctx := r.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	return r.RunContext(ctx, path, source)
}

// RunContext is [Runner.Run] with cancellation. Cancelling ctx interrupts the
// script and returns [ErrTimeout].
func (r *Runner) RunContext(ctx context.Context, path string, source []byte) (any, error) {
	program, err := goja.Compile(path, string(source), false)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", path, err)
	}

	vm := goja.New()
	vm.SetMaxCallStackSize(maxCallStackSize)

	module, err := r.setupGlobals(vm)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	defer close(done)

	timer := time.NewTimer(r.config.Timeout)
	defer timer.Stop()

	go func() {
		select {
		case <-timer.C:
			vm.Interrupt("execution timeout exceeded")
		case <-ctx.Done():
			vm.Interrupt("context cancelled")
		case <-done:
		}
	}()

	val, err := vm.RunProgram(program)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return nil, fmt.Errorf("run %s: %w: %v", path, ErrTimeout, interrupted.Value())
		}

		return nil, fmt.Errorf("run %s: %w", path, err)
	}

	if exports := module.Get("exports"); exports != nil && !isEmpty(exports) {
		return exports.Export(), nil
	}

	if isEmpty(val) {
		return nil, nil
	}

	return val.Export(), nil
}

func (r *Runner) setupGlobals(vm *goja.Runtime) (*goja.Object, error) {
	module := vm.NewObject()

	set := map[string]any{
		"require": goja.Undefined(),
		"process": goja.Undefined(),
		"module":  module,
		"console": r.console(vm),
	}

	for name, value := range r.config.Globals {
		set[name] = value
	}

	for name, value := range set {
		if err := vm.Set(name, value); err != nil {
			return nil, fmt.Errorf("set global %q: %w", name, err)
		}
	}

	return module, nil
}

func (r *Runner) console(vm *goja.Runtime) *goja.Object {
	console := vm.NewObject()

	log := func(call goja.FunctionCall) goja.Value {
		if r.config.Console == nil {
			return goja.Undefined()
		}

		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}

		_, _ = fmt.Fprintln(r.config.Console, strings.Join(parts, " "))

		return goja.Undefined()
	}

	for _, level := range []string{"log", "info", "warn", "error"} {
		_ = console.Set(level, log)
	}

	return console
}

func isEmpty(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}

// Compile-time interface check.
var _ handle.ScriptRunner = (*Runner)(nil)
