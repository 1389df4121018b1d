// Package scripting evaluates user supplied JavaScript predicates against
// offspring inside a sandboxed goja runtime.
package scripting

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/MJE43/mogwai-breed-go/internal/breed"
)

const (
	predicateInitTimeout = 2 * time.Second
	predicateCallTimeout = 50 * time.Millisecond

	// MaxSourceLen bounds predicate source accepted by Compile.
	MaxSourceLen = 4096
)

var (
	ErrEmptySource   = errors.New("predicate source is empty")
	ErrSourceTooLong = errors.New("predicate source too long")
	ErrTimeout       = errors.New("predicate timed out")
)

// Predicate is a compiled offspring filter. It is safe to share between
// goroutines; each goroutine evaluates through its own VM.
type Predicate struct {
	source  string
	program *goja.Program
}

// Compile parses source once. The source is either a bare expression such
// as `o.generation >= 4 && o.rarity == "Epic"` or a function body that
// uses return.
func Compile(source string) (*Predicate, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, ErrEmptySource
	}
	if len(source) > MaxSourceLen {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrSourceTooLong, len(source), MaxSourceLen)
	}

	body := source
	if !strings.Contains(source, "return") {
		body = "return (" + source + ");"
	}
	wrapped := "(function(o) {\n" + body + "\n})"

	program, err := goja.Compile("predicate", wrapped, true)
	if err != nil {
		return nil, fmt.Errorf("compile predicate: %w", err)
	}
	return &Predicate{source: source, program: program}, nil
}

// Source returns the predicate text as supplied.
func (p *Predicate) Source() string {
	return p.source
}

// VM is a sandboxed runtime bound to one predicate. A VM must only be used
// from a single goroutine.
type VM struct {
	runtime *goja.Runtime
	fn      goja.Callable
	timeout time.Duration
}

// NewVM instantiates the predicate in a fresh runtime.
func (p *Predicate) NewVM() (*VM, error) {
	vm := &VM{
		runtime: goja.New(),
		timeout: predicateCallTimeout,
	}
	vm.runtime.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	vm.sandbox()

	var value goja.Value
	err := vm.runWithTimeout(predicateInitTimeout, func() error {
		v, err := vm.runtime.RunProgram(p.program)
		value = v
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load predicate: %w", err)
	}

	fn, ok := goja.AssertFunction(value)
	if !ok {
		return nil, fmt.Errorf("load predicate: program did not yield a function")
	}
	vm.fn = fn
	return vm, nil
}

// SetTimeout changes the per call time limit.
func (vm *VM) SetTimeout(d time.Duration) {
	if d > 0 {
		vm.timeout = d
	}
}

// sandbox removes globals a predicate has no business touching.
func (vm *VM) sandbox() {
	for _, name := range []string{"require", "fetch", "XMLHttpRequest", "eval", "Function"} {
		vm.runtime.Set(name, goja.Undefined())
	}
}

// Match reports whether the offspring satisfies the predicate. The result
// is coerced with JavaScript truthiness.
func (vm *VM) Match(o breed.Offspring) (bool, error) {
	var matched bool
	err := vm.runWithTimeout(vm.timeout, func() error {
		result, err := vm.fn(goja.Undefined(), vm.runtime.ToValue(NewView(o)))
		if err != nil {
			return err
		}
		matched = result.ToBoolean()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("evaluate predicate: %w", err)
	}
	return matched, nil
}

// runWithTimeout interrupts the runtime if fn runs past timeout. The
// interrupt flag is cleared afterwards so the VM stays usable.
func (vm *VM) runWithTimeout(timeout time.Duration, fn func() error) error {
	fired := make(chan struct{})
	timer := time.AfterFunc(timeout, func() {
		vm.runtime.Interrupt(ErrTimeout)
		close(fired)
	})
	err := fn()
	if !timer.Stop() {
		<-fired
	}
	vm.runtime.ClearInterrupt()

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return ErrTimeout
	}
	return err
}
