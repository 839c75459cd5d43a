package scf

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/go-lynx/scf/log"
)

// ErrPluginPanic marks a plugin whose entry point or Initialize panicked.
var ErrPluginPanic = errors.New("plugin panicked")

// PanicError carries the recovered value and the goroutine stack.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%v: %v", ErrPluginPanic, e.Value)
}

func (e *PanicError) Is(target error) bool {
	return target == ErrPluginPanic
}

// safeCall runs fn and turns a panic into a *PanicError so one broken
// plugin cannot take the host down.
func safeCall(plugin, op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := make([]byte, 4096)
			n := runtime.Stack(stack, false)
			log.Errorf("panic in %s of plugin %s: %v\nstack trace:\n%s", op, plugin, r, stack[:n])
			err = &PanicError{Value: r, Stack: stack[:n]}
		}
	}()
	return fn()
}
