package scf

import (
	"errors"
	"fmt"
)

var (
	// ErrPluginLoadFailure matches every error recorded against a plugin that
	// could not be loaded.
	ErrPluginLoadFailure = errors.New("plugin load failure")
	// ErrDependencyFailed is recorded when a plugin this one depends on failed.
	ErrDependencyFailed = errors.New("dependency failed")
	// ErrDependencyCycle is recorded on every member of a dependency cycle.
	ErrDependencyCycle = errors.New("cyclic plugin dependency")
	// ErrPluginNotFound is returned for names the loader has never seen.
	ErrPluginNotFound = errors.New("plugin not found")
	// ErrPluginNotLoaded is returned when an operation needs a loaded plugin.
	ErrPluginNotLoaded = errors.New("plugin not loaded")
)

// Load stages reported in PluginError.Operation.
const (
	OpOpen       = "open"
	OpResolve    = "resolve"
	OpDependency = "dependency"
	OpCreate     = "create"
	OpInitialize = "initialize"
	OpVerify     = "verify"
	OpRegister   = "register"
)

// PluginError describes why a plugin failed to load.
type PluginError struct {
	Plugin    string
	Operation string
	Err       error
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("plugin %s: %s: %v", e.Plugin, e.Operation, e.Err)
}

func (e *PluginError) Unwrap() error {
	return e.Err
}

// Is reports every PluginError as an ErrPluginLoadFailure.
func (e *PluginError) Is(target error) bool {
	return target == ErrPluginLoadFailure
}

func newPluginError(plugin, op string, err error) *PluginError {
	return &PluginError{Plugin: plugin, Operation: op, Err: err}
}
