// Package direrr defines the three error kinds used across rule
// generation: configuration-fatal errors raised immediately,
// missing-dependency errors for a stanza's `libraries`, and link-cycle
// errors raised at archive/executable emission.
// Every other package wraps its own errors in one of these via
// golang.org/x/xerrors so callers can classify failures with errors.As
// instead of string-matching messages.
package direrr

import "golang.org/x/xerrors"

// ConfigError is raised immediately during rule generation: a missing
// module implementation, a duplicate module stem, an unknown module named
// in a `modules` declaration, an invalid glob, a malformed scanner output
// line, or a duplicate module in scan output.
type ConfigError struct {
	Dir string
	Msg string
}

func (e *ConfigError) Error() string {
	if e.Dir == "" {
		return "config: " + e.Msg
	}
	return e.Dir + ": " + e.Msg
}

// Configf builds a ConfigError with a formatted message.
func Configf(dir, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Dir: dir, Msg: xerrors.Errorf(format, args...).Error()}
}

// DeferredDepError marks a missing library/package encountered while
// interpreting a stanza's `libraries`. internal/orchestrator returns it
// directly from BuildLibrary (non-optional libraries) and
// BuildExecutables, so it stops rule generation for that stanza; it is not
// wrapped in graph.FailNode.
type DeferredDepError struct {
	Dir     string
	Missing []string
}

func (e *DeferredDepError) Error() string {
	return xerrors.Errorf("%s: missing libraries/packages: %v", e.Dir, e.Missing).Error()
}

// CycleError is raised at archive/executable emission when the module
// dependency graph contains a cycle.
type CycleError struct {
	Cycle []string // module names in cycle order, e.g. ["A", "B", "A"]
}

func (e *CycleError) Error() string {
	return xerrors.Errorf("cycle in link closure: %v", e.Cycle).Error()
}
