package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEntityNotFound is returned when a title cannot be found in a store or repository.
var ErrEntityNotFound = errors.New("entity not found")

// ErrMissingTitle is returned when an entity is built without a title field.
var ErrMissingTitle = errors.New("entity has no title")

// ErrDuplicateRule is wrapped by ConfigError when a rule name is registered twice in one class.
var ErrDuplicateRule = errors.New("duplicate rule")

// ErrDuplicateMacro is wrapped by ConfigError when a macro name is registered twice.
var ErrDuplicateMacro = errors.New("duplicate macro")

// ErrUnknownFormat is returned by static rendering for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown output format")

// ConfigError reports a registry conflict or an invalid registration.
// It is fatal at load time: it indicates a programming error in the host.
type ConfigError struct {
	Kind string // "rule", "macro", "grammar"
	Name string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s %q: %v", e.Kind, e.Name, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// RecursionError is produced when an entity is expanded while it is already
// being expanded further up the transclusion chain.
type RecursionError struct {
	Title string
	Chain []string
}

func (e *RecursionError) Error() string {
	return fmt.Sprintf("recursive transclusion of %q (via %s)", e.Title, strings.Join(e.Chain, " > "))
}

// ParamError reports a macro parameter that failed binding or validation.
type ParamError struct {
	Macro  string
	Param  string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("macro %q: parameter %q: %s", e.Macro, e.Param, e.Reason)
}

// UnknownMacroError is produced when a macro node names no registered macro.
type UnknownMacroError struct {
	Name string
}

func (e *UnknownMacroError) Error() string {
	return fmt.Sprintf("unknown macro %q", e.Name)
}
