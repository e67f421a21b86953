package syntax

import "errors"

// Sentinel errors surfaced by the scope repository, the grammar loader and
// the linker. Callers compare with errors.Is.
var (
	// ErrTooManyAtoms is returned when a scope string has more than 8
	// dot-separated atoms.
	ErrTooManyAtoms = errors.New("scope: more than 8 atoms")

	// ErrTooManyGlobalAtoms is returned when interning a new atom would
	// exceed the 16-bit id space (2^16-2 atoms, id 0 reserved).
	ErrTooManyGlobalAtoms = errors.New("scope: too many unique atoms interned")

	// ErrNoClearedFrames is returned by ScopeStack.Apply when a Restore op
	// is applied but no frame was ever cleared.
	ErrNoClearedFrames = errors.New("scopestack: restore with no cleared frames")

	// ErrScopeName reports a grammar whose scope does not match the
	// "source.<basename>" convention for its file name. The loader does not
	// check that convention, so no function in this package returns it.
	ErrScopeName = errors.New("unexpected scope name")

	// ErrMainMissing is returned when a grammar has no "main" context.
	ErrMainMissing = errors.New("grammar: missing required 'main' context")

	// ErrMissingKey is returned when a mandatory YAML/plist key is absent.
	ErrMissingKey = errors.New("grammar: missing mandatory key")

	// ErrBadReference is returned when a context reference cannot be
	// parsed into one of the recognized forms.
	ErrBadReference = errors.New("grammar: malformed context reference")

	// ErrUnresolvedReference describes a reference the linker never
	// resolved to Direct. No function in this package returns it:
	// ContextReference.Resolve panics on such a reference instead.
	ErrUnresolvedReference = errors.New("grammar: unresolved context reference")
)
