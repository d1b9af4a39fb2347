package content

import "errors"

var (
	// ErrMissing is returned when a content id has no variant that
	// resolves for the given selector (and no shared fallback either).
	ErrMissing = errors.New("content: missing identifier")
	// ErrDuplicate marks a load-time collision: the same (id, scope) pair
	// registered twice.
	ErrDuplicate = errors.New("content: duplicate identifier")
	// ErrInvalid marks a malformed source file: bad front matter, a scope
	// that disagrees with the filename suffix, an undeclared or unused
	// template variable, or an include path that would escape the bundle.
	ErrInvalid = errors.New("content: invalid content file")
)
