package corpus

import "errors"

var (
	// ErrRedirectLimit is returned when a redirect chain is longer than MaxRedirectHops or cycles.
	ErrRedirectLimit = errors.New("redirect hop limit exceeded")

	// ErrEntryNotFound is returned when a key or redirect target has no entry.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrInvalidEntry is returned when an entry is neither a string nor an object with text.
	ErrInvalidEntry = errors.New("invalid entry")

	// ErrNoCollections is returned when a narration loader has nothing to load.
	ErrNoCollections = errors.New("no collections configured")

	// ErrPathRequired is returned when a required source file is not configured.
	ErrPathRequired = errors.New("source path required")
)
