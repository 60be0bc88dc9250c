package corpus

import "fmt"

// MaxRedirectHops is the longest redirect chain Resolve follows.
const MaxRedirectHops = 5

// Resolve returns the literal text reachable from key.
// It follows at most MaxRedirectHops redirects, so cycles terminate with
// ErrRedirectLimit. A missing key or redirect target yields ErrEntryNotFound.
func Resolve(entries map[string]Entry, key string) (string, error) {
	current := key
	for hops := 0; ; hops++ {
		entry, ok := entries[current]
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrEntryNotFound, current)
		}
		if !entry.IsRedirect() {
			return entry.Text(), nil
		}
		if hops == MaxRedirectHops {
			return "", fmt.Errorf("%w: %q after %d hops", ErrRedirectLimit, key, hops)
		}
		current = entry.Target()
	}
}

// ResolveText is Resolve with every failure mapped to the empty string.
func ResolveText(entries map[string]Entry, key string) string {
	text, err := Resolve(entries, key)
	if err != nil {
		return ""
	}
	return text
}
