//go:build !unix

package fsutil

// Lock is a no-op where flock is unavailable; the in-process mutex
// of each store still serializes its own callers.
func Lock(string) (func() error, error) {
	return func() error { return nil }, nil
}
