// Package labels generates unique synthetic label suffixes for the
// emitter. Counter is a monotonic counter carried as part of an emitter
// context object rather than a package-level global, so that repeated
// compilation of the same input stays deterministic.
package labels

import "fmt"

// Counter produces unique, monotonically increasing label suffixes.
type Counter struct {
	next int
}

// Next advances the counter and returns the new suffix.
func (c *Counter) Next() int {
	c.next++
	return c.next
}

// Name formats a label of the form "<prefix><suffix>", e.g. "endif_3".
func Name(prefix string, suffix int) string {
	return fmt.Sprintf("%s%d", prefix, suffix)
}
