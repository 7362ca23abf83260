// Package uniqueid supplies identifiers for a resolution call: table aliases
// and run ids.
package uniqueid

import (
	"strconv"
	"sync"
)

// Aliases generates table aliases from a per-prefix counter.
//
// The first alias for prefix "t" is "t0", then "t1", and so on. Counters of
// different prefixes are independent, so output is deterministic for a given
// sequence of requests.
//
// Thread-safety: Aliases is safe for concurrent use via internal mutex. A
// resolution call is single-threaded, but one generator may be shared by
// several calls that must never hand out the same alias.
type Aliases struct {
	mu       sync.Mutex
	counters map[string]int
}

// NewAliases creates a generator with every counter at 0.
func NewAliases() *Aliases {
	return &Aliases{counters: make(map[string]int)}
}

// GetUniqueIdentifier returns the next alias for prefix.
func (a *Aliases) GetUniqueIdentifier(prefix string) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := a.counters[prefix]
	a.counters[prefix] = n + 1
	return prefix + strconv.Itoa(n)
}

// Reset sets every counter back to 0.
//
// Used for test reuse. After Reset, the next alias for any prefix ends in 0.
func (a *Aliases) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counters = make(map[string]int)
}
