package coordinator

import (
	"sort"
	"sync"

	"sharehub/pkg/types"
)

// runtimeCache remembers which filenames have already been delivered to an
// identity during this process lifetime. It is rebuilt from the ownership
// stores at startup and never persisted. The pending-file sweep reads it to
// decide what an offline user is still missing.
type runtimeCache struct {
	mu    sync.Mutex
	files map[string]map[string]struct{}
}

func newRuntimeCache() *runtimeCache {
	return &runtimeCache{files: make(map[string]map[string]struct{})}
}

// ensure creates an (empty) entry for the identity if none exists yet.
func (c *runtimeCache) ensure(user types.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.files[user.Key()]; !ok {
		c.files[user.Key()] = make(map[string]struct{})
	}
}

// has reports whether the filename is already recorded for the identity.
func (c *runtimeCache) has(user types.Identity, filename string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.files[user.Key()]
	if !ok {
		return false
	}
	_, present := set[filename]
	return present
}

// add records a delivered filename. It returns false when the filename was
// already recorded, which callers use to suppress duplicate pushes.
func (c *runtimeCache) add(user types.Identity, filename string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.files[user.Key()]
	if !ok {
		set = make(map[string]struct{})
		c.files[user.Key()] = set
	}
	if _, present := set[filename]; present {
		return false
	}
	set[filename] = struct{}{}
	return true
}

// replace resets the identity's entry to exactly the given filenames.
func (c *runtimeCache) replace(user types.Identity, filenames []string) {
	set := make(map[string]struct{}, len(filenames))
	for _, name := range filenames {
		set[name] = struct{}{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[user.Key()] = set
}

// entry returns the cached filenames for the identity, sorted, and whether
// the identity has an entry at all.
func (c *runtimeCache) entry(user types.Identity) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.files[user.Key()]
	if !ok {
		return nil, false
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, true
}
