package coordinator

import (
	"testing"

	"sharehub/pkg/types"

	"github.com/stretchr/testify/assert"
)

func TestRuntimeCacheAdd(t *testing.T) {
	c := newRuntimeCache()
	user := types.Identity{Email: "alice@example.com", DisplayName: "Alice"}

	assert.True(t, c.add(user, "notes.txt"))
	assert.False(t, c.add(user, "notes.txt"))
	assert.True(t, c.add(user, "report.pdf"))

	names, ok := c.entry(user)
	assert.True(t, ok)
	assert.Equal(t, []string{"notes.txt", "report.pdf"}, names)
}

func TestRuntimeCacheHas(t *testing.T) {
	c := newRuntimeCache()
	user := types.Identity{Email: "alice@example.com"}

	assert.False(t, c.has(user, "notes.txt"))
	c.add(user, "notes.txt")
	assert.True(t, c.has(user, "notes.txt"))
	assert.False(t, c.has(user, "other.txt"))
}

func TestRuntimeCacheEnsure(t *testing.T) {
	c := newRuntimeCache()
	user := types.Identity{Email: "alice@example.com"}

	_, ok := c.entry(user)
	assert.False(t, ok)

	c.ensure(user)
	names, ok := c.entry(user)
	assert.True(t, ok)
	assert.Empty(t, names)

	// ensure never clobbers an existing entry.
	c.add(user, "notes.txt")
	c.ensure(user)
	names, _ = c.entry(user)
	assert.Equal(t, []string{"notes.txt"}, names)
}

func TestRuntimeCacheReplace(t *testing.T) {
	c := newRuntimeCache()
	user := types.Identity{Email: "alice@example.com"}
	c.add(user, "old.txt")

	c.replace(user, []string{"b.txt", "a.txt"})
	names, ok := c.entry(user)
	assert.True(t, ok)
	assert.Equal(t, []string{"a.txt", "b.txt"}, names)
}
