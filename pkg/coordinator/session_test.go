package coordinator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionTokenShape(t *testing.T) {
	r := newSessionRegistry(16)

	token, err := r.generate()
	require.NoError(t, err)
	assert.Len(t, token, 16)
	for _, ch := range token {
		ok := (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
		assert.True(t, ok, "unexpected token character %q", ch)
	}
}

func TestSessionTokensDistinct(t *testing.T) {
	r := newSessionRegistry(16)

	const n = 200
	var wg sync.WaitGroup
	tokens := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token, err := r.generate()
			assert.NoError(t, err)
			tokens[i] = token
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, token := range tokens {
		assert.False(t, seen[token], "duplicate token %s", token)
		seen[token] = true
	}
	assert.Equal(t, n, r.count())
}

func TestSessionReleaseAndReuse(t *testing.T) {
	r := newSessionRegistry(16)

	token, err := r.generate()
	require.NoError(t, err)
	assert.True(t, r.contains(token))

	r.release(token)
	assert.False(t, r.contains(token))
	assert.Equal(t, 0, r.count())

	// Releasing an unknown token is a no-op.
	r.release("never-issued")
	assert.Equal(t, 0, r.count())
}

func TestSessionGenerateExhaustion(t *testing.T) {
	// Length 1 gives 62 possible tokens; filling the space must end with an
	// error instead of spinning forever.
	r := newSessionRegistry(1)
	for i := 0; i < 62; i++ {
		if _, err := r.generate(); err != nil {
			t.Fatalf("space not yet full after %d tokens: %v", i, err)
		}
	}
	_, err := r.generate()
	assert.Error(t, err)
}
