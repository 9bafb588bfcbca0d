package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityJSONFields(t *testing.T) {
	id := Identity{Email: "alice@example.com", DisplayName: "Alice", RootPath: "/home/alice"}

	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"userEmail": "alice@example.com",
		"userName": "Alice",
		"userFolderPath": "/home/alice"
	}`, string(data))

	var decoded Identity
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id, decoded)
}

func TestIdentitySame(t *testing.T) {
	a := Identity{Email: "alice@example.com", DisplayName: "Alice"}
	b := Identity{Email: "alice@example.com", DisplayName: "Alice (laptop)", RootPath: "/tmp"}
	c := Identity{Email: "bob@example.com", DisplayName: "Alice"}

	assert.True(t, a.Same(b))
	assert.False(t, a.Same(c))
	assert.Equal(t, a.Key(), b.Key())
}

func TestIdentityIsEmpty(t *testing.T) {
	assert.True(t, EmptyIdentity.IsEmpty())
	assert.False(t, Identity{Email: "alice@example.com"}.IsEmpty())
	assert.False(t, Identity{DisplayName: "Alice"}.IsEmpty())
}
