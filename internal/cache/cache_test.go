package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoop(t *testing.T) {
	ctx := context.Background()
	var c Cache = Noop{}

	require.NoError(t, c.Set(ctx, "k", map[string]int{"a": 1}, time.Minute))

	var dest map[string]int
	hit, err := c.Get(ctx, "k", &dest)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, dest)

	assert.NoError(t, c.Delete(ctx, "k"))
}

func TestNewRedis_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	// Port 1 is reserved; nothing listens there.
	r, err := NewRedis(ctx, "127.0.0.1:1", "", 0)
	require.Error(t, err)
	assert.Nil(t, r)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}

func TestRedis_DeleteNoKeys(t *testing.T) {
	// Delete with no keys returns before touching the client.
	r := &Redis{}
	assert.NoError(t, r.Delete(context.Background()))
}
