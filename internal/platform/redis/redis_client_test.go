package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := NewRedisClient(context.Background(), Config{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	require.NoError(t, rdb.Set(context.Background(), "k", "v", 0).Err())
	v, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestNewRedisClient_PingFails(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	rdb, err := NewRedisClient(context.Background(), Config{Addr: addr})

	assert.Error(t, err)
	assert.Nil(t, rdb)
}

func TestNewRedisClient_WrongPassword(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("correct")

	_, err := NewRedisClient(context.Background(), Config{Addr: mr.Addr(), Password: "wrong"})

	assert.Error(t, err)
}
