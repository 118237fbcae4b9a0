package persistence

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bid2build/bid2build/internal/config"
)

func TestNewRedis_UnreachableServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	r, err := NewRedis(context.Background(), config.RedisConfig{Addr: addr}, zap.NewNop())
	require.Error(t, err)
	assert.Nil(t, r)
	assert.Contains(t, err.Error(), addr)
}

func TestRedis_PingWithoutClient(t *testing.T) {
	var r *Redis
	assert.Error(t, r.Ping(context.Background()))
	assert.NotPanics(t, r.Close)
}
