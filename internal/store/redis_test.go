package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	s, err := NewRedis(ctx, "redis://"+mr.Addr())
	require.NoError(t, err)
	defer s.Close()

	assert.NoError(t, s.Ping(ctx))

	mr.Close()
	assert.ErrorContains(t, s.Ping(ctx), "pinging redis")
}

func TestNewRedis_BadURL(t *testing.T) {
	_, err := NewRedis(context.Background(), "not a url")
	assert.ErrorContains(t, err, "parsing redis URL")
}
