package ipinfo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_ResolvePrivateAddrSkipsNetworkCall(t *testing.T) {
	l, err := New(0)
	require.NoError(t, err)

	info := l.Resolve(context.Background(), "127.0.0.1:54321")
	assert.Equal(t, Info{}, info)
	_, ok := l.cache.Get("127.0.0.1")
	assert.False(t, ok, "private addresses should not be cached")
}

func TestLookup_ResolveCachesByHostOnly(t *testing.T) {
	l, err := New(0)
	require.NoError(t, err)

	l.cache.Add("203.0.113.5", Info{City: "Testville"})
	info := l.Resolve(context.Background(), "203.0.113.5:9000")
	assert.Equal(t, "Testville", info.City)
}

func TestHostOnly(t *testing.T) {
	assert.Equal(t, "10.0.0.1", hostOnly("10.0.0.1:8080"))
	assert.Equal(t, "10.0.0.1", hostOnly("10.0.0.1"))
}

func TestIsPrivate(t *testing.T) {
	assert.True(t, isPrivate("192.168.1.1"))
	assert.True(t, isPrivate("127.0.0.1"))
	assert.True(t, isPrivate("not-an-ip"))
	assert.False(t, isPrivate("8.8.8.8"))
}
