package authgate

import (
	"testing"

	"github.com/canmi21/anchr/internal/wsm"
	"github.com/stretchr/testify/require"
)

func TestCheckRequestSuccess(t *testing.T) {
	g := NewGate("abcd")
	ok, reason := g.CheckRequest([]byte("abcd"))
	require.True(t, ok)
	require.Empty(t, reason)
	require.Equal(t, Authenticated, g.State())
}

func TestCheckRequestFailure(t *testing.T) {
	g := NewGate("abcd")
	ok, reason := g.CheckRequest([]byte("wrong"))
	require.False(t, ok)
	require.Equal(t, "Invalid authentication token", reason)
	require.Equal(t, Unauthenticated, g.State())
}

func TestAllowedBeforeAuth(t *testing.T) {
	g := NewGate("abcd")
	require.True(t, g.Allowed(wsm.OpPing))
	require.True(t, g.Allowed(wsm.OpAuthRequest))
	require.False(t, g.Allowed(wsm.OpListRequest))
	require.False(t, g.Allowed(wsm.OpUploadInit))
}

func TestAllowedAfterAuth(t *testing.T) {
	g := NewGate("abcd")
	_, _ = g.CheckRequest([]byte("abcd"))
	require.True(t, g.Allowed(wsm.OpListRequest))
	require.True(t, g.Allowed(wsm.OpUploadInit))
}

func TestNoDowngrade(t *testing.T) {
	g := NewGate("abcd")
	_, _ = g.CheckRequest([]byte("abcd"))
	ok, _ := g.CheckRequest([]byte("wrong"))
	require.False(t, ok)
	require.Equal(t, Authenticated, g.State())
}
