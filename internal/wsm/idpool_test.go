package wsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdPoolAllocateUnique(t *testing.T) {
	p := NewIdPool()
	seen := make(map[uint8]bool)
	for i := 0; i < 256; i++ {
		id, ok := p.Allocate()
		require.True(t, ok)
		require.False(t, seen[id], "id %d allocated twice", id)
		seen[id] = true
	}
	require.Equal(t, 256, p.Size())
}

func TestIdPoolSaturation(t *testing.T) {
	p := NewIdPool()
	for i := 0; i < 256; i++ {
		_, ok := p.Allocate()
		require.True(t, ok)
	}
	_, ok := p.Allocate()
	require.False(t, ok)
}

func TestIdPoolRelease(t *testing.T) {
	p := NewIdPool()
	id, ok := p.Allocate()
	require.True(t, ok)
	require.True(t, p.Release(id))
	require.False(t, p.Release(id))
	require.Equal(t, 0, p.Size())
}

func TestIdPoolDrain(t *testing.T) {
	p := NewIdPool()
	for i := 0; i < 10; i++ {
		_, ok := p.Allocate()
		require.True(t, ok)
	}
	drained := p.Drain()
	require.Len(t, drained, 10)
	require.Equal(t, 0, p.Size())
}
