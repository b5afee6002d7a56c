package uploadserver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryPutGetRemove(t *testing.T) {
	r := NewRegistry()
	md := Metadata{FileHash: "abc", FileName: "x.bin", FileSize: 10}
	r.Put(md)

	got, ok := r.Get("abc")
	require.True(t, ok)
	require.Equal(t, md, got)

	r.Remove("abc")
	_, ok = r.Get("abc")
	require.False(t, ok)
}

func TestRegistryMissing(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("nope")
	require.False(t, ok)
}
