package chunkrange

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	in := []int64{9, 7, 8, 1, 2, 3, 5}
	s := Compress(in)
	require.Equal(t, "1-3,5,7-9", s)

	out, err := Decompress(s)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{1, 2, 3, 5, 7, 8, 9}, out)
}

func TestCompressEmpty(t *testing.T) {
	require.Equal(t, "", Compress(nil))
}

func TestCompressSingleton(t *testing.T) {
	require.Equal(t, "42", Compress([]int64{42}))
}

func TestDecompressEmpty(t *testing.T) {
	out, err := Decompress("")
	require.NoError(t, err)
	require.Nil(t, out)
}
