package upload

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashFileMatchesDirectSum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	data := make([]byte, ChunkSize+42)
	for i := range data {
		data[i] = byte(i * 7)
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))

	got, err := HashFile(path)
	require.NoError(t, err)

	want := sha256.Sum256(data)
	require.Equal(t, hex.EncodeToString(want[:]), got)
}

func TestReadChunkBoundaries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	data := make([]byte, ChunkSize+100)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))

	first, err := ReadChunk(path, 0, int64(len(data)))
	require.NoError(t, err)
	require.Equal(t, ChunkSize, len(first))
	require.Equal(t, data[:ChunkSize], first)

	last, err := ReadChunk(path, 1, int64(len(data)))
	require.NoError(t, err)
	require.Equal(t, 100, len(last))
	require.Equal(t, data[ChunkSize:], last)
}

func TestTotalChunks(t *testing.T) {
	require.EqualValues(t, 1, TotalChunks(0))
	require.EqualValues(t, 2, TotalChunks(1048576))
	require.EqualValues(t, 3, TotalChunks(ChunkSize*2+1))
}
