package finalize

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeChunks(t *testing.T, finalPath string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(TmpDir(finalPath), 0o755))
	n := TotalChunks(int64(len(data)))
	for i := int64(0); i < n; i++ {
		start := i * ChunkSize
		end := start + ChunkSize
		if end > int64(len(data)) {
			end = int64(len(data))
		}
		require.NoError(t, os.WriteFile(ChunkPath(finalPath, i), data[start:end], 0o644))
	}
	require.NoError(t, os.WriteFile(LockFile(finalPath), nil, 0o644))
}

func TestFinalizeSuccess(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "report.bin")
	data := make([]byte, ChunkSize+100)
	for i := range data {
		data[i] = byte(i)
	}
	writeChunks(t, final, data)
	sum := sha256.Sum256(data)

	err := Finalize(Metadata{FinalPath: final, FileSize: int64(len(data)), FileHash: hex.EncodeToString(sum[:])})
	require.NoError(t, err)

	got, err := os.ReadFile(final)
	require.NoError(t, err)
	require.Equal(t, data, got)

	_, err = os.Stat(LockFile(final))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(TmpDir(final))
	require.True(t, os.IsNotExist(err))
}

func TestFinalizeMissingChunk(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "report.bin")
	data := make([]byte, ChunkSize*2)
	writeChunks(t, final, data)
	require.NoError(t, os.Remove(ChunkPath(final, 1)))

	err := Finalize(Metadata{FinalPath: final, FileSize: int64(len(data)), FileHash: "deadbeef"})
	require.ErrorIs(t, err, ErrMissingChunk)
}

func TestFinalizeHashMismatch(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "report.bin")
	data := []byte("hello world")
	writeChunks(t, final, data)

	err := Finalize(Metadata{FinalPath: final, FileSize: int64(len(data)), FileHash: "0000"})
	require.ErrorIs(t, err, ErrHashMismatch)

	// staging markers survive a failed finalize so a retry can still find them.
	_, statErr := os.Stat(LockFile(final))
	require.NoError(t, statErr)
}
