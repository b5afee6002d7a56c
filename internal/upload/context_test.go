package upload

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWorkerCountClamps(t *testing.T) {
	require.Equal(t, 1, WorkerCount(0))
	require.Equal(t, 2, WorkerCount(ChunkSize+1))
	require.Equal(t, MaxWorkers, WorkerCount(int64(MaxWorkers+10)*ChunkSize))
}

func TestBeginStreamingAndPop(t *testing.T) {
	c := NewClient(Metadata{FileSize: ChunkSize * 2}, "/tmp/x", 1)
	c.BeginStreaming(2)
	require.Equal(t, Streaming, c.State())

	id1, ok := c.PopChunk()
	require.True(t, ok)
	id2, ok := c.PopChunk()
	require.True(t, ok)
	require.ElementsMatch(t, []int64{0, 1}, []int64{id1, id2})
}

func TestCompleteChunkTransitionsToFinishing(t *testing.T) {
	c := NewClient(Metadata{FileSize: ChunkSize}, "/tmp/x", 1)
	c.BeginStreaming(1)
	_, _ = c.PopChunk()
	done := c.CompleteChunk()
	require.True(t, done)
	require.EqualValues(t, 1, c.CompletedChunks())
}

func TestRequeuePutsChunkBack(t *testing.T) {
	c := NewClient(Metadata{FileSize: ChunkSize * 2}, "/tmp/x", 1)
	c.BeginStreaming(2)
	id, _ := c.PopChunk()
	c.Requeue(id)
	_, ok := c.PopChunk()
	require.True(t, ok)
}

func TestFilenameValidation(t *testing.T) {
	require.NoError(t, ValidateFilename("report_v2.final@1-copy.txt"))
	require.ErrorIs(t, ValidateFilename("../etc/passwd"), ErrInvalidFilename)
	require.ErrorIs(t, ValidateFilename("has space.txt"), ErrInvalidFilename)
}
