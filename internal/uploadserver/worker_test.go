package uploadserver

import (
	"crypto/sha256"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func inquiryPayload(chunkID int64, hash []byte) []byte {
	buf := make([]byte, 40)
	binary.LittleEndian.PutUint64(buf[:8], uint64(chunkID))
	copy(buf[8:], hash)
	return buf
}

func TestInquiryLoadThenChunkDataSuccess(t *testing.T) {
	final := filepath.Join(t.TempDir(), "report.bin")
	_, err := Prepare(final, "filehash")
	require.NoError(t, err)

	p := NewPendingHashes()
	data := []byte("chunk payload bytes")
	sum := sha256.Sum256(data)

	id, hash, err := DecodeInquiry(inquiryPayload(3, sum[:]))
	require.NoError(t, err)
	require.EqualValues(t, 3, id)

	ack, final_, err := p.HandleInquiry(final, id, hash)
	require.NoError(t, err)
	require.Equal(t, InquiryLoad, ack)
	require.False(t, final_)

	ok, err := p.HandleChunkData(final, id, data)
	require.NoError(t, err)
	require.True(t, ok)

	stored, err := os.ReadFile(filepath.Join(final+".tmp", "chunk_3"))
	require.NoError(t, err)
	require.Equal(t, data, stored)
}

func TestInquirySkipWhenAlreadyStored(t *testing.T) {
	final := filepath.Join(t.TempDir(), "report.bin")
	_, err := Prepare(final, "filehash")
	require.NoError(t, err)

	p := NewPendingHashes()
	data := []byte("already there")
	sum := sha256.Sum256(data)
	require.NoError(t, os.MkdirAll(final+".tmp", 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(final+".tmp", "chunk_0"), data, 0o644))

	ack, final_, err := p.HandleInquiry(final, 0, sum[:])
	require.NoError(t, err)
	require.Equal(t, InquirySkip, ack)
	require.True(t, final_)
}

func TestChunkDataMismatchRejected(t *testing.T) {
	final := filepath.Join(t.TempDir(), "report.bin")
	_, err := Prepare(final, "filehash")
	require.NoError(t, err)

	p := NewPendingHashes()
	sum := sha256.Sum256([]byte("expected"))
	p.pending[1] = sum[:]

	ok, err := p.HandleChunkData(final, 1, []byte("not expected"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestChunkDataNoPendingEntry(t *testing.T) {
	final := filepath.Join(t.TempDir(), "report.bin")
	p := NewPendingHashes()
	ok, err := p.HandleChunkData(final, 99, []byte("data"))
	require.NoError(t, err)
	require.False(t, ok)
}
