package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer s.Close()

	rec := Record{
		FileHash:   "abc123",
		FileName:   "report.pdf",
		FileSize:   1048576,
		Succeeded:  true,
		Duration:   3 * time.Second,
		FinishedAt: time.Now(),
	}
	require.NoError(t, s.Put(rec))

	got, err := s.Get("abc123")
	require.NoError(t, err)
	require.Equal(t, rec.FileHash, got.FileHash)
	require.True(t, got.Succeeded)
}

func TestGetNotFound(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListOrdering(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put(Record{FileHash: "a", FinishedAt: time.Now()}))
	require.NoError(t, s.Put(Record{FileHash: "b", FinishedAt: time.Now()}))

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "b", list[0].FileHash)
}
