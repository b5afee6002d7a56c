package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateRejectsDuplicateBindPath(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		AuthToken: "abcd",
		Volumes: []Volume{
			{DevName: "a", BindPath: filepath.Join(dir, "shared")},
			{DevName: "b", BindPath: filepath.Join(dir, "shared")},
		},
	}
	err := cfg.Validate()
	require.ErrorIs(t, err, ErrDuplicateBind)
}

func TestValidateRejectsDuplicateDevName(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		AuthToken: "abcd",
		Volumes: []Volume{
			{DevName: "a", BindPath: filepath.Join(dir, "one")},
			{DevName: "a", BindPath: filepath.Join(dir, "two")},
		},
	}
	err := cfg.Validate()
	require.ErrorIs(t, err, ErrDuplicateDevName)
}

func TestValidateRejectsBadDevName(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		AuthToken: "abcd",
		Volumes:   []Volume{{DevName: "bad name!", BindPath: filepath.Join(dir, "x")}},
	}
	require.ErrorIs(t, cfg.Validate(), ErrBadDevName)
}

func TestValidateRequiresAuthToken(t *testing.T) {
	cfg := &Config{Volumes: []Volume{{DevName: "a", BindPath: t.TempDir()}}}
	require.ErrorIs(t, cfg.Validate(), ErrNoAuthToken)
}

func TestValidateOK(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		AuthToken: "abcd",
		Volumes:   []Volume{{DevName: "vol1", BindPath: filepath.Join(dir, "vol1")}},
	}
	require.NoError(t, cfg.Validate())
}

func TestVolumeByName(t *testing.T) {
	cfg := &Config{Volumes: []Volume{{DevName: "vol1", BindPath: "/data/vol1"}}}
	v, ok := cfg.VolumeByName("vol1")
	require.True(t, ok)
	require.Equal(t, "/data/vol1", v.BindPath)

	_, ok = cfg.VolumeByName("missing")
	require.False(t, ok)
}
