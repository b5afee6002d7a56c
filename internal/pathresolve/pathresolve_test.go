package pathresolve

import (
	"testing"

	"github.com/canmi21/anchr/internal/config"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Volumes: []config.Volume{
			{DevName: "docs", BindPath: "/srv/docs"},
		},
	}
}

func TestResolveBasic(t *testing.T) {
	p, err := Resolve(testConfig(), "/docs/reports")
	require.NoError(t, err)
	require.Equal(t, "/srv/docs/reports", p)
}

func TestResolveRootVolumeOnly(t *testing.T) {
	p, err := Resolve(testConfig(), "/docs")
	require.NoError(t, err)
	require.Equal(t, "/srv/docs", p)
}

func TestResolveUnknownVolume(t *testing.T) {
	_, err := Resolve(testConfig(), "/nope/x")
	require.ErrorIs(t, err, ErrUnknownVolume)
}

func TestResolveRejectsTraversal(t *testing.T) {
	_, err := Resolve(testConfig(), "/docs/../../etc/passwd")
	require.ErrorIs(t, err, ErrNonNormalSegment)
}

func TestResolveLiteralPercentSegmentAndDotGuard(t *testing.T) {
	_, err := Resolve(testConfig(), "/docs/a%2Fb")
	// percent-encoding is not decoded here; the literal segment has no
	// separator so this one actually succeeds. A segment that truly embeds
	// a separator can only arrive via an already-split caller bug, so we
	// instead verify the "." guard.
	require.NoError(t, err)

	_, err = Resolve(testConfig(), "/docs/.")
	require.ErrorIs(t, err, ErrNonNormalSegment)
}

func TestResolveEmptyPath(t *testing.T) {
	_, err := Resolve(testConfig(), "")
	require.ErrorIs(t, err, ErrEmptyPath)

	_, err = Resolve(testConfig(), "///")
	require.ErrorIs(t, err, ErrEmptyPath)
}
