package command

import (
	"context"
	"io"
	"net"
	"os"
	"testing"

	"github.com/canmi21/anchr/internal/dispatch"
	"github.com/canmi21/anchr/internal/observability"
	"github.com/canmi21/anchr/internal/transport"
	"github.com/canmi21/anchr/internal/wsm"
	"github.com/stretchr/testify/require"
)

// pipeConn adapts a net.Conn to transport.Stream for tests that don't
// need real QUIC deadlines.
type pipeConn struct{ net.Conn }

func (p pipeConn) Close() error { return p.Conn.Close() }

func newRouter(t *testing.T) (*Router, transport.Stream) {
	t.Helper()
	client, server := net.Pipe()
	logger := observability.NewLogger("test", "0", io.Discard)
	session := dispatch.NewClientSession(nil, pipeConn{client}, logger)
	return NewRouter(session, logger), pipeConn{server}
}

func TestPingEnqueuesFrame(t *testing.T) {
	r, server := newRouter(t)
	defer server.Close()

	done := make(chan error, 1)
	go func() { done <- r.Execute(context.Background(), "ping") }()

	f, err := wsm.ReadFrame(server)
	require.NoError(t, err)
	require.Equal(t, wsm.OpPing, f.Opcode)
	require.NoError(t, <-done)
}

func TestUnknownCommandIgnored(t *testing.T) {
	r, server := newRouter(t)
	defer server.Close()
	require.NoError(t, r.Execute(context.Background(), "frobnicate now"))
}

func TestEmptyLineIgnored(t *testing.T) {
	r, server := newRouter(t)
	defer server.Close()
	require.NoError(t, r.Execute(context.Background(), "   "))
}

func TestRfsListSendsFrame(t *testing.T) {
	r, server := newRouter(t)
	defer server.Close()

	done := make(chan error, 1)
	go func() { done <- r.Execute(context.Background(), "rfs list") }()

	f, err := wsm.ReadFrame(server)
	require.NoError(t, err)
	require.Equal(t, wsm.OpListRequest, f.Opcode)
	require.NoError(t, <-done)
}

func TestRfsUploadBadUsage(t *testing.T) {
	r, server := newRouter(t)
	defer server.Close()
	require.NoError(t, r.Execute(context.Background(), "rfs upload onlyonearg"))
}

func TestRfsUploadMissingFile(t *testing.T) {
	r, server := newRouter(t)
	defer server.Close()
	err := r.Execute(context.Background(), "rfs upload /vol "+os.TempDir()+"/does-not-exist.bin")
	require.Error(t, err)
}
