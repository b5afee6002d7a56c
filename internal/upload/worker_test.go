package upload

import (
	"encoding/binary"
	"net"
	"os"
	"testing"

	"github.com/canmi21/anchr/internal/wsm"
	"github.com/stretchr/testify/require"
)

// fakeServer plays the server side of the worker protocol, inline, for
// test purposes: it reads Hello, then for each chunk inquiry replies Load,
// reads the chunk data, and replies final success, except that the first
// data-ack for chunk failFirstChunk (-1 for none) is non-final, to
// exercise the requeue path.
func fakeServer(t *testing.T, conn net.Conn, failFirstChunk int64) {
	t.Helper()
	failed := make(map[int64]bool)

	hello, err := wsm.ReadFrame(conn)
	require.NoError(t, err)
	_, err = wsm.ReadPayload(conn, hello.PayloadLen)
	require.NoError(t, err)

	for {
		f, err := wsm.ReadFrame(conn)
		if err != nil {
			return
		}
		body, err := wsm.ReadPayload(conn, f.PayloadLen)
		require.NoError(t, err)

		switch f.Opcode {
		case wsm.OpChunkInquiry:
			chunkID := int64(binary.LittleEndian.Uint64(body[:8]))
			ackPayload := []byte{loadAck}
			reply := wsm.New(wsm.OpReply, f.MessageID, wsm.PayloadRaw, 0, 1)
			require.NoError(t, wsm.WriteFrame(conn, reply, ackPayload))
			_ = chunkID
		case wsm.OpChunkData:
			chunkID := int64(binary.LittleEndian.Uint64(body[:8]))
			if chunkID == failFirstChunk && !failed[chunkID] {
				failed[chunkID] = true
				reply := wsm.New(wsm.OpReply, f.MessageID, wsm.PayloadRaw, 0, 0)
				require.NoError(t, wsm.WriteFrame(conn, reply, nil))
				continue
			}
			reply := wsm.New(wsm.OpReply, f.MessageID, wsm.PayloadRaw, wsm.ReservedFinal, 0)
			require.NoError(t, wsm.WriteFrame(conn, reply, nil))
		default:
			return
		}
	}
}

func newTestClient(t *testing.T, data []byte) (*Client, string) {
	t.Helper()
	path := t.TempDir() + "/file.bin"
	require.NoError(t, os.WriteFile(path, data, 0o644))
	md := Metadata{FileName: "file.bin", FileSize: int64(len(data)), FileHash: "deadbeef"}
	c := NewClient(md, path, 1)
	c.BeginStreaming(TotalChunks(int64(len(data))))
	return c, path
}

func TestRunWorkerSingleChunkSuccess(t *testing.T) {
	data := make([]byte, 100)
	c, _ := newTestClient(t, data)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	go fakeServer(t, serverConn, -1)

	err := RunWorker(clientConn, c)
	require.NoError(t, err)
	require.EqualValues(t, 1, c.CompletedChunks())
	require.Equal(t, Finishing, c.State())
}

func TestRunWorkerRequeuesOnMismatch(t *testing.T) {
	data := make([]byte, ChunkSize+100) // 2 chunks
	c, _ := newTestClient(t, data)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	go fakeServer(t, serverConn, 0) // fail chunk 0's first data-ack

	err := RunWorker(clientConn, c)
	require.NoError(t, err)
	require.EqualValues(t, 2, c.CompletedChunks())
}
