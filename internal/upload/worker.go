package upload

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/canmi21/anchr/internal/wsm"
)

// Stream is the minimal byte-stream surface a worker task needs; it is
// satisfied directly by a QUIC bidirectional stream.
type Stream interface {
	io.Reader
	io.Writer
}

// ErrWorkerFatal names an unrecoverable worker-stream error. RunWorker
// returns stream and file errors as they are, without wrapping them in it.
var ErrWorkerFatal = errors.New("upload: worker stream fatal error")

// RunWorker drives one worker stream end to end, per spec.md §4.6's
// Worker task: send Hello, then loop popping chunk ids, reading+hashing
// the chunk, inquiring, and on a Load ack sending the data — retrying
// (requeueing) a chunk whose data-ack comes back non-final, per the
// REDESIGN FLAG in spec.md §9 (the reference implementation drops it
// instead).
func RunWorker(stream Stream, c *Client) error {
	if err := sendHello(stream, c.Metadata.FileHash); err != nil {
		return err
	}

	for {
		chunkID, ok := c.PopChunk()
		if !ok {
			return nil
		}

		data, err := ReadChunk(c.LocalFilePath, chunkID, c.Metadata.FileSize)
		if err != nil {
			return err
		}
		sum := SumChunk(data)

		ack, err := inquire(stream, chunkID, sum[:])
		if err != nil {
			return err
		}

		switch ack {
		case skipAck:
			// already stored, counts as successful without transfer.
		case loadAck:
			succeeded, err := sendChunkData(stream, chunkID, data)
			if err != nil {
				return err
			}
			if !succeeded {
				// spec.md §9: requeue instead of silently dropping.
				c.Requeue(chunkID)
				continue
			}
		default:
			return errors.New("upload: unexpected chunk-inquiry ack byte")
		}

		if c.CompleteChunk() {
			c.SetState(Finishing)
		}
	}
}

const (
	loadAck uint8 = 1
	skipAck uint8 = 2
)

func sendHello(stream Stream, fileHashHex string) error {
	payload := []byte(fileHashHex)
	f := wsm.New(wsm.OpWorkerHello, 0, wsm.PayloadRaw, 0, uint32(len(payload)))
	return wsm.WriteFrame(stream, f, payload)
}

// inquire sends a chunk-inquiry frame and reads back the 1-byte ack.
func inquire(stream Stream, chunkID int64, hash []byte) (ack uint8, err error) {
	payload := make([]byte, 40)
	binary.LittleEndian.PutUint64(payload[:8], uint64(chunkID))
	copy(payload[8:], hash)

	f := wsm.New(wsm.OpChunkInquiry, 0, wsm.PayloadRaw, 0, uint32(len(payload)))
	if err := wsm.WriteFrame(stream, f, payload); err != nil {
		return 0, err
	}

	reply, err := wsm.ReadFrame(stream)
	if err != nil {
		return 0, err
	}
	body, err := wsm.ReadPayload(stream, reply.PayloadLen)
	if err != nil {
		return 0, err
	}
	if len(body) != 1 {
		return 0, errors.New("upload: chunk-inquiry ack must be 1 byte")
	}
	return body[0], nil
}

// sendChunkData sends chunk bytes and reports whether the server's reply
// was final (success) or not (reload this chunk).
func sendChunkData(stream Stream, chunkID int64, data []byte) (succeeded bool, err error) {
	payload := make([]byte, 8+len(data))
	binary.LittleEndian.PutUint64(payload[:8], uint64(chunkID))
	copy(payload[8:], data)

	f := wsm.New(wsm.OpChunkData, 0, wsm.PayloadRaw, 0, uint32(len(payload)))
	if err := wsm.WriteFrame(stream, f, payload); err != nil {
		return false, err
	}

	reply, err := wsm.ReadFrame(stream)
	if err != nil {
		return false, err
	}
	if reply.PayloadLen > 0 {
		if _, err := wsm.ReadPayload(stream, reply.PayloadLen); err != nil {
			return false, err
		}
	}
	return reply.IsFinal(), nil
}
