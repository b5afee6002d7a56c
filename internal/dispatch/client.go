package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/canmi21/anchr/internal/keepalive"
	"github.com/canmi21/anchr/internal/observability"
	"github.com/canmi21/anchr/internal/transport"
	"github.com/canmi21/anchr/internal/upload"
	"github.com/canmi21/anchr/internal/wsm"
)

// ErrAuthRejected is returned by Authenticate when the server rejects the
// token; the session then reports StoppedReconnecting as true, with the
// server's reason, rather than retrying.
var ErrAuthRejected = errors.New("dispatch: auth rejected by server")

// outboundFrame is one frame queued for the control stream's writer
// goroutine, mirroring the server's pattern (server.go's outboundFrame):
// every writer of a frame waits on errCh rather than calling
// wsm.WriteFrame(c.Control, ...) directly, so the header and payload of
// one logical frame can never be interleaved with another goroutine's
// write to the same stream (spec.md §5/§9: never share a send half).
type outboundFrame struct {
	frame   wsm.Frame
	payload []byte
	errCh   chan error
}

// ClientSession drives one client-side control stream: auth handshake,
// keep-alive, list requests, and the upload state machine's control-plane
// half (worker streams are driven directly by internal/upload).
type ClientSession struct {
	Conn    *transport.Connection
	Control transport.Stream
	Logger  *observability.Logger

	ids      *wsm.IdPool
	inFlight *keepalive.InFlight
	out      chan outboundFrame

	mu            sync.Mutex
	activeUpload  *upload.Client
	uploadMsgID   uint8
	stopReconnect atomic.Bool
	stopReason    string
}

// NewClientSession wraps an already-opened control stream and starts its
// single writer goroutine.
func NewClientSession(conn *transport.Connection, control transport.Stream, logger *observability.Logger) *ClientSession {
	c := &ClientSession{
		Conn:     conn,
		Control:  control,
		Logger:   logger,
		ids:      wsm.NewIdPool(),
		inFlight: keepalive.NewInFlight(),
		out:      make(chan outboundFrame, 64),
	}
	go c.runWriter()
	return c
}

// runWriter is the control stream's single writer goroutine: every other
// goroutine (pinger, control-loop reply handler, command/upload
// goroutines) funnels its writes through c.out instead of touching
// c.Control directly.
func (c *ClientSession) runWriter() {
	for of := range c.out {
		of.errCh <- wsm.WriteFrame(c.Control, of.frame, of.payload)
	}
}

// writeFrame enqueues f+payload for the writer goroutine and blocks until
// it has been written, returning any write error.
func (c *ClientSession) writeFrame(f wsm.Frame, payload []byte) error {
	errCh := make(chan error, 1)
	c.out <- outboundFrame{frame: f, payload: payload, errCh: errCh}
	return <-errCh
}

// Close stops the writer goroutine. Safe to call once the connection is
// being torn down and no further writes will be enqueued.
func (c *ClientSession) Close() {
	close(c.out)
}

// Authenticate sends the one-shot AuthRequest and blocks for the reply.
func (c *ClientSession) Authenticate(token string) error {
	id, ok := c.ids.Allocate()
	if !ok {
		return errors.New("dispatch: id pool exhausted")
	}
	payload := []byte(token)
	if err := c.writeFrame(wsm.New(wsm.OpAuthRequest, id, wsm.PayloadRaw, 0, uint32(len(payload))), payload); err != nil {
		return err
	}

	reply, err := wsm.ReadFrame(c.Control)
	if err != nil {
		return err
	}
	body, err := wsm.ReadPayload(c.Control, reply.PayloadLen)
	if err != nil {
		return err
	}
	c.ids.Release(id)

	if len(body) == 0 {
		c.ids.Drain()
		return nil
	}
	reason := string(body)
	c.stopReconnect.Store(true)
	c.stopReason = reason
	return fmt.Errorf("%w: %s", ErrAuthRejected, reason)
}

// StoppedReconnecting reports whether an auth failure has disabled retry.
func (c *ClientSession) StoppedReconnecting() (bool, string) {
	return c.stopReconnect.Load(), c.stopReason
}

// SendPing allocates a message id, records it in-flight, and writes a PING
// frame. The caller is expected to call this on a 1-second ticker.
func (c *ClientSession) SendPing() error {
	id, ok := c.ids.Allocate()
	if !ok {
		return errors.New("dispatch: id pool exhausted for ping")
	}
	c.inFlight.Add(id)
	return c.writeFrame(wsm.New(wsm.OpPing, id, wsm.PayloadRaw, 0, 0), nil)
}

// HandlePong removes id from the in-flight map and releases it.
func (c *ClientSession) HandlePong(id uint8) {
	if c.inFlight.Remove(id) {
		c.ids.Release(id)
	}
}

// RunPinger blocks, sending a PING every keepalive.PingInterval until ctx
// is cancelled, per spec.md §4.4's automatic client-side keep-alive.
func (c *ClientSession) RunPinger(ctx context.Context) error {
	ticker := time.NewTicker(keepalive.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.SendPing(); err != nil {
				return err
			}
		}
	}
}

// WatchKeepAlive blocks, scanning the in-flight map every
// keepalive.WatchdogScanInterval; it returns once the oldest in-flight
// PING exceeds keepalive.PongTimeout, which the caller should treat as
// "close the connection now".
func (c *ClientSession) WatchKeepAlive(ctx context.Context) error {
	ticker := time.NewTicker(keepalive.WatchdogScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if age, ok := c.inFlight.OldestAge(time.Now()); ok && age > keepalive.PongTimeout {
				c.Logger.PingTimeout(age)
				c.inFlight.Clear()
				return errors.New("keepalive: PONG timeout")
			}
		}
	}
}

// SetActiveUpload records the single in-flight upload context, or clears
// it with nil. Per spec.md §3, only one upload may be in flight per
// connection.
func (c *ClientSession) SetActiveUpload(u *upload.Client, msgID uint8) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if u != nil && c.activeUpload != nil {
		return errors.New("dispatch: an upload is already in flight on this connection")
	}
	c.activeUpload = u
	c.uploadMsgID = msgID
	return nil
}

// ActiveUpload returns the current upload context, if any.
func (c *ClientSession) ActiveUpload() *upload.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeUpload
}

// HandleReply implements spec.md §4.5's tie-break rule for a 0x00 reply:
// if it matches the active upload's pending message id, it's interpreted
// by the upload state machine; otherwise it's an ack to discard (and its
// id released).
func (c *ClientSession) HandleReply(frame wsm.Frame, payload []byte) error {
	c.mu.Lock()
	u := c.activeUpload
	pendingID := c.uploadMsgID
	c.mu.Unlock()

	if u != nil && frame.MessageID == pendingID {
		return c.handleUploadReply(u, frame, payload)
	}
	c.ids.Release(frame.MessageID)
	return nil
}

func (c *ClientSession) handleUploadReply(u *upload.Client, frame wsm.Frame, payload []byte) error {
	switch u.State() {
	case upload.Initiated:
		if len(payload) != 1 {
			return errors.New("dispatch: init ack must carry 1 byte")
		}
		n := upload.WorkerCount(u.Metadata.FileSize)
		id, ok := c.ids.Allocate()
		if !ok {
			return errors.New("dispatch: id pool exhausted")
		}
		c.mu.Lock()
		c.uploadMsgID = id
		c.mu.Unlock()
		c.ids.Release(frame.MessageID) // superseded by the worker-alloc id above
		u.SetState(upload.WorkersOpening)
		return c.writeFrame(wsm.New(wsm.OpWorkerAlloc, id, wsm.PayloadRaw, 0, 1), []byte{byte(n)})
	case upload.WorkersOpening:
		c.ids.Release(frame.MessageID)
		u.BeginStreaming(upload.TotalChunks(u.Metadata.FileSize))
		return nil
	case upload.Finishing:
		if len(payload) != 1 {
			return errors.New("dispatch: finalize ack must carry 1 byte")
		}
		c.ids.Release(frame.MessageID)
		success := payload[0] == 1
		if success {
			c.Logger.UploadCompleted(u.Metadata.FileHash, u.Metadata.FileSize, time.Since(u.StartTime))
		} else {
			c.Logger.UploadFailed(u.Metadata.FileHash, "server reported finalize failure")
		}
		return c.SetActiveUpload(nil, 0)
	default:
		return fmt.Errorf("dispatch: unexpected reply in state %s", u.State())
	}
}

// SendFinalize sends the finalize request for u's metadata.
func (c *ClientSession) SendFinalize(u *upload.Client) error {
	body, err := json.Marshal(u.Metadata)
	if err != nil {
		return err
	}
	id, ok := c.ids.Allocate()
	if !ok {
		return errors.New("dispatch: id pool exhausted")
	}
	c.mu.Lock()
	c.uploadMsgID = id
	c.mu.Unlock()
	return c.writeFrame(wsm.New(wsm.OpFinalize, id, wsm.PayloadJSON, 0, uint32(len(body))), body)
}
