package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/canmi21/anchr/internal/upload"
	"github.com/canmi21/anchr/internal/wsm"
)

// AllocateID exposes the connection's IdPool to callers outside this
// package.
func (c *ClientSession) AllocateID() (uint8, bool) {
	return c.ids.Allocate()
}

// DropIDs drains the connection's IdPool, implementing the "drop"
// command (spec.md §4.10).
func (c *ClientSession) DropIDs() []uint8 {
	return c.ids.Drain()
}

// SendListRequest allocates a message id and writes a List Request
// (opcode 0x05) through the control stream's single writer goroutine,
// implementing the "rfs list" command (spec.md §4.10).
func (c *ClientSession) SendListRequest() error {
	id, ok := c.ids.Allocate()
	if !ok {
		return errors.New("dispatch: id pool exhausted")
	}
	return c.writeFrame(wsm.New(wsm.OpListRequest, id, wsm.PayloadRaw, 0, 0), nil)
}

// RunUpload waits for u to reach Streaming (the control loop's
// HandleReply drives the Initiated->WorkersOpening->Streaming
// transitions as ACKs arrive), spawns the worker streams, and sends the
// finalize request once every chunk completes.
func (c *ClientSession) RunUpload(ctx context.Context, u *upload.Client) error {
	if err := waitForState(ctx, u, upload.Streaming); err != nil {
		return err
	}

	n := upload.WorkerCount(u.Metadata.FileSize)
	if err := upload.SpawnWorkers(ctx, c.Conn, u, n); err != nil {
		return err
	}

	if err := waitForState(ctx, u, upload.Finishing); err != nil {
		return err
	}
	return c.SendFinalize(u)
}

func waitForState(ctx context.Context, u *upload.Client, target upload.State) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if u.State() >= target {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
