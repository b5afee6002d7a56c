package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/canmi21/anchr/internal/wsm"
)

// ListResult is a decoded list-response payload.
type ListResult struct {
	Volumes []string
}

// RunControlLoop blocks reading frames off the control stream until the
// stream errors (connection closed, read error, or a fatal reply),
// dispatching each to the appropriate handler. onList (may be nil) is
// invoked with a decoded list response.
func (c *ClientSession) RunControlLoop(onList func(ListResult)) error {
	for {
		frame, err := wsm.ReadFrame(c.Control)
		if err != nil {
			return err
		}
		payload, err := wsm.ReadPayload(c.Control, frame.PayloadLen)
		if err != nil {
			return err
		}

		switch frame.Opcode {
		case wsm.OpReply:
			if err := c.HandleReply(frame, payload); err != nil {
				return err
			}
		case wsm.OpPong:
			c.HandlePong(frame.MessageID)
		case wsm.OpListResponse:
			c.ids.Release(frame.MessageID)
			if onList != nil {
				var names []string
				_ = json.Unmarshal(payload, &names)
				onList(ListResult{Volumes: names})
			}
		case wsm.OpFatal:
			return fmt.Errorf("dispatch: server sent fatal: %s", string(payload))
		default:
			c.Logger.Debug("client: unknown opcode, ignoring")
		}
	}
}
