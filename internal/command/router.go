// Package command implements the CommandRouter: turning free-form
// user-issued lines into protocol operations, per spec.md §4.10.
package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/canmi21/anchr/internal/dispatch"
	"github.com/canmi21/anchr/internal/observability"
	"github.com/canmi21/anchr/internal/upload"
)

// Router dispatches parsed command lines against a client session.
type Router struct {
	session *dispatch.ClientSession
	logger  *observability.Logger
}

// NewRouter binds a Router to a live client session.
func NewRouter(session *dispatch.ClientSession, logger *observability.Logger) *Router {
	return &Router{session: session, logger: logger}
}

// Execute parses one input line and runs the corresponding operation.
// Unknown commands are logged and ignored, per spec.md §4.10.
func (r *Router) Execute(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "ping":
		return r.session.SendPing()
	case "drop":
		r.session.DropIDs()
		return nil
	case "rfs":
		return r.executeRFS(ctx, fields[1:])
	default:
		r.logger.Debug("unknown command: " + fields[0])
		return nil
	}
}

func (r *Router) executeRFS(ctx context.Context, args []string) error {
	if len(args) == 0 {
		r.logger.Debug("usage: rfs list | rfs upload <virtual_dir> <local_file>")
		return nil
	}
	switch args[0] {
	case "list":
		return r.session.SendListRequest()
	case "upload":
		if len(args) != 3 {
			r.logger.Debug("usage: rfs upload <virtual_dir> <local_file>")
			return nil
		}
		if r.session.ActiveUpload() != nil {
			return fmt.Errorf("command: an upload is already in flight")
		}
		u, err := r.session.InitiateUpload(args[1], args[2])
		if err != nil {
			r.logger.Error("rfs upload failed", err)
			return err
		}
		go r.driveUpload(ctx, u)
		return nil
	default:
		r.logger.Debug("unknown rfs subcommand: " + args[0])
		return nil
	}
}

// driveUpload waits for the worker-opening handshake to complete (driven
// by the control loop's HandleReply calls) and then spawns the worker
// streams, finally sending the finalize request once every chunk
// completes. It runs as its own goroutine so command input keeps flowing.
func (r *Router) driveUpload(ctx context.Context, u *upload.Client) {
	if err := r.session.RunUpload(ctx, u); err != nil {
		r.logger.Error("upload failed", err)
	}
}
