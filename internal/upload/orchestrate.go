package upload

import (
	"context"

	"github.com/canmi21/anchr/internal/transport"
	"golang.org/x/sync/errgroup"
)

// SpawnWorkers opens n bidirectional worker streams on conn and runs
// RunWorker on each concurrently, returning the first worker error (if
// any) once all have exited. Workers share c's chunk queue; a worker that
// fails returns its error without requeueing the chunk it had popped, so
// that chunk is not picked up by the others.
func SpawnWorkers(ctx context.Context, conn *transport.Connection, c *Client, n int) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			stream, err := conn.OpenStream(ctx)
			if err != nil {
				return err
			}
			return RunWorker(stream, c)
		})
	}
	return g.Wait()
}
