// Command anchr-client connects to an anchr server, authenticates, and
// drives a REPL of ping/drop/rfs commands against the connection.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/canmi21/anchr/internal/certutil"
	"github.com/canmi21/anchr/internal/command"
	"github.com/canmi21/anchr/internal/dispatch"
	"github.com/canmi21/anchr/internal/observability"
	"github.com/canmi21/anchr/internal/transport"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:4433", "server QUIC address")
	token := flag.String("token", "", "shared auth token")
	flag.Parse()

	logger := observability.NewLogger("anchr-client", "dev", os.Stdout)
	if *token == "" {
		logger.Fatal("startup", fmt.Errorf("-token is required"))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	conn, err := transport.Dial(ctx, *addr, certutil.ClientTLSConfig())
	if err != nil {
		logger.Fatal("dialing server", err)
	}
	defer conn.Close(0, "client exiting")

	control, err := conn.OpenStream(ctx)
	if err != nil {
		logger.Fatal("opening control stream", err)
	}

	session := dispatch.NewClientSession(conn, control, logger)
	defer session.Close()
	if err := session.Authenticate(*token); err != nil {
		logger.Fatal("authentication", err)
	}
	logger.Info("authenticated")

	go func() {
		if err := session.RunControlLoop(func(res dispatch.ListResult) {
			fmt.Println("volumes:", res.Volumes)
		}); err != nil {
			logger.Warn("control loop ended: " + err.Error())
			cancel()
		}
	}()

	go func() {
		if err := session.WatchKeepAlive(ctx); err != nil {
			logger.Warn("keepalive watchdog tripped: " + err.Error())
			cancel()
		}
	}()

	go func() {
		if err := session.RunPinger(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("pinger stopped: " + err.Error())
			cancel()
		}
	}()

	router := command.NewRouter(session, logger)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if err := router.Execute(ctx, scanner.Text()); err != nil {
			logger.Warn("command failed: " + err.Error())
		}
	}
}
