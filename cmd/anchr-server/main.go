// Command anchr-server runs the anchr file-transfer daemon: it listens
// for QUIC connections, authenticates them against a shared token, and
// serves chunked, resumable uploads into configured volumes.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/canmi21/anchr/internal/certutil"
	"github.com/canmi21/anchr/internal/config"
	"github.com/canmi21/anchr/internal/dispatch"
	"github.com/canmi21/anchr/internal/history"
	"github.com/canmi21/anchr/internal/observability"
	"github.com/canmi21/anchr/internal/ratelimit"
	"github.com/canmi21/anchr/internal/transport"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "", "path to anchr TOML config (defaults to a built-in dev config)")
	historyPath := flag.String("history", "anchr-history.db", "path to the upload-history bbolt file")
	flag.Parse()

	logger := observability.NewLogger("anchr-server", version(), os.Stdout)
	metrics := observability.NewMetrics()
	health := observability.NewChecker(version())

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Fatal("loading config", err)
		}
		cfg = loaded
	} else if err := cfg.Validate(); err != nil {
		logger.Fatal("default config is invalid", err)
	}

	hist, err := history.Open(*historyPath)
	if err != nil {
		logger.Fatal("opening history store", err)
	}
	defer hist.Close()

	health.Register("history", func() (observability.HealthStatus, string) {
		if _, err := hist.List(); err != nil {
			return observability.StatusDegraded, err.Error()
		}
		return observability.StatusOK, ""
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := observability.InitTracing(ctx, "anchr-server")
	if err != nil {
		logger.Warn("tracing init failed: " + err.Error())
	} else {
		defer shutdownTracing(context.Background())
	}

	tlsConf, err := serverTLSConfig(cfg)
	if err != nil {
		logger.Fatal("building TLS config", err)
	}

	listener, err := transport.Listen(cfg.Network.QUICAddr, tlsConf)
	if err != nil {
		logger.Fatal("starting QUIC listener", err)
	}
	defer listener.Close()
	logger.Info("listening on " + listener.Addr())

	go startObservabilityServer(cfg.Network.ObservAddr, health, logger)

	limiter := ratelimit.NewTokenBucket(50, 100)
	acceptLoop(ctx, listener, limiter, cfg, logger, metrics, hist)
}

func acceptLoop(ctx context.Context, listener *transport.Listener, limiter *ratelimit.TokenBucket, cfg *config.Config, logger *observability.Logger, metrics *observability.Metrics, hist *history.Store) {
	for {
		if ctx.Err() != nil {
			return
		}
		limiter.Wait(1)

		conn, err := listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("accept error: " + err.Error())
			continue
		}
		metrics.ConnectionsTotal.WithLabelValues("accepted").Inc()
		metrics.ConnectionsActive.Inc()
		logger.ConnectionEstablished(conn.RemoteAddr())

		go func() {
			defer metrics.ConnectionsActive.Dec()
			session := dispatch.NewServerSession(conn, cfg, logger.WithConnection(conn.RemoteAddr()), metrics, hist)
			if err := session.Run(ctx); err != nil {
				logger.Warn("connection ended: " + err.Error())
			}
			_ = conn.Close(0, "connection closed")
		}()
	}
}

func startObservabilityServer(addr string, health *observability.Checker, logger *observability.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", health.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Warn("observability server stopped: " + err.Error())
	}
}

func serverTLSConfig(cfg *config.Config) (*tls.Config, error) {
	if cfg.CertFile != "" && cfg.KeyFile != "" {
		certPEM, err := os.ReadFile(cfg.CertFile)
		if err != nil {
			return nil, err
		}
		keyPEM, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, err
		}
		return certutil.ServerTLSConfig(certPEM, keyPEM)
	}
	certPEM, keyPEM, err := certutil.GenerateSelfSigned()
	if err != nil {
		return nil, err
	}
	return certutil.ServerTLSConfig(certPEM, keyPEM)
}

func version() string {
	if v := os.Getenv("ANCHR_VERSION"); v != "" {
		return v
	}
	return "dev"
}
