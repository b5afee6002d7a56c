// Package observability provides the ambient logging, metrics, health and
// tracing stack shared by the anchr client and server binaries.
package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog with anchr's domain vocabulary so call sites read
// like event names rather than ad-hoc field lists.
type Logger struct {
	base zerolog.Logger
}

// NewLogger builds a Logger that writes to output, tagging every event
// with the service name, version, and hostname.
func NewLogger(service, version string, output io.Writer) *Logger {
	host, _ := os.Hostname()
	base := zerolog.New(output).With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Str("host", host).
		Logger()
	return &Logger{base: base}
}

// WithConnection returns a child logger tagged with a connection identifier
// (typically the remote address).
func (l *Logger) WithConnection(remote string) *Logger {
	return &Logger{base: l.base.With().Str("conn", remote).Logger()}
}

// WithUpload returns a child logger tagged with an upload's file hash.
func (l *Logger) WithUpload(fileHash string) *Logger {
	return &Logger{base: l.base.With().Str("file_hash", fileHash).Logger()}
}

func (l *Logger) Debug(msg string) { l.base.Debug().Msg(msg) }
func (l *Logger) Info(msg string)  { l.base.Info().Msg(msg) }
func (l *Logger) Warn(msg string)  { l.base.Warn().Msg(msg) }

func (l *Logger) Error(msg string, err error) {
	l.base.Error().Err(err).Msg(msg)
}

func (l *Logger) Fatal(msg string, err error) {
	l.base.Fatal().Err(err).Msg(msg)
}

// ConnectionEstablished logs a new inbound connection.
func (l *Logger) ConnectionEstablished(remote string) {
	l.base.Info().Str("conn", remote).Msg("connection established")
}

// ConnectionClosed logs a connection teardown with its close code/reason.
func (l *Logger) ConnectionClosed(remote string, code uint32, reason string) {
	l.base.Info().Str("conn", remote).Uint32("code", code).Str("reason", reason).Msg("connection closed")
}

// AuthSucceeded logs a successful auth handshake.
func (l *Logger) AuthSucceeded(remote string) {
	l.base.Info().Str("conn", remote).Msg("auth succeeded")
}

// AuthFailed logs a rejected auth handshake.
func (l *Logger) AuthFailed(remote, reason string) {
	l.base.Warn().Str("conn", remote).Str("reason", reason).Msg("auth failed")
}

// UploadStarted logs the beginning of an upload, new or resumed.
func (l *Logger) UploadStarted(fileHash, fileName string, fileSize int64, resumed bool) {
	l.base.Info().
		Str("file_hash", fileHash).
		Str("file_name", fileName).
		Int64("file_size", fileSize).
		Bool("resumed", resumed).
		Msg("upload started")
}

// ChunkStored logs a single chunk write to its temp location.
func (l *Logger) ChunkStored(fileHash string, chunkID int64) {
	l.base.Debug().Str("file_hash", fileHash).Int64("chunk_id", chunkID).Msg("chunk stored")
}

// ChunkSkipped logs that a chunk was already present and hash-verified.
func (l *Logger) ChunkSkipped(fileHash string, chunkID int64) {
	l.base.Debug().Str("file_hash", fileHash).Int64("chunk_id", chunkID).Msg("chunk skipped, already stored")
}

// UploadCompleted logs a successful finalize with elapsed time.
func (l *Logger) UploadCompleted(fileHash string, fileSize int64, elapsed time.Duration) {
	mbps := 0.0
	if elapsed > 0 {
		mbps = (float64(fileSize) / (1024 * 1024)) / elapsed.Seconds()
	}
	l.base.Info().
		Str("file_hash", fileHash).
		Int64("file_size", fileSize).
		Dur("elapsed", elapsed).
		Float64("mbps", mbps).
		Msg("upload completed")
}

// UploadFailed logs a failed finalize or mid-transfer abort.
func (l *Logger) UploadFailed(fileHash, reason string) {
	l.base.Warn().Str("file_hash", fileHash).Str("reason", reason).Msg("upload failed")
}

// PingTimeout logs a client-side keep-alive watchdog trip.
func (l *Logger) PingTimeout(age time.Duration) {
	l.base.Warn().Dur("age", age).Msg("PONG timeout, closing connection")
}
