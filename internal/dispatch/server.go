// Package dispatch drives the per-connection read-header/branch-on-opcode
// loop shared by both endpoints (spec.md §4.5), wiring together AuthGate,
// KeepAlive, UploadServer/UploadClient and the Finalizer.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/canmi21/anchr/internal/authgate"
	"github.com/canmi21/anchr/internal/chunkrange"
	"github.com/canmi21/anchr/internal/config"
	"github.com/canmi21/anchr/internal/finalize"
	"github.com/canmi21/anchr/internal/history"
	"github.com/canmi21/anchr/internal/keepalive"
	"github.com/canmi21/anchr/internal/observability"
	"github.com/canmi21/anchr/internal/pathresolve"
	"github.com/canmi21/anchr/internal/transport"
	"github.com/canmi21/anchr/internal/uploadserver"
	"github.com/canmi21/anchr/internal/wsm"
	"go.opentelemetry.io/otel"
)

// outboundFrame is one frame queued for the control stream's writer
// goroutine. spec.md §9: handlers never write the stream directly; they
// push onto a channel drained by a single writer, so cross-stream
// coordination is message-passing rather than a shared send half.
type outboundFrame struct {
	frame   wsm.Frame
	payload []byte
}

// ServerSession holds the state a single connection's dispatcher needs:
// its own IdPool (REDESIGN FLAG: per-connection, not a process singleton),
// its own AuthGate, and its own upload-session registry.
type ServerSession struct {
	Conn     *transport.Connection
	Cfg      *config.Config
	Logger   *observability.Logger
	Metrics  *observability.Metrics
	History  *history.Store // nil disables history recording

	gate     *authgate.Gate
	ids      *wsm.IdPool
	sessions *uploadserver.Registry
	out      chan outboundFrame
}

// NewServerSession builds a fresh dispatcher state for one accepted
// connection.
func NewServerSession(conn *transport.Connection, cfg *config.Config, logger *observability.Logger, metrics *observability.Metrics, hist *history.Store) *ServerSession {
	return &ServerSession{
		Conn:     conn,
		Cfg:      cfg,
		Logger:   logger,
		Metrics:  metrics,
		History:  hist,
		gate:     authgate.NewGate(cfg.AuthToken),
		ids:      wsm.NewIdPool(),
		sessions: uploadserver.NewRegistry(),
		out:      make(chan outboundFrame, 64),
	}
}

// Run drives the connection to completion: accepts the control stream,
// starts its writer and worker-stream acceptor, then loops dispatching
// control-stream frames until a fatal condition or read timeout closes
// the connection.
func (s *ServerSession) Run(ctx context.Context) error {
	control, err := s.Conn.AcceptStream(ctx)
	if err != nil {
		return fmt.Errorf("dispatch: accept control stream: %w", err)
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for of := range s.out {
			if err := wsm.WriteFrame(control, of.frame, of.payload); err != nil {
				return
			}
		}
	}()

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()
	go s.acceptWorkerStreams(workerCtx, control)

	err = s.controlLoop(control)
	close(s.out)
	<-writerDone
	return err
}

func (s *ServerSession) controlLoop(control transport.Stream) error {
	for {
		_ = control.SetReadDeadline(time.Now().Add(keepalive.ServerReadTimeout))

		frame, err := wsm.ReadFrame(control)
		if err != nil {
			return fmt.Errorf("dispatch: control read: %w", err)
		}
		payload, err := wsm.ReadPayload(control, frame.PayloadLen)
		if err != nil {
			return fmt.Errorf("dispatch: control payload: %w", err)
		}

		if !s.gate.Allowed(frame.Opcode) {
			s.sendFatal(frame.MessageID, "Unauthenticated")
			return errors.New("dispatch: unauthenticated access, closing")
		}

		if err := s.dispatch(frame, payload); err != nil {
			s.Logger.Warn("control dispatch error: " + err.Error())
		}
	}
}

func (s *ServerSession) dispatch(frame wsm.Frame, payload []byte) error {
	switch frame.Opcode {
	case wsm.OpPing:
		s.enqueue(wsm.New(wsm.OpPong, frame.MessageID, wsm.PayloadRaw, wsm.ReservedFinal, 0), nil)
		return nil
	case wsm.OpAuthRequest:
		return s.handleAuth(frame, payload)
	case wsm.OpListRequest:
		return s.handleList(frame)
	case wsm.OpUploadInit:
		return s.handleUploadInit(frame, payload)
	case wsm.OpWorkerAlloc:
		return s.handleWorkerAlloc(frame, payload)
	case wsm.OpFinalize:
		return s.handleFinalize(frame, payload)
	default:
		s.Logger.Debug(fmt.Sprintf("unknown opcode 0x%02x, dropping", frame.Opcode))
		return nil
	}
}

func (s *ServerSession) enqueue(f wsm.Frame, payload []byte) {
	select {
	case s.out <- outboundFrame{frame: f, payload: payload}:
	default:
		s.Logger.Warn("outbound queue full, dropping frame")
	}
}

func (s *ServerSession) sendFatal(messageID uint8, reason string) {
	s.enqueue(wsm.New(wsm.OpFatal, messageID, wsm.PayloadRaw, wsm.ReservedFinal, uint32(len(reason))), []byte(reason))
}

func (s *ServerSession) handleAuth(frame wsm.Frame, payload []byte) error {
	ok, reason := s.gate.CheckRequest(payload)
	if ok {
		s.ids.Drain()
		s.enqueue(wsm.New(wsm.OpReply, frame.MessageID, wsm.PayloadRaw, wsm.ReservedFinal, 0), nil)
		s.Logger.AuthSucceeded(s.Conn.RemoteAddr())
		if s.Metrics != nil {
			s.Metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()
		}
		return nil
	}
	s.enqueue(wsm.New(wsm.OpReply, frame.MessageID, wsm.PayloadRaw, wsm.ReservedFinal, uint32(len(reason))), []byte(reason))
	s.Logger.AuthFailed(s.Conn.RemoteAddr(), reason)
	if s.Metrics != nil {
		s.Metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
	}
	return errors.New("auth failed: " + reason)
}

func (s *ServerSession) handleList(frame wsm.Frame) error {
	names := make([]string, 0, len(s.Cfg.Volumes))
	for _, v := range s.Cfg.Volumes {
		names = append(names, v.DevName)
	}
	body, err := json.Marshal(names)
	if err != nil {
		return err
	}
	s.enqueue(wsm.New(wsm.OpListResponse, frame.MessageID, wsm.PayloadJSON, wsm.ReservedFinal, uint32(len(body))), body)
	return nil
}

func (s *ServerSession) handleUploadInit(frame wsm.Frame, payload []byte) error {
	var md uploadserver.Metadata
	if err := json.Unmarshal(payload, &md); err != nil {
		return err
	}

	dir, err := pathresolve.Resolve(s.Cfg, md.TargetDir)
	if err != nil {
		s.sendFatal(frame.MessageID, err.Error())
		return err
	}
	finalPath := filepath.Join(dir, md.FileName)

	outcome, err := uploadserver.Prepare(finalPath, md.FileHash)
	if err != nil {
		s.sendFatal(frame.MessageID, err.Error())
		return err
	}
	s.sessions.Put(md)
	s.Logger.UploadStarted(md.FileHash, md.FileName, md.FileSize, outcome == uploadserver.OutcomeResumable)

	s.enqueue(wsm.New(wsm.OpReply, frame.MessageID, wsm.PayloadRaw, 0, 1), []byte{byte(outcome)})
	return nil
}

func (s *ServerSession) handleWorkerAlloc(frame wsm.Frame, payload []byte) error {
	if len(payload) != 1 {
		return errors.New("dispatch: worker-alloc payload must be 1 byte")
	}
	s.Logger.Debug(fmt.Sprintf("worker alloc requested: %d", payload[0]))
	s.enqueue(wsm.New(wsm.OpReply, frame.MessageID, wsm.PayloadRaw, 0, 0), nil)
	return nil
}

func (s *ServerSession) handleFinalize(frame wsm.Frame, payload []byte) error {
	var md uploadserver.Metadata
	if err := json.Unmarshal(payload, &md); err != nil {
		return err
	}
	dir, err := pathresolve.Resolve(s.Cfg, md.TargetDir)
	if err != nil {
		return err
	}
	finalPath := filepath.Join(dir, md.FileName)

	start := time.Now()
	_, span := otel.Tracer("anchr").Start(context.Background(), "finalize")
	ferr := finalize.Finalize(finalize.Metadata{FinalPath: finalPath, FileSize: md.FileSize, FileHash: md.FileHash})
	span.End()
	s.sessions.Remove(md.FileHash)

	success := ferr == nil
	result := byte(0)
	if success {
		result = 1
		s.Logger.UploadCompleted(md.FileHash, md.FileSize, time.Since(start))
	} else {
		s.Logger.UploadFailed(md.FileHash, ferr.Error())
	}
	if s.Metrics != nil {
		outcome := "failure"
		if success {
			outcome = "success"
		}
		s.Metrics.UploadsTotal.WithLabelValues(outcome).Inc()
		s.Metrics.UploadDuration.Observe(time.Since(start).Seconds())
	}
	if s.History != nil {
		_ = s.History.Put(history.Record{
			FileHash: md.FileHash, FileName: md.FileName, FileSize: md.FileSize,
			Succeeded: success, Duration: time.Since(start), FinishedAt: time.Now(),
		})
	}

	s.enqueue(wsm.New(wsm.OpReply, frame.MessageID, wsm.PayloadRaw, wsm.ReservedFinal, 1), []byte{result})
	return nil
}

// acceptWorkerStreams runs for the lifetime of the connection, accepting
// new bidirectional streams and binding each to a session by its Hello
// frame, per spec.md §4.7.
func (s *ServerSession) acceptWorkerStreams(ctx context.Context, _ transport.Stream) {
	for {
		stream, err := s.Conn.AcceptStream(ctx)
		if err != nil {
			return
		}
		go s.handleWorkerStream(stream)
	}
}

func (s *ServerSession) handleWorkerStream(stream transport.Stream) {
	_ = stream.SetReadDeadline(time.Now().Add(keepalive.WorkerHelloTimeout))

	hello, err := wsm.ReadFrame(stream)
	if err != nil || hello.Opcode != wsm.OpWorkerHello {
		return
	}
	hashBytes, err := wsm.ReadPayload(stream, hello.PayloadLen)
	if err != nil {
		return
	}
	_ = stream.SetReadDeadline(time.Time{}) // Hello succeeded; the chunk loop below is not time-bounded
	fileHash := string(hashBytes)

	md, ok := s.sessions.Get(fileHash)
	if !ok {
		s.Logger.Debug("worker hello: unknown session hash, dropping stream")
		return
	}
	dir, err := pathresolve.Resolve(s.Cfg, md.TargetDir)
	if err != nil {
		return
	}
	finalPath := filepath.Join(dir, md.FileName)

	pending := uploadserver.NewPendingHashes()
	var allChunks []int64
	total := finalize.TotalChunks(md.FileSize)
	for i := int64(0); i < total; i++ {
		allChunks = append(allChunks, i)
	}
	s.Logger.Debug("worker bound to session " + fileHash + ", chunk range: " + chunkrange.Compress(allChunks))

	for {
		f, err := wsm.ReadFrame(stream)
		if err != nil {
			return
		}
		body, err := wsm.ReadPayload(stream, f.PayloadLen)
		if err != nil {
			return
		}

		switch f.Opcode {
		case wsm.OpChunkInquiry:
			chunkID, hash, err := uploadserver.DecodeInquiry(body)
			if err != nil {
				return
			}
			ack, final, err := pending.HandleInquiry(finalPath, chunkID, hash)
			if err != nil {
				return
			}
			reserved := uint8(0)
			if final {
				reserved = wsm.ReservedFinal
				if s.Metrics != nil {
					s.Metrics.ChunksWrittenTotal.WithLabelValues("skipped").Inc()
				}
			}
			_ = wsm.WriteFrame(stream, wsm.New(wsm.OpReply, f.MessageID, wsm.PayloadRaw, reserved, 1), []byte{ack})
		case wsm.OpChunkData:
			chunkID, data, err := uploadserver.DecodeChunkData(body)
			if err != nil {
				return
			}
			ok, err := pending.HandleChunkData(finalPath, chunkID, data)
			if err != nil {
				return
			}
			reserved := uint8(0)
			if ok {
				reserved = wsm.ReservedFinal
				if s.Metrics != nil {
					s.Metrics.ChunksWrittenTotal.WithLabelValues("stored").Inc()
					s.Metrics.UploadBytesTotal.Add(float64(len(data)))
				}
				s.Logger.ChunkStored(fileHash, chunkID)
			}
			_ = wsm.WriteFrame(stream, wsm.New(wsm.OpReply, f.MessageID, wsm.PayloadRaw, reserved, 0), nil)
		default:
			return
		}
	}
}
