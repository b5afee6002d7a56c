package uploadserver

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"os"
	"sync"

	"github.com/canmi21/anchr/internal/finalize"
)

// InquiryAck values, sent as the 1-byte payload of the 0x00 reply to a
// chunk inquiry (spec.md §4.7).
const (
	InquiryLoad uint8 = 1 // client should send chunk data
	InquirySkip uint8 = 2 // chunk already stored and verified; skip
)

// ErrNoPendingHash names chunk data that arrives for a chunk id the worker
// never inquired about (or whose inquiry already completed);
// HandleChunkData reports that case as (false, nil) rather than this error.
var ErrNoPendingHash = errors.New("uploadserver: no pending inquiry for chunk")

// PendingHashes is a per-worker-stream map of chunk_id -> client-reported
// hash, populated by a Load-outcome inquiry and consumed by the matching
// chunk-data frame. Scope is a single worker stream (spec.md §5: "Pending
// chunk hashes (per worker stream): single mutex, contended only by that
// stream").
type PendingHashes struct {
	mu      sync.Mutex
	pending map[int64][]byte
}

// NewPendingHashes returns an empty per-stream pending-hash map.
func NewPendingHashes() *PendingHashes {
	return &PendingHashes{pending: make(map[int64][]byte)}
}

// DecodeInquiry parses the 40-byte chunk-inquiry payload: an 8-byte LE
// chunk id followed by a 32-byte SHA-256 hash.
func DecodeInquiry(payload []byte) (chunkID int64, hash []byte, err error) {
	if len(payload) != 40 {
		return 0, nil, errors.New("uploadserver: chunk inquiry payload must be 40 bytes")
	}
	chunkID = int64(binary.LittleEndian.Uint64(payload[:8]))
	hash = append([]byte(nil), payload[8:40]...)
	return chunkID, hash, nil
}

// HandleInquiry implements spec.md §4.7's chunk-inquiry handler: if the
// chunk is already on disk with a matching hash, it replies Skip (final);
// otherwise it records the expected hash and replies Load (not final).
func (p *PendingHashes) HandleInquiry(finalPath string, chunkID int64, clientHash []byte) (ack uint8, final bool, err error) {
	path := finalize.ChunkPath(finalPath, chunkID)
	existing, err := os.ReadFile(path)
	if err == nil {
		sum := sha256.Sum256(existing)
		if bytesEqual(sum[:], clientHash) {
			return InquirySkip, true, nil
		}
	} else if !os.IsNotExist(err) {
		return 0, false, err
	}

	p.mu.Lock()
	p.pending[chunkID] = clientHash
	p.mu.Unlock()
	return InquiryLoad, false, nil
}

// DecodeChunkData splits a chunk-data payload into its chunk id and raw
// bytes.
func DecodeChunkData(payload []byte) (chunkID int64, data []byte, err error) {
	if len(payload) < 8 {
		return 0, nil, errors.New("uploadserver: chunk data payload too short")
	}
	chunkID = int64(binary.LittleEndian.Uint64(payload[:8]))
	return chunkID, payload[8:], nil
}

// HandleChunkData implements spec.md §4.7's chunk-data handler: looks up
// (and removes) the pending hash for chunkID, verifies the received bytes
// against it, and on match writes the chunk to its staging path. It
// reports whether the write succeeded (the caller sets the reply's final
// flag accordingly: final on success, non-final signals "reload this
// chunk").
func (p *PendingHashes) HandleChunkData(finalPath string, chunkID int64, data []byte) (ok bool, err error) {
	p.mu.Lock()
	expected, found := p.pending[chunkID]
	delete(p.pending, chunkID)
	p.mu.Unlock()

	if !found {
		return false, nil
	}
	sum := sha256.Sum256(data)
	if !bytesEqual(sum[:], expected) {
		return false, nil
	}
	if err := os.MkdirAll(finalize.TmpDir(finalPath), 0o755); err != nil {
		return false, err
	}
	if err := os.WriteFile(finalize.ChunkPath(finalPath, chunkID), data, 0o644); err != nil {
		return false, err
	}
	return true, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
