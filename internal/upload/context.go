package upload

import (
	"sync"
	"sync/atomic"
	"time"
)

// State is a step in the client upload state machine (spec.md §4.6).
type State int

const (
	Initiated State = iota
	WorkersOpening
	Streaming
	Finishing
)

func (s State) String() string {
	switch s {
	case Initiated:
		return "Initiated"
	case WorkersOpening:
		return "WorkersOpening"
	case Streaming:
		return "Streaming"
	case Finishing:
		return "Finishing"
	default:
		return "Unknown"
	}
}

// Metadata is the wire upload-metadata payload (spec.md §3).
type Metadata struct {
	TargetDir string `json:"target_dir"`
	FileName  string `json:"file_name"`
	FileSize  int64  `json:"file_size"`
	FileHash  string `json:"file_hash"`
}

// MinWorkers and MaxWorkers bound the worker-count formula.
const (
	MinWorkers = 1
	MaxWorkers = 32
)

// WorkerCount computes N = clamp(ceil(file_size / ChunkSize), 1, 32), per
// spec.md §4.6 (the spec's formula, not the original implementation's
// 1 MiB / max-16 variant — spec.md wins per its own §9 resolution).
func WorkerCount(fileSize int64) int {
	n := TotalChunks(fileSize)
	if n < MinWorkers {
		n = MinWorkers
	}
	if n > MaxWorkers {
		n = MaxWorkers
	}
	return int(n)
}

// Client is the owned, per-connection upload state machine. spec.md §9
// requires this be modeled as an owned state machine held by the
// connection driver rather than a shared mutable cell with a
// double-lookup-and-copy pattern; handlers are given *Client directly.
// At most one Client exists per connection at a time (spec.md §3
// invariant).
type Client struct {
	Metadata      Metadata
	LocalFilePath string
	MessageID     uint8
	StartTime     time.Time

	mu    sync.Mutex
	state State

	totalChunks     int64
	completedChunks int64 // atomic

	chunkQueue chan int64
}

// NewClient builds a fresh upload context in state Initiated.
func NewClient(md Metadata, localFilePath string, messageID uint8) *Client {
	return &Client{
		Metadata:      md,
		LocalFilePath: localFilePath,
		MessageID:     messageID,
		StartTime:     time.Now(),
		state:         Initiated,
	}
}

// State returns the current state under lock.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetState advances the state. Transitions are strictly linear
// (Initiated -> WorkersOpening -> Streaming -> Finishing); callers drive
// the sequence, this just records it.
func (c *Client) SetState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// BeginStreaming fills the chunk queue with every index in
// [0, total_chunks) and transitions to Streaming. The queue is drained by
// worker tasks and never repopulated except for the single-chunk
// requeue-on-mismatch case (spec.md §9).
func (c *Client) BeginStreaming(totalChunks int64) {
	c.mu.Lock()
	c.totalChunks = totalChunks
	c.state = Streaming
	c.mu.Unlock()

	c.chunkQueue = make(chan int64, totalChunks)
	for i := int64(0); i < totalChunks; i++ {
		c.chunkQueue <- i
	}
}

// PopChunk pops the next pending chunk id, or ok=false if the queue is
// drained and closed.
func (c *Client) PopChunk() (id int64, ok bool) {
	id, ok = <-c.chunkQueue
	return id, ok
}

// Requeue pushes a chunk id back onto the queue. spec.md §9: the
// reference design silently drops a chunk whose data-ack mismatches;
// here the worker loop must requeue it before moving on so it is not
// lost.
func (c *Client) Requeue(id int64) {
	c.chunkQueue <- id
}

// CompleteChunk atomically increments the completed-chunk counter and
// reports whether every chunk is now done (total_chunks reached), in
// which case it closes the queue itself and the caller should transition
// to Finishing.
func (c *Client) CompleteChunk() (done bool) {
	n := atomic.AddInt64(&c.completedChunks, 1)
	c.mu.Lock()
	total := c.totalChunks
	c.mu.Unlock()
	if n >= total {
		close(c.chunkQueue)
		return true
	}
	return false
}

// CompletedChunks reports the current completed-chunk count.
func (c *Client) CompletedChunks() int64 {
	return atomic.LoadInt64(&c.completedChunks)
}

// TotalChunks reports the upload's total chunk count.
func (c *Client) TotalChunks() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalChunks
}
