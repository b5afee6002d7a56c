// Package uploadserver implements the server side of the chunked upload
// protocol: session registry, the init-time preparation decision
// (Prepare), and the chunk inquiry/data handlers used by each worker
// stream, per spec.md §4.7. The frame loops that call them live in
// internal/dispatch.
package uploadserver

import (
	"errors"
	"sync"
)

// Metadata mirrors the wire upload-metadata payload (spec.md §3).
type Metadata struct {
	TargetDir string `json:"target_dir"`
	FileName  string `json:"file_name"`
	FileSize  int64  `json:"file_size"`
	FileHash  string `json:"file_hash"`
}

// ErrSessionNotFound names a lookup of an unknown hash; Registry.Get
// reports a miss through its boolean result rather than this error.
var ErrSessionNotFound = errors.New("uploadserver: no session for file hash")

// Registry is a per-connection map from file_hash to in-progress upload
// metadata, created at initiation and removed at finalization, per
// spec.md §3's Server upload session data model.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Metadata
}

// NewRegistry returns an empty per-connection session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]Metadata)}
}

// Put registers a session by its file hash.
func (r *Registry) Put(md Metadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[md.FileHash] = md
}

// Get looks up a session by file hash.
func (r *Registry) Get(fileHash string) (Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	md, ok := r.sessions[fileHash]
	return md, ok
}

// Remove deletes a session, called at finalization regardless of outcome.
func (r *Registry) Remove(fileHash string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, fileHash)
}
