package wsm

import (
	"crypto/rand"
	"sync"
)

// IdPool allocates 8-bit message identifiers, collision-free, for a single
// connection. The reference design scoped this pool process-wide; that is
// a bug under multi-connection usage (spec.md §9), so here every
// connection driver owns its own IdPool instance instead of sharing one
// package-level singleton.
type IdPool struct {
	mu   sync.Mutex
	used map[uint8]struct{}
}

// NewIdPool returns an empty pool ready for a single connection's lifetime.
func NewIdPool() *IdPool {
	return &IdPool{used: make(map[uint8]struct{}, 64)}
}

// Allocate draws a random, currently-unused ID and reserves it. It returns
// (0, false) once all 256 values are in use.
func (p *IdPool) Allocate() (uint8, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.used) >= 256 {
		return 0, false
	}
	var b [1]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			// crypto/rand failures are effectively impossible on supported
			// platforms; fall back to a deterministic scan rather than
			// returning a wrong answer.
			for i := 0; i < 256; i++ {
				id := uint8(i)
				if _, ok := p.used[id]; !ok {
					p.used[id] = struct{}{}
					return id, true
				}
			}
			return 0, false
		}
		id := b[0]
		if _, ok := p.used[id]; !ok {
			p.used[id] = struct{}{}
			return id, true
		}
	}
}

// Release removes id from the pool, reporting whether it was present.
func (p *IdPool) Release(id uint8) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.used[id]; !ok {
		return false
	}
	delete(p.used, id)
	return true
}

// Drain empties the pool and returns its previous contents. Called on
// successful authentication (fresh session) and by the client's "drop"
// command.
func (p *IdPool) Drain() []uint8 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]uint8, 0, len(p.used))
	for id := range p.used {
		out = append(out, id)
	}
	p.used = make(map[uint8]struct{}, 64)
	return out
}

// Size reports the number of currently allocated IDs.
func (p *IdPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.used)
}
