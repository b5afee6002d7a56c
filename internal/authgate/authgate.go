// Package authgate implements the one-shot token handshake that gates all
// non-ping, non-auth opcodes on a connection (spec.md §4.3).
package authgate

import (
	"crypto/subtle"

	"github.com/canmi21/anchr/internal/wsm"
)

// State is a connection's authentication status. It only ever moves
// Unauthenticated -> Authenticated; there is no downgrade.
type State int

const (
	Unauthenticated State = iota
	Authenticated
)

const failureReason = "Invalid authentication token"

// Gate holds one connection's auth state and the server's configured
// token to compare against.
type Gate struct {
	token string
	state State
}

// NewGate returns a fresh, unauthenticated gate bound to the server's
// configured shared token.
func NewGate(token string) *Gate {
	return &Gate{token: token, state: Unauthenticated}
}

// State reports the current auth state.
func (g *Gate) State() State { return g.state }

// CheckRequest compares the presented token to the configured one and
// advances state on match. It reports whether the token matched, and a
// failure reason (empty on success) that the dispatcher sends back as the
// reply payload.
func (g *Gate) CheckRequest(presented []byte) (ok bool, reason string) {
	if subtle.ConstantTimeCompare([]byte(g.token), presented) == 1 {
		g.state = Authenticated
		return true, ""
	}
	return false, failureReason
}

// Allowed reports whether opcode is permitted given the current state.
// Only PING and AuthRequest are allowed while Unauthenticated, per
// spec.md §4.3's gate rule.
func (g *Gate) Allowed(op wsm.Opcode) bool {
	if g.state == Authenticated {
		return true
	}
	return op == wsm.OpPing || op == wsm.OpAuthRequest
}
