// Package mock provides test doubles for policychat interfaces using function fields.
package mock

import (
	"context"

	"github.com/fwojciec/policychat"
)

// Interface compliance checks.
var (
	_ policychat.Streamer     = (*Streamer)(nil)
	_ policychat.SessionGuard = (*SessionGuard)(nil)
)

// Streamer is a test double for policychat.Streamer.
// Set StreamFn before calling Stream.
type Streamer struct {
	StreamFn func(ctx context.Context, req policychat.ChatRequest) (policychat.Stream, error)
}

// Stream delegates to StreamFn.
func (s *Streamer) Stream(ctx context.Context, req policychat.ChatRequest) (policychat.Stream, error) {
	return s.StreamFn(ctx, req)
}

// SessionGuard is a test double for policychat.SessionGuard.
// TokenFn and AuthenticatedFn panic when nil to catch missing setup.
// IdentityFn and ClearFn are nil-safe.
type SessionGuard struct {
	TokenFn         func() string
	AuthenticatedFn func() bool
	IdentityFn      func() (policychat.Identity, bool)
	ClearFn         func()
}

// Token delegates to TokenFn.
func (g *SessionGuard) Token() string {
	return g.TokenFn()
}

// Authenticated delegates to AuthenticatedFn.
func (g *SessionGuard) Authenticated() bool {
	return g.AuthenticatedFn()
}

// Identity delegates to IdentityFn. Returns false when IdentityFn is nil.
func (g *SessionGuard) Identity() (policychat.Identity, bool) {
	if g.IdentityFn == nil {
		return policychat.Identity{}, false
	}
	return g.IdentityFn()
}

// Clear delegates to ClearFn. No-op when ClearFn is nil.
func (g *SessionGuard) Clear() {
	if g.ClearFn != nil {
		g.ClearFn()
	}
}
