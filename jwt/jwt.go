// Package jwt implements [policychat.SessionGuard] for bearer credentials
// issued as JSON Web Tokens.
//
// The guard only reads claims: the backend remains the authority on whether a
// token is valid. When an HMAC secret is configured (local development), the
// signature is verified too.
package jwt

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/fwojciec/policychat"
	"github.com/golang-jwt/jwt/v5"
)

// Interface compliance check.
var _ policychat.SessionGuard = (*Guard)(nil)

// Guard holds one bearer token and the identity decoded from its claims.
// It is safe for concurrent use.
type Guard struct {
	secret []byte
	now    func() time.Time

	mu       sync.Mutex
	token    string
	identity policychat.Identity
}

// Option configures a [Guard].
type Option func(*Guard)

// WithSecret verifies HS256/384/512 signatures with secret.
func WithSecret(secret []byte) Option {
	return func(g *Guard) { g.secret = secret }
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// New creates a Guard. It starts without a credential; call Set to log in.
func New(opts ...Option) *Guard {
	g := &Guard{now: time.Now}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Set replaces the credential. A token that cannot be parsed, or that fails
// verification when a secret is configured, is rejected and the previous
// credential is kept.
func (g *Guard) Set(token string) error {
	id, err := g.parse(token)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.token = token
	g.identity = id
	return nil
}

// Token returns the current credential, or "" after Clear.
func (g *Guard) Token() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.token
}

// Authenticated reports whether a credential is held and not yet expired.
func (g *Guard) Authenticated() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.token == "" {
		return false
	}
	exp := g.identity.ExpiresAt
	return exp.IsZero() || g.now().Before(exp)
}

// Identity returns the identity of the current credential.
func (g *Guard) Identity() (policychat.Identity, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.token == "" {
		return policychat.Identity{}, false
	}
	return g.identity, true
}

// Clear drops the credential. It is safe to call repeatedly.
func (g *Guard) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.token = ""
	g.identity = policychat.Identity{}
}

func (g *Guard) parse(token string) (policychat.Identity, error) {
	if token == "" {
		return policychat.Identity{}, fmt.Errorf("jwt: empty token: %w", policychat.ErrUnauthenticated)
	}

	claims := jwt.MapClaims{}
	var err error
	if g.secret != nil {
		// Expiry is enforced by Authenticated against the injected clock.
		parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}), jwt.WithoutClaimsValidation())
		_, err = parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
			return g.secret, nil
		})
	} else {
		_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	}
	if err != nil {
		return policychat.Identity{}, fmt.Errorf("jwt: %v: %w", err, policychat.ErrUnauthenticated)
	}

	id := policychat.Identity{}
	id.Subject, _ = claims.GetSubject()
	if email, ok := claims["email"].(string); ok {
		id.Email = email
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}
	id.UserID = userID(claims["user_id"])
	if id.UserID == 0 {
		id.UserID = userID(id.Subject)
	}
	return id, nil
}

// userID accepts numeric claims and numeric strings.
func userID(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case string:
		id, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0
		}
		return id
	default:
		return 0
	}
}
