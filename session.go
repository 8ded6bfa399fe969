package policychat

import "time"

// Identity describes the user a credential was issued to.
type Identity struct {
	UserID    int64
	Subject   string
	Email     string
	ExpiresAt time.Time // zero when the credential carries no expiry
}

// SessionGuard holds the bearer credential used to open streams.
//
// A stream reads the credential once when it connects. Clear is called only
// when the server rejects the credential; it must be safe to call more than
// once.
type SessionGuard interface {
	Token() string
	Authenticated() bool
	Identity() (Identity, bool)
	Clear()
}
