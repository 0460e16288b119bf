package aigen

import "context"

// Session carries the credential attached to generation calls. A session may
// be anonymous: AccessToken set but UserID empty. Anonymous sessions can
// generate content but cannot persist to durable storage.
type Session struct {
	UserID      string
	AccessToken string
}

// Authenticated reports whether the session belongs to a signed-in account.
func (s Session) Authenticated() bool {
	return s.UserID != ""
}

// SessionProvider yields the active session for outgoing calls.
type SessionProvider interface {
	Session(ctx context.Context) (Session, error)
}

// StaticSessionProvider returns a fixed session, useful for tests and for
// callers that manage token refresh elsewhere.
type StaticSessionProvider struct {
	session Session
}

// NewStaticSessionProvider creates a provider that always returns s.
func NewStaticSessionProvider(s Session) *StaticSessionProvider {
	return &StaticSessionProvider{session: s}
}

// Session implements SessionProvider.
func (p *StaticSessionProvider) Session(ctx context.Context) (Session, error) {
	return p.session, nil
}
