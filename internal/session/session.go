package session

import (
	"context"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
)

// Keys of the values kept in a session.
const (
	// KeyUserSubject holds the identity provider subject of the signed-in user.
	KeyUserSubject = "user_subject"
	// KeyFlash holds a one-shot message shown on the next rendered page.
	KeyFlash = "flash"
	// KeyLoginNext holds the local path to return to after login.
	KeyLoginNext = "login_next"
)

// Manager is an interface that abstracts the session management implementation.
// This allows for easier testing and dependency injection.
type Manager interface {
	LoadAndSave(next http.Handler) http.Handler
	Put(ctx context.Context, key string, val interface{})
	GetString(ctx context.Context, key string) string
	PopString(ctx context.Context, key string) string
	RenewToken(ctx context.Context) error
	Destroy(ctx context.Context) error
	Remove(ctx context.Context, key string)
}

var _ Manager = (*scs.SessionManager)(nil)

// Options configures the session cookie.
type Options struct {
	Lifetime time.Duration
	Secure   bool
}

// New creates an scs session manager backed by store.
func New(store scs.Store, opts Options) *scs.SessionManager {
	sm := scs.New()
	sm.Store = store
	sm.Lifetime = opts.Lifetime
	sm.Cookie.Name = "blog_session"
	sm.Cookie.HttpOnly = true
	sm.Cookie.Persist = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = opts.Secure
	return sm
}
