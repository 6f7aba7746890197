package handler

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
	"net/http"
	"strings"
	"time"

	"go-blog-app/internal/auth"
	"go-blog-app/internal/data"
	"go-blog-app/internal/logger"
	"go-blog-app/internal/session"

	"github.com/casbin/casbin/v2"
	"golang.org/x/oauth2"
)

// stateCookie carries the OAuth2 state between login and callback.
const stateCookie = "oauth_state"

// Authenticator is the part of auth.Authenticator the handlers use.
type Authenticator interface {
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
	Login(ctx context.Context, code string) (*auth.Claims, error)
}

// UserStore creates or refreshes users on login.
type UserStore interface {
	Upsert(ctx context.Context, user *data.User) error
}

// AuthHandler holds the dependencies for the authentication handlers.
type AuthHandler struct {
	auth        Authenticator
	users       UserStore
	session     session.Manager
	enforcer    casbin.IEnforcer
	staffEmails map[string]bool
	log         logger.Logger
}

// NewAuthHandler creates a new AuthHandler. Users whose email is listed in
// staffEmails are promoted to staff when they sign in.
func NewAuthHandler(a Authenticator, users UserStore, sm session.Manager, e casbin.IEnforcer, staffEmails []string, log logger.Logger) *AuthHandler {
	staff := make(map[string]bool, len(staffEmails))
	for _, email := range staffEmails {
		staff[strings.ToLower(strings.TrimSpace(email))] = true
	}
	return &AuthHandler{auth: a, users: users, session: sm, enforcer: e, staffEmails: staff, log: log}
}

// handleLogin redirects the user to the OIDC provider to log in.
// It uses a random 'state' string for CSRF protection and remembers the
// local page to return to.
func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := randString(16)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	// Store the state in a short-lived cookie to verify on callback.
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(10 * time.Minute / time.Second),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	h.session.Put(r.Context(), session.KeyLoginNext, safeNext(r.URL.Query().Get("next")))
	http.Redirect(w, r, h.auth.AuthCodeURL(state), http.StatusFound)
}

// handleCallback is the redirect URL for the OIDC provider. It verifies the
// login, records the user and starts an authenticated session.
func (h *AuthHandler) handleCallback(w http.ResponseWriter, r *http.Request) {
	// Verify the state parameter to prevent CSRF attacks.
	cookie, err := r.Cookie(stateCookie)
	if err != nil {
		http.Error(w, "state cookie not found", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != cookie.Value {
		http.Error(w, "state did not match", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	claims, err := h.auth.Login(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.log.Error(err, "OIDC login failed")
		http.Error(w, "Login failed", http.StatusUnauthorized)
		return
	}

	user := &data.User{
		Subject:  claims.Subject,
		Username: claims.Username(),
		Email:    claims.Email,
		IsStaff:  h.staffEmails[strings.ToLower(claims.Email)],
	}
	if err := h.users.Upsert(r.Context(), user); err != nil {
		h.log.Error(err, "Failed to save user")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if err := auth.AssignRoles(h.enforcer, user); err != nil {
		h.log.Error(err, "Failed to assign roles")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	next := safeNext(h.session.PopString(r.Context(), session.KeyLoginNext))
	// A new token on privilege change prevents session fixation.
	if err := h.session.RenewToken(r.Context()); err != nil {
		h.log.Error(err, "Failed to renew session token")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	h.session.Put(r.Context(), session.KeyUserSubject, user.Subject)
	h.log.With(map[string]interface{}{"user": user.ID, "staff": user.IsStaff}).Info("User signed in")

	http.Redirect(w, r, next, http.StatusFound)
}

// handleLogout ends the session.
func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Destroy(r.Context()); err != nil {
		h.log.Error(err, "Failed to destroy session")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// safeNext keeps only local absolute paths, so login cannot be used as an
// open redirect.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

// randString is a helper function to generate a random string for the 'state' parameter.
func randString(nByte int) (string, error) {
	b := make([]byte, nByte)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
