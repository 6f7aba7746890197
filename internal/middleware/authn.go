package middleware

import (
	"context"
	"errors"
	"net/http"

	"go-blog-app/internal/data"
	"go-blog-app/internal/logger"
	"go-blog-app/internal/session"
)

// UserLoader finds a user by identity provider subject.
type UserLoader interface {
	GetBySubject(ctx context.Context, subject string) (*data.User, error)
}

// Authenticate loads the user named by the session, if any, into the
// request context. A subject with no matching user is dropped from the
// session and the request continues anonymously.
func Authenticate(sm session.Manager, users UserLoader, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := sm.GetString(r.Context(), session.KeyUserSubject)
			if subject == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.GetBySubject(r.Context(), subject)
			switch {
			case errors.Is(err, data.ErrNotFound):
				sm.Remove(r.Context(), session.KeyUserSubject)
			case err != nil:
				log.Error(err, "Failed to load session user")
			default:
				r = r.WithContext(SetUser(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}
