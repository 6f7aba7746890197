package middleware

import (
	"net/http"
	"net/url"

	"go-blog-app/internal/auth"
	"go-blog-app/internal/logger"

	"github.com/casbin/casbin/v2"
)

// LoginPath is where anonymous visitors of protected routes are sent.
const LoginPath = "/auth/login"

// Authorizer creates a new middleware for authorization.
// It checks the user's permissions using Casbin against the request path
// and method. Anonymous requests that are denied are redirected to the
// login page, with the original location kept in the "next" parameter.
func Authorizer(e casbin.IEnforcer, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := auth.RoleAnonymous
			user := GetUser(r.Context())
			if user != nil {
				subject = user.Subject
			}

			allowed, err := e.Enforce(subject, r.URL.Path, r.Method)
			if err != nil {
				log.Error(err, "Authorization check failed")
				http.Error(w, "Authorization error", http.StatusInternalServerError)
				return
			}

			if !allowed {
				if user == nil {
					http.Redirect(w, r, LoginURL(r.URL.RequestURI()), http.StatusFound)
					return
				}
				log.With(map[string]interface{}{"user": user.ID, "path": r.URL.Path, "method": r.Method}).Warn("Request denied by policy")
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LoginURL returns the login location that returns to next afterwards.
func LoginURL(next string) string {
	return LoginPath + "?next=" + url.QueryEscape(next)
}
