package http

import (
	"context"
	"net/http"
	"time"

	"dotproduct/internal/auth"
	"dotproduct/internal/log"
)

// HeaderCSRFToken carries the session's CSRF token on unsafe requests.
const HeaderCSRFToken = "X-CSRFToken"

type cookieConfig struct {
	session string
	csrf    string
	secure  bool
}

type identityKey struct{}

// identityFrom returns the caller stored by authed. Only valid inside
// authenticated handlers.
func identityFrom(ctx context.Context) auth.Identity {
	id, _ := ctx.Value(identityKey{}).(auth.Identity)
	return id
}

func userID(r *http.Request) int64 {
	return identityFrom(r.Context()).User.ID
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// authed resolves the session cookie, enforces CSRF on unsafe methods and
// hands the caller's identity to next through the request context.
func (s *Server) authed(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if c, err := r.Cookie(s.cookies.session); err == nil {
			token = c.Value
		}

		id, err := s.auth.Authenticate(r.Context(), token)
		if err != nil {
			writeError(w, r, err)
			return
		}

		if s.csrf && !isSafeMethod(r.Method) {
			if err := auth.VerifyCSRF(id.Session, r.Header.Get(HeaderCSRFToken)); err != nil {
				log.FromContext(r.Context()).WithComponent(log.ComponentSecurity).WarnContext(r.Context(), "CSRF check failed",
					log.FieldUserID, id.User.ID,
					log.FieldMethod, r.Method,
					log.FieldPath, r.URL.Path)
				writeError(w, r, err)
				return
			}
		}

		ctx := context.WithValue(r.Context(), identityKey{}, id)
		ctx = log.WithLogger(ctx, log.FromContext(ctx).With(log.FieldUserID, id.User.ID))
		next(w, r.WithContext(ctx))
	})
}

func (s *Server) sessionCookies(token, csrfToken string, expires time.Time) []*http.Cookie {
	return []*http.Cookie{
		{
			Name:     s.cookies.session,
			Value:    token,
			Path:     "/",
			Expires:  expires,
			HttpOnly: true,
			Secure:   s.cookies.secure,
			SameSite: http.SameSiteLaxMode,
		},
		{
			// Readable by the front end so it can echo the token in X-CSRFToken.
			Name:     s.cookies.csrf,
			Value:    csrfToken,
			Path:     "/",
			Expires:  expires,
			Secure:   s.cookies.secure,
			SameSite: http.SameSiteLaxMode,
		},
	}
}

func (s *Server) clearedCookies() []*http.Cookie {
	cookies := s.sessionCookies("", "", time.Unix(0, 0))
	for _, c := range cookies {
		c.MaxAge = -1
	}
	return cookies
}
