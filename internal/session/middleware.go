package session

import (
	"context"
	"net/http"

	"sales-dashboard/internal/services"
)

type contextKey struct{}

type Session struct {
	ID        string
	Analytics *services.Analytics
}

// Middleware attaches the caller's session to the request context, creating
// one and setting the cookie when the request carries none or an expired one.
func (s *Store) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sess *Session
		if c, err := r.Cookie(CookieName); err == nil {
			if a, ok := s.Get(c.Value); ok {
				sess = &Session{ID: c.Value, Analytics: a}
			}
		}

		if sess == nil {
			id, a := s.Create(r.Context())
			sess = &Session{ID: id, Analytics: a}
			http.SetCookie(w, &http.Cookie{
				Name:     CookieName,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				Secure:   s.config.CookieSecure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), sess)))
	})
}

func NewContext(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(contextKey{}).(*Session)
	return sess, ok
}
