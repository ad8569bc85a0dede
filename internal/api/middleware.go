package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/handlers"
)

// errorHandler turns a panicking handler into a 500 and closes the
// connection.
func (s *GoChatApp) errorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("%v", rec)
			}
			s.log.Printf("panic: %s %s: %v", r.Method, r.URL.Path, err)

			w.Header().Set("Connection", "close")
			s.writeError(w, NewInternalServerError(err))
		}()

		next.ServeHTTP(w, r)
	})
}

// accessLog writes one combined-log-format line per request to the app
// logger's output.
func (s *GoChatApp) accessLog(next http.Handler) http.Handler {
	return handlers.CombinedLoggingHandler(s.log.Writer(), next)
}

// sessionUserId resolves the identity carried by the session cookie.
func (s *GoChatApp) sessionUserId(r *http.Request) (string, error) {
	cookie, err := r.Cookie(tokenCookieKey)
	if err != nil {
		return "", fmt.Errorf("session cookie: %w", err)
	}

	return s.extractUserIdFromToken(cookie.Value)
}

func (s *GoChatApp) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userId, err := s.sessionUserId(r)
		if err != nil {
			if !errors.Is(err, http.ErrNoCookie) {
				s.log.Printf("failed to extract user id from token: %v", err)
			}
			s.writeError(w, NewUnauthorizedError())
			return
		}

		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		next(w, r.WithContext(WithUserId(r.Context(), userId)))
	}
}
