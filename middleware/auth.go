package middleware

import (
	"log/slog"
	"net/http"

	"github.com/SghaierFiras/armada-analytics-hub-sub001/herr"
	"github.com/SghaierFiras/armada-analytics-hub-sub001/identity"
	"github.com/SghaierFiras/armada-analytics-hub-sub001/route"
	"github.com/SghaierFiras/armada-analytics-hub-sub001/session"
)

// Session loads the request's session into the context. A store outage is
// logged and the request continues with a fresh, unauthenticated session.
func Session(sm *session.Manager) route.Step {
	return func(w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
		s, err := sm.Load(r)
		if s == nil {
			herr.Wrap(func(w http.ResponseWriter, r *http.Request) *herr.Error {
				return herr.Internal(err, "creating session")
			}).ServeHTTP(w, r)
			return r, false
		}
		if err != nil {
			slog.WarnContext(r.Context(), "error loading session", "err", err)
		}
		return r.WithContext(session.WithSession(r.Context(), s)), true
	}
}

// Identity attaches the session's identity to the context when it has one.
// An identity that fails to decode is treated as absent.
func Identity(sm *session.Manager) route.Step {
	return func(w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
		s, ok := session.FromContext(r.Context())
		if !ok {
			return r, true
		}
		id, err := sm.Identity(s)
		if err != nil {
			slog.WarnContext(r.Context(), "error decoding session identity", "err", err)
			return r, true
		}
		if id == nil {
			return r, true
		}
		return r.WithContext(identity.WithIdentity(r.Context(), id)), true
	}
}

// Protect redirects requests without an identity to loginPath. The
// redirect carries no body and the session is left untouched.
func Protect(loginPath string) route.Step {
	return func(w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
		if _, ok := identity.FromContext(r.Context()); ok {
			return r, true
		}
		w.Header().Set("Location", loginPath)
		w.WriteHeader(http.StatusFound)
		return r, false
	}
}
