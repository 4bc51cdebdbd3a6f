package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/SghaierFiras/armada-analytics-hub-sub001/cryptoutil"
	"github.com/SghaierFiras/armada-analytics-hub-sub001/identity"
	"github.com/SghaierFiras/armada-analytics-hub-sub001/store"
)

const (
	CookieName  = "armada_session"
	DefaultTTL  = 7 * 24 * time.Hour
	identityKey = "identity"
)

var ErrStoreUnavailable = errors.New("session store unavailable")

// Session is a request's view of a stored record. The token is the raw
// cookie value; the record is keyed by its hash.
type Session struct {
	token string
	rec   *store.Record
	isNew bool
	// stale is the id named by a verified cookie whose record could not be
	// read because the store failed.
	stale string
}

func (s *Session) Get(key string) (string, bool) {
	v, ok := s.rec.Values[key]
	return v, ok
}

func (s *Session) Set(key, value string) {
	s.rec.Values[key] = value
}

func (s *Session) Delete(key string) {
	delete(s.rec.Values, key)
}

// IsNew reports whether the session has not been issued to the client yet.
func (s *Session) IsNew() bool { return s.isNew }

func (s *Session) ExpiresAt() time.Time { return s.rec.ExpiresAt }

type Options struct {
	Secret []byte
	TTL    time.Duration
	Secure bool
}

type Manager struct {
	store  store.Store
	codec  identity.Codec
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time

	mu sync.Mutex
	// revoked holds ids whose deletion failed on Destroy, until their
	// records would have expired anyway.
	revoked map[string]time.Time
}

func NewManager(st store.Store, codec identity.Codec, opts Options) *Manager {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		store:   st,
		codec:   codec,
		secret:  opts.Secret,
		ttl:     ttl,
		secure:  opts.Secure,
		now:     time.Now,
		revoked: map[string]time.Time{},
	}
}

func (m *Manager) newSession() (*Session, error) {
	token, err := cryptoutil.Random()
	if err != nil {
		return nil, err
	}
	now := m.now().Truncate(time.Second)
	return &Session{
		token: token,
		rec: &store.Record{
			ID:        cryptoutil.ID(token),
			CreatedAt: now,
			ExpiresAt: now.Add(m.ttl),
			Values:    map[string]string{},
		},
		isNew: true,
	}, nil
}

// Load returns the session bound to the request cookie, or a fresh unsaved
// session when the cookie is missing, tampered, unknown or expired. When the
// store fails, a fresh session is returned along with an error wrapping
// ErrStoreUnavailable.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	fresh, err := m.newSession()
	if err != nil {
		return nil, err
	}

	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return fresh, nil
	}
	token, ok := cryptoutil.Verify(m.secret, cookie.Value)
	if !ok {
		return fresh, nil
	}

	ctx := r.Context()
	id := cryptoutil.ID(token)
	if m.isRevoked(id) {
		if err := m.store.Delete(ctx, id); err == nil {
			m.unrevoke(id)
		}
		return fresh, nil
	}

	rec, err := m.store.Get(ctx, id)
	if errors.Is(err, store.ErrSessionNotFound) {
		return fresh, nil
	}
	if err != nil {
		fresh.stale = id
		return fresh, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if rec.Expired(m.now()) {
		if err := m.store.Delete(ctx, rec.ID); err != nil {
			slog.WarnContext(ctx, "error deleting expired session", "err", err)
		}
		return fresh, nil
	}
	if rec.Values == nil {
		rec.Values = map[string]string{}
	}
	return &Session{token: token, rec: rec}, nil
}

// Save persists the session. The cookie is only written when the session is
// first issued; its lifetime is fixed from then on.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if err := m.store.Set(ctx, s.rec); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if s.isNew {
		m.setCookie(w, s)
		s.isNew = false
	}
	return nil
}

// Renew moves the payload to a new identifier with a fresh expiry and drops
// the old record. The caller saves the session afterwards.
func (m *Manager) Renew(ctx context.Context, s *Session) error {
	oldID, wasNew := s.rec.ID, s.isNew

	next, err := m.newSession()
	if err != nil {
		return err
	}
	next.rec.Values = s.rec.Values
	*s = *next

	if wasNew {
		return nil
	}
	if err := m.store.Delete(ctx, oldID); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// Destroy clears the cookie and deletes the stored record. The cookie is
// cleared even when the store fails; the id is then refused by Load until
// the record can be deleted or would have expired.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, s *Session) error {
	m.clearCookie(w)
	if s == nil {
		return nil
	}
	s.rec.Values = map[string]string{}

	id := s.stale
	if !s.isNew {
		id = s.rec.ID
	}
	if id == "" {
		return nil
	}
	if err := m.store.Delete(ctx, id); err != nil {
		m.revoke(id)
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

func (m *Manager) revoke(id string) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, until := range m.revoked {
		if now.After(until) {
			delete(m.revoked, k)
		}
	}
	m.revoked[id] = now.Add(m.ttl)
}

func (m *Manager) isRevoked(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.revoked[id]
	return ok && !m.now().After(until)
}

func (m *Manager) unrevoke(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.revoked, id)
}

// Identity decodes the identity held by the session. It returns nil without
// error when the session holds none.
func (m *Manager) Identity(s *Session) (*identity.Identity, error) {
	raw, ok := s.Get(identityKey)
	if !ok || raw == "" {
		return nil, nil
	}
	id, err := m.codec.Decode(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (m *Manager) SetIdentity(s *Session, id identity.Identity) error {
	raw, err := m.codec.Encode(id)
	if err != nil {
		return err
	}
	s.Set(identityKey, raw)
	return nil
}

func (m *Manager) ClearIdentity(s *Session) {
	s.Delete(identityKey)
}

func (m *Manager) setCookie(w http.ResponseWriter, s *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    cryptoutil.Sign(m.secret, s.token),
		HttpOnly: true,
		Path:     "/",
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(m.ttl.Seconds()),
		Expires:  s.rec.ExpiresAt,
	})
}

func (m *Manager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		HttpOnly: true,
		Path:     "/",
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

type contextKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok && s != nil
}
