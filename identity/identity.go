// Package identity holds the authenticated user profile and the codecs
// that turn it into the opaque string kept in a session.
package identity

import (
	"context"
	"errors"
	"time"
)

var ErrInvalid = errors.New("invalid identity token")

// Identity is the profile returned by the identity provider at login. It is
// stored verbatim in the session and never re-fetched.
type Identity struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatarUrl"`
	Team      string    `json:"team"`
	LastLogin time.Time `json:"lastLogin"`
}

// Public is the partial profile returned by the auth status endpoint.
type Public struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl"`
}

func (i Identity) Public() Public {
	return Public{Name: i.Name, Email: i.Email, AvatarURL: i.AvatarURL}
}

// Codec converts an Identity to and from the string stored in a session.
type Codec interface {
	Encode(id Identity) (string, error)
	Decode(token string) (Identity, error)
}

type contextKey struct{}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(*Identity)
	return id, ok && id != nil
}
