package identity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JSONCodec stores the identity as plain JSON. Integrity comes from the
// session store alone.
type JSONCodec struct{}

func (JSONCodec) Encode(id Identity) (string, error) {
	b, err := json.Marshal(id)
	if err != nil {
		return "", fmt.Errorf("encode identity: %w", err)
	}
	return string(b), nil
}

func (JSONCodec) Decode(token string) (Identity, error) {
	var id Identity
	if err := json.Unmarshal([]byte(token), &id); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if id.ID == "" {
		return Identity{}, fmt.Errorf("%w: missing id", ErrInvalid)
	}
	return id, nil
}

type identityClaims struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
	Team      string `json:"team"`
	jwt.RegisteredClaims
}

// JWTCodec signs the identity as an HS256 JWT, so a record altered inside
// the store is rejected on decode.
type JWTCodec struct {
	secret []byte
	issuer string
}

func NewJWTCodec(secret, issuer string) *JWTCodec {
	return &JWTCodec{secret: []byte(secret), issuer: issuer}
}

func (c *JWTCodec) Encode(id Identity) (string, error) {
	claims := identityClaims{
		Name:      id.Name,
		Email:     id.Email,
		AvatarURL: id.AvatarURL,
		Team:      id.Team,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:  c.issuer,
			Subject: id.ID,
		},
	}
	if !id.LastLogin.IsZero() {
		claims.IssuedAt = jwt.NewNumericDate(id.LastLogin)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign identity: %w", err)
	}
	return token, nil
}

func (c *JWTCodec) Decode(token string) (Identity, error) {
	var claims identityClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalid)
	}

	var lastLogin time.Time
	if claims.IssuedAt != nil {
		lastLogin = claims.IssuedAt.Time
	}
	return Identity{
		ID:        claims.Subject,
		Name:      claims.Name,
		Email:     claims.Email,
		AvatarURL: claims.AvatarURL,
		Team:      claims.Team,
		LastLogin: lastLogin,
	}, nil
}

var (
	_ Codec = JSONCodec{}
	_ Codec = (*JWTCodec)(nil)
)
