// Package auth verifies bearer credentials issued by the external identity
// provider. The provider itself is opaque to the rest of the server: all
// that crosses the boundary is a verified subject id and an optional email.
package auth

import (
	"time"

	"github.com/dmitrijs2005/voicejournal/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the verified identity extracted from a bearer token.
type Claims struct {
	// Subject is the provider's stable identifier for the principal.
	Subject string
	// Email may be empty if the provider did not include it.
	Email string
}

// Verifier checks a bearer credential and yields the verified claims.
type Verifier interface {
	Verify(tokenString string) (*Claims, error)
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// JWTVerifier verifies HS256-signed JWTs against a shared secret.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{secret: secret}
}

// Verify parses and validates the token. Any parse or signature failure, a
// missing subject included, yields common.ErrInvalidToken; the caller maps
// that to 401 without leaking detail.
func (v *JWTVerifier) Verify(tokenString string) (*Claims, error) {
	claims := &tokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, common.ErrInvalidToken
	}
	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return &Claims{Subject: claims.Subject, Email: claims.Email}, nil
}

// GenerateToken mints an HS256 token for the given subject. The server never
// issues tokens in production (that is the identity provider's job); this
// exists for local development and tests.
func GenerateToken(subject, email string, secret []byte, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
		},
		Email: email,
	})

	return token.SignedString(secret)
}
