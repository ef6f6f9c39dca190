package identity

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrUnauthorized means no credential was supplied at all.
	ErrUnauthorized = errors.New("unauthorized: no token provided")
	// ErrForbidden means a credential was supplied but failed verification.
	ErrForbidden = errors.New("forbidden: token verification failed")
)

// Identity is the verified principal behind a connection or mutation.
type Identity struct {
	UserID string
}

// Gate verifies bearer tokens. The signing secret is injected at startup,
// never read from the environment here.
type Gate struct {
	secret []byte
}

func NewGate(secret []byte) *Gate {
	return &Gate{secret: secret}
}

// Authenticate resolves a bearer token to an Identity. Verification failure
// is terminal for the calling connection attempt; there are no retries.
func (g *Gate) Authenticate(tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, ErrUnauthorized
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Only HMAC is accepted; an attacker must not be able to downgrade
		// the algorithm.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return g.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrForbidden, err)
	}
	if !token.Valid {
		return Identity{}, ErrForbidden
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrForbidden
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return Identity{}, fmt.Errorf("%w: subject claim missing", ErrForbidden)
	}
	return Identity{UserID: sub}, nil
}
