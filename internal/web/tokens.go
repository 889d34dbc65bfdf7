package web

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL bounds how long a rendered form can be submitted
const DefaultTokenTTL = time.Hour

var errBadToken = errors.New("form token is missing or invalid")

// formTokens issues and checks the hidden token every POST form carries.
// A token is an HS256 JWT whose subject names the form it was issued for.
type formTokens struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func newFormTokens(secret string, ttl time.Duration) *formTokens {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &formTokens{key: []byte(secret), ttl: ttl, now: time.Now}
}

func (f *formTokens) issue(form string) (string, error) {
	now := f.now()
	claims := jwt.RegisteredClaims{
		Subject:   form,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(f.ttl)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(f.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign form token: %w", err)
	}
	return token, nil
}

func (f *formTokens) verify(token, form string) error {
	if token == "" {
		return errBadToken
	}

	_, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		return f.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(form),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(f.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", errBadToken, err)
	}
	return nil
}
