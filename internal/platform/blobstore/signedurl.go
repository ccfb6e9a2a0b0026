package blobstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// URLSigner mints and verifies short-lived HMAC tokens that authorize
// viewing a single blob path. Tokens default to a 60 second lifetime; a
// document opened for viewing must be re-requested once the token lapses.
type URLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type pathClaims struct {
	Path string `json:"path"`
	jwt.RegisteredClaims
}

// NewURLSigner creates a URLSigner. A non-positive ttl falls back to 60s.
func NewURLSigner(secret []byte, ttl time.Duration) *URLSigner {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &URLSigner{secret: secret, ttl: ttl, now: time.Now}
}

// Sign returns a token granting read access to the given blob path until the
// TTL elapses.
func (s *URLSigner) Sign(path string) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}
	now := s.now()
	claims := pathClaims{
		Path: path,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign viewing token: %w", err)
	}
	return signed, nil
}

// Verify checks the token signature and expiry and returns the blob path it
// grants access to.
func (s *URLSigner) Verify(tokenString string) (string, error) {
	claims := &pathClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		return "", fmt.Errorf("verify viewing token: %w", err)
	}
	if !token.Valid || claims.Path == "" {
		return "", errors.New("invalid viewing token")
	}
	return claims.Path, nil
}
