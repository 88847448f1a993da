package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken indicates the bearer token is malformed or badly signed.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired indicates the bearer token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
)

const issuer = "reflecta"

// Manager issues and verifies HS256 bearer tokens for the reference backend.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewManager constructs a Manager signing with secret; tokens live for ttl.
func NewManager(secret string, ttl time.Duration) *Manager {
	if secret == "" {
		panic("tokens: secret must not be empty")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithNowFunc allows tests to override the time source.
func (m *Manager) WithNowFunc(now func() time.Time) {
	m.now = now
}

// Issue creates a signed token for userID.
func (m *Manager) Issue(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("user id must be provided")
	}

	now := m.now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify validates token and returns the user id it was issued to.
func (m *Manager) Verify(token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
