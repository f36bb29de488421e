package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Request headers carrying the session-bound anti-forgery credential.
const (
	HeaderAntiforgeryToken = "X-Antiforgery-Token"
	HeaderSessionID        = "X-Session-Id"
)

const antiforgeryPurpose = "antiforgery"

var (
	ErrTokenInvalid      = errors.New("anti-forgery token invalid")
	ErrTokenSessionBound = errors.New("anti-forgery token bound to different session")
)

type antiforgeryClaims struct {
	SessionID string `json:"sid"`
	Purpose   string `json:"purpose"`
	jwt.RegisteredClaims
}

// Antiforgery mints and verifies session-bound tokens for browser-facing
// callers. Tokens are HS256 JWTs tied to the session id so a stolen token is
// useless on another session.
type Antiforgery struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewAntiforgery(secret, issuer string, ttl time.Duration) (*Antiforgery, error) {
	if secret == "" {
		return nil, errors.New("anti-forgery secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("anti-forgery ttl must be positive")
	}
	return &Antiforgery{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Mint issues a token bound to the session id.
func (a *Antiforgery) Mint(sessionID string) (string, error) {
	if sessionID == "" {
		return "", errors.New("session id is required")
	}
	now := a.now()
	claims := antiforgeryClaims{
		SessionID: sessionID,
		Purpose:   antiforgeryPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("signing anti-forgery token: %w", err)
	}
	return signed, nil
}

// Verify checks the token signature, expiry and session binding.
func (a *Antiforgery) Verify(tokenString, sessionID string) error {
	claims := &antiforgeryClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(a.issuer), jwt.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return ErrTokenInvalid
	}
	if claims.Purpose != antiforgeryPurpose {
		return ErrTokenInvalid
	}
	if claims.SessionID == "" || claims.SessionID != sessionID {
		return ErrTokenSessionBound
	}
	return nil
}
