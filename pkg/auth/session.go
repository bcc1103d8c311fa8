package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Ad1th/Poster-Website/pkg/config"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

const adminSubject = "admin"

// ErrInvalidSecret is returned by Login when the checker rejects the secret.
var ErrInvalidSecret = errors.New("invalid admin secret")

// Verifier validates a bearer token.
type Verifier interface {
	Verify(ctx context.Context, tokenString string) (jwt.Token, error)
}

// Session is proof of a successful admin login. The zero value is not authenticated.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// Valid reports whether the session carries a token that has not expired at now.
func (s Session) Valid(now time.Time) bool {
	return s.Token != "" && now.Before(s.ExpiresAt)
}

// SessionIssuer exchanges the admin secret for HS256-signed session tokens and
// verifies them on the way back in.
type SessionIssuer struct {
	checker CredentialChecker
	key     []byte
	issuer  string
	ttl     time.Duration
	now     func() time.Time
}

func NewSessionIssuer(checker CredentialChecker, cfg config.AuthConfig) *SessionIssuer {
	return &SessionIssuer{
		checker: checker,
		key:     []byte(cfg.SigningKey),
		issuer:  cfg.Issuer,
		ttl:     cfg.SessionTTL,
		now:     time.Now,
	}
}

// Login checks secret and returns a fresh session.
func (s *SessionIssuer) Login(secret string) (Session, error) {
	if !s.checker.Verify(secret) {
		return Session{}, ErrInvalidSecret
	}
	now := s.now()
	exp := now.Add(s.ttl)
	tok, err := jwt.NewBuilder().
		Issuer(s.issuer).
		Subject(adminSubject).
		JwtID(uuid.NewString()).
		IssuedAt(now).
		Expiration(exp).
		Build()
	if err != nil {
		return Session{}, fmt.Errorf("failed to build session token: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256(), s.key))
	if err != nil {
		return Session{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return Session{Token: string(signed), ExpiresAt: exp}, nil
}

func (s *SessionIssuer) Verify(_ context.Context, tokenString string) (jwt.Token, error) {
	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.HS256(), s.key),
		jwt.WithValidate(true),
		jwt.WithIssuer(s.issuer),
		jwt.WithSubject(adminSubject),
		jwt.WithClock(jwt.ClockFunc(s.now)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}
	return token, nil
}

// Check verifies the token carried by session.
func (s *SessionIssuer) Check(ctx context.Context, session Session) error {
	if session.Token == "" {
		return errors.New("no admin session")
	}
	_, err := s.Verify(ctx, session.Token)
	return err
}
