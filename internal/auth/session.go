// Package auth holds the signed-in user and their bearer token. A Session
// is created once at start-up and handed to whoever needs the current user.
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"complaintdesk/backend/internal/apperr"
	"complaintdesk/backend/internal/models"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Authenticator exchanges credentials for a token.
type Authenticator interface {
	Login(ctx context.Context, creds models.Credentials) (*models.LoginResult, error)
}

// TokenSink receives the bearer token whenever it changes.
type TokenSink interface {
	SetToken(token string)
}

// Claims is what the client reads out of a token.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
}

// ParseClaims reads the subject and expiry of token without verifying its
// signature; the backend is the one that verifies.
func ParseClaims(token string) (Claims, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return Claims{}, fmt.Errorf("failed to parse token: %w", err)
	}

	var c Claims
	if sub, err := parsed.Claims.GetSubject(); err == nil {
		c.Subject = sub
	}
	if exp, err := parsed.Claims.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}

// Session is the signed-in state. The zero value is signed out.
type Session struct {
	sink TokenSink

	mu     sync.RWMutex
	user   *models.User
	token  string
	claims Claims
}

// NewSession creates a signed-out session that forwards tokens to sink.
func NewSession(sink TokenSink) *Session {
	return &Session{sink: sink}
}

// Login authenticates and stores the user and token.
func (s *Session) Login(ctx context.Context, a Authenticator, creds models.Credentials) (*models.User, error) {
	res, err := a.Login(ctx, creds)
	if err != nil {
		return nil, err
	}

	user := res.User
	claims, err := ParseClaims(res.AccessToken)
	if err == nil && user.ID == "" {
		user.ID = claims.Subject
	}
	if user.ID == "" {
		return nil, apperr.Server("auth.Login", 0, "login response does not identify the user")
	}

	s.set(&user, res.AccessToken, claims)
	out := user
	return &out, nil
}

// Restore signs in with a saved token. The user id comes from its subject.
func (s *Session) Restore(token string) error {
	const op = "auth.Restore"

	claims, err := ParseClaims(token)
	if err != nil {
		return apperr.Validation(op, err.Error())
	}
	if claims.Subject == "" {
		return apperr.Validation(op, "token has no subject")
	}
	if !claims.ExpiresAt.IsZero() && time.Now().After(claims.ExpiresAt) {
		return apperr.Validation(op, "token has expired")
	}

	s.set(&models.User{ID: claims.Subject}, token, claims)
	return nil
}

func (s *Session) set(user *models.User, token string, claims Claims) {
	s.mu.Lock()
	s.user = user
	s.token = token
	s.claims = claims
	s.mu.Unlock()

	if s.sink != nil {
		s.sink.SetToken(token)
	}
}

// UpdateUser replaces the stored profile, e.g. after a profile edit.
func (s *Session) UpdateUser(user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user != nil {
		s.user = &user
	}
}

// Clear signs out.
func (s *Session) Clear() {
	s.set(nil, "", Claims{})
}

// User returns the signed-in user.
func (s *Session) User() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return models.User{}, false
	}
	return *s.user, true
}

// UserID returns the signed-in user's id, or a Validation error when
// nobody is signed in.
func (s *Session) UserID() (string, error) {
	user, ok := s.User()
	if !ok {
		return "", apperr.Validation("auth.UserID", "not signed in")
	}
	return user.ID, nil
}

// Token returns the bearer token, empty when signed out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// ExpiresAt is the token expiry; zero when unknown.
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.claims.ExpiresAt
}
