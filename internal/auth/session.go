package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// expirySkew refreshes tokens slightly before they lapse.
const expirySkew = 30 * time.Second

// Refresher obtains a fresh access token.
type Refresher interface {
	Refresh(ctx context.Context) (Token, error)
}

// Session is the client-side authentication context passed to remote invokers.
type Session struct {
	refresher Refresher
	now       func() time.Time

	mu    sync.RWMutex
	token Token
	group singleflight.Group
}

// NewSession creates a Session that has not yet obtained a token.
func NewSession(refresher Refresher) *Session {
	return &Session{refresher: refresher, now: time.Now}
}

// NewSessionWithToken creates a Session seeded with an existing token and a custom clock for testing
func NewSessionWithToken(token Token, refresher Refresher, now func() time.Time) *Session {
	return &Session{refresher: refresher, now: now, token: token}
}

// UserID returns the user the current token was issued to.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token.UserID
}

// Expired reports whether the token is missing or about to lapse.
func (s *Session) Expired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token.Value == "" {
		return true
	}
	return !s.now().Add(expirySkew).Before(s.token.ExpiresAt)
}

// Refresh replaces the token. Concurrent callers share one refresh.
func (s *Session) Refresh(ctx context.Context) error {
	if s.refresher == nil {
		return errors.New("session has no refresher")
	}
	_, err, _ := s.group.Do("refresh", func() (interface{}, error) {
		token, err := s.refresher.Refresh(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.token = token
		s.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("refreshing token: %w", err)
	}
	return nil
}

// Token returns a valid access token, refreshing first if needed.
func (s *Session) Token(ctx context.Context) (string, error) {
	if s.Expired() {
		if err := s.Refresh(ctx); err != nil {
			return "", err
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token.Value, nil
}
