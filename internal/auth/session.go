package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"bidbazaar/internal/models"
)

// Session is a read-only snapshot of the client's authentication state
type Session struct {
	IsAuthenticated bool
	User            *models.User
	Token           string
}

// Store holds the current session. It is created once and passed to its consumers.
type Store struct {
	mu      sync.RWMutex
	session Session
}

// NewStore returns an unauthenticated store
func NewStore() *Store {
	return &Store{}
}

// Login replaces the session with the identity carried by token
func (s *Store) Login(token string) error {
	claims, err := DecodeClaims(token)
	if err != nil {
		return err
	}
	user := claims.User()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = Session{IsAuthenticated: true, User: &user, Token: token}
	return nil
}

// Logout clears the session
func (s *Store) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = Session{}
}

// Snapshot returns a copy of the current session
func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.session
	if snap.User != nil {
		u := *snap.User
		snap.User = &u
	}
	return snap
}

// Token returns the bearer token, empty when logged out
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Token
}

// LoadTokenFile logs in with the token stored at path. A missing file leaves the store logged out.
func (s *Store) LoadTokenFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("auth: read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return nil
	}
	return s.Login(token)
}

// SaveTokenFile writes the current bearer token to path, or removes the file when logged out
func (s *Store) SaveTokenFile(path string) error {
	token := s.Token()
	if token == "" {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("auth: remove token file: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("auth: create token dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("auth: write token file: %w", err)
	}
	return nil
}
