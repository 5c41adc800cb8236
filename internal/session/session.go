package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/UnknownOlympus/hotelgate/internal/storage"
)

const (
	keyPrefix     = "sessions/"
	schemaVersion = 1
)

var (
	// ErrNoSession is returned when no session is stored for a token.
	ErrNoSession = errors.New("no active session")
	// ErrSchemaVersion is returned for records written with an unknown schema version.
	ErrSchemaVersion = errors.New("unsupported session record version")
	// ErrEmptyToken is returned when saving a session without a token.
	ErrEmptyToken = errors.New("session token is empty")
)

// Session is the signed-in dashboard user together with the backend bearer token.
type Session struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Token    string `json:"-"`
}

// HasRole reports whether the session role is one of roles, ignoring case.
func (s Session) HasRole(roles ...string) bool {
	return slices.ContainsFunc(roles, func(role string) bool {
		return strings.EqualFold(role, s.Role)
	})
}

// record is the persisted shape; the token and the user profile are written together.
type record struct {
	Version   int     `json:"version"`
	AuthToken string  `json:"auth_token"`
	User      Session `json:"user"`
}

// Repository keeps sessions in a storage.Store keyed by token.
type Repository struct {
	store storage.Store
}

func NewRepository(store storage.Store) *Repository {
	return &Repository{store: store}
}

// Save writes the session under its token.
func (r *Repository) Save(ctx context.Context, sess Session) error {
	if sess.Token == "" {
		return ErrEmptyToken
	}
	raw, err := json.Marshal(record{Version: schemaVersion, AuthToken: sess.Token, User: sess})
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err = r.store.Put(ctx, keyPrefix+sess.Token, raw); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Get loads the session of token. Token and profile always come back as a pair.
func (r *Repository) Get(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrNoSession
	}
	raw, err := r.store.Get(ctx, keyPrefix+token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Session{}, ErrNoSession
		}
		return Session{}, fmt.Errorf("failed to load session: %w", err)
	}

	var rec record
	if err = json.Unmarshal(raw, &rec); err != nil {
		return Session{}, fmt.Errorf("failed to decode session: %w", err)
	}
	if rec.Version != schemaVersion {
		return Session{}, fmt.Errorf("%w: %d", ErrSchemaVersion, rec.Version)
	}
	if rec.AuthToken != token {
		return Session{}, ErrNoSession
	}

	sess := rec.User
	sess.Token = rec.AuthToken
	return sess, nil
}

// Clear removes the session of token.
func (r *Repository) Clear(ctx context.Context, token string) error {
	if err := r.store.Delete(ctx, keyPrefix+token); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
