package redis

// Package redis provides Redis-backed adapters for sessions, sign-in flow
// state, and the map payload cache.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/popmap/popmap-api/internal/data/cryptoutil"
	domainauth "github.com/popmap/popmap-api/internal/domain/auth"
	"github.com/popmap/popmap-api/internal/ports"
)

// SessionStore is a Redis-based session store for production use.
// Values are JSON keyed session:{id}; the key TTL is bound to the session
// expiry. The refresh token is encrypted before the record leaves the
// process.
type SessionStore struct {
	client    redis.UniversalClient
	prefix    string
	encryptor cryptoutil.Encryptor
}

// NewSessionStore creates a new Redis-based session store. The encryptor
// protects refresh tokens at rest; pass cryptoutil.NoopEncryptor{} only in
// tests and development.
func NewSessionStore(client redis.UniversalClient, enc cryptoutil.Encryptor) *SessionStore {
	return &SessionStore{
		client:    client,
		prefix:    "session:",
		encryptor: enc,
	}
}

// NewSessionStoreWithPrefix creates a Redis session store with a custom key prefix.
func NewSessionStoreWithPrefix(client redis.UniversalClient, enc cryptoutil.Encryptor, prefix string) *SessionStore {
	return &SessionStore{
		client:    client,
		prefix:    prefix,
		encryptor: enc,
	}
}

func (s *SessionStore) Save(ctx context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}

	if sess.RefreshToken != "" && s.encryptor != nil {
		ct, err := s.encryptor.Encrypt([]byte(sess.RefreshToken))
		if err != nil {
			return fmt.Errorf("encrypt refresh token: %w", err)
		}
		sess.RefreshToken = ct
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	key := s.prefix + sess.ID
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		// Session is already expired, don't save it
		return errors.New("session is expired")
	}

	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *SessionStore) Get(ctx context.Context, id string) (domainauth.Session, error) {
	if id == "" {
		return domainauth.Session{}, ErrNotFound
	}

	key := s.prefix + id
	data, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.Session{}, ErrNotFound
		}
		return domainauth.Session{}, fmt.Errorf("redis get: %w", err)
	}

	var sess domainauth.Session
	if unmarshalErr := json.Unmarshal([]byte(data), &sess); unmarshalErr != nil {
		return domainauth.Session{}, fmt.Errorf("unmarshal session: %w", unmarshalErr)
	}

	if sess.RefreshToken != "" && s.encryptor != nil {
		pt, decErr := s.encryptor.Decrypt(sess.RefreshToken)
		if decErr != nil {
			return domainauth.Session{}, fmt.Errorf("decrypt refresh token: %w", decErr)
		}
		sess.RefreshToken = string(pt)
	}

	// Expiry is enforced by the key TTL. Records still present are returned
	// as stored; invalidation policy lives in the service layer, which
	// consults the sign-out suspension flag before destroying state.
	return sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil // Nothing to delete
	}

	key := s.prefix + id
	return s.client.Del(ctx, key).Err()
}

// ErrNotFound is returned when a session is not found.
var ErrNotFound = ports.ErrSessionNotFound
