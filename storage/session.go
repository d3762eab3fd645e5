package storage

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"
	"golang.org/x/crypto/nacl/secretbox"

	"pathlog/api"
	"pathlog/models"
)

const sessionsBucket = "Sessions"

// Session is the durable record of who is logged in for one browser
// session: the backend user and its bearer token. Authenticated means
// both halves are present; there is no separate flag to drift out of
// sync.
type Session struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	CreatedAt time.Time    `json:"created_at"`
}

// IsAuthenticated reports whether this session holds a live login.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.User != nil && s.Token != ""
}

// UserPatch is a shallow partial update of the user record. Nil fields
// stay untouched; the token is never affected.
type UserPatch struct {
	Name  *string
	Email *string
}

// SessionStore persists sessions in bbolt so a restart (or a browser
// reload hitting a fresh worker) restores the login without a backend
// round trip. The bearer token is sealed with secretbox when an
// encryption key is configured.
type SessionStore struct {
	db  *bbolt.DB
	key *[32]byte // nil when at-rest sealing is disabled

	mu    sync.RWMutex
	cache map[string]*Session
}

// NewSessionStore rehydrates all persisted sessions into memory so the
// first request that depends on one never waits on disk.
func NewSessionStore(db *bbolt.DB, encryptionKey string) (*SessionStore, error) {
	store := &SessionStore{
		db:    db,
		cache: make(map[string]*Session),
	}

	if encryptionKey != "" {
		if len(encryptionKey) != 32 {
			return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(encryptionKey))
		}
		var key [32]byte
		copy(key[:], encryptionKey)
		store.key = &key
	}

	err := db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionsBucket))
		if bucket == nil {
			return fmt.Errorf("bucket %s missing", sessionsBucket)
		}
		return bucket.ForEach(func(k, v []byte) error {
			sess, err := store.decode(v)
			if err != nil {
				// Unreadable records (key rotation, corruption) are
				// skipped; the user just logs in again.
				return nil
			}
			store.cache[string(k)] = sess
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return store, nil
}

// SetAuth stores user and token for a session. Called after a
// successful login or registration.
func (s *SessionStore) SetAuth(sessionID string, user models.User, token string) error {
	sess := &Session{
		User:      &user,
		Token:     token,
		CreatedAt: time.Now(),
	}

	if err := s.persist(sessionID, sess); err != nil {
		return err
	}

	s.mu.Lock()
	s.cache[sessionID] = sess
	s.mu.Unlock()
	return nil
}

// Get returns the session record, or nil when none exists.
func (s *SessionStore) Get(sessionID string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache[sessionID]
}

// IsAuthenticated reports whether the session holds a live login.
func (s *SessionStore) IsAuthenticated(sessionID string) bool {
	return s.Get(sessionID).IsAuthenticated()
}

// Logout clears user and token. Idempotent: concurrent 401s can all
// land here and only the first does any work.
func (s *SessionStore) Logout(sessionID string) error {
	s.mu.Lock()
	_, existed := s.cache[sessionID]
	delete(s.cache, sessionID)
	s.mu.Unlock()

	if !existed {
		return nil
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionsBucket))
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(sessionID))
	})
}

// UpdateUser shallow-merges a patch into the session's user record,
// leaving the token alone. Used after a profile name change.
func (s *SessionStore) UpdateUser(sessionID string, patch UserPatch) error {
	s.mu.Lock()
	sess, ok := s.cache[sessionID]
	if !ok || sess.User == nil {
		s.mu.Unlock()
		return fmt.Errorf("no authenticated session %q", sessionID)
	}

	user := *sess.User
	if patch.Name != nil {
		user.Name = *patch.Name
	}
	if patch.Email != nil {
		user.Email = *patch.Email
	}

	updated := &Session{User: &user, Token: sess.Token, CreatedAt: sess.CreatedAt}
	s.cache[sessionID] = updated
	s.mu.Unlock()

	return s.persist(sessionID, updated)
}

// Token implements api.TokenSource: the outgoing request interceptor
// reads the current bearer token for the session in ctx.
func (s *SessionStore) Token(ctx context.Context) string {
	sess := s.Get(api.SessionID(ctx))
	if !sess.IsAuthenticated() {
		return ""
	}
	return sess.Token
}

// Invalidate is the 401 hook for the backend client: the session is
// cleared before the caller ever sees the error.
func (s *SessionStore) Invalidate(ctx context.Context) {
	sid := api.SessionID(ctx)
	if sid == "" {
		return
	}
	s.Logout(sid)
}

func (s *SessionStore) persist(sessionID string, sess *Session) error {
	data, err := s.encode(sess)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionsBucket))
		if bucket == nil {
			return fmt.Errorf("bucket %s missing", sessionsBucket)
		}
		return bucket.Put([]byte(sessionID), data)
	})
}

// sealedSession is the on-disk shape; the token field is sealed when
// encryption is on.
type sealedSession struct {
	User      *models.User `json:"user"`
	Token     []byte       `json:"token"`
	Sealed    bool         `json:"sealed"`
	CreatedAt time.Time    `json:"created_at"`
}

func (s *SessionStore) encode(sess *Session) ([]byte, error) {
	record := sealedSession{
		User:      sess.User,
		CreatedAt: sess.CreatedAt,
	}

	if s.key != nil {
		var nonce [24]byte
		if _, err := rand.Read(nonce[:]); err != nil {
			return nil, fmt.Errorf("nonce: %w", err)
		}
		record.Token = secretbox.Seal(nonce[:], []byte(sess.Token), &nonce, s.key)
		record.Sealed = true
	} else {
		record.Token = []byte(sess.Token)
	}

	return json.Marshal(record)
}

func (s *SessionStore) decode(data []byte) (*Session, error) {
	var record sealedSession
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}

	token := record.Token
	if record.Sealed {
		if s.key == nil {
			return nil, fmt.Errorf("sealed session but no encryption key configured")
		}
		if len(token) < 24 {
			return nil, fmt.Errorf("sealed token too short")
		}
		var nonce [24]byte
		copy(nonce[:], token[:24])
		opened, ok := secretbox.Open(nil, token[24:], &nonce, s.key)
		if !ok {
			return nil, fmt.Errorf("failed to open sealed token")
		}
		token = opened
	}

	return &Session{
		User:      record.User,
		Token:     string(token),
		CreatedAt: record.CreatedAt,
	}, nil
}
