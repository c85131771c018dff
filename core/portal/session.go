package portal

import (
	"sync"

	"github.com/tsacademy/academia/core"
	"github.com/tsacademy/academia/core/user"
)

type (
	// AuthRecord is the raw account record pushed by the authentication
	// collaborator. Role and class live in the metadata map.
	AuthRecord struct {
		ID          string
		DisplayName string
		Email       string
		Metadata    map[string]string
	}

	// AuthSource pushes auth-state changes to subscribers; there is no
	// polling. A nil record means "signed out".
	AuthSource interface {
		OnAuthStateChanged(fn func(rec *AuthRecord)) (unsubscribe func())
	}

	// SessionStore tracks the current authenticated identity and loading
	// state. Loading starts true and flips false on the first
	// notification, not before. Close unsubscribes; notifications
	// arriving after Close never mutate state, so nothing is dispatched
	// into a disposed consumer.
	SessionStore struct {
		mu     sync.RWMutex
		state  AuthState
		unsub  func()
		closed bool
		logger core.Logger
	}
)

func NewSessionStore(src AuthSource, logger core.Logger) *SessionStore {
	s := &SessionStore{
		state:  AuthState{Loading: true},
		logger: logger,
	}
	s.unsub = src.OnAuthStateChanged(s.apply)
	return s
}

func (s *SessionStore) apply(rec *AuthRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.state = AuthState{Identity: IdentityFromRecord(rec, s.logger)}
}

// State returns the current session snapshot.
func (s *SessionStore) State() AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *SessionStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.unsub != nil {
		s.unsub()
	}
}

// IdentityFromRecord maps a raw auth record into an Identity. It fails
// closed: a record with a missing or unrecognized role is treated as
// unauthenticated and logged, rather than defaulted to some role.
func IdentityFromRecord(rec *AuthRecord, logger core.Logger) *user.Identity {
	if rec == nil {
		return nil
	}
	role := rec.Metadata["role"]
	if !user.KnownRole(role) {
		if logger != nil {
			logger.Warn("auth record with missing or unknown role treated as unauthenticated",
				map[string]interface{}{"id": rec.ID, "role": role})
		}
		return nil
	}
	name := rec.DisplayName
	if name == "" {
		name = "User"
	}
	return &user.Identity{
		ID:      rec.ID,
		Name:    name,
		Email:   rec.Email,
		Role:    role,
		ClassID: rec.Metadata["classId"],
	}
}
