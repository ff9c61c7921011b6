package verification

import (
	"context"
	"errors"
	"sync"
	"time"
)

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[Kind]map[string]Session
	statuses map[string]UserStatus
	now      func() time.Time
}

// NewMemoryStore builds an in-memory session store for development and tests.
func NewMemoryStore() Store {
	return &memoryStore{
		sessions: map[Kind]map[string]Session{
			KindLiveness: {},
			KindKYC:      {},
		},
		statuses: map[string]UserStatus{},
		now:      time.Now,
	}
}

func (s *memoryStore) Insert(_ context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.Kind][session.SessionKey]; exists {
		return errors.New("session exists")
	}
	s.sessions[session.Kind][session.SessionKey] = session
	return nil
}

func (s *memoryStore) FindByKey(_ context.Context, kind Kind, sessionKey string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[kind][sessionKey]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

func (s *memoryStore) FindByExternalRef(_ context.Context, kind Kind, externalRef string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, session := range s.sessions[kind] {
		if session.ExternalRef == externalRef {
			return session, nil
		}
	}
	return Session{}, ErrSessionNotFound
}

func (s *memoryStore) LatestByUser(_ context.Context, kind Kind, userID string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest Session
	found := false
	for _, session := range s.sessions[kind] {
		if session.UserID != userID {
			continue
		}
		if !found || session.UpdatedAt.After(latest.UpdatedAt) {
			latest = session
			found = true
		}
	}
	if !found {
		return Session{}, ErrSessionNotFound
	}
	return latest, nil
}

func (s *memoryStore) Apply(_ context.Context, kind Kind, sessionKey string, upd SessionUpdate) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[kind][sessionKey]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if upd.GuardTerminal && session.Phase.Terminal() {
		return session, ErrSessionClosed
	}

	if upd.Phase != "" {
		session.Phase = upd.Phase
	}
	if upd.ReviewStatus != "" {
		session.ReviewStatus = upd.ReviewStatus
	}
	if upd.Verified != nil {
		session.Verified = *upd.Verified
	}
	if upd.IsLive != nil {
		session.IsLive = *upd.IsLive
	}
	if upd.DocType != "" {
		session.DocType = upd.DocType
	}
	if upd.Country != "" {
		session.Country = upd.Country
	}
	for _, step := range upd.Steps {
		if !session.HasStep(step) {
			session.StepsCompleted = append(session.StepsCompleted, step)
		}
	}
	session.UpdatedAt = s.now().UTC()

	s.sessions[kind][sessionKey] = session
	return session, nil
}

func (s *memoryStore) UpsertUserStatus(_ context.Context, userID string, patch UserStatusPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := s.statuses[userID]
	status.UserID = userID
	if patch.Verified != nil {
		status.Verified = *patch.Verified
	}
	if patch.LivenessCompleted != nil {
		status.LivenessCompleted = *patch.LivenessCompleted
	}
	if patch.LivenessVerified != nil {
		status.LivenessVerified = *patch.LivenessVerified
	}
	if patch.LivenessSessionKey != "" {
		status.LivenessSessionKey = patch.LivenessSessionKey
	}
	if patch.LivenessReviewStatus != "" {
		status.LivenessReviewStatus = patch.LivenessReviewStatus
	}
	if patch.KYCCompleted != nil {
		status.KYCCompleted = *patch.KYCCompleted
	}
	if patch.KYCSessionKey != "" {
		status.KYCSessionKey = patch.KYCSessionKey
	}
	if patch.KYCReviewStatus != "" {
		status.KYCReviewStatus = patch.KYCReviewStatus
	}
	status.UpdatedAt = s.now().UTC()

	s.statuses[userID] = status
	return nil
}

func (s *memoryStore) UserStatusByID(_ context.Context, userID string) (UserStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.statuses[userID]
	if !ok {
		return UserStatus{UserID: userID}, nil
	}
	return status, nil
}
