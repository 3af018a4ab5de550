package inmemorydb

import (
	"context"
	"fmt"
	"sync"

	"github.com/payjoin-network/payjoin/internal/core/domain"
)

type sessionRepository struct {
	lock     *sync.RWMutex
	sessions map[string]domain.Session
}

func NewSessionRepository(_ ...interface{}) (domain.SessionRepository, error) {
	return &sessionRepository{
		lock:     &sync.RWMutex{},
		sessions: make(map[string]domain.Session),
	}, nil
}

func (r *sessionRepository) AddSession(ctx context.Context, session domain.Session) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.sessions[session.Id]; ok {
		return fmt.Errorf("session %s already registered", session.Id)
	}

	r.sessions[session.Id] = session
	return nil
}

func (r *sessionRepository) GetSessionWithId(
	ctx context.Context, id string,
) (*domain.Session, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &session, nil
}

func (r *sessionRepository) GetSessionsWithAddress(
	ctx context.Context, address string,
) ([]domain.Session, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	sessions := make([]domain.Session, 0)
	for _, session := range r.sessions {
		if session.Address == address {
			sessions = append(sessions, session)
		}
	}
	return sessions, nil
}

func (r *sessionRepository) UpdateSession(ctx context.Context, session domain.Session) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.sessions[session.Id]; !ok {
		return domain.ErrSessionNotFound
	}

	r.sessions[session.Id] = session
	return nil
}

// PopSessionResponse holds the write lock for the whole read-and-delete
// so concurrent claims cannot both succeed.
func (r *sessionRepository) PopSessionResponse(
	ctx context.Context, id string,
) (string, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	session, ok := r.sessions[id]
	if !ok || session.IsPending() {
		return "", domain.ErrSessionNotFound
	}

	delete(r.sessions, id)
	return session.Response, nil
}

func (r *sessionRepository) GetExpiredSessions(
	ctx context.Context, now int64,
) ([]domain.Session, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	sessions := make([]domain.Session, 0)
	for _, session := range r.sessions {
		if session.ExpiresAt <= now {
			sessions = append(sessions, session)
		}
	}
	return sessions, nil
}

func (r *sessionRepository) DeleteSessions(ctx context.Context, ids []string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	for _, id := range ids {
		delete(r.sessions, id)
	}
	return nil
}

func (r *sessionRepository) Close() {}
