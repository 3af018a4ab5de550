package domain

import (
	"context"
	"errors"
)

var (
	ErrSessionNotFound         = errors.New("session not found")
	ErrSessionAlreadyCompleted = errors.New("session already completed")
)

type SessionRepository interface {
	AddSession(ctx context.Context, session Session) error
	GetSessionWithId(ctx context.Context, id string) (*Session, error)
	GetSessionsWithAddress(ctx context.Context, address string) ([]Session, error)
	UpdateSession(ctx context.Context, session Session) error
	// PopSessionResponse atomically deletes a completed session and
	// returns its response. Pending sessions are not visible to it.
	PopSessionResponse(ctx context.Context, id string) (string, error)
	GetExpiredSessions(ctx context.Context, now int64) ([]Session, error)
	DeleteSessions(ctx context.Context, ids []string) error
	Close()
}
