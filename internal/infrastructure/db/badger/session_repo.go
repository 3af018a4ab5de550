package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/payjoin-network/payjoin/internal/core/domain"
	"github.com/timshannon/badgerhold/v4"
)

const sessionStoreDir = "sessions"

type sessionRepository struct {
	store *badgerhold.Store
}

func NewSessionRepository(config ...interface{}) (domain.SessionRepository, error) {
	if len(config) != 2 {
		return nil, fmt.Errorf("invalid config")
	}
	baseDir, ok := config[0].(string)
	if !ok {
		return nil, fmt.Errorf("invalid base directory")
	}
	var logger badger.Logger
	if config[1] != nil {
		logger, ok = config[1].(badger.Logger)
		if !ok {
			return nil, fmt.Errorf("invalid logger")
		}
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, sessionStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %s", err)
	}

	return &sessionRepository{store}, nil
}

func (r *sessionRepository) AddSession(ctx context.Context, session domain.Session) error {
	if err := r.store.Insert(session.Id, session); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return fmt.Errorf("session %s already registered", session.Id)
		}
		return err
	}
	return nil
}

func (r *sessionRepository) GetSessionWithId(
	ctx context.Context, id string,
) (*domain.Session, error) {
	var session domain.Session
	if err := r.store.Get(id, &session); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) GetSessionsWithAddress(
	ctx context.Context, address string,
) ([]domain.Session, error) {
	query := badgerhold.Where("Address").Eq(address)
	return r.findSessions(query)
}

func (r *sessionRepository) UpdateSession(ctx context.Context, session domain.Session) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		err = r.store.Update(session.Id, session)
		if err == nil {
			return nil
		}
		if errors.Is(err, badgerhold.ErrNotFound) {
			return domain.ErrSessionNotFound
		}
		if errors.Is(err, badger.ErrConflict) {
			time.Sleep(100 * time.Millisecond)
			continue
		}
		return err
	}
	return err
}

// PopSessionResponse reads and deletes a completed session in one badger
// transaction so concurrent claims cannot both succeed.
func (r *sessionRepository) PopSessionResponse(
	ctx context.Context, id string,
) (string, error) {
	var response string
	var err error

	for i := 0; i < maxRetries; i++ {
		response, err = func() (string, error) {
			tx := r.store.Badger().NewTransaction(true)
			defer tx.Discard()

			var session domain.Session
			if err := r.store.TxGet(tx, id, &session); err != nil {
				if errors.Is(err, badgerhold.ErrNotFound) {
					return "", domain.ErrSessionNotFound
				}
				return "", err
			}
			if session.IsPending() {
				return "", domain.ErrSessionNotFound
			}

			if err := r.store.TxDelete(tx, id, domain.Session{}); err != nil {
				return "", err
			}
			if err := tx.Commit(); err != nil {
				return "", err
			}

			return session.Response, nil
		}()
		if err == nil {
			return response, nil
		}

		if errors.Is(err, badger.ErrConflict) {
			time.Sleep(100 * time.Millisecond)
			continue
		}
		return "", err
	}

	return "", err
}

func (r *sessionRepository) GetExpiredSessions(
	ctx context.Context, now int64,
) ([]domain.Session, error) {
	query := badgerhold.Where("ExpiresAt").Le(now)
	return r.findSessions(query)
}

func (r *sessionRepository) DeleteSessions(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := r.store.Delete(id, domain.Session{}); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				continue
			}
			return err
		}
	}
	return nil
}

func (r *sessionRepository) Close() {
	r.store.Close()
}

func (r *sessionRepository) findSessions(query *badgerhold.Query) ([]domain.Session, error) {
	sessions := make([]domain.Session, 0)
	if err := r.store.Find(&sessions, query); err != nil {
		return nil, err
	}
	return sessions, nil
}
