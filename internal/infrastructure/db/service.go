package db

import (
	"fmt"

	"github.com/payjoin-network/payjoin/internal/core/domain"
	"github.com/payjoin-network/payjoin/internal/core/ports"
	badgerdb "github.com/payjoin-network/payjoin/internal/infrastructure/db/badger"
	inmemorydb "github.com/payjoin-network/payjoin/internal/infrastructure/db/inmemory"
)

var sessionStoreTypes = map[string]func(...interface{}) (domain.SessionRepository, error){
	"badger":   badgerdb.NewSessionRepository,
	"inmemory": inmemorydb.NewSessionRepository,
}

type ServiceConfig struct {
	SessionStoreType   string
	SessionStoreConfig []interface{}
}

type service struct {
	sessionStore domain.SessionRepository
}

func NewService(config ServiceConfig) (ports.RepoManager, error) {
	sessionStoreFactory, ok := sessionStoreTypes[config.SessionStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid session store type: %s", config.SessionStoreType)
	}

	sessionStore, err := sessionStoreFactory(config.SessionStoreConfig...)
	if err != nil {
		return nil, fmt.Errorf("failed to create session store: %w", err)
	}

	return &service{sessionStore}, nil
}

func (s *service) Sessions() domain.SessionRepository {
	return s.sessionStore
}

func (s *service) Close() {
	s.sessionStore.Close()
}
