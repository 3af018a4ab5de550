package inmemorystore

import (
	"context"
	"sync"

	"github.com/payjoin-network/payjoin/pkg/client-sdk/store"
)

type configStore struct {
	data *store.StoreData
	lock *sync.RWMutex
}

func NewConfigStore() (store.ConfigStore, error) {
	lock := &sync.RWMutex{}
	return &configStore{lock: lock}, nil
}

func (s *configStore) GetType() string {
	return store.InMemoryStore
}

func (s *configStore) GetDatadir() string {
	return ""
}

func (s *configStore) AddData(_ context.Context, data store.StoreData) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.data = &data
	return nil
}

func (s *configStore) GetData(_ context.Context) (*store.StoreData, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.data == nil {
		return nil, nil
	}

	return s.data, nil
}

func (s *configStore) CleanData(_ context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.data = nil
	return nil
}
