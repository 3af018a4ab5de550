package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/payjoin-network/payjoin/pkg/client-sdk/store"
)

const (
	configStoreFilename = "state.json"
)

type configStore struct {
	filePath string
}

func NewConfigStore(baseDir string) (store.ConfigStore, error) {
	if len(baseDir) <= 0 {
		return nil, fmt.Errorf("missing base directory")
	}

	datadir := cleanAndExpandPath(baseDir)
	if err := makeDirectoryIfNotExists(datadir); err != nil {
		return nil, fmt.Errorf("failed to initialize datadir: %s", err)
	}
	filePath := filepath.Join(datadir, configStoreFilename)

	configStore := &configStore{filePath}

	if _, err := configStore.open(); err != nil {
		return nil, fmt.Errorf("failed to open store: %s", err)
	}

	return configStore, nil
}

func (s *configStore) GetType() string {
	return store.FileStore
}

func (s *configStore) GetDatadir() string {
	return filepath.Dir(s.filePath)
}

func (s *configStore) AddData(_ context.Context, data store.StoreData) error {
	sd := &storeData{
		ExchangeType: data.ExchangeType,
		Endpoint:     data.Endpoint,
		RelayUrl:     data.RelayUrl,
		ExplorerURL:  data.ExplorerURL,
		Network:      data.Network.Name,
		FeeRate:      fmt.Sprintf("%d", int64(data.FeeRate)),
		Dust:         fmt.Sprintf("%d", int64(data.Dust)),
		PollInterval: fmt.Sprintf("%d", data.PollInterval.Milliseconds()),
		MaxAttempts:  fmt.Sprintf("%d", data.MaxAttempts),
		WalletType:   data.WalletType,
		ClientType:   data.ClientType,
	}

	if err := s.write(sd); err != nil {
		return fmt.Errorf("failed to write to store: %s", err)
	}
	return nil
}

func (s *configStore) GetData(_ context.Context) (*store.StoreData, error) {
	sd, err := s.open()
	if err != nil {
		return nil, err
	}
	if sd == nil || sd.isEmpty() {
		return nil, nil
	}

	data := sd.decode()
	return &data, nil
}

func (s *configStore) CleanData(_ context.Context) error {
	if err := s.clear(); err != nil {
		return fmt.Errorf("failed to write to store: %s", err)
	}
	return nil
}

func (s *configStore) open() (*storeData, error) {
	file, err := os.ReadFile(s.filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to open store: %s", err)
		}
		if err := s.clear(); err != nil {
			return nil, fmt.Errorf("failed to initialize store: %s", err)
		}
		return nil, nil
	}

	data := &storeData{}
	if err := json.Unmarshal(file, data); err != nil {
		return nil, fmt.Errorf("failed to read file store: %s", err)
	}
	return data, nil
}

func (s *configStore) write(data *storeData) error {
	file, err := os.ReadFile(s.filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
	}
	currentData := map[string]string{}
	if len(file) > 0 {
		if err := json.Unmarshal(file, &currentData); err != nil {
			return fmt.Errorf("failed to read file store: %s", err)
		}
	}

	mergedData := merge(currentData, data.asMap())

	jsonString, err := json.Marshal(mergedData)
	if err != nil {
		return err
	}

	return os.WriteFile(s.filePath, jsonString, 0755)
}

func (s *configStore) clear() error {
	jsonString, err := json.Marshal(map[string]string{})
	if err != nil {
		return err
	}

	return os.WriteFile(s.filePath, jsonString, 0755)
}
