package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/payjoin-network/payjoin/common"
	"github.com/payjoin-network/payjoin/pkg/client-sdk/store"
	filestore "github.com/payjoin-network/payjoin/pkg/client-sdk/store/file"
	inmemorystore "github.com/payjoin-network/payjoin/pkg/client-sdk/store/inmemory"
)

func TestConfigStore(t *testing.T) {
	ctx := context.Background()
	testStoreData := store.StoreData{
		ExchangeType: "relayed",
		Endpoint:     "http://localhost:7071/payjoin",
		RelayUrl:     "http://localhost:7070",
		ExplorerURL:  "http://localhost:3000",
		Network:      common.BitcoinRegTest,
		FeeRate:      1000,
		Dust:         546,
		PollInterval: 5 * time.Second,
		MaxAttempts:  10,
		WalletType:   "singlekey",
		ClientType:   "rest",
	}

	tests := []struct {
		name string
	}{
		{
			name: store.InMemoryStore,
		},
		{
			name: store.FileStore,
		},
	}

	for i := range tests {
		tt := tests[i]
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var storeSvc store.ConfigStore
			var err error
			switch tt.name {
			case store.InMemoryStore:
				storeSvc, err = inmemorystore.NewConfigStore()
			case store.FileStore:
				storeSvc, err = filestore.NewConfigStore(t.TempDir())
			}
			require.NoError(t, err)
			require.NotNil(t, storeSvc)

			// Check empty data when store is empty.
			data, err := storeSvc.GetData(ctx)
			require.NoError(t, err)
			require.Nil(t, data)

			// Check no side effects when cleaning an empty store.
			err = storeSvc.CleanData(ctx)
			require.NoError(t, err)

			// Check add and retrieve data.
			err = storeSvc.AddData(ctx, testStoreData)
			require.NoError(t, err)

			data, err = storeSvc.GetData(ctx)
			require.NoError(t, err)
			require.Equal(t, testStoreData, *data)

			// Check clean and retrieve data.
			err = storeSvc.CleanData(ctx)
			require.NoError(t, err)

			data, err = storeSvc.GetData(ctx)
			require.NoError(t, err)
			require.Nil(t, data)

			// Check overwriting the store.
			err = storeSvc.AddData(ctx, testStoreData)
			require.NoError(t, err)
			err = storeSvc.AddData(ctx, testStoreData)
			require.NoError(t, err)
		})
	}
}
