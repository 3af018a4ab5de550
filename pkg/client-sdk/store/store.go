package store

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lnwallet/chainfee"

	"github.com/payjoin-network/payjoin/common"
)

const (
	InMemoryStore = "inmemory"
	FileStore     = "file"
)

// StoreData is the client configuration persisted by the ConfigStore.
// Zero values fall back to the defaults at the point of use.
type StoreData struct {
	ExchangeType string
	Endpoint     string
	RelayUrl     string
	ExplorerURL  string
	Network      common.Network
	FeeRate      chainfee.SatPerKVByte
	Dust         btcutil.Amount
	PollInterval time.Duration
	MaxAttempts  int
	WalletType   string
	ClientType   string
}

type ConfigStore interface {
	GetType() string
	GetDatadir() string
	AddData(ctx context.Context, data StoreData) error
	GetData(ctx context.Context) (*StoreData, error)
	CleanData(ctx context.Context) error
}
