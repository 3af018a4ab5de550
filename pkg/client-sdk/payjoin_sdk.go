package payjoinsdk

import (
	"context"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/payjoin-network/payjoin/pkg/client-sdk/store"
)

// PayjoinClient drives both sides of a collaborative payment. A sender
// builds and exchanges a proposal with Send; a receiver hands out
// payment requests with Receive and answers queued proposals with
// RespondPending.
//
// Wallet material lives in memory only: after Init the caller must keep
// the returned key, and every new process restores it with Restore
// before unlocking.
type PayjoinClient interface {
	GetConfigData(ctx context.Context) (*store.StoreData, error)
	Init(ctx context.Context, args InitArgs) (key string, err error)
	Restore(ctx context.Context, password, key string) error
	Unlock(ctx context.Context, password string) error
	Lock(ctx context.Context, password string) error
	IsLocked(ctx context.Context) bool
	Dump(ctx context.Context) (key string, err error)
	Balance(ctx context.Context) (uint64, error)
	Address(ctx context.Context) (string, error)
	Receive(ctx context.Context, amount btcutil.Amount) (uri string, err error)
	Send(ctx context.Context, args SendArgs) (txid string, err error)
	RespondPending(ctx context.Context) (handled []string, err error)
}
