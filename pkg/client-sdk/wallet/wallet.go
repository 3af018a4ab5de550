package wallet

import (
	"context"

	"github.com/payjoin-network/payjoin/pkg/client-sdk/explorer"
	"github.com/payjoin-network/payjoin/pkg/client-sdk/proposal"
)

const (
	SingleKeyWallet = "singlekey"
)

// WalletService owns the signing key. The private key only lives in
// memory while the wallet is unlocked; at rest it is encrypted under
// the wallet password.
type WalletService interface {
	GetType() string
	Create(ctx context.Context, password, key string) (string, error)
	Lock(ctx context.Context, password string) (err error)
	Unlock(ctx context.Context, password string) (alreadyUnlocked bool, err error)
	IsLocked() bool
	Dump(ctx context.Context) (string, error)
	GetAddress(ctx context.Context) (string, error)
	GetAddresses(ctx context.Context) ([]string, error)
	NewReceiveAddress(ctx context.Context) (string, error)
	GetBalance(ctx context.Context, explorerSvc explorer.Explorer) (uint64, error)
	GetSpendables(
		ctx context.Context, explorerSvc explorer.Explorer,
	) ([]proposal.SpendableOutput, error)
	SignProposal(
		ctx context.Context, explorerSvc explorer.Explorer, tx string,
	) (signedTx string, err error)
}
