package payjoinsdk

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lnwallet/chainfee"

	"github.com/payjoin-network/payjoin/pkg/client-sdk/internal/utils"
)

var (
	supportedWallets = utils.SupportedType[struct{}]{
		SingleKeyWallet: struct{}{},
	}
	supportedExchanges = utils.SupportedType[struct{}]{
		DirectExchange:  struct{}{},
		RelayedExchange: struct{}{},
	}
)

type InitArgs struct {
	WalletType   string
	ExchangeType string
	Endpoint     string
	RelayUrl     string
	ExplorerURL  string
	Network      string
	FeeRate      chainfee.SatPerKVByte
	Dust         btcutil.Amount
	PollInterval time.Duration
	MaxAttempts  int
	Key          string
	Password     string
}

func (a InitArgs) validate() error {
	if len(a.WalletType) <= 0 {
		return fmt.Errorf("missing wallet")
	}
	if !supportedWallets.Supports(a.WalletType) {
		return fmt.Errorf(
			"wallet type '%s' not supported, please select one of: %s",
			a.WalletType, supportedWallets,
		)
	}

	if len(a.ExchangeType) <= 0 {
		return fmt.Errorf("missing exchange type")
	}
	if !supportedExchanges.Supports(a.ExchangeType) {
		return fmt.Errorf(
			"exchange type '%s' not supported, please select one of: %s",
			a.ExchangeType, supportedExchanges,
		)
	}
	if a.ExchangeType == DirectExchange && len(a.Endpoint) <= 0 {
		return fmt.Errorf("missing counterparty endpoint")
	}
	if a.ExchangeType == RelayedExchange && len(a.RelayUrl) <= 0 {
		return fmt.Errorf("missing relay url")
	}

	if len(a.Password) <= 0 {
		return fmt.Errorf("missing password")
	}
	return nil
}

type SendArgs struct {
	To     string
	Amount btcutil.Amount
	// Endpoint and ExchangeType override the configured exchange for a
	// single send, typically decoded from the receiver's payment
	// request.
	Endpoint     string
	ExchangeType string
}

func (a SendArgs) validate() error {
	if len(a.To) <= 0 {
		return fmt.Errorf("missing receiver address")
	}
	if a.Amount <= 0 {
		return fmt.Errorf("missing amount")
	}
	if len(a.ExchangeType) > 0 && !supportedExchanges.Supports(a.ExchangeType) {
		return fmt.Errorf(
			"exchange type '%s' not supported, please select one of: %s",
			a.ExchangeType, supportedExchanges,
		)
	}
	return nil
}
