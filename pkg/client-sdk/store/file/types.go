package filestore

import (
	"strconv"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/lnwallet/chainfee"

	"github.com/payjoin-network/payjoin/common"
	"github.com/payjoin-network/payjoin/pkg/client-sdk/store"
)

type storeData struct {
	ExchangeType string `json:"exchange_type"`
	Endpoint     string `json:"endpoint"`
	RelayUrl     string `json:"relay_url"`
	ExplorerURL  string `json:"explorer_url"`
	Network      string `json:"network"`
	FeeRate      string `json:"fee_rate"`
	Dust         string `json:"dust"`
	PollInterval string `json:"poll_interval"`
	MaxAttempts  string `json:"max_attempts"`
	WalletType   string `json:"wallet_type"`
	ClientType   string `json:"client_type"`
}

func (d storeData) isEmpty() bool {
	return d == storeData{}
}

func (d storeData) decode() store.StoreData {
	feeRate, _ := strconv.Atoi(d.FeeRate)
	dust, _ := strconv.Atoi(d.Dust)
	pollInterval, _ := strconv.Atoi(d.PollInterval)
	maxAttempts, _ := strconv.Atoi(d.MaxAttempts)

	return store.StoreData{
		ExchangeType: d.ExchangeType,
		Endpoint:     d.Endpoint,
		RelayUrl:     d.RelayUrl,
		ExplorerURL:  d.ExplorerURL,
		Network:      common.NetworkFromString(d.Network),
		FeeRate:      chainfee.SatPerKVByte(feeRate),
		Dust:         btcutil.Amount(dust),
		PollInterval: time.Duration(pollInterval) * time.Millisecond,
		MaxAttempts:  maxAttempts,
		WalletType:   d.WalletType,
		ClientType:   d.ClientType,
	}
}

func (d storeData) asMap() map[string]string {
	return map[string]string{
		"exchange_type": d.ExchangeType,
		"endpoint":      d.Endpoint,
		"relay_url":     d.RelayUrl,
		"explorer_url":  d.ExplorerURL,
		"network":       d.Network,
		"fee_rate":      d.FeeRate,
		"dust":          d.Dust,
		"poll_interval": d.PollInterval,
		"max_attempts":  d.MaxAttempts,
		"wallet_type":   d.WalletType,
		"client_type":   d.ClientType,
	}
}
