package singlekeywallet

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/vulpemventures/go-bip32"

	"github.com/payjoin-network/payjoin/pkg/client-sdk/explorer"
	"github.com/payjoin-network/payjoin/pkg/client-sdk/proposal"
	"github.com/payjoin-network/payjoin/pkg/client-sdk/store"
	"github.com/payjoin-network/payjoin/pkg/client-sdk/wallet"
	walletstore "github.com/payjoin-network/payjoin/pkg/client-sdk/wallet/singlekey/store"
)

type bitcoinWallet struct {
	*singlekeyWallet
	// receive addresses derived per payment request, address → child index
	derivedAddrs map[string]uint32
	nextIndex    uint32
}

func NewBitcoinWallet(
	configStore store.ConfigStore, walletStore walletstore.WalletStore,
) (wallet.WalletService, error) {
	walletData, err := walletStore.GetWallet()
	if err != nil {
		return nil, err
	}
	return &bitcoinWallet{
		singlekeyWallet: &singlekeyWallet{
			configStore: configStore,
			walletStore: walletStore,
			walletData:  walletData,
		},
		derivedAddrs: make(map[string]uint32),
	}, nil
}

func (w *bitcoinWallet) GetAddress(ctx context.Context) (string, error) {
	addr, err := w.getP2WPKHAddress(ctx)
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

func (w *bitcoinWallet) GetAddresses(ctx context.Context) ([]string, error) {
	return w.ownedAddresses(ctx)
}

// NewReceiveAddress derives a fresh address from the wallet key. The
// derivation index is kept in memory only, so addresses are rotated per
// process lifetime, not persisted.
func (w *bitcoinWallet) NewReceiveAddress(ctx context.Context) (string, error) {
	if w.walletData == nil {
		return "", fmt.Errorf("wallet not initialized")
	}
	if w.IsLocked() {
		return "", fmt.Errorf("wallet is locked")
	}

	data, err := w.configStore.GetData(ctx)
	if err != nil {
		return "", err
	}
	if data == nil {
		return "", fmt.Errorf("config not set, cannot derive address")
	}

	index := w.nextIndex + 1
	childKey, err := w.deriveChildKey(index)
	if err != nil {
		return "", err
	}

	addr, err := btcutil.NewAddressWitnessPubKeyHash(
		btcutil.Hash160(childKey.PubKey().SerializeCompressed()),
		data.Network.ChainParams(),
	)
	if err != nil {
		return "", err
	}

	w.nextIndex = index
	w.derivedAddrs[addr.EncodeAddress()] = index

	return addr.EncodeAddress(), nil
}

func (w *bitcoinWallet) GetBalance(
	ctx context.Context, explorerSvc explorer.Explorer,
) (uint64, error) {
	addresses, err := w.ownedAddresses(ctx)
	if err != nil {
		return 0, err
	}

	balance := uint64(0)
	for _, addr := range addresses {
		addrBalance, err := explorerSvc.GetBalance(addr)
		if err != nil {
			return 0, err
		}
		balance += addrBalance
	}
	return balance, nil
}

func (w *bitcoinWallet) GetSpendables(
	ctx context.Context, explorerSvc explorer.Explorer,
) ([]proposal.SpendableOutput, error) {
	addresses, err := w.ownedAddresses(ctx)
	if err != nil {
		return nil, err
	}

	spendables := make([]proposal.SpendableOutput, 0)
	for _, addr := range addresses {
		utxos, err := explorerSvc.GetUtxos(addr)
		if err != nil {
			return nil, err
		}
		for _, utxo := range utxos {
			spendable, err := utxo.ToSpendable(explorerSvc, addr)
			if err != nil {
				return nil, err
			}
			spendables = append(spendables, spendable)
		}
	}
	return spendables, nil
}

func (w *bitcoinWallet) SignProposal(
	ctx context.Context, explorerSvc explorer.Explorer, tx string,
) (string, error) {
	if w.walletData == nil {
		return "", fmt.Errorf("wallet not initialized")
	}
	if w.IsLocked() {
		return "", fmt.Errorf("wallet is locked")
	}

	ptx, err := psbt.NewFromRawBytes(strings.NewReader(tx), true)
	if err != nil {
		return "", err
	}

	updater, err := psbt.NewUpdater(ptx)
	if err != nil {
		return "", err
	}

	for i, input := range updater.Upsbt.UnsignedTx.TxIn {
		if updater.Upsbt.Inputs[i].WitnessUtxo != nil {
			continue
		}

		prevoutTxHex, err := explorerSvc.GetTxHex(input.PreviousOutPoint.Hash.String())
		if err != nil {
			return "", err
		}

		var prevoutTx wire.MsgTx
		if err := prevoutTx.Deserialize(
			hex.NewDecoder(strings.NewReader(prevoutTxHex)),
		); err != nil {
			return "", err
		}

		if int(input.PreviousOutPoint.Index) >= len(prevoutTx.TxOut) {
			return "", fmt.Errorf("witness utxo not found")
		}

		utxo := prevoutTx.TxOut[input.PreviousOutPoint.Index]
		if err := updater.AddInWitnessUtxo(utxo, i); err != nil {
			return "", err
		}

		if err := updater.AddInSighashType(txscript.SigHashAll, i); err != nil {
			return "", err
		}
	}

	prevouts := make(map[wire.OutPoint]*wire.TxOut)
	for i, input := range updater.Upsbt.Inputs {
		outpoint := updater.Upsbt.UnsignedTx.TxIn[i].PreviousOutPoint
		prevouts[outpoint] = input.WitnessUtxo
	}

	prevoutFetcher := txscript.NewMultiPrevOutFetcher(prevouts)
	txsighashes := txscript.NewTxSigHashes(updater.Upsbt.UnsignedTx, prevoutFetcher)

	signingKeys, err := w.signingKeys(ctx)
	if err != nil {
		return "", err
	}

	for i, input := range ptx.Inputs {
		if input.WitnessUtxo == nil {
			continue
		}

		if len(input.PartialSigs) > 0 {
			// already signed, skip
			continue
		}

		privateKey, ok := signingKeys[hex.EncodeToString(input.WitnessUtxo.PkScript)]
		if !ok {
			// not the wallet's input, skip
			continue
		}

		sig, err := txscript.RawTxInWitnessSignature(
			updater.Upsbt.UnsignedTx, txsighashes, i,
			input.WitnessUtxo.Value, input.WitnessUtxo.PkScript,
			txscript.SigHashAll, privateKey,
		)
		if err != nil {
			return "", err
		}

		if _, err := updater.Sign(
			i, sig, privateKey.PubKey().SerializeCompressed(), nil, nil,
		); err != nil {
			return "", err
		}
	}

	return ptx.B64Encode()
}

func (w *bitcoinWallet) getP2WPKHAddress(
	ctx context.Context,
) (*btcutil.AddressWitnessPubKeyHash, error) {
	if w.walletData == nil {
		return nil, fmt.Errorf("wallet not initialized")
	}

	data, err := w.configStore.GetData(ctx)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("config not set, cannot derive address")
	}

	return btcutil.NewAddressWitnessPubKeyHash(
		btcutil.Hash160(w.walletData.PubKey.SerializeCompressed()),
		data.Network.ChainParams(),
	)
}

func (w *bitcoinWallet) ownedAddresses(ctx context.Context) ([]string, error) {
	addr, err := w.getP2WPKHAddress(ctx)
	if err != nil {
		return nil, err
	}

	addresses := make([]string, 0, len(w.derivedAddrs)+1)
	addresses = append(addresses, addr.EncodeAddress())
	for derived := range w.derivedAddrs {
		addresses = append(addresses, derived)
	}
	return addresses, nil
}

// signingKeys maps the p2wpkh output script of every owned address to
// the key that can spend it. Child keys are re-derived on demand so a
// lock/unlock cycle does not lose them.
func (w *bitcoinWallet) signingKeys(
	ctx context.Context,
) (map[string]*secp256k1.PrivateKey, error) {
	data, err := w.configStore.GetData(ctx)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("config not set, cannot derive signing keys")
	}
	params := data.Network.ChainParams()

	keys := make(map[string]*secp256k1.PrivateKey, len(w.derivedAddrs)+1)

	masterAddr, err := w.getP2WPKHAddress(ctx)
	if err != nil {
		return nil, err
	}
	masterScript, err := txscript.PayToAddrScript(masterAddr)
	if err != nil {
		return nil, err
	}
	keys[hex.EncodeToString(masterScript)] = w.privateKey

	for addr, index := range w.derivedAddrs {
		childKey, err := w.deriveChildKey(index)
		if err != nil {
			return nil, err
		}

		decoded, err := btcutil.DecodeAddress(addr, params)
		if err != nil {
			return nil, err
		}
		script, err := txscript.PayToAddrScript(decoded)
		if err != nil {
			return nil, err
		}
		keys[hex.EncodeToString(script)] = childKey
	}

	return keys, nil
}

func (w *bitcoinWallet) deriveChildKey(index uint32) (*secp256k1.PrivateKey, error) {
	masterKey, err := bip32.NewMasterKey(w.privateKey.Serialize())
	if err != nil {
		return nil, fmt.Errorf("failed to create master key: %w", err)
	}

	childKey, err := masterKey.NewChildKey(index)
	if err != nil {
		return nil, fmt.Errorf("failed to derive child key: %w", err)
	}

	return secp256k1.PrivKeyFromBytes(childKey.Key), nil
}
