package finalizer_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/payjoin-network/payjoin/common"
	"github.com/payjoin-network/payjoin/pkg/client-sdk/explorer"
	"github.com/payjoin-network/payjoin/pkg/client-sdk/finalizer"
	"github.com/payjoin-network/payjoin/pkg/client-sdk/proposal"
	"github.com/payjoin-network/payjoin/pkg/client-sdk/store"
	inmemorystore "github.com/payjoin-network/payjoin/pkg/client-sdk/store/inmemory"
	"github.com/payjoin-network/payjoin/pkg/client-sdk/wallet"
	singlekeywallet "github.com/payjoin-network/payjoin/pkg/client-sdk/wallet/singlekey"
	inmemorywalletstore "github.com/payjoin-network/payjoin/pkg/client-sdk/wallet/singlekey/store/inmemory"
)

var fundingNonce uint32

func newTestWallet(
	t *testing.T, ctx context.Context, unlock bool,
) (wallet.WalletService, string) {
	t.Helper()

	configStore, err := inmemorystore.NewConfigStore()
	require.NoError(t, err)
	err = configStore.AddData(ctx, store.StoreData{
		Network:    common.BitcoinRegTest,
		WalletType: wallet.SingleKeyWallet,
	})
	require.NoError(t, err)

	walletStore, err := inmemorywalletstore.NewWalletStore()
	require.NoError(t, err)

	walletSvc, err := singlekeywallet.NewBitcoinWallet(configStore, walletStore)
	require.NoError(t, err)

	_, err = walletSvc.Create(ctx, "password", "")
	require.NoError(t, err)
	if unlock {
		_, err = walletSvc.Unlock(ctx, "password")
		require.NoError(t, err)
	}

	addr, err := walletSvc.GetAddress(ctx)
	require.NoError(t, err)

	return walletSvc, addr
}

func newSpendable(
	t *testing.T, value btcutil.Amount, addr string,
) proposal.SpendableOutput {
	t.Helper()

	script := scriptForAddress(t, addr)

	fundingNonce++
	funding := wire.NewMsgTx(2)
	funding.LockTime = fundingNonce
	funding.AddTxIn(wire.NewTxIn(
		&wire.OutPoint{Index: wire.MaxPrevOutIndex}, nil, nil,
	))
	funding.AddTxOut(wire.NewTxOut(int64(value), script))

	var buf bytes.Buffer
	require.NoError(t, funding.Serialize(&buf))

	return proposal.SpendableOutput{
		Txid:    funding.TxHash().String(),
		VOut:    0,
		Value:   value,
		Address: addr,
		RawTx:   buf.Bytes(),
	}
}

func scriptForAddress(t *testing.T, addr string) []byte {
	t.Helper()

	decoded, err := btcutil.DecodeAddress(addr, common.BitcoinRegTest.ChainParams())
	require.NoError(t, err)
	script, err := txscript.PayToAddrScript(decoded)
	require.NoError(t, err)
	return script
}

func TestFinalize(t *testing.T) {
	ctx := context.Background()
	params := common.BitcoinRegTest.ChainParams()

	sender, senderAddr := newTestWallet(t, ctx, true)
	receiver, receiverAddr := newTestWallet(t, ctx, true)

	senderSpendable := newSpendable(t, 300_000, senderAddr)
	sent, err := proposal.NewBuilder(0, 0, nil, params).Build(
		[]proposal.SpendableOutput{senderSpendable},
		receiverAddr, 100_000, senderAddr,
	)
	require.NoError(t, err)

	// The receiver adds one of its own coins and pays its value back to
	// itself, then signs the contributed input.
	contribution := newSpendable(t, 50_000, receiverAddr)
	augmented, err := proposal.Augment(
		sent, contribution,
		wire.NewTxOut(50_000, scriptForAddress(t, receiverAddr)),
	)
	require.NoError(t, err)

	augmentedB64, err := augmented.Serialize()
	require.NoError(t, err)
	respondedB64, err := receiver.SignProposal(ctx, &fakeExplorer{}, augmentedB64)
	require.NoError(t, err)
	received, err := proposal.Parse(respondedB64)
	require.NoError(t, err)

	t.Run("finalizes a valid signed response", func(t *testing.T) {
		txid, rawHex, err := finalizer.Finalize(
			ctx, received, sent, sender, &fakeExplorer{},
		)
		require.NoError(t, err)
		require.Len(t, txid, 64)
		require.NotEmpty(t, rawHex)

		var tx wire.MsgTx
		require.NoError(
			t, tx.Deserialize(hex.NewDecoder(strings.NewReader(rawHex))),
		)
		require.Equal(t, txid, tx.TxHash().String())
		require.Len(t, tx.TxIn, 2)
		require.Len(t, tx.TxOut, 3)
		for _, txIn := range tx.TxIn {
			require.Len(t, txIn.Witness, 2)
		}
	})

	t.Run("rejects a tampered response before signing", func(t *testing.T) {
		tampered, err := received.Copy()
		require.NoError(t, err)
		packet := tampered.Packet()
		packet.UnsignedTx.TxOut = packet.UnsignedTx.TxOut[:1]
		packet.Outputs = packet.Outputs[:1]

		// A locked wallet errors on signing, so reaching the signer
		// would change the failure. The containment check must fire
		// first.
		lockedWallet, _ := newTestWallet(t, ctx, false)

		_, _, err = finalizer.Finalize(
			ctx, tampered, sent, lockedWallet, &fakeExplorer{},
		)
		require.ErrorIs(t, err, common.ErrValidation)
		require.Contains(t, err.Error(), "missing from modified proposal")
	})

	t.Run("rejects when the counterparty input is unsigned", func(t *testing.T) {
		_, _, err := finalizer.Finalize(
			ctx, augmented, sent, sender, &fakeExplorer{},
		)
		require.ErrorIs(t, err, common.ErrProtocol)
	})

	t.Run("rejects when a sender input cannot be signed", func(t *testing.T) {
		_, strangerAddr := newTestWallet(t, ctx, true)

		foreignSent, err := proposal.NewBuilder(0, 0, nil, params).Build(
			[]proposal.SpendableOutput{newSpendable(t, 300_000, strangerAddr)},
			receiverAddr, 100_000, strangerAddr,
		)
		require.NoError(t, err)

		foreignAugmented, err := proposal.Augment(
			foreignSent, newSpendable(t, 50_000, receiverAddr),
			wire.NewTxOut(50_000, scriptForAddress(t, receiverAddr)),
		)
		require.NoError(t, err)
		foreignB64, err := foreignAugmented.Serialize()
		require.NoError(t, err)
		foreignResponded, err := receiver.SignProposal(
			ctx, &fakeExplorer{}, foreignB64,
		)
		require.NoError(t, err)
		foreignReceived, err := proposal.Parse(foreignResponded)
		require.NoError(t, err)

		// The sender wallet owns none of the inputs it claims to spend.
		_, _, err = finalizer.Finalize(
			ctx, foreignReceived, foreignSent, sender, &fakeExplorer{},
		)
		require.ErrorIs(t, err, common.ErrValidation)
		require.Contains(t, err.Error(), "lacks signing data")
	})

	t.Run("rejects missing proposals", func(t *testing.T) {
		_, _, err := finalizer.Finalize(ctx, nil, sent, sender, &fakeExplorer{})
		require.ErrorIs(t, err, common.ErrValidation)

		_, _, err = finalizer.Finalize(ctx, received, nil, sender, &fakeExplorer{})
		require.ErrorIs(t, err, common.ErrValidation)
	})
}

type fakeExplorer struct{}

func (e *fakeExplorer) GetTxHex(txid string) (string, error) {
	return "", fmt.Errorf("Transaction not found")
}

func (e *fakeExplorer) Broadcast(txHex string) (string, error) {
	return "", nil
}

func (e *fakeExplorer) GetUtxos(addr string) ([]explorer.Utxo, error) {
	return nil, nil
}

func (e *fakeExplorer) GetBalance(addr string) (uint64, error) {
	return 0, nil
}

func (e *fakeExplorer) GetTxBlockTime(txid string) (bool, int64, error) {
	return false, -1, nil
}

func (e *fakeExplorer) GetNetwork() common.Network {
	return common.BitcoinRegTest
}

func (e *fakeExplorer) BaseUrl() string {
	return ""
}
