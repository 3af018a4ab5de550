package finalizer

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"

	"github.com/payjoin-network/payjoin/common"
	"github.com/payjoin-network/payjoin/pkg/client-sdk/explorer"
	"github.com/payjoin-network/payjoin/pkg/client-sdk/proposal"
	"github.com/payjoin-network/payjoin/pkg/client-sdk/wallet"
)

// Finalize turns the counterparty's augmented proposal into a
// broadcastable transaction. The received proposal is verified against
// the sent one before any signature is produced, so a tampered
// counterparty response never gets signed. Returns the txid and the
// serialized transaction in hex.
func Finalize(
	ctx context.Context, received, sent *proposal.Proposal,
	signer wallet.WalletService, explorerSvc explorer.Explorer,
) (string, string, error) {
	if sent == nil || received == nil {
		return "", "", fmt.Errorf("%w: missing proposal", common.ErrValidation)
	}

	if err := proposal.VerifyContains(sent, received); err != nil {
		return "", "", err
	}

	b64, err := received.Serialize()
	if err != nil {
		return "", "", err
	}

	signedB64, err := signer.SignProposal(ctx, explorerSvc, b64)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s", common.ErrValidation, err)
	}

	signed, err := psbt.NewFromRawBytes(strings.NewReader(signedB64), true)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse signed proposal: %s", err)
	}

	// Every input the sender contributed must carry signing data now;
	// anything else means the wallet does not own what it claimed to
	// spend.
	sentOutpoints := make(map[wire.OutPoint]struct{})
	for _, outpoint := range sent.InputOutPoints() {
		sentOutpoints[outpoint] = struct{}{}
	}
	for i, txIn := range signed.UnsignedTx.TxIn {
		if _, ok := sentOutpoints[txIn.PreviousOutPoint]; !ok {
			continue
		}
		input := signed.Inputs[i]
		if len(input.PartialSigs) <= 0 && len(input.FinalScriptWitness) <= 0 {
			return "", "", fmt.Errorf(
				"%w: input %s lacks signing data",
				common.ErrValidation, txIn.PreviousOutPoint.String(),
			)
		}
	}

	if err := psbt.MaybeFinalizeAll(signed); err != nil {
		return "", "", fmt.Errorf(
			"%w: failed to finalize proposal: %s", common.ErrProtocol, err,
		)
	}

	extracted, err := psbt.Extract(signed)
	if err != nil {
		return "", "", fmt.Errorf(
			"%w: failed to extract transaction: %s", common.ErrProtocol, err,
		)
	}

	var serialized bytes.Buffer
	if err := extracted.Serialize(&serialized); err != nil {
		return "", "", fmt.Errorf("failed to serialize transaction: %s", err)
	}

	return extracted.TxHash().String(), hex.EncodeToString(serialized.Bytes()), nil
}
