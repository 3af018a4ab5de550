package proposal

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txrules"

	"github.com/payjoin-network/payjoin/common"
)

// Augment returns a copy of original extended with one bound input and
// one output, the counterparty's contribution to the exchange. The
// original inputs and outputs are untouched, so the result stays a
// structural superset of what the sender proposed.
func Augment(
	original *Proposal, contribution SpendableOutput, out *wire.TxOut,
) (*Proposal, error) {
	if out == nil {
		return nil, fmt.Errorf("%w: missing contributed output", common.ErrValidation)
	}
	if txrules.IsDustOutput(out, txrules.DefaultRelayFeePerKb) {
		return nil, fmt.Errorf(
			"%w: contributed output of %d is dust", common.ErrValidation, out.Value,
		)
	}

	outpoint, err := contribution.OutPoint()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrValidation, err)
	}
	prevout, err := contribution.PrevOut()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrValidation, err)
	}

	augmented, err := original.Copy()
	if err != nil {
		return nil, err
	}

	updater, err := psbt.NewUpdater(augmented.packet)
	if err != nil {
		return nil, err
	}

	updater.Upsbt.UnsignedTx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: *outpoint,
		Sequence:         wire.MaxTxInSequenceNum,
	})
	updater.Upsbt.Inputs = append(updater.Upsbt.Inputs, psbt.PInput{})
	index := len(updater.Upsbt.Inputs) - 1
	if err := updater.AddInWitnessUtxo(prevout, index); err != nil {
		return nil, err
	}
	if err := updater.AddInSighashType(txscript.SigHashAll, index); err != nil {
		return nil, err
	}

	updater.Upsbt.UnsignedTx.AddTxOut(out)
	updater.Upsbt.Outputs = append(updater.Upsbt.Outputs, psbt.POutput{})

	return augmented, nil
}
