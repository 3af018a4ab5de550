package proposal

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/lnwallet/chainfee"

	"github.com/payjoin-network/payjoin/common"
)

// Builder assembles the sender's original proposal. Every spendable
// output it is given becomes an input; there is no coin selection.
type Builder struct {
	feeRate   chainfee.SatPerKVByte
	dust      btcutil.Amount
	estimator SizeEstimator
	params    *chaincfg.Params
}

func NewBuilder(
	feeRate chainfee.SatPerKVByte, dust btcutil.Amount,
	estimator SizeEstimator, params *chaincfg.Params,
) *Builder {
	if feeRate <= 0 {
		feeRate = common.DefaultFeeRate
	}
	if dust <= 0 {
		dust = common.DustLimit
	}
	if estimator == nil {
		estimator = NewFlatEstimator()
	}
	if params == nil {
		params = &chaincfg.MainNetParams
	}
	return &Builder{feeRate, dust, estimator, params}
}

// Build binds all spendables as inputs, pays amount to receiverAddr and
// returns any excess above fee to changeAddr, unless the excess is at
// or below the dust threshold, in which case it is left to the fee.
func (b *Builder) Build(
	spendables []SpendableOutput, receiverAddr string,
	amount btcutil.Amount, changeAddr string,
) (*Proposal, error) {
	if len(spendables) <= 0 {
		return nil, fmt.Errorf("%w: no spendable outputs", common.ErrInsufficientFunds)
	}
	if amount <= b.dust {
		return nil, fmt.Errorf(
			"%w: amount %d at or below dust threshold %d", common.ErrValidation, amount, b.dust,
		)
	}

	receiverScript, err := b.outputScript(receiverAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid receiver address: %s", common.ErrValidation, err)
	}
	changeScript, err := b.outputScript(changeAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid change address: %s", common.ErrValidation, err)
	}

	ptx, err := psbt.New(nil, nil, 2, 0, nil)
	if err != nil {
		return nil, err
	}
	updater, err := psbt.NewUpdater(ptx)
	if err != nil {
		return nil, err
	}

	inputTotal := btcutil.Amount(0)
	for _, spendable := range spendables {
		outpoint, err := spendable.OutPoint()
		if err != nil {
			return nil, fmt.Errorf("%w: %s", common.ErrValidation, err)
		}
		prevout, err := spendable.PrevOut()
		if err != nil {
			return nil, fmt.Errorf("%w: %s", common.ErrValidation, err)
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

		inputTotal += btcutil.Amount(prevout.Value)
	}

	outs := []*wire.TxOut{{Value: int64(amount), PkScript: receiverScript}}

	fee := common.ComputeFee(b.feeRate, b.estimator.VSize(len(spendables), outs))
	if inputTotal < amount+fee {
		return nil, fmt.Errorf(
			"%w: inputs %d do not cover amount %d plus fee %d",
			common.ErrInsufficientFunds, inputTotal, amount, fee,
		)
	}

	if change := inputTotal - amount - fee; change > b.dust {
		outs = append(outs, &wire.TxOut{Value: int64(change), PkScript: changeScript})
	}

	for _, out := range outs {
		updater.Upsbt.UnsignedTx.AddTxOut(out)
		updater.Upsbt.Outputs = append(updater.Upsbt.Outputs, psbt.POutput{})
	}

	return &Proposal{updater.Upsbt}, nil
}

func (b *Builder) outputScript(addr string) ([]byte, error) {
	decoded, err := btcutil.DecodeAddress(addr, b.params)
	if err != nil {
		return nil, err
	}
	if !decoded.IsForNet(b.params) {
		return nil, fmt.Errorf("address %s is not for network %s", addr, b.params.Name)
	}
	return txscript.PayToAddrScript(decoded)
}
