package proposal

import (
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/input"
	"github.com/lightningnetwork/lnd/lntypes"
)

// SizeEstimator predicts the virtual size of the finalized transaction
// so the fee can be computed before any signature exists.
type SizeEstimator interface {
	VSize(numInputs int, outputs []*wire.TxOut) lntypes.VByte
}

const DefaultVSize = lntypes.VByte(200)

// FlatEstimator ignores the transaction shape and always returns the
// same size. The default envelope of 200 vbytes is large enough for a
// typical two-in three-out exchange.
type FlatEstimator struct {
	Size lntypes.VByte
}

func NewFlatEstimator() FlatEstimator {
	return FlatEstimator{Size: DefaultVSize}
}

func (e FlatEstimator) VSize(int, []*wire.TxOut) lntypes.VByte {
	if e.Size <= 0 {
		return DefaultVSize
	}
	return e.Size
}

// WitnessEstimator derives the size from the actual transaction shape.
// Inputs are assumed to be P2WPKH. One extra P2WKH output is counted as
// room for a change output, since the fee is fixed before the change
// decision is made.
type WitnessEstimator struct{}

func (WitnessEstimator) VSize(numInputs int, outputs []*wire.TxOut) lntypes.VByte {
	weight := &input.TxWeightEstimator{}
	for i := 0; i < numInputs; i++ {
		weight.AddP2WKHInput()
	}
	for _, out := range outputs {
		switch txscript.GetScriptClass(out.PkScript) {
		case txscript.WitnessV1TaprootTy:
			weight.AddP2TROutput()
		case txscript.WitnessV0ScriptHashTy:
			weight.AddP2WSHOutput()
		case txscript.ScriptHashTy:
			weight.AddP2SHOutput()
		case txscript.PubKeyHashTy:
			weight.AddP2PKHOutput()
		default:
			weight.AddP2WKHOutput()
		}
	}
	weight.AddP2WKHOutput()

	return lntypes.VByte(weight.VSize())
}
