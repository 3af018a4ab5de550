package common

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwallet/chainfee"
)

// DustLimit is the smallest change value worth creating an output for.
// Anything at or below it is absorbed into the transaction fee.
const DustLimit = btcutil.Amount(546)

// DefaultFeeRate is the fee rate applied when none is configured,
// expressed in sat/kvB.
var DefaultFeeRate = chainfee.SatPerKVByte(txrules.DefaultRelayFeePerKb)

func ComputeFee(feeRate chainfee.SatPerKVByte, vsize lntypes.VByte) btcutil.Amount {
	return feeRate.FeeForVSize(vsize)
}
