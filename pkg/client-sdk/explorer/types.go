package explorer

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/payjoin-network/payjoin/pkg/client-sdk/proposal"
)

// Utxo is an unspent output as reported by the esplora API.
type Utxo struct {
	Txid   string `json:"txid"`
	Vout   uint32 `json:"vout"`
	Amount uint64 `json:"value"`
	Status struct {
		Confirmed bool  `json:"confirmed"`
		Blocktime int64 `json:"block_time"`
	} `json:"status"`
}

// ToSpendable resolves the utxo into a spendable output ready to be
// bound to a proposal, fetching the containing transaction from the
// given explorer.
func (u Utxo) ToSpendable(
	svc Explorer, addr string,
) (proposal.SpendableOutput, error) {
	txHex, err := svc.GetTxHex(u.Txid)
	if err != nil {
		return proposal.SpendableOutput{}, fmt.Errorf(
			"failed to fetch tx %s: %s", u.Txid, err,
		)
	}
	rawTx, err := hex.DecodeString(txHex)
	if err != nil {
		return proposal.SpendableOutput{}, fmt.Errorf(
			"invalid tx hex for %s: %s", u.Txid, err,
		)
	}

	return proposal.SpendableOutput{
		Txid:    u.Txid,
		VOut:    u.Vout,
		Value:   btcutil.Amount(u.Amount),
		Address: addr,
		RawTx:   rawTx,
	}, nil
}
