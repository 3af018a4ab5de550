package proposal

import (
	"fmt"

	"github.com/btcsuite/btcd/wire"

	"github.com/payjoin-network/payjoin/common"
)

type outputKey struct {
	script string
	value  int64
}

// VerifyContains checks that received is a structural superset of sent:
// every input bound and every output proposed by the sender must still
// be present, unchanged. The counterparty may only add. Matching is
// set-based, so reordering is tolerated.
func VerifyContains(sent, received *Proposal) error {
	inputs := make(map[wire.OutPoint]struct{}, len(received.InputOutPoints()))
	for _, outpoint := range received.InputOutPoints() {
		inputs[outpoint] = struct{}{}
	}
	for _, outpoint := range sent.InputOutPoints() {
		if _, ok := inputs[outpoint]; !ok {
			return fmt.Errorf(
				"%w: input %s missing from modified proposal", common.ErrValidation, outpoint.String(),
			)
		}
	}

	outputs := make(map[outputKey]int, len(received.Outputs()))
	for _, out := range received.Outputs() {
		outputs[outputKey{string(out.PkScript), out.Value}]++
	}
	for _, out := range sent.Outputs() {
		key := outputKey{string(out.PkScript), out.Value}
		if outputs[key] <= 0 {
			return fmt.Errorf(
				"%w: output paying %d missing from modified proposal", common.ErrValidation, out.Value,
			)
		}
		outputs[key]--
	}

	return nil
}
