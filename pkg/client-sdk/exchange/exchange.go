package exchange

import (
	"context"

	"github.com/payjoin-network/payjoin/pkg/client-sdk/proposal"
)

const (
	DirectExchange  = "direct"
	RelayedExchange = "relayed"
)

// Strategy carries one proposal through a complete exchange with the
// counterparty and returns the proposal the counterparty produced in
// return. Implementations never retry across the exchange boundary;
// any retry is internal to the strategy itself.
type Strategy interface {
	GetType() string
	Exchange(ctx context.Context, sent *proposal.Proposal) (*proposal.Proposal, error)
}
