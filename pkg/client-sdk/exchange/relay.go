package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	log "github.com/sirupsen/logrus"

	"github.com/payjoin-network/payjoin/common"
	"github.com/payjoin-network/payjoin/pkg/client-sdk/proposal"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultMaxAttempts  = 10
)

// relayedStrategy is the asynchronous variant: submit the proposal to a
// relay directory once, then poll for the counterparty's response with
// a bounded number of attempts. Submit failures are fatal; retry lives
// only inside the poll loop.
type relayedStrategy struct {
	transport    RelayTransport
	address      string
	pollInterval time.Duration
	maxAttempts  int
	clock        clock.Clock
}

func NewRelayedStrategy(
	transport RelayTransport, address string,
	pollInterval time.Duration, maxAttempts int, clk clock.Clock,
) (Strategy, error) {
	if transport == nil {
		return nil, fmt.Errorf("missing relay transport")
	}
	if len(address) <= 0 {
		return nil, fmt.Errorf("missing receiver address")
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	return &relayedStrategy{transport, address, pollInterval, maxAttempts, clk}, nil
}

func (s *relayedStrategy) GetType() string {
	return RelayedExchange
}

func (s *relayedStrategy) Exchange(
	ctx context.Context, sent *proposal.Proposal,
) (*proposal.Proposal, error) {
	b64, err := sent.Serialize()
	if err != nil {
		return nil, err
	}

	session := NewSession(b64)

	sessionID, err := s.transport.Submit(ctx, b64, s.address)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrNetwork, err)
	}
	session.Submit(sessionID)

	log.Debugf("proposal submitted, session %s", sessionID)

	return s.poll(ctx, session)
}

// poll claims the session's response. The first attempt fires
// immediately; one poll interval of cooperative delay follows every
// failed attempt, the last one included, so exhaustion takes
// maxAttempts intervals in total. A session that was claimed but whose
// payload never parsed ends the run with that error instead of a
// timeout, since the claim already consumed the session.
func (s *relayedStrategy) poll(
	ctx context.Context, session *Session,
) (*proposal.Proposal, error) {
	var malformed error

	for session.Attempts < s.maxAttempts {
		attempt := session.Poll()

		payload, found, err := s.transport.Retrieve(ctx, session.ID)
		switch {
		case err != nil:
			log.WithError(err).Debugf(
				"session %s attempt %d/%d: transport failure",
				session.ID, attempt, s.maxAttempts,
			)
		case !found:
			log.Debugf(
				"session %s attempt %d/%d: not ready",
				session.ID, attempt, s.maxAttempts,
			)
		default:
			received, parseErr := proposal.Parse(payload)
			if parseErr == nil {
				session.MarkReady()
				session.Consume()
				log.Debugf(
					"session %s ready at attempt %d/%d",
					session.ID, attempt, s.maxAttempts,
				)
				return received, nil
			}
			malformed = fmt.Errorf("%w: %s", common.ErrProtocol, parseErr)
			log.WithError(parseErr).Warnf(
				"session %s attempt %d/%d: malformed response",
				session.ID, attempt, s.maxAttempts,
			)
		}

		select {
		case <-ctx.Done():
			session.Expire()
			return nil, ctx.Err()
		case <-s.clock.TickAfter(s.pollInterval):
		}
	}

	session.Expire()

	if malformed != nil {
		return nil, malformed
	}
	return nil, fmt.Errorf(
		"%w: no response after %d attempts", common.ErrTimeout, s.maxAttempts,
	)
}
