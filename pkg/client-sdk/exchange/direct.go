package exchange

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/payjoin-network/payjoin/common"
	"github.com/payjoin-network/payjoin/pkg/client-sdk/proposal"
)

// directStrategy is the synchronous variant: one POST of the serialized
// proposal to the counterparty endpoint, the response parsed from the
// reply body. No retry on any failure.
type directStrategy struct {
	endpoint string
	client   *http.Client
}

func NewDirectStrategy(endpoint string) (Strategy, error) {
	if len(endpoint) <= 0 {
		return nil, fmt.Errorf("missing counterparty endpoint")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid counterparty endpoint: %s", err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf(
			"counterparty endpoint must be an absolute http(s) url, got %s", endpoint,
		)
	}
	return &directStrategy{endpoint: endpoint, client: &http.Client{}}, nil
}

func (s *directStrategy) GetType() string {
	return DirectExchange
}

func (s *directStrategy) Exchange(
	ctx context.Context, sent *proposal.Proposal,
) (*proposal.Proposal, error) {
	b64, err := sent.Serialize()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, s.endpoint, strings.NewReader(b64),
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/plain")

	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrNetwork, err)
	}
	// nolint:all
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrNetwork, err)
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf(
			"%w: counterparty replied with status %d: %s",
			common.ErrProtocol, res.StatusCode, strings.TrimSpace(string(body)),
		)
	}

	received, err := proposal.Parse(strings.TrimSpace(string(body)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrProtocol, err)
	}

	log.Debugf("direct exchange with %s completed", s.endpoint)
	return received, nil
}
