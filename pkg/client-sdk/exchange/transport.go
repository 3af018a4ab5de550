package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// RelayTransport is the sender's wire surface of the directory: submit
// one proposal, later claim the counterparty's response. An encrypted
// relay only has to provide another implementation of this interface.
type RelayTransport interface {
	Submit(ctx context.Context, proposal, address string) (sessionID string, err error)
	// Retrieve claims the response of a session. found reports whether
	// the directory had one stored; a successful claim consumes it, so
	// repeating the call observes not-found.
	Retrieve(ctx context.Context, sessionID string) (response string, found bool, err error)
}

// ReceiverTransport is the receiver's wire surface of the directory:
// discover pending sessions addressed to self, fetch their proposals
// and post back augmented responses.
type ReceiverTransport interface {
	GetPendingSessions(ctx context.Context, address string) ([]SessionInfo, error)
	GetSessionProposal(ctx context.Context, sessionID string) (string, error)
	SubmitResponse(ctx context.Context, sessionID, response string) error
}

// Transport bundles both sides for clients playing either role against
// the same directory.
type Transport interface {
	RelayTransport
	ReceiverTransport
}

// SessionInfo is the discovery view of a pending session. CreatedAt is
// unix seconds.
type SessionInfo struct {
	ID        string
	CreatedAt int64
}

type sessionRequest struct {
	Proposal string `json:"proposal"`
	Address  string `json:"address,omitempty"`
}

type sessionResponse struct {
	SessionId string `json:"sessionId"`
}

type proposalResponse struct {
	Proposal string `json:"proposal"`
}

type sessionListResponse struct {
	Sessions []sessionInfoResponse `json:"sessions"`
}

type sessionInfoResponse struct {
	SessionId string `json:"sessionId"`
	CreatedAt int64  `json:"createdAt"`
}

type restTransport struct {
	baseUrl string
	client  *http.Client
}

func NewRestTransport(relayUrl string) (Transport, error) {
	if len(relayUrl) <= 0 {
		return nil, fmt.Errorf("missing relay url")
	}
	parsed, err := url.Parse(relayUrl)
	if err != nil {
		return nil, fmt.Errorf("invalid relay url: %s", err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("relay url must be an absolute http(s) url, got %s", relayUrl)
	}
	return &restTransport{
		baseUrl: strings.TrimSuffix(relayUrl, "/"),
		client:  &http.Client{},
	}, nil
}

func (t *restTransport) Submit(
	ctx context.Context, proposal, address string,
) (string, error) {
	body, err := json.Marshal(sessionRequest{Proposal: proposal, Address: address})
	if err != nil {
		return "", err
	}

	resBody, err := t.post(ctx, fmt.Sprintf("%s/v1/sessions", t.baseUrl), body)
	if err != nil {
		return "", err
	}

	res := sessionResponse{}
	if err := json.Unmarshal(resBody, &res); err != nil {
		return "", err
	}
	if len(res.SessionId) <= 0 {
		return "", fmt.Errorf("directory returned no session id")
	}
	return res.SessionId, nil
}

func (t *restTransport) Retrieve(
	ctx context.Context, sessionID string,
) (string, bool, error) {
	status, body, err := t.get(
		ctx, fmt.Sprintf("%s/v1/sessions/%s", t.baseUrl, sessionID),
	)
	if err != nil {
		return "", false, err
	}
	if status == http.StatusNotFound {
		return "", false, nil
	}
	if status != http.StatusOK {
		return "", false, fmt.Errorf(string(body))
	}

	res := proposalResponse{}
	if err := json.Unmarshal(body, &res); err != nil {
		return "", false, err
	}
	return res.Proposal, true, nil
}

func (t *restTransport) GetPendingSessions(
	ctx context.Context, address string,
) ([]SessionInfo, error) {
	status, body, err := t.get(
		ctx, fmt.Sprintf("%s/v1/sessions?address=%s", t.baseUrl, url.QueryEscape(address)),
	)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf(string(body))
	}

	res := sessionListResponse{}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, err
	}

	sessions := make([]SessionInfo, 0, len(res.Sessions))
	for _, s := range res.Sessions {
		sessions = append(sessions, SessionInfo{
			ID:        s.SessionId,
			CreatedAt: s.CreatedAt,
		})
	}
	return sessions, nil
}

func (t *restTransport) GetSessionProposal(
	ctx context.Context, sessionID string,
) (string, error) {
	status, body, err := t.get(
		ctx, fmt.Sprintf("%s/v1/sessions/%s/proposal", t.baseUrl, sessionID),
	)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf(string(body))
	}

	res := proposalResponse{}
	if err := json.Unmarshal(body, &res); err != nil {
		return "", err
	}
	return res.Proposal, nil
}

func (t *restTransport) SubmitResponse(
	ctx context.Context, sessionID, response string,
) error {
	body, err := json.Marshal(sessionRequest{Proposal: response})
	if err != nil {
		return err
	}

	_, err = t.post(
		ctx, fmt.Sprintf("%s/v1/sessions/%s/response", t.baseUrl, sessionID), body,
	)
	return err
}

func (t *restTransport) get(
	ctx context.Context, url string,
) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, err
	}

	res, err := t.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	// nolint:all
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, nil, err
	}
	return res.StatusCode, body, nil
}

func (t *restTransport) post(
	ctx context.Context, url string, body []byte,
) ([]byte, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, url, bytes.NewBuffer(body),
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	// nolint:all
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(string(resBody))
	}
	return resBody, nil
}
