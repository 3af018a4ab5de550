package webservice_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/payjoin-network/payjoin/internal/core/application"
	"github.com/payjoin-network/payjoin/internal/infrastructure/db"
	timescheduler "github.com/payjoin-network/payjoin/internal/infrastructure/scheduler/gocron"
	webservice "github.com/payjoin-network/payjoin/internal/interface/web"
	"github.com/payjoin-network/payjoin/pkg/client-sdk/exchange"
	"github.com/stretchr/testify/require"
)

const (
	proposal = "cHNidP8BAgQCAAAAAQMEAAAAAAEEAQEBBQEC"
	response = "cHNidP8BAgQCAAAAAQMEAAAAAAEEAQIBBQED"
	address  = "bcrt1qe8nv9ggwmvr2lf2kacvjkw4pe4lh8fu82xlvwg"
)

var ctx = context.Background()

func setupServer(t *testing.T) *httptest.Server {
	repoManager, err := db.NewService(db.ServiceConfig{
		SessionStoreType: "inmemory",
	})
	require.NoError(t, err)

	appSvc, err := application.NewService(
		repoManager, timescheduler.NewScheduler(), 3600, 600,
	)
	require.NoError(t, err)

	srv := httptest.NewServer(webservice.NewRouter(appSvc))
	t.Cleanup(srv.Close)
	return srv
}

// The daemon is exercised through the client transport to pin down the
// wire contract both sides rely on.
func TestSessionRoundTrip(t *testing.T) {
	srv := setupServer(t)

	transport, err := exchange.NewRestTransport(srv.URL)
	require.NoError(t, err)

	sessionId, err := transport.Submit(ctx, proposal, address)
	require.NoError(t, err)
	require.NotEmpty(t, sessionId)

	// not claimable while pending
	_, found, err := transport.Retrieve(ctx, sessionId)
	require.NoError(t, err)
	require.False(t, found)

	sessions, err := transport.GetPendingSessions(ctx, address)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, sessionId, sessions[0].ID)
	require.Greater(t, sessions[0].CreatedAt, int64(0))

	got, err := transport.GetSessionProposal(ctx, sessionId)
	require.NoError(t, err)
	require.Equal(t, proposal, got)

	err = transport.SubmitResponse(ctx, sessionId, response)
	require.NoError(t, err)

	// a responded session is no longer discoverable
	sessions, err = transport.GetPendingSessions(ctx, address)
	require.NoError(t, err)
	require.Empty(t, sessions)

	err = transport.SubmitResponse(ctx, sessionId, response)
	require.Error(t, err)

	claimed, found, err := transport.Retrieve(ctx, sessionId)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, response, claimed)

	// the claim consumed the session
	_, found, err = transport.Retrieve(ctx, sessionId)
	require.NoError(t, err)
	require.False(t, found)

	_, err = transport.GetSessionProposal(ctx, sessionId)
	require.Error(t, err)
}

func TestHandlersRejectBadRequests(t *testing.T) {
	srv := setupServer(t)

	t.Run("register", func(t *testing.T) {
		fixtures := []struct {
			name string
			body string
		}{
			{"malformed body", "not json"},
			{"missing proposal", fmt.Sprintf(`{"address":%q}`, address)},
			{"missing address", fmt.Sprintf(`{"proposal":%q}`, proposal)},
		}
		for _, f := range fixtures {
			t.Run(f.name, func(t *testing.T) {
				res, err := http.Post(
					srv.URL+"/v1/sessions", "application/json", strings.NewReader(f.body),
				)
				require.NoError(t, err)
				// nolint:all
				defer res.Body.Close()
				require.Equal(t, http.StatusBadRequest, res.StatusCode)
			})
		}
	})

	t.Run("list_without_address", func(t *testing.T) {
		res, err := http.Get(srv.URL + "/v1/sessions")
		require.NoError(t, err)
		// nolint:all
		defer res.Body.Close()
		require.Equal(t, http.StatusBadRequest, res.StatusCode)
	})

	t.Run("claim_unknown_session", func(t *testing.T) {
		res, err := http.Get(srv.URL + "/v1/sessions/unknown")
		require.NoError(t, err)
		// nolint:all
		defer res.Body.Close()
		require.Equal(t, http.StatusNotFound, res.StatusCode)

		var body map[string]string
		require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
		require.Contains(t, body["message"], "not found")
	})

	t.Run("respond_to_unknown_session", func(t *testing.T) {
		res, err := http.Post(
			srv.URL+"/v1/sessions/unknown/response", "application/json",
			strings.NewReader(fmt.Sprintf(`{"proposal":%q}`, response)),
		)
		require.NoError(t, err)
		// nolint:all
		defer res.Body.Close()
		require.Equal(t, http.StatusNotFound, res.StatusCode)
	})
}
