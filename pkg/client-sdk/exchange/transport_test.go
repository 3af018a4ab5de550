package exchange_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/payjoin-network/payjoin/pkg/client-sdk/exchange"
)

// fakeDirectory is an in-memory stand-in for the directory daemon,
// speaking the same JSON wire format.
type fakeDirectory struct {
	mtx      sync.Mutex
	sessions map[string]*fakeDirectorySession
}

type fakeDirectorySession struct {
	proposal  string
	address   string
	response  string
	createdAt int64
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{sessions: make(map[string]*fakeDirectorySession)}
}

func (d *fakeDirectory) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sessions", d.create)
	mux.HandleFunc("GET /v1/sessions", d.list)
	mux.HandleFunc("GET /v1/sessions/{id}", d.claim)
	mux.HandleFunc("GET /v1/sessions/{id}/proposal", d.proposal)
	mux.HandleFunc("POST /v1/sessions/{id}/response", d.respond)
	return mux
}

func (d *fakeDirectory) create(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Proposal string `json:"proposal"`
		Address  string `json:"address"`
	}{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Proposal == "" {
		http.Error(w, "missing proposal", http.StatusBadRequest)
		return
	}

	d.mtx.Lock()
	defer d.mtx.Unlock()

	id := uuid.NewString()
	d.sessions[id] = &fakeDirectorySession{
		proposal:  req.Proposal,
		address:   req.Address,
		createdAt: time.Now().Unix(),
	}
	// nolint:all
	json.NewEncoder(w).Encode(map[string]string{"sessionId": id})
}

func (d *fakeDirectory) list(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")

	d.mtx.Lock()
	defer d.mtx.Unlock()

	type info struct {
		SessionId string `json:"sessionId"`
		CreatedAt int64  `json:"createdAt"`
	}
	infos := make([]info, 0)
	for id, s := range d.sessions {
		if s.address == address && s.response == "" {
			infos = append(infos, info{SessionId: id, CreatedAt: s.createdAt})
		}
	}
	// nolint:all
	json.NewEncoder(w).Encode(map[string]interface{}{"sessions": infos})
}

func (d *fakeDirectory) claim(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	d.mtx.Lock()
	defer d.mtx.Unlock()

	s, ok := d.sessions[id]
	if !ok || s.response == "" {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	delete(d.sessions, id)
	// nolint:all
	json.NewEncoder(w).Encode(map[string]string{"proposal": s.response})
}

func (d *fakeDirectory) proposal(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	d.mtx.Lock()
	defer d.mtx.Unlock()

	s, ok := d.sessions[id]
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	// nolint:all
	json.NewEncoder(w).Encode(map[string]string{"proposal": s.proposal})
}

func (d *fakeDirectory) respond(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	req := struct {
		Proposal string `json:"proposal"`
	}{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Proposal == "" {
		http.Error(w, "missing proposal", http.StatusBadRequest)
		return
	}

	d.mtx.Lock()
	defer d.mtx.Unlock()

	s, ok := d.sessions[id]
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if s.response != "" {
		http.Error(w, "session already completed", http.StatusBadRequest)
		return
	}
	s.response = req.Proposal
	w.WriteHeader(http.StatusOK)
}

func TestRestTransport(t *testing.T) {
	ctx := context.Background()
	directory := newFakeDirectory()
	srv := httptest.NewServer(directory.handler())
	defer srv.Close()

	transport, err := exchange.NewRestTransport(srv.URL)
	require.NoError(t, err)
	require.NotNil(t, transport)

	t.Run("submit and claim", func(t *testing.T) {
		sessionID, err := transport.Submit(ctx, "sender-proposal", testReceiverAddr)
		require.NoError(t, err)
		require.NotEmpty(t, sessionID)

		// Nothing to claim until the receiver responds.
		_, found, err := transport.Retrieve(ctx, sessionID)
		require.NoError(t, err)
		require.False(t, found)

		err = transport.SubmitResponse(ctx, sessionID, "receiver-proposal")
		require.NoError(t, err)

		payload, found, err := transport.Retrieve(ctx, sessionID)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "receiver-proposal", payload)

		// The claim consumed the session.
		_, found, err = transport.Retrieve(ctx, sessionID)
		require.NoError(t, err)
		require.False(t, found)
	})

	t.Run("receiver discovery", func(t *testing.T) {
		otherAddr := "bcrt1qrp33g0q5c5txsp9arysrx4k6zdkfs4nce4xj0gdcccefvpysxf3qzf4jry"

		sessionID, err := transport.Submit(ctx, "sender-proposal", testReceiverAddr)
		require.NoError(t, err)
		_, err = transport.Submit(ctx, "other-proposal", otherAddr)
		require.NoError(t, err)

		sessions, err := transport.GetPendingSessions(ctx, testReceiverAddr)
		require.NoError(t, err)
		require.Len(t, sessions, 1)
		require.Equal(t, sessionID, sessions[0].ID)
		require.NotZero(t, sessions[0].CreatedAt)

		original, err := transport.GetSessionProposal(ctx, sessionID)
		require.NoError(t, err)
		require.Equal(t, "sender-proposal", original)

		err = transport.SubmitResponse(ctx, sessionID, "receiver-proposal")
		require.NoError(t, err)

		// Responded sessions are no longer pending.
		sessions, err = transport.GetPendingSessions(ctx, testReceiverAddr)
		require.NoError(t, err)
		require.Empty(t, sessions)

		// Double completion is rejected.
		err = transport.SubmitResponse(ctx, sessionID, "receiver-proposal")
		require.Error(t, err)
	})

	t.Run("unknown session", func(t *testing.T) {
		unknown := uuid.NewString()

		_, err := transport.GetSessionProposal(ctx, unknown)
		require.Error(t, err)

		err = transport.SubmitResponse(ctx, unknown, "receiver-proposal")
		require.Error(t, err)
		require.Contains(t, err.Error(), "not found")
	})

	t.Run("directory failure", func(t *testing.T) {
		failing := httptest.NewServer(http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "internal error", http.StatusInternalServerError)
			},
		))
		defer failing.Close()

		failingTransport, err := exchange.NewRestTransport(failing.URL)
		require.NoError(t, err)

		_, err = failingTransport.Submit(ctx, "sender-proposal", testReceiverAddr)
		require.Error(t, err)

		_, _, err = failingTransport.Retrieve(ctx, uuid.NewString())
		require.Error(t, err)
	})

	t.Run("invalid relay url", func(t *testing.T) {
		_, err := exchange.NewRestTransport("")
		require.Error(t, err)

		_, err = exchange.NewRestTransport("localhost:7070")
		require.Error(t, err)
	})
}
