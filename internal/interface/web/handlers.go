package webservice

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/payjoin-network/payjoin/internal/core/application"
	"github.com/payjoin-network/payjoin/internal/core/domain"
)

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
	Sessions []sessionInfo `json:"sessions"`
}

type sessionInfo struct {
	SessionId string `json:"sessionId"`
	CreatedAt int64  `json:"createdAt"`
}

type errorResponse struct {
	Message string `json:"message"`
}

type sessionHandler struct {
	appSvc application.Service
}

func NewRouter(appSvc application.Service) http.Handler {
	h := &sessionHandler{appSvc}

	router := mux.NewRouter()
	router.HandleFunc("/v1/sessions", h.registerSession).Methods(http.MethodPost)
	router.HandleFunc("/v1/sessions", h.listSessions).Methods(http.MethodGet)
	router.HandleFunc("/v1/sessions/{id}", h.claimResponse).Methods(http.MethodGet)
	router.HandleFunc("/v1/sessions/{id}/proposal", h.getSessionProposal).Methods(http.MethodGet)
	router.HandleFunc("/v1/sessions/{id}/response", h.completeSession).Methods(http.MethodPost)
	return router
}

func (h *sessionHandler) registerSession(w http.ResponseWriter, r *http.Request) {
	req := sessionRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Proposal) <= 0 {
		writeError(w, http.StatusBadRequest, "missing proposal")
		return
	}
	if len(req.Address) <= 0 {
		writeError(w, http.StatusBadRequest, "missing address")
		return
	}

	sessionId, err := h.appSvc.RegisterSession(r.Context(), req.Proposal, req.Address)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{SessionId: sessionId})
}

func (h *sessionHandler) claimResponse(w http.ResponseWriter, r *http.Request) {
	sessionId := mux.Vars(r)["id"]

	response, err := h.appSvc.ClaimResponse(r.Context(), sessionId)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, proposalResponse{Proposal: response})
}

func (h *sessionHandler) listSessions(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if len(address) <= 0 {
		writeError(w, http.StatusBadRequest, "missing address")
		return
	}

	sessions, err := h.appSvc.GetPendingSessions(r.Context(), address)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	infos := make([]sessionInfo, 0, len(sessions))
	for _, session := range sessions {
		infos = append(infos, sessionInfo{session.Id, session.CreatedAt})
	}
	writeJSON(w, http.StatusOK, sessionListResponse{Sessions: infos})
}

func (h *sessionHandler) getSessionProposal(w http.ResponseWriter, r *http.Request) {
	sessionId := mux.Vars(r)["id"]

	proposal, err := h.appSvc.GetSessionProposal(r.Context(), sessionId)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, proposalResponse{Proposal: proposal})
}

func (h *sessionHandler) completeSession(w http.ResponseWriter, r *http.Request) {
	sessionId := mux.Vars(r)["id"]

	req := sessionRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Proposal) <= 0 {
		writeError(w, http.StatusBadRequest, "missing proposal")
		return
	}

	if err := h.appSvc.CompleteSession(r.Context(), sessionId, req.Proposal); err != nil {
		switch {
		case errors.Is(err, domain.ErrSessionNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, domain.ErrSessionAlreadyCompleted):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, struct{}{})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// nolint:all
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}
