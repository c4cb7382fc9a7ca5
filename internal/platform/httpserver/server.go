package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	proposalengine "agora/contexts/governance-core/proposal-engine"
	governanceerrors "agora/contexts/governance-core/proposal-engine/domain/errors"
	governancehttp "agora/contexts/governance-core/proposal-engine/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "agora/internal/platform/httpserver/docs"
)

type Server struct {
	mux        *http.ServeMux
	logger     *slog.Logger
	addr       string
	governance proposalengine.Module
}

func New(governance proposalengine.Module, logger *slog.Logger, addr string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:        http.NewServeMux(),
		logger:     logger,
		addr:       addr,
		governance: governance,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /api/governance/v1/proposals", s.handleCreateProposal)
	s.mux.HandleFunc("GET /api/governance/v1/proposals", s.handleListProposals)
	s.mux.HandleFunc("GET /api/governance/v1/proposals/{proposal_id}", s.handleGetProposal)
	s.mux.HandleFunc("PATCH /api/governance/v1/proposals/{proposal_id}", s.handleUpdateProposal)
	s.mux.HandleFunc("POST /api/governance/v1/proposals/{proposal_id}/options", s.handleAddOption)
	s.mux.HandleFunc("DELETE /api/governance/v1/proposals/{proposal_id}/options/{option_id}", s.handleDeleteOption)
	s.mux.HandleFunc("POST /api/governance/v1/proposals/{proposal_id}/open", s.handleOpenProposal)
	s.mux.HandleFunc("POST /api/governance/v1/proposals/{proposal_id}/close", s.handleCloseProposal)
	s.mux.HandleFunc("POST /api/governance/v1/proposals/{proposal_id}/finalize", s.handleFinalizeProposal)
	s.mux.HandleFunc("POST /api/governance/v1/proposals/{proposal_id}/votes", s.handleCastVote)
	s.mux.HandleFunc("GET /api/governance/v1/proposals/{proposal_id}/results", s.handleResults)
}

func (s *Server) handleCreateProposal(w http.ResponseWriter, r *http.Request) {
	userID := resolveUserID(r)
	if userID == "" {
		writeGovernanceError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req governancehttp.CreateProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGovernanceError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.governance.Handler.CreateProposalHandler(r.Context(), userID, req)
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListProposals(w http.ResponseWriter, r *http.Request) {
	organizationID := r.URL.Query().Get("organization_id")
	if strings.TrimSpace(organizationID) == "" {
		writeGovernanceError(w, http.StatusBadRequest, "missing_organization", "organization_id query parameter is required")
		return
	}

	resp, err := s.governance.Handler.ListProposalsHandler(r.Context(), organizationID)
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	proposalID := r.PathValue("proposal_id")
	resp, err := s.governance.Handler.GetProposalHandler(r.Context(), proposalID)
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateProposal(w http.ResponseWriter, r *http.Request) {
	var req governancehttp.UpdateProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGovernanceError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	proposalID := r.PathValue("proposal_id")
	resp, err := s.governance.Handler.UpdateProposalHandler(r.Context(), proposalID, req)
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddOption(w http.ResponseWriter, r *http.Request) {
	var req governancehttp.AddOptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGovernanceError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	proposalID := r.PathValue("proposal_id")
	resp, err := s.governance.Handler.AddOptionHandler(r.Context(), proposalID, req)
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleDeleteOption(w http.ResponseWriter, r *http.Request) {
	proposalID := r.PathValue("proposal_id")
	optionID := r.PathValue("option_id")
	if err := s.governance.Handler.DeleteOptionHandler(r.Context(), proposalID, optionID); err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOpenProposal(w http.ResponseWriter, r *http.Request) {
	proposalID := r.PathValue("proposal_id")
	resp, err := s.governance.Handler.OpenProposalHandler(r.Context(), proposalID)
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCloseProposal(w http.ResponseWriter, r *http.Request) {
	proposalID := r.PathValue("proposal_id")
	resp, err := s.governance.Handler.CloseProposalHandler(r.Context(), proposalID)
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFinalizeProposal(w http.ResponseWriter, r *http.Request) {
	proposalID := r.PathValue("proposal_id")
	resp, err := s.governance.Handler.FinalizeProposalHandler(r.Context(), proposalID)
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	userID := resolveUserID(r)
	if userID == "" {
		writeGovernanceError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req governancehttp.CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGovernanceError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	proposalID := r.PathValue("proposal_id")
	resp, err := s.governance.Handler.CastVoteHandler(r.Context(), userID, proposalID, req)
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	proposalID := r.PathValue("proposal_id")
	resp, err := s.governance.Handler.ResultsHandler(r.Context(), proposalID)
	if err != nil {
		writeGovernanceDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeGovernanceDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, governanceerrors.ErrProposalNotFound):
		writeGovernanceError(w, http.StatusNotFound, "proposal_not_found", err.Error())
	case errors.Is(err, governanceerrors.ErrOptionNotFound):
		writeGovernanceError(w, http.StatusNotFound, "option_not_found", err.Error())
	case errors.Is(err, governanceerrors.ErrOrganizationNotFound):
		writeGovernanceError(w, http.StatusNotFound, "organization_not_found", err.Error())
	case errors.Is(err, governanceerrors.ErrInvalidTimeRange):
		writeGovernanceError(w, http.StatusUnprocessableEntity, "invalid_time_range", err.Error())
	case errors.Is(err, governanceerrors.ErrInvalidQuorumRequirement):
		writeGovernanceError(w, http.StatusUnprocessableEntity, "invalid_quorum_requirement", err.Error())
	case errors.Is(err, governanceerrors.ErrInsufficientOptions):
		writeGovernanceError(w, http.StatusUnprocessableEntity, "insufficient_options", err.Error())
	case errors.Is(err, governanceerrors.ErrInvalidInput):
		writeGovernanceError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, governanceerrors.ErrInvalidTransition):
		writeGovernanceError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, governanceerrors.ErrProposalNotOpen):
		writeGovernanceError(w, http.StatusConflict, "proposal_not_open", err.Error())
	case errors.Is(err, governanceerrors.ErrOutsideVotingWindow):
		writeGovernanceError(w, http.StatusConflict, "outside_voting_window", err.Error())
	case errors.Is(err, governanceerrors.ErrDuplicateVote):
		writeGovernanceError(w, http.StatusConflict, "duplicate_vote", err.Error())
	case errors.Is(err, governanceerrors.ErrOptionHasVotes),
		errors.Is(err, governanceerrors.ErrOptionNotDeletable):
		writeGovernanceError(w, http.StatusConflict, "option_not_deletable", err.Error())
	case errors.Is(err, governanceerrors.ErrNotEligible):
		writeGovernanceError(w, http.StatusForbidden, "not_eligible", err.Error())
	case errors.Is(err, governanceerrors.ErrConflict):
		writeGovernanceError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writeGovernanceError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeGovernanceError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, governancehttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func resolveUserID(r *http.Request) string {
	if fromHeader := strings.TrimSpace(r.Header.Get("X-User-Id")); fromHeader != "" {
		return fromHeader
	}
	return strings.TrimSpace(r.Header.Get("X-Subject-Id"))
}
