package handler

import (
	"encoding/json"
	"net/http"

	"github.com/byggsak/be-cc-claims/internal/apperrors"
	"github.com/byggsak/be-cc-claims/internal/determine"
	"github.com/byggsak/be-cc-claims/internal/logger"
	"github.com/byggsak/be-cc-claims/internal/service"
)

// HTTPHandler handles HTTP requests
type HTTPHandler struct {
	claims    *service.ClaimService
	approvals *service.ApprovalService
	log       *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(claims *service.ClaimService, approvals *service.ApprovalService, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		claims:    claims,
		approvals: approvals,
		log:       log,
	}
}

// ── Cases and tracks ──────────────────────────────────────────────────────────

// CreateCase handles case creation requests.
func (h *HTTPHandler) CreateCase(w http.ResponseWriter, r *http.Request) {
	var req service.CreateCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	c, err := h.claims.CreateCase(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, c)
}

// GetCase handles case retrieval requests.
func (h *HTTPHandler) GetCase(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Case ID is required", http.StatusBadRequest)
		return
	}
	c, err := h.claims.GetCase(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, c)
}

// SubmitTrack handles claimant track submissions (create/update/withdraw).
func (h *HTTPHandler) SubmitTrack(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req service.SubmitTrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	res, err := h.claims.SubmitTrack(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// RespondTrack handles BH responses carrying a determination.
func (h *HTTPHandler) RespondTrack(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req service.RespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	var res *service.RespondResult
	var err error
	if req.Forsering != nil {
		res, err = h.claims.RespondForsering(r.Context(), &req)
	} else {
		res, err = h.claims.Respond(r.Context(), &req)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// ListRevisions returns a track's append-only revision chain.
func (h *HTTPHandler) ListRevisions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	trackID := r.URL.Query().Get("track_id")
	if trackID == "" {
		http.Error(w, "Track ID is required", http.StatusBadRequest)
		return
	}
	revs, err := h.claims.ListRevisions(r.Context(), trackID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, revs)
}

// ── Determination preview ─────────────────────────────────────────────────────

// previewRequest carries exactly one determination input.
type previewRequest struct {
	Frist     *determine.FristInput     `json:"frist,omitempty"`
	Vederlag  *determine.VederlagInput  `json:"vederlag,omitempty"`
	Forsering *determine.ForseringInput `json:"forsering,omitempty"`
}

type previewResponse struct {
	Determination interface{} `json:"determination"`
	Justification string      `json:"justification"`
}

// PreviewDetermination runs a pure determination without persisting.
func (h *HTTPHandler) PreviewDetermination(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var (
		det  interface{}
		text string
		err  error
	)
	switch {
	case req.Frist != nil:
		det, text, err = h.claims.PreviewFrist(*req.Frist)
	case req.Vederlag != nil:
		det, text, err = h.claims.PreviewVederlag(*req.Vederlag)
	case req.Forsering != nil:
		det, text, err = h.claims.PreviewForsering(*req.Forsering)
	default:
		http.Error(w, "One determination input is required", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, previewResponse{Determination: det, Justification: text})
}

// ── Approval packages ─────────────────────────────────────────────────────────

// SubmitPackage submits a response package for approval.
func (h *HTTPHandler) SubmitPackage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req service.SubmitPackageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	pkg, steps, err := h.approvals.SubmitPackage(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"package": pkg,
		"steps":   steps,
	})
}

// GetPackage returns a package with its chain steps.
func (h *HTTPHandler) GetPackage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Package ID is required", http.StatusBadRequest)
		return
	}
	pkg, steps, err := h.approvals.GetPackage(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"package": pkg,
		"steps":   steps,
	})
}

// ApproveStep signs off the current chain step.
func (h *HTTPHandler) ApproveStep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req service.StepActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	complete, err := h.approvals.ApproveStep(r.Context(), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"package_approved": complete})
}

// RejectStep rejects the current chain step with a mandatory reason.
func (h *HTTPHandler) RejectStep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req service.StepActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.approvals.RejectStep(r.Context(), &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"status": "rejected"})
}

// RestorePackage returns a rejected package to an editable state.
func (h *HTTPHandler) RestorePackage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		PackageID  string `json:"package_id"`
		RestoredBy string `json:"restored_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.approvals.RestorePackage(r.Context(), req.PackageID, req.RestoredBy); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"status": "draft"})
}

// ── Approvals queries ─────────────────────────────────────────────────────────

// PendingApprovals lists in-progress steps awaiting a role.
func (h *HTTPHandler) PendingApprovals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	role := r.URL.Query().Get("role")
	if role == "" {
		http.Error(w, "Role is required", http.StatusBadRequest)
		return
	}
	steps, err := h.approvals.GetPendingApprovals(r.Context(), role)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, steps)
}

// ApprovalHistory returns the full audit trail for a case.
func (h *HTTPHandler) ApprovalHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	caseID := r.URL.Query().Get("case_id")
	if caseID == "" {
		http.Error(w, "Case ID is required", http.StatusBadRequest)
		return
	}
	entries, err := h.approvals.GetApprovalHistory(r.Context(), caseID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entries)
}

// ── Response helpers ──────────────────────────────────────────────────────────

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn().Err(err).Msg("Failed to encode response")
	}
}

// writeError maps the error taxonomy onto HTTP statuses. Conflicts are
// 409 so the client can run its refresh-and-retry path; unclassified
// errors pass through verbatim as 500.
func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperrors.CodeOf(err) {
	case apperrors.ErrCodeValidation:
		status = http.StatusBadRequest
	case apperrors.ErrCodeConflict:
		status = http.StatusConflict
	case apperrors.ErrCodeUnauthorized:
		status = http.StatusUnauthorized
	case apperrors.ErrCodeNotFound:
		status = http.StatusNotFound
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":  string(apperrors.CodeOf(err)),
		"error": err.Error(),
	})
}
