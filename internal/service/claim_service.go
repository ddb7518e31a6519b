package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/byggsak/be-cc-claims/internal/apperrors"
	"github.com/byggsak/be-cc-claims/internal/determine"
	"github.com/byggsak/be-cc-claims/internal/justify"
	"github.com/byggsak/be-cc-claims/internal/logger"
	"github.com/byggsak/be-cc-claims/internal/repository"
)

// minJustificationLen is the shortest acceptable justification text for a
// client response. Shorter texts are a local validation failure and are
// never sent over the wire.
const minJustificationLen = 20

// CaseStore is the persistence surface the claim service needs.
type CaseStore interface {
	Create(ctx context.Context, c *repository.Case) error
	GetByID(ctx context.Context, id string) (*repository.Case, error)
	GetTrack(ctx context.Context, trackID string) (*repository.ClaimTrack, error)
	SubmitRevision(ctx context.Context, rev *repository.TrackRevision, newStatus string, expectedVersion int) (int, error)
	SetDetermination(ctx context.Context, trackID string, determination []byte) error
	ListRevisions(ctx context.Context, trackID string) ([]*repository.TrackRevision, error)
}

// AuditStore appends immutable audit entries.
type AuditStore interface {
	Append(ctx context.Context, entry *repository.AuditEntry) error
	GetByCaseID(ctx context.Context, caseID string) ([]*repository.AuditEntry, error)
}

// Notifier publishes fire-and-forget case events.
type Notifier interface {
	PublishCaseEvent(ctx context.Context, eventType, caseID, projectID, actorID string, recipients []string, payload map[string]interface{})
}

// ClaimService orchestrates case and track mutations and runs the
// determination engine on client responses.
type ClaimService struct {
	caseRepo  CaseStore
	auditRepo AuditStore
	composer  justify.Composer
	notifier  Notifier
	log       *logger.Logger
}

// NewClaimService creates a new ClaimService.
func NewClaimService(
	caseRepo CaseStore,
	auditRepo AuditStore,
	composer justify.Composer,
	notifier Notifier,
	log *logger.Logger,
) *ClaimService {
	return &ClaimService{
		caseRepo:  caseRepo,
		auditRepo: auditRepo,
		composer:  composer,
		notifier:  notifier,
		log:       log,
	}
}

// ── Case creation ─────────────────────────────────────────────────────────────

// CreateCaseRequest opens a new change-claim case with its tracks.
type CreateCaseRequest struct {
	ProjectID      string                `json:"project_id"`
	CaseNumber     string                `json:"case_number"`
	Kind           repository.CaseKind   `json:"kind"`
	Title          string                `json:"title"`
	RelatedCaseIDs []string              `json:"related_case_ids,omitempty"`
	Tracks         []repository.TrackKind `json:"tracks"`
	CreatedBy      string                `json:"created_by"`
}

// CreateCase opens a case with one draft track per requested kind.
func (s *ClaimService) CreateCase(ctx context.Context, req *CreateCaseRequest) (*repository.Case, error) {
	if req.ProjectID == "" {
		return nil, apperrors.InvalidInput("project_id", "is required")
	}
	if req.CaseNumber == "" {
		return nil, apperrors.InvalidInput("case_number", "is required")
	}
	if len(req.Tracks) == 0 {
		return nil, apperrors.InvalidInput("tracks", "at least one track is required")
	}
	kind := req.Kind
	if kind == "" {
		kind = repository.CaseChangeClaim
	}
	if kind == repository.CaseAcceleration && len(req.RelatedCaseIDs) == 0 {
		return nil, apperrors.InvalidInput("related_case_ids", "an acceleration case needs at least one related time-extension case")
	}

	c := &repository.Case{
		ProjectID:      req.ProjectID,
		CaseNumber:     req.CaseNumber,
		Kind:           kind,
		Title:          req.Title,
		Status:         "open",
		RelatedCaseIDs: req.RelatedCaseIDs,
		CreatedBy:      &req.CreatedBy,
	}
	for _, tk := range req.Tracks {
		switch tk {
		case repository.TrackLiabilityBasis, repository.TrackCompensation, repository.TrackTimeExtension:
		default:
			return nil, apperrors.InvalidInput("tracks", "unknown track kind "+string(tk))
		}
		c.Tracks = append(c.Tracks, &repository.ClaimTrack{Kind: tk, Status: "draft"})
	}

	if err := s.caseRepo.Create(ctx, c); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("case_id", c.ID).
		Str("case_number", c.CaseNumber).
		Int("tracks", len(c.Tracks)).
		Msg("Claim case created")

	return c, nil
}

// GetCase returns a case with its tracks.
func (s *ClaimService) GetCase(ctx context.Context, id string) (*repository.Case, error) {
	return s.caseRepo.GetByID(ctx, id)
}

// ── Claimant submissions ──────────────────────────────────────────────────────

// SubmitTrackRequest is the submission event contract for claimant-side
// track mutations. ExpectedVersion carries the optimistic-concurrency
// token the payload was computed against.
type SubmitTrackRequest struct {
	TrackID         string          `json:"track_id"`
	Action          string          `json:"action"` // create | update | withdraw
	Payload         json.RawMessage `json:"payload"`
	ExpectedVersion int             `json:"expected_version"`
	SubmittedBy     string          `json:"submitted_by"`
}

// SubmissionResult is returned on an accepted submission.
type SubmissionResult struct {
	TrackID    string `json:"track_id"`
	NewVersion int    `json:"new_version"`
}

// SubmitTrack appends a claimant revision to a track. A stale
// ExpectedVersion yields a conflict error the caller must resolve by
// refreshing; it is never merged silently.
func (s *ClaimService) SubmitTrack(ctx context.Context, req *SubmitTrackRequest) (*SubmissionResult, error) {
	switch req.Action {
	case "create", "update", "withdraw":
	default:
		return nil, apperrors.InvalidInput("action", "must be create, update or withdraw")
	}
	if req.Action != "withdraw" && len(req.Payload) == 0 {
		return nil, apperrors.InvalidInput("payload", "is required")
	}

	track, err := s.caseRepo.GetTrack(ctx, req.TrackID)
	if err != nil {
		return nil, err
	}

	newStatus := "submitted"
	if req.Action == "withdraw" {
		newStatus = "withdrawn"
	}

	rev := &repository.TrackRevision{
		TrackID:   track.ID,
		CaseID:    track.CaseID,
		Origin:    repository.OriginClaimant,
		Action:    req.Action,
		Payload:   req.Payload,
		CreatedBy: req.SubmittedBy,
	}
	newVersion, err := s.caseRepo.SubmitRevision(ctx, rev, newStatus, req.ExpectedVersion)
	if err != nil {
		return nil, err
	}

	statusBefore := track.Status
	s.appendAudit(ctx, &repository.AuditEntry{
		CaseID:       track.CaseID,
		TrackID:      &track.ID,
		Action:       "submitted",
		PerformedBy:  req.SubmittedBy,
		StatusBefore: &statusBefore,
		StatusAfter:  &newStatus,
		Metadata: map[string]interface{}{
			"track_kind": string(track.Kind),
			"action":     req.Action,
			"version":    newVersion,
		},
	})

	s.notifier.PublishCaseEvent(ctx, "track_submitted", track.CaseID, "", req.SubmittedBy, []string{"bh"}, map[string]interface{}{
		"track_id": track.ID,
		"kind":     string(track.Kind),
		"version":  newVersion,
	})

	return &SubmissionResult{TrackID: track.ID, NewVersion: newVersion}, nil
}

// ── Client responses with determination ───────────────────────────────────────

// RespondRequest is a BH response to one track. Exactly one of the three
// determination inputs must be set, matching the track kind.
type RespondRequest struct {
	TrackID         string `json:"track_id"`
	ExpectedVersion int    `json:"expected_version"`
	RespondedBy     string `json:"responded_by"`
	Justification   string `json:"justification"`

	Frist     *determine.FristInput     `json:"frist,omitempty"`
	Vederlag  *determine.VederlagInput  `json:"vederlag,omitempty"`
	Forsering *determine.ForseringInput `json:"forsering,omitempty"`
}

// RespondResult carries the persisted response and its determination.
type RespondResult struct {
	TrackID       string      `json:"track_id"`
	NewVersion    int         `json:"new_version"`
	Determination interface{} `json:"determination"`
	Justification string      `json:"justification"`
}

// Respond records a BH response on a track: it runs the determination for
// the track kind, composes the justification text, and persists response
// and determination under optimistic version concurrency.
func (s *ClaimService) Respond(ctx context.Context, req *RespondRequest) (*RespondResult, error) {
	if len(req.Justification) < minJustificationLen {
		return nil, apperrors.InvalidInput("justification", "text is below the minimum length")
	}

	track, err := s.caseRepo.GetTrack(ctx, req.TrackID)
	if err != nil {
		return nil, err
	}

	determination, justification, err := s.determine(track.Kind, req)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]interface{}{
		"responded_by":  req.RespondedBy,
		"justification": justification,
		"determination": determination,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to marshal response payload")
	}

	rev := &repository.TrackRevision{
		TrackID:   track.ID,
		CaseID:    track.CaseID,
		Origin:    repository.OriginResponse,
		Action:    "respond",
		Payload:   payload,
		CreatedBy: req.RespondedBy,
	}
	newVersion, err := s.caseRepo.SubmitRevision(ctx, rev, "responded", req.ExpectedVersion)
	if err != nil {
		return nil, err
	}

	detJSON, err := json.Marshal(determination)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to marshal determination")
	}
	if err := s.caseRepo.SetDetermination(ctx, track.ID, detJSON); err != nil {
		return nil, err
	}

	statusBefore := track.Status
	statusAfter := "responded"
	s.appendAudit(ctx, &repository.AuditEntry{
		CaseID:       track.CaseID,
		TrackID:      &track.ID,
		Action:       "responded",
		PerformedBy:  req.RespondedBy,
		StatusBefore: &statusBefore,
		StatusAfter:  &statusAfter,
		Metadata: map[string]interface{}{
			"track_kind": string(track.Kind),
			"version":    newVersion,
		},
	})

	s.notifier.PublishCaseEvent(ctx, "track_responded", track.CaseID, "", req.RespondedBy, []string{"te"}, map[string]interface{}{
		"track_id": track.ID,
		"kind":     string(track.Kind),
	})

	return &RespondResult{
		TrackID:       track.ID,
		NewVersion:    newVersion,
		Determination: determination,
		Justification: justification,
	}, nil
}

// determine dispatches to the engine for the track kind and composes the
// justification text from the result and the raw figures.
func (s *ClaimService) determine(kind repository.TrackKind, req *RespondRequest) (interface{}, string, error) {
	switch kind {
	case repository.TrackTimeExtension:
		if req.Frist == nil {
			return nil, "", apperrors.InvalidInput("frist", "time-extension response needs frist input")
		}
		res, err := determine.DetermineFrist(*req.Frist)
		if err != nil {
			return nil, "", mapDetermineErr(err)
		}
		return res, s.composer.ComposeFrist(*req.Frist, res), nil

	case repository.TrackCompensation:
		if req.Vederlag == nil {
			return nil, "", apperrors.InvalidInput("vederlag", "compensation response needs vederlag input")
		}
		res, err := determine.DetermineVederlag(*req.Vederlag)
		if err != nil {
			return nil, "", mapDetermineErr(err)
		}
		return res, s.composer.ComposeVederlag(*req.Vederlag, res), nil

	case repository.TrackLiabilityBasis:
		return nil, "", apperrors.InvalidInput("track_id", "liability-basis tracks are answered without a determination; use SubmitTrack")

	default:
		return nil, "", apperrors.InvalidInput("track_id", "unknown track kind "+string(kind))
	}
}

// PreviewFrist runs a time-extension determination without persisting
// anything. Pure: safe to call repeatedly while a form is edited.
func (s *ClaimService) PreviewFrist(in determine.FristInput) (determine.FristResult, string, error) {
	res, err := determine.DetermineFrist(in)
	if err != nil {
		return determine.FristResult{}, "", mapDetermineErr(err)
	}
	return res, s.composer.ComposeFrist(in, res), nil
}

// PreviewVederlag runs a compensation determination without persisting.
func (s *ClaimService) PreviewVederlag(in determine.VederlagInput) (determine.VederlagResult, string, error) {
	res, err := determine.DetermineVederlag(in)
	if err != nil {
		return determine.VederlagResult{}, "", mapDetermineErr(err)
	}
	return res, s.composer.ComposeVederlag(in, res), nil
}

// PreviewForsering runs an acceleration determination without persisting.
func (s *ClaimService) PreviewForsering(in determine.ForseringInput) (determine.ForseringResult, string, error) {
	res, err := determine.DetermineForsering(in)
	if err != nil {
		return determine.ForseringResult{}, "", mapDetermineErr(err)
	}
	return res, s.composer.ComposeForsering(in, res), nil
}

// RespondForsering records a BH determination on an acceleration case.
// Acceleration cases carry the claim on the compensation track.
func (s *ClaimService) RespondForsering(ctx context.Context, req *RespondRequest) (*RespondResult, error) {
	if req.Forsering == nil {
		return nil, apperrors.InvalidInput("forsering", "acceleration response needs forsering input")
	}
	if len(req.Justification) < minJustificationLen {
		return nil, apperrors.InvalidInput("justification", "text is below the minimum length")
	}

	track, err := s.caseRepo.GetTrack(ctx, req.TrackID)
	if err != nil {
		return nil, err
	}
	if track.Kind != repository.TrackCompensation {
		return nil, apperrors.InvalidInput("track_id", "acceleration determinations belong on the compensation track")
	}

	res, err := determine.DetermineForsering(*req.Forsering)
	if err != nil {
		return nil, mapDetermineErr(err)
	}
	justification := s.composer.ComposeForsering(*req.Forsering, res)

	payload, err := json.Marshal(map[string]interface{}{
		"responded_by":  req.RespondedBy,
		"justification": justification,
		"determination": res,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to marshal response payload")
	}

	rev := &repository.TrackRevision{
		TrackID:   track.ID,
		CaseID:    track.CaseID,
		Origin:    repository.OriginResponse,
		Action:    "respond",
		Payload:   payload,
		CreatedBy: req.RespondedBy,
	}
	newVersion, err := s.caseRepo.SubmitRevision(ctx, rev, "responded", req.ExpectedVersion)
	if err != nil {
		return nil, err
	}

	detJSON, err := json.Marshal(res)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to marshal determination")
	}
	if err := s.caseRepo.SetDetermination(ctx, track.ID, detJSON); err != nil {
		return nil, err
	}

	statusBefore := track.Status
	statusAfter := "responded"
	s.appendAudit(ctx, &repository.AuditEntry{
		CaseID:       track.CaseID,
		TrackID:      &track.ID,
		Action:       "responded",
		PerformedBy:  req.RespondedBy,
		StatusBefore: &statusBefore,
		StatusAfter:  &statusAfter,
		Metadata: map[string]interface{}{
			"track_kind":       string(track.Kind),
			"determination":    "forsering",
			"entitlement_days": res.EntitlementDays,
			"version":          newVersion,
		},
	})

	s.notifier.PublishCaseEvent(ctx, "track_responded", track.CaseID, "", req.RespondedBy, []string{"te"}, map[string]interface{}{
		"track_id": track.ID,
		"kind":     "forsering",
	})

	return &RespondResult{
		TrackID:       track.ID,
		NewVersion:    newVersion,
		Determination: res,
		Justification: justification,
	}, nil
}

// ListRevisions returns a track's append-only revision chain.
func (s *ClaimService) ListRevisions(ctx context.Context, trackID string) ([]*repository.TrackRevision, error) {
	return s.caseRepo.ListRevisions(ctx, trackID)
}

// ── Internal helpers ──────────────────────────────────────────────────────────

// mapDetermineErr classifies engine errors: indeterminate inputs are
// local validation failures, anything else is a programming error
// surfaced loudly.
func mapDetermineErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, determine.ErrIndeterminate) {
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, "determination input is not yet decided")
	}
	if errors.Is(err, determine.ErrInvalidInput) {
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, "determination input is invalid")
	}
	return apperrors.Wrap(err, apperrors.ErrCodeInternal, "determination failed")
}

// appendAudit writes an audit entry and logs a warning on failure (never
// returns an error).
func (s *ClaimService) appendAudit(ctx context.Context, entry *repository.AuditEntry) {
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		s.log.Warn().Err(err).
			Str("case_id", entry.CaseID).
			Str("action", entry.Action).
			Msg("Failed to write audit log entry")
	}
}
