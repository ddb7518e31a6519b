package service

import (
	"context"
	"errors"
	"time"

	"github.com/byggsak/be-cc-claims/internal/apperrors"
	"github.com/byggsak/be-cc-claims/internal/approval"
	"github.com/byggsak/be-cc-claims/internal/logger"
	"github.com/byggsak/be-cc-claims/internal/repository"
)

// IdentityClient resolves user information from the identity service.
type IdentityClient interface {
	// GetUsersWithRole returns user IDs that hold the given role on a
	// project.
	GetUsersWithRole(ctx context.Context, projectID string, role string) ([]string, error)
}

// PackageStore is the persistence surface the approval service needs.
type PackageStore interface {
	Create(ctx context.Context, pkg *repository.PackageRecord, steps []*repository.StepRecord) error
	GetByID(ctx context.Context, id string) (*repository.PackageRecord, []*repository.StepRecord, error)
	GetActiveByCaseID(ctx context.Context, caseID string) (*repository.PackageRecord, error)
	SaveResolution(ctx context.Context, pkg *repository.PackageRecord, acted *repository.StepRecord, next *repository.StepRecord) error
	Restore(ctx context.Context, packageID string) error
	GetPendingForRole(ctx context.Context, role string) ([]*repository.StepRecord, error)
}

// ApprovalService orchestrates the monetary approval chain: package
// submission, ordered sign-off, rejection and restore-for-resubmission.
// The chain semantics live in the approval package; this service adds
// persistence, approver assignment, audit and notifications.
type ApprovalService struct {
	packageRepo PackageStore
	auditRepo   AuditStore
	identity    IdentityClient
	notifier    Notifier
	log         *logger.Logger
}

// NewApprovalService creates a new ApprovalService.
func NewApprovalService(
	packageRepo PackageStore,
	auditRepo AuditStore,
	identity IdentityClient,
	notifier Notifier,
	log *logger.Logger,
) *ApprovalService {
	return &ApprovalService{
		packageRepo: packageRepo,
		auditRepo:   auditRepo,
		identity:    identity,
		notifier:    notifier,
		log:         log,
	}
}

// ── Submission ────────────────────────────────────────────────────────────────

// SubmitPackageRequest groups the responses intended for joint approval.
type SubmitPackageRequest struct {
	CaseID      string   `json:"case_id"`
	ProjectID   string   `json:"project_id"`
	TrackIDs    []string `json:"track_ids"`
	Amount      int64    `json:"amount"`
	SubmittedBy string   `json:"submitted_by"`
	Comment     string   `json:"comment,omitempty"`
}

// SubmitPackage builds the approval chain from the amount via the
// threshold table and persists the package with its steps. The role
// sequence is frozen at this point; later amount edits do not reshape it.
func (s *ApprovalService) SubmitPackage(ctx context.Context, req *SubmitPackageRequest) (*repository.PackageRecord, []*repository.StepRecord, error) {
	if req.CaseID == "" {
		return nil, nil, apperrors.InvalidInput("case_id", "is required")
	}
	if req.Amount < 0 {
		return nil, nil, apperrors.InvalidInput("amount", "must be non-negative")
	}
	if existing, err := s.packageRepo.GetActiveByCaseID(ctx, req.CaseID); err != nil {
		return nil, nil, err
	} else if existing != nil {
		return nil, nil, apperrors.New(apperrors.ErrCodeConflict, "case already has a pending approval package")
	}

	pkg := approval.NewPackage(req.CaseID, req.TrackIDs)
	if err := pkg.Submit(req.Amount, req.SubmittedBy, req.Comment); err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to submit package")
	}

	record := packageToRecord(pkg)
	steps := make([]*repository.StepRecord, len(pkg.Chain.Steps))
	for i, step := range pkg.Chain.Steps {
		rec := &repository.StepRecord{
			ID:         step.ID,
			StepNumber: i + 1,
			Role:       string(step.Role),
			Status:     string(step.Status),
		}
		// Pre-assign the first available user for the role; an unassigned
		// step is a warning, not an error.
		users, err := s.identity.GetUsersWithRole(ctx, req.ProjectID, string(step.Role))
		if err != nil {
			s.log.Warn().Err(err).Str("role", string(step.Role)).Msg("Could not fetch users for role; step will be unassigned")
		} else if len(users) > 0 {
			now := time.Now().UTC()
			rec.AssignedTo = &users[0]
			rec.AssignedAt = &now
		}
		steps[i] = rec
	}

	if err := s.packageRepo.Create(ctx, record, steps); err != nil {
		return nil, nil, err
	}

	s.log.Info().
		Str("case_id", req.CaseID).
		Str("package_id", record.ID).
		Int64("amount", req.Amount).
		Int("total_steps", len(steps)).
		Msg("Approval package submitted")

	statusAfter := record.Status
	s.appendAudit(ctx, &repository.AuditEntry{
		CaseID:      req.CaseID,
		PackageID:   &record.ID,
		Action:      "package_submitted",
		PerformedBy: req.SubmittedBy,
		StatusAfter: &statusAfter,
		Metadata: map[string]interface{}{
			"amount":      req.Amount,
			"total_steps": len(steps),
		},
	})

	s.notifier.PublishCaseEvent(ctx, "approval_required", req.CaseID, req.ProjectID, req.SubmittedBy,
		recipientsOf(steps[0]), map[string]interface{}{
			"package_id": record.ID,
			"role":       steps[0].Role,
			"amount":     req.Amount,
		})

	return record, steps, nil
}

// ── Step actions ──────────────────────────────────────────────────────────────

// StepActionRequest identifies the step being acted on. Addressing any
// step other than the current in-progress one is rejected at this
// boundary rather than silently redirected.
type StepActionRequest struct {
	PackageID string `json:"package_id"`
	StepID    string `json:"step_id"`
	ActedBy   string `json:"acted_by"`
	// Comment is optional on approve; Reason is mandatory on reject.
	Comment string `json:"comment,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// ApproveStep signs off the current step. Returns true when the whole
// package is now approved.
func (s *ApprovalService) ApproveStep(ctx context.Context, req *StepActionRequest) (packageApproved bool, err error) {
	record, stepRecords, err := s.packageRepo.GetByID(ctx, req.PackageID)
	if err != nil {
		return false, err
	}
	pkg, err := rehydrate(record, stepRecords)
	if err != nil {
		return false, err
	}

	if err := pkg.Approve(req.StepID, req.ActedBy, req.Comment); err != nil {
		return false, mapChainErr(err)
	}

	acted, next := resolveStepRecords(pkg.Chain, stepRecords, req.StepID)
	record.Status = string(pkg.Status)
	if err := s.packageRepo.SaveResolution(ctx, record, acted, next); err != nil {
		return false, err
	}

	packageApproved = pkg.Status == approval.PackageApproved
	statusAfter := record.Status
	s.appendAudit(ctx, &repository.AuditEntry{
		CaseID:      record.CaseID,
		PackageID:   &record.ID,
		StepID:      &req.StepID,
		Action:      "approved",
		PerformedBy: req.ActedBy,
		StatusAfter: &statusAfter,
		Metadata: map[string]interface{}{
			"step_id": req.StepID,
			"comment": req.Comment,
		},
	})

	if packageApproved {
		s.notifier.PublishCaseEvent(ctx, "package_approved", record.CaseID, "", req.ActedBy,
			[]string{submitterOf(record)}, map[string]interface{}{"package_id": record.ID})
	} else if next != nil {
		s.notifier.PublishCaseEvent(ctx, "approval_required", record.CaseID, "", req.ActedBy,
			recipientsOf(next), map[string]interface{}{
				"package_id": record.ID,
				"role":       next.Role,
			})
	}

	return packageApproved, nil
}

// RejectStep rejects the current step with a mandatory reason, resolving
// the package as rejected.
func (s *ApprovalService) RejectStep(ctx context.Context, req *StepActionRequest) error {
	if req.Reason == "" {
		return apperrors.InvalidInput("reason", "rejection reason is required")
	}

	record, stepRecords, err := s.packageRepo.GetByID(ctx, req.PackageID)
	if err != nil {
		return err
	}
	pkg, err := rehydrate(record, stepRecords)
	if err != nil {
		return err
	}

	if err := pkg.Reject(req.StepID, req.ActedBy, req.Reason); err != nil {
		return mapChainErr(err)
	}

	acted, _ := resolveStepRecords(pkg.Chain, stepRecords, req.StepID)
	record.Status = string(pkg.Status)
	record.RejectionReason = &req.Reason
	if err := s.packageRepo.SaveResolution(ctx, record, acted, nil); err != nil {
		return err
	}

	statusAfter := record.Status
	s.appendAudit(ctx, &repository.AuditEntry{
		CaseID:      record.CaseID,
		PackageID:   &record.ID,
		StepID:      &req.StepID,
		Action:      "rejected",
		PerformedBy: req.ActedBy,
		StatusAfter: &statusAfter,
		Metadata: map[string]interface{}{
			"step_id": req.StepID,
			"reason":  req.Reason,
		},
	})

	s.notifier.PublishCaseEvent(ctx, "package_rejected", record.CaseID, "", req.ActedBy,
		[]string{submitterOf(record)}, map[string]interface{}{
			"package_id": record.ID,
			"reason":     req.Reason,
		})

	return nil
}

// ── Restore ───────────────────────────────────────────────────────────────────

// RestorePackage discards a rejected package's chain and returns it to an
// editable, unsubmitted state. The underlying claim data is untouched;
// partial approvals are not preserved.
func (s *ApprovalService) RestorePackage(ctx context.Context, packageID, restoredBy string) error {
	record, stepRecords, err := s.packageRepo.GetByID(ctx, packageID)
	if err != nil {
		return err
	}
	pkg, err := rehydrate(record, stepRecords)
	if err != nil {
		return err
	}
	if err := pkg.Restore(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeConflict, "package cannot be restored")
	}

	if err := s.packageRepo.Restore(ctx, packageID); err != nil {
		return err
	}

	statusBefore := "rejected"
	statusAfter := string(approval.PackageDraft)
	s.appendAudit(ctx, &repository.AuditEntry{
		CaseID:       record.CaseID,
		PackageID:    &record.ID,
		Action:       "restored",
		PerformedBy:  restoredBy,
		StatusBefore: &statusBefore,
		StatusAfter:  &statusAfter,
	})

	s.notifier.PublishCaseEvent(ctx, "package_restored", record.CaseID, "", restoredBy,
		[]string{submitterOf(record)}, map[string]interface{}{"package_id": record.ID})

	return nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

// GetPackage returns a package with its steps.
func (s *ApprovalService) GetPackage(ctx context.Context, id string) (*repository.PackageRecord, []*repository.StepRecord, error) {
	return s.packageRepo.GetByID(ctx, id)
}

// GetPendingApprovals returns the steps currently awaiting a role.
func (s *ApprovalService) GetPendingApprovals(ctx context.Context, role string) ([]*repository.StepRecord, error) {
	return s.packageRepo.GetPendingForRole(ctx, role)
}

// GetApprovalHistory returns the full audit trail for a case.
func (s *ApprovalService) GetApprovalHistory(ctx context.Context, caseID string) ([]*repository.AuditEntry, error) {
	return s.auditRepo.GetByCaseID(ctx, caseID)
}

// ── Internal helpers ──────────────────────────────────────────────────────────

// rehydrate rebuilds the in-memory package state machine from its
// persisted records.
func rehydrate(record *repository.PackageRecord, stepRecords []*repository.StepRecord) (*approval.Package, error) {
	pkg := &approval.Package{
		ID:       record.ID,
		CaseID:   record.CaseID,
		TrackIDs: record.TrackIDs,
		Amount:   record.Amount,
		Status:   approval.PackageStatus(record.Status),
	}
	if record.SubmittedBy != nil {
		pkg.SubmittedBy = *record.SubmittedBy
	}
	pkg.SubmittedAt = record.SubmittedAt
	if record.RejectionReason != nil {
		pkg.RejectionReason = *record.RejectionReason
	}
	if len(stepRecords) == 0 {
		return pkg, nil
	}

	chain := &approval.Chain{Amount: record.Amount, Steps: make([]approval.Step, len(stepRecords))}
	for i, rec := range stepRecords {
		step := approval.Step{
			ID:      rec.ID,
			Role:    approval.Role(rec.Role),
			Status:  approval.StepStatus(rec.Status),
			ActedAt: rec.ActedAt,
		}
		if rec.ActedBy != nil {
			step.ActedBy = *rec.ActedBy
		}
		if rec.Comment != nil {
			step.Comment = *rec.Comment
		}
		chain.Steps[i] = step
	}
	pkg.Chain = chain
	return pkg, nil
}

// resolveStepRecords maps the chain's post-action state back onto the
// persisted records: the acted step and the newly in-progress one.
func resolveStepRecords(chain *approval.Chain, records []*repository.StepRecord, actedID string) (acted, next *repository.StepRecord) {
	byID := make(map[string]approval.Step, len(chain.Steps))
	for _, s := range chain.Steps {
		byID[s.ID] = s
	}
	for _, rec := range records {
		step, ok := byID[rec.ID]
		if !ok {
			continue
		}
		if rec.ID == actedID {
			rec.Status = string(step.Status)
			rec.ActedAt = step.ActedAt
			if step.ActedBy != "" {
				actedBy := step.ActedBy
				rec.ActedBy = &actedBy
			}
			if step.Comment != "" {
				comment := step.Comment
				rec.Comment = &comment
			}
			acted = rec
			continue
		}
		if step.Status == approval.StepInProgress && rec.Status == string(approval.StepPending) {
			rec.Status = string(approval.StepInProgress)
			next = rec
		}
	}
	return acted, next
}

// mapChainErr classifies chain state-machine errors for the API
// boundary: acting on the wrong step or a resolved chain is a caller
// programming error surfaced as a conflict, never clamped.
func mapChainErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errorsIsAny(err, approval.ErrEmptyReason):
		return apperrors.InvalidInput("reason", "rejection reason is required")
	case errorsIsAny(err, approval.ErrNoActiveStep, approval.ErrNotCurrentStep, approval.ErrNotSubmitted, approval.ErrNotDraft, approval.ErrNotRejected):
		return apperrors.Wrap(err, apperrors.ErrCodeConflict, "approval chain state does not allow this action")
	default:
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "approval action failed")
	}
}

// appendAudit writes an audit entry and logs a warning on failure (never
// returns an error).
func (s *ApprovalService) appendAudit(ctx context.Context, entry *repository.AuditEntry) {
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		s.log.Warn().Err(err).
			Str("case_id", entry.CaseID).
			Str("action", entry.Action).
			Msg("Failed to write audit log entry")
	}
}

func errorsIsAny(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

func packageToRecord(pkg *approval.Package) *repository.PackageRecord {
	record := &repository.PackageRecord{
		ID:       pkg.ID,
		CaseID:   pkg.CaseID,
		TrackIDs: pkg.TrackIDs,
		Amount:   pkg.Amount,
		Status:   string(pkg.Status),
	}
	if pkg.SubmittedBy != "" {
		submittedBy := pkg.SubmittedBy
		record.SubmittedBy = &submittedBy
	}
	record.SubmittedAt = pkg.SubmittedAt
	if pkg.Comment != "" {
		comment := pkg.Comment
		record.Comment = &comment
	}
	return record
}

func recipientsOf(step *repository.StepRecord) []string {
	if step.AssignedTo != nil {
		return []string{*step.AssignedTo}
	}
	return []string{step.Role}
}

func submitterOf(record *repository.PackageRecord) string {
	if record.SubmittedBy != nil {
		return *record.SubmittedBy
	}
	return "te"
}
