package approval

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// PackageStatus is the lifecycle state of a response package.
type PackageStatus string

const (
	// PackageDraft: editable, not yet submitted for approval.
	PackageDraft PackageStatus = "draft"
	// PackagePending: submitted, chain not yet resolved.
	PackagePending  PackageStatus = "pending"
	PackageApproved PackageStatus = "approved"
	PackageRejected PackageStatus = "rejected"
)

var (
	// ErrNotDraft: the package was already submitted.
	ErrNotDraft = errors.New("package is not in draft state")
	// ErrNotSubmitted: the package has no chain to act on.
	ErrNotSubmitted = errors.New("package has not been submitted")
	// ErrNotRejected: restore is only valid on a rejected package.
	ErrNotRejected = errors.New("package has not been rejected")
)

// Package groups the response(s) intended for joint approval with the
// chain gating them. The underlying claim data lives on the case tracks;
// discarding a chain never touches it.
type Package struct {
	ID       string   `json:"id"`
	CaseID   string   `json:"case_id"`
	TrackIDs []string `json:"track_ids"`

	// Amount is the monetary total the chain was derived from. The chain
	// keeps its own copy; editing the amount after submission does not
	// reshape an existing chain.
	Amount int64 `json:"amount"`

	Status PackageStatus `json:"status"`
	Chain  *Chain        `json:"chain,omitempty"`

	SubmittedBy string     `json:"submitted_by,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	Comment     string     `json:"comment,omitempty"`

	// RejectionReason is retained from the rejecting step once resolved.
	RejectionReason string `json:"rejection_reason,omitempty"`
}

// NewPackage creates an editable, unsubmitted package for the given case
// tracks.
func NewPackage(caseID string, trackIDs []string) *Package {
	ids := make([]string, len(trackIDs))
	copy(ids, trackIDs)
	return &Package{
		ID:       uuid.NewString(),
		CaseID:   caseID,
		TrackIDs: ids,
		Status:   PackageDraft,
	}
}

// Submit freezes the package and instantiates its chain from the amount.
func (p *Package) Submit(amount int64, submitter, comment string) error {
	if p.Status != PackageDraft {
		return ErrNotDraft
	}
	now := time.Now().UTC()
	p.Amount = amount
	p.Chain = NewChain(amount)
	p.Status = PackagePending
	p.SubmittedBy = submitter
	p.SubmittedAt = &now
	p.Comment = comment
	return nil
}

// Approve signs off the current step and resolves the package when the
// chain completes.
func (p *Package) Approve(stepID, actor, comment string) error {
	if p.Chain == nil {
		return ErrNotSubmitted
	}
	status, err := p.Chain.Approve(stepID, actor, comment)
	if err != nil {
		return err
	}
	if status == ChainApproved {
		p.Status = PackageApproved
	}
	return nil
}

// Reject rejects the current step with a mandatory reason and resolves
// the package as rejected.
func (p *Package) Reject(stepID, actor, reason string) error {
	if p.Chain == nil {
		return ErrNotSubmitted
	}
	if _, err := p.Chain.Reject(stepID, actor, reason); err != nil {
		return err
	}
	p.Status = PackageRejected
	p.RejectionReason = reason
	return nil
}

// Restore discards the chain of a rejected package and returns it to an
// editable, unsubmitted state. Partial approvals are not preserved; the
// rejection reason is kept for re-editing context.
func (p *Package) Restore() error {
	if p.Status != PackageRejected {
		return ErrNotRejected
	}
	p.Chain = nil
	p.Status = PackageDraft
	p.SubmittedBy = ""
	p.SubmittedAt = nil
	return nil
}
