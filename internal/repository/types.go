package repository

import "time"

// ── Domain records for change-claim cases ─────────────────────────────────────

// TrackKind identifies one of the three claim sub-tracks of a case.
type TrackKind string

const (
	TrackLiabilityBasis TrackKind = "liability_basis"
	TrackCompensation   TrackKind = "compensation"
	TrackTimeExtension  TrackKind = "time_extension"
)

// CaseKind distinguishes ordinary change claims from derived
// acceleration-cost cases.
type CaseKind string

const (
	CaseChangeClaim  CaseKind = "change_claim"
	CaseAcceleration CaseKind = "acceleration"
)

// Case is one change-claim case between TE and BH.
type Case struct {
	ID         string
	ProjectID  string
	CaseNumber string
	Kind       CaseKind
	Title      string
	Status     string // open | closed
	// RelatedCaseIDs lists, for acceleration cases, the time-extension
	// cases whose rejections fed into the claim.
	RelatedCaseIDs []string
	CreatedBy      *string
	CreatedAt      time.Time
	UpdatedBy      *string
	UpdatedAt      time.Time
	Tracks         []*ClaimTrack
}

// ClaimTrack is one sub-track of a case. It is never deleted, only
// superseded: every mutation appends a TrackRevision and bumps Version.
type ClaimTrack struct {
	ID     string
	CaseID string
	Kind   TrackKind
	Status string // draft | submitted | withdrawn | responded
	// Version is the optimistic-concurrency token. Every accepted
	// mutation increments it; submissions carrying a stale version are
	// rejected with a conflict.
	Version int
	// ClaimPayload holds the claimant's current raw figures (claimed
	// amount or days, notice flags) as JSON.
	ClaimPayload []byte
	// ResponsePayload holds BH's current response record, once submitted.
	ResponsePayload []byte
	// Determination holds the serialized determination result computed
	// for the current response, for the justification composer and audit.
	Determination []byte
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RevisionOrigin says which party produced a revision.
type RevisionOrigin string

const (
	OriginClaimant RevisionOrigin = "te_claim"
	OriginResponse RevisionOrigin = "bh_response"
)

// TrackRevision is one immutable entry in a track's append-only revision
// chain.
type TrackRevision struct {
	ID        string
	TrackID   string
	CaseID    string
	Version   int
	Origin    RevisionOrigin
	Action    string // create | update | withdraw | respond
	Payload   []byte
	CreatedBy string
	CreatedAt time.Time
}

// ── Records for approval packages ─────────────────────────────────────────────

// PackageRecord is the persisted form of an approval package.
type PackageRecord struct {
	ID              string
	CaseID          string
	TrackIDs        []string
	Amount          int64
	Status          string // draft | pending | approved | rejected
	SubmittedBy     *string
	SubmittedAt     *time.Time
	Comment         *string
	RejectionReason *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// StepRecord is the persisted form of one approval chain step.
type StepRecord struct {
	ID         string
	PackageID  string
	CaseID     string
	StepNumber int
	Role       string
	Status     string // pending | in_progress | approved | rejected
	AssignedTo *string
	AssignedAt *time.Time
	ActedBy    *string
	ActedAt    *time.Time
	Comment    *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AuditEntry is one immutable record in the case audit log.
type AuditEntry struct {
	ID           string
	CaseID       string
	TrackID      *string
	PackageID    *string
	StepID       *string
	Action       string // submitted | responded | withdrawn | package_submitted | approved | rejected | restored
	PerformedBy  string
	PerformedAt  time.Time
	StatusBefore *string
	StatusAfter  *string
	Metadata     map[string]interface{}
}
