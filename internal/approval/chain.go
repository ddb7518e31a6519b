// Package approval implements the sequential approval chain: a
// monetary-threshold-driven, ordered, multi-role sign-off with
// rejection and restore semantics. The chain is a local state machine;
// persistence and transport live elsewhere.
package approval

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role is one sign-off authority in the chain.
type Role string

const (
	RoleProjectManager    Role = "PROJECT_MANAGER"
	RoleDepartmentManager Role = "DEPARTMENT_MANAGER"
	RoleRegionalDirector  Role = "REGIONAL_DIRECTOR"
	RoleDivisionDirector  Role = "DIVISION_DIRECTOR"
	RoleManagingDirector  Role = "MANAGING_DIRECTOR"
)

// StepStatus is the lifecycle state of a single step.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepApproved   StepStatus = "approved"
	StepRejected   StepStatus = "rejected"
)

// ChainStatus is the derived state of the whole chain.
type ChainStatus string

const (
	ChainPending    ChainStatus = "pending"
	ChainInProgress ChainStatus = "in_progress"
	ChainApproved   ChainStatus = "approved"
	ChainRejected   ChainStatus = "rejected"
)

// ThresholdBand maps a monetary ceiling (minor units) to the role chain
// required at or below it. Ceiling 0 means unbounded.
type ThresholdBand struct {
	Ceiling int64
	Roles   []Role
}

// Thresholds is the fixed table, ordered by ascending ceiling. Lookup is
// first-match-wins on the smallest ceiling at or above the amount.
var Thresholds = []ThresholdBand{
	{Ceiling: 500_000, Roles: []Role{RoleProjectManager}},
	{Ceiling: 2_000_000, Roles: []Role{RoleProjectManager, RoleDepartmentManager}},
	{Ceiling: 5_000_000, Roles: []Role{RoleProjectManager, RoleDepartmentManager, RoleRegionalDirector}},
	{Ceiling: 10_000_000, Roles: []Role{RoleProjectManager, RoleDepartmentManager, RoleRegionalDirector, RoleDivisionDirector}},
	{Ceiling: 0, Roles: []Role{RoleProjectManager, RoleDepartmentManager, RoleRegionalDirector, RoleDivisionDirector, RoleManagingDirector}},
}

// RolesForAmount returns the required role sequence for a monetary
// amount. The returned slice is a copy; callers may keep it.
func RolesForAmount(amount int64) []Role {
	for _, band := range Thresholds {
		if band.Ceiling == 0 || amount <= band.Ceiling {
			roles := make([]Role, len(band.Roles))
			copy(roles, band.Roles)
			return roles
		}
	}
	// The table ends in an unbounded band, so this is unreachable.
	return nil
}

// Step is one role sign-off within a chain.
type Step struct {
	ID      string     `json:"id"`
	Role    Role       `json:"role"`
	Status  StepStatus `json:"status"`
	ActedBy string     `json:"acted_by,omitempty"`
	ActedAt *time.Time `json:"acted_at,omitempty"`
	// Comment holds the approver's optional comment, or the mandatory
	// rejection reason.
	Comment string `json:"comment,omitempty"`
}

// Chain is an ordered, non-empty sequence of steps. The role sequence is
// derived once from the amount at creation and never changes afterwards;
// later edits to the amount do not reshape an existing chain.
type Chain struct {
	Amount int64  `json:"amount"`
	Steps  []Step `json:"steps"`
}

var (
	// ErrNoActiveStep: the chain has no in_progress step to act on
	// (already resolved, or rejected and awaiting restore).
	ErrNoActiveStep = errors.New("approval chain has no active step")
	// ErrNotCurrentStep: the caller addressed a step other than the one
	// in progress. This is a programming error at the API boundary, never
	// silently redirected to the current step.
	ErrNotCurrentStep = errors.New("step is not the current in-progress step")
	// ErrEmptyReason: rejection requires a non-empty reason.
	ErrEmptyReason = errors.New("rejection reason must not be empty")
)

// NewChain builds a chain for the given amount from the threshold table.
// The first step starts in progress, the rest pending.
func NewChain(amount int64) *Chain {
	roles := RolesForAmount(amount)
	steps := make([]Step, len(roles))
	for i, role := range roles {
		status := StepPending
		if i == 0 {
			status = StepInProgress
		}
		steps[i] = Step{ID: uuid.NewString(), Role: role, Status: status}
	}
	return &Chain{Amount: amount, Steps: steps}
}

// Status derives the chain-level state from its steps.
func (c *Chain) Status() ChainStatus {
	approved, active := 0, 0
	for _, s := range c.Steps {
		switch s.Status {
		case StepRejected:
			return ChainRejected
		case StepApproved:
			approved++
		case StepInProgress:
			active++
		}
	}
	if approved == len(c.Steps) {
		return ChainApproved
	}
	if approved == 0 && active == 0 {
		// Cannot occur on a chain built by NewChain; kept so a chain
		// rehydrated from storage still derives a sensible state.
		return ChainPending
	}
	return ChainInProgress
}

// Current returns the unique in-progress step, or false when the chain is
// resolved.
func (c *Chain) Current() (*Step, bool) {
	for i := range c.Steps {
		if c.Steps[i].Status == StepInProgress {
			return &c.Steps[i], true
		}
	}
	return nil, false
}

// Approve signs off the step identified by stepID, which must be the
// current in-progress step, and advances the next pending step. Returns
// the new chain status.
func (c *Chain) Approve(stepID, actor, comment string) (ChainStatus, error) {
	step, err := c.actionable(stepID)
	if err != nil {
		return c.Status(), err
	}
	now := time.Now().UTC()
	step.Status = StepApproved
	step.ActedBy = actor
	step.ActedAt = &now
	step.Comment = comment

	for i := range c.Steps {
		if c.Steps[i].Status == StepPending {
			c.Steps[i].Status = StepInProgress
			break
		}
	}
	return c.Status(), nil
}

// Reject rejects the step identified by stepID, which must be the current
// in-progress step. The reason is mandatory. The chain becomes terminal
// until explicitly restored.
func (c *Chain) Reject(stepID, actor, reason string) (ChainStatus, error) {
	if reason == "" {
		return c.Status(), ErrEmptyReason
	}
	step, err := c.actionable(stepID)
	if err != nil {
		return c.Status(), err
	}
	now := time.Now().UTC()
	step.Status = StepRejected
	step.ActedBy = actor
	step.ActedAt = &now
	step.Comment = reason
	return ChainRejected, nil
}

// RejectionReason returns the rejecting step's reason, if any.
func (c *Chain) RejectionReason() (string, bool) {
	for _, s := range c.Steps {
		if s.Status == StepRejected {
			return s.Comment, true
		}
	}
	return "", false
}

func (c *Chain) actionable(stepID string) (*Step, error) {
	current, ok := c.Current()
	if !ok {
		return nil, ErrNoActiveStep
	}
	if current.ID != stepID {
		return nil, fmt.Errorf("%w: %s", ErrNotCurrentStep, stepID)
	}
	return current, nil
}
