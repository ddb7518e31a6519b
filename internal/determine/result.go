// Package determine implements the claim determination engine: pure
// evaluation of notice preclusion and of the three claim types (time
// extension, compensation, acceleration cost) into principal and
// subsidiary outcomes. Nothing in this package touches storage or
// transport; every function is a total function of its input value.
package determine

import (
	"errors"
	"fmt"
	"sort"
)

// Outcome is the rating of a claim or a single line item.
type Outcome string

const (
	OutcomeApproved          Outcome = "approved"
	OutcomePartiallyApproved Outcome = "partially_approved"
	OutcomeRejected          Outcome = "rejected"
)

// Trigger is one independent reason a subsidiary outcome applies. The
// principal outcome is rejected on a procedural or hypothetical ground;
// the subsidiary states what the merits alone would give.
type Trigger string

const (
	// TriggerLiabilityBasisRejected: the liability-basis track was itself
	// rejected, so this track is evaluated hypothetically.
	TriggerLiabilityBasisRejected Trigger = "liability_basis_rejected"
	// TriggerConditionUnmet: the upstream evaluation found the hindrance
	// condition unmet, so this track is evaluated hypothetically.
	TriggerConditionUnmet Trigger = "condition_unmet"
	// TriggerNoticePrecluded: the claim (or its main line) forfeited on
	// untimely notice.
	TriggerNoticePrecluded Trigger = "notice_precluded"
	// TriggerSpecificationRequested: BH only requested specification and
	// took no position on the merits.
	TriggerSpecificationRequested Trigger = "specification_requested"
	// TriggerNoEntitlement: no related time-extension rejection was found
	// unjustified, so the acceleration claim has no entitlement days.
	TriggerNoEntitlement Trigger = "no_entitlement"
)

// upstreamTriggers are the only triggers a caller may pass in as
// upstream-track subsidiarity grounds.
var upstreamTriggers = map[Trigger]bool{
	TriggerLiabilityBasisRejected: true,
	TriggerConditionUnmet:         true,
}

// Tri is an explicit tri-state flag. The zero value is Unset; evaluating
// a rule that needs an Unset flag fails with ErrIndeterminate instead of
// guessing a default.
type Tri uint8

const (
	Unset Tri = iota
	True
	False
)

// Known reports whether the flag has been decided.
func (t Tri) Known() bool { return t == True || t == False }

func (t Tri) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unset"
	}
}

// ErrIndeterminate is returned when a determination needs a flag that has
// not been decided yet. The caller surfaces this as a non-terminal state.
var ErrIndeterminate = errors.New("determination input is not yet decided")

// ErrInvalidInput is returned for inputs that can never be valid
// (negative quantities, approved exceeding claimed, unknown enum values).
var ErrInvalidInput = errors.New("invalid determination input")

func indeterminate(field string) error {
	return fmt.Errorf("%w: %s", ErrIndeterminate, field)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Result is the common principal/subsidiary pair every determination
// produces. Subsidiary is non-nil exactly when Principal is rejected on a
// procedural or hypothetical ground, i.e. when Triggers is non-empty.
type Result struct {
	Principal  Outcome   `json:"principal"`
	Subsidiary *Outcome  `json:"subsidiary,omitempty"`
	Triggers   []Trigger `json:"subsidiary_triggers,omitempty"`
}

// ratioOutcome applies the shared partial-approval rule: a claimed
// quantity of zero is approved outright, otherwise approved at a ratio of
// 0.99 or above, rejected at zero, partially approved in between.
// Integer cross-multiplication keeps the 99% boundary exact.
func ratioOutcome(approved, claimed int64) Outcome {
	if claimed == 0 {
		return OutcomeApproved
	}
	switch {
	case approved*100 >= claimed*99:
		return OutcomeApproved
	case approved > 0:
		return OutcomePartiallyApproved
	default:
		return OutcomeRejected
	}
}

// normalizeTriggers deduplicates and orders triggers so results compare
// equal regardless of the order grounds were collected in.
func normalizeTriggers(triggers []Trigger) []Trigger {
	if len(triggers) == 0 {
		return nil
	}
	seen := make(map[Trigger]bool, len(triggers))
	out := make([]Trigger, 0, len(triggers))
	for _, t := range triggers {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// validateUpstream checks that caller-supplied subsidiarity grounds are
// ones that can originate upstream.
func validateUpstream(triggers []Trigger) error {
	for _, t := range triggers {
		if !upstreamTriggers[t] {
			return invalid("trigger %q cannot be an upstream subsidiarity ground", t)
		}
	}
	return nil
}

// finalize assembles a Result, honoring the presence invariant: the
// subsidiary outcome is attached only to a rejected principal with at
// least one trigger, and triggers are dropped when subsidiarity does not
// apply.
func finalize(principal Outcome, subsidiary Outcome, triggers []Trigger) Result {
	res := Result{Principal: principal}
	if principal != OutcomeRejected {
		return res
	}
	res.Triggers = normalizeTriggers(triggers)
	if len(res.Triggers) > 0 {
		s := subsidiary
		res.Subsidiary = &s
	}
	return res
}
