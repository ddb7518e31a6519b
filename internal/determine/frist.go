package determine

// FristInput carries the facts needed to determine a time-extension
// (frist) claim. It is a value: construct it fresh per call.
type FristInput struct {
	Notice Notice

	// HindranceMet: the contractual hindrance condition is satisfied.
	HindranceMet Tri

	// ClaimedDays is the TE-claimed extension, ApprovedDays the number of
	// days the evaluator accepts on the merits (0 ≤ approved ≤ claimed).
	ClaimedDays  int
	ApprovedDays int

	// RequestOnly: BH answered with a request for specification without
	// taking a position on the merits. Forces a rejected principal.
	RequestOnly bool

	// Upstream carries subsidiarity grounds inherited from other tracks,
	// e.g. TriggerLiabilityBasisRejected when the liability-basis track
	// itself was rejected and this track is therefore hypothetical.
	Upstream []Trigger

	// DaysReducedByResponse: the claimed day count was reduced by a
	// specification-response event. ReductionResponseTimely is the
	// timeliness of that event; a late reduction puts the reduction in
	// dispute without replacing the primary preclusion check.
	DaysReducedByResponse   bool
	ReductionResponseTimely Tri
}

// FristResult is the determined outcome of a time-extension claim.
type FristResult struct {
	Result

	ClaimedDays  int `json:"claimed_days"`
	ApprovedDays int `json:"approved_days"`

	// Precluded records the primary preclusion finding.
	Precluded bool `json:"precluded"`

	// ReductionDisputed: the day-count reduction itself arrived late and
	// is contested. Layered on top of, never instead of, Precluded.
	ReductionDisputed bool `json:"reduction_disputed,omitempty"`
}

// DetermineFrist evaluates a time-extension claim into principal and
// subsidiary outcomes. Pure: identical input yields identical output.
func DetermineFrist(in FristInput) (FristResult, error) {
	if in.ClaimedDays < 0 || in.ApprovedDays < 0 {
		return FristResult{}, invalid("day counts must be non-negative (claimed=%d approved=%d)", in.ClaimedDays, in.ApprovedDays)
	}
	if in.ApprovedDays > in.ClaimedDays {
		return FristResult{}, invalid("approved days %d exceed claimed days %d", in.ApprovedDays, in.ClaimedDays)
	}
	if err := validateUpstream(in.Upstream); err != nil {
		return FristResult{}, err
	}

	precluded, err := in.Notice.Precluded()
	if err != nil {
		return FristResult{}, err
	}

	reductionDisputed := false
	if in.DaysReducedByResponse {
		if !in.ReductionResponseTimely.Known() {
			return FristResult{}, indeterminate("reduction_response_timely")
		}
		reductionDisputed = in.ReductionResponseTimely == False
	}

	// The merits outcome ignores every procedural and hypothetical bar:
	// only the hindrance condition and the day ratio count. It doubles as
	// the subsidiary outcome.
	merits, err := fristMerits(in)
	if err != nil {
		return FristResult{}, err
	}

	triggers := make([]Trigger, 0, len(in.Upstream)+2)
	triggers = append(triggers, in.Upstream...)
	if in.RequestOnly {
		triggers = append(triggers, TriggerSpecificationRequested)
	}
	if precluded {
		triggers = append(triggers, TriggerNoticePrecluded)
	}

	principal := merits
	if in.RequestOnly || precluded || len(in.Upstream) > 0 {
		principal = OutcomeRejected
	}

	return FristResult{
		Result:            finalize(principal, merits, triggers),
		ClaimedDays:       in.ClaimedDays,
		ApprovedDays:      in.ApprovedDays,
		Precluded:         precluded,
		ReductionDisputed: reductionDisputed,
	}, nil
}

func fristMerits(in FristInput) (Outcome, error) {
	if !in.HindranceMet.Known() {
		return "", indeterminate("hindrance_met")
	}
	if in.HindranceMet == False {
		return OutcomeRejected, nil
	}
	return ratioOutcome(int64(in.ApprovedDays), int64(in.ClaimedDays)), nil
}
