package determine

// RelatedCase is one time-extension case whose rejection fed into an
// acceleration claim. The evaluator records, per case, whether that
// rejection was unjustified; the days of unjustified rejections make up
// the entitlement.
type RelatedCase struct {
	CaseRef              string
	RejectedDays         int
	RejectionUnjustified Tri
}

// ForseringInput carries the facts needed to determine an
// acceleration-cost (forsering) claim. Amounts are in minor currency
// units.
type ForseringInput struct {
	// EstimatedCost is the TE's estimated acceleration cost, checked
	// against the statutory 30% cap.
	EstimatedCost int64
	// DailyPenaltyRate is the contractual day-penalty ("dagmulkt") rate
	// the cap is computed from.
	DailyPenaltyRate int64

	Related []RelatedCase

	MainClaimedAmount  int64
	MainApprovedAmount int64
	MainNoticeTimely   Tri

	// Lines holds up to two special line items (site overhead,
	// productivity loss), each independently precludable.
	Lines []LineItem

	Upstream []Trigger
}

// ForseringResult is the determined outcome of an acceleration claim.
type ForseringResult struct {
	Result

	// EntitlementDays is the sum of days from related cases whose
	// rejection the evaluator found unjustified. Zero entitlement rejects
	// the principal outright, independent of the amount evaluation.
	EntitlementDays int `json:"entitlement_days"`
	// RejectedDaysTotal is the sum of days across all related cases.
	RejectedDaysTotal int `json:"rejected_days_total"`

	// CostCap = rejected days × daily penalty rate × 1.3. CapExceeded is
	// informational: it feeds the narrative, never the outcome.
	CostCap     int64 `json:"cost_cap"`
	CapExceeded bool  `json:"cap_exceeded"`

	MainOutcome          Outcome `json:"main_outcome"`
	MainPrecluded        bool    `json:"main_precluded"`
	MainPrincipalAmount  int64   `json:"main_principal_amount"`
	MainSubsidiaryAmount int64   `json:"main_subsidiary_amount"`

	Lines []LineResult `json:"lines,omitempty"`

	TotalClaimed   int64 `json:"total_claimed"`
	TotalPrincipal int64 `json:"total_principal"`
	// TotalSubsidiary sums every line contribution regardless of
	// preclusion and entitlement: what the amount would be if entitlement
	// were found. Display-only, never a binding figure.
	TotalSubsidiary int64 `json:"total_subsidiary"`
}

// DetermineForsering runs the four-stage acceleration evaluation:
// entitlement, statutory cap, per-line amount rating, aggregation.
func DetermineForsering(in ForseringInput) (ForseringResult, error) {
	if in.EstimatedCost < 0 || in.DailyPenaltyRate < 0 {
		return ForseringResult{}, invalid("estimated cost and penalty rate must be non-negative")
	}
	if in.MainClaimedAmount < 0 || in.MainApprovedAmount < 0 || in.MainApprovedAmount > in.MainClaimedAmount {
		return ForseringResult{}, invalid("main amounts out of range (claimed=%d approved=%d)", in.MainClaimedAmount, in.MainApprovedAmount)
	}
	if len(in.Lines) > 2 {
		return ForseringResult{}, invalid("at most two special line items, got %d", len(in.Lines))
	}
	if len(in.Lines) == 2 && in.Lines[0].Kind == in.Lines[1].Kind {
		return ForseringResult{}, invalid("duplicate line item kind %q", in.Lines[0].Kind)
	}
	if err := validateUpstream(in.Upstream); err != nil {
		return ForseringResult{}, err
	}

	// Stage 1: entitlement.
	entitlementDays := 0
	rejectedTotal := 0
	for _, rc := range in.Related {
		if rc.RejectedDays < 0 {
			return ForseringResult{}, invalid("related case %s has negative rejected days", rc.CaseRef)
		}
		if !rc.RejectionUnjustified.Known() {
			return ForseringResult{}, indeterminate("related case " + rc.CaseRef + " rejection_unjustified")
		}
		rejectedTotal += rc.RejectedDays
		if rc.RejectionUnjustified == True {
			entitlementDays += rc.RejectedDays
		}
	}

	// Stage 2: statutory cap, auto-computed and informational only.
	costCap := int64(rejectedTotal) * in.DailyPenaltyRate * 13 / 10
	capExceeded := in.EstimatedCost > costCap

	// Stage 3: amount evaluation, main claim first.
	mainPrecluded, err := mainLinePrecluded(in.MainNoticeTimely)
	if err != nil {
		return ForseringResult{}, err
	}
	mainOutcome := ratioOutcome(in.MainApprovedAmount, in.MainClaimedAmount)
	mainPrincipal := in.MainApprovedAmount
	if mainPrecluded {
		mainOutcome = OutcomeRejected
		mainPrincipal = 0
	}

	totalClaimed := in.MainClaimedAmount
	sumPrincipal := mainPrincipal
	totalSubsidiary := in.MainApprovedAmount
	anyLinePrecluded := false

	lines := make([]LineResult, 0, len(in.Lines))
	for _, item := range in.Lines {
		lr, err := rateLineItem(item.Kind, item.ClaimedAmount, item.ApprovedAmount, item.NoticeTimely)
		if err != nil {
			return ForseringResult{}, err
		}
		lines = append(lines, lr)
		totalClaimed += lr.ClaimedAmount
		sumPrincipal += lr.PrincipalAmount
		totalSubsidiary += lr.SubsidiaryAmount
		if lr.Precluded {
			anyLinePrecluded = true
		}
	}

	// Stage 4: aggregation. No entitlement zeroes the binding total.
	totalPrincipal := sumPrincipal
	if entitlementDays == 0 {
		totalPrincipal = 0
	}

	triggers := make([]Trigger, 0, len(in.Upstream)+2)
	triggers = append(triggers, in.Upstream...)
	if entitlementDays == 0 {
		triggers = append(triggers, TriggerNoEntitlement)
	}
	if mainPrecluded || anyLinePrecluded {
		triggers = append(triggers, TriggerNoticePrecluded)
	}

	// The subsidiary rates the aggregate on the merits alone, ignoring
	// entitlement and preclusion.
	subsidiary := ratioOutcome(totalSubsidiary, totalClaimed)

	// A zero principal total rejects either way; whether a subsidiary is
	// attached depends on the triggers (preclusion with a non-zero
	// subsidiary amount versus an explicit merits rejection of the main
	// claim), which finalize resolves.
	principal := ratioOutcome(totalPrincipal, totalClaimed)
	if entitlementDays == 0 || len(in.Upstream) > 0 {
		principal = OutcomeRejected
	}

	return ForseringResult{
		Result:               finalize(principal, subsidiary, triggers),
		EntitlementDays:      entitlementDays,
		RejectedDaysTotal:    rejectedTotal,
		CostCap:              costCap,
		CapExceeded:          capExceeded,
		MainOutcome:          mainOutcome,
		MainPrecluded:        mainPrecluded,
		MainPrincipalAmount:  mainPrincipal,
		MainSubsidiaryAmount: in.MainApprovedAmount,
		Lines:                lines,
		TotalClaimed:         totalClaimed,
		TotalPrincipal:       totalPrincipal,
		TotalSubsidiary:      totalSubsidiary,
	}, nil
}

// mainLinePrecluded decides preclusion for the acceleration main claim,
// which carries a single notice-timely flag like a special line item.
func mainLinePrecluded(noticeTimely Tri) (bool, error) {
	if !noticeTimely.Known() {
		return false, indeterminate("main_notice_timely")
	}
	return noticeTimely == False, nil
}
