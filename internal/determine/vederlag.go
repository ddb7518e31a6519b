package determine

// LineItem is a special cost category (site overhead, productivity
// loss) claimed alongside a main compensation or acceleration claim,
// with its own independent notice. Amounts are in minor currency units.
type LineItem struct {
	Kind           LineItemKind
	ClaimedAmount  int64
	ApprovedAmount int64 // evaluator-selected amount on the merits
	NoticeTimely   Tri
}

// VederlagInput carries the facts needed to determine a compensation
// (vederlag) claim.
type VederlagInput struct {
	Notice Notice

	// ConditionMet: the contractual ground for compensation is satisfied.
	ConditionMet Tri

	ClaimedAmount  int64
	ApprovedAmount int64

	RequestOnly bool
	Upstream    []Trigger

	LineItems []LineItem

	// SettlementMethodDisputed: the parties disagree on unit-price versus
	// cost-reimbursement settlement. Orthogonal to the amount logic, but
	// surfaced on the result.
	SettlementMethodDisputed bool
}

// LineResult is the independent rating of one special line item.
type LineResult struct {
	Kind    LineItemKind `json:"kind"`
	Outcome Outcome      `json:"outcome"`
	// Precluded forces the principal contribution to zero; the subsidiary
	// contribution keeps the evaluator-selected amount.
	Precluded        bool  `json:"precluded"`
	ClaimedAmount    int64 `json:"claimed_amount"`
	PrincipalAmount  int64 `json:"principal_amount"`
	SubsidiaryAmount int64 `json:"subsidiary_amount"`
}

// VederlagResult is the determined outcome of a compensation claim.
type VederlagResult struct {
	Result

	ClaimedAmount  int64 `json:"claimed_amount"`
	ApprovedAmount int64 `json:"approved_amount"`
	Precluded      bool  `json:"precluded"`

	Lines []LineResult `json:"lines,omitempty"`

	// TotalPrincipal is the binding figure: the main claim's principal
	// contribution plus every non-precluded line item.
	TotalPrincipal int64 `json:"total_principal"`
	// TotalSubsidiary sums the merits contributions of the main claim and
	// of every line item regardless of preclusion. Display-only.
	TotalSubsidiary int64 `json:"total_subsidiary"`

	SettlementMethodDisputed bool `json:"settlement_method_disputed,omitempty"`
}

// DetermineVederlag evaluates a compensation claim. The main amount uses
// the shared ratio rule; each special line item is rated independently
// and preclusion of one never touches another.
func DetermineVederlag(in VederlagInput) (VederlagResult, error) {
	if in.ClaimedAmount < 0 || in.ApprovedAmount < 0 {
		return VederlagResult{}, invalid("amounts must be non-negative (claimed=%d approved=%d)", in.ClaimedAmount, in.ApprovedAmount)
	}
	if in.ApprovedAmount > in.ClaimedAmount {
		return VederlagResult{}, invalid("approved amount %d exceeds claimed amount %d", in.ApprovedAmount, in.ClaimedAmount)
	}
	if err := validateUpstream(in.Upstream); err != nil {
		return VederlagResult{}, err
	}

	precluded, err := in.Notice.Precluded()
	if err != nil {
		return VederlagResult{}, err
	}

	merits, mainMeritsAmount, err := vederlagMerits(in)
	if err != nil {
		return VederlagResult{}, err
	}

	mainPrincipalAmount := mainMeritsAmount
	barred := in.RequestOnly || precluded || len(in.Upstream) > 0
	if barred {
		mainPrincipalAmount = 0
	}

	lines := make([]LineResult, 0, len(in.LineItems))
	totalPrincipal := mainPrincipalAmount
	totalSubsidiary := mainMeritsAmount
	for _, item := range in.LineItems {
		lr, err := rateLineItem(item.Kind, item.ClaimedAmount, item.ApprovedAmount, item.NoticeTimely)
		if err != nil {
			return VederlagResult{}, err
		}
		lines = append(lines, lr)
		totalPrincipal += lr.PrincipalAmount
		totalSubsidiary += lr.SubsidiaryAmount
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
	if barred {
		principal = OutcomeRejected
	}

	return VederlagResult{
		Result:                   finalize(principal, merits, triggers),
		ClaimedAmount:            in.ClaimedAmount,
		ApprovedAmount:           in.ApprovedAmount,
		Precluded:                precluded,
		Lines:                    lines,
		TotalPrincipal:           totalPrincipal,
		TotalSubsidiary:          totalSubsidiary,
		SettlementMethodDisputed: in.SettlementMethodDisputed,
	}, nil
}

// vederlagMerits rates the main claim ignoring procedural bars and
// returns the merits contribution amount alongside the outcome.
func vederlagMerits(in VederlagInput) (Outcome, int64, error) {
	if !in.ConditionMet.Known() {
		return "", 0, indeterminate("condition_met")
	}
	if in.ConditionMet == False {
		return OutcomeRejected, 0, nil
	}
	return ratioOutcome(in.ApprovedAmount, in.ClaimedAmount), in.ApprovedAmount, nil
}

// rateLineItem rates one special line item independently of the main
// claim and of every other line item.
func rateLineItem(kind LineItemKind, claimed, approved int64, noticeTimely Tri) (LineResult, error) {
	if claimed < 0 || approved < 0 || approved > claimed {
		return LineResult{}, invalid("line item %s amounts out of range (claimed=%d approved=%d)", kind, claimed, approved)
	}
	precluded, err := linePrecluded(kind, noticeTimely)
	if err != nil {
		return LineResult{}, err
	}
	lr := LineResult{
		Kind:             kind,
		Precluded:        precluded,
		ClaimedAmount:    claimed,
		SubsidiaryAmount: approved,
	}
	if precluded {
		lr.Outcome = OutcomeRejected
		lr.PrincipalAmount = 0
		return lr, nil
	}
	lr.Outcome = ratioOutcome(approved, claimed)
	lr.PrincipalAmount = approved
	return lr, nil
}
