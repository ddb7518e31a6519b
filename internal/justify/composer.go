// Package justify defines the consumer contract for the
// justification-text composer. The composer is a pure, stateless
// function of a full determination result plus the raw claim figures; it
// must never re-derive a legal determination itself.
package justify

import (
	"fmt"
	"strings"

	"github.com/byggsak/be-cc-claims/internal/determine"
)

// Composer renders structured natural-language justification for a
// determined claim. Implementations must be pure and stateless.
type Composer interface {
	ComposeFrist(in determine.FristInput, res determine.FristResult) string
	ComposeVederlag(in determine.VederlagInput, res determine.VederlagResult) string
	ComposeForsering(in determine.ForseringInput, res determine.ForseringResult) string
}

// PlainComposer is the reference implementation: terse single-paragraph
// summaries suitable for audit metadata. Rich rendering is out of scope
// and lives with the owning frontend.
type PlainComposer struct{}

var _ Composer = PlainComposer{}

func (PlainComposer) ComposeFrist(in determine.FristInput, res determine.FristResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Time-extension claim of %d day(s): %s", res.ClaimedDays, res.Principal)
	if res.Principal == determine.OutcomePartiallyApproved || res.Principal == determine.OutcomeApproved {
		fmt.Fprintf(&b, " (%d of %d days)", res.ApprovedDays, res.ClaimedDays)
	}
	writeSubsidiary(&b, res.Result)
	if res.ReductionDisputed {
		b.WriteString(" The late reduction of the claimed day count is disputed.")
	}
	return b.String()
}

func (PlainComposer) ComposeVederlag(in determine.VederlagInput, res determine.VederlagResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Compensation claim of %d: %s, binding total %d", res.ClaimedAmount, res.Principal, res.TotalPrincipal)
	for _, line := range res.Lines {
		fmt.Fprintf(&b, "; %s %s", line.Kind, line.Outcome)
		if line.Precluded {
			b.WriteString(" (precluded)")
		}
	}
	writeSubsidiary(&b, res.Result)
	if res.SettlementMethodDisputed {
		b.WriteString(" The settlement method remains disputed between the parties.")
	}
	return b.String()
}

func (PlainComposer) ComposeForsering(in determine.ForseringInput, res determine.ForseringResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Acceleration-cost claim: %s, entitlement %d day(s), binding total %d",
		res.Principal, res.EntitlementDays, res.TotalPrincipal)
	if res.CapExceeded {
		fmt.Fprintf(&b, ". The estimated cost exceeds the 30%% statutory cap of %d", res.CostCap)
	}
	writeSubsidiary(&b, res.Result)
	return b.String()
}

func writeSubsidiary(b *strings.Builder, res determine.Result) {
	if res.Subsidiary == nil {
		return
	}
	fmt.Fprintf(b, ". In the alternative: %s (", *res.Subsidiary)
	for i, t := range res.Triggers {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(string(t))
	}
	b.WriteString(")")
}
