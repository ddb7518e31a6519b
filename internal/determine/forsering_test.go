package determine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetermineForsering_EntitlementGate(t *testing.T) {
	base := ForseringInput{
		EstimatedCost:      500_000,
		DailyPenaltyRate:   10_000,
		MainClaimedAmount:  500_000,
		MainApprovedAmount: 500_000,
		MainNoticeTimely:   True,
	}

	// No related rejection found unjustified: no entitlement, principal
	// rejected regardless of the amount evaluation.
	in := base
	in.Related = []RelatedCase{
		{CaseRef: "TE-101", RejectedDays: 12, RejectionUnjustified: False},
	}
	res, err := DetermineForsering(in)
	require.NoError(t, err)
	assert.Equal(t, 0, res.EntitlementDays)
	assert.Equal(t, OutcomeRejected, res.Principal)
	assert.Equal(t, int64(0), res.TotalPrincipal)
	assert.Contains(t, res.Triggers, TriggerNoEntitlement)
	require.NotNil(t, res.Subsidiary)
	assert.Equal(t, OutcomeApproved, *res.Subsidiary)

	// One unjustified rejection opens the gate.
	in = base
	in.Related = []RelatedCase{
		{CaseRef: "TE-101", RejectedDays: 12, RejectionUnjustified: False},
		{CaseRef: "TE-102", RejectedDays: 8, RejectionUnjustified: True},
	}
	res, err = DetermineForsering(in)
	require.NoError(t, err)
	assert.Equal(t, 8, res.EntitlementDays)
	assert.Equal(t, 20, res.RejectedDaysTotal)
	assert.Equal(t, OutcomeApproved, res.Principal)
	assert.Equal(t, int64(500_000), res.TotalPrincipal)
	assert.Nil(t, res.Subsidiary)
}

func TestDetermineForsering_UnsetRejectionFlagIsIndeterminate(t *testing.T) {
	_, err := DetermineForsering(ForseringInput{
		Related:          []RelatedCase{{CaseRef: "TE-101", RejectedDays: 5}},
		MainNoticeTimely: True,
	})
	assert.True(t, errors.Is(err, ErrIndeterminate))
}

func TestDetermineForsering_CostCapIsInformational(t *testing.T) {
	// Cap = 20 days x 10000 x 1.3 = 260000. An estimate above the cap
	// flags CapExceeded but never reshapes the outcome.
	in := ForseringInput{
		EstimatedCost:      300_000,
		DailyPenaltyRate:   10_000,
		Related:            []RelatedCase{{CaseRef: "TE-7", RejectedDays: 20, RejectionUnjustified: True}},
		MainClaimedAmount:  300_000,
		MainApprovedAmount: 300_000,
		MainNoticeTimely:   True,
	}
	res, err := DetermineForsering(in)
	require.NoError(t, err)
	assert.Equal(t, int64(260_000), res.CostCap)
	assert.True(t, res.CapExceeded)
	assert.Equal(t, OutcomeApproved, res.Principal)

	in.EstimatedCost = 260_000
	res, err = DetermineForsering(in)
	require.NoError(t, err)
	assert.False(t, res.CapExceeded)
	assert.Equal(t, OutcomeApproved, res.Principal)
}

func TestDetermineForsering_MainPreclusion(t *testing.T) {
	res, err := DetermineForsering(ForseringInput{
		Related:            []RelatedCase{{CaseRef: "TE-1", RejectedDays: 10, RejectionUnjustified: True}},
		MainClaimedAmount:  200_000,
		MainApprovedAmount: 200_000,
		MainNoticeTimely:   False,
	})
	require.NoError(t, err)
	assert.True(t, res.MainPrecluded)
	assert.Equal(t, OutcomeRejected, res.MainOutcome)
	assert.Equal(t, int64(0), res.MainPrincipalAmount)
	assert.Equal(t, int64(200_000), res.MainSubsidiaryAmount)
	assert.Equal(t, OutcomeRejected, res.Principal)
	assert.Equal(t, []Trigger{TriggerNoticePrecluded}, res.Triggers)
	require.NotNil(t, res.Subsidiary)
	assert.Equal(t, OutcomeApproved, *res.Subsidiary)
}

func TestDetermineForsering_LinesAggregated(t *testing.T) {
	res, err := DetermineForsering(ForseringInput{
		Related:            []RelatedCase{{CaseRef: "TE-1", RejectedDays: 10, RejectionUnjustified: True}},
		MainClaimedAmount:  100_000,
		MainApprovedAmount: 100_000,
		MainNoticeTimely:   True,
		Lines: []LineItem{
			{Kind: LineSiteOverhead, ClaimedAmount: 50_000, ApprovedAmount: 50_000, NoticeTimely: False},
			{Kind: LineProductivityLoss, ClaimedAmount: 30_000, ApprovedAmount: 20_000, NoticeTimely: True},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(180_000), res.TotalClaimed)
	assert.Equal(t, int64(120_000), res.TotalPrincipal, "precluded overhead line contributes nothing")
	assert.Equal(t, int64(170_000), res.TotalSubsidiary)
	assert.Equal(t, OutcomePartiallyApproved, res.Principal)
	require.Len(t, res.Lines, 2)
	assert.True(t, res.Lines[0].Precluded)
	assert.False(t, res.Lines[1].Precluded)
}

func TestDetermineForsering_LineValidation(t *testing.T) {
	_, err := DetermineForsering(ForseringInput{
		MainNoticeTimely: True,
		Lines: []LineItem{
			{Kind: LineSiteOverhead, NoticeTimely: True},
			{Kind: LineSiteOverhead, NoticeTimely: True},
		},
	})
	assert.True(t, errors.Is(err, ErrInvalidInput), "duplicate kinds rejected")

	_, err = DetermineForsering(ForseringInput{
		MainNoticeTimely: True,
		Lines: []LineItem{
			{Kind: LineSiteOverhead, NoticeTimely: True},
			{Kind: LineProductivityLoss, NoticeTimely: True},
			{Kind: LineSiteOverhead, NoticeTimely: True},
		},
	})
	assert.True(t, errors.Is(err, ErrInvalidInput), "more than two lines rejected")
}

func TestDetermineForsering_UpstreamForcesRejection(t *testing.T) {
	res, err := DetermineForsering(ForseringInput{
		Related:            []RelatedCase{{CaseRef: "TE-1", RejectedDays: 10, RejectionUnjustified: True}},
		MainClaimedAmount:  100_000,
		MainApprovedAmount: 100_000,
		MainNoticeTimely:   True,
		Upstream:           []Trigger{TriggerLiabilityBasisRejected},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, res.Principal)
	assert.Equal(t, []Trigger{TriggerLiabilityBasisRejected}, res.Triggers)
	require.NotNil(t, res.Subsidiary)
	assert.Equal(t, OutcomeApproved, *res.Subsidiary)
}

func TestDetermineForsering_Idempotent(t *testing.T) {
	in := ForseringInput{
		EstimatedCost:      120_000,
		DailyPenaltyRate:   5_000,
		Related:            []RelatedCase{{CaseRef: "TE-9", RejectedDays: 15, RejectionUnjustified: True}},
		MainClaimedAmount:  90_000,
		MainApprovedAmount: 60_000,
		MainNoticeTimely:   True,
	}
	first, err := DetermineForsering(in)
	require.NoError(t, err)
	second, err := DetermineForsering(in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
