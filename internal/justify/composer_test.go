package justify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byggsak/be-cc-claims/internal/determine"
)

func TestPlainComposer_Frist(t *testing.T) {
	in := determine.FristInput{
		Notice:       determine.Notice{Kind: determine.NoticeProvisional, ProvisionalTimely: determine.False},
		HindranceMet: determine.True,
		ClaimedDays:  14,
		ApprovedDays: 14,
	}
	res, err := determine.DetermineFrist(in)
	require.NoError(t, err)

	text := PlainComposer{}.ComposeFrist(in, res)
	assert.Contains(t, text, "14 day(s)")
	assert.Contains(t, text, "rejected")
	assert.Contains(t, text, "In the alternative: approved")
	assert.Contains(t, text, "notice_precluded")
}

func TestPlainComposer_VederlagLines(t *testing.T) {
	in := determine.VederlagInput{
		Notice:         determine.Notice{Kind: determine.NoticeProvisional, ProvisionalTimely: determine.True},
		ConditionMet:   determine.True,
		ClaimedAmount:  100_000,
		ApprovedAmount: 100_000,
		LineItems: []determine.LineItem{
			{Kind: determine.LineSiteOverhead, ClaimedAmount: 20_000, ApprovedAmount: 20_000, NoticeTimely: determine.False},
		},
	}
	res, err := determine.DetermineVederlag(in)
	require.NoError(t, err)

	text := PlainComposer{}.ComposeVederlag(in, res)
	assert.Contains(t, text, "binding total 100000")
	assert.Contains(t, text, "site_overhead rejected (precluded)")
}

func TestPlainComposer_ForseringCap(t *testing.T) {
	in := determine.ForseringInput{
		EstimatedCost:      400_000,
		DailyPenaltyRate:   10_000,
		Related:            []determine.RelatedCase{{CaseRef: "TE-1", RejectedDays: 20, RejectionUnjustified: determine.True}},
		MainClaimedAmount:  400_000,
		MainApprovedAmount: 400_000,
		MainNoticeTimely:   determine.True,
	}
	res, err := determine.DetermineForsering(in)
	require.NoError(t, err)
	require.True(t, res.CapExceeded)

	text := PlainComposer{}.ComposeForsering(in, res)
	assert.Contains(t, text, "entitlement 20 day(s)")
	assert.Contains(t, text, "statutory cap of 260000")
}
