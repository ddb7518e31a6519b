package determine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoticePrecluded_Provisional(t *testing.T) {
	tests := []struct {
		name      string
		notice    Notice
		precluded bool
	}{
		{
			name:      "timely provisional notice preserves the claim",
			notice:    Notice{Kind: NoticeProvisional, ProvisionalTimely: True},
			precluded: false,
		},
		{
			name:      "late provisional notice forfeits the claim",
			notice:    Notice{Kind: NoticeProvisional, ProvisionalTimely: False},
			precluded: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.notice.Precluded()
			require.NoError(t, err)
			assert.Equal(t, tt.precluded, got)
		})
	}
}

func TestNoticePrecluded_Specified(t *testing.T) {
	// A timely prior provisional notice shifts the check onto the
	// specification deadline.
	got, err := Notice{
		Kind:                   NoticeSpecified,
		PriorProvisionalTimely: True,
		SpecifiedTimely:        False,
	}.Precluded()
	require.NoError(t, err)
	assert.True(t, got, "late specification after timely provisional must preclude")

	got, err = Notice{
		Kind:                   NoticeSpecified,
		PriorProvisionalTimely: True,
		SpecifiedTimely:        True,
	}.Precluded()
	require.NoError(t, err)
	assert.False(t, got)

	// Without a prior provisional notice the provisional deadline governs.
	got, err = Notice{
		Kind:                   NoticeSpecified,
		PriorProvisionalTimely: False,
		ProvisionalTimely:      False,
	}.Precluded()
	require.NoError(t, err)
	assert.True(t, got)

	got, err = Notice{
		Kind:                   NoticeSpecified,
		PriorProvisionalTimely: False,
		ProvisionalTimely:      True,
	}.Precluded()
	require.NoError(t, err)
	assert.False(t, got)
}

func TestNoticePrecluded_RequestResponse(t *testing.T) {
	got, err := Notice{Kind: NoticeRequestResponse, RequestResponseTimely: True}.Precluded()
	require.NoError(t, err)
	assert.False(t, got)

	got, err = Notice{Kind: NoticeRequestResponse, RequestResponseTimely: False}.Precluded()
	require.NoError(t, err)
	assert.True(t, got)
}

func TestNoticePrecluded_RequestResponsePrecedence(t *testing.T) {
	// A late answer to a specification request bars the claim even when
	// the kind-specific notice was timely.
	got, err := Notice{
		Kind:                  NoticeProvisional,
		ProvisionalTimely:     True,
		RequestResponseTimely: False,
	}.Precluded()
	require.NoError(t, err)
	assert.True(t, got)
}

func TestNoticePrecluded_UnsetFlagsAreIndeterminate(t *testing.T) {
	tests := []struct {
		name   string
		notice Notice
	}{
		{"provisional flag unset", Notice{Kind: NoticeProvisional}},
		{"prior provisional unset", Notice{Kind: NoticeSpecified}},
		{"specified unset after timely provisional", Notice{Kind: NoticeSpecified, PriorProvisionalTimely: True}},
		{"request response unset", Notice{Kind: NoticeRequestResponse}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.notice.Precluded()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrIndeterminate), "got %v", err)
		})
	}
}

func TestNoticePrecluded_UnknownKind(t *testing.T) {
	_, err := Notice{Kind: "telegram"}.Precluded()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestLinePrecluded(t *testing.T) {
	got, err := linePrecluded(LineSiteOverhead, False)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = linePrecluded(LineProductivityLoss, True)
	require.NoError(t, err)
	assert.False(t, got)

	_, err = linePrecluded(LineSiteOverhead, Unset)
	assert.True(t, errors.Is(err, ErrIndeterminate))

	_, err = linePrecluded("overtime", True)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestTriKnown(t *testing.T) {
	assert.False(t, Unset.Known())
	assert.True(t, True.Known())
	assert.True(t, False.Known())
	assert.Equal(t, "unset", Unset.String())
}
