package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byggsak/be-cc-claims/internal/apperrors"
	"github.com/byggsak/be-cc-claims/internal/determine"
	"github.com/byggsak/be-cc-claims/internal/justify"
	"github.com/byggsak/be-cc-claims/internal/logger"
	"github.com/byggsak/be-cc-claims/internal/repository"
)

// ── Shared fakes ──────────────────────────────────────────────────────────────

func newTestLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Environment: "test", ServiceName: "test"})
}

type fakeCaseStore struct {
	cases          map[string]*repository.Case
	tracks         map[string]*repository.ClaimTrack
	revisions      []*repository.TrackRevision
	determinations map[string][]byte
	nextID         int
}

func newFakeCaseStore() *fakeCaseStore {
	return &fakeCaseStore{
		cases:          make(map[string]*repository.Case),
		tracks:         make(map[string]*repository.ClaimTrack),
		determinations: make(map[string][]byte),
	}
}

func (f *fakeCaseStore) addTrack(id string, kind repository.TrackKind, version int) *repository.ClaimTrack {
	track := &repository.ClaimTrack{ID: id, CaseID: "case-1", Kind: kind, Status: "draft", Version: version}
	f.tracks[id] = track
	return track
}

func (f *fakeCaseStore) Create(_ context.Context, c *repository.Case) error {
	f.nextID++
	c.ID = "case-" + string(rune('0'+f.nextID))
	f.cases[c.ID] = c
	return nil
}

func (f *fakeCaseStore) GetByID(_ context.Context, id string) (*repository.Case, error) {
	c, ok := f.cases[id]
	if !ok {
		return nil, apperrors.NotFound("case", id)
	}
	return c, nil
}

func (f *fakeCaseStore) GetTrack(_ context.Context, trackID string) (*repository.ClaimTrack, error) {
	t, ok := f.tracks[trackID]
	if !ok {
		return nil, apperrors.NotFound("track", trackID)
	}
	return t, nil
}

func (f *fakeCaseStore) SubmitRevision(_ context.Context, rev *repository.TrackRevision, newStatus string, expectedVersion int) (int, error) {
	track, ok := f.tracks[rev.TrackID]
	if !ok {
		return 0, apperrors.NotFound("track", rev.TrackID)
	}
	if track.Version != expectedVersion {
		return 0, apperrors.Conflict("expected version is stale; refresh and retry")
	}
	track.Version++
	track.Status = newStatus
	rev.Version = track.Version
	f.revisions = append(f.revisions, rev)
	return track.Version, nil
}

func (f *fakeCaseStore) SetDetermination(_ context.Context, trackID string, determination []byte) error {
	f.determinations[trackID] = determination
	return nil
}

func (f *fakeCaseStore) ListRevisions(_ context.Context, trackID string) ([]*repository.TrackRevision, error) {
	var out []*repository.TrackRevision
	for _, r := range f.revisions {
		if r.TrackID == trackID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeAuditStore struct {
	entries []*repository.AuditEntry
}

func (f *fakeAuditStore) Append(_ context.Context, entry *repository.AuditEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditStore) GetByCaseID(_ context.Context, caseID string) ([]*repository.AuditEntry, error) {
	var out []*repository.AuditEntry
	for _, e := range f.entries {
		if e.CaseID == caseID {
			out = append(out, e)
		}
	}
	return out, nil
}

type publishedEvent struct {
	EventType  string
	CaseID     string
	Recipients []string
}

type fakeNotifier struct {
	events []publishedEvent
}

func (f *fakeNotifier) PublishCaseEvent(_ context.Context, eventType, caseID, _, _ string, recipients []string, _ map[string]interface{}) {
	f.events = append(f.events, publishedEvent{EventType: eventType, CaseID: caseID, Recipients: recipients})
}

func newClaimService(store *fakeCaseStore, audit *fakeAuditStore, notifier *fakeNotifier) *ClaimService {
	return NewClaimService(store, audit, justify.PlainComposer{}, notifier, newTestLogger())
}

// ── Case creation ─────────────────────────────────────────────────────────────

func TestCreateCase(t *testing.T) {
	store := newFakeCaseStore()
	svc := newClaimService(store, &fakeAuditStore{}, &fakeNotifier{})

	c, err := svc.CreateCase(context.Background(), &CreateCaseRequest{
		ProjectID:  "proj-1",
		CaseNumber: "KOE-042",
		Title:      "Rock conditions deviate from the tender basis",
		Tracks:     []repository.TrackKind{repository.TrackLiabilityBasis, repository.TrackCompensation, repository.TrackTimeExtension},
		CreatedBy:  "te-user",
	})
	require.NoError(t, err)
	assert.Equal(t, repository.CaseChangeClaim, c.Kind, "kind defaults to change_claim")
	require.Len(t, c.Tracks, 3)
	for _, track := range c.Tracks {
		assert.Equal(t, "draft", track.Status)
	}
}

func TestCreateCase_Validation(t *testing.T) {
	svc := newClaimService(newFakeCaseStore(), &fakeAuditStore{}, &fakeNotifier{})

	_, err := svc.CreateCase(context.Background(), &CreateCaseRequest{CaseNumber: "KOE-1", Tracks: []repository.TrackKind{repository.TrackCompensation}})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation), "missing project id")

	_, err = svc.CreateCase(context.Background(), &CreateCaseRequest{ProjectID: "p", CaseNumber: "KOE-1"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation), "no tracks")

	_, err = svc.CreateCase(context.Background(), &CreateCaseRequest{
		ProjectID: "p", CaseNumber: "KOE-1",
		Kind:   repository.CaseAcceleration,
		Tracks: []repository.TrackKind{repository.TrackCompensation},
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation), "acceleration without related cases")

	_, err = svc.CreateCase(context.Background(), &CreateCaseRequest{
		ProjectID: "p", CaseNumber: "KOE-1",
		Tracks: []repository.TrackKind{"payment"},
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation), "unknown track kind")
}

// ── Claimant submissions ──────────────────────────────────────────────────────

func TestSubmitTrack(t *testing.T) {
	store := newFakeCaseStore()
	store.addTrack("track-1", repository.TrackCompensation, 1)
	audit := &fakeAuditStore{}
	notifier := &fakeNotifier{}
	svc := newClaimService(store, audit, notifier)

	res, err := svc.SubmitTrack(context.Background(), &SubmitTrackRequest{
		TrackID:         "track-1",
		Action:          "create",
		Payload:         json.RawMessage(`{"claimed_amount":100000}`),
		ExpectedVersion: 1,
		SubmittedBy:     "te-user",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.NewVersion)
	assert.Equal(t, "submitted", store.tracks["track-1"].Status)

	require.Len(t, store.revisions, 1)
	assert.Equal(t, repository.OriginClaimant, store.revisions[0].Origin)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, "submitted", audit.entries[0].Action)
	require.Len(t, notifier.events, 1)
	assert.Equal(t, "track_submitted", notifier.events[0].EventType)
}

func TestSubmitTrack_StaleVersionConflicts(t *testing.T) {
	store := newFakeCaseStore()
	store.addTrack("track-1", repository.TrackCompensation, 3)
	svc := newClaimService(store, &fakeAuditStore{}, &fakeNotifier{})

	_, err := svc.SubmitTrack(context.Background(), &SubmitTrackRequest{
		TrackID:         "track-1",
		Action:          "update",
		Payload:         json.RawMessage(`{}`),
		ExpectedVersion: 2,
		SubmittedBy:     "te-user",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConflict))
	assert.Equal(t, 3, store.tracks["track-1"].Version, "stale submission must not mutate the track")
}

func TestSubmitTrack_Withdraw(t *testing.T) {
	store := newFakeCaseStore()
	store.addTrack("track-1", repository.TrackTimeExtension, 2)
	svc := newClaimService(store, &fakeAuditStore{}, &fakeNotifier{})

	res, err := svc.SubmitTrack(context.Background(), &SubmitTrackRequest{
		TrackID:         "track-1",
		Action:          "withdraw",
		ExpectedVersion: 2,
		SubmittedBy:     "te-user",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.NewVersion)
	assert.Equal(t, "withdrawn", store.tracks["track-1"].Status)
}

func TestSubmitTrack_Validation(t *testing.T) {
	svc := newClaimService(newFakeCaseStore(), &fakeAuditStore{}, &fakeNotifier{})

	_, err := svc.SubmitTrack(context.Background(), &SubmitTrackRequest{TrackID: "t", Action: "merge"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))

	_, err = svc.SubmitTrack(context.Background(), &SubmitTrackRequest{TrackID: "t", Action: "create"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation), "create without payload")

	_, err = svc.SubmitTrack(context.Background(), &SubmitTrackRequest{TrackID: "missing", Action: "create", Payload: json.RawMessage(`{}`)})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

// ── Responses with determination ──────────────────────────────────────────────

const validJustification = "The hindrance is documented in site diary entries 14 through 19."

func TestRespond_TimeExtension(t *testing.T) {
	store := newFakeCaseStore()
	store.addTrack("track-te", repository.TrackTimeExtension, 2)
	audit := &fakeAuditStore{}
	notifier := &fakeNotifier{}
	svc := newClaimService(store, audit, notifier)

	res, err := svc.Respond(context.Background(), &RespondRequest{
		TrackID:         "track-te",
		ExpectedVersion: 2,
		RespondedBy:     "bh-user",
		Justification:   validJustification,
		Frist: &determine.FristInput{
			Notice:       determine.Notice{Kind: determine.NoticeProvisional, ProvisionalTimely: determine.True},
			HindranceMet: determine.True,
			ClaimedDays:  14,
			ApprovedDays: 10,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.NewVersion)

	det, ok := res.Determination.(determine.FristResult)
	require.True(t, ok)
	assert.Equal(t, determine.OutcomePartiallyApproved, det.Principal)
	assert.NotEmpty(t, res.Justification)

	assert.Equal(t, "responded", store.tracks["track-te"].Status)
	assert.NotEmpty(t, store.determinations["track-te"], "determination snapshot persisted")
	require.Len(t, notifier.events, 1)
	assert.Equal(t, "track_responded", notifier.events[0].EventType)
}

func TestRespond_JustificationTooShort(t *testing.T) {
	store := newFakeCaseStore()
	store.addTrack("track-te", repository.TrackTimeExtension, 1)
	svc := newClaimService(store, &fakeAuditStore{}, &fakeNotifier{})

	_, err := svc.Respond(context.Background(), &RespondRequest{
		TrackID:         "track-te",
		ExpectedVersion: 1,
		Justification:   "too short",
		Frist:           &determine.FristInput{},
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
	assert.Equal(t, 1, store.tracks["track-te"].Version, "nothing persisted on local validation failure")
}

func TestRespond_IndeterminateInputIsValidation(t *testing.T) {
	store := newFakeCaseStore()
	store.addTrack("track-te", repository.TrackTimeExtension, 1)
	svc := newClaimService(store, &fakeAuditStore{}, &fakeNotifier{})

	_, err := svc.Respond(context.Background(), &RespondRequest{
		TrackID:         "track-te",
		ExpectedVersion: 1,
		Justification:   validJustification,
		Frist: &determine.FristInput{
			Notice:      determine.Notice{Kind: determine.NoticeProvisional},
			ClaimedDays: 10,
		},
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
}

func TestRespond_LiabilityBasisHasNoDetermination(t *testing.T) {
	store := newFakeCaseStore()
	store.addTrack("track-ag", repository.TrackLiabilityBasis, 1)
	svc := newClaimService(store, &fakeAuditStore{}, &fakeNotifier{})

	_, err := svc.Respond(context.Background(), &RespondRequest{
		TrackID:         "track-ag",
		ExpectedVersion: 1,
		Justification:   validJustification,
		Frist:           &determine.FristInput{},
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
}

func TestRespond_MismatchedInput(t *testing.T) {
	store := newFakeCaseStore()
	store.addTrack("track-te", repository.TrackTimeExtension, 1)
	svc := newClaimService(store, &fakeAuditStore{}, &fakeNotifier{})

	_, err := svc.Respond(context.Background(), &RespondRequest{
		TrackID:         "track-te",
		ExpectedVersion: 1,
		Justification:   validJustification,
		Vederlag:        &determine.VederlagInput{},
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation), "time-extension track needs frist input")
}

func TestRespond_StaleVersionConflicts(t *testing.T) {
	store := newFakeCaseStore()
	store.addTrack("track-te", repository.TrackTimeExtension, 5)
	svc := newClaimService(store, &fakeAuditStore{}, &fakeNotifier{})

	_, err := svc.Respond(context.Background(), &RespondRequest{
		TrackID:         "track-te",
		ExpectedVersion: 4,
		RespondedBy:     "bh-user",
		Justification:   validJustification,
		Frist: &determine.FristInput{
			Notice:       determine.Notice{Kind: determine.NoticeProvisional, ProvisionalTimely: determine.True},
			HindranceMet: determine.True,
			ClaimedDays:  5,
			ApprovedDays: 5,
		},
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConflict))
}

func TestRespondForsering(t *testing.T) {
	store := newFakeCaseStore()
	store.addTrack("track-comp", repository.TrackCompensation, 2)
	svc := newClaimService(store, &fakeAuditStore{}, &fakeNotifier{})

	res, err := svc.RespondForsering(context.Background(), &RespondRequest{
		TrackID:         "track-comp",
		ExpectedVersion: 2,
		RespondedBy:     "bh-user",
		Justification:   validJustification,
		Forsering: &determine.ForseringInput{
			EstimatedCost:      400_000,
			DailyPenaltyRate:   15_000,
			Related:            []determine.RelatedCase{{CaseRef: "KOE-031", RejectedDays: 12, RejectionUnjustified: determine.True}},
			MainClaimedAmount:  400_000,
			MainApprovedAmount: 400_000,
			MainNoticeTimely:   determine.True,
		},
	})
	require.NoError(t, err)

	det, ok := res.Determination.(determine.ForseringResult)
	require.True(t, ok)
	assert.Equal(t, 12, det.EntitlementDays)
	assert.Equal(t, determine.OutcomeApproved, det.Principal)
	assert.NotEmpty(t, store.determinations["track-comp"], "determination snapshot persisted")
}

func TestRespondForsering_WrongTrackKind(t *testing.T) {
	store := newFakeCaseStore()
	store.addTrack("track-te", repository.TrackTimeExtension, 1)
	svc := newClaimService(store, &fakeAuditStore{}, &fakeNotifier{})

	_, err := svc.RespondForsering(context.Background(), &RespondRequest{
		TrackID:         "track-te",
		ExpectedVersion: 1,
		Justification:   validJustification,
		Forsering:       &determine.ForseringInput{MainNoticeTimely: determine.True},
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
}

func TestPreviewDoesNotPersist(t *testing.T) {
	store := newFakeCaseStore()
	svc := newClaimService(store, &fakeAuditStore{}, &fakeNotifier{})

	res, text, err := svc.PreviewFrist(determine.FristInput{
		Notice:       determine.Notice{Kind: determine.NoticeProvisional, ProvisionalTimely: determine.True},
		HindranceMet: determine.True,
		ClaimedDays:  10,
		ApprovedDays: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, determine.OutcomeApproved, res.Principal)
	assert.NotEmpty(t, text)
	assert.Empty(t, store.revisions)
	assert.Empty(t, store.determinations)
}
