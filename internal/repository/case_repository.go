package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/byggsak/be-cc-claims/internal/apperrors"
	"github.com/byggsak/be-cc-claims/internal/database"
)

// CaseRepository handles cases, their claim tracks and the append-only
// revision chain. Tracks are never deleted; every accepted mutation
// appends a revision and bumps the track version.
type CaseRepository struct {
	db *database.DB
}

// NewCaseRepository creates a new CaseRepository.
func NewCaseRepository(db *database.DB) *CaseRepository {
	return &CaseRepository{db: db}
}

// Create inserts a case and its initial tracks in one transaction.
func (r *CaseRepository) Create(ctx context.Context, c *Case) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		caseQuery := `
			INSERT INTO claim_cases
			    (project_id, case_number, kind, title, status, related_case_ids, created_by)
			VALUES ($1, $2, $3::case_kind, $4, $5, $6, $7)
			RETURNING id, created_at, updated_at
		`
		err := tx.QueryRow(ctx, caseQuery,
			c.ProjectID,
			c.CaseNumber,
			c.Kind,
			c.Title,
			c.Status,
			c.RelatedCaseIDs,
			c.CreatedBy,
		).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to create case")
		}

		trackQuery := `
			INSERT INTO claim_tracks
			    (case_id, kind, status, version, claim_payload)
			VALUES ($1, $2::track_kind, $3, $4, $5)
			RETURNING id, created_at, updated_at
		`
		for _, t := range c.Tracks {
			t.CaseID = c.ID
			t.Version = 1
			err := tx.QueryRow(ctx, trackQuery,
				t.CaseID,
				t.Kind,
				t.Status,
				t.Version,
				t.ClaimPayload,
			).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
			if err != nil {
				return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to create claim track")
			}
		}
		return nil
	})
}

// GetByID retrieves one case with all its tracks.
func (r *CaseRepository) GetByID(ctx context.Context, id string) (*Case, error) {
	caseQuery := `
		SELECT id, project_id, case_number, kind, title, status,
		       related_case_ids, created_by, created_at, updated_by, updated_at
		FROM claim_cases
		WHERE id = $1
	`
	c := &Case{}
	err := r.db.QueryRow(ctx, caseQuery, id).Scan(
		&c.ID,
		&c.ProjectID,
		&c.CaseNumber,
		&c.Kind,
		&c.Title,
		&c.Status,
		&c.RelatedCaseIDs,
		&c.CreatedBy,
		&c.CreatedAt,
		&c.UpdatedBy,
		&c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("case", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get case")
	}

	tracks, err := r.tracksByCaseID(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Tracks = tracks
	return c, nil
}

// GetTrack retrieves one claim track.
func (r *CaseRepository) GetTrack(ctx context.Context, trackID string) (*ClaimTrack, error) {
	query := trackSelect + ` WHERE id = $1`
	t, err := scanTrack(r.db.QueryRow(ctx, query, trackID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("claim_track", trackID)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get claim track")
	}
	return t, nil
}

// SubmitRevision applies a mutation to a track under optimistic version
// concurrency: the update is accepted only when the stored version equals
// expectedVersion, otherwise a conflict is returned and nothing changes.
// The revision row and the track update commit together.
func (r *CaseRepository) SubmitRevision(
	ctx context.Context,
	rev *TrackRevision,
	newStatus string,
	expectedVersion int,
) (newVersion int, err error) {
	err = r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		var update string
		switch rev.Origin {
		case OriginClaimant:
			update = `
				UPDATE claim_tracks
				SET claim_payload = $3,
				    status        = $4,
				    version       = version + 1,
				    updated_at    = NOW()
				WHERE id = $1 AND version = $2
				RETURNING version
			`
		case OriginResponse:
			update = `
				UPDATE claim_tracks
				SET response_payload = $3,
				    status           = $4,
				    version          = version + 1,
				    updated_at       = NOW()
				WHERE id = $1 AND version = $2
				RETURNING version
			`
		default:
			return apperrors.InvalidInput("origin", "unknown revision origin")
		}

		scanErr := tx.QueryRow(ctx, update, rev.TrackID, expectedVersion, rev.Payload, newStatus).Scan(&newVersion)
		if errors.Is(scanErr, pgx.ErrNoRows) {
			// Either the track does not exist or the version is stale;
			// disambiguate so the caller gets the right signal.
			var current int
			probeErr := tx.QueryRow(ctx, `SELECT version FROM claim_tracks WHERE id = $1`, rev.TrackID).Scan(&current)
			if errors.Is(probeErr, pgx.ErrNoRows) {
				return apperrors.NotFound("claim_track", rev.TrackID)
			}
			if probeErr != nil {
				return apperrors.Wrap(probeErr, apperrors.ErrCodeInternal, "failed to probe track version")
			}
			return apperrors.Conflict("expected version is stale; refresh and retry")
		}
		if scanErr != nil {
			return apperrors.Wrap(scanErr, apperrors.ErrCodeInternal, "failed to update claim track")
		}

		rev.Version = newVersion
		insert := `
			INSERT INTO track_revisions
			    (track_id, case_id, version, origin, action, payload, created_by)
			VALUES ($1, $2, $3, $4::revision_origin, $5, $6, $7)
			RETURNING id, created_at
		`
		insertErr := tx.QueryRow(ctx, insert,
			rev.TrackID,
			rev.CaseID,
			rev.Version,
			rev.Origin,
			rev.Action,
			rev.Payload,
			rev.CreatedBy,
		).Scan(&rev.ID, &rev.CreatedAt)
		if insertErr != nil {
			return apperrors.Wrap(insertErr, apperrors.ErrCodeInternal, "failed to append track revision")
		}
		return nil
	})
	return newVersion, err
}

// SetDetermination stores the serialized determination snapshot computed
// for the track's current response.
func (r *CaseRepository) SetDetermination(ctx context.Context, trackID string, determination []byte) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE claim_tracks SET determination = $2, updated_at = NOW() WHERE id = $1`,
		trackID, determination,
	)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to store determination")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("claim_track", trackID)
	}
	return nil
}

// ListRevisions returns a track's full revision chain oldest-first.
func (r *CaseRepository) ListRevisions(ctx context.Context, trackID string) ([]*TrackRevision, error) {
	query := `
		SELECT id, track_id, case_id, version, origin, action, payload, created_by, created_at
		FROM track_revisions
		WHERE track_id = $1
		ORDER BY version ASC
	`
	rows, err := r.db.Query(ctx, query, trackID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list track revisions")
	}
	defer rows.Close()

	var revs []*TrackRevision
	for rows.Next() {
		rev := &TrackRevision{}
		if err := rows.Scan(
			&rev.ID,
			&rev.TrackID,
			&rev.CaseID,
			&rev.Version,
			&rev.Origin,
			&rev.Action,
			&rev.Payload,
			&rev.CreatedBy,
			&rev.CreatedAt,
		); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan track revision")
		}
		revs = append(revs, rev)
	}
	return revs, rows.Err()
}

// ── scan helpers ─────────────────────────────────────────────────────────────

const trackSelect = `
	SELECT id, case_id, kind, status, version,
	       claim_payload, response_payload, determination,
	       created_at, updated_at
	FROM claim_tracks`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrack(row rowScanner) (*ClaimTrack, error) {
	t := &ClaimTrack{}
	err := row.Scan(
		&t.ID,
		&t.CaseID,
		&t.Kind,
		&t.Status,
		&t.Version,
		&t.ClaimPayload,
		&t.ResponsePayload,
		&t.Determination,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *CaseRepository) tracksByCaseID(ctx context.Context, caseID string) ([]*ClaimTrack, error) {
	rows, err := r.db.Query(ctx, trackSelect+` WHERE case_id = $1 ORDER BY kind ASC`, caseID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get claim tracks")
	}
	defer rows.Close()

	var tracks []*ClaimTrack
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan claim track")
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}
