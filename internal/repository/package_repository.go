package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/byggsak/be-cc-claims/internal/apperrors"
	"github.com/byggsak/be-cc-claims/internal/database"
)

// PackageRepository persists approval packages and their chain steps.
// Package and step writes that belong together run in one transaction.
type PackageRepository struct {
	db *database.DB
}

// NewPackageRepository creates a new PackageRepository.
func NewPackageRepository(db *database.DB) *PackageRepository {
	return &PackageRepository{db: db}
}

// Create inserts a submitted package and its chain steps together.
func (r *PackageRepository) Create(ctx context.Context, pkg *PackageRecord, steps []*StepRecord) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		pkgQuery := `
			INSERT INTO approval_packages
			    (id, case_id, track_ids, amount, status,
			     submitted_by, submitted_at, comment)
			VALUES ($1, $2, $3, $4, $5::package_status, $6, $7, $8)
			RETURNING created_at, updated_at
		`
		err := tx.QueryRow(ctx, pkgQuery,
			pkg.ID,
			pkg.CaseID,
			pkg.TrackIDs,
			pkg.Amount,
			pkg.Status,
			pkg.SubmittedBy,
			pkg.SubmittedAt,
			pkg.Comment,
		).Scan(&pkg.CreatedAt, &pkg.UpdatedAt)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to create approval package")
		}

		stepQuery := `
			INSERT INTO approval_steps
			    (id, package_id, case_id, step_number, role, status,
			     assigned_to, assigned_at)
			VALUES ($1, $2, $3, $4, $5, $6::step_status, $7, $8)
			RETURNING created_at, updated_at
		`
		for _, step := range steps {
			step.PackageID = pkg.ID
			step.CaseID = pkg.CaseID
			err := tx.QueryRow(ctx, stepQuery,
				step.ID,
				step.PackageID,
				step.CaseID,
				step.StepNumber,
				step.Role,
				step.Status,
				step.AssignedTo,
				step.AssignedAt,
			).Scan(&step.CreatedAt, &step.UpdatedAt)
			if err != nil {
				return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to create approval step")
			}
		}
		return nil
	})
}

// GetByID retrieves a package and its steps ordered by step number.
func (r *PackageRepository) GetByID(ctx context.Context, id string) (*PackageRecord, []*StepRecord, error) {
	pkgQuery := `
		SELECT id, case_id, track_ids, amount, status,
		       submitted_by, submitted_at, comment, rejection_reason,
		       created_at, updated_at
		FROM approval_packages
		WHERE id = $1
	`
	pkg := &PackageRecord{}
	err := r.db.QueryRow(ctx, pkgQuery, id).Scan(
		&pkg.ID,
		&pkg.CaseID,
		&pkg.TrackIDs,
		&pkg.Amount,
		&pkg.Status,
		&pkg.SubmittedBy,
		&pkg.SubmittedAt,
		&pkg.Comment,
		&pkg.RejectionReason,
		&pkg.CreatedAt,
		&pkg.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, apperrors.NotFound("approval_package", id)
	}
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get approval package")
	}

	steps, err := r.stepsByPackageID(ctx, pkg.ID)
	if err != nil {
		return nil, nil, err
	}
	return pkg, steps, nil
}

// GetActiveByCaseID returns the case's unresolved package, or nil.
func (r *PackageRepository) GetActiveByCaseID(ctx context.Context, caseID string) (*PackageRecord, error) {
	query := `
		SELECT id, case_id, track_ids, amount, status,
		       submitted_by, submitted_at, comment, rejection_reason,
		       created_at, updated_at
		FROM approval_packages
		WHERE case_id = $1 AND status = 'pending'
		ORDER BY created_at DESC
		LIMIT 1
	`
	pkg := &PackageRecord{}
	err := r.db.QueryRow(ctx, query, caseID).Scan(
		&pkg.ID,
		&pkg.CaseID,
		&pkg.TrackIDs,
		&pkg.Amount,
		&pkg.Status,
		&pkg.SubmittedBy,
		&pkg.SubmittedAt,
		&pkg.Comment,
		&pkg.RejectionReason,
		&pkg.CreatedAt,
		&pkg.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get active package")
	}
	return pkg, nil
}

// SaveResolution persists a step action plus the resulting package and
// chain state in one transaction: the acted step, the next step promoted
// to in_progress (if any), and the package status.
func (r *PackageRepository) SaveResolution(
	ctx context.Context,
	pkg *PackageRecord,
	acted *StepRecord,
	next *StepRecord,
) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		stepQuery := `
			UPDATE approval_steps
			SET status = $2::step_status,
			    acted_by = $3,
			    acted_at = $4,
			    comment = $5,
			    updated_at = NOW()
			WHERE id = $1
		`
		tag, err := tx.Exec(ctx, stepQuery, acted.ID, acted.Status, acted.ActedBy, acted.ActedAt, acted.Comment)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to update approval step")
		}
		if tag.RowsAffected() == 0 {
			return apperrors.NotFound("approval_step", acted.ID)
		}

		if next != nil {
			_, err := tx.Exec(ctx,
				`UPDATE approval_steps SET status = 'in_progress', updated_at = NOW() WHERE id = $1`,
				next.ID,
			)
			if err != nil {
				return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to advance approval step")
			}
		}

		pkgQuery := `
			UPDATE approval_packages
			SET status = $2::package_status,
			    rejection_reason = $3,
			    updated_at = NOW()
			WHERE id = $1
		`
		if _, err := tx.Exec(ctx, pkgQuery, pkg.ID, pkg.Status, pkg.RejectionReason); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to update package status")
		}
		return nil
	})
}

// Restore discards a rejected package's chain and returns the package to
// draft. The underlying claim tracks are untouched.
func (r *PackageRepository) Restore(ctx context.Context, packageID string) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM approval_steps WHERE package_id = $1`, packageID); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to discard approval steps")
		}
		query := `
			UPDATE approval_packages
			SET status = 'draft',
			    submitted_by = NULL,
			    submitted_at = NULL,
			    updated_at = NOW()
			WHERE id = $1 AND status = 'rejected'
		`
		tag, err := tx.Exec(ctx, query, packageID)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to restore package")
		}
		if tag.RowsAffected() == 0 {
			return apperrors.New(apperrors.ErrCodeConflict, "package is not in a rejected state")
		}
		return nil
	})
}

// GetPendingForRole returns in-progress steps awaiting a role, for the
// pending-approvals work list.
func (r *PackageRepository) GetPendingForRole(ctx context.Context, role string) ([]*StepRecord, error) {
	query := stepSelect + `
		WHERE role = $1 AND status = 'in_progress'
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query, role)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get pending approvals")
	}
	defer rows.Close()
	return scanSteps(rows)
}

// ── scan helpers ─────────────────────────────────────────────────────────────

const stepSelect = `
	SELECT id, package_id, case_id, step_number, role, status,
	       assigned_to, assigned_at, acted_by, acted_at, comment,
	       created_at, updated_at
	FROM approval_steps`

func (r *PackageRepository) stepsByPackageID(ctx context.Context, packageID string) ([]*StepRecord, error) {
	rows, err := r.db.Query(ctx, stepSelect+` WHERE package_id = $1 ORDER BY step_number ASC`, packageID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get approval steps")
	}
	defer rows.Close()
	return scanSteps(rows)
}

func scanSteps(rows pgx.Rows) ([]*StepRecord, error) {
	var steps []*StepRecord
	for rows.Next() {
		s := &StepRecord{}
		if err := rows.Scan(
			&s.ID,
			&s.PackageID,
			&s.CaseID,
			&s.StepNumber,
			&s.Role,
			&s.Status,
			&s.AssignedTo,
			&s.AssignedAt,
			&s.ActedBy,
			&s.ActedAt,
			&s.Comment,
			&s.CreatedAt,
			&s.UpdatedAt,
		); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan approval step")
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}
