package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Kerhoff/chorebot/internal/config"
	"github.com/Kerhoff/chorebot/internal/models"
	"github.com/Kerhoff/chorebot/internal/repository"
)

type extraTaskRepository struct {
	db *config.Database
}

// NewExtraTaskRepository creates a new extra task repository
func NewExtraTaskRepository(db *config.Database) repository.ExtraTaskRepository {
	return &extraTaskRepository{db: db}
}

const extraColumns = `id, family_id, child_id, title, points, date, completed, approved, proof_ref, medium`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExtra(row rowScanner) (*models.ExtraTask, error) {
	extra := &models.ExtraTask{}
	var proofRef, medium sql.NullString
	if err := row.Scan(
		&extra.ID,
		&extra.FamilyID,
		&extra.ChildID,
		&extra.Title,
		&extra.Points,
		&extra.Date,
		&extra.Completed,
		&extra.Approved,
		&proofRef,
		&medium,
	); err != nil {
		return nil, err
	}
	extra.ProofRef = proofRef.String
	extra.Medium = models.Medium(medium.String)
	return extra, nil
}

func (r *extraTaskRepository) Create(ctx context.Context, extra *models.ExtraTask) (*models.ExtraTask, error) {
	query := r.db.Rebind(`
		INSERT INTO extra_tasks (family_id, child_id, title, points, date, completed, approved)
		VALUES (?, ?, ?, ?, ?, FALSE, FALSE)
		RETURNING id`)

	err := r.db.QueryRowContext(ctx, query,
		extra.FamilyID,
		extra.ChildID,
		extra.Title,
		extra.Points,
		extra.Date,
	).Scan(&extra.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create extra task: %w", err)
	}

	extra.Completed = false
	extra.Approved = false
	return extra, nil
}

func (r *extraTaskRepository) GetByID(ctx context.Context, id int64) (*models.ExtraTask, error) {
	query := r.db.Rebind(`SELECT ` + extraColumns + ` FROM extra_tasks WHERE id = ?`)

	extra, err := scanExtra(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get extra task: %w", err)
	}
	return extra, nil
}

func (r *extraTaskRepository) ListForDate(ctx context.Context, childID int64, date string) ([]*models.ExtraTask, error) {
	query := r.db.Rebind(`SELECT ` + extraColumns + ` FROM extra_tasks WHERE child_id = ? AND date = ? ORDER BY id`)

	rows, err := r.db.QueryContext(ctx, query, childID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query extra tasks: %w", err)
	}
	defer rows.Close()

	var extras []*models.ExtraTask
	for rows.Next() {
		extra, err := scanExtra(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan extra task: %w", err)
		}
		extras = append(extras, extra)
	}
	return extras, rows.Err()
}

func (r *extraTaskRepository) Submit(ctx context.Context, id int64, proofRef string, medium models.Medium) error {
	query := r.db.Rebind(`
		UPDATE extra_tasks
		SET completed = TRUE, proof_ref = ?, medium = ?
		WHERE id = ? AND approved = FALSE`)

	result, err := r.db.ExecContext(ctx, query, nullString(proofRef), string(medium), id)
	if err != nil {
		return fmt.Errorf("failed to submit extra task %d: %w", id, err)
	}
	return r.checkResolved(ctx, id, result)
}

func (r *extraTaskRepository) Approve(ctx context.Context, id int64) error {
	query := r.db.Rebind(`
		UPDATE extra_tasks SET approved = TRUE
		WHERE id = ? AND completed = TRUE AND approved = FALSE`)

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to approve extra task %d: %w", id, err)
	}
	return r.checkResolved(ctx, id, result)
}

func (r *extraTaskRepository) Reject(ctx context.Context, id int64) error {
	return r.ResetPending(ctx, id)
}

func (r *extraTaskRepository) ResetPending(ctx context.Context, id int64) error {
	query := r.db.Rebind(`
		UPDATE extra_tasks
		SET completed = FALSE, approved = FALSE, proof_ref = NULL, medium = NULL
		WHERE id = ? AND completed = TRUE AND approved = FALSE`)

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to reset extra task %d: %w", id, err)
	}
	return r.checkResolved(ctx, id, result)
}

// checkResolved maps a conditional write that matched nothing to
// ErrNotFound or ErrAlreadyResolved.
func (r *extraTaskRepository) checkResolved(ctx context.Context, id int64, result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("extra task %d: %w", id, models.ErrNotFound)
	}
	return fmt.Errorf("extra task %d: %w", id, models.ErrAlreadyResolved)
}

func (r *extraTaskRepository) Reset(ctx context.Context, id int64) error {
	query := r.db.Rebind(`
		UPDATE extra_tasks
		SET completed = FALSE, approved = FALSE, proof_ref = NULL, medium = NULL
		WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to reset extra task %d: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("extra task %d: %w", id, models.ErrNotFound)
	}
	return nil
}

func (r *extraTaskRepository) PointsForRange(ctx context.Context, childID int64, start, end string) (map[string]int, error) {
	days, err := daysBetween(start, end)
	if err != nil {
		return nil, err
	}

	query := r.db.Rebind(`
		SELECT date, COALESCE(SUM(points), 0) FROM extra_tasks
		WHERE child_id = ? AND completed = TRUE AND approved = TRUE
			AND date >= ? AND date <= ?
		GROUP BY date`)

	rows, err := r.db.QueryContext(ctx, query, childID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query extra points: %w", err)
	}
	defer rows.Close()

	points := make(map[string]int, len(days))
	for _, day := range days {
		points[day] = 0
	}
	for rows.Next() {
		var day string
		var sum int
		if err := rows.Scan(&day, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan extra points: %w", err)
		}
		points[day] = sum
	}
	return points, rows.Err()
}

func (r *extraTaskRepository) PendingForFamily(ctx context.Context, familyID int64) ([]*models.PendingApproval, error) {
	query := r.db.Rebind(`
		SELECT e.id, e.child_id, u.name, e.date, e.title, e.points, e.proof_ref, e.medium
		FROM extra_tasks e
		JOIN users u ON u.id = e.child_id
		WHERE e.family_id = ? AND e.completed = TRUE AND e.approved = FALSE
		ORDER BY e.date, e.id`)

	rows, err := r.db.QueryContext(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending extra tasks: %w", err)
	}
	defer rows.Close()

	var pending []*models.PendingApproval
	for rows.Next() {
		p := &models.PendingApproval{Ref: models.ApprovalRef{Kind: models.ApprovalExtra}}
		var proofRef, medium sql.NullString
		if err := rows.Scan(
			&p.Ref.ID,
			&p.ChildID,
			&p.ChildName,
			&p.Date,
			&p.Label,
			&p.Points,
			&proofRef,
			&medium,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pending extra task: %w", err)
		}
		p.ProofRef = proofRef.String
		p.Medium = models.Medium(medium.String)
		pending = append(pending, p)
	}
	return pending, rows.Err()
}
