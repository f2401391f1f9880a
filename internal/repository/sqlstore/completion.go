package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Kerhoff/chorebot/internal/config"
	"github.com/Kerhoff/chorebot/internal/models"
	"github.com/Kerhoff/chorebot/internal/repository"
)

type completionRepository struct {
	db *config.Database
}

// NewCompletionRepository creates a new completion repository
func NewCompletionRepository(db *config.Database) repository.CompletionRepository {
	return &completionRepository{db: db}
}

const completionColumns = `id, child_id, task_key, date, proof_ref, medium, approved`

func (r *completionRepository) Upsert(ctx context.Context, completion *models.Completion) (*models.Completion, error) {
	query := r.db.Rebind(`
		INSERT INTO completions (child_id, task_key, date, proof_ref, medium, approved)
		VALUES (?, ?, ?, ?, ?, FALSE)
		ON CONFLICT (child_id, task_key, date) DO UPDATE
			SET proof_ref = excluded.proof_ref,
				medium = excluded.medium,
				approved = FALSE
			WHERE completions.approved = FALSE
		RETURNING id`)

	err := r.db.QueryRowContext(ctx, query,
		completion.ChildID,
		completion.TaskKey,
		completion.Date,
		nullString(completion.ProofRef),
		string(completion.Medium),
	).Scan(&completion.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("completion %s on %s: %w", completion.TaskKey, completion.Date, models.ErrAlreadyResolved)
		}
		return nil, fmt.Errorf("failed to upsert completion: %w", err)
	}

	completion.Approved = false
	return completion, nil
}

func (r *completionRepository) GetByID(ctx context.Context, id int64) (*models.Completion, error) {
	query := r.db.Rebind(`SELECT ` + completionColumns + ` FROM completions WHERE id = ?`)
	return scanCompletion(r.db.QueryRowContext(ctx, query, id))
}

func (r *completionRepository) Get(ctx context.Context, childID int64, key, date string) (*models.Completion, error) {
	query := r.db.Rebind(`SELECT ` + completionColumns + ` FROM completions WHERE child_id = ? AND task_key = ? AND date = ?`)
	return scanCompletion(r.db.QueryRowContext(ctx, query, childID, key, date))
}

func scanCompletion(row *sql.Row) (*models.Completion, error) {
	completion := &models.Completion{}
	var proofRef sql.NullString
	err := row.Scan(
		&completion.ID,
		&completion.ChildID,
		&completion.TaskKey,
		&completion.Date,
		&proofRef,
		&completion.Medium,
		&completion.Approved,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get completion: %w", err)
	}
	completion.ProofRef = proofRef.String
	return completion, nil
}

func (r *completionRepository) Delete(ctx context.Context, childID int64, key, date string) (bool, error) {
	query := r.db.Rebind(`DELETE FROM completions WHERE child_id = ? AND task_key = ? AND date = ?`)

	result, err := r.db.ExecContext(ctx, query, childID, key, date)
	if err != nil {
		return false, fmt.Errorf("failed to delete completion: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *completionRepository) Approve(ctx context.Context, id int64) error {
	query := r.db.Rebind(`UPDATE completions SET approved = TRUE WHERE id = ? AND approved = FALSE`)
	return r.resolve(ctx, id, query)
}

func (r *completionRepository) Reject(ctx context.Context, id int64) error {
	return r.DeletePending(ctx, id)
}

func (r *completionRepository) DeletePending(ctx context.Context, id int64) error {
	query := r.db.Rebind(`DELETE FROM completions WHERE id = ? AND approved = FALSE`)
	return r.resolve(ctx, id, query)
}

// resolve runs a conditional write guarded by approved = FALSE. When nothing
// matched it tells a missing row apart from one decided earlier.
func (r *completionRepository) resolve(ctx context.Context, id int64, query string) error {
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to resolve completion %d: %w", id, err)
	}
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
		return fmt.Errorf("completion %d: %w", id, models.ErrNotFound)
	}
	return fmt.Errorf("completion %d: %w", id, models.ErrAlreadyResolved)
}

func (r *completionRepository) KeysForDate(ctx context.Context, childID int64, date string, approved bool) ([]string, error) {
	query := r.db.Rebind(`
		SELECT task_key FROM completions
		WHERE child_id = ? AND date = ? AND approved = ?
		ORDER BY task_key`)

	rows, err := r.db.QueryContext(ctx, query, childID, date, approved)
	if err != nil {
		return nil, fmt.Errorf("failed to query completions: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan completion key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (r *completionRepository) ApprovedKeysForRange(ctx context.Context, childID int64, start, end string) (map[string][]string, error) {
	days, err := daysBetween(start, end)
	if err != nil {
		return nil, err
	}

	query := r.db.Rebind(`
		SELECT date, task_key FROM completions
		WHERE child_id = ? AND approved = TRUE AND date >= ? AND date <= ?
		ORDER BY date, task_key`)

	rows, err := r.db.QueryContext(ctx, query, childID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query approved completions: %w", err)
	}
	defer rows.Close()

	byDay := make(map[string][]string, len(days))
	for _, day := range days {
		byDay[day] = []string{}
	}
	for rows.Next() {
		var day, key string
		if err := rows.Scan(&day, &key); err != nil {
			return nil, fmt.Errorf("failed to scan approved completion: %w", err)
		}
		byDay[day] = append(byDay[day], key)
	}
	return byDay, rows.Err()
}

func (r *completionRepository) PendingForFamily(ctx context.Context, familyID int64) ([]*models.PendingApproval, error) {
	query := r.db.Rebind(`
		SELECT c.id, c.child_id, u.name, c.date, c.task_key,
			COALESCE(ci.label, c.task_key), c.proof_ref, c.medium
		FROM completions c
		JOIN users u ON u.id = c.child_id
		LEFT JOIN checklist_items ci ON ci.child_id = c.child_id AND ci.task_key = c.task_key
		WHERE u.family_id = ? AND c.approved = FALSE
		ORDER BY c.date, c.id`)

	rows, err := r.db.QueryContext(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending completions: %w", err)
	}
	defer rows.Close()

	var pending []*models.PendingApproval
	for rows.Next() {
		p := &models.PendingApproval{Ref: models.ApprovalRef{Kind: models.ApprovalTask}, Points: 1}
		var proofRef sql.NullString
		if err := rows.Scan(
			&p.Ref.ID,
			&p.ChildID,
			&p.ChildName,
			&p.Date,
			&p.TaskKey,
			&p.Label,
			&proofRef,
			&p.Medium,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pending completion: %w", err)
		}
		p.ProofRef = proofRef.String
		pending = append(pending, p)
	}
	return pending, rows.Err()
}
