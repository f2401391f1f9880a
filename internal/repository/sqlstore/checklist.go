package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Kerhoff/chorebot/internal/config"
	"github.com/Kerhoff/chorebot/internal/models"
	"github.com/Kerhoff/chorebot/internal/repository"
)

type checklistRepository struct {
	db *config.Database
}

// NewChecklistRepository creates a new checklist repository
func NewChecklistRepository(db *config.Database) repository.ChecklistRepository {
	return &checklistRepository{db: db}
}

const checklistColumns = `child_id, task_key, label, temporal_group, is_standard, enabled, sort_order`

func (r *checklistRepository) InsertBaseline(ctx context.Context, childID int64, items []*models.ChecklistItem) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin checklist init: %w", err)
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRowContext(ctx, r.db.Rebind(`SELECT COUNT(*) FROM checklist_items WHERE child_id = ?`), childID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count checklist items: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	if err := r.insertItems(ctx, tx, childID, items); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit checklist init: %w", err)
	}
	return true, nil
}

func (r *checklistRepository) insertItems(ctx context.Context, tx *sql.Tx, childID int64, items []*models.ChecklistItem) error {
	query := r.db.Rebind(`
		INSERT INTO checklist_items (` + checklistColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (child_id, task_key) DO NOTHING`)

	for _, item := range items {
		_, err := tx.ExecContext(ctx, query,
			childID,
			item.TaskKey,
			item.Label,
			string(item.Group),
			item.IsStandard,
			item.Enabled,
			item.SortOrder,
		)
		if err != nil {
			return fmt.Errorf("failed to insert checklist item %q: %w", item.TaskKey, err)
		}
	}
	return nil
}

func (r *checklistRepository) List(ctx context.Context, childID int64, enabledOnly bool) ([]*models.ChecklistItem, error) {
	query := `SELECT ` + checklistColumns + ` FROM checklist_items WHERE child_id = ?`
	if enabledOnly {
		query += ` AND enabled = TRUE`
	}
	query += ` ORDER BY sort_order`

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), childID)
	if err != nil {
		return nil, fmt.Errorf("failed to query checklist: %w", err)
	}
	defer rows.Close()

	var items []*models.ChecklistItem
	for rows.Next() {
		item := &models.ChecklistItem{}
		if err := rows.Scan(
			&item.ChildID,
			&item.TaskKey,
			&item.Label,
			&item.Group,
			&item.IsStandard,
			&item.Enabled,
			&item.SortOrder,
		); err != nil {
			return nil, fmt.Errorf("failed to scan checklist item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *checklistRepository) Get(ctx context.Context, childID int64, key string) (*models.ChecklistItem, error) {
	query := r.db.Rebind(`SELECT ` + checklistColumns + ` FROM checklist_items WHERE child_id = ? AND task_key = ?`)

	item := &models.ChecklistItem{}
	err := r.db.QueryRowContext(ctx, query, childID, key).Scan(
		&item.ChildID,
		&item.TaskKey,
		&item.Label,
		&item.Group,
		&item.IsStandard,
		&item.Enabled,
		&item.SortOrder,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get checklist item: %w", err)
	}
	return item, nil
}

func (r *checklistRepository) SetEnabled(ctx context.Context, childID int64, key string, enabled bool) error {
	query := r.db.Rebind(`UPDATE checklist_items SET enabled = ? WHERE child_id = ? AND task_key = ?`)

	result, err := r.db.ExecContext(ctx, query, enabled, childID, key)
	if err != nil {
		return fmt.Errorf("failed to toggle checklist item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("checklist item %q: %w", key, models.ErrNotFound)
	}
	return nil
}

func (r *checklistRepository) AddCustom(ctx context.Context, childID int64, label string, group models.TaskGroup) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin custom item insert: %w", err)
	}
	defer tx.Rollback()

	var maxOrder int
	err = tx.QueryRowContext(ctx,
		r.db.Rebind(`SELECT COALESCE(MAX(sort_order), 0) FROM checklist_items WHERE child_id = ?`),
		childID,
	).Scan(&maxOrder)
	if err != nil {
		return "", fmt.Errorf("failed to read checklist order: %w", err)
	}

	next := maxOrder + 1
	key := CustomTaskKey(childID, next)

	_, err = tx.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO checklist_items (`+checklistColumns+`)
		VALUES (?, ?, ?, ?, FALSE, TRUE, ?)`),
		childID, key, label, string(group), next,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert custom item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit custom item: %w", err)
	}
	return key, nil
}

// CustomTaskKey derives the key of a custom item from its owner and position.
func CustomTaskKey(childID int64, sortOrder int) string {
	return fmt.Sprintf("custom_%d_%d", childID, sortOrder)
}

func (r *checklistRepository) DeleteCustom(ctx context.Context, childID int64, key string) error {
	query := r.db.Rebind(`DELETE FROM checklist_items WHERE child_id = ? AND task_key = ? AND is_standard = FALSE`)

	if _, err := r.db.ExecContext(ctx, query, childID, key); err != nil {
		return fmt.Errorf("failed to delete custom item: %w", err)
	}
	return nil
}

func (r *checklistRepository) Reset(ctx context.Context, childID int64, items []*models.ChecklistItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin checklist reset: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.db.Rebind(`DELETE FROM checklist_items WHERE child_id = ?`), childID); err != nil {
		return fmt.Errorf("failed to clear checklist: %w", err)
	}
	if err := r.insertItems(ctx, tx, childID, items); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit checklist reset: %w", err)
	}
	return nil
}
