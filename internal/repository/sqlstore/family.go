package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Kerhoff/chorebot/internal/config"
	"github.com/Kerhoff/chorebot/internal/models"
	"github.com/Kerhoff/chorebot/internal/repository"
)

type familyRepository struct {
	db *config.Database
}

// NewFamilyRepository creates a new family repository
func NewFamilyRepository(db *config.Database) repository.FamilyRepository {
	return &familyRepository{db: db}
}

func (r *familyRepository) Create(ctx context.Context, family *models.Family) (*models.Family, error) {
	query := r.db.Rebind(`
		INSERT INTO families (invite_code, parent_password)
		VALUES (?, ?)
		RETURNING id`)

	err := r.db.QueryRowContext(ctx, query,
		family.InviteCode,
		nullString(family.ParentPassword),
	).Scan(&family.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create family: %w", err)
	}

	return family, nil
}

func (r *familyRepository) GetByID(ctx context.Context, id int64) (*models.Family, error) {
	query := r.db.Rebind(`
		SELECT id, invite_code, parent_password
		FROM families
		WHERE id = ?`)

	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *familyRepository) GetByInviteCode(ctx context.Context, code string) (*models.Family, error) {
	query := r.db.Rebind(`
		SELECT id, invite_code, parent_password
		FROM families
		WHERE invite_code = ?`)

	return r.scanOne(r.db.QueryRowContext(ctx, query, code))
}

func (r *familyRepository) scanOne(row *sql.Row) (*models.Family, error) {
	family := &models.Family{}
	var password sql.NullString
	err := row.Scan(&family.ID, &family.InviteCode, &password)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get family: %w", err)
	}
	family.ParentPassword = password.String
	return family, nil
}

func (r *familyRepository) List(ctx context.Context) ([]*models.Family, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, invite_code, parent_password FROM families ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query families: %w", err)
	}
	defer rows.Close()

	var families []*models.Family
	for rows.Next() {
		family := &models.Family{}
		var password sql.NullString
		if err := rows.Scan(&family.ID, &family.InviteCode, &password); err != nil {
			return nil, fmt.Errorf("failed to scan family: %w", err)
		}
		family.ParentPassword = password.String
		families = append(families, family)
	}
	return families, rows.Err()
}

func (r *familyRepository) SetPassword(ctx context.Context, id int64, password string) error {
	query := r.db.Rebind(`UPDATE families SET parent_password = ? WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query, nullString(password), id)
	if err != nil {
		return fmt.Errorf("failed to set family password: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("family %d: %w", id, models.ErrNotFound)
	}
	return nil
}

func (r *familyRepository) Delete(ctx context.Context, id int64) ([]int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin family reset: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, r.db.Rebind(`SELECT external_chat_id FROM users WHERE family_id = ?`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to query family members: %w", err)
	}
	var chatIDs []int64
	for rows.Next() {
		var chatID int64
		if err := rows.Scan(&chatID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan family member: %w", err)
		}
		chatIDs = append(chatIDs, chatID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read family members: %w", err)
	}

	children := `SELECT id FROM users WHERE family_id = ?`
	statements := []string{
		`DELETE FROM approval_messages WHERE approval_kind = 'task'
			AND approval_id IN (SELECT id FROM completions WHERE child_id IN (` + children + `))`,
		`DELETE FROM approval_messages WHERE approval_kind = 'extra'
			AND approval_id IN (SELECT id FROM extra_tasks WHERE family_id = ?)`,
		`DELETE FROM completions WHERE child_id IN (` + children + `)`,
		`DELETE FROM checklist_items WHERE child_id IN (` + children + `)`,
		`DELETE FROM extra_tasks WHERE family_id = ?`,
		`DELETE FROM users WHERE family_id = ?`,
		`DELETE FROM families WHERE id = ?`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, r.db.Rebind(stmt), id); err != nil {
			return nil, fmt.Errorf("failed to reset family %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit family reset: %w", err)
	}
	return chatIDs, nil
}
