package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Kerhoff/chorebot/internal/config"
	"github.com/Kerhoff/chorebot/internal/models"
	"github.com/Kerhoff/chorebot/internal/repository"
)

type userRepository struct {
	db *config.Database
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *config.Database) repository.UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, external_chat_id, role, family_id, name`

func (r *userRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := r.db.Rebind(`
		INSERT INTO users (external_chat_id, role, family_id, name)
		VALUES (?, ?, ?, ?)
		RETURNING id`)

	err := r.db.QueryRowContext(ctx, query,
		user.ExternalChatID,
		string(user.Role),
		user.FamilyID,
		user.Name,
	).Scan(&user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *userRepository) GetByChatID(ctx context.Context, chatID int64) (*models.User, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE external_chat_id = ?`)
	return scanUser(r.db.QueryRowContext(ctx, query, chatID))
}

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.ExternalChatID,
		&user.Role,
		&user.FamilyID,
		&user.Name,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (r *userRepository) ListByFamily(ctx context.Context, familyID int64, role models.Role) ([]*models.User, error) {
	query := r.db.Rebind(`
		SELECT ` + userColumns + `
		FROM users
		WHERE family_id = ? AND role = ?
		ORDER BY id`)

	rows, err := r.db.QueryContext(ctx, query, familyID, string(role))
	if err != nil {
		return nil, fmt.Errorf("failed to query family %ss: %w", role, err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(
			&user.ID,
			&user.ExternalChatID,
			&user.Role,
			&user.FamilyID,
			&user.Name,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
