package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/Kerhoff/chorebot/internal/config"
	"github.com/Kerhoff/chorebot/internal/models"
	"github.com/Kerhoff/chorebot/internal/repository"
)

type approvalMessageRepository struct {
	db *config.Database
}

// NewApprovalMessageRepository creates a new approval message repository
func NewApprovalMessageRepository(db *config.Database) repository.ApprovalMessageRepository {
	return &approvalMessageRepository{db: db}
}

func (r *approvalMessageRepository) Add(ctx context.Context, msg *models.ApprovalMessage) (*models.ApprovalMessage, error) {
	query := r.db.Rebind(`
		INSERT INTO approval_messages (approval_kind, approval_id, parent_chat_id, message_ref)
		VALUES (?, ?, ?, ?)
		RETURNING id`)

	err := r.db.QueryRowContext(ctx, query,
		string(msg.Kind),
		msg.ApprovalID,
		msg.ParentChatID,
		msg.MessageRef,
	).Scan(&msg.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to add approval message: %w", err)
	}

	return msg, nil
}

func (r *approvalMessageRepository) List(ctx context.Context, ref models.ApprovalRef) ([]*models.ApprovalMessage, error) {
	query := r.db.Rebind(`
		SELECT id, approval_kind, approval_id, parent_chat_id, message_ref
		FROM approval_messages
		WHERE approval_kind = ? AND approval_id = ?
		ORDER BY id`)

	rows, err := r.db.QueryContext(ctx, query, string(ref.Kind), ref.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query approval messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.ApprovalMessage
	for rows.Next() {
		msg := &models.ApprovalMessage{}
		if err := rows.Scan(
			&msg.ID,
			&msg.Kind,
			&msg.ApprovalID,
			&msg.ParentChatID,
			&msg.MessageRef,
		); err != nil {
			return nil, fmt.Errorf("failed to scan approval message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (r *approvalMessageRepository) Delete(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	query := r.db.Rebind(`DELETE FROM approval_messages WHERE id IN (` + placeholders + `)`)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete approval messages: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
