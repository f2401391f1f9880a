package approval

import (
	"context"

	"github.com/Kerhoff/chorebot/internal/models"
)

// Proof is the evidence attached to a submission.
type Proof struct {
	Ref    string
	Medium models.Medium
}

// Gateway delivers notifications to chat identities.
type Gateway interface {
	SendText(ctx context.Context, chatID int64, text string) error
	// SendMedia shows proof to a parent. When decision is not nil the
	// message carries approve/reject controls for it. An empty message
	// reference means the message cannot be edited later.
	SendMedia(ctx context.Context, chatID int64, proof Proof, caption string, decision *models.ApprovalRef) (string, error)
	// UpdateMedia replaces the caption of a sent media message and drops its
	// decision controls.
	UpdateMedia(ctx context.Context, chatID int64, messageRef, caption string) error
}
