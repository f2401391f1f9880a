package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/chorebot/internal/models"
	"github.com/Kerhoff/chorebot/internal/service"
)

// DecisionHandler applies approve/reject button presses. It is registered
// for both verdict prefixes.
type DecisionHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewDecisionHandler creates a new DecisionHandler.
func NewDecisionHandler(svc *service.Service, logger *logrus.Logger) *DecisionHandler {
	return &DecisionHandler{svc: svc, logger: logger}
}

// parseDecision splits callback data of the form "<verdict>:<kind>:<id>".
func parseDecision(data string) (models.Verdict, models.ApprovalRef, error) {
	rawVerdict, rawRef, ok := strings.Cut(data, ":")
	if !ok {
		return "", models.ApprovalRef{}, fmt.Errorf("malformed decision %q", data)
	}
	verdict := models.Verdict(rawVerdict)
	if verdict != models.VerdictApprove && verdict != models.VerdictReject {
		return "", models.ApprovalRef{}, fmt.Errorf("unknown verdict %q", rawVerdict)
	}
	ref, err := models.ParseApprovalRef(rawRef)
	if err != nil {
		return "", models.ApprovalRef{}, err
	}
	return verdict, ref, nil
}

// HandleCallback processes a decision button press.
func (h *DecisionHandler) HandleCallback(bot *tgbotapi.BotAPI, query *tgbotapi.CallbackQuery, data string) (string, error) {
	verdict, ref, err := parseDecision(query.Data)
	if err != nil {
		return "", err
	}

	chatID := query.From.ID
	if query.Message != nil {
		chatID = query.Message.Chat.ID
	}

	ctx := context.Background()

	parent, err := h.svc.UserByChatID(ctx, chatID)
	if err != nil {
		return "", fmt.Errorf("lookup user: %w", err)
	}
	if parent == nil {
		return "⛔ You are not registered.", nil
	}

	decision, err := h.svc.Approvals.Decide(ctx, parent, ref, verdict)
	switch {
	case err == nil:
	case errors.Is(err, models.ErrAlreadyResolved), errors.Is(err, models.ErrNotFound):
		h.clearStale(bot, query)
		return "ℹ️ Already resolved", nil
	default:
		if text, ok := userText(err); ok {
			return text, nil
		}
		return "", err
	}

	h.logger.WithFields(logrus.Fields{
		"parent_id":     parent.ID,
		"approval_kind": ref.Kind,
		"approval_id":   ref.ID,
		"verdict":       verdict,
		"retracted":     decision.Retracted != nil && decision.Retracted.Delivered > 0,
	}).Info("Decision applied")

	if verdict == models.VerdictApprove {
		return "✅ Approved", nil
	}
	return "❌ Rejected", nil
}

// clearStale strips the buttons from a media message that still offers a
// decision on an item someone else already handled.
func (h *DecisionHandler) clearStale(bot *tgbotapi.BotAPI, query *tgbotapi.CallbackQuery) {
	msg := query.Message
	if msg == nil || (len(msg.Photo) == 0 && msg.Video == nil) {
		return
	}
	edit := tgbotapi.NewEditMessageCaption(msg.Chat.ID, msg.MessageID, "ℹ️ Already resolved")
	if _, err := bot.Request(edit); err != nil {
		h.logger.WithError(err).WithField("message_id", msg.MessageID).Debug("Failed to clear stale decision message")
	}
}
