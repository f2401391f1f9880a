package handlers

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/chorebot/internal/models"
	"github.com/Kerhoff/chorebot/internal/service"
	"github.com/Kerhoff/chorebot/internal/telegram"
)

// ---------------------------------------------------------------------------
// PendingHandler – /pending
// ---------------------------------------------------------------------------

// PendingHandler lists submissions waiting for a decision, with buttons.
type PendingHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewPendingHandler creates a new PendingHandler.
func NewPendingHandler(svc *service.Service, logger *logrus.Logger) *PendingHandler {
	return &PendingHandler{svc: svc, logger: logger}
}

// Handle processes the /pending command.
func (h *PendingHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()

	user, err := registeredUser(ctx, h.svc, bot, message)
	if err != nil || user == nil {
		return err
	}

	pending, err := h.svc.PendingApprovals(ctx, user)
	if err != nil {
		return replyError(bot, message, err)
	}
	if len(pending) == 0 {
		return reply(bot, message, "🎉 Nothing waiting for approval.")
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, formatPending(pending))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = pendingKeyboard(pending)
	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send pending list: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"count":   len(pending),
	}).Info("Listed pending approvals")

	return nil
}

func formatPending(pending []*models.PendingApproval) string {
	var sb strings.Builder
	sb.WriteString("⏳ <b>Waiting for approval</b>\n\n")
	for i, p := range pending {
		fmt.Fprintf(&sb, "%d. <b>%s</b>: %s (%s)", i+1,
			html.EscapeString(p.ChildName), html.EscapeString(p.Label), p.Date)
		if p.Ref.Kind == models.ApprovalExtra {
			fmt.Fprintf(&sb, " ⭐+%d", p.Points)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func pendingKeyboard(pending []*models.PendingApproval) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(pending))
	for i, p := range pending {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ %d", i+1), telegram.CallbackData(models.VerdictApprove, p.Ref)),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("❌ %d", i+1), telegram.CallbackData(models.VerdictReject, p.Ref)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// ---------------------------------------------------------------------------
// AddExtraHandler – /addextra CHILD POINTS TITLE
// ---------------------------------------------------------------------------

// AddExtraHandler assigns a bonus task to a child for today.
type AddExtraHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewAddExtraHandler creates a new AddExtraHandler.
func NewAddExtraHandler(svc *service.Service, logger *logrus.Logger) *AddExtraHandler {
	return &AddExtraHandler{svc: svc, logger: logger}
}

// Handle processes the /addextra command.
func (h *AddExtraHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	if len(args) < 3 {
		return reply(bot, message,
			"❌ Usage: <code>/addextra CHILD POINTS TITLE</code>\nExample: <code>/addextra 3 2 Wash the car</code>")
	}

	childID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return reply(bot, message, "❌ Invalid child id. See the ids with /tasks.")
	}
	points, err := strconv.Atoi(args[1])
	if err != nil {
		return reply(bot, message, "❌ Points must be a number.")
	}

	ctx := context.Background()

	user, err := registeredUser(ctx, h.svc, bot, message)
	if err != nil || user == nil {
		return err
	}

	extra, err := h.svc.CreateExtra(ctx, user, childID, strings.Join(args[2:], " "), points, "")
	if err != nil {
		return replyError(bot, message, err)
	}

	return reply(bot, message, fmt.Sprintf("⭐ Extra task #%d added: %s (+%d)",
		extra.ID, html.EscapeString(extra.Title), extra.Points))
}
