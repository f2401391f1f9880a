package handlers

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/chorebot/internal/approval"
	"github.com/Kerhoff/chorebot/internal/service"
)

// submit stores the attached proof for target and tells the child how the
// delivery to parents went.
func submit(ctx context.Context, svc *service.Service, logger *logrus.Logger,
	bot *tgbotapi.BotAPI, message *tgbotapi.Message, target approval.Target) error {
	ref, medium, ok := proofFromMessage(message)
	if !ok {
		return reply(bot, message, "📎 Attach a photo or a video and put the command in its caption.")
	}

	user, err := registeredUser(ctx, svc, bot, message)
	if err != nil || user == nil {
		return err
	}

	sub, err := svc.Approvals.Submit(ctx, user, target, approval.Proof{Ref: ref, Medium: medium})
	if err != nil {
		return replyError(bot, message, err)
	}

	text := fmt.Sprintf("📨 \"%s\" was sent to your parents for approval.", html.EscapeString(sub.Label))
	switch {
	case sub.Delivery.Attempted == 0:
		text += "\n⚠️ No parent is registered yet, so nobody can approve it."
	case sub.Delivery.Delivered == 0:
		text += "\n⚠️ No parent could be reached right now. They will still see it under /pending."
	}
	if err := reply(bot, message, text); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"child_id":      user.ID,
		"approval_kind": sub.Ref.Kind,
		"approval_id":   sub.Ref.ID,
		"medium":        medium,
	}).Info("Proof submitted")

	return nil
}

// ---------------------------------------------------------------------------
// DoneHandler – caption /done KEY
// ---------------------------------------------------------------------------

// DoneHandler submits proof for a checklist item.
type DoneHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewDoneHandler creates a new DoneHandler.
func NewDoneHandler(svc *service.Service, logger *logrus.Logger) *DoneHandler {
	return &DoneHandler{svc: svc, logger: logger}
}

// Handle processes the /done command.
func (h *DoneHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	if len(args) == 0 {
		return reply(bot, message,
			"❌ Please name the task.\nUsage: photo or video with the caption <code>/done teeth</code>\nSee the keys with /checklist.")
	}

	return submit(context.Background(), h.svc, h.logger, bot, message,
		approval.TaskTarget{Key: strings.ToLower(args[0])})
}

// ---------------------------------------------------------------------------
// ExtraHandler – caption /extra ID
// ---------------------------------------------------------------------------

// ExtraHandler submits proof for an extra task.
type ExtraHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewExtraHandler creates a new ExtraHandler.
func NewExtraHandler(svc *service.Service, logger *logrus.Logger) *ExtraHandler {
	return &ExtraHandler{svc: svc, logger: logger}
}

// Handle processes the /extra command.
func (h *ExtraHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	if len(args) == 0 {
		return reply(bot, message,
			"❌ Please provide the extra task number.\nUsage: photo or video with the caption <code>/extra 12</code>")
	}

	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil {
		return reply(bot, message, "❌ Invalid extra task number.")
	}

	return submit(context.Background(), h.svc, h.logger, bot, message, approval.ExtraTarget{ID: id})
}

// ---------------------------------------------------------------------------
// UndoHandler – /undo KEY | /undo extra ID
// ---------------------------------------------------------------------------

// UndoHandler takes back today's completion of an item or an extra task.
type UndoHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewUndoHandler creates a new UndoHandler.
func NewUndoHandler(svc *service.Service, logger *logrus.Logger) *UndoHandler {
	return &UndoHandler{svc: svc, logger: logger}
}

// Handle processes the /undo command.
func (h *UndoHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	target, ok := undoTarget(args)
	if !ok {
		return reply(bot, message,
			"❌ Usage: <code>/undo KEY</code> or <code>/undo extra ID</code>")
	}

	ctx := context.Background()

	user, err := registeredUser(ctx, h.svc, bot, message)
	if err != nil || user == nil {
		return err
	}

	if err := h.svc.Approvals.Unmark(ctx, user, target); err != nil {
		return replyError(bot, message, err)
	}
	return reply(bot, message, "↩️ Done, it is back on your list.")
}

func undoTarget(args []string) (approval.Target, bool) {
	switch {
	case len(args) == 1:
		return approval.TaskTarget{Key: strings.ToLower(args[0])}, true
	case len(args) == 2 && strings.EqualFold(args[0], "extra"):
		id, err := strconv.ParseInt(strings.TrimPrefix(args[1], "#"), 10, 64)
		if err != nil {
			return nil, false
		}
		return approval.ExtraTarget{ID: id}, true
	}
	return nil, false
}
