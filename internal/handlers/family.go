package handlers

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/chorebot/internal/models"
	"github.com/Kerhoff/chorebot/internal/service"
)

// ---------------------------------------------------------------------------
// NewFamilyHandler – /newfamily [password]
// ---------------------------------------------------------------------------

// NewFamilyHandler creates a family with the sender as its first parent.
type NewFamilyHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewNewFamilyHandler creates a new NewFamilyHandler.
func NewNewFamilyHandler(svc *service.Service, logger *logrus.Logger) *NewFamilyHandler {
	return &NewFamilyHandler{svc: svc, logger: logger}
}

// Handle processes the /newfamily command.
func (h *NewFamilyHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()

	family, user, err := h.svc.StartFamily(ctx, message.Chat.ID, displayName(message), strings.Join(args, " "))
	if err != nil {
		return replyError(bot, message, err)
	}

	text := fmt.Sprintf("🏠 <b>Family created!</b>\n\nInvite code: <code>%s</code>\n\n"+
		"Children join with:\n<code>/join %s child NAME</code>\nParents join with:\n<code>/join %s parent NAME%s</code>",
		family.InviteCode, family.InviteCode, family.InviteCode, passwordHint(family))
	if err := reply(bot, message, text); err != nil {
		return err
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id":   message.Chat.ID,
		"user_id":   user.ID,
		"family_id": family.ID,
	}).Info("Family started")

	return nil
}

func passwordHint(family *models.Family) string {
	if family.HasPassword() {
		return " PASSWORD"
	}
	return ""
}

// ---------------------------------------------------------------------------
// JoinHandler – /join CODE parent|child NAME [password]
// ---------------------------------------------------------------------------

// JoinHandler registers the sender in an existing family.
type JoinHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewJoinHandler creates a new JoinHandler.
func NewJoinHandler(svc *service.Service, logger *logrus.Logger) *JoinHandler {
	return &JoinHandler{svc: svc, logger: logger}
}

// Handle processes the /join command.
func (h *JoinHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	if len(args) < 3 {
		return reply(bot, message,
			"❌ Usage: <code>/join CODE parent|child NAME [password]</code>")
	}

	role := models.Role(strings.ToLower(args[1]))
	if !role.Valid() {
		return reply(bot, message, "❌ Role must be <code>parent</code> or <code>child</code>.")
	}

	name := args[2]
	password := ""
	if len(args) > 3 {
		password = strings.Join(args[3:], " ")
	}

	ctx := context.Background()

	user, err := h.svc.Register(ctx, message.Chat.ID, args[0], role, name, password)
	if err != nil {
		return replyError(bot, message, err)
	}

	text := fmt.Sprintf("✅ Welcome to the family, <b>%s</b>!", html.EscapeString(user.Name))
	if user.IsChild() {
		text += "\nSee today's chores with /checklist."
	} else {
		text += "\nYou will receive proof to approve here. See /help for parent commands."
	}
	if err := reply(bot, message, text); err != nil {
		return err
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id":   message.Chat.ID,
		"user_id":   user.ID,
		"family_id": user.FamilyID,
		"role":      user.Role,
	}).Info("User joined family")

	return nil
}

// ---------------------------------------------------------------------------
// InviteHandler – /invite
// ---------------------------------------------------------------------------

// InviteHandler shows the family invite code to parents.
type InviteHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewInviteHandler creates a new InviteHandler.
func NewInviteHandler(svc *service.Service, logger *logrus.Logger) *InviteHandler {
	return &InviteHandler{svc: svc, logger: logger}
}

// Handle processes the /invite command.
func (h *InviteHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()

	user, err := registeredUser(ctx, h.svc, bot, message)
	if err != nil || user == nil {
		return err
	}
	if !user.IsParent() {
		return replyError(bot, message, models.ErrNotParent)
	}

	family, err := h.svc.Family(ctx, user)
	if err != nil {
		return err
	}

	text := fmt.Sprintf("🔑 Invite code: <code>%s</code>", family.InviteCode)
	if family.HasPassword() {
		text += "\nParents also need the family password."
	}
	return reply(bot, message, text)
}

// ---------------------------------------------------------------------------
// PasswordHandler – /password [new]
// ---------------------------------------------------------------------------

// PasswordHandler sets or clears the password parents need to join.
type PasswordHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewPasswordHandler creates a new PasswordHandler.
func NewPasswordHandler(svc *service.Service, logger *logrus.Logger) *PasswordHandler {
	return &PasswordHandler{svc: svc, logger: logger}
}

// Handle processes the /password command.
func (h *PasswordHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()

	user, err := registeredUser(ctx, h.svc, bot, message)
	if err != nil || user == nil {
		return err
	}

	password := strings.Join(args, " ")
	if err := h.svc.SetPassword(ctx, user, password); err != nil {
		return replyError(bot, message, err)
	}

	h.logger.WithFields(logrus.Fields{
		"user_id":   user.ID,
		"family_id": user.FamilyID,
		"cleared":   password == "",
	}).Info("Family password changed")

	if password == "" {
		return reply(bot, message, "🔓 Parent password cleared.")
	}
	return reply(bot, message, "🔒 Parent password updated.")
}

// ---------------------------------------------------------------------------
// ResetFamilyHandler – /resetfamily confirm
// ---------------------------------------------------------------------------

// ResetFamilyHandler deletes the sender's family.
type ResetFamilyHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewResetFamilyHandler creates a new ResetFamilyHandler.
func NewResetFamilyHandler(svc *service.Service, logger *logrus.Logger) *ResetFamilyHandler {
	return &ResetFamilyHandler{svc: svc, logger: logger}
}

// Handle processes the /resetfamily command.
func (h *ResetFamilyHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	if len(args) == 0 || args[0] != "confirm" {
		return reply(bot, message,
			"⚠️ This deletes the family, every member and all history.\nSend <code>/resetfamily confirm</code> to proceed.")
	}

	ctx := context.Background()

	user, err := registeredUser(ctx, h.svc, bot, message)
	if err != nil || user == nil {
		return err
	}

	chatIDs, err := h.svc.ResetFamily(ctx, user)
	if err != nil {
		return replyError(bot, message, err)
	}

	for _, chatID := range chatIDs {
		msg := tgbotapi.NewMessage(chatID, "🗑 Your family was reset by a parent. Use /start to begin again.")
		if _, err := bot.Send(msg); err != nil {
			h.logger.WithError(err).WithField("chat_id", chatID).Warn("Failed to notify former member")
		}
	}
	return nil
}
