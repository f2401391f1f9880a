package handlers

import (
	"context"
	"fmt"
	"html"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/chorebot/internal/service"
)

// StartHandler handles the /start command
type StartHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewStartHandler creates a new start command handler
func NewStartHandler(svc *service.Service, logger *logrus.Logger) *StartHandler {
	return &StartHandler{
		svc:    svc,
		logger: logger,
	}
}

// Handle processes the /start command
func (h *StartHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()

	user, err := h.svc.UserByChatID(ctx, message.Chat.ID)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}

	var welcomeText string
	if user == nil {
		welcomeText = `🏠 <b>Welcome to ChoreBot!</b>

I keep track of your family's daily chores. Children send a photo or a video as proof, parents approve it, and the week's points turn into pocket money.

<b>Getting started:</b>
• /newfamily [password] - Start a new family as a parent
• /join CODE parent|child NAME [password] - Join an existing family

Use /help to see every command.`
	} else {
		welcomeText = fmt.Sprintf("👋 Welcome back, <b>%s</b> (%s).\nUse /help to see what you can do.",
			html.EscapeString(user.Name), user.Role)
	}

	if err := reply(bot, message, welcomeText); err != nil {
		return fmt.Errorf("failed to send start message: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id":    message.Chat.ID,
		"user_id":    message.From.ID,
		"registered": user != nil,
	}).Info("Sent start message")

	return nil
}
