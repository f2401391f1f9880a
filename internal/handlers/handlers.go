package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Kerhoff/chorebot/internal/models"
	"github.com/Kerhoff/chorebot/internal/service"
)

// reply sends an HTML message to the chat the message came from.
func reply(bot *tgbotapi.BotAPI, message *tgbotapi.Message, text string) error {
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

// userText turns a domain error into something worth showing in chat. It
// returns false for errors the router should log as failures.
func userText(err error) (string, bool) {
	switch {
	case errors.Is(err, models.ErrAlreadyResolved):
		return "ℹ️ Already resolved.", true
	case errors.Is(err, models.ErrNotFound):
		return "🔍 Not found. It may have been removed or already handled.", true
	case errors.Is(err, models.ErrNotParent):
		return "⛔ Only parents can do this.", true
	case errors.Is(err, models.ErrNotChild):
		return "⛔ Only children can do this.", true
	case errors.Is(err, models.ErrOwnership):
		return "⛔ That belongs to someone else.", true
	case errors.Is(err, models.ErrInvalidMedium):
		return "📎 Please attach a photo or a video as proof.", true
	case errors.Is(err, models.ErrInvalidDate):
		return "📅 Dates look like 2025-01-31.", true
	case errors.Is(err, models.ErrWrongPassword):
		return "🔒 Wrong family password.", true
	case errors.Is(err, models.ErrAlreadyRegistered):
		return "ℹ️ You are already registered.", true
	}
	return "", false
}

// replyError reports domain errors to the user and passes anything else up.
func replyError(bot *tgbotapi.BotAPI, message *tgbotapi.Message, err error) error {
	text, ok := userText(err)
	if !ok {
		return err
	}
	return reply(bot, message, text)
}

// registeredUser loads the sender. Unregistered senders get a hint and a nil
// user.
func registeredUser(ctx context.Context, svc *service.Service, bot *tgbotapi.BotAPI, message *tgbotapi.Message) (*models.User, error) {
	user, err := svc.UserByChatID(ctx, message.Chat.ID)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, reply(bot, message,
			"👋 You are not registered yet.\nStart a family with /newfamily or join one with /join CODE parent|child NAME.")
	}
	return user, nil
}

// displayName picks the name Telegram knows the sender by.
func displayName(message *tgbotapi.Message) string {
	if message.From == nil {
		return ""
	}
	if message.From.FirstName != "" {
		return message.From.FirstName
	}
	return message.From.UserName
}

// proofFromMessage extracts the attached media as a proof reference.
func proofFromMessage(message *tgbotapi.Message) (string, models.Medium, bool) {
	if len(message.Photo) > 0 {
		// Telegram lists sizes smallest first.
		return message.Photo[len(message.Photo)-1].FileID, models.MediumPhoto, true
	}
	if message.Video != nil {
		return message.Video.FileID, models.MediumVideo, true
	}
	return "", "", false
}

// childArg resolves an optional child id argument for parents. With no
// argument a family with one child resolves to that child.
func childArg(ctx context.Context, svc *service.Service, parent *models.User, args []string) (*models.User, error) {
	if len(args) > 0 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("child id %q: %w", args[0], models.ErrNotFound)
		}
		return svc.FamilyChild(ctx, parent, id)
	}

	children, err := svc.ListChildren(ctx, parent.FamilyID)
	if err != nil {
		return nil, err
	}
	if len(children) != 1 {
		return nil, fmt.Errorf("child id required: %w", models.ErrNotFound)
	}
	return children[0], nil
}
