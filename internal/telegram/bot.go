package telegram

import (
	"context"
	"fmt"
	"path"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/chorebot/internal/approval"
	"github.com/Kerhoff/chorebot/internal/models"
	"github.com/Kerhoff/chorebot/internal/storage"
)

// Bot wraps the Telegram bot API and delivers the app's notifications.
type Bot struct {
	api    *tgbotapi.BotAPI
	logger *logrus.Logger
	router *Router
	proofs storage.Storage
}

var _ approval.Gateway = (*Bot)(nil)

// NewBot creates a new Telegram bot instance. Proof references that proofs
// owns are uploaded from it; anything else is treated as a Telegram file id.
func NewBot(token string, proofs storage.Storage, logger *logrus.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	logger.Infof("Authorized on account %s", api.Self.UserName)

	return &Bot{
		api:    api,
		logger: logger,
		router: NewRouter(logger),
		proofs: proofs,
	}, nil
}

// Username returns the bot's account name.
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// Start starts the bot with long polling
func (b *Bot) Start(ctx context.Context) error {
	// Delete webhook if exists and use polling
	_, err := b.api.Request(tgbotapi.DeleteWebhookConfig{})
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Bot started with long polling")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Stopping bot...")
			b.api.StopReceivingUpdates()
			return nil
		case update := <-updates:
			go b.handleUpdate(update)
		}
	}
}

// handleUpdate processes incoming updates
func (b *Bot) handleUpdate(update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Errorf("Panic in update handler: %v", r)
		}
	}()

	if update.Message != nil {
		b.router.HandleMessage(b.api, update.Message)
	} else if update.CallbackQuery != nil {
		b.router.HandleCallbackQuery(b.api, update.CallbackQuery)
	}
}

// SendText sends an HTML message to a chat.
func (b *Bot) SendText(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// SendMedia sends proof as a photo or video, with decision buttons when
// decision is set. The returned reference is the message id.
func (b *Bot) SendMedia(ctx context.Context, chatID int64, proof approval.Proof, caption string, decision *models.ApprovalRef) (string, error) {
	file, closeFile, err := b.proofFile(ctx, proof)
	if err != nil {
		return "", err
	}
	defer closeFile()

	var cfg tgbotapi.Chattable
	switch proof.Medium {
	case models.MediumVideo:
		video := tgbotapi.NewVideo(chatID, file)
		video.Caption = caption
		video.ParseMode = tgbotapi.ModeHTML
		if decision != nil {
			video.ReplyMarkup = DecisionKeyboard(*decision)
		}
		cfg = video
	default:
		photo := tgbotapi.NewPhoto(chatID, file)
		photo.Caption = caption
		photo.ParseMode = tgbotapi.ModeHTML
		if decision != nil {
			photo.ReplyMarkup = DecisionKeyboard(*decision)
		}
		cfg = photo
	}

	sent, err := b.api.Send(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to send %s: %w", proof.Medium, err)
	}
	return strconv.Itoa(sent.MessageID), nil
}

// UpdateMedia rewrites the caption of a media message. Editing without a
// reply markup removes the decision buttons.
func (b *Bot) UpdateMedia(ctx context.Context, chatID int64, messageRef, caption string) error {
	messageID, err := strconv.Atoi(messageRef)
	if err != nil {
		return fmt.Errorf("invalid message reference %q: %w", messageRef, err)
	}

	edit := tgbotapi.NewEditMessageCaption(chatID, messageID, caption)
	edit.ParseMode = tgbotapi.ModeHTML

	if _, err := b.api.Request(edit); err != nil {
		return fmt.Errorf("failed to edit message caption: %w", err)
	}
	return nil
}

func (b *Bot) proofFile(ctx context.Context, proof approval.Proof) (tgbotapi.RequestFileData, func(), error) {
	if b.proofs == nil || !b.proofs.Owns(proof.Ref) {
		return tgbotapi.FileID(proof.Ref), func() {}, nil
	}

	rc, err := b.proofs.Open(ctx, proof.Ref)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open proof: %w", err)
	}
	return tgbotapi.FileReader{Name: path.Base(proof.Ref), Reader: rc}, func() { rc.Close() }, nil
}

// CallbackData encodes a verdict on ref as inline button data. The verdict
// doubles as the router prefix.
func CallbackData(verdict models.Verdict, ref models.ApprovalRef) string {
	return string(verdict) + ":" + ref.String()
}

// DecisionKeyboard renders approve/reject buttons for ref.
func DecisionKeyboard(ref models.ApprovalRef) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", CallbackData(models.VerdictApprove, ref)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", CallbackData(models.VerdictReject, ref)),
		),
	)
}

// RegisterCommand registers a command handler on the router
func (b *Bot) RegisterCommand(command string, handler CommandHandler) {
	b.router.RegisterCommand(command, handler)
}

// RegisterCallback registers a callback handler for a data prefix
func (b *Bot) RegisterCallback(prefix string, handler CallbackHandler) {
	b.router.RegisterCallback(prefix, handler)
}
