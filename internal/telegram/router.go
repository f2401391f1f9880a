package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Router handles message routing and command parsing
type Router struct {
	logger    *logrus.Logger
	handlers  map[string]CommandHandler
	callbacks map[string]CallbackHandler
}

// CommandHandler defines the interface for command handlers
type CommandHandler interface {
	Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error
}

// CallbackHandler handles inline keyboard presses. data is the callback data
// without the routing prefix. The returned text is shown to the user as the
// callback answer.
type CallbackHandler interface {
	HandleCallback(bot *tgbotapi.BotAPI, query *tgbotapi.CallbackQuery, data string) (string, error)
}

// NewRouter creates a new message router
func NewRouter(logger *logrus.Logger) *Router {
	return &Router{
		logger:    logger,
		handlers:  make(map[string]CommandHandler),
		callbacks: make(map[string]CallbackHandler),
	}
}

// RegisterCommand registers a command handler
func (r *Router) RegisterCommand(command string, handler CommandHandler) {
	r.handlers[command] = handler
	r.logger.Debugf("Registered command: %s", command)
}

// RegisterCallback registers a callback handler for data starting with
// prefix followed by a colon.
func (r *Router) RegisterCallback(prefix string, handler CallbackHandler) {
	r.callbacks[prefix] = handler
	r.logger.Debugf("Registered callback: %s", prefix)
}

// parseCommand extracts a command from message text, or from the caption of
// a photo or video.
func parseCommand(message *tgbotapi.Message) (string, []string, bool) {
	if message.IsCommand() {
		return message.Command(), strings.Fields(message.CommandArguments()), true
	}

	caption := strings.TrimSpace(message.Caption)
	if !strings.HasPrefix(caption, "/") {
		return "", nil, false
	}
	fields := strings.Fields(caption)
	command := strings.TrimPrefix(fields[0], "/")
	if i := strings.Index(command, "@"); i >= 0 {
		command = command[:i]
	}
	if command == "" {
		return "", nil, false
	}
	return command, fields[1:], true
}

// HandleMessage handles incoming messages
func (r *Router) HandleMessage(bot *tgbotapi.BotAPI, message *tgbotapi.Message) {
	if message.From == nil {
		return
	}

	r.logger.WithFields(logrus.Fields{
		"chat_id":    message.Chat.ID,
		"user_id":    message.From.ID,
		"username":   message.From.UserName,
		"message_id": message.MessageID,
		"text":       message.Text,
		"caption":    message.Caption,
	}).Info("Received message")

	command, args, ok := parseCommand(message)
	if !ok {
		if len(message.Photo) > 0 || message.Video != nil {
			hint := tgbotapi.NewMessage(message.Chat.ID,
				"📎 Add a caption like /done teeth or /extra 12 so I know what this proof is for.")
			bot.Send(hint)
		}
		return
	}

	// Find and execute handler
	if handler, exists := r.handlers[command]; exists {
		if err := handler.Handle(bot, message, args); err != nil {
			r.logger.WithFields(logrus.Fields{
				"command": command,
				"chat_id": message.Chat.ID,
				"user_id": message.From.ID,
				"error":   err,
			}).Error("Command handler failed")

			// Send error message to user
			errorMsg := tgbotapi.NewMessage(message.Chat.ID, "❌ An error occurred while processing your command. Please try again.")
			bot.Send(errorMsg)
		}
	} else {
		// Unknown command
		r.logger.WithFields(logrus.Fields{
			"command": command,
			"chat_id": message.Chat.ID,
			"user_id": message.From.ID,
		}).Warn("Unknown command")

		unknownMsg := tgbotapi.NewMessage(message.Chat.ID, "❓ Unknown command. Use /help to see available commands.")
		bot.Send(unknownMsg)
	}
}

// HandleCallbackQuery handles callback queries from inline keyboards
func (r *Router) HandleCallbackQuery(bot *tgbotapi.BotAPI, callbackQuery *tgbotapi.CallbackQuery) {
	r.logger.WithFields(logrus.Fields{
		"callback_id": callbackQuery.ID,
		"user_id":     callbackQuery.From.ID,
		"data":        callbackQuery.Data,
	}).Info("Received callback query")

	answer := ""
	prefix, data, _ := strings.Cut(callbackQuery.Data, ":")
	if handler, exists := r.callbacks[prefix]; exists {
		text, err := handler.HandleCallback(bot, callbackQuery, data)
		if err != nil {
			r.logger.WithFields(logrus.Fields{
				"data":    callbackQuery.Data,
				"user_id": callbackQuery.From.ID,
				"error":   err,
			}).Error("Callback handler failed")
			text = "❌ Something went wrong. Please try again."
		}
		answer = text
	} else {
		r.logger.WithField("data", callbackQuery.Data).Warn("Unknown callback")
	}

	// Answer the callback query to remove loading state
	bot.Request(tgbotapi.NewCallback(callbackQuery.ID, answer))
}
