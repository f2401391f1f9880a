package handlers

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// HelpHandler handles the /help command
type HelpHandler struct {
	logger *logrus.Logger
}

func NewHelpHandler(logger *logrus.Logger) *HelpHandler {
	return &HelpHandler{logger: logger}
}

func (h *HelpHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	helpText := `📚 <b>ChoreBot Help</b>

<b>Family:</b>
• /newfamily [password] - Start a family as its first parent
• /join CODE parent|child NAME [password] - Join a family
• /invite - Show the invite code
• /password [new] - Set or clear the parent password
• /resetfamily confirm - Delete the family and all history

<b>Children:</b>
• /checklist - Today's checklist
• Photo/video with caption /done KEY - Submit proof for a task
• Photo/video with caption /extra ID - Submit proof for an extra task
• /undo KEY or /undo extra ID - Take back today's submission
• /report - This week's score

<b>Parents:</b>
• /pending - Submissions waiting for a decision
• /report [child] - This week's score
• /history [child] [weeks] - Past weeks
• /export [child] - Weekly report as a spreadsheet
• /addextra CHILD POINTS TITLE - Assign an extra task
• /tasks [child] - Show a child's checklist items
• /task CHILD on|off KEY - Enable or disable an item
• /task CHILD add morning|evening|weekly|custom LABEL - Add a custom item
• /task CHILD remove KEY - Remove a custom item
• /task CHILD reset - Restore the standard checklist

<i>Pocket money: 89.2% of the weekly maximum pays 100%, 75% pays 70%, 62.5% pays 40%.</i>`

	msg := tgbotapi.NewMessage(message.Chat.ID, helpText)
	msg.ParseMode = tgbotapi.ModeHTML

	_, err := bot.Send(msg)
	if err != nil {
		return fmt.Errorf("failed to send help message: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"user_id": message.From.ID,
	}).Info("Sent help message")

	return nil
}
