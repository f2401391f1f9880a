package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"

	"github.com/Kerhoff/chorebot/internal/models"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		message *tgbotapi.Message
		command string
		args    []string
		ok      bool
	}{
		{
			name: "text command",
			message: &tgbotapi.Message{
				Text:     "/join ABC123 child Ann",
				Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 5}},
			},
			command: "join",
			args:    []string{"ABC123", "child", "Ann"},
			ok:      true,
		},
		{
			name:    "photo caption",
			message: &tgbotapi.Message{Caption: " /done teeth"},
			command: "done",
			args:    []string{"teeth"},
			ok:      true,
		},
		{
			name:    "caption addressed to bot",
			message: &tgbotapi.Message{Caption: "/extra@chore_bot 12"},
			command: "extra",
			args:    []string{"12"},
			ok:      true,
		},
		{
			name:    "plain caption",
			message: &tgbotapi.Message{Caption: "look at my bed"},
		},
		{
			name:    "empty",
			message: &tgbotapi.Message{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			command, args, ok := parseCommand(tt.message)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.command, command)
				assert.Equal(t, tt.args, args)
			}
		})
	}
}

func TestDecisionKeyboard(t *testing.T) {
	kb := DecisionKeyboard(models.ApprovalRef{Kind: models.ApprovalExtra, ID: 42})

	row := kb.InlineKeyboard[0]
	assert.Len(t, row, 2)
	assert.Equal(t, "approve:extra:42", *row[0].CallbackData)
	assert.Equal(t, "reject:extra:42", *row[1].CallbackData)
}
