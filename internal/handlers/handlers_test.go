package handlers

import (
	"fmt"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/chorebot/internal/approval"
	"github.com/Kerhoff/chorebot/internal/models"
	"github.com/Kerhoff/chorebot/internal/service"
)

func TestParseDecision(t *testing.T) {
	verdict, ref, err := parseDecision("reject:task:12")
	require.NoError(t, err)
	assert.Equal(t, models.VerdictReject, verdict)
	assert.Equal(t, models.ApprovalRef{Kind: models.ApprovalTask, ID: 12}, ref)

	for _, bad := range []string{"", "approve", "maybe:task:1", "approve:chore:1", "approve:task:x"} {
		_, _, err := parseDecision(bad)
		assert.Error(t, err, bad)
	}
}

func TestUndoTarget(t *testing.T) {
	target, ok := undoTarget([]string{"Teeth"})
	require.True(t, ok)
	assert.Equal(t, approval.TaskTarget{Key: "teeth"}, target)

	target, ok = undoTarget([]string{"extra", "#7"})
	require.True(t, ok)
	assert.Equal(t, approval.ExtraTarget{ID: 7}, target)

	_, ok = undoTarget(nil)
	assert.False(t, ok)
	_, ok = undoTarget([]string{"extra", "seven"})
	assert.False(t, ok)
}

func TestProofFromMessage(t *testing.T) {
	ref, medium, ok := proofFromMessage(&tgbotapi.Message{Photo: []tgbotapi.PhotoSize{
		{FileID: "small", Width: 90},
		{FileID: "large", Width: 1280},
	}})
	require.True(t, ok)
	assert.Equal(t, "large", ref)
	assert.Equal(t, models.MediumPhoto, medium)

	ref, medium, ok = proofFromMessage(&tgbotapi.Message{Video: &tgbotapi.Video{FileID: "clip"}})
	require.True(t, ok)
	assert.Equal(t, "clip", ref)
	assert.Equal(t, models.MediumVideo, medium)

	_, _, ok = proofFromMessage(&tgbotapi.Message{Text: "/done teeth"})
	assert.False(t, ok)
}

func TestUserText(t *testing.T) {
	text, ok := userText(fmt.Errorf("completion 3: %w", models.ErrAlreadyResolved))
	assert.True(t, ok)
	assert.Contains(t, text, "Already resolved")

	text, ok = userText(fmt.Errorf("extra task date %q: %w", "tomorrow", models.ErrInvalidDate))
	assert.True(t, ok)
	assert.Contains(t, text, "2025-01-31")

	_, ok = userText(fmt.Errorf("database is locked"))
	assert.False(t, ok)
}

func TestFormatDayView(t *testing.T) {
	view := &service.DayView{
		Date: "2025-01-12",
		Items: []*service.DayItem{
			{Key: "teeth", Label: "Brush teeth", Group: models.GroupMorning, Status: service.StatusDone},
			{Key: "shower", Label: "Shower", Group: models.GroupEvening, Status: service.StatusPending},
		},
		Extras: []*service.DayExtra{
			{ExtraTask: &models.ExtraTask{ID: 4, Title: "Wash <car>", Points: 2}, Status: service.StatusTodo},
		},
		Points:         0,
		MaxPoints:      2,
		HygieneMissing: true,
	}

	text := formatDayView("Ann", view)
	assert.Contains(t, text, "✅ Brush teeth <code>teeth</code>")
	assert.Contains(t, text, "⏳ Shower <code>shower</code>")
	assert.Contains(t, text, "⬜ #4 Wash &lt;car&gt; (+2)")
	assert.Contains(t, text, "<b>0/2</b>")
	assert.Contains(t, text, "No shower yet")
}

func TestPendingKeyboard(t *testing.T) {
	pending := []*models.PendingApproval{
		{Ref: models.ApprovalRef{Kind: models.ApprovalTask, ID: 3}, ChildName: "Ann", Label: "Brush teeth", Date: "2025-01-11"},
		{Ref: models.ApprovalRef{Kind: models.ApprovalExtra, ID: 9}, ChildName: "Ben", Label: "Wash car", Date: "2025-01-12", Points: 2},
	}

	text := formatPending(pending)
	assert.Contains(t, text, "1. <b>Ann</b>: Brush teeth (2025-01-11)")
	assert.Contains(t, text, "2. <b>Ben</b>: Wash car (2025-01-12) ⭐+2")

	kb := pendingKeyboard(pending)
	require.Len(t, kb.InlineKeyboard, 2)
	assert.Equal(t, "approve:task:3", *kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "reject:extra:9", *kb.InlineKeyboard[1][1].CallbackData)
}
