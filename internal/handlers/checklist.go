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

var statusMark = map[service.ItemStatus]string{
	service.StatusTodo:    "⬜",
	service.StatusPending: "⏳",
	service.StatusDone:    "✅",
}

var groupTitle = map[models.TaskGroup]string{
	models.GroupMorning: "🌅 Morning",
	models.GroupEvening: "🌙 Evening",
	models.GroupWeekly:  "🧹 Weekly",
	models.GroupCustom:  "📌 Other",
}

var groupOrder = []models.TaskGroup{models.GroupMorning, models.GroupEvening, models.GroupCustom, models.GroupWeekly}

// formatDayView renders a child's day as Telegram HTML.
func formatDayView(name string, view *service.DayView) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 <b>%s – %s</b>\n", html.EscapeString(name), view.Date)

	for _, group := range groupOrder {
		var lines []string
		for _, item := range view.Items {
			if item.Group != group {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s %s <code>%s</code>",
				statusMark[item.Status], html.EscapeString(item.Label), html.EscapeString(item.Key)))
		}
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n<b>%s</b>\n%s\n", groupTitle[group], strings.Join(lines, "\n"))
	}

	if len(view.Extras) > 0 {
		sb.WriteString("\n<b>⭐ Extra tasks</b>\n")
		for _, extra := range view.Extras {
			fmt.Fprintf(&sb, "%s #%d %s (+%d)\n",
				statusMark[extra.Status], extra.ID, html.EscapeString(extra.Title), extra.Points)
		}
	}

	fmt.Fprintf(&sb, "\nPoints today: <b>%d/%d</b>", view.Points, view.MaxPoints)
	if view.ExtraPoints > 0 {
		fmt.Fprintf(&sb, " (+%d extra)", view.ExtraPoints)
	}
	if view.HygieneMissing {
		sb.WriteString("\n🚿 No shower yet: today's points count as zero until it is approved.")
	}
	return sb.String()
}

// ---------------------------------------------------------------------------
// ChecklistHandler – /checklist [child]
// ---------------------------------------------------------------------------

// ChecklistHandler shows today's checklist. Parents pass the child id.
type ChecklistHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewChecklistHandler creates a new ChecklistHandler.
func NewChecklistHandler(svc *service.Service, logger *logrus.Logger) *ChecklistHandler {
	return &ChecklistHandler{svc: svc, logger: logger}
}

// Handle processes the /checklist command.
func (h *ChecklistHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()

	user, err := registeredUser(ctx, h.svc, bot, message)
	if err != nil || user == nil {
		return err
	}

	child := user
	if user.IsParent() {
		if child, err = childArg(ctx, h.svc, user, args); err != nil {
			return replyError(bot, message, err)
		}
	}

	view, err := h.svc.DayView(ctx, child.ID, h.svc.Today())
	if err != nil {
		return fmt.Errorf("build day view: %w", err)
	}

	text := formatDayView(child.Name, view)
	if user.IsChild() {
		text += "\n\n📸 Send a photo or video with the caption <code>/done KEY</code> to submit proof."
	}
	if err := reply(bot, message, text); err != nil {
		return err
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id":  message.Chat.ID,
		"child_id": child.ID,
		"items":    len(view.Items),
	}).Info("Sent checklist")

	return nil
}
