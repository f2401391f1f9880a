package handlers

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/chorebot/internal/models"
	"github.com/Kerhoff/chorebot/internal/service"
)

// ---------------------------------------------------------------------------
// TasksHandler – /tasks [child]
// ---------------------------------------------------------------------------

// TasksHandler lists a child's checklist items. Parents without an argument
// get the family's children with their ids.
type TasksHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewTasksHandler creates a new TasksHandler.
func NewTasksHandler(svc *service.Service, logger *logrus.Logger) *TasksHandler {
	return &TasksHandler{svc: svc, logger: logger}
}

// Handle processes the /tasks command.
func (h *TasksHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()

	user, err := registeredUser(ctx, h.svc, bot, message)
	if err != nil || user == nil {
		return err
	}

	child := user
	if user.IsParent() {
		if len(args) == 0 {
			return h.listChildren(ctx, bot, message, user)
		}
		if child, err = childArg(ctx, h.svc, user, args); err != nil {
			return replyError(bot, message, err)
		}
	}

	items, err := h.svc.Catalog.ListAll(ctx, child.ID)
	if err != nil {
		return fmt.Errorf("list checklist: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🗂 <b>Checklist of %s</b>\n\n", html.EscapeString(child.Name))
	for _, item := range items {
		mark := "✅"
		if !item.Enabled {
			mark = "🚫"
		}
		fmt.Fprintf(&sb, "%s <code>%s</code> %s (%s)", mark,
			html.EscapeString(item.TaskKey), html.EscapeString(item.Label), item.Group)
		if !item.IsStandard {
			sb.WriteString(" ✏️")
		}
		sb.WriteString("\n")
	}
	return reply(bot, message, sb.String())
}

func (h *TasksHandler) listChildren(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message, parent *models.User) error {
	children, err := h.svc.ListChildren(ctx, parent.FamilyID)
	if err != nil {
		return fmt.Errorf("list children: %w", err)
	}
	if len(children) == 0 {
		return reply(bot, message, "👶 No children in the family yet.")
	}

	var sb strings.Builder
	sb.WriteString("👨‍👩‍👧 <b>Children</b>\n\n")
	for _, child := range children {
		fmt.Fprintf(&sb, "<code>%d</code> %s\n", child.ID, html.EscapeString(child.Name))
	}
	sb.WriteString("\nSee a checklist with <code>/tasks ID</code>.")
	return reply(bot, message, sb.String())
}

// ---------------------------------------------------------------------------
// TaskHandler – /task CHILD on|off|add|remove|reset ...
// ---------------------------------------------------------------------------

// TaskHandler lets parents customize a child's checklist.
type TaskHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(svc *service.Service, logger *logrus.Logger) *TaskHandler {
	return &TaskHandler{svc: svc, logger: logger}
}

const taskUsage = "❌ Usage:\n" +
	"<code>/task CHILD on KEY</code>\n" +
	"<code>/task CHILD off KEY</code>\n" +
	"<code>/task CHILD add GROUP LABEL</code>\n" +
	"<code>/task CHILD remove KEY</code>\n" +
	"<code>/task CHILD reset</code>"

// Handle processes the /task command.
func (h *TaskHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	if len(args) < 2 {
		return reply(bot, message, taskUsage)
	}

	ctx := context.Background()

	user, err := registeredUser(ctx, h.svc, bot, message)
	if err != nil || user == nil {
		return err
	}
	if !user.IsParent() {
		return replyError(bot, message, models.ErrNotParent)
	}

	childID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return reply(bot, message, taskUsage)
	}
	child, err := h.svc.FamilyChild(ctx, user, childID)
	if err != nil {
		return replyError(bot, message, err)
	}

	action, rest := strings.ToLower(args[1]), args[2:]
	var done string

	switch {
	case (action == "on" || action == "off") && len(rest) == 1:
		key := strings.ToLower(rest[0])
		if err := h.svc.Catalog.Toggle(ctx, child.ID, key, action == "on"); err != nil {
			return replyError(bot, message, err)
		}
		done = fmt.Sprintf("Task <code>%s</code> turned %s.", html.EscapeString(key), action)

	case action == "add" && len(rest) >= 2:
		group := models.TaskGroup(strings.ToLower(rest[0]))
		if !group.Valid() {
			return reply(bot, message, "❌ Group must be morning, evening, weekly or custom.")
		}
		key, err := h.svc.Catalog.AddCustom(ctx, child.ID, strings.Join(rest[1:], " "), group)
		if err != nil {
			return replyError(bot, message, err)
		}
		done = fmt.Sprintf("Task added with key <code>%s</code>.", html.EscapeString(key))

	case action == "remove" && len(rest) == 1:
		if err := h.svc.Catalog.RemoveCustom(ctx, child.ID, rest[0]); err != nil {
			return replyError(bot, message, err)
		}
		done = fmt.Sprintf("Task <code>%s</code> removed.", html.EscapeString(rest[0]))

	case action == "reset" && len(rest) == 0:
		if err := h.svc.Catalog.Reset(ctx, child.ID); err != nil {
			return err
		}
		done = "Checklist restored to the standard tasks."

	default:
		return reply(bot, message, taskUsage)
	}

	h.logger.WithFields(logrus.Fields{
		"parent_id": user.ID,
		"child_id":  child.ID,
		"action":    action,
	}).Info("Checklist changed")

	return reply(bot, message, fmt.Sprintf("🗂 %s (%s)", done, html.EscapeString(child.Name)))
}
