package handlers

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/chorebot/internal/report"
	"github.com/Kerhoff/chorebot/internal/service"
)

// ---------------------------------------------------------------------------
// ReportHandler – /report [child]
// ---------------------------------------------------------------------------

// ReportHandler shows the score of the week in progress. Children see their
// own; parents see one child or the whole family.
type ReportHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(svc *service.Service, logger *logrus.Logger) *ReportHandler {
	return &ReportHandler{svc: svc, logger: logger}
}

// Handle processes the /report command.
func (h *ReportHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()

	user, err := registeredUser(ctx, h.svc, bot, message)
	if err != nil || user == nil {
		return err
	}

	var weeks []*report.Week
	switch {
	case user.IsChild():
		week, err := h.svc.CurrentWeek(ctx, user)
		if err != nil {
			return fmt.Errorf("score week: %w", err)
		}
		weeks = append(weeks, week)
	case len(args) > 0:
		child, err := childArg(ctx, h.svc, user, args)
		if err != nil {
			return replyError(bot, message, err)
		}
		week, err := h.svc.CurrentWeek(ctx, child)
		if err != nil {
			return fmt.Errorf("score week: %w", err)
		}
		weeks = append(weeks, week)
	default:
		if weeks, err = h.svc.FamilyWeek(ctx, user); err != nil {
			return replyError(bot, message, err)
		}
	}

	if len(weeks) == 0 {
		return reply(bot, message, "👶 No children in the family yet.")
	}

	parts := make([]string, 0, len(weeks))
	for _, week := range weeks {
		parts = append(parts, report.FormatWeek(week))
	}
	if err := reply(bot, message, strings.Join(parts, "\n\n")); err != nil {
		return err
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id":  message.Chat.ID,
		"children": len(weeks),
	}).Info("Sent weekly report")

	return nil
}

// ---------------------------------------------------------------------------
// HistoryHandler – /history [child] [weeks]
// ---------------------------------------------------------------------------

// HistoryHandler shows past weeks.
type HistoryHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(svc *service.Service, logger *logrus.Logger) *HistoryHandler {
	return &HistoryHandler{svc: svc, logger: logger}
}

// Handle processes the /history command.
func (h *HistoryHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
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
		if len(args) > 0 {
			args = args[1:]
		}
	}

	count := service.HistoryWeeks
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 && n <= 12 {
			count = n
		}
	}

	weeks, err := h.svc.History(ctx, child, count)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	return reply(bot, message, report.FormatHistory(child.Name, weeks))
}

// ---------------------------------------------------------------------------
// ExportHandler – /export [child]
// ---------------------------------------------------------------------------

// ExportHandler sends the current week and history as a spreadsheet.
type ExportHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(svc *service.Service, logger *logrus.Logger) *ExportHandler {
	return &ExportHandler{svc: svc, logger: logger}
}

// Handle processes the /export command.
func (h *ExportHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	ctx := context.Background()

	user, err := registeredUser(ctx, h.svc, bot, message)
	if err != nil || user == nil {
		return err
	}
	if !user.IsParent() {
		return reply(bot, message, "⛔ Only parents can export reports.")
	}

	child, err := childArg(ctx, h.svc, user, args)
	if err != nil {
		return replyError(bot, message, err)
	}

	current, err := h.svc.CurrentWeek(ctx, child)
	if err != nil {
		return fmt.Errorf("score week: %w", err)
	}
	history, err := h.svc.History(ctx, child, service.HistoryWeeks)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, append([]*report.Week{current}, history...)); err != nil {
		return fmt.Errorf("write spreadsheet: %w", err)
	}

	doc := tgbotapi.NewDocument(message.Chat.ID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("report-%s-%s.xlsx", strings.ToLower(child.Name), current.Start),
		Bytes: buf.Bytes(),
	})
	if _, err := bot.Send(doc); err != nil {
		return fmt.Errorf("failed to send spreadsheet: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id":  message.Chat.ID,
		"child_id": child.ID,
		"bytes":    buf.Len(),
	}).Info("Exported report")

	return nil
}
