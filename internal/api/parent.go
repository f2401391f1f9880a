package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/chorebot/internal/models"
	"github.com/Kerhoff/chorebot/internal/report"
	"github.com/Kerhoff/chorebot/internal/service"
)

// ---------------------------------------------------------------------------
// Dashboard
// ---------------------------------------------------------------------------

type childSummary struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	TodayPoints int    `json:"today_points"`
	TodayMax    int    `json:"today_max"`
	WeekTotal   int    `json:"week_total"`
	WeekMax     int    `json:"week_max"`
	Percentage  int    `json:"money_percentage"`
}

func (s *Server) handleChildren(w http.ResponseWriter, r *http.Request) {
	parent, ok := s.requireParent(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	children, err := s.svc.ListChildren(ctx, parent.FamilyID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	today := s.svc.Today()
	summaries := make([]childSummary, 0, len(children))
	for _, child := range children {
		view, err := s.svc.DayView(ctx, child.ID, today)
		if err != nil {
			s.respondServiceError(w, r, err)
			return
		}
		week, err := s.svc.CurrentWeek(ctx, child)
		if err != nil {
			s.respondServiceError(w, r, err)
			return
		}
		summaries = append(summaries, childSummary{
			ID:          child.ID,
			Name:        child.Name,
			TodayPoints: view.Points,
			TodayMax:    view.MaxPoints,
			WeekTotal:   week.Result.Total,
			WeekMax:     week.Result.MaxWeeklyPoints,
			Percentage:  week.Result.MoneyPercentage,
		})
	}
	s.respondJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	_, child, ok := s.familyChild(w, r)
	if !ok {
		return
	}

	view, err := s.svc.DayView(r.Context(), child.ID, s.svc.Today())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	_, child, ok := s.familyChild(w, r)
	if !ok {
		return
	}

	week, err := s.svc.CurrentWeek(r.Context(), child)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, week)
}

// historyWeeks reads the optional weeks query parameter.
func historyWeeks(r *http.Request) int {
	if n, err := strconv.Atoi(r.URL.Query().Get("weeks")); err == nil && n > 0 && n <= 52 {
		return n
	}
	return service.HistoryWeeks
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	_, child, ok := s.familyChild(w, r)
	if !ok {
		return
	}

	weeks, err := s.svc.History(r.Context(), child, historyWeeks(r))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, weeks)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	_, child, ok := s.familyChild(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	current, err := s.svc.CurrentWeek(ctx, child)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	history, err := s.svc.History(ctx, child, historyWeeks(r))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, append([]*report.Week{current}, history...)); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q",
		fmt.Sprintf("report-%d-%s.xlsx", child.ID, current.Start)))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// ---------------------------------------------------------------------------
// Approvals
// ---------------------------------------------------------------------------

func (s *Server) handleApprovals(w http.ResponseWriter, r *http.Request) {
	parent, ok := s.requireParent(w, r)
	if !ok {
		return
	}

	pending, err := s.svc.PendingApprovals(r.Context(), parent)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, pending)
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	parent, ok := s.requireParent(w, r)
	if !ok {
		return
	}

	ref, err := models.ParseApprovalRef(r.PathValue("kind") + ":" + r.PathValue("id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	verdict := models.Verdict(r.PathValue("verdict"))
	if verdict != models.VerdictApprove && verdict != models.VerdictReject {
		s.respondError(w, http.StatusNotFound, "unknown verdict")
		return
	}

	decision, err := s.svc.Approvals.Decide(r.Context(), parent, ref, verdict)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"ref":     decision.Ref,
		"verdict": decision.Verdict,
	})
}

// ---------------------------------------------------------------------------
// Extras
// ---------------------------------------------------------------------------

type createExtraRequest struct {
	ChildID int64  `json:"child_id"`
	Title   string `json:"title"`
	Points  int    `json:"points"`
	Date    string `json:"date"`
}

func (s *Server) handleCreateExtra(w http.ResponseWriter, r *http.Request) {
	parent, ok := s.requireParent(w, r)
	if !ok {
		return
	}

	var req createExtraRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		s.respondError(w, http.StatusBadRequest, "title is required")
		return
	}

	extra, err := s.svc.CreateExtra(r.Context(), parent, req.ChildID, req.Title, req.Points, req.Date)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, extra)
}

// ---------------------------------------------------------------------------
// Checklist management
// ---------------------------------------------------------------------------

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	_, child, ok := s.familyChild(w, r)
	if !ok {
		return
	}

	items, err := s.svc.Catalog.ListAll(r.Context(), child.ID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, items)
}

type taskRequest struct {
	Key     string           `json:"key"`
	Enabled bool             `json:"enabled"`
	Label   string           `json:"label"`
	Group   models.TaskGroup `json:"group"`
}

func (s *Server) handleToggleTask(w http.ResponseWriter, r *http.Request) {
	parent, child, ok := s.familyChild(w, r)
	if !ok {
		return
	}

	var req taskRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	if err := s.svc.Catalog.Toggle(r.Context(), child.ID, req.Key, req.Enabled); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.logger.WithFields(logrus.Fields{
		"parent_id": parent.ID,
		"child_id":  child.ID,
		"task_key":  req.Key,
		"enabled":   req.Enabled,
	}).Info("Checklist item toggled")
	s.respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleAddTask(w http.ResponseWriter, r *http.Request) {
	_, child, ok := s.familyChild(w, r)
	if !ok {
		return
	}

	var req taskRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	if strings.TrimSpace(req.Label) == "" {
		s.respondError(w, http.StatusBadRequest, "label is required")
		return
	}
	if req.Group != "" && !req.Group.Valid() {
		s.respondError(w, http.StatusBadRequest, "unknown group")
		return
	}

	key, err := s.svc.Catalog.AddCustom(r.Context(), child.ID, req.Label, req.Group)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"key": key})
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	_, child, ok := s.familyChild(w, r)
	if !ok {
		return
	}

	var req taskRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	if err := s.svc.Catalog.RemoveCustom(r.Context(), child.ID, req.Key); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleResetTasks(w http.ResponseWriter, r *http.Request) {
	_, child, ok := s.familyChild(w, r)
	if !ok {
		return
	}
	if err := s.svc.Catalog.Reset(r.Context(), child.ID); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ---------------------------------------------------------------------------
// Family
// ---------------------------------------------------------------------------

func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	parent, ok := s.requireParent(w, r)
	if !ok {
		return
	}

	family, err := s.svc.Family(r.Context(), parent)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"invite_code":  family.InviteCode,
		"has_password": family.HasPassword(),
	})
}

func (s *Server) handleResetFamily(w http.ResponseWriter, r *http.Request) {
	parent, ok := s.requireParent(w, r)
	if !ok {
		return
	}

	chatIDs, err := s.svc.ResetFamily(r.Context(), parent)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"ok": true, "removed_members": len(chatIDs)})
}
