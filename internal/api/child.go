package api

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/chorebot/internal/approval"
	"github.com/Kerhoff/chorebot/internal/models"
)

// ---------------------------------------------------------------------------
// Child checklist
// ---------------------------------------------------------------------------

func (s *Server) handleChecklist(w http.ResponseWriter, r *http.Request) {
	child, ok := s.requireChild(w, r)
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

type submissionResponse struct {
	Ref       models.ApprovalRef `json:"ref"`
	Status    string             `json:"status"`
	Date      string             `json:"date"`
	Delivered int                `json:"delivered"`
	Attempted int                `json:"attempted"`
}

// mediumFromContentType classifies an uploaded part. Anything that is not a
// video is stored as a photo.
func mediumFromContentType(contentType string) models.Medium {
	if strings.HasPrefix(contentType, "video/") {
		return models.MediumVideo
	}
	return models.MediumPhoto
}

// saveUpload stores the multipart "file" field and returns the proof.
func (s *Server) saveUpload(w http.ResponseWriter, r *http.Request) (approval.Proof, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "no file uploaded")
		return approval.Proof{}, false
	}
	defer file.Close()

	medium := mediumFromContentType(header.Header.Get("Content-Type"))
	ref, err := s.proofs.Save(r.Context(), file, medium)
	if err != nil {
		s.logger.WithError(err).Error("failed to store proof")
		s.respondError(w, http.StatusInternalServerError, "failed to store proof")
		return approval.Proof{}, false
	}
	return approval.Proof{Ref: ref, Medium: medium}, true
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request, child *models.User, target approval.Target) {
	proof, ok := s.saveUpload(w, r)
	if !ok {
		return
	}

	sub, err := s.svc.Approvals.Submit(r.Context(), child, target, proof)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.logger.WithFields(logrus.Fields{
		"child_id":      child.ID,
		"approval_kind": sub.Ref.Kind,
		"approval_id":   sub.Ref.ID,
		"proof_ref":     proof.Ref,
	}).Info("Proof uploaded")

	s.respondJSON(w, http.StatusOK, submissionResponse{
		Ref:       sub.Ref,
		Status:    "pending",
		Date:      sub.Date,
		Delivered: sub.Delivery.Delivered,
		Attempted: sub.Delivery.Attempted,
	})
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	child, ok := s.requireChild(w, r)
	if !ok {
		return
	}

	key := r.PathValue("key")
	item, err := s.svc.Catalog.Get(r.Context(), child.ID, key)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	if item == nil || !item.Enabled {
		s.respondError(w, http.StatusBadRequest, "invalid task")
		return
	}
	s.submit(w, r, child, approval.TaskTarget{Key: key})
}

func (s *Server) handleUncompleteTask(w http.ResponseWriter, r *http.Request) {
	child, ok := s.requireChild(w, r)
	if !ok {
		return
	}
	if err := s.svc.Approvals.Unmark(r.Context(), child, approval.TaskTarget{Key: r.PathValue("key")}); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleCompleteExtra(w http.ResponseWriter, r *http.Request) {
	child, ok := s.requireChild(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid extra task id")
		return
	}
	s.submit(w, r, child, approval.ExtraTarget{ID: id})
}

func (s *Server) handleUncompleteExtra(w http.ResponseWriter, r *http.Request) {
	child, ok := s.requireChild(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid extra task id")
		return
	}
	if err := s.svc.Approvals.Unmark(r.Context(), child, approval.ExtraTarget{ID: id}); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
