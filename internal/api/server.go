package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/chorebot/internal/models"
	"github.com/Kerhoff/chorebot/internal/service"
	"github.com/Kerhoff/chorebot/internal/storage"
)

const (
	maxUploadBytes = 50 << 20

	// DefaultInitDataMaxAge bounds how old Mini App launch parameters may be.
	DefaultInitDataMaxAge = 24 * time.Hour
)

// Server provides the HTTP API used by the Telegram Mini App.
type Server struct {
	svc            *service.Service
	proofs         storage.Storage
	botToken       string
	initDataMaxAge time.Duration
	logger         *logrus.Logger
	mux            *http.ServeMux
}

// NewServer creates a Server, registers all routes, and returns it.
func NewServer(svc *service.Service, proofs storage.Storage, botToken string, logger *logrus.Logger) *Server {
	s := &Server{
		svc:            svc,
		proofs:         proofs,
		botToken:       botToken,
		initDataMaxAge: DefaultInitDataMaxAge,
		logger:         logger,
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s
}

// Handler returns the http.Handler that can be passed to http.Server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ---------------------------------------------------------------------------
// Routes
// ---------------------------------------------------------------------------

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("GET /api/me", s.authenticate(s.handleMe))
	s.mux.HandleFunc("GET /api/media/{ref...}", s.authenticate(s.handleMedia))

	// API – Child
	s.mux.HandleFunc("GET /api/checklist", s.authenticate(s.handleChecklist))
	s.mux.HandleFunc("POST /api/checklist/{key}/complete", s.authenticate(s.handleCompleteTask))
	s.mux.HandleFunc("POST /api/checklist/{key}/uncomplete", s.authenticate(s.handleUncompleteTask))
	s.mux.HandleFunc("POST /api/extras/{id}/complete", s.authenticate(s.handleCompleteExtra))
	s.mux.HandleFunc("POST /api/extras/{id}/uncomplete", s.authenticate(s.handleUncompleteExtra))

	// API – Parent
	s.mux.HandleFunc("GET /api/children", s.authenticate(s.handleChildren))
	s.mux.HandleFunc("GET /api/today/{child_id}", s.authenticate(s.handleToday))
	s.mux.HandleFunc("GET /api/report/{child_id}", s.authenticate(s.handleReport))
	s.mux.HandleFunc("GET /api/report/{child_id}/export", s.authenticate(s.handleExport))
	s.mux.HandleFunc("GET /api/history/{child_id}", s.authenticate(s.handleHistory))
	s.mux.HandleFunc("GET /api/approvals", s.authenticate(s.handleApprovals))
	s.mux.HandleFunc("POST /api/approvals/{kind}/{id}/{verdict}", s.authenticate(s.handleDecision))
	s.mux.HandleFunc("POST /api/extras", s.authenticate(s.handleCreateExtra))
	s.mux.HandleFunc("GET /api/tasks/{child_id}", s.authenticate(s.handleTasks))
	s.mux.HandleFunc("POST /api/tasks/{child_id}/toggle", s.authenticate(s.handleToggleTask))
	s.mux.HandleFunc("POST /api/tasks/{child_id}/add", s.authenticate(s.handleAddTask))
	s.mux.HandleFunc("POST /api/tasks/{child_id}/delete", s.authenticate(s.handleDeleteTask))
	s.mux.HandleFunc("POST /api/tasks/{child_id}/reset", s.authenticate(s.handleResetTasks))
	s.mux.HandleFunc("GET /api/invite", s.authenticate(s.handleInvite))
	s.mux.HandleFunc("POST /api/family/reset", s.authenticate(s.handleResetFamily))
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps domain errors to HTTP statuses. Anything unknown
// is logged and reported as a 500.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, models.ErrAlreadyResolved):
		s.respondError(w, http.StatusConflict, "already resolved")
	case models.IsOwnershipViolation(err):
		s.respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, models.ErrInvalidMedium), errors.Is(err, models.ErrInvalidDate):
		s.respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"error":  err,
		}).Error("request failed")
		s.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads the request body into dst and returns an error message on
// failure.  The caller should return immediately when ok == false.
func (s *Server) decodeJSON(r *http.Request, dst any) (ok bool, errMsg string) {
	if r.Body == nil {
		return false, "request body is empty"
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return false, fmt.Sprintf("invalid JSON: %v", err)
	}
	return true, ""
}

// pathID extracts a numeric path value.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	if raw == "" {
		return 0, fmt.Errorf("missing %s in path", name)
	}
	return strconv.ParseInt(raw, 10, 64)
}

// requireChild returns the caller when it is a child.
func (s *Server) requireChild(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user := userFromContext(r.Context())
	if user == nil || !user.IsChild() {
		s.respondError(w, http.StatusForbidden, models.ErrNotChild.Error())
		return nil, false
	}
	return user, true
}

// requireParent returns the caller when it is a parent.
func (s *Server) requireParent(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user := userFromContext(r.Context())
	if user == nil || !user.IsParent() {
		s.respondError(w, http.StatusForbidden, models.ErrNotParent.Error())
		return nil, false
	}
	return user, true
}

// familyChild resolves {child_id} to a child of the calling parent.
func (s *Server) familyChild(w http.ResponseWriter, r *http.Request) (*models.User, *models.User, bool) {
	parent, ok := s.requireParent(w, r)
	if !ok {
		return nil, nil, false
	}
	childID, err := pathID(r, "child_id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid child id")
		return nil, nil, false
	}
	child, err := s.svc.FamilyChild(r.Context(), parent, childID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return nil, nil, false
	}
	return parent, child, true
}

// ---------------------------------------------------------------------------
// Common
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, userFromContext(r.Context()))
}

// handleMedia streams proof kept in our own storage. Telegram file ids are
// not served.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("ref")
	if s.proofs == nil || !s.proofs.Owns(ref) {
		s.respondError(w, http.StatusNotFound, "not found")
		return
	}

	rc, err := s.proofs.Open(r.Context(), ref)
	if err != nil {
		if errors.Is(err, storage.ErrUnknownRef) || errors.Is(err, fs.ErrNotExist) {
			s.respondError(w, http.StatusNotFound, "not found")
			return
		}
		s.respondServiceError(w, r, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(ref))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.WithError(err).Warn("failed to stream media")
	}
}
