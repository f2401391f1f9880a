package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/chorebot/internal/approval"
	"github.com/Kerhoff/chorebot/internal/catalog"
	"github.com/Kerhoff/chorebot/internal/clock"
	"github.com/Kerhoff/chorebot/internal/models"
	"github.com/Kerhoff/chorebot/internal/repository"
)

const (
	inviteCodeLength   = 6
	inviteCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	inviteCodeAttempts = 5

	// HistoryWeeks is how many past weeks History returns by default.
	HistoryWeeks = 4
)

// Service is the central business logic layer that holds all repositories
// and provides high-level methods for both front-ends.
type Service struct {
	logger      *logrus.Logger
	clock       clock.Clock
	notifier    approval.Gateway
	Families    repository.FamilyRepository
	Users       repository.UserRepository
	Completions repository.CompletionRepository
	Extras      repository.ExtraTaskRepository
	Catalog     *catalog.Catalog
	Approvals   *approval.Coordinator
}

// New creates a new Service with all required dependencies.
func New(logger *logrus.Logger, clk clock.Clock, notifier approval.Gateway,
	families repository.FamilyRepository,
	users repository.UserRepository,
	completions repository.CompletionRepository,
	extras repository.ExtraTaskRepository,
	cat *catalog.Catalog,
	approvals *approval.Coordinator,
) *Service {
	return &Service{
		logger: logger, clock: clk, notifier: notifier,
		Families: families, Users: users, Completions: completions, Extras: extras,
		Catalog: cat, Approvals: approvals,
	}
}

// Today returns the current calendar day in the household timezone.
func (s *Service) Today() string {
	return clock.Today(s.clock)
}

func newInviteCode() (string, error) {
	buf := make([]byte, inviteCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = inviteCodeAlphabet[int(b)%len(inviteCodeAlphabet)]
	}
	return string(buf), nil
}

// CreateFamily creates a family with a fresh invite code.
func (s *Service) CreateFamily(ctx context.Context, password string) (*models.Family, error) {
	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		code, err := newInviteCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate invite code: %w", err)
		}

		existing, err := s.Families.GetByInviteCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			continue
		}

		family, err := s.Families.Create(ctx, &models.Family{
			InviteCode:     code,
			ParentPassword: strings.TrimSpace(password),
		})
		if err != nil {
			return nil, err
		}
		s.logger.WithField("family_id", family.ID).Info("Created new family")
		return family, nil
	}
	return nil, fmt.Errorf("failed to allocate a unique invite code")
}

// StartFamily creates a family and registers chatID as its first parent.
func (s *Service) StartFamily(ctx context.Context, chatID int64, name, password string) (*models.Family, *models.User, error) {
	existing, err := s.Users.GetByChatID(ctx, chatID)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return nil, nil, models.ErrAlreadyRegistered
	}

	family, err := s.CreateFamily(ctx, password)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.Register(ctx, chatID, family.InviteCode, models.RoleParent, name, password)
	if err != nil {
		return nil, nil, err
	}
	return family, user, nil
}

// Register adds chatID to the family behind inviteCode. Parents must supply
// the family password when one is set.
func (s *Service) Register(ctx context.Context, chatID int64, inviteCode string, role models.Role, name, password string) (*models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	existing, err := s.Users.GetByChatID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup user (chat_id=%d): %w", chatID, err)
	}
	if existing != nil {
		return nil, models.ErrAlreadyRegistered
	}

	family, err := s.Families.GetByInviteCode(ctx, strings.ToUpper(strings.TrimSpace(inviteCode)))
	if err != nil {
		return nil, err
	}
	if family == nil {
		return nil, fmt.Errorf("invite code %q: %w", inviteCode, models.ErrNotFound)
	}
	if role == models.RoleParent && family.HasPassword() &&
		subtle.ConstantTimeCompare([]byte(family.ParentPassword), []byte(password)) != 1 {
		return nil, models.ErrWrongPassword
	}

	user, err := s.Users.Create(ctx, &models.User{
		ExternalChatID: chatID,
		Role:           role,
		FamilyID:       family.ID,
		Name:           name,
	})
	if err != nil {
		return nil, err
	}

	if user.IsChild() {
		if err := s.Catalog.EnsureInitialized(ctx, user.ID); err != nil {
			return nil, err
		}
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":   user.ID,
		"family_id": family.ID,
		"role":      role,
	}).Info("Registered family member")
	return user, nil
}

// UserByChatID returns the registered user, or nil.
func (s *Service) UserByChatID(ctx context.Context, chatID int64) (*models.User, error) {
	return s.Users.GetByChatID(ctx, chatID)
}

// ListParents returns the parents of a family.
func (s *Service) ListParents(ctx context.Context, familyID int64) ([]*models.User, error) {
	return s.Users.ListByFamily(ctx, familyID, models.RoleParent)
}

// ListChildren returns the children of a family.
func (s *Service) ListChildren(ctx context.Context, familyID int64) ([]*models.User, error) {
	return s.Users.ListByFamily(ctx, familyID, models.RoleChild)
}

// Family returns the caller's family.
func (s *Service) Family(ctx context.Context, user *models.User) (*models.Family, error) {
	family, err := s.Families.GetByID(ctx, user.FamilyID)
	if err != nil {
		return nil, err
	}
	if family == nil {
		return nil, fmt.Errorf("family %d: %w", user.FamilyID, models.ErrNotFound)
	}
	return family, nil
}

// FamilyChild loads a child of the parent's family.
func (s *Service) FamilyChild(ctx context.Context, parent *models.User, childID int64) (*models.User, error) {
	if !parent.IsParent() {
		return nil, models.ErrNotParent
	}
	child, err := s.Users.GetByID(ctx, childID)
	if err != nil {
		return nil, err
	}
	if child == nil || !child.IsChild() {
		return nil, fmt.Errorf("child %d: %w", childID, models.ErrNotFound)
	}
	if child.FamilyID != parent.FamilyID {
		return nil, models.ErrOwnership
	}
	return child, nil
}

// SetPassword changes the password parents need to join.
func (s *Service) SetPassword(ctx context.Context, parent *models.User, password string) error {
	if !parent.IsParent() {
		return models.ErrNotParent
	}
	return s.Families.SetPassword(ctx, parent.FamilyID, strings.TrimSpace(password))
}

// ResetFamily deletes the parent's family with all its members and history.
// It returns the chat identities of the former members.
func (s *Service) ResetFamily(ctx context.Context, parent *models.User) ([]int64, error) {
	if !parent.IsParent() {
		return nil, models.ErrNotParent
	}
	chatIDs, err := s.Families.Delete(ctx, parent.FamilyID)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"family_id": parent.FamilyID,
		"members":   len(chatIDs),
	}).Warn("Family reset")
	return chatIDs, nil
}

// CreateExtra assigns a bonus task to a child of the parent's family and
// tells the child about it. An empty date means today.
func (s *Service) CreateExtra(ctx context.Context, parent *models.User, childID int64, title string, points int, date string) (*models.ExtraTask, error) {
	child, err := s.FamilyChild(ctx, parent, childID)
	if err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("extra task title is required")
	}
	if points < 1 {
		points = 1
	}
	if date == "" {
		date = s.Today()
	} else if _, err := time.Parse(models.DateLayout, date); err != nil {
		return nil, fmt.Errorf("extra task date %q: %w", date, models.ErrInvalidDate)
	}

	extra, err := s.Extras.Create(ctx, &models.ExtraTask{
		FamilyID: parent.FamilyID,
		ChildID:  child.ID,
		Title:    title,
		Points:   points,
		Date:     date,
	})
	if err != nil {
		return nil, err
	}

	text := fmt.Sprintf("⭐ New extra task: %s (+%d)\nSend a photo or video with the caption /extra %d when it's done.",
		html.EscapeString(title), points, extra.ID)
	if err := s.notifier.SendText(ctx, child.ExternalChatID, text); err != nil {
		s.logger.WithError(err).WithField("child_id", child.ID).Warn("Failed to notify child about extra task")
	}
	return extra, nil
}

// ListExtrasForDate returns the child's extra tasks for date.
func (s *Service) ListExtrasForDate(ctx context.Context, childID int64, date string) ([]*models.ExtraTask, error) {
	return s.Extras.ListForDate(ctx, childID, date)
}

// ExtraPointsForRange returns approved extra points per day.
func (s *Service) ExtraPointsForRange(ctx context.Context, childID int64, start, end string) (map[string]int, error) {
	return s.Extras.PointsForRange(ctx, childID, start, end)
}

// PendingApprovals lists everything in the parent's family that awaits a
// decision, oldest first.
func (s *Service) PendingApprovals(ctx context.Context, parent *models.User) ([]*models.PendingApproval, error) {
	if !parent.IsParent() {
		return nil, models.ErrNotParent
	}

	tasks, err := s.Completions.PendingForFamily(ctx, parent.FamilyID)
	if err != nil {
		return nil, err
	}
	extras, err := s.Extras.PendingForFamily(ctx, parent.FamilyID)
	if err != nil {
		return nil, err
	}

	pending := append(tasks, extras...)
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].Date < pending[j].Date
	})
	return pending, nil
}
