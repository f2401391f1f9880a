package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/chorebot/internal/models"
	"github.com/Kerhoff/chorebot/internal/report"
)

// DigestSchedule is when the weekly digest goes out, in household time.
type DigestSchedule struct {
	Weekday time.Weekday
	Hour    int
}

// StartDigestScheduler runs a background loop that sends every parent the
// current week's report of each child once per week at the scheduled hour.
// It blocks until the context is cancelled, so it should be launched in a
// separate goroutine.
func (s *Service) StartDigestScheduler(ctx context.Context, schedule DigestSchedule) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	s.logger.WithFields(logrus.Fields{
		"weekday": schedule.Weekday,
		"hour":    schedule.Hour,
	}).Info("Digest scheduler started")

	var lastSent string
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Digest scheduler stopped")
			return
		case <-ticker.C:
			lastSent = s.maybeSendDigest(ctx, schedule, lastSent)
		}
	}
}

// maybeSendDigest sends the digest when the schedule is due and it has not
// gone out today yet. It returns the day of the latest digest.
func (s *Service) maybeSendDigest(ctx context.Context, schedule DigestSchedule, lastSent string) string {
	now := s.clock.Now()
	today := models.FormatDate(now)
	if now.Weekday() != schedule.Weekday || now.Hour() != schedule.Hour || lastSent == today {
		return lastSent
	}

	s.SendWeeklyDigest(ctx)
	return today
}

// SendWeeklyDigest sends each family's parents the current week of every
// child.
func (s *Service) SendWeeklyDigest(ctx context.Context) {
	families, err := s.Families.List(ctx)
	if err != nil {
		s.logger.Errorf("Failed to list families for digest: %v", err)
		return
	}

	for _, family := range families {
		parents, err := s.ListParents(ctx, family.ID)
		if err != nil {
			s.logger.Errorf("Failed to list parents of family %d: %v", family.ID, err)
			continue
		}
		children, err := s.ListChildren(ctx, family.ID)
		if err != nil {
			s.logger.Errorf("Failed to list children of family %d: %v", family.ID, err)
			continue
		}

		for _, child := range children {
			week, err := s.CurrentWeek(ctx, child)
			if err != nil {
				s.logger.Errorf("Failed to build week report for child %d: %v", child.ID, err)
				continue
			}
			text := report.FormatWeek(week)
			for _, parent := range parents {
				if err := s.notifier.SendText(ctx, parent.ExternalChatID, text); err != nil {
					s.logger.Warnf("Failed to send digest to chat %d: %v", parent.ExternalChatID, err)
				}
			}
		}
	}
}
