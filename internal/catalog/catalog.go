// Package catalog manages each child's checklist: the standard items every
// child starts with plus the custom items parents add.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/chorebot/internal/models"
	"github.com/Kerhoff/chorebot/internal/repository"
	"github.com/Kerhoff/chorebot/internal/scoring"
)

// Catalog materializes and edits per-child checklists.
type Catalog struct {
	repo     repository.ChecklistRepository
	baseline []Item
	logger   *logrus.Logger
}

// New creates a catalog seeding children with baseline.
func New(repo repository.ChecklistRepository, baseline []Item, logger *logrus.Logger) *Catalog {
	return &Catalog{
		repo:     repo,
		baseline: baseline,
		logger:   logger,
	}
}

func (c *Catalog) baselineRows() []*models.ChecklistItem {
	rows := make([]*models.ChecklistItem, 0, len(c.baseline))
	for i, item := range c.baseline {
		rows = append(rows, &models.ChecklistItem{
			TaskKey:    item.Key,
			Label:      item.Label,
			Group:      item.Group,
			IsStandard: true,
			Enabled:    true,
			SortOrder:  i,
		})
	}
	return rows
}

// EnsureInitialized gives a child with no checklist rows the standard set.
// It is safe to call before every read.
func (c *Catalog) EnsureInitialized(ctx context.Context, childID int64) error {
	inserted, err := c.repo.InsertBaseline(ctx, childID, c.baselineRows())
	if err != nil {
		return err
	}
	if inserted {
		c.logger.WithField("child_id", childID).Info("Checklist initialized")
	}
	return nil
}

// ListEnabled returns the child-facing checklist.
func (c *Catalog) ListEnabled(ctx context.Context, childID int64) ([]*models.ChecklistItem, error) {
	if err := c.EnsureInitialized(ctx, childID); err != nil {
		return nil, err
	}
	return c.repo.List(ctx, childID, true)
}

// ListAll returns every item, disabled ones included, for parents.
func (c *Catalog) ListAll(ctx context.Context, childID int64) ([]*models.ChecklistItem, error) {
	if err := c.EnsureInitialized(ctx, childID); err != nil {
		return nil, err
	}
	return c.repo.List(ctx, childID, false)
}

// Get returns one item, or nil if the child has no such key.
func (c *Catalog) Get(ctx context.Context, childID int64, key string) (*models.ChecklistItem, error) {
	if err := c.EnsureInitialized(ctx, childID); err != nil {
		return nil, err
	}
	return c.repo.Get(ctx, childID, key)
}

// Toggle shows or hides an item. Existing completions are kept.
func (c *Catalog) Toggle(ctx context.Context, childID int64, key string, enabled bool) error {
	if err := c.EnsureInitialized(ctx, childID); err != nil {
		return err
	}
	return c.repo.SetEnabled(ctx, childID, key, enabled)
}

// AddCustom appends a custom item and returns its key. An empty group means
// models.GroupCustom.
func (c *Catalog) AddCustom(ctx context.Context, childID int64, label string, group models.TaskGroup) (string, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", fmt.Errorf("task label is required")
	}
	if group == "" {
		group = models.GroupCustom
	}
	if !group.Valid() {
		return "", fmt.Errorf("unknown task group %q", group)
	}

	if err := c.EnsureInitialized(ctx, childID); err != nil {
		return "", err
	}

	key, err := c.repo.AddCustom(ctx, childID, label, group)
	if err != nil {
		return "", err
	}

	c.logger.WithFields(logrus.Fields{
		"child_id": childID,
		"task_key": key,
	}).Info("Custom task added")
	return key, nil
}

// RemoveCustom deletes a custom item. Standard items are left alone.
func (c *Catalog) RemoveCustom(ctx context.Context, childID int64, key string) error {
	return c.repo.DeleteCustom(ctx, childID, key)
}

// Reset drops every item of the child and restores the standard set.
func (c *Catalog) Reset(ctx context.Context, childID int64) error {
	if err := c.repo.Reset(ctx, childID, c.baselineRows()); err != nil {
		return err
	}
	c.logger.WithField("child_id", childID).Warn("Checklist reset to baseline")
	return nil
}

// Label returns the item's label, or the key itself for unknown items.
func (c *Catalog) Label(ctx context.Context, childID int64, key string) (string, error) {
	item, err := c.Get(ctx, childID, key)
	if err != nil {
		return "", err
	}
	if item == nil {
		return key, nil
	}
	return item.Label, nil
}

// Rules is what scoring needs to know about a child's checklist.
type Rules struct {
	Daily           []string
	HygieneRequired bool
	HasDeepClean    bool
}

// MaxWeeklyPoints is the best week the child can score.
func (r *Rules) MaxWeeklyPoints() int {
	return scoring.MaxWeeklyPoints(len(r.Daily))
}

// ActiveRules derives scoring rules from the enabled items.
func (c *Catalog) ActiveRules(ctx context.Context, childID int64) (*Rules, error) {
	items, err := c.ListEnabled(ctx, childID)
	if err != nil {
		return nil, err
	}

	rules := &Rules{}
	for _, item := range items {
		if item.Group.IsDaily() {
			rules.Daily = append(rules.Daily, item.TaskKey)
		}
		switch item.TaskKey {
		case scoring.HygieneKey:
			rules.HygieneRequired = true
		case scoring.DeepCleanKey:
			rules.HasDeepClean = true
		}
	}
	return rules, nil
}
