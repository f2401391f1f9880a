// Package approval runs the proof review workflow: a child submits proof,
// every parent of the family gets it with approve/reject controls, and the
// first decision resolves the item and clears the controls everywhere.
package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/chorebot/internal/catalog"
	"github.com/Kerhoff/chorebot/internal/clock"
	"github.com/Kerhoff/chorebot/internal/metrics"
	"github.com/Kerhoff/chorebot/internal/models"
	"github.com/Kerhoff/chorebot/internal/repository"
	"github.com/Kerhoff/chorebot/internal/scoring"
)

// Target is what a submission or unmark addresses: a checklist item by key
// or an extra task by ID.
type Target interface {
	isTarget()
}

// TaskTarget addresses a checklist item for today.
type TaskTarget struct {
	Key string
}

// ExtraTarget addresses an extra task.
type ExtraTarget struct {
	ID int64
}

func (TaskTarget) isTarget()  {}
func (ExtraTarget) isTarget() {}

// UnmarkPolicy decides which items a child may take back.
type UnmarkPolicy string

const (
	// UnmarkAny lets a child withdraw pending and approved items alike.
	UnmarkAny UnmarkPolicy = "any"
	// UnmarkPendingOnly refuses to withdraw approved items.
	UnmarkPendingOnly UnmarkPolicy = "pending-only"
)

// Stores groups the repositories the coordinator writes to.
type Stores struct {
	Users       repository.UserRepository
	Completions repository.CompletionRepository
	Extras      repository.ExtraTaskRepository
	Tracking    repository.ApprovalMessageRepository
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMetrics records workflow counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithUnmarkPolicy overrides the default UnmarkAny policy.
func WithUnmarkPolicy(p UnmarkPolicy) Option {
	return func(c *Coordinator) { c.policy = p }
}

// Coordinator moves items between todo, pending and approved and keeps the
// parents' decision messages in sync.
type Coordinator struct {
	stores  Stores
	catalog *catalog.Catalog
	gateway Gateway
	clock   clock.Clock
	metrics *metrics.Metrics
	policy  UnmarkPolicy
	logger  *logrus.Logger
}

// NewCoordinator creates a coordinator.
func NewCoordinator(stores Stores, cat *catalog.Catalog, gateway Gateway, clk clock.Clock, logger *logrus.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		stores:  stores,
		catalog: cat,
		gateway: gateway,
		clock:   clk,
		policy:  UnmarkAny,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DeliveryReport summarizes a round of gateway calls. Failures never undo
// the state change that triggered the round.
type DeliveryReport struct {
	Attempted int
	Delivered int
	Err       error
}

// Failed returns the number of calls that did not go through.
func (r *DeliveryReport) Failed() int {
	return r.Attempted - r.Delivered
}

// Submission is a stored, pending submission.
type Submission struct {
	Ref      models.ApprovalRef
	Date     string
	Label    string
	Points   int
	Delivery *DeliveryReport
}

// Submit stores proof for target as pending and sends it to every parent of
// the child's family.
func (c *Coordinator) Submit(ctx context.Context, child *models.User, target Target, proof Proof) (*Submission, error) {
	if child == nil || !child.IsChild() {
		return nil, models.ErrNotChild
	}
	if !proof.Medium.Valid() || strings.TrimSpace(proof.Ref) == "" {
		return nil, models.ErrInvalidMedium
	}

	today := clock.Today(c.clock)
	sub := &Submission{Date: today}

	switch t := target.(type) {
	case TaskTarget:
		item, err := c.catalog.Get(ctx, child.ID, t.Key)
		if err != nil {
			return nil, err
		}
		if item == nil || !item.Enabled {
			return nil, fmt.Errorf("task %q: %w", t.Key, models.ErrNotFound)
		}

		completion, err := c.stores.Completions.Upsert(ctx, &models.Completion{
			ChildID:  child.ID,
			TaskKey:  item.TaskKey,
			Date:     today,
			ProofRef: proof.Ref,
			Medium:   proof.Medium,
		})
		if err != nil {
			return nil, err
		}
		sub.Ref = models.ApprovalRef{Kind: models.ApprovalTask, ID: completion.ID}
		sub.Label = item.Label
		sub.Points = scoring.PointsPerTask

	case ExtraTarget:
		extra, err := c.ownExtra(ctx, child, t.ID)
		if err != nil {
			return nil, err
		}
		if err := c.stores.Extras.Submit(ctx, extra.ID, proof.Ref, proof.Medium); err != nil {
			return nil, err
		}
		sub.Ref = models.ApprovalRef{Kind: models.ApprovalExtra, ID: extra.ID}
		sub.Label = extra.Title
		sub.Points = extra.Points
		sub.Date = extra.Date

	default:
		return nil, fmt.Errorf("unsupported submission target %T", target)
	}

	log := c.logger.WithFields(logrus.Fields{
		"child_id":      child.ID,
		"approval_kind": sub.Ref.Kind,
		"approval_id":   sub.Ref.ID,
	})

	// A resubmission starts a new review round.
	if _, err := c.Retract(ctx, sub.Ref, captionReplaced); err != nil {
		log.WithError(err).Warn("Failed to retract previous review round")
	}

	parents, err := c.stores.Users.ListByFamily(ctx, child.FamilyID, models.RoleParent)
	if err != nil {
		return nil, fmt.Errorf("failed to load parents: %w", err)
	}

	caption := submissionCaption(child, sub.Label, sub.Points, sub.Date)
	sub.Delivery = c.fanOut(ctx, sub.Ref, parents, proof, caption)

	c.metrics.ObserveSubmission(string(sub.Ref.Kind), sub.Delivery.Delivered)
	log.WithFields(logrus.Fields{
		"parents":   len(parents),
		"delivered": sub.Delivery.Delivered,
	}).Info("Submission sent for review")

	return sub, nil
}

// fanOut sends the proof to each parent concurrently and records a tracking
// row as soon as each message is delivered.
func (c *Coordinator) fanOut(ctx context.Context, ref models.ApprovalRef, parents []*models.User, proof Proof, caption string) *DeliveryReport {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result *multierror.Error
	)
	report := &DeliveryReport{Attempted: len(parents)}

	for _, parent := range parents {
		wg.Add(1)
		go func(chatID int64) {
			defer wg.Done()

			decision := ref
			messageRef, err := c.gateway.SendMedia(ctx, chatID, proof, caption, &decision)
			if err != nil {
				mu.Lock()
				result = multierror.Append(result, fmt.Errorf("parent chat %d: %w", chatID, err))
				mu.Unlock()
				return
			}

			var trackErr error
			if messageRef != "" {
				_, trackErr = c.stores.Tracking.Add(ctx, &models.ApprovalMessage{
					Kind:         ref.Kind,
					ApprovalID:   ref.ID,
					ParentChatID: chatID,
					MessageRef:   messageRef,
				})
			}

			mu.Lock()
			defer mu.Unlock()
			report.Delivered++
			if trackErr != nil {
				result = multierror.Append(result, fmt.Errorf("track message for parent chat %d: %w", chatID, trackErr))
			}
		}(parent.ExternalChatID)
	}
	wg.Wait()

	report.Err = result.ErrorOrNil()
	if report.Err != nil {
		for i := report.Failed(); i > 0; i-- {
			c.metrics.DeliveryFailed("send_media")
		}
		c.logger.WithFields(logrus.Fields{
			"approval_kind": ref.Kind,
			"approval_id":   ref.ID,
		}).WithError(report.Err).Warn("Some parents did not receive the submission")
	}

	if report.Delivered > 0 {
		c.clearIfResolved(ctx, ref)
	}
	return report
}

// clearIfResolved retracts messages that were tracked after the item had
// already been decided or withdrawn during the fan-out.
func (c *Coordinator) clearIfResolved(ctx context.Context, ref models.ApprovalRef) {
	log := c.logger.WithFields(logrus.Fields{
		"approval_kind": ref.Kind,
		"approval_id":   ref.ID,
	})

	pending, err := c.isPending(ctx, ref)
	if err != nil {
		log.WithError(err).Warn("Failed to recheck submission state")
		return
	}
	if pending {
		return
	}

	log.Info("Submission resolved during delivery")
	if _, err := c.Retract(ctx, ref, captionResolved); err != nil {
		log.WithError(err).Warn("Failed to clear late decision messages")
	}
}

func (c *Coordinator) isPending(ctx context.Context, ref models.ApprovalRef) (bool, error) {
	switch ref.Kind {
	case models.ApprovalTask:
		completion, err := c.stores.Completions.GetByID(ctx, ref.ID)
		if err != nil {
			return false, err
		}
		return completion != nil && completion.IsPending(), nil
	case models.ApprovalExtra:
		extra, err := c.stores.Extras.GetByID(ctx, ref.ID)
		if err != nil {
			return false, err
		}
		return extra != nil && extra.IsPending(), nil
	default:
		return false, fmt.Errorf("unknown approval kind %q", ref.Kind)
	}
}

// Retract rewrites every tracked decision message of ref with caption and
// forgets them. Delivery failures end up in the report; the returned error
// is reserved for store failures.
func (c *Coordinator) Retract(ctx context.Context, ref models.ApprovalRef, caption string) (*DeliveryReport, error) {
	messages, err := c.stores.Tracking.List(ctx, ref)
	if err != nil {
		return nil, err
	}

	report := &DeliveryReport{Attempted: len(messages)}
	if len(messages) == 0 {
		return report, nil
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result *multierror.Error
	)
	for _, msg := range messages {
		wg.Add(1)
		go func(msg *models.ApprovalMessage) {
			defer wg.Done()
			err := c.gateway.UpdateMedia(ctx, msg.ParentChatID, msg.MessageRef, caption)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.metrics.DeliveryFailed("update_media")
				result = multierror.Append(result, fmt.Errorf("parent chat %d: %w", msg.ParentChatID, err))
				return
			}
			report.Delivered++
		}(msg)
	}
	wg.Wait()

	report.Err = result.ErrorOrNil()
	if report.Err != nil {
		c.logger.WithFields(logrus.Fields{
			"approval_kind": ref.Kind,
			"approval_id":   ref.ID,
		}).WithError(report.Err).Warn("Failed to update some decision messages")
	}

	ids := make([]int64, len(messages))
	for i, msg := range messages {
		ids[i] = msg.ID
	}
	if _, err := c.stores.Tracking.Delete(ctx, ids...); err != nil {
		return report, err
	}
	return report, nil
}

// Decision is a resolved item.
type Decision struct {
	Ref       models.ApprovalRef
	Verdict   models.Verdict
	Child     *models.User
	Label     string
	Retracted *DeliveryReport
}

// Decide applies a parent's verdict to a pending item, clears the decision
// messages of every parent and tells the child.
func (c *Coordinator) Decide(ctx context.Context, parent *models.User, ref models.ApprovalRef, verdict models.Verdict) (*Decision, error) {
	decision, err := c.decide(ctx, parent, ref, verdict)
	c.metrics.ObserveDecision(string(ref.Kind), string(verdict), outcome(err))
	return decision, err
}

func (c *Coordinator) decide(ctx context.Context, parent *models.User, ref models.ApprovalRef, verdict models.Verdict) (*Decision, error) {
	if parent == nil || !parent.IsParent() {
		return nil, models.ErrNotParent
	}
	if verdict != models.VerdictApprove && verdict != models.VerdictReject {
		return nil, fmt.Errorf("unknown verdict %q", verdict)
	}

	decision := &Decision{Ref: ref, Verdict: verdict}

	switch ref.Kind {
	case models.ApprovalTask:
		completion, err := c.stores.Completions.GetByID(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		if completion == nil {
			return nil, fmt.Errorf("completion %d: %w", ref.ID, models.ErrNotFound)
		}
		child, err := c.familyChild(ctx, parent, completion.ChildID)
		if err != nil {
			return nil, err
		}
		if completion.Approved {
			return nil, fmt.Errorf("completion %d: %w", ref.ID, models.ErrAlreadyResolved)
		}

		if verdict == models.VerdictApprove {
			err = c.stores.Completions.Approve(ctx, ref.ID)
		} else {
			err = c.stores.Completions.Reject(ctx, ref.ID)
		}
		if err != nil {
			return nil, err
		}

		decision.Child = child
		if decision.Label, err = c.catalog.Label(ctx, child.ID, completion.TaskKey); err != nil {
			decision.Label = completion.TaskKey
		}

	case models.ApprovalExtra:
		extra, err := c.stores.Extras.GetByID(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		if extra == nil {
			return nil, fmt.Errorf("extra task %d: %w", ref.ID, models.ErrNotFound)
		}
		if extra.FamilyID != parent.FamilyID {
			return nil, models.ErrOwnership
		}
		child, err := c.familyChild(ctx, parent, extra.ChildID)
		if err != nil {
			return nil, err
		}
		if !extra.IsPending() {
			return nil, fmt.Errorf("extra task %d: %w", ref.ID, models.ErrAlreadyResolved)
		}

		if verdict == models.VerdictApprove {
			err = c.stores.Extras.Approve(ctx, ref.ID)
		} else {
			err = c.stores.Extras.Reject(ctx, ref.ID)
		}
		if err != nil {
			return nil, err
		}

		decision.Child = child
		decision.Label = extra.Title

	default:
		return nil, fmt.Errorf("unknown approval kind %q", ref.Kind)
	}

	log := c.logger.WithFields(logrus.Fields{
		"approval_kind": ref.Kind,
		"approval_id":   ref.ID,
		"parent_id":     parent.ID,
		"verdict":       verdict,
	})
	log.Info("Submission resolved")

	retracted, err := c.Retract(ctx, ref, decisionCaption(parent, decision.Child, decision.Label, verdict))
	if err != nil {
		log.WithError(err).Error("Failed to clear decision messages")
	}
	decision.Retracted = retracted

	if err := c.gateway.SendText(ctx, decision.Child.ExternalChatID, childVerdictNotice(decision.Label, verdict)); err != nil {
		c.metrics.DeliveryFailed("send_text")
		log.WithError(err).WithField("child_chat_id", decision.Child.ExternalChatID).Warn("Failed to notify child")
	}

	return decision, nil
}

// familyChild loads a child and checks it belongs to the parent's family.
func (c *Coordinator) familyChild(ctx context.Context, parent *models.User, childID int64) (*models.User, error) {
	child, err := c.stores.Users.GetByID(ctx, childID)
	if err != nil {
		return nil, err
	}
	if child == nil {
		return nil, fmt.Errorf("child %d: %w", childID, models.ErrNotFound)
	}
	if child.FamilyID != parent.FamilyID {
		return nil, models.ErrOwnership
	}
	return child, nil
}

func (c *Coordinator) ownExtra(ctx context.Context, child *models.User, id int64) (*models.ExtraTask, error) {
	extra, err := c.stores.Extras.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if extra == nil {
		return nil, fmt.Errorf("extra task %d: %w", id, models.ErrNotFound)
	}
	if extra.ChildID != child.ID {
		return nil, models.ErrOwnership
	}
	return extra, nil
}

// Unmark takes back today's completion of a checklist item, or resets an
// extra task to todo. Parents still holding a decision message for it see
// it withdrawn.
func (c *Coordinator) Unmark(ctx context.Context, child *models.User, target Target) error {
	if child == nil || !child.IsChild() {
		return models.ErrNotChild
	}

	var (
		ref     models.ApprovalRef
		pending bool
	)

	switch t := target.(type) {
	case TaskTarget:
		today := clock.Today(c.clock)
		completion, err := c.stores.Completions.Get(ctx, child.ID, t.Key, today)
		if err != nil {
			return err
		}
		if completion == nil {
			return fmt.Errorf("completion %q on %s: %w", t.Key, today, models.ErrNotFound)
		}
		if c.policy == UnmarkPendingOnly {
			if completion.Approved {
				return fmt.Errorf("completion %q: %w", t.Key, models.ErrAlreadyResolved)
			}
			err = c.stores.Completions.DeletePending(ctx, completion.ID)
		} else {
			_, err = c.stores.Completions.Delete(ctx, child.ID, t.Key, today)
		}
		if err != nil {
			return err
		}
		ref = models.ApprovalRef{Kind: models.ApprovalTask, ID: completion.ID}
		pending = completion.IsPending()

	case ExtraTarget:
		extra, err := c.ownExtra(ctx, child, t.ID)
		if err != nil {
			return err
		}
		if !extra.Completed {
			return fmt.Errorf("extra task %d: %w", t.ID, models.ErrNotFound)
		}
		if c.policy == UnmarkPendingOnly {
			if extra.Approved {
				return fmt.Errorf("extra task %d: %w", t.ID, models.ErrAlreadyResolved)
			}
			err = c.stores.Extras.ResetPending(ctx, extra.ID)
		} else {
			err = c.stores.Extras.Reset(ctx, extra.ID)
		}
		if err != nil {
			return err
		}
		ref = models.ApprovalRef{Kind: models.ApprovalExtra, ID: extra.ID}
		pending = extra.IsPending()

	default:
		return fmt.Errorf("unsupported unmark target %T", target)
	}

	c.logger.WithFields(logrus.Fields{
		"child_id":      child.ID,
		"approval_kind": ref.Kind,
		"approval_id":   ref.ID,
		"was_pending":   pending,
	}).Info("Item unmarked")

	if pending {
		if _, err := c.Retract(ctx, ref, captionWithdrawn); err != nil {
			c.logger.WithError(err).Warn("Failed to withdraw decision messages")
		}
	}
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrAlreadyResolved):
		return "already_resolved"
	case models.IsOwnershipViolation(err):
		return "forbidden"
	default:
		return "error"
	}
}
