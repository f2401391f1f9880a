package approval

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/chorebot/internal/catalog"
	"github.com/Kerhoff/chorebot/internal/clock"
	"github.com/Kerhoff/chorebot/internal/models"
	"github.com/Kerhoff/chorebot/internal/repository"
	"github.com/Kerhoff/chorebot/internal/repository/sqlstore"
	"github.com/Kerhoff/chorebot/internal/testutil"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) SendText(ctx context.Context, chatID int64, text string) error {
	args := m.Called(ctx, chatID, text)
	return args.Error(0)
}

func (m *mockGateway) SendMedia(ctx context.Context, chatID int64, proof Proof, caption string, decision *models.ApprovalRef) (string, error) {
	args := m.Called(ctx, chatID, proof, caption, decision)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) UpdateMedia(ctx context.Context, chatID int64, messageRef, caption string) error {
	args := m.Called(ctx, chatID, messageRef, caption)
	return args.Error(0)
}

type fixture struct {
	fam    *testutil.Family
	gw     *mockGateway
	coord  *Coordinator
	stores Stores
	cat    *catalog.Catalog
	clock  *clock.FakeClock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	fam := testutil.SeedFamily(t, db, 100)

	baseline, err := catalog.LoadBaseline("")
	require.NoError(t, err)

	stores := Stores{
		Users:       sqlstore.NewUserRepository(db),
		Completions: sqlstore.NewCompletionRepository(db),
		Extras:      sqlstore.NewExtraTaskRepository(db),
		Tracking:    sqlstore.NewApprovalMessageRepository(db),
	}
	cat := catalog.New(sqlstore.NewChecklistRepository(db), baseline, testutil.Logger())
	clk := clock.Fake(time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC))
	gw := &mockGateway{}

	return &fixture{
		fam:    fam,
		gw:     gw,
		coord:  NewCoordinator(stores, cat, gw, clk, testutil.Logger(), opts...),
		stores: stores,
		cat:    cat,
		clock:  clk,
	}
}

func (f *fixture) expectFanOut() {
	f.gw.On("SendMedia", mock.Anything, int64(101), mock.Anything, mock.Anything, mock.Anything).Return("m101", nil)
	f.gw.On("SendMedia", mock.Anything, int64(102), mock.Anything, mock.Anything, mock.Anything).Return("m102", nil)
}

func (f *fixture) tracked(t *testing.T, ref models.ApprovalRef) []*models.ApprovalMessage {
	t.Helper()
	msgs, err := f.stores.Tracking.List(context.Background(), ref)
	require.NoError(t, err)
	return msgs
}

var photo = Proof{Ref: "file-1", Medium: models.MediumPhoto}

func TestSubmitFansOutToEveryParent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.expectFanOut()

	sub, err := f.coord.Submit(ctx, f.fam.Kids[0], TaskTarget{Key: "teeth"}, photo)
	require.NoError(t, err)

	assert.Equal(t, models.ApprovalTask, sub.Ref.Kind)
	assert.Equal(t, "2025-01-06", sub.Date)
	assert.Equal(t, "Brush teeth", sub.Label)
	assert.Equal(t, 2, sub.Delivery.Delivered)
	assert.NoError(t, sub.Delivery.Err)
	assert.Len(t, f.tracked(t, sub.Ref), 2)

	f.gw.AssertCalled(t, "SendMedia", mock.Anything, int64(101), photo, mock.Anything, &sub.Ref)
}

func TestTwoParentsFirstDecisionWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.expectFanOut()
	f.gw.On("UpdateMedia", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.gw.On("SendText", mock.Anything, int64(111), mock.Anything).Return(nil)

	sub, err := f.coord.Submit(ctx, f.fam.Kids[0], TaskTarget{Key: "shower"}, photo)
	require.NoError(t, err)
	require.Len(t, f.tracked(t, sub.Ref), 2)

	decision, err := f.coord.Decide(ctx, f.fam.Parents[0], sub.Ref, models.VerdictApprove)
	require.NoError(t, err)
	assert.Equal(t, 2, decision.Retracted.Delivered)
	assert.Empty(t, f.tracked(t, sub.Ref))

	f.gw.AssertCalled(t, "UpdateMedia", mock.Anything, int64(101), "m101", mock.Anything)
	f.gw.AssertCalled(t, "UpdateMedia", mock.Anything, int64(102), "m102", mock.Anything)
	f.gw.AssertNumberOfCalls(t, "SendText", 1)

	completion, err := f.stores.Completions.GetByID(ctx, sub.Ref.ID)
	require.NoError(t, err)
	assert.True(t, completion.Approved)

	// the second parent acts on a stale message
	_, err = f.coord.Decide(ctx, f.fam.Parents[1], sub.Ref, models.VerdictReject)
	assert.ErrorIs(t, err, models.ErrAlreadyResolved)

	completion, err = f.stores.Completions.GetByID(ctx, sub.Ref.ID)
	require.NoError(t, err)
	assert.True(t, completion.Approved)
}

func TestResubmissionStartsNewRound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.expectFanOut()
	f.gw.On("UpdateMedia", mock.Anything, mock.Anything, mock.Anything, captionReplaced).Return(nil)

	first, err := f.coord.Submit(ctx, f.fam.Kids[0], TaskTarget{Key: "bed"}, photo)
	require.NoError(t, err)

	video := Proof{Ref: "file-2", Medium: models.MediumVideo}
	second, err := f.coord.Submit(ctx, f.fam.Kids[0], TaskTarget{Key: "bed"}, video)
	require.NoError(t, err)
	assert.Equal(t, first.Ref, second.Ref)

	f.gw.AssertNumberOfCalls(t, "UpdateMedia", 2)
	assert.Len(t, f.tracked(t, second.Ref), 2)

	completion, err := f.stores.Completions.GetByID(ctx, second.Ref.ID)
	require.NoError(t, err)
	assert.Equal(t, "file-2", completion.ProofRef)
	assert.Equal(t, models.MediumVideo, completion.Medium)
	assert.False(t, completion.Approved)
}

func TestSubmitToleratesDeliveryFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gw.On("SendMedia", mock.Anything, int64(101), mock.Anything, mock.Anything, mock.Anything).Return("m101", nil)
	f.gw.On("SendMedia", mock.Anything, int64(102), mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("bot was blocked"))

	sub, err := f.coord.Submit(ctx, f.fam.Kids[1], TaskTarget{Key: "tidy"}, photo)
	require.NoError(t, err)
	assert.Equal(t, 1, sub.Delivery.Delivered)
	assert.Equal(t, 1, sub.Delivery.Failed())
	assert.Error(t, sub.Delivery.Err)
	assert.Len(t, f.tracked(t, sub.Ref), 1)
}

func TestSubmitOnApprovedItemIsRefused(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.expectFanOut()
	f.gw.On("UpdateMedia", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.gw.On("SendText", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	sub, err := f.coord.Submit(ctx, f.fam.Kids[0], TaskTarget{Key: "teeth"}, photo)
	require.NoError(t, err)
	_, err = f.coord.Decide(ctx, f.fam.Parents[1], sub.Ref, models.VerdictApprove)
	require.NoError(t, err)

	_, err = f.coord.Submit(ctx, f.fam.Kids[0], TaskTarget{Key: "teeth"}, photo)
	assert.ErrorIs(t, err, models.ErrAlreadyResolved)
}

func TestRejectDeletesCompletion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.expectFanOut()
	f.gw.On("UpdateMedia", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.gw.On("SendText", mock.Anything, int64(111), childVerdictNotice("Make the bed", models.VerdictReject)).Return(nil)

	sub, err := f.coord.Submit(ctx, f.fam.Kids[0], TaskTarget{Key: "bed"}, photo)
	require.NoError(t, err)

	_, err = f.coord.Decide(ctx, f.fam.Parents[0], sub.Ref, models.VerdictReject)
	require.NoError(t, err)

	completion, err := f.stores.Completions.GetByID(ctx, sub.Ref.ID)
	require.NoError(t, err)
	assert.Nil(t, completion)
	assert.Empty(t, f.tracked(t, sub.Ref))

	_, err = f.coord.Decide(ctx, f.fam.Parents[1], sub.Ref, models.VerdictApprove)
	assert.ErrorIs(t, err, models.ErrNotFound)
	f.gw.AssertExpectations(t)
}

func TestExtraTaskReview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.expectFanOut()
	f.gw.On("UpdateMedia", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.gw.On("SendText", mock.Anything, int64(112), mock.Anything).Return(nil)

	extra, err := f.stores.Extras.Create(ctx, &models.ExtraTask{
		FamilyID: f.fam.Family.ID, ChildID: f.fam.Kids[1].ID,
		Title: "Wash the car", Points: 3, Date: "2025-01-06",
	})
	require.NoError(t, err)

	// another child cannot submit it
	_, err = f.coord.Submit(ctx, f.fam.Kids[0], ExtraTarget{ID: extra.ID}, photo)
	assert.ErrorIs(t, err, models.ErrOwnership)

	// nothing to decide before submission
	_, err = f.coord.Decide(ctx, f.fam.Parents[0], models.ApprovalRef{Kind: models.ApprovalExtra, ID: extra.ID}, models.VerdictApprove)
	assert.ErrorIs(t, err, models.ErrAlreadyResolved)

	sub, err := f.coord.Submit(ctx, f.fam.Kids[1], ExtraTarget{ID: extra.ID}, photo)
	require.NoError(t, err)
	assert.Equal(t, 3, sub.Points)
	assert.Len(t, f.tracked(t, sub.Ref), 2)

	_, err = f.coord.Decide(ctx, f.fam.Parents[0], sub.Ref, models.VerdictReject)
	require.NoError(t, err)

	stored, err := f.stores.Extras.GetByID(ctx, extra.ID)
	require.NoError(t, err)
	assert.False(t, stored.Completed, "rejected extras go back to todo")

	sub, err = f.coord.Submit(ctx, f.fam.Kids[1], ExtraTarget{ID: extra.ID}, photo)
	require.NoError(t, err)
	_, err = f.coord.Decide(ctx, f.fam.Parents[1], sub.Ref, models.VerdictApprove)
	require.NoError(t, err)

	stored, err = f.stores.Extras.GetByID(ctx, extra.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsDone())
	assert.Empty(t, f.tracked(t, sub.Ref))
}

func TestRoleAndOwnershipChecks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.expectFanOut()

	_, err := f.coord.Submit(ctx, f.fam.Parents[0], TaskTarget{Key: "teeth"}, photo)
	assert.ErrorIs(t, err, models.ErrNotChild)

	_, err = f.coord.Submit(ctx, f.fam.Kids[0], TaskTarget{Key: "teeth"}, Proof{Ref: "x", Medium: "audio"})
	assert.ErrorIs(t, err, models.ErrInvalidMedium)

	_, err = f.coord.Submit(ctx, f.fam.Kids[0], TaskTarget{Key: "juggling"}, photo)
	assert.ErrorIs(t, err, models.ErrNotFound)

	sub, err := f.coord.Submit(ctx, f.fam.Kids[0], TaskTarget{Key: "teeth"}, photo)
	require.NoError(t, err)

	_, err = f.coord.Decide(ctx, f.fam.Kids[1], sub.Ref, models.VerdictApprove)
	assert.ErrorIs(t, err, models.ErrNotParent)

	stranger := &models.User{ID: 999, Role: models.RoleParent, FamilyID: f.fam.Family.ID + 1}
	_, err = f.coord.Decide(ctx, stranger, sub.Ref, models.VerdictApprove)
	assert.ErrorIs(t, err, models.ErrOwnership)

	// nothing changed
	assert.Len(t, f.tracked(t, sub.Ref), 2)
}

func TestUnmarkPendingWithdrawsMessages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.expectFanOut()
	f.gw.On("UpdateMedia", mock.Anything, mock.Anything, mock.Anything, captionWithdrawn).Return(nil)

	sub, err := f.coord.Submit(ctx, f.fam.Kids[0], TaskTarget{Key: "prep"}, photo)
	require.NoError(t, err)

	require.NoError(t, f.coord.Unmark(ctx, f.fam.Kids[0], TaskTarget{Key: "prep"}))
	f.gw.AssertNumberOfCalls(t, "UpdateMedia", 2)
	assert.Empty(t, f.tracked(t, sub.Ref))

	err = f.coord.Unmark(ctx, f.fam.Kids[0], TaskTarget{Key: "prep"})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUnmarkPolicy(t *testing.T) {
	ctx := context.Background()

	for _, tt := range []struct {
		policy UnmarkPolicy
		want   error
	}{
		{UnmarkAny, nil},
		{UnmarkPendingOnly, models.ErrAlreadyResolved},
	} {
		t.Run(string(tt.policy), func(t *testing.T) {
			f := newFixture(t, WithUnmarkPolicy(tt.policy))
			f.expectFanOut()
			f.gw.On("UpdateMedia", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
			f.gw.On("SendText", mock.Anything, mock.Anything, mock.Anything).Return(nil)

			sub, err := f.coord.Submit(ctx, f.fam.Kids[0], TaskTarget{Key: "laundry"}, photo)
			require.NoError(t, err)
			_, err = f.coord.Decide(ctx, f.fam.Parents[0], sub.Ref, models.VerdictApprove)
			require.NoError(t, err)

			err = f.coord.Unmark(ctx, f.fam.Kids[0], TaskTarget{Key: "laundry"})
			if tt.want == nil {
				require.NoError(t, err)
				c, err := f.stores.Completions.GetByID(ctx, sub.Ref.ID)
				require.NoError(t, err)
				assert.Nil(t, c)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSubmitUsesClockDate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.expectFanOut()

	f.clock.Advance(24 * time.Hour)
	sub, err := f.coord.Submit(ctx, f.fam.Kids[0], TaskTarget{Key: "clothes"}, photo)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-07", sub.Date)
}

func TestDecisionDuringFanOutClearsLateMessages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gw.On("UpdateMedia", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.gw.On("SendText", mock.Anything, int64(111), mock.Anything).Return(nil)

	// the first parent decides before the second parent's send returns
	decided := make(chan struct{})
	var decideErr error
	f.gw.On("SendMedia", mock.Anything, int64(101), mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			defer close(decided)
			ref := args.Get(4).(*models.ApprovalRef)
			_, decideErr = f.coord.Decide(ctx, f.fam.Parents[0], *ref, models.VerdictApprove)
		}).
		Return("m101", nil)
	f.gw.On("SendMedia", mock.Anything, int64(102), mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-decided }).
		Return("m102", nil)

	sub, err := f.coord.Submit(ctx, f.fam.Kids[0], TaskTarget{Key: "teeth"}, photo)
	require.NoError(t, err)
	require.NoError(t, decideErr)
	assert.Equal(t, 2, sub.Delivery.Delivered)

	assert.Empty(t, f.tracked(t, sub.Ref))
	f.gw.AssertCalled(t, "UpdateMedia", mock.Anything, int64(101), "m101", captionResolved)
	f.gw.AssertCalled(t, "UpdateMedia", mock.Anything, int64(102), "m102", captionResolved)

	completion, err := f.stores.Completions.GetByID(ctx, sub.Ref.ID)
	require.NoError(t, err)
	assert.True(t, completion.Approved)
}

func TestConcurrentDecisionsResolveOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.expectFanOut()
	f.gw.On("UpdateMedia", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.gw.On("SendText", mock.Anything, int64(111), mock.Anything).Return(nil)

	for _, key := range []string{"teeth", "bed", "shower", "tidy"} {
		sub, err := f.coord.Submit(ctx, f.fam.Kids[0], TaskTarget{Key: key}, photo)
		require.NoError(t, err)

		var (
			wg    sync.WaitGroup
			start = make(chan struct{})
			errs  = make([]error, 2)
		)
		for i, verdict := range []models.Verdict{models.VerdictApprove, models.VerdictReject} {
			wg.Add(1)
			go func(i int, verdict models.Verdict) {
				defer wg.Done()
				<-start
				_, errs[i] = f.coord.Decide(ctx, f.fam.Parents[i], sub.Ref, verdict)
			}(i, verdict)
		}
		close(start)
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.True(t, errors.Is(err, models.ErrAlreadyResolved) || errors.Is(err, models.ErrNotFound), "unexpected error: %v", err)
		}
		assert.Equal(t, 1, succeeded, key)
		assert.Empty(t, f.tracked(t, sub.Ref), key)
	}
}

// approvingCompletions approves a completion right after it is read, as a
// parent tapping approve at that moment would.
type approvingCompletions struct {
	repository.CompletionRepository
}

func (r approvingCompletions) Get(ctx context.Context, childID int64, key, date string) (*models.Completion, error) {
	completion, err := r.CompletionRepository.Get(ctx, childID, key, date)
	if err != nil || completion == nil {
		return completion, err
	}
	return completion, r.Approve(ctx, completion.ID)
}

type approvingExtras struct {
	repository.ExtraTaskRepository
}

func (r approvingExtras) GetByID(ctx context.Context, id int64) (*models.ExtraTask, error) {
	extra, err := r.ExtraTaskRepository.GetByID(ctx, id)
	if err != nil || extra == nil {
		return extra, err
	}
	return extra, r.Approve(ctx, id)
}

func TestPendingOnlyUnmarkLosesToApproval(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.expectFanOut()

	extra, err := f.stores.Extras.Create(ctx, &models.ExtraTask{
		FamilyID: f.fam.Family.ID, ChildID: f.fam.Kids[0].ID,
		Title: "Wash the car", Points: 3, Date: "2025-01-06",
	})
	require.NoError(t, err)

	task, err := f.coord.Submit(ctx, f.fam.Kids[0], TaskTarget{Key: "bed"}, photo)
	require.NoError(t, err)
	_, err = f.coord.Submit(ctx, f.fam.Kids[0], ExtraTarget{ID: extra.ID}, photo)
	require.NoError(t, err)

	stores := f.stores
	stores.Completions = approvingCompletions{f.stores.Completions}
	stores.Extras = approvingExtras{f.stores.Extras}
	coord := NewCoordinator(stores, f.cat, f.gw, f.clock, testutil.Logger(), WithUnmarkPolicy(UnmarkPendingOnly))

	err = coord.Unmark(ctx, f.fam.Kids[0], TaskTarget{Key: "bed"})
	assert.ErrorIs(t, err, models.ErrAlreadyResolved)
	completion, err := f.stores.Completions.GetByID(ctx, task.Ref.ID)
	require.NoError(t, err)
	require.NotNil(t, completion)
	assert.True(t, completion.Approved)

	err = coord.Unmark(ctx, f.fam.Kids[0], ExtraTarget{ID: extra.ID})
	assert.ErrorIs(t, err, models.ErrAlreadyResolved)
	stored, err := f.stores.Extras.GetByID(ctx, extra.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsDone())

	f.gw.AssertNotCalled(t, "UpdateMedia", mock.Anything, mock.Anything, mock.Anything, captionWithdrawn)
}
