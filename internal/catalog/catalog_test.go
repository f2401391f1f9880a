package catalog_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/chorebot/internal/catalog"
	"github.com/Kerhoff/chorebot/internal/models"
	"github.com/Kerhoff/chorebot/internal/repository/sqlstore"
	"github.com/Kerhoff/chorebot/internal/testutil"
)

func newCatalog(t *testing.T) (*catalog.Catalog, *testutil.Family) {
	t.Helper()
	db := testutil.OpenDB(t)
	fam := testutil.SeedFamily(t, db, 100)

	baseline, err := catalog.LoadBaseline("")
	require.NoError(t, err)
	return catalog.New(sqlstore.NewChecklistRepository(db), baseline, testutil.Logger()), fam
}

func TestDefaultBaseline(t *testing.T) {
	items, err := catalog.LoadBaseline("")
	require.NoError(t, err)
	require.Len(t, items, 9)
	assert.Equal(t, "teeth", items[0].Key)
	assert.Equal(t, models.GroupWeekly, items[8].Group)
}

func TestLoadBaselineRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	data := "tasks:\n  - {key: a, label: A, group: morning}\n  - {key: a, label: B, group: evening}\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	_, err := catalog.LoadBaseline(path)
	assert.Error(t, err)
}

func TestEnsureInitializedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	cat, fam := newCatalog(t)
	kid := fam.Kids[0].ID

	require.NoError(t, cat.EnsureInitialized(ctx, kid))
	require.NoError(t, cat.EnsureInitialized(ctx, kid))

	items, err := cat.ListAll(ctx, kid)
	require.NoError(t, err)
	assert.Len(t, items, 9)
	for _, item := range items {
		assert.True(t, item.IsStandard)
		assert.True(t, item.Enabled)
	}
}

func TestToggleHidesItemAndChangesRules(t *testing.T) {
	ctx := context.Background()
	cat, fam := newCatalog(t)
	kid := fam.Kids[0].ID

	rules, err := cat.ActiveRules(ctx, kid)
	require.NoError(t, err)
	assert.Len(t, rules.Daily, 8)
	assert.True(t, rules.HygieneRequired)
	assert.True(t, rules.HasDeepClean)
	assert.Equal(t, 56, rules.MaxWeeklyPoints())

	require.NoError(t, cat.Toggle(ctx, kid, "shower", false))
	require.NoError(t, cat.Toggle(ctx, kid, "room_clean", false))

	enabled, err := cat.ListEnabled(ctx, kid)
	require.NoError(t, err)
	assert.Len(t, enabled, 7)

	rules, err = cat.ActiveRules(ctx, kid)
	require.NoError(t, err)
	assert.False(t, rules.HygieneRequired)
	assert.False(t, rules.HasDeepClean)
	assert.Equal(t, 49, rules.MaxWeeklyPoints())
}

func TestCustomItems(t *testing.T) {
	ctx := context.Background()
	cat, fam := newCatalog(t)
	kid := fam.Kids[1].ID

	key, err := cat.AddCustom(ctx, kid, "  Walk the dog ", "")
	require.NoError(t, err)
	assert.Equal(t, sqlstore.CustomTaskKey(kid, 9), key)

	label, err := cat.Label(ctx, kid, key)
	require.NoError(t, err)
	assert.Equal(t, "Walk the dog", label)

	rules, err := cat.ActiveRules(ctx, kid)
	require.NoError(t, err)
	assert.Contains(t, rules.Daily, key)

	// removing a standard item is a no-op
	require.NoError(t, cat.RemoveCustom(ctx, kid, "teeth"))
	require.NoError(t, cat.RemoveCustom(ctx, kid, key))

	all, err := cat.ListAll(ctx, kid)
	require.NoError(t, err)
	assert.Len(t, all, 9)

	_, err = cat.AddCustom(ctx, kid, " ", "")
	assert.Error(t, err)
}

func TestResetRestoresBaseline(t *testing.T) {
	ctx := context.Background()
	cat, fam := newCatalog(t)
	kid := fam.Kids[0].ID

	_, err := cat.AddCustom(ctx, kid, "Practice piano", models.GroupEvening)
	require.NoError(t, err)
	require.NoError(t, cat.Toggle(ctx, kid, "bed", false))

	require.NoError(t, cat.Reset(ctx, kid))

	items, err := cat.ListEnabled(ctx, kid)
	require.NoError(t, err)
	assert.Len(t, items, 9)

	label, err := cat.Label(ctx, kid, "unknown")
	require.NoError(t, err)
	assert.Equal(t, "unknown", label)
}
