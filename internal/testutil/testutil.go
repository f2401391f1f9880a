// Package testutil opens throwaway databases for package tests.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/chorebot/internal/config"
	"github.com/Kerhoff/chorebot/internal/models"
	"github.com/Kerhoff/chorebot/internal/repository/sqlstore"
)

// Logger returns a logger that discards everything.
func Logger() *logrus.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

// OpenDB opens a migrated SQLite database in a temporary directory.
func OpenDB(t *testing.T) *config.Database {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := config.NewDatabase("sqlite://"+path, Logger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate())
	return db
}

// Family is a seeded family with two parents and two children.
type Family struct {
	Family  *models.Family
	Parents []*models.User
	Kids    []*models.User
}

// SeedFamily creates a family with two parents (chat IDs chatBase+1, +2) and
// two children (chatBase+11, +12).
func SeedFamily(t *testing.T, db *config.Database, chatBase int64) *Family {
	t.Helper()
	ctx := context.Background()

	families := sqlstore.NewFamilyRepository(db)
	users := sqlstore.NewUserRepository(db)

	family, err := families.Create(ctx, &models.Family{InviteCode: fmt.Sprintf("FAM%03d", chatBase%1000)})
	require.NoError(t, err)

	seeded := &Family{Family: family}
	for i, name := range []string{"Mom", "Dad"} {
		u, err := users.Create(ctx, &models.User{
			ExternalChatID: chatBase + int64(i) + 1,
			Role:           models.RoleParent,
			FamilyID:       family.ID,
			Name:           name,
		})
		require.NoError(t, err)
		seeded.Parents = append(seeded.Parents, u)
	}
	for i, name := range []string{"Ann", "Ben"} {
		u, err := users.Create(ctx, &models.User{
			ExternalChatID: chatBase + int64(i) + 11,
			Role:           models.RoleChild,
			FamilyID:       family.ID,
			Name:           name,
		})
		require.NoError(t, err)
		seeded.Kids = append(seeded.Kids, u)
	}
	return seeded
}
