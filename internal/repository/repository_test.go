package repository

import (
	"context"
	"testing"

	"github.com/automax/routing/internal/database"
	"github.com/automax/routing/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func createGroup(t *testing.T, repo GroupRepository, description string, parent *models.Group) *models.Group {
	t.Helper()
	g := &models.Group{Description: description, Enabled: true}
	if parent != nil {
		g.ParentID = &parent.ID
	}
	require.NoError(t, repo.Create(context.Background(), g))
	return g
}
