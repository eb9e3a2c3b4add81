package repository

import (
	"testing"

	"github.com/nimasrn/gpu-savings-gateway/pkg/pg"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB returns a pg.DB over a private in-memory sqlite database with
// every table migrated. Both pools share the single connection.
func SetupTestDB(t testing.TB) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(&CustomerEntity{}, &GPUReadingEntity{}, &IdleAlertEntity{})
	require.NoError(t, err)

	return pg.New(db, db)
}
