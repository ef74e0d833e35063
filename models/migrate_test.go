package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMigrateEmbeddedCreatesSchemaOnSQLite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:?_foreign_keys=1"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	ran, err := MigrateEmbedded(db)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.True(t, db.Migrator().HasTable(&Page{}))
	assert.True(t, db.Migrator().HasTable(&PublishingWorkflow{}))
	assert.True(t, db.Migrator().HasConstraint(&PublishingWorkflow{}, "Page"))
}

func TestMigrateEmbeddedSkipsServerDatabases(t *testing.T) {
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "cms@tcp(127.0.0.1:1)/cms",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DisableAutomaticPing: true, Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	ran, err := MigrateEmbedded(db)
	require.NoError(t, err)
	assert.False(t, ran)
}
