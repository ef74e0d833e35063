package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/xo/dburl"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDB connects gorm to the database described by s. DATABASE_URL wins;
// otherwise a MySQL DSN is assembled from the DB_* variables.
func OpenDB(s *Settings, log *zap.Logger) (*gorm.DB, error) {
	dialector, label, err := dialectorFor(s)
	if err != nil {
		return nil, err
	}

	// In production, suppress SQL logs unless explicitly re-enabled via DEBUG_SQL=true.
	logLevel := logger.Info
	if s.IsProduction() && !s.DebugSQL {
		logLevel = logger.Warn
	}

	cfg := &gorm.Config{
		Logger: logger.New(
			zap.NewStdLog(log.Named("gorm")),
			logger.Config{
				SlowThreshold:             200 * time.Millisecond,
				LogLevel:                  logLevel,
				IgnoreRecordNotFoundError: true,
			},
		),
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	if dialector.Name() == "sqlite" {
		// one writer at a time; also keeps :memory: databases on a single connection
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	log.Info("database connected", zap.String("database", label))
	return db, nil
}

func dialectorFor(s *Settings) (gorm.Dialector, string, error) {
	if strings.TrimSpace(s.DatabaseURL) == "" {
		if s.DBDatabase == "" {
			return nil, "", fmt.Errorf("database not configured (DATABASE_URL or DB_DATABASE)")
		}
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			s.DBUsername,
			s.DBPassword,
			s.DBHost,
			s.DBPort,
			s.DBDatabase,
		)
		return mysql.Open(dsn), "mysql " + s.DBHost + "/" + s.DBDatabase, nil
	}

	u, err := dburl.Parse(s.DatabaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("parse database url: %w", err)
	}

	switch u.Driver {
	case "mysql":
		return mysql.Open(withMySQLParams(u.DSN)), u.Redacted(), nil
	case "sqlite3":
		return sqlite.Open(withSQLiteParams(u.DSN)), u.Redacted(), nil
	default:
		return nil, "", fmt.Errorf("unsupported database driver %q", u.Driver)
	}
}

// withMySQLParams makes sure DATETIME columns scan into time.Time.
func withMySQLParams(dsn string) string {
	if strings.Contains(dsn, "parseTime=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "charset=utf8mb4&parseTime=True&loc=Local"
}

// withSQLiteParams turns on foreign key enforcement, which SQLite leaves off
// per connection by default.
func withSQLiteParams(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys=") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=1"
}
