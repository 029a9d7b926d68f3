// Package datastore persists fences and alerts in sqlite or mysql through gorm.
package datastore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fraktlabs/fencewatch/internal/conf"
	"github.com/fraktlabs/fencewatch/internal/errors"
	"github.com/fraktlabs/fencewatch/internal/logger"
	"github.com/fraktlabs/fencewatch/internal/observability/metrics"
)

const slowQueryThreshold = 200 * time.Millisecond

// Store owns the database handle shared by the repositories.
type Store struct {
	DB      *gorm.DB
	dbType  string
	metrics metrics.Recorder
}

// Open connects to the backend named in settings and migrates the schema.
// rec may be nil.
func Open(settings *conf.PersistenceSettings, rec metrics.Recorder) (*Store, error) {
	switch settings.Backend {
	case conf.BackendSQLite:
		return OpenSQLite(settings.SQLite.Path, rec)
	case conf.BackendMySQL:
		return OpenMySQL(&settings.MySQL, rec)
	default:
		return nil, errors.Newf("unsupported database backend %q", settings.Backend).
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// OpenSQLite opens (creating if needed) the sqlite database at path.
// ":memory:" gives a private in-memory database.
func OpenSQLite(path string, rec metrics.Recorder) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.New(err).
				Category(errors.CategoryFileIO).
				Context("path", path).
				Build()
		}
		dsn = path + "?_busy_timeout=5000&_journal_mode=WAL"
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryDatabase).
			Context("db_type", "sqlite").
			Context("path", path).
			Build()
	}
	// sqlite allows one writer; in-memory databases are per connection
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	return newStore(db, "SQLite", rec)
}

// OpenMySQL connects to mysql.
func OpenMySQL(cfg *conf.MySQLSettings, rec metrics.Recorder) (*Store, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	db, err := gorm.Open(mysql.Open(dsn), gormConfig())
	if err != nil {
		GetLogger().Error("failed to open MySQL database",
			logger.String("host", cfg.Host),
			logger.Int("port", cfg.Port),
			logger.String("database", cfg.Database),
			logger.Error(err))
		return nil, errors.New(err).
			Category(errors.CategoryDatabase).
			Context("db_type", "mysql").
			Context("host", cfg.Host).
			Build()
	}
	return newStore(db, "MySQL", rec)
}

// SQL is logged at trace level; the module level in the log config decides
// whether it shows.
func gormConfig() *gorm.Config {
	return &gorm.Config{Logger: logger.NewGormLoggerAdapter(GetLogger(), slowQueryThreshold)}
}

func newStore(db *gorm.DB, dbType string, rec metrics.Recorder) (*Store, error) {
	if rec == nil {
		rec = metrics.NopRecorder{}
	}
	s := &Store{DB: db, dbType: dbType, metrics: rec}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	start := time.Now()
	if err := s.DB.AutoMigrate(&FenceRow{}, &AlertRow{}); err != nil {
		return errors.New(err).
			Category(errors.CategoryDatabase).
			Context("operation", "auto_migrate").
			Context("db_type", s.dbType).
			Build()
	}
	GetLogger().Debug("database migration completed",
		logger.String("db_type", s.dbType),
		logger.Duration("duration", time.Since(start)))
	return nil
}

// Fences returns the fence repository.
func (s *Store) Fences() *FenceRepository {
	return &FenceRepository{store: s}
}

// Alerts returns the alert repository.
func (s *Store) Alerts() *AlertRepository {
	return &AlertRepository{store: s}
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return errors.New(err).Category(errors.CategoryDatabase).Build()
	}
	return sqlDB.Close()
}

// track times op and records its outcome.
func (s *Store) track(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.metrics.RecordDuration(op, time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordOperation(op, metrics.StatusError)
		s.metrics.RecordError(op, string(errors.CategoryDatabase))
		return err
	}
	s.metrics.RecordOperation(op, metrics.StatusSuccess)
	return nil
}

func dbError(err error, op, name string) error {
	return errors.New(err).
		Category(errors.CategoryDatabase).
		Context("operation", op).
		Context("name", name).
		Build()
}
