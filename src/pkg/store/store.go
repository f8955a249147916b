// Package store 物品表的 SQLite 存储
package store

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// DefaultBusyTimeout 默认的锁等待时间
const DefaultBusyTimeout = 5 * time.Second

// Config 数据库配置
type Config struct {
	Path         string
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// Store 物品数据库
type Store struct {
	db     *sqlx.DB
	path   string
	logger *logrus.Entry
}

// SchemaResult 表结构初始化结果
type SchemaResult struct {
	FromVersion uint
	ToVersion   uint
	WasDirty    bool
}

// Open 打开数据库，不存在时创建
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	busyTimeout := cfg.BusyTimeout
	if busyTimeout <= 0 {
		busyTimeout = DefaultBusyTimeout
	}
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)", cfg.Path, busyTimeout.Milliseconds())

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Store{
		db:     db,
		path:   cfg.Path,
		logger: logrus.WithField("db_path", cfg.Path),
	}, nil
}

// DB 返回底层连接池
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Path 返回数据库文件路径
func (s *Store) Path() string {
	return s.path
}

// Close 关闭数据库
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate 应用内嵌的表结构脚本
func (s *Store) Migrate() (*SchemaResult, error) {
	sourceDriver, err := iofs.New(embeddedMigrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create iofs source: %w", err)
	}

	dbDriver, err := sqlite.WithInstance(s.db.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	// 不调用 mig.Close()，它会关闭共享的连接池
	mig, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	result := &SchemaResult{}
	result.FromVersion, result.WasDirty, err = mig.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return nil, fmt.Errorf("failed to read schema version: %w", err)
	}

	if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return result, fmt.Errorf("failed to apply schema: %w", err)
	}

	result.ToVersion, _, err = mig.Version()
	if err != nil {
		return result, fmt.Errorf("failed to read schema version: %w", err)
	}

	if result.FromVersion != result.ToVersion {
		s.logger.WithFields(logrus.Fields{
			"from_version": result.FromVersion,
			"to_version":   result.ToVersion,
			"was_dirty":    result.WasDirty,
		}).Info("database schema updated")
	} else {
		s.logger.WithField("version", result.ToVersion).Debug("database schema is up to date")
	}
	return result, nil
}
