package main

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/bililive-go/rowmigrate/src/configs"
	"github.com/bililive-go/rowmigrate/src/consts"
	"github.com/bililive-go/rowmigrate/src/log"
	"github.com/bililive-go/rowmigrate/src/pkg/migration"
	bilisentry "github.com/bililive-go/rowmigrate/src/pkg/sentry"
	"github.com/bililive-go/rowmigrate/src/pkg/shelving"
	"github.com/bililive-go/rowmigrate/src/pkg/store"
)

// app 各命令共用的组件
type app struct {
	config   *configs.Config
	store    *store.Store
	registry *migration.Registry
	upgrader *migration.Upgrader
	logClose io.Closer
}

// loadConfig 读取配置并初始化日志与错误上报
func loadConfig(file string) (*configs.Config, io.Closer, error) {
	cfg, err := configs.Load(file)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Verify(); err != nil {
		return nil, nil, err
	}
	configs.SetCurrentConfig(cfg)

	closer, err := log.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Sentry.Enable {
		if err := bilisentry.Init(cfg.Sentry.DSN, cfg.Sentry.Environment, consts.AppVersion); err != nil {
			// Sentry 初始化失败不影响程序运行，仅记录警告
			logrus.WithError(err).Warn("failed to init sentry")
		}
	}
	return cfg, closer, nil
}

// newApp 打开数据库并注册所有迁移
func newApp(file string, reg prometheus.Registerer) (*app, error) {
	cfg, closer, err := loadConfig(file)
	if err != nil {
		return nil, err
	}
	a := &app{config: cfg, logClose: closer}

	a.store, err = store.Open(store.Config{
		Path:         cfg.Database.Path,
		BusyTimeout:  cfg.Database.BusyTimeout,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		diag := configs.DiagnoseFilePermission(cfg.Database.Path)
		a.Close()
		return nil, fmt.Errorf("failed to open database: %w%s", err, diag.FormatError())
	}
	if _, err := a.store.Migrate(); err != nil {
		a.Close()
		return nil, err
	}

	metrics := migration.NewMetrics(reg)
	a.registry = migration.NewRegistry()
	shelvingMigration, err := shelving.NewMigration(migration.DB{DB: a.store.DB()},
		migration.WithBatchSize(cfg.Migration.BatchSize),
		migration.WithMetrics(metrics),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.registry.MustRegister(shelvingMigration)

	a.upgrader, err = migration.NewUpgrader(a.registry, a.store.DB(), migration.UpgraderConfig{
		DBPath:     a.store.Path(),
		Backup:     cfg.Migration.Backup,
		MaxBackups: cfg.Migration.MaxBackups,
		Parallel:   cfg.Migration.Parallel,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	if recovered, err := a.upgrader.CheckAndRecover(); err != nil {
		a.Close()
		return nil, err
	} else if recovered {
		logrus.Warn("previous upgrade did not finish; its changes were rolled back, backups are kept for restore")
	}
	return a, nil
}

func (a *app) Close() error {
	var err error
	if a.store != nil {
		err = multierr.Append(err, a.store.Close())
	}
	if a.logClose != nil {
		err = multierr.Append(err, a.logClose.Close())
	}
	return err
}
