package migration

import (
	"context"
	"fmt"
	"sync"
	"time"

	bilisentry "github.com/bililive-go/rowmigrate/src/pkg/sentry"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// UpgradeResult 一次升级的结果
type UpgradeResult struct {
	ModuleFrom string                `json:"module_from"`
	BackupPath string                `json:"backup_path,omitempty"`
	Results    map[string]*RunResult `json:"results"`
	Skipped    []string              `json:"skipped,omitempty"`
	Success    bool                  `json:"success"`
	Errors     []error               `json:"-"`
}

// UpgraderConfig 升级器配置
type UpgraderConfig struct {
	// DBPath 数据库路径，用于锁文件与备份，为空时不加锁也不备份
	DBPath string
	// Backup 升级前是否备份
	Backup bool
	// MaxBackups 保留的备份数量
	MaxBackups int
	// Parallel 是否并行执行互不相关的迁移
	Parallel bool
}

// Upgrader 在模块升级时执行所有适用的迁移
type Upgrader struct {
	registry *Registry
	db       sqlx.ExecerContext
	config   UpgraderConfig
	locks    *LockManager
	backups  *BackupManager
	logger   *logrus.Entry
}

// NewUpgrader 创建升级器，db 只用于生成备份
func NewUpgrader(registry *Registry, db sqlx.ExecerContext, config UpgraderConfig) (*Upgrader, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if config.Backup && (config.DBPath == "" || db == nil) {
		return nil, fmt.Errorf("backup requires a database path and connection")
	}

	u := &Upgrader{
		registry: registry,
		db:       db,
		config:   config,
		logger:   logrus.WithField("component", "upgrader"),
	}
	if config.DBPath != "" {
		u.locks = NewLockManager(config.DBPath)
		u.backups = NewBackupManager(config.DBPath, config.MaxBackups)
	}
	return u, nil
}

// Backups 返回备份管理器，未配置数据库路径时为 nil
func (u *Upgrader) Backups() *BackupManager {
	return u.backups
}

// Registry 返回注册表
func (u *Upgrader) Registry() *Registry {
	return u.registry
}

// CheckAndRecover 检查上次升级是否异常退出
//
// 每个迁移都在独立事务中执行，异常退出不会留下部分写入，因此只需清理残留的锁文件。
// 备份保留在原地，可以通过 restore 命令手动恢复。
func (u *Upgrader) CheckAndRecover() (bool, error) {
	if u.locks == nil || !u.locks.IsLocked() {
		return false, nil
	}

	info, err := u.locks.LockInfo()
	if err != nil {
		return false, fmt.Errorf("failed to read lock info: %w", err)
	}

	u.logger.WithFields(logrus.Fields{
		"start_time":  info.StartTime,
		"pid":         info.PID,
		"module_from": info.ModuleFrom,
		"backup_path": info.BackupPath,
		"migrations":  info.Migrations,
	}).Warn("detected incomplete upgrade, releasing stale lock")

	if err := u.locks.Release(); err != nil {
		return true, err
	}
	return true, nil
}

// Upgrade 执行从 moduleFrom 升级时适用的迁移
func (u *Upgrader) Upgrade(ctx context.Context, moduleFrom string) (*UpgradeResult, error) {
	result := &UpgradeResult{
		ModuleFrom: moduleFrom,
		Results:    make(map[string]*RunResult),
		Success:    true,
	}

	var jobs []Job
	for _, job := range u.registry.List() {
		if job.ShouldRun(moduleFrom) {
			jobs = append(jobs, job)
		} else {
			result.Skipped = append(result.Skipped, job.Name())
		}
	}

	logger := u.logger.WithField("module_from", moduleFrom)
	if len(jobs) == 0 {
		logger.Debug("no migration needed")
		return result, nil
	}

	names := make([]string, len(jobs))
	for i, job := range jobs {
		names[i] = job.Name()
	}

	if u.config.Backup {
		backupPath, err := u.backups.CreateBackup(ctx, u.db)
		if err != nil {
			return nil, fmt.Errorf("failed to create backup: %w", err)
		}
		result.BackupPath = backupPath
	}

	if u.locks != nil {
		if err := u.locks.Acquire(NewLockInfo(u.config.DBPath, result.BackupPath, moduleFrom, names)); err != nil {
			// 删除刚创建的备份
			_ = u.backups.RemoveBackup(result.BackupPath)
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}
		defer func() {
			if err := u.locks.Release(); err != nil {
				logger.WithError(err).Warn("failed to release upgrade lock")
			}
		}()
	}

	logger.WithFields(logrus.Fields{
		"migrations":  names,
		"parallel":    u.config.Parallel,
		"backup_path": result.BackupPath,
	}).Info("starting upgrade")
	started := time.Now()

	if u.config.Parallel {
		u.runParallel(ctx, jobs, result)
	} else {
		u.runSequential(ctx, jobs, result)
	}

	if !result.Success {
		err := multierr.Combine(result.Errors...)
		logger.WithError(err).Error("upgrade failed")
		return result, err
	}

	logger.WithField("duration", time.Since(started).String()).Info("upgrade completed")
	return result, nil
}

func (u *Upgrader) runSequential(ctx context.Context, jobs []Job, result *UpgradeResult) {
	for _, job := range jobs {
		runResult, err := job.Run(ctx)
		u.record(result, job, runResult, err)
	}
}

func (u *Upgrader) runParallel(ctx context.Context, jobs []Job, result *UpgradeResult) {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, job := range jobs {
		wg.Add(1)
		bilisentry.GoWithContext(ctx, func(ctx context.Context) {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					err := fmt.Errorf("panic: %v", p)
					bilisentry.CaptureException(err)
					mu.Lock()
					defer mu.Unlock()
					u.record(result, job, nil, err)
				}
			}()
			runResult, err := job.Run(ctx)
			mu.Lock()
			defer mu.Unlock()
			u.record(result, job, runResult, err)
		})
	}
	wg.Wait()
}

func (u *Upgrader) record(result *UpgradeResult, job Job, runResult *RunResult, err error) {
	if runResult != nil {
		result.Results[job.Name()] = runResult
	}
	if err != nil {
		result.Success = false
		result.Errors = append(result.Errors, fmt.Errorf("migration %s failed: %w", job.Name(), err))
	}
}
