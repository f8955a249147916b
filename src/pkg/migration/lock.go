package migration

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// LockFileExtension 锁文件扩展名
	LockFileExtension = ".upgrade.lock"
)

// ErrLocked 数据库正在被另一个升级占用
var ErrLocked = errors.New("database is locked by another upgrade")

// LockManager 基于锁文件的升级互斥
type LockManager struct {
	lockPath string
}

// NewLockManager 创建锁管理器
func NewLockManager(dbPath string) *LockManager {
	return &LockManager{lockPath: dbPath + LockFileExtension}
}

// LockPath 获取锁文件路径
func (m *LockManager) LockPath() string {
	return m.lockPath
}

// Acquire 获取锁
func (m *LockManager) Acquire(info *LockInfo) error {
	if err := os.MkdirAll(filepath.Dir(m.lockPath), 0755); err != nil {
		return fmt.Errorf("failed to create lock file directory: %w", err)
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal lock info: %w", err)
	}

	// O_EXCL 保证两个进程不会同时拿到锁
	f, err := os.OpenFile(m.lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if !os.IsExist(err) {
			return fmt.Errorf("failed to create lock file: %w", err)
		}
		existing, readErr := m.LockInfo()
		if readErr != nil {
			return fmt.Errorf("%w: cannot read lock info: %v", ErrLocked, readErr)
		}
		return fmt.Errorf("%w: started at %s (PID: %d)", ErrLocked, existing.StartTime, existing.PID)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		os.Remove(m.lockPath)
		return fmt.Errorf("failed to write lock file: %w", err)
	}
	return nil
}

// Release 释放锁
func (m *LockManager) Release() error {
	if err := os.Remove(m.lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

// IsLocked 检查是否被锁定
func (m *LockManager) IsLocked() bool {
	_, err := os.Stat(m.lockPath)
	return err == nil
}

// LockInfo 读取锁信息
func (m *LockManager) LockInfo() (*LockInfo, error) {
	data, err := os.ReadFile(m.lockPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read lock file: %w", err)
	}

	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lock info: %w", err)
	}
	return &info, nil
}

// NewLockInfo 创建锁信息
func NewLockInfo(dbPath, backupPath, moduleFrom string, migrations []string) *LockInfo {
	return &LockInfo{
		DBPath:     dbPath,
		BackupPath: backupPath,
		StartTime:  time.Now().Format(time.RFC3339),
		ModuleFrom: moduleFrom,
		Migrations: migrations,
		PID:        os.Getpid(),
	}
}
