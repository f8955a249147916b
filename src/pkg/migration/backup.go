package migration

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	// BackupSuffix 备份文件后缀格式
	BackupSuffix = ".backup_%s"
	// DefaultMaxBackups 默认保留的备份数量
	DefaultMaxBackups = 5
)

// BackupManager 升级前的数据库备份
type BackupManager struct {
	dbPath     string
	maxBackups int
}

// NewBackupManager 创建备份管理器，maxBackups <= 0 时使用默认值
func NewBackupManager(dbPath string, maxBackups int) *BackupManager {
	if maxBackups <= 0 {
		maxBackups = DefaultMaxBackups
	}
	return &BackupManager{dbPath: dbPath, maxBackups: maxBackups}
}

// CreateBackup 通过 VACUUM INTO 生成一致的快照，数据库文件不存在时返回空路径
func (m *BackupManager) CreateBackup(ctx context.Context, db sqlx.ExecerContext) (string, error) {
	if _, err := os.Stat(m.dbPath); os.IsNotExist(err) {
		return "", nil
	}

	backupPath := m.dbPath + fmt.Sprintf(BackupSuffix, time.Now().Format("20060102_150405.000"))
	if err := os.MkdirAll(filepath.Dir(backupPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", backupPath); err != nil {
		os.Remove(backupPath)
		return "", fmt.Errorf("failed to create backup: %w", err)
	}

	// 清理失败不影响主流程
	_ = m.CleanupOldBackups()

	return backupPath, nil
}

// RestoreBackup 从备份恢复数据库，调用前必须关闭所有连接
func (m *BackupManager) RestoreBackup(backupPath string) error {
	if backupPath == "" {
		return fmt.Errorf("backup path is empty")
	}
	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		return fmt.Errorf("backup file not found: %s", backupPath)
	}

	for _, path := range []string{m.dbPath, m.dbPath + "-wal", m.dbPath + "-shm"} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}

	if err := copyFile(backupPath, m.dbPath); err != nil {
		return fmt.Errorf("failed to restore from backup: %w", err)
	}
	return nil
}

// RemoveBackup 删除备份文件
func (m *BackupManager) RemoveBackup(backupPath string) error {
	if backupPath == "" {
		return nil
	}
	if err := os.Remove(backupPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove backup: %w", err)
	}
	return nil
}

// ListBackups 列出所有备份，最新的在前
func (m *BackupManager) ListBackups() ([]string, error) {
	dir := filepath.Dir(m.dbPath)
	prefix := filepath.Base(m.dbPath) + ".backup_"

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var backups []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			backups = append(backups, filepath.Join(dir, entry.Name()))
		}
	}

	// 时间戳格式保证字典序即时间序
	sort.Sort(sort.Reverse(sort.StringSlice(backups)))
	return backups, nil
}

// CleanupOldBackups 只保留最近的 maxBackups 个备份
func (m *BackupManager) CleanupOldBackups() error {
	backups, err := m.ListBackups()
	if err != nil {
		return err
	}
	if len(backups) <= m.maxBackups {
		return nil
	}

	for _, backup := range backups[m.maxBackups:] {
		if err := os.Remove(backup); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove old backup %s: %w", backup, err)
		}
	}
	return nil
}

// LatestBackup 获取最新的备份
func (m *BackupManager) LatestBackup() (string, error) {
	backups, err := m.ListBackups()
	if err != nil || len(backups) == 0 {
		return "", err
	}
	return backups[0], nil
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		os.Remove(dst)
		return err
	}
	return dstFile.Sync()
}
