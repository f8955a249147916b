//go:generate go run go.uber.org/mock/mockgen -package migration -destination mock_test.go github.com/bililive-go/rowmigrate/src/pkg/migration Beginner,Tx,Job
package migration

import (
	"context"
	"database/sql"
	"time"

	"github.com/bililive-go/rowmigrate/src/pkg/batchstream"
	"github.com/jmoiron/sqlx"
)

// Tx 一次迁移运行所在的事务
type Tx interface {
	sqlx.ExtContext
	Commit() error
	Rollback() error
}

// Beginner 开启事务
type Beginner interface {
	BeginTx(ctx context.Context) (Tx, error)
}

// Stream 事务内的流式游标，必须在运行结束时关闭
type Stream[T any] interface {
	batchstream.Source[T]
	Close() error
}

// OpenFunc 在事务中打开流式游标
type OpenFunc[T any] func(ctx context.Context, tx Tx) (Stream[T], error)

// UpdateFunc 在事务中处理一批数据，返回处理的条数
type UpdateFunc[T any] func(ctx context.Context, tx Tx, batch []T) (int, error)

// Definition 迁移定义
type Definition[T any] struct {
	// Name 迁移名称，注册表中唯一
	Name string
	// IntroducedIn 引入该迁移的模块版本
	IntroducedIn string
	// Open 打开需要迁移的数据流
	Open OpenFunc[T]
	// Update 处理一批数据
	Update UpdateFunc[T]
}

// Status 运行状态
type Status string

const (
	StatusNotStarted      Status = "not_started"
	StatusStreaming       Status = "streaming"
	StatusBatchProcessing Status = "batch_processing"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
)

// IsTerminal 是否为终止状态
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// RunResult 一次迁移运行的结果，运行结束后不再修改
type RunResult struct {
	Migration        string    `json:"migration"`
	RunID            string    `json:"run_id"`
	Status           Status    `json:"status"`
	RecordsProcessed int64     `json:"records_processed"`
	Batches          int       `json:"batches"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	// Err 失败原因，成功时为 nil
	Err error `json:"-"`
}

// Success 是否成功
func (r *RunResult) Success() bool {
	return r != nil && r.Status == StatusCompleted
}

// Duration 运行耗时
func (r *RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// DB 基于 sqlx.DB 的 Beginner 实现
type DB struct {
	*sqlx.DB
	// TxOptions 可选的事务选项
	TxOptions *sql.TxOptions
}

// BeginTx 开启事务
func (d DB) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := d.BeginTxx(ctx, d.TxOptions)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// LockInfo 锁文件信息
type LockInfo struct {
	// DBPath 正在升级的数据库路径
	DBPath string `json:"db_path"`
	// BackupPath 升级前的备份路径
	BackupPath string `json:"backup_path"`
	// StartTime 开始时间
	StartTime string `json:"start_time"`
	// ModuleFrom 升级前的模块版本
	ModuleFrom string `json:"module_from"`
	// Migrations 本次要执行的迁移
	Migrations []string `json:"migrations"`
	// PID 进程ID
	PID int `json:"pid"`
}
