package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bililive-go/rowmigrate/src/pkg/batchstream"
	bilisentry "github.com/bililive-go/rowmigrate/src/pkg/sentry"
	"github.com/bililive-go/rowmigrate/src/pkg/version"
	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

var (
	// ErrAlreadyRunning 同一个迁移正在运行
	ErrAlreadyRunning = errors.New("migration is already running")
)

// BatchWriteError 批次写入失败
type BatchWriteError struct {
	Migration string
	// Batch 失败批次的序号，从 1 开始
	Batch int
	Size  int
	Err   error
}

func (e *BatchWriteError) Error() string {
	return fmt.Sprintf("migration %s: batch %d (%d records) failed: %v", e.Migration, e.Batch, e.Size, e.Err)
}

func (e *BatchWriteError) Unwrap() error {
	return e.Err
}

type options struct {
	batchSize  int
	metrics    *Metrics
	comparator version.Comparator
	logger     *logrus.Entry
}

// Option 运行器选项
type Option func(*options)

// WithBatchSize 设置批次大小
func WithBatchSize(n int) Option {
	return func(o *options) { o.batchSize = n }
}

// WithMetrics 设置指标
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithComparator 设置版本比较器
func WithComparator(c version.Comparator) Option {
	return func(o *options) { o.comparator = c }
}

// WithLogger 设置日志
func WithLogger(l *logrus.Entry) Option {
	return func(o *options) { o.logger = l }
}

// Runner 在单个事务内对整张表执行一次完整的批量迁移
//
// 数据流: 开启事务 → 打开游标 → 聚合为批次 → 每批: 暂停游标、写入、恢复游标 → 关闭游标 → 提交或回滚。
// 同一时刻最多只有一个批次在处理。
type Runner[T any] struct {
	def       Definition[T]
	gate      *Gate
	db        Beginner
	batchSize int
	metrics   *Metrics
	logger    *logrus.Entry

	running   atomic.Bool
	processed atomic.Int64
	mu        sync.RWMutex
	status    Status
}

// NewRunner 创建迁移运行器
func NewRunner[T any](db Beginner, def Definition[T], opts ...Option) (*Runner[T], error) {
	o := options{batchSize: batchstream.DefaultCapacity}
	for _, opt := range opts {
		opt(&o)
	}

	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if def.Name == "" {
		return nil, fmt.Errorf("migration name cannot be empty")
	}
	if def.Open == nil || def.Update == nil {
		return nil, fmt.Errorf("migration %s: open and update functions are required", def.Name)
	}
	if o.batchSize <= 0 {
		return nil, fmt.Errorf("migration %s: %w: %d", def.Name, batchstream.ErrInvalidCapacity, o.batchSize)
	}
	gate, err := NewGate(def.IntroducedIn, o.comparator)
	if err != nil {
		return nil, fmt.Errorf("migration %s: %w", def.Name, err)
	}

	logger := o.logger
	if logger == nil {
		logger = logrus.WithField("component", "migration_runner")
	}

	return &Runner[T]{
		def:       def,
		gate:      gate,
		db:        db,
		batchSize: o.batchSize,
		metrics:   o.metrics,
		logger:    logger.WithField("migration", def.Name),
		status:    StatusNotStarted,
	}, nil
}

// Name 返回迁移名称
func (r *Runner[T]) Name() string {
	return r.def.Name
}

// IntroducedIn 返回引入版本
func (r *Runner[T]) IntroducedIn() string {
	return r.gate.IntroducedIn()
}

// ShouldRun 判断从 moduleFrom 升级时是否需要执行
func (r *Runner[T]) ShouldRun(moduleFrom string) bool {
	return r.gate.ShouldRun(moduleFrom)
}

// Progress 返回当前状态与已处理的记录数，可并发调用
func (r *Runner[T]) Progress() (Status, int64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status, r.processed.Load()
}

func (r *Runner[T]) setStatus(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = s
}

// Run 执行一次迁移
//
// 失败时返回的 RunResult 仍包含失败前已处理的记录数，事务被回滚。
// 没有内部超时，ctx 只会传递给数据库驱动。
func (r *Runner[T]) Run(ctx context.Context) (*RunResult, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, r.def.Name)
	}
	defer r.running.Store(false)

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("failed to generate run id: %w", err)
	}

	result := &RunResult{
		Migration: r.def.Name,
		RunID:     id.String(),
		Status:    StatusNotStarted,
		StartedAt: time.Now(),
	}
	r.processed.Store(0)
	r.setStatus(StatusNotStarted)

	logger := r.logger.WithField("run_id", result.RunID)
	logger.WithField("batch_size", r.batchSize).Info("starting migration")
	r.metrics.runStarted(r.def.Name)

	err = r.run(ctx, logger, result)

	result.RecordsProcessed = r.processed.Load()
	result.FinishedAt = time.Now()
	r.metrics.runFinished(r.def.Name, err)

	if err != nil {
		result.Status = StatusFailed
		result.Err = err
		r.setStatus(StatusFailed)
		logger.WithError(err).WithField("records_processed", result.RecordsProcessed).
			Error("unable to complete migration")
		return result, err
	}

	result.Status = StatusCompleted
	r.setStatus(StatusCompleted)
	logger.WithFields(logrus.Fields{
		"records_processed": result.RecordsProcessed,
		"batches":           result.Batches,
		"duration":          result.Duration().String(),
	}).Info("migration completed")
	return result, nil
}

func (r *Runner[T]) run(ctx context.Context, logger *logrus.Entry, result *RunResult) (err error) {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logger.WithError(rbErr).Warn("rollback failed")
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()

	stream, err := r.def.Open(ctx, tx)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}
	r.setStatus(StatusStreaming)

	result.Batches, err = r.drive(ctx, tx, stream, logger)

	// 无论成功与否，游标都在返回结果前关闭
	if closeErr := stream.Close(); closeErr != nil {
		err = multierr.Append(err, fmt.Errorf("failed to close stream: %w", closeErr))
	}
	return err
}

func (r *Runner[T]) drive(ctx context.Context, tx Tx, stream Stream[T], logger *logrus.Entry) (int, error) {
	acc, err := batchstream.Wrap[T](stream, r.batchSize)
	if err != nil {
		return 0, err
	}

	var (
		once    sync.Once
		done    = make(chan struct{})
		runErr  error
		batches int
	)
	finish := func(err error) {
		once.Do(func() {
			runErr = err
			close(done)
		})
	}

	acc.EndHandler(func() { finish(nil) }).
		ErrorHandler(finish).
		Handler(func(batch []T) error {
			// 暂停游标，保证批次串行执行
			if err := acc.Pause(); err != nil {
				return err
			}
			r.setStatus(StatusBatchProcessing)
			batches++

			started := time.Now()
			n, err := r.update(ctx, tx, batch)
			r.metrics.observeBatch(r.def.Name, n, time.Since(started), err)
			if err != nil {
				logger.WithError(err).WithField("batch", batches).
					Error("unable to perform update for a batch of records")
				return &BatchWriteError{Migration: r.def.Name, Batch: batches, Size: len(batch), Err: err}
			}

			total := r.processed.Add(int64(n))
			logger.WithField("records_processed", total).Info("batch of records has been processed")
			r.setStatus(StatusStreaming)
			return acc.Resume()
		})

	<-done
	return batches, runErr
}

// update 调用迁移的 Update，panic 作为该批次的失败返回
func (r *Runner[T]) update(ctx context.Context, tx Tx, batch []T) (n int, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("update panicked: %v", p)
			bilisentry.CaptureException(err)
		}
	}()
	return r.def.Update(ctx, tx, batch)
}
