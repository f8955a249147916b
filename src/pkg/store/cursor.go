package store

import (
	"fmt"
	"math"
	"sync"

	bilisentry "github.com/bililive-go/rowmigrate/src/pkg/sentry"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// RowCursor 把 *sqlx.Rows 适配为推送式数据源
//
// 首次注册 Handler 后由后台 goroutine 逐行读取并投递，Pause 后在下一行之前停下。
// 所有回调都在该 goroutine 上执行。Close 不能在回调中调用。
type RowCursor[T any] struct {
	rows *sqlx.Rows
	scan func(*sqlx.Rows) (T, error)

	mu         sync.Mutex
	cond       *sync.Cond
	demand     int64
	started    bool
	closed     bool
	handler    func(T)
	errHandler func(error)
	endHandler func()
	done       chan struct{}
}

// NewRowCursor 使用 StructScan 读取每一行
func NewRowCursor[T any](rows *sqlx.Rows) *RowCursor[T] {
	return NewRowCursorWithScan(rows, func(rows *sqlx.Rows) (T, error) {
		var v T
		err := rows.StructScan(&v)
		return v, err
	})
}

// NewRowCursorWithScan 使用自定义的扫描函数
func NewRowCursorWithScan[T any](rows *sqlx.Rows, scan func(*sqlx.Rows) (T, error)) *RowCursor[T] {
	c := &RowCursor[T]{
		rows:   rows,
		scan:   scan,
		demand: math.MaxInt64,
		done:   make(chan struct{}),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *RowCursor[T]) Handler(h func(T)) {
	c.mu.Lock()
	c.handler = h
	start := h != nil && !c.started && !c.closed
	if start {
		c.started = true
	}
	c.cond.Broadcast()
	c.mu.Unlock()

	if start {
		go c.pump()
	}
}

func (c *RowCursor[T]) ErrorHandler(h func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errHandler = h
}

func (c *RowCursor[T]) EndHandler(h func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endHandler = h
}

func (c *RowCursor[T]) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.demand = 0
}

func (c *RowCursor[T]) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.demand = math.MaxInt64
	c.cond.Broadcast()
}

func (c *RowCursor[T]) Fetch(n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.demand > math.MaxInt64-n {
		c.demand = math.MaxInt64
	} else {
		c.demand += n
	}
	c.cond.Broadcast()
}

// Close 停止投递并关闭结果集，可重复调用
func (c *RowCursor[T]) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	started := c.started
	c.cond.Broadcast()
	c.mu.Unlock()

	if started {
		<-c.done
	}
	if err := c.rows.Close(); err != nil {
		return fmt.Errorf("failed to close rows: %w", err)
	}
	return nil
}

func (c *RowCursor[T]) pump() {
	defer close(c.done)
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("cursor delivery panicked: %v", p)
			bilisentry.CaptureException(err)
			logrus.WithError(err).Error("row cursor stopped")
			c.fail(err)
		}
	}()

	for {
		c.mu.Lock()
		for !c.closed && (c.demand == 0 || c.handler == nil) {
			c.cond.Wait()
		}
		if c.closed {
			c.mu.Unlock()
			return
		}
		if c.demand != math.MaxInt64 {
			c.demand--
		}
		c.mu.Unlock()

		if !c.rows.Next() {
			if err := c.rows.Err(); err != nil {
				c.fail(err)
				return
			}
			c.mu.Lock()
			end := c.endHandler
			c.mu.Unlock()
			if end != nil {
				end()
			}
			return
		}

		item, err := c.scan(c.rows)
		if err != nil {
			c.fail(fmt.Errorf("failed to scan row: %w", err))
			return
		}

		c.mu.Lock()
		h := c.handler
		c.mu.Unlock()
		if h != nil {
			h(item)
		}
	}
}

func (c *RowCursor[T]) fail(err error) {
	c.mu.Lock()
	h := c.errHandler
	c.mu.Unlock()
	if h != nil {
		h(err)
		return
	}
	logrus.WithError(err).Error("row cursor failed and no error handler is registered")
}
