package batchstream

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Accumulator 把 Source[T] 的逐条数据聚合为批次
//
// 内存占用上限为一个缓冲区（capacity 条）。满批在数据到达的同一调用中同步交给批次处理器，
// 因此不会有超过一个待处理批次。批次处理由 deliver 串行化，mu 只保护内部状态且从不在回调期间持有，
// 回调中可以调用 Handler(nil) 等注册方法。
type Accumulator[T any] struct {
	src      Source[T]
	capacity int
	logger   *logrus.Entry

	state atomic.Int32

	deliver sync.Mutex

	mu          sync.Mutex
	buf         []T
	handler     func([]T) error
	errHandler  func(error)
	endHandler  func()
	failed      bool
	errReported bool
}

// Wrap 创建聚合器，capacity 必须为正数
func Wrap[T any](src Source[T], capacity int) (*Accumulator[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	if src == nil {
		return nil, fmt.Errorf("source cannot be nil")
	}
	a := &Accumulator[T]{
		src:      src,
		capacity: capacity,
		buf:      make([]T, 0, capacity),
		logger:   logrus.WithField("component", "batch_stream"),
	}
	a.state.Store(int32(StateActive))
	src.EndHandler(a.handleEnd)
	src.ErrorHandler(a.handleSourceError)
	return a, nil
}

// WrapDefault 使用 DefaultCapacity 创建聚合器
func WrapDefault[T any](src Source[T]) (*Accumulator[T], error) {
	return Wrap(src, DefaultCapacity)
}

// Capacity 返回批次大小
func (a *Accumulator[T]) Capacity() int {
	return a.capacity
}

// State 返回当前流状态
func (a *Accumulator[T]) State() State {
	return State(a.state.Load())
}

// Handler 注册批次处理器并成为数据源唯一的消费者，传入 nil 则停止投递
func (a *Accumulator[T]) Handler(h func([]T) error) *Accumulator[T] {
	a.mu.Lock()
	a.handler = h
	a.mu.Unlock()

	if h == nil {
		a.src.Handler(nil)
		return a
	}
	a.src.Handler(a.processItem)
	return a
}

// ErrorHandler 注册错误处理器，批次处理失败和数据源错误都会交给它，每次运行最多调用一次
//
// 未注册时任何失败都会 panic(ErrNoErrorHandler)。
func (a *Accumulator[T]) ErrorHandler(h func(error)) *Accumulator[T] {
	a.mu.Lock()
	a.errHandler = h
	a.mu.Unlock()
	return a
}

// EndHandler 注册结束处理器，剩余的不满一批的数据会先被刷新
func (a *Accumulator[T]) EndHandler(h func()) *Accumulator[T] {
	a.mu.Lock()
	a.endHandler = h
	a.mu.Unlock()
	return a
}

// Pause 请求数据源暂停投递
func (a *Accumulator[T]) Pause() error {
	if err := a.transition(StatePaused); err != nil {
		return err
	}
	a.src.Pause()
	return nil
}

// Resume 请求数据源恢复投递
func (a *Accumulator[T]) Resume() error {
	if err := a.transition(StateActive); err != nil {
		return err
	}
	a.src.Resume()
	return nil
}

// Fetch 请求数据源再投递 n 条
func (a *Accumulator[T]) Fetch(n int64) error {
	if n <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDemand, n)
	}
	if a.State() == StateClosed {
		return ErrStreamClosed
	}
	a.src.Fetch(n)
	return nil
}

func (a *Accumulator[T]) transition(to State) error {
	for {
		cur := a.state.Load()
		if State(cur) == StateClosed {
			return ErrStreamClosed
		}
		if a.state.CompareAndSwap(cur, int32(to)) {
			return nil
		}
	}
}

func (a *Accumulator[T]) processItem(item T) {
	a.deliver.Lock()
	defer a.deliver.Unlock()

	a.mu.Lock()
	// 失败后数据源可能尚未响应暂停，此时到达的数据直接丢弃
	if a.failed || a.handler == nil {
		a.mu.Unlock()
		return
	}
	a.buf = append(a.buf, item)
	if len(a.buf) < a.capacity {
		a.mu.Unlock()
		return
	}
	batch, h := a.takeLocked()
	a.mu.Unlock()

	a.flush(h, batch)
}

// takeLocked 取出缓冲区中的数据作为一个独立的批次
func (a *Accumulator[T]) takeLocked() ([]T, func([]T) error) {
	batch := slices.Clone(a.buf)
	a.buf = a.buf[:0]
	return batch, a.handler
}

// flush 处理一个批次，成功返回 true
func (a *Accumulator[T]) flush(h func([]T) error, batch []T) bool {
	if err := invoke(h, batch); err != nil {
		a.fail(err)
		return false
	}
	return true
}

func invoke[T any](h func([]T) error, batch []T) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanicked, p)
		}
	}()
	return h(batch)
}

// fail 停止投递并报告错误，只有第一个错误会被报告
func (a *Accumulator[T]) fail(err error) {
	a.mu.Lock()
	a.failed = true
	a.buf = nil
	errHandler, reported := a.errHandler, a.errReported
	a.errReported = true
	a.mu.Unlock()

	if a.transition(StatePaused) == nil {
		a.src.Pause()
	}
	if reported {
		a.logger.WithError(err).Debug("dropping error reported after stream already failed")
		return
	}
	if errHandler == nil {
		panic(fmt.Errorf("%w: %w", ErrNoErrorHandler, err))
	}
	errHandler(err)
}

func (a *Accumulator[T]) handleSourceError(err error) {
	a.fail(&SourceError{Err: err})
}

func (a *Accumulator[T]) handleEnd() {
	a.deliver.Lock()
	defer a.deliver.Unlock()

	a.mu.Lock()
	if a.failed {
		a.mu.Unlock()
		return
	}
	if len(a.buf) > 0 && a.handler != nil {
		batch, h := a.takeLocked()
		a.mu.Unlock()
		a.logger.WithField("size", len(batch)).Debug("flushing final partial batch")
		if !a.flush(h, batch) {
			return
		}
		a.mu.Lock()
	}
	endHandler := a.endHandler
	a.mu.Unlock()

	a.state.Store(int32(StateClosed))
	if endHandler != nil {
		endHandler()
	}
}
