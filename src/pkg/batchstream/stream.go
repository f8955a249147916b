// Package batchstream 将逐条推送的数据源聚合为固定大小的批次，并在慢消费者与数据源之间传递背压信号
package batchstream

import (
	"errors"
	"fmt"
)

// DefaultCapacity 默认批次大小
const DefaultCapacity = 100

var (
	// ErrInvalidCapacity 批次大小非法
	ErrInvalidCapacity = errors.New("batch capacity must be positive")
	// ErrNoErrorHandler 批次处理或数据源失败但未注册错误处理器
	ErrNoErrorHandler = errors.New("stream failed and no error handler is registered")
	// ErrHandlerPanicked 批次处理器 panic
	ErrHandlerPanicked = errors.New("batch handler panicked")
	// ErrStreamClosed 流已关闭
	ErrStreamClosed = errors.New("stream is closed")
	// ErrInvalidDemand 请求的条数非法
	ErrInvalidDemand = errors.New("fetch amount must be positive")
)

// Source 逐条推送数据的异步数据源（例如数据库游标）
//
// 注册非空 Handler 即开始投递；Handler(nil) 表示停止投递。
type Source[T any] interface {
	Handler(h func(T))
	ErrorHandler(h func(error))
	EndHandler(h func())
	Pause()
	Resume()
	Fetch(n int64)
}

// State 流状态
type State int32

const (
	// StateActive 正在投递
	StateActive State = iota
	// StatePaused 已请求暂停
	StatePaused
	// StateClosed 流已结束
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StatePaused:
		return "paused"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// SourceError 上游数据源报告的错误
type SourceError struct {
	Err error
}

func (e *SourceError) Error() string {
	return "source: " + e.Err.Error()
}

func (e *SourceError) Unwrap() error {
	return e.Err
}
