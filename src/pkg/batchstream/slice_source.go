package batchstream

import (
	"math"
	"sync"
)

// SliceSource 基于内存切片的 Source 实现，遵循暂停/恢复/按需拉取语义
//
// 投递在注册 Handler 或恢复投递的调用中同步进行；处理器内部调用 Pause/Resume 不会产生递归。
type SliceSource[T any] struct {
	mu         sync.Mutex
	items      []T
	pos        int
	demand     int64
	delivering bool
	ended      bool
	err        error

	handler    func(T)
	errHandler func(error)
	endHandler func()
}

// FromSlice 创建内存数据源
func FromSlice[T any](items []T) *SliceSource[T] {
	return &SliceSource[T]{items: items, demand: math.MaxInt64}
}

// FailAfter 投递完所有数据后以 err 结束，而不是正常结束
func (s *SliceSource[T]) FailAfter(err error) *SliceSource[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

// Delivered 返回已投递的条数
func (s *SliceSource[T]) Delivered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

func (s *SliceSource[T]) Handler(h func(T)) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
	if h != nil {
		s.drain()
	}
}

func (s *SliceSource[T]) ErrorHandler(h func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errHandler = h
}

func (s *SliceSource[T]) EndHandler(h func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endHandler = h
}

func (s *SliceSource[T]) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.demand = 0
}

func (s *SliceSource[T]) Resume() {
	s.mu.Lock()
	s.demand = math.MaxInt64
	s.mu.Unlock()
	s.drain()
}

func (s *SliceSource[T]) Fetch(n int64) {
	s.mu.Lock()
	if s.demand > math.MaxInt64-n {
		s.demand = math.MaxInt64
	} else {
		s.demand += n
	}
	s.mu.Unlock()
	s.drain()
}

func (s *SliceSource[T]) drain() {
	s.mu.Lock()
	if s.delivering {
		s.mu.Unlock()
		return
	}
	s.delivering = true
	defer func() {
		s.mu.Lock()
		s.delivering = false
		s.mu.Unlock()
	}()

	for {
		if s.ended || s.handler == nil || s.demand == 0 {
			s.mu.Unlock()
			return
		}
		if s.pos == len(s.items) {
			s.ended = true
			err, errHandler, endHandler := s.err, s.errHandler, s.endHandler
			s.mu.Unlock()
			if err != nil {
				if errHandler != nil {
					errHandler(err)
				}
			} else if endHandler != nil {
				endHandler()
			}
			return
		}
		item, handler := s.items[s.pos], s.handler
		s.pos++
		if s.demand != math.MaxInt64 {
			s.demand--
		}
		s.mu.Unlock()

		handler(item)

		s.mu.Lock()
	}
}
