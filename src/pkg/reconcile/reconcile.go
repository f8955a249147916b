// Package reconcile 把一批待写入的实体划分为新建与已存在两部分，已存在的部分通过一次批量查询确定
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

var (
	// ErrNilIDFunc 未提供 id 提取函数
	ErrNilIDFunc = errors.New("id extractor must not be nil")
	// ErrNilFetcher 未提供批量查询函数
	ErrNilFetcher = errors.New("bulk fetcher must not be nil")
)

// IDFunc 提取实体 id
type IDFunc[T any] func(T) string

// FetchFunc 按 id 批量查询已存在的记录，不存在的 id 不出现在结果中
type FetchFunc[T any] func(ctx context.Context, ids []string) (map[string]T, error)

// FetchError 批量查询失败
type FetchError struct {
	IDs int
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %d existing records: %v", e.IDs, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Update 一条更新：候选实体与其更新前的快照
type Update[T any] struct {
	Candidate T
	Previous  T
}

// BatchContext 一次划分的结果，构造后只读
type BatchContext[T any] struct {
	toCreate      []T
	existing      []T
	updates       []Update[T]
	publishEvents bool
}

// ToCreate 需要新建的实体
func (b *BatchContext[T]) ToCreate() []T {
	return append([]T(nil), b.toCreate...)
}

// Existing 已存在记录在更新前的快照
func (b *BatchContext[T]) Existing() []T {
	return append([]T(nil), b.existing...)
}

// Updates 已存在实体的候选值与快照，顺序与输入一致
func (b *BatchContext[T]) Updates() []Update[T] {
	return append([]Update[T](nil), b.updates...)
}

// PublishEvents 写入后是否发布领域事件
func (b *BatchContext[T]) PublishEvents() bool {
	return b.publishEvents
}

// Option 配置项
type Option func(*options)

type options struct {
	publishEvents bool
	logger        *logrus.Entry
}

// WithPublishEvents 设置写入后是否发布领域事件，默认发布
func WithPublishEvents(publish bool) Option {
	return func(o *options) {
		o.publishEvents = publish
	}
}

// WithLogger 设置日志
func WithLogger(logger *logrus.Entry) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Reconciler 批量写入前的新建/更新划分器
type Reconciler[T any] struct {
	idOf   IDFunc[T]
	fetch  FetchFunc[T]
	opts   options
	logger *logrus.Entry
}

// New 创建划分器
func New[T any](idOf IDFunc[T], fetch FetchFunc[T], opts ...Option) (*Reconciler[T], error) {
	if idOf == nil {
		return nil, ErrNilIDFunc
	}
	if fetch == nil {
		return nil, ErrNilFetcher
	}

	o := options{publishEvents: true}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = logrus.WithField("component", "reconciler")
	}
	return &Reconciler[T]{idOf: idOf, fetch: fetch, opts: o, logger: logger}, nil
}

// Reconcile 划分实体
//
// upsert 为 false 时全部视为新建，不查询存储。
// upsert 为 true 时按去重后的 id 查询一次，命中的实体以查询到的记录进入 Existing，其余进入 ToCreate。
func (r *Reconciler[T]) Reconcile(ctx context.Context, entities []T, upsert bool) (*BatchContext[T], error) {
	bc := &BatchContext[T]{publishEvents: r.opts.publishEvents}
	if !upsert {
		bc.toCreate = append([]T(nil), entities...)
		return bc, nil
	}
	if len(entities) == 0 {
		return bc, nil
	}

	ids := make([]string, 0, len(entities))
	seen := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		id := r.idOf(e)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	found, err := r.fetch(ctx, ids)
	if err != nil {
		return nil, &FetchError{IDs: len(ids), Err: err}
	}

	for _, e := range entities {
		prev, ok := found[r.idOf(e)]
		if !ok {
			bc.toCreate = append(bc.toCreate, e)
			continue
		}
		bc.existing = append(bc.existing, prev)
		bc.updates = append(bc.updates, Update[T]{Candidate: e, Previous: prev})
	}

	r.logger.WithFields(logrus.Fields{
		"entities":  len(entities),
		"to_create": len(bc.toCreate),
		"existing":  len(bc.existing),
	}).Debug("batch reconciled")
	return bc, nil
}

// Reconcile 使用一次性的划分器划分实体
func Reconcile[T any](ctx context.Context, entities []T, upsert bool, idOf IDFunc[T], fetch FetchFunc[T]) (*BatchContext[T], error) {
	r, err := New(idOf, fetch)
	if err != nil {
		return nil, err
	}
	return r.Reconcile(ctx, entities, upsert)
}
