//go:generate go run go.uber.org/mock/mockgen -package inventory -destination mock_test.go github.com/bililive-go/rowmigrate/src/pkg/inventory Publisher

// Package inventory 物品的批量写入
package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bililive-go/rowmigrate/src/pkg/reconcile"
	"github.com/bililive-go/rowmigrate/src/pkg/shelving"
	"github.com/bililive-go/rowmigrate/src/pkg/store"
	"github.com/buger/jsonparser"
	"github.com/jmoiron/sqlx"
	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// ErrInvalidPayload 请求体不是物品数组
var ErrInvalidPayload = errors.New("payload must be a JSON array of item objects")

// EventType 领域事件类型
type EventType string

const (
	EventCreate EventType = "CREATE"
	EventUpdate EventType = "UPDATE"
)

// Event 物品写入后的领域事件
type Event struct {
	Type EventType   `json:"type"`
	ID   string      `json:"id"`
	Old  *store.Item `json:"old,omitempty"`
	New  store.Item  `json:"new"`
}

// Publisher 发布领域事件
type Publisher interface {
	Publish(ctx context.Context, events []Event) error
}

type logPublisher struct {
	logger *logrus.Entry
}

func (p logPublisher) Publish(_ context.Context, events []Event) error {
	for _, e := range events {
		p.logger.WithFields(logrus.Fields{
			"type": e.Type,
			"id":   e.ID,
		}).Info("item event")
	}
	return nil
}

// SaveResult 批量写入的结果
type SaveResult struct {
	Created []string `json:"created"`
	Updated []string `json:"updated"`
}

// Option 配置项
type Option func(*Service)

// WithPublisher 设置事件发布器
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithPublishEvents 设置写入后是否发布事件
func WithPublishEvents(publish bool) Option {
	return func(s *Service) {
		s.publishEvents = publish
	}
}

// Service 物品批量写入服务
type Service struct {
	db            *sqlx.DB
	publisher     Publisher
	publishEvents bool
	logger        *logrus.Entry
}

// NewService 创建服务
func NewService(db *sqlx.DB, opts ...Option) (*Service, error) {
	if db == nil {
		return nil, errors.New("db must not be nil")
	}
	s := &Service{
		db:            db,
		publishEvents: true,
		logger:        logrus.WithField("component", "inventory"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.publisher == nil {
		s.publisher = logPublisher{logger: s.logger}
	}
	return s, nil
}

// ParseItems 解析物品数组，缺少 id 的物品会生成新的 id
func ParseItems(payload []byte) ([]store.Item, error) {
	if !gjson.ValidBytes(payload) {
		return nil, ErrInvalidPayload
	}
	root := gjson.ParseBytes(payload)
	if !root.IsArray() {
		return nil, ErrInvalidPayload
	}

	var items []store.Item
	var err error
	root.ForEach(func(_, value gjson.Result) bool {
		if !value.IsObject() {
			err = ErrInvalidPayload
			return false
		}
		content := []byte(value.Raw)
		id := value.Get("id").String()
		if id == "" {
			id = uuid.Must(uuid.NewV4()).String()
			content, err = jsonparser.Set(content, []byte(`"`+id+`"`), "id")
			if err != nil {
				return false
			}
		}
		items = append(items, store.Item{ID: id, Content: content})
		return true
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// SaveBatch 在一个事务中写入一批物品
//
// upsert 为 true 时已存在的物品被更新，否则全部插入，重复的 id 会导致整批失败。
func (s *Service) SaveBatch(ctx context.Context, items []store.Item, upsert bool) (*SaveResult, error) {
	for _, item := range items {
		if err := store.ValidateID(item.ID); err != nil {
			return nil, err
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.logger.WithError(err).Warn("failed to rollback item batch")
		}
	}()

	reconciler, err := reconcile.New(
		func(item store.Item) string { return item.ID },
		func(ctx context.Context, ids []string) (map[string]store.Item, error) {
			return store.GetByIDs(ctx, tx, ids)
		},
		reconcile.WithPublishEvents(s.publishEvents),
		reconcile.WithLogger(s.logger),
	)
	if err != nil {
		return nil, err
	}
	bc, err := reconciler.Reconcile(ctx, items, upsert)
	if err != nil {
		return nil, err
	}

	toCreate, err := shelving.ApplyAll(bc.ToCreate())
	if err != nil {
		return nil, err
	}
	updates := bc.Updates()
	toUpdate := make([]store.Item, len(updates))
	for i, u := range updates {
		if toUpdate[i], err = shelving.Apply(u.Candidate); err != nil {
			return nil, err
		}
	}

	if _, err := store.InsertBatch(ctx, tx, toCreate); err != nil {
		return nil, err
	}
	if _, err := store.UpdateBatch(ctx, tx, toUpdate); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit item batch: %w", err)
	}

	result := &SaveResult{Created: make([]string, 0, len(toCreate)), Updated: make([]string, 0, len(toUpdate))}
	events := make([]Event, 0, len(toCreate)+len(toUpdate))
	for _, item := range toCreate {
		result.Created = append(result.Created, item.ID)
		events = append(events, Event{Type: EventCreate, ID: item.ID, New: item})
	}
	for i, item := range toUpdate {
		result.Updated = append(result.Updated, item.ID)
		prev := updates[i].Previous
		events = append(events, Event{Type: EventUpdate, ID: item.ID, Old: &prev, New: item})
	}

	s.logger.WithFields(logrus.Fields{
		"created": len(result.Created),
		"updated": len(result.Updated),
	}).Debug("item batch saved")

	if bc.PublishEvents() && len(events) > 0 {
		// 写入已提交，发布失败只记录日志
		if err := s.publisher.Publish(ctx, events); err != nil {
			s.logger.WithError(err).Error("failed to publish item events")
		}
	}
	return result, nil
}
