package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	uuid "github.com/satori/go.uuid"
)

const itemsTable = "items"

// insertChunk 单条 INSERT 语句最多写入的行数
const insertChunk = 200

var itemColumns = []string{"id", "jsonb", "effective_shelving_order"}

// ErrInvalidID 物品 id 不是合法的 UUID
var ErrInvalidID = errors.New("invalid item id")

// Item 物品记录
type Item struct {
	ID                     string         `db:"id" json:"id"`
	Content                types.JSONText `db:"jsonb" json:"content"`
	EffectiveShelvingOrder sql.NullString `db:"effective_shelving_order" json:"-"`
}

// ValidateID 校验 id 格式
func ValidateID(id string) error {
	if _, err := uuid.FromString(id); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// GetByIDs 一次查询取回所有给定 id 的物品，不存在的 id 不出现在结果中
func GetByIDs(ctx context.Context, q sqlx.QueryerContext, ids []string) (map[string]Item, error) {
	result := make(map[string]Item, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	for _, id := range ids {
		if err := ValidateID(id); err != nil {
			return nil, err
		}
	}

	query, args, err := sq.Select(itemColumns...).From(itemsTable).Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var items []Item
	if err := sqlx.SelectContext(ctx, q, &items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch items: %w", err)
	}
	for _, item := range items {
		result[item.ID] = item
	}
	return result, nil
}

// InsertBatch 批量插入物品
func InsertBatch(ctx context.Context, e sqlx.ExecerContext, items []Item) (int, error) {
	inserted := 0
	for start := 0; start < len(items); start += insertChunk {
		end := min(start+insertChunk, len(items))

		builder := sq.Insert(itemsTable).Columns(itemColumns...)
		for _, item := range items[start:end] {
			builder = builder.Values(item.ID, string(item.Content), item.EffectiveShelvingOrder)
		}
		query, args, err := builder.ToSql()
		if err != nil {
			return inserted, fmt.Errorf("failed to build insert: %w", err)
		}

		res, err := e.ExecContext(ctx, query, args...)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert items: %w", err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}
	return inserted, nil
}

// UpdateBatch 按 id 更新物品内容与排架号
func UpdateBatch(ctx context.Context, e sqlx.ExecerContext, items []Item) (int, error) {
	updated := 0
	for _, item := range items {
		query, args, err := sq.Update(itemsTable).
			Set("jsonb", string(item.Content)).
			Set("effective_shelving_order", item.EffectiveShelvingOrder).
			Set("updated_at", sq.Expr("CURRENT_TIMESTAMP")).
			Where(sq.Eq{"id": item.ID}).
			ToSql()
		if err != nil {
			return updated, fmt.Errorf("failed to build update: %w", err)
		}

		res, err := e.ExecContext(ctx, query, args...)
		if err != nil {
			return updated, fmt.Errorf("failed to update item %s: %w", item.ID, err)
		}
		n, _ := res.RowsAffected()
		updated += int(n)
	}
	return updated, nil
}

// StreamMissingShelvingOrder 打开一个遍历所有缺少排架号物品的游标
func StreamMissingShelvingOrder(ctx context.Context, q sqlx.QueryerContext) (*RowCursor[Item], error) {
	query, args, err := sq.Select(itemColumns...).
		From(itemsTable).
		Where(sq.Eq{"effective_shelving_order": nil}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := q.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to open cursor: %w", err)
	}
	return NewRowCursor[Item](rows), nil
}

// Count 统计物品数，missingOnly 为 true 时只统计缺少排架号的物品
func Count(ctx context.Context, q sqlx.QueryerContext, missingOnly bool) (int64, error) {
	builder := sq.Select("COUNT(*)").From(itemsTable)
	if missingOnly {
		builder = builder.Where(sq.Eq{"effective_shelving_order": nil})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, err
	}

	var n int64
	if err := sqlx.GetContext(ctx, q, &n, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return n, nil
}
