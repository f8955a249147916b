package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/bililive-go/rowmigrate/src/pkg/batchstream"
	"github.com/jmoiron/sqlx"
	uuid "github.com/satori/go.uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "items.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.Migrate()
	require.NoError(t, err)
	return s
}

func newItem(i int) Item {
	return Item{
		ID:      uuid.Must(uuid.NewV4()).String(),
		Content: []byte(fmt.Sprintf(`{"barcode":"%04d"}`, i)),
	}
}

func seedItems(t *testing.T, s *Store, n int) []Item {
	t.Helper()
	items := make([]Item, n)
	for i := range items {
		items[i] = newItem(i)
	}
	inserted, err := InsertBatch(context.Background(), s.DB(), items)
	require.NoError(t, err)
	require.Equal(t, n, inserted)
	return items
}

func TestStore_Migrate(t *testing.T) {
	s := newTestStore(t)

	// 再次执行不做任何改变
	result, err := s.Migrate()
	require.NoError(t, err)
	assert.Equal(t, uint(1), result.FromVersion)
	assert.Equal(t, uint(1), result.ToVersion)
	assert.False(t, result.WasDirty)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestGetByIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	items := seedItems(t, s, 3)

	missing := uuid.Must(uuid.NewV4()).String()
	got, err := GetByIDs(ctx, s.DB(), []string{items[0].ID, items[2].ID, missing})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.JSONEq(t, `{"barcode":"0000"}`, string(got[items[0].ID].Content))
	assert.NotContains(t, got, missing)

	got, err = GetByIDs(ctx, s.DB(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = GetByIDs(ctx, s.DB(), []string{items[0].ID, "not-a-uuid"})
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestInsertBatch_Chunks(t *testing.T) {
	s := newTestStore(t)
	seedItems(t, s, insertChunk*2+7)

	n, err := Count(context.Background(), s.DB(), false)
	require.NoError(t, err)
	assert.Equal(t, int64(insertChunk*2+7), n)
}

func TestInsertBatch_Duplicate(t *testing.T) {
	s := newTestStore(t)
	items := seedItems(t, s, 1)

	_, err := InsertBatch(context.Background(), s.DB(), items)
	assert.Error(t, err)
}

func TestUpdateBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	items := seedItems(t, s, 2)

	items[0].Content = []byte(`{"barcode":"changed"}`)
	items[0].EffectiveShelvingOrder = sql.NullString{String: "A 1", Valid: true}
	ghost := newItem(9)

	n, err := UpdateBatch(ctx, s.DB(), []Item{items[0], ghost})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := GetByIDs(ctx, s.DB(), []string{items[0].ID})
	require.NoError(t, err)
	assert.JSONEq(t, `{"barcode":"changed"}`, string(got[items[0].ID].Content))
	assert.Equal(t, "A 1", got[items[0].ID].EffectiveShelvingOrder.String)
}

func TestCount_MissingShelvingOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	items := seedItems(t, s, 3)

	items[0].EffectiveShelvingOrder = sql.NullString{String: "QA 11", Valid: true}
	_, err := UpdateBatch(ctx, s.DB(), items[:1])
	require.NoError(t, err)

	missing, err := Count(ctx, s.DB(), true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), missing)

	total, err := Count(ctx, s.DB(), false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestRowCursor_Batches(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedItems(t, s, 250)

	tx, err := s.DB().BeginTxx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	cursor, err := StreamMissingShelvingOrder(ctx, tx)
	require.NoError(t, err)

	acc, err := batchstream.Wrap[Item](cursor, 100)
	require.NoError(t, err)

	var sizes []int
	done := make(chan error, 1)
	acc.EndHandler(func() { done <- nil }).
		ErrorHandler(func(err error) { done <- err }).
		Handler(func(batch []Item) error {
			sizes = append(sizes, len(batch))
			return nil
		})

	require.NoError(t, <-done)
	require.NoError(t, cursor.Close())
	assert.Equal(t, []int{100, 100, 50}, sizes)

	// 重复关闭不报错
	assert.NoError(t, cursor.Close())
}

func TestRowCursor_PauseAndFetch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedItems(t, s, 10)

	rows, err := s.DB().QueryxContext(ctx, "SELECT id, jsonb, effective_shelving_order FROM items")
	require.NoError(t, err)
	cursor := NewRowCursor[Item](rows)

	cursor.Pause()
	got := make(chan Item, 10)
	cursor.Handler(func(item Item) { got <- item })

	select {
	case <-got:
		t.Fatal("paused cursor delivered a row")
	case <-time.After(50 * time.Millisecond):
	}

	cursor.Fetch(3)
	for i := 0; i < 3; i++ {
		select {
		case <-got:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for fetched rows")
		}
	}

	select {
	case <-got:
		t.Fatal("cursor delivered more rows than requested")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, cursor.Close())
}

func TestRowCursor_CloseBeforeHandler(t *testing.T) {
	s := newTestStore(t)
	rows, err := s.DB().QueryxContext(context.Background(), "SELECT id FROM items")
	require.NoError(t, err)

	cursor := NewRowCursorWithScan(rows, func(rows *sqlx.Rows) (string, error) {
		var id string
		err := rows.Scan(&id)
		return id, err
	})
	require.NoError(t, cursor.Close())

	// 关闭后注册处理器不会再启动投递
	cursor.Handler(func(string) { t.Fatal("closed cursor delivered a row") })
}

func TestRowCursor_ScanError(t *testing.T) {
	s := newTestStore(t)
	seedItems(t, s, 1)

	rows, err := s.DB().QueryxContext(context.Background(), "SELECT id, jsonb, 1 AS unknown_column FROM items")
	require.NoError(t, err)
	cursor := NewRowCursor[Item](rows)

	errs := make(chan error, 1)
	cursor.ErrorHandler(func(err error) { errs <- err })
	cursor.Handler(func(Item) { t.Error("row with unknown column was delivered") })

	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for scan error")
	}
	require.NoError(t, cursor.Close())
}
