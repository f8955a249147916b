package inventory

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/bililive-go/rowmigrate/src/pkg/reconcile"
	"github.com/bililive-go/rowmigrate/src/pkg/store"
	uuid "github.com/satori/go.uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/mock/gomock"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(store.Config{Path: filepath.Join(t.TempDir(), "items.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	_, err = s.Migrate()
	require.NoError(t, err)
	return s
}

func newItem(id, callNumber string) store.Item {
	return store.Item{
		ID:      id,
		Content: []byte(fmt.Sprintf(`{"id":%q,"effectiveCallNumberComponents":{"callNumber":%q}}`, id, callNumber)),
	}
}

func newID() string {
	return uuid.Must(uuid.NewV4()).String()
}

func TestParseItems(t *testing.T) {
	id := newID()
	items, err := ParseItems([]byte(fmt.Sprintf(`[{"id":%q,"barcode":"1"},{"barcode":"2"}]`, id)))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, id, items[0].ID)

	// 缺少 id 时生成并写回内容
	assert.NoError(t, store.ValidateID(items[1].ID))
	assert.Equal(t, items[1].ID, gjson.GetBytes(items[1].Content, "id").String())
	assert.Equal(t, "2", gjson.GetBytes(items[1].Content, "barcode").String())

	for _, payload := range []string{`{"id":"x"}`, `[1,2]`, `not json`} {
		_, err := ParseItems([]byte(payload))
		assert.ErrorIs(t, err, ErrInvalidPayload, payload)
	}
}

func TestSaveBatch_Create(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	publisher := NewMockPublisher(ctrl)

	items := []store.Item{newItem(newID(), "QA 9"), newItem(newID(), "QA 10")}
	publisher.EXPECT().Publish(gomock.Any(), gomock.Len(2)).DoAndReturn(func(_ context.Context, events []Event) error {
		for _, e := range events {
			assert.Equal(t, EventCreate, e.Type)
			assert.Nil(t, e.Old)
		}
		return nil
	})

	svc, err := NewService(s.DB(), WithPublisher(publisher))
	require.NoError(t, err)

	result, err := svc.SaveBatch(ctx, items, false)
	require.NoError(t, err)
	assert.Equal(t, []string{items[0].ID, items[1].ID}, result.Created)
	assert.Empty(t, result.Updated)

	got, err := store.GetByIDs(ctx, s.DB(), []string{items[0].ID})
	require.NoError(t, err)
	assert.Equal(t, "QA 0000000009", got[items[0].ID].EffectiveShelvingOrder.String)

	missing, err := store.Count(ctx, s.DB(), true)
	require.NoError(t, err)
	assert.Zero(t, missing)
}

func TestSaveBatch_Upsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	publisher := NewMockPublisher(ctrl)

	existing := newItem(newID(), "PR 1")
	_, err := store.InsertBatch(ctx, s.DB(), []store.Item{existing})
	require.NoError(t, err)

	changed := newItem(existing.ID, "PR 2")
	fresh := newItem(newID(), "PR 3")

	publisher.EXPECT().Publish(gomock.Any(), gomock.Len(2)).DoAndReturn(func(_ context.Context, events []Event) error {
		assert.Equal(t, EventCreate, events[0].Type)
		assert.Equal(t, fresh.ID, events[0].ID)
		assert.Equal(t, EventUpdate, events[1].Type)
		require.NotNil(t, events[1].Old)
		assert.JSONEq(t, string(existing.Content), string(events[1].Old.Content))
		return errors.New("broker unavailable")
	})

	svc, err := NewService(s.DB(), WithPublisher(publisher))
	require.NoError(t, err)

	// 发布失败不影响已提交的写入
	result, err := svc.SaveBatch(ctx, []store.Item{changed, fresh}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{fresh.ID}, result.Created)
	assert.Equal(t, []string{existing.ID}, result.Updated)

	got, err := store.GetByIDs(ctx, s.DB(), []string{existing.ID})
	require.NoError(t, err)
	assert.Equal(t, "PR 0000000002", got[existing.ID].EffectiveShelvingOrder.String)
}

func TestSaveBatch_DuplicateWithoutUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	publisher := NewMockPublisher(ctrl)

	existing := newItem(newID(), "PR 1")
	_, err := store.InsertBatch(ctx, s.DB(), []store.Item{existing})
	require.NoError(t, err)

	svc, err := NewService(s.DB(), WithPublisher(publisher))
	require.NoError(t, err)

	// 整批回滚，不发布事件
	_, err = svc.SaveBatch(ctx, []store.Item{newItem(newID(), "A 1"), existing}, false)
	assert.Error(t, err)

	total, err := store.Count(ctx, s.DB(), false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestSaveBatch_PublishDisabled(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	// 未设置期望，任何 Publish 调用都会使测试失败
	publisher := NewMockPublisher(ctrl)

	existing := newItem(newID(), "PR 1")
	_, err := store.InsertBatch(ctx, s.DB(), []store.Item{existing})
	require.NoError(t, err)

	svc, err := NewService(s.DB(), WithPublisher(publisher), WithPublishEvents(false))
	require.NoError(t, err)

	result, err := svc.SaveBatch(ctx, []store.Item{newItem(existing.ID, "PR 2"), newItem(newID(), "PR 3")}, true)
	require.NoError(t, err)
	assert.Len(t, result.Created, 1)
	assert.Equal(t, []string{existing.ID}, result.Updated)
}

func TestSaveBatch_InvalidID(t *testing.T) {
	s := newTestStore(t)
	svc, err := NewService(s.DB(), WithPublishEvents(false))
	require.NoError(t, err)

	_, err = svc.SaveBatch(context.Background(), []store.Item{newItem("not-a-uuid", "A 1")}, true)
	assert.ErrorIs(t, err, store.ErrInvalidID)
	var fe *reconcile.FetchError
	assert.False(t, errors.As(err, &fe))
}

func TestNewService_NilDB(t *testing.T) {
	_, err := NewService(nil)
	assert.Error(t, err)
}
