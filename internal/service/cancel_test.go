package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigkaa/chanstore/internal/channel"
	"github.com/bigkaa/chanstore/internal/domain/model"
	"github.com/bigkaa/chanstore/internal/storage/journal"
	"github.com/bigkaa/chanstore/internal/storage/recordstore"
)

// disconnectingClient отменяет контекст запроса сразу после успешного
// вызова канала, как при закрытии вкладки браузера.
type disconnectingClient struct {
	*fakeClient
	cancel context.CancelFunc
}

func (c *disconnectingClient) SendDocument(ctx context.Context, fileName string, data []byte, caption string) (*channel.SentFile, error) {
	sent, err := c.fakeClient.SendDocument(ctx, fileName, data, caption)
	c.cancel()
	return sent, err
}

func (c *disconnectingClient) DeleteMessage(ctx context.Context, messageID int64) error {
	err := c.fakeClient.DeleteMessage(ctx, messageID)
	c.cancel()
	return err
}

func newDisconnectEnv(t *testing.T) (*SyncService, *disconnectingClient, *recordstore.JSONFile, context.Context) {
	t.Helper()
	dir := t.TempDir()

	j, err := journal.New(filepath.Join(dir, "journal"), testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	client := &disconnectingClient{fakeClient: newFakeClient(), cancel: cancel}
	store := recordstore.NewJSONFile(filepath.Join(dir, "messages.json"))
	svc := NewSyncService(client, store, j, Options{UploadConcurrency: 1, DeleteConcurrency: 1}, testLogger())
	return svc, client, store, ctx
}

func TestIngest_ClientDisconnectStillRecords(t *testing.T) {
	svc, client, store, ctx := newDisconnectEnv(t)

	res, serr := svc.Ingest(ctx, pdf("report.pdf"))
	require.Nil(t, serr)
	require.Error(t, ctx.Err(), "контекст отменён во время отправки")
	assert.True(t, client.messages[res.Record.MessageID])

	records, err := store.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.FileRecord{res.Record}, records)

	orphans, serr := svc.ListOrphans(context.Background())
	require.Nil(t, serr)
	assert.Empty(t, orphans)
}

func TestBulkDelete_ClientDisconnectStillRemoves(t *testing.T) {
	svc, client, store, ctx := newDisconnectEnv(t)
	require.NoError(t, store.ReplaceAll(context.Background(), []model.FileRecord{
		{FileName: "a.pdf", MessageID: 502, FileHandle: "A"},
	}))
	client.messages[502] = true

	res, serr := svc.BulkDelete(ctx, []int64{502})
	require.Nil(t, serr)
	require.Error(t, ctx.Err())
	assert.Equal(t, []int64{502}, res.Success)
	assert.Empty(t, res.Failure)
	assert.False(t, client.messages[502])

	records, err := store.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDiscardOrphan_ClientDisconnectStillRemoves(t *testing.T) {
	svc, client, store, ctx := newDisconnectEnv(t)

	rec := model.FileRecord{FileName: "report.pdf", MessageID: 503, FileHandle: "AgAD-503"}
	client.messages[503] = true
	// Запись успела попасть в хранилище до сбоя журнала
	require.NoError(t, store.ReplaceAll(context.Background(), []model.FileRecord{rec}))

	entry, err := svc.journal.Start("report.pdf")
	require.NoError(t, err)
	require.NoError(t, svc.journal.MarkOrphaned(entry.TxID, rec, "сбой"))

	require.Nil(t, svc.DiscardOrphan(ctx, entry.TxID))
	require.Error(t, ctx.Err())
	assert.False(t, client.messages[503])

	records, err := store.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}
