package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bigkaa/chanstore/internal/channel"
	"github.com/bigkaa/chanstore/internal/domain/model"
	"github.com/bigkaa/chanstore/internal/storage/journal"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeClient — канал в памяти.
type fakeClient struct {
	mu sync.Mutex

	nextID int64
	// messages — существующие сообщения канала
	messages map[int64]bool
	// sendErr — ошибки отправки по имени файла
	sendErr map[string]error
	// deleteErr — ошибки удаления по id
	deleteErr map[int64]error
	// links — ссылки по file_id; отсутствие — ошибка getFile
	links map[string]string

	sendCalls    int
	deleteCalls  int
	resolveCalls int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		nextID:    500,
		messages:  map[int64]bool{},
		sendErr:   map[string]error{},
		deleteErr: map[int64]error{},
		links:     map[string]string{},
	}
}

func (c *fakeClient) SendDocument(_ context.Context, fileName string, _ []byte, _ string) (*channel.SentFile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendCalls++

	if err := c.sendErr[fileName]; err != nil {
		if errors.Is(err, channel.ErrNoFileHandle) {
			c.nextID++
			c.messages[c.nextID] = true
			return &channel.SentFile{MessageID: c.nextID}, err
		}
		return nil, err
	}

	c.nextID++
	id := c.nextID
	c.messages[id] = true
	handle := fmt.Sprintf("AgAD-%d", id)
	raw, _ := json.Marshal(map[string]any{"message_id": id, "document": map[string]string{"file_id": handle}})
	return &channel.SentFile{MessageID: id, FileHandle: handle, MimeType: "application/pdf", Raw: raw}, nil
}

func (c *fakeClient) DeleteMessage(_ context.Context, messageID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleteCalls++

	if err := c.deleteErr[messageID]; err != nil {
		return err
	}
	if !c.messages[messageID] {
		return &channel.APIError{Method: "deleteMessage", Code: 400, Description: "Bad Request: message to delete not found"}
	}
	delete(c.messages, messageID)
	return nil
}

func (c *fakeClient) ResolveFileURL(_ context.Context, fileHandle string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolveCalls++

	link, ok := c.links[fileHandle]
	if !ok {
		return "", &channel.APIError{Method: "getFile", Code: 400, Description: "Bad Request: invalid file_id"}
	}
	return link, nil
}

func (c *fakeClient) calls() (send, del, resolve int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendCalls, c.deleteCalls, c.resolveCalls
}

// fakeStore — хранилище записей в памяти с управляемыми сбоями.
type fakeStore struct {
	mu           sync.Mutex
	records      []model.FileRecord
	loadErr      error
	replaceErr   error
	replaceCalls int
}

func (s *fakeStore) LoadAll(_ context.Context) ([]model.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	out := make([]model.FileRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *fakeStore) ReplaceAll(_ context.Context, records []model.FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceCalls++
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.records = make([]model.FileRecord, len(records))
	copy(s.records, records)
	return nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) snapshot() []model.FileRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.FileRecord, len(s.records))
	copy(out, s.records)
	return out
}

func (s *fakeStore) setErrors(loadErr, replaceErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadErr = loadErr
	s.replaceErr = replaceErr
}

func (s *fakeStore) replaces() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaceCalls
}

// testEnv — ядро с фейковым каналом, хранилищем и настоящим журналом.
type testEnv struct {
	svc     *SyncService
	client  *fakeClient
	store   *fakeStore
	journal *journal.Journal
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()

	j, err := journal.New(filepath.Join(t.TempDir(), "journal"), testLogger())
	if err != nil {
		t.Fatalf("журнал: %v", err)
	}

	if opts.UploadConcurrency == 0 {
		opts.UploadConcurrency = 3
	}
	if opts.DeleteConcurrency == 0 {
		opts.DeleteConcurrency = 5
	}

	client := newFakeClient()
	store := &fakeStore{}
	return &testEnv{
		svc:     NewSyncService(client, store, j, opts, testLogger()),
		client:  client,
		store:   store,
		journal: j,
	}
}
