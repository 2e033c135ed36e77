package recordstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigkaa/chanstore/internal/domain/model"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func sampleRecords() []model.FileRecord {
	thumb := "TH"
	return []model.FileRecord{
		{FileName: "report.pdf", MimeType: "application/pdf", MessageID: 501, FileHandle: "AgAD-report", CreatedAt: 1700000000000},
		{FileName: "clip.mp4", MimeType: "video/mp4", MessageID: 502, FileHandle: "AgAD-clip", ThumbHandle: &thumb, CreatedAt: 1700000001000},
	}
}

// storeContract — общие свойства всех backend'ов.
func storeContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	// Пустое хранилище — пустая коллекция без ошибки
	records, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)

	// Запись и чтение
	require.NoError(t, store.ReplaceAll(ctx, sampleRecords()))
	records, err = store.LoadAll(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, sampleRecords(), records)

	// Полная замена
	require.NoError(t, store.ReplaceAll(ctx, sampleRecords()[:1]))
	records, err = store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(501), records[0].MessageID)
	assert.Nil(t, records[0].ThumbHandle)

	// Пустая коллекция
	require.NoError(t, store.ReplaceAll(ctx, nil))
	records, err = store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

// --- JSON ---

func TestJSONFile_Contract(t *testing.T) {
	store := NewJSONFile(filepath.Join(t.TempDir(), "nested", "messages.json"))
	storeContract(t, store)
}

func TestJSONFile_Layout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.json")
	store := NewJSONFile(path)

	require.NoError(t, store.ReplaceAll(context.Background(), sampleRecords()[:1]))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t,
		`[{"fileName":"report.pdf","mimetype":"application/pdf","message_id":501,"file_id":"AgAD-report","thumb_file_id":null,"date":1700000000000}]`,
		string(data))
	assert.Contains(t, string(data), "\n  {", "файл пишется с отступами")

	leftovers, err := filepath.Glob(path + ".*.tmp")
	require.NoError(t, err)
	assert.Empty(t, leftovers, "временный файл не должен оставаться")
}

// Два экземпляра над одним файлом (сервер и CLI) пишут одновременно:
// итоговый файл всегда целиком от одного из писателей.
func TestJSONFile_ConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.json")
	first := NewJSONFile(path)
	second := NewJSONFile(path)

	big := make([]model.FileRecord, 200)
	for i := range big {
		big[i] = model.FileRecord{FileName: fmt.Sprintf("file-%d.bin", i), MessageID: int64(i + 1), FileHandle: "AgAD"}
	}
	small := sampleRecords()[:1]

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, first.ReplaceAll(context.Background(), big))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, second.ReplaceAll(context.Background(), small))
		}()
	}
	wg.Wait()

	records, err := first.LoadAll(context.Background())
	require.NoError(t, err, "файл не должен быть повреждён")
	assert.Contains(t, []int{len(big), len(small)}, len(records))

	leftovers, err := filepath.Glob(path + ".*.tmp")
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestJSONFile_CorruptIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.json")
	require.NoError(t, os.WriteFile(path, []byte("[{broken"), 0o600))

	_, err := NewJSONFile(path).LoadAll(context.Background())
	assert.Error(t, err, "повреждённый файл не должен читаться как пустой")
}

func TestJSONFile_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.json")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	records, err := NewJSONFile(path).LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestJSONFile_ReplaceFailure(t *testing.T) {
	dir := t.TempDir()
	// Путь к файлу занят директорией — rename не пройдёт
	path := filepath.Join(dir, "messages.json")
	require.NoError(t, os.MkdirAll(filepath.Join(path, "child"), 0o750))

	err := NewJSONFile(path).ReplaceAll(context.Background(), sampleRecords())
	assert.Error(t, err)
}

// --- Badger ---

func TestBadger_Contract(t *testing.T) {
	store, err := OpenBadger("", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	storeContract(t, store)
}

func TestBadger_Persistent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := OpenBadger(dir, testLogger())
	require.NoError(t, err)
	require.NoError(t, store.ReplaceAll(ctx, sampleRecords()))
	require.NoError(t, store.Close())

	reopened, err := OpenBadger(dir, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	records, err := reopened.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

// --- S3 ---

// fakeS3 — хранилище объектов в памяти.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	getErr  error
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey", Message: "The specified key does not exist."}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Bucket+"/"+*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func TestS3_Contract(t *testing.T) {
	storeContract(t, newS3WithClient(newFakeS3(), "bucket", "messages.json"))
}

func TestS3_Errors(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	store := newS3WithClient(fake, "bucket", "messages.json")

	fake.getErr = &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}
	_, err := store.LoadAll(ctx)
	assert.Error(t, err, "ошибка доступа не равна пустому хранилищу")

	fake.putErr = errors.New("сеть недоступна")
	assert.Error(t, store.ReplaceAll(ctx, sampleRecords()))
}

func TestS3_NotFoundCode(t *testing.T) {
	assert.True(t, isNoSuchKey(&smithy.GenericAPIError{Code: "NotFound"}))
	assert.False(t, isNoSuchKey(errors.New("NoSuchKey")))
}

// --- PostgreSQL ---

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/cs?sslmode=disable", migrateURL("postgres://u:p@db:5432/cs?sslmode=disable"))
	assert.Equal(t, "pgx5://u:p@db/cs", migrateURL("postgresql://u:p@db/cs"))
}

// --- Readiness ---

func TestReadinessChecker(t *testing.T) {
	status, _ := NewReadinessChecker(NewJSONFile(filepath.Join(t.TempDir(), "m.json"))).CheckReady()
	assert.Equal(t, "ok", status)

	fake := newFakeS3()
	fake.getErr = errors.New("timeout")
	status, msg := NewReadinessChecker(newS3WithClient(fake, "b", "k")).CheckReady()
	assert.Equal(t, "fail", status)
	assert.Contains(t, msg, "timeout")
}
