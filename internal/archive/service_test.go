package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fezalogistics/feza/internal/audit"
	"github.com/fezalogistics/feza/internal/nl2sql"
	"github.com/fezalogistics/feza/internal/query"
	"github.com/fezalogistics/feza/internal/retry"
	"github.com/fezalogistics/feza/internal/storage"
)

var testNow = time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)

func TestRunOnceArchivesBatchesUntilDrained(t *testing.T) {
	oldest := time.Date(2026, time.January, 2, 8, 0, 0, 0, time.UTC)
	repo := &fakeRepo{batches: [][]audit.Entry{
		{entryAt(oldest), entryAt(oldest.Add(time.Minute))},
		{entryAt(oldest.Add(time.Hour))},
	}}
	store := newFakeStore()
	svc := newTestService(repo, store, nil)

	summary, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if summary.EntriesArchived != 3 || summary.FilesWritten != 2 || summary.BytesWritten <= 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if repo.listCalls != 2 {
		t.Fatalf("ListBefore calls = %d", repo.listCalls)
	}
	wantCutoff := testNow.Add(-24 * time.Hour)
	if !repo.cutoff.Equal(wantCutoff) || repo.limit != 2 {
		t.Fatalf("cutoff = %s limit = %d", repo.cutoff, repo.limit)
	}

	if len(repo.archived) != 2 {
		t.Fatalf("archived batches = %d", len(repo.archived))
	}
	firstPath := "ai_chat_logs/year=2026/month=01/day=02/part-run-1-00000.parquet"
	if repo.archived[0].ObjectPath != firstPath || len(repo.archived[0].EntryIDs) != 2 {
		t.Fatalf("first batch = %+v", repo.archived[0])
	}
	if !repo.archived[0].MinCreated.Equal(oldest) || repo.archived[0].CreatedBy != "feza-archiver" {
		t.Fatalf("first batch = %+v", repo.archived[0])
	}
	if !strings.HasSuffix(repo.archived[1].ObjectPath, "part-run-1-00001.parquet") {
		t.Fatalf("second path = %s", repo.archived[1].ObjectPath)
	}
	if _, ok := store.objects[firstPath]; !ok {
		t.Fatal("expected uploaded parquet object")
	}
	if store.contentTypes[firstPath] != storage.ParquetContentType {
		t.Fatalf("content type = %q", store.contentTypes[firstPath])
	}
}

func TestRunOnceRetriesUploads(t *testing.T) {
	repo := &fakeRepo{batches: [][]audit.Entry{{entryAt(testNow.Add(-48 * time.Hour))}}}
	store := newFakeStore()
	store.failPuts = 2
	svc := newTestService(repo, store, nil)

	summary, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if store.putCalls != 3 || summary.FilesWritten != 1 {
		t.Fatalf("put calls = %d summary = %+v", store.putCalls, summary)
	}
}

func TestRunOnceKeepsEntriesWhenUploadFails(t *testing.T) {
	repo := &fakeRepo{batches: [][]audit.Entry{{entryAt(testNow.Add(-48 * time.Hour))}}}
	store := newFakeStore()
	store.failPuts = 10
	svc := newTestService(repo, store, nil)

	if _, err := svc.RunOnce(context.Background()); err == nil {
		t.Fatal("expected upload error")
	}
	if store.putCalls != 3 {
		t.Fatalf("put calls = %d", store.putCalls)
	}
	if len(repo.archived) != 0 {
		t.Fatal("entries must not be deleted when the upload failed")
	}
}

func TestRunOnceRemovesObjectWhenRecordFails(t *testing.T) {
	repo := &fakeRepo{
		batches:    [][]audit.Entry{{entryAt(testNow.Add(-48 * time.Hour))}},
		archiveErr: errors.New("serialization failure"),
	}
	store := newFakeStore()
	svc := newTestService(repo, store, nil)

	if _, err := svc.RunOnce(context.Background()); err == nil {
		t.Fatal("expected record error")
	}
	if len(store.objects) != 0 || store.deleteCalls != 1 {
		t.Fatalf("objects = %d deletes = %d", len(store.objects), store.deleteCalls)
	}
}

func TestRunOnceWithNothingToArchive(t *testing.T) {
	svc := newTestService(&fakeRepo{}, newFakeStore(), nil)
	summary, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if summary.EntriesArchived != 0 || summary.FilesWritten != 0 || summary.RunID != "run-1" {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestQueryRunsOverEveryArchive(t *testing.T) {
	repo := &fakeRepo{archives: []audit.ArchiveObject{
		{ObjectPath: "ai_chat_logs/a.parquet", SizeBytes: 100},
		{ObjectPath: "ai_chat_logs/b.parquet", SizeBytes: 200},
	}}
	engine := &recordingEngine{result: query.Result{Columns: []string{"c"}, Rows: []query.Row{{"c": int64(3)}}}}
	svc := newTestService(repo, newFakeStore(), engine)

	result, err := svc.Query(context.Background(), "SELECT COUNT(*) AS c FROM ai_chat_logs_archive")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("rows = %d", len(result.Rows))
	}
	if engine.request.SQL.String() != "SELECT COUNT(*) AS c FROM ai_chat_logs_archive LIMIT 100" {
		t.Fatalf("sql = %q", engine.request.SQL)
	}
	if len(engine.request.Files) != 2 || engine.request.Files[1].TableName != TableName || engine.request.Files[1].FileSizeBytes != 200 {
		t.Fatalf("files = %+v", engine.request.Files)
	}
}

func TestQueryRejectsWritesAndMissingArchives(t *testing.T) {
	engine := &recordingEngine{}
	svc := newTestService(&fakeRepo{}, newFakeStore(), engine)

	_, err := svc.Query(context.Background(), "DELETE FROM ai_chat_logs_archive")
	if !nl2sql.IsPolicyViolation(err) {
		t.Fatalf("expected policy violation, got %v", err)
	}
	if _, err := svc.Query(context.Background(), "SELECT * FROM ai_chat_logs_archive"); !errors.Is(err, ErrNoArchives) {
		t.Fatalf("expected ErrNoArchives, got %v", err)
	}
	if engine.calls != 0 {
		t.Fatalf("engine calls = %d", engine.calls)
	}
}

func newTestService(repo *fakeRepo, store *fakeStore, engine query.Engine) *Service {
	return &Service{
		Repo:        repo,
		ObjectStore: store,
		Engine:      engine,
		Config: Config{
			RetentionAge: 24 * time.Hour,
			BatchSize:    2,
			UploadRetry:  retry.Policy{MaxAttempts: 3},
		},
		Clock:    func() time.Time { return testNow },
		NewRunID: func() string { return "run-1" },
	}
}

func entryAt(created time.Time) audit.Entry {
	return audit.Entry{
		ID:           uuid.New(),
		UserID:       "42",
		SessionID:    "sess",
		Query:        "how many clients",
		ResponseType: "database",
		Status:       audit.StatusSuccess,
		CreatedAt:    created,
	}
}

type fakeRepo struct {
	batches    [][]audit.Entry
	archives   []audit.ArchiveObject
	archiveErr error
	listCalls  int
	cutoff     time.Time
	limit      int
	archived   []audit.ArchiveBatchInput
}

func (f *fakeRepo) ListBefore(_ context.Context, cutoff time.Time, limit int) ([]audit.Entry, error) {
	f.listCalls++
	f.cutoff = cutoff
	f.limit = limit
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

func (f *fakeRepo) ArchiveBatch(_ context.Context, in audit.ArchiveBatchInput) (audit.ArchiveObject, error) {
	if f.archiveErr != nil {
		return audit.ArchiveObject{}, f.archiveErr
	}
	f.archived = append(f.archived, in)
	return audit.ArchiveObject{
		ArchiveID:   int64(len(f.archived)),
		ObjectPath:  in.ObjectPath,
		RecordCount: int64(len(in.EntryIDs)),
		SizeBytes:   in.SizeBytes,
		MinCreated:  in.MinCreated,
		MaxCreated:  in.MaxCreated,
		CreatedBy:   in.CreatedBy,
	}, nil
}

func (f *fakeRepo) ListArchives(context.Context) ([]audit.ArchiveObject, error) {
	return f.archives, nil
}

type fakeStore struct {
	objects      map[string][]byte
	contentTypes map[string]string
	failPuts     int
	putCalls     int
	deleteCalls  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (s *fakeStore) Put(_ context.Context, key string, body io.Reader, _ int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	s.putCalls++
	if s.putCalls <= s.failPuts {
		return storage.ObjectInfo{}, errors.New("connection reset by peer")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	s.objects[key] = data
	s.contentTypes[key] = opts.ContentType
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (s *fakeStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeStore) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	data, ok := s.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	s.deleteCalls++
	delete(s.objects, key)
	return nil
}

type recordingEngine struct {
	result  query.Result
	request query.Request
	calls   int
}

func (e *recordingEngine) Execute(_ context.Context, req query.Request) (query.Result, error) {
	e.calls++
	e.request = req
	return e.result, nil
}
