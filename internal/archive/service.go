package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fezalogistics/feza/internal/audit"
	"github.com/fezalogistics/feza/internal/config"
	"github.com/fezalogistics/feza/internal/nl2sql"
	"github.com/fezalogistics/feza/internal/query"
	"github.com/fezalogistics/feza/internal/retry"
	"github.com/fezalogistics/feza/internal/storage"
)

const (
	Dataset   = "ai_chat_logs"
	TableName = "ai_chat_logs_archive"
)

var ErrNoArchives = errors.New("no archived interaction logs")

type Repository interface {
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]audit.Entry, error)
	ArchiveBatch(ctx context.Context, in audit.ArchiveBatchInput) (audit.ArchiveObject, error)
	ListArchives(ctx context.Context) ([]audit.ArchiveObject, error)
}

type Config struct {
	Interval         time.Duration
	RetentionAge     time.Duration
	BatchSize        int
	MaxBatchesPerRun int
	CreatedBy        string
	UploadRetry      retry.Policy
}

func ConfigFrom(cfg config.ArchiveConfig) Config {
	return Config{
		Interval:     cfg.Interval,
		RetentionAge: cfg.RetentionAge,
		BatchSize:    cfg.BatchSize,
		CreatedBy:    cfg.CreatedBy,
	}
}

// Service moves interaction-log entries past their retention age into
// parquet files in object storage and answers read-only queries over them.
type Service struct {
	Repo        Repository
	ObjectStore storage.ObjectStore
	Engine      query.Engine
	Guard       *nl2sql.Guard
	Config      Config
	Logger      *slog.Logger
	Clock       func() time.Time
	NewRunID    func() string
}

type RunSummary struct {
	RunID           string `json:"run_id"`
	EntriesArchived int64  `json:"entries_archived"`
	FilesWritten    int    `json:"files_written"`
	BytesWritten    int64  `json:"bytes_written"`
}

func (s *Service) Run(ctx context.Context) error {
	s.ensureDefaults()

	ticker := time.NewTicker(s.Config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			summary, err := s.RunOnce(ctx)
			if err != nil {
				if s.Logger != nil {
					s.Logger.ErrorContext(ctx, "archive cycle failed", slog.Any("error", err), slog.Any("summary", summary))
				}
				continue
			}
			if s.Logger != nil {
				s.Logger.InfoContext(ctx, "archive cycle completed", slog.Any("summary", summary))
			}
		}
	}
}

// RunOnce archives up to MaxBatchesPerRun batches of entries older than the
// retention age. Each batch is uploaded before its rows are deleted.
func (s *Service) RunOnce(ctx context.Context) (RunSummary, error) {
	s.ensureDefaults()
	if s.Repo == nil {
		return RunSummary{}, fmt.Errorf("archive repository is required")
	}
	if s.ObjectStore == nil {
		return RunSummary{}, fmt.Errorf("object store is required")
	}

	summary := RunSummary{RunID: s.NewRunID()}
	cutoff := s.Clock().UTC().Add(-s.Config.RetentionAge)

	for sequence := 0; sequence < s.Config.MaxBatchesPerRun; sequence++ {
		entries, err := s.Repo.ListBefore(ctx, cutoff, s.Config.BatchSize)
		if err != nil {
			archiveRunsTotal.WithLabelValues("error").Inc()
			return summary, fmt.Errorf("list entries before %s: %w", cutoff.Format(time.RFC3339), err)
		}
		if len(entries) == 0 {
			break
		}

		archived, err := s.archiveBatch(ctx, summary.RunID, sequence, entries)
		if err != nil {
			archiveRunsTotal.WithLabelValues("error").Inc()
			return summary, err
		}
		summary.EntriesArchived += archived.RecordCount
		summary.FilesWritten++
		summary.BytesWritten += archived.SizeBytes
		archiveEntriesTotal.Add(float64(archived.RecordCount))
		archiveBytesTotal.Add(float64(archived.SizeBytes))

		if len(entries) < s.Config.BatchSize {
			break
		}
	}

	archiveRunsTotal.WithLabelValues("success").Inc()
	return summary, nil
}

func (s *Service) archiveBatch(ctx context.Context, runID string, sequence int, entries []audit.Entry) (audit.ArchiveObject, error) {
	encoded, err := EncodeEntries(entries)
	if err != nil {
		return audit.ArchiveObject{}, fmt.Errorf("encode batch %d: %w", sequence, err)
	}
	objectPath, err := storage.BuildArchivePath(Dataset, encoded.MinCreated, runID, sequence)
	if err != nil {
		return audit.ArchiveObject{}, err
	}

	var info storage.ObjectInfo
	attempts, err := retry.Do(ctx, s.Config.UploadRetry, func(err error) bool {
		return ctx.Err() == nil
	}, func(ctx context.Context, attempt int) error {
		var putErr error
		info, putErr = s.ObjectStore.Put(ctx, objectPath, bytes.NewReader(encoded.Data), int64(len(encoded.Data)), storage.PutOptions{
			ContentType: storage.ParquetContentType,
		})
		if putErr != nil && s.Logger != nil {
			s.Logger.WarnContext(ctx, "archive upload attempt failed",
				slog.String("object_path", objectPath),
				slog.Int("attempt", attempt),
				slog.Any("error", putErr),
			)
		}
		return putErr
	})
	if err != nil {
		return audit.ArchiveObject{}, fmt.Errorf("upload %s after %d attempts: %w", objectPath, attempts, err)
	}

	size := info.Size
	if size <= 0 {
		size = int64(len(encoded.Data))
	}
	ids := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.ID)
	}
	archived, err := s.Repo.ArchiveBatch(ctx, audit.ArchiveBatchInput{
		ObjectPath: objectPath,
		EntryIDs:   ids,
		SizeBytes:  size,
		MinCreated: encoded.MinCreated,
		MaxCreated: encoded.MaxCreated,
		CreatedBy:  s.Config.CreatedBy,
	})
	if err != nil {
		_ = s.ObjectStore.Delete(ctx, objectPath)
		return audit.ArchiveObject{}, fmt.Errorf("record archive batch %s: %w", objectPath, err)
	}
	return archived, nil
}

// Query runs a read-only statement against every archived file, exposed as
// the ai_chat_logs_archive view.
func (s *Service) Query(ctx context.Context, statement string) (query.Result, error) {
	s.ensureDefaults()
	if s.Repo == nil || s.Engine == nil {
		return query.Result{}, fmt.Errorf("archive query dependencies are not configured")
	}
	validated, err := s.Guard.Validate(statement, statement)
	if err != nil {
		return query.Result{}, err
	}

	archives, err := s.Repo.ListArchives(ctx)
	if err != nil {
		return query.Result{}, fmt.Errorf("list archives: %w", err)
	}
	if len(archives) == 0 {
		return query.Result{}, ErrNoArchives
	}
	files := make([]query.TableFile, 0, len(archives))
	for _, archived := range archives {
		files = append(files, query.TableFile{
			TableName:     TableName,
			ObjectPath:    archived.ObjectPath,
			FileSizeBytes: archived.SizeBytes,
		})
	}
	return s.Engine.Execute(ctx, query.Request{SQL: validated, Files: files})
}

func (s *Service) ensureDefaults() {
	if s.Clock == nil {
		s.Clock = time.Now
	}
	if s.NewRunID == nil {
		s.NewRunID = uuid.NewString
	}
	if s.Guard == nil {
		s.Guard = nl2sql.NewGuard(nl2sql.DefaultLimit)
	}
	if s.Config.Interval <= 0 {
		s.Config.Interval = time.Hour
	}
	if s.Config.RetentionAge <= 0 {
		s.Config.RetentionAge = 90 * 24 * time.Hour
	}
	if s.Config.BatchSize <= 0 {
		s.Config.BatchSize = 5000
	}
	if s.Config.MaxBatchesPerRun <= 0 {
		s.Config.MaxBatchesPerRun = 20
	}
	if s.Config.UploadRetry.MaxAttempts <= 0 {
		s.Config.UploadRetry = retry.DefaultPolicy()
	}
	if s.Config.CreatedBy == "" {
		s.Config.CreatedBy = "feza-archiver"
	}
}
