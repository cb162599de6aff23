package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"codearena/internal/common/storage"
	"codearena/internal/task/repository"
	appErrors "codearena/pkg/errors"
	"codearena/pkg/utils/logger"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

const packContentType = "application/zstd"

// taskPack is the serialized form of a task plus its cases, stored
// zstd-compressed in object storage so packs can be moved between
// deployments.
type taskPack struct {
	Version    int                    `json:"version"`
	ExportedAt time.Time              `json:"exported_at"`
	Task       *repository.Task       `json:"task"`
	Cases      []*repository.TestCase `json:"cases"`
}

const taskPackVersion = 1

// PackService exports and imports task packs through object storage.
type PackService struct {
	tasks   *Service
	storage storage.ObjectStorage
	bucket  string
}

// NewPackService creates a pack service. bucket is the object storage bucket
// packs live in.
func NewPackService(tasks *Service, store storage.ObjectStorage, bucket string) (*PackService, error) {
	if tasks == nil {
		return nil, errors.New("task service is required")
	}
	if store == nil {
		return nil, errors.New("object storage is required")
	}
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}
	return &PackService{tasks: tasks, storage: store, bucket: bucket}, nil
}

// Export compresses a task and its cases and uploads the pack. Returns the
// object key the pack was stored under.
func (s *PackService) Export(ctx context.Context, taskID int64) (string, error) {
	tc, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return "", err
	}

	pack := taskPack{
		Version:    taskPackVersion,
		ExportedAt: time.Now().UTC(),
		Task:       tc.Task,
		Cases:      tc.Cases,
	}
	raw, err := json.Marshal(pack)
	if err != nil {
		return "", appErrors.Wrapf(err, appErrors.TaskPackExportError, "marshal pack: %v", err)
	}

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return "", appErrors.Wrapf(err, appErrors.TaskPackExportError, "zstd writer: %v", err)
	}
	if _, err := enc.Write(raw); err != nil {
		enc.Close()
		return "", appErrors.Wrapf(err, appErrors.TaskPackExportError, "compress pack: %v", err)
	}
	if err := enc.Close(); err != nil {
		return "", appErrors.Wrapf(err, appErrors.TaskPackExportError, "flush pack: %v", err)
	}

	key := packObjectKey(taskID)
	if err := s.storage.PutObject(ctx, s.bucket, key, &buf, int64(buf.Len()), packContentType); err != nil {
		return "", appErrors.Wrapf(err, appErrors.TaskPackExportError, "upload pack: %v", err)
	}
	logger.Info(ctx, "task pack exported",
		zap.Int64("task_id", taskID),
		zap.String("key", key),
		zap.Int("compressed_bytes", buf.Len()))
	return key, nil
}

// Import downloads a pack, validates it and stores the contained task as a
// new record. The task gets a fresh id.
func (s *PackService) Import(ctx context.Context, key string) (*TaskWithCases, error) {
	obj, err := s.storage.GetObject(ctx, s.bucket, key)
	if err != nil {
		return nil, appErrors.Wrapf(err, appErrors.TaskPackInvalid, "download pack %s: %v", key, err)
	}
	defer obj.Close()

	dec, err := zstd.NewReader(obj)
	if err != nil {
		return nil, appErrors.Wrapf(err, appErrors.TaskPackInvalid, "zstd reader: %v", err)
	}
	defer dec.Close()

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, appErrors.Wrapf(err, appErrors.TaskPackInvalid, "decompress pack %s: %v", key, err)
	}

	var pack taskPack
	if err := json.Unmarshal(raw, &pack); err != nil {
		return nil, appErrors.Wrapf(err, appErrors.TaskPackInvalid, "decode pack %s: %v", key, err)
	}
	if pack.Version != taskPackVersion {
		return nil, appErrors.Newf(appErrors.TaskPackInvalid, "unsupported pack version %d", pack.Version)
	}
	if pack.Task == nil || len(pack.Cases) == 0 {
		return nil, appErrors.New(appErrors.TaskPackInvalid).WithMessage("pack has no task or cases")
	}

	task := *pack.Task
	task.ID = 0
	cases := make([]*repository.TestCase, 0, len(pack.Cases))
	for _, c := range pack.Cases {
		cases = append(cases, &repository.TestCase{Input: c.Input, Expected: c.Expected})
	}
	if err := s.tasks.CreateTask(ctx, &task, cases); err != nil {
		return nil, err
	}
	return &TaskWithCases{Task: &task, Cases: cases}, nil
}

func packObjectKey(taskID int64) string {
	return fmt.Sprintf("packs/task-%d.json.zst", taskID)
}
