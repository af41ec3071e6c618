package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/arcsign/opsengine/internal/models"
)

// FileStore is a Store backed by a single JSON file, persisted with the
// temp-file-then-rename pattern arcsign's chainadapter/storage.FileTxStore
// uses: the whole table is held in memory, guarded by one RWMutex, and
// rewritten atomically on every mutation.
type FileStore struct {
	mu       sync.RWMutex
	filePath string
	ops      map[string]*models.Operation
}

// NewFileStore opens (or creates) the JSON file at filePath and loads any
// existing records.
func NewFileStore(filePath string) (*FileStore, error) {
	fs := &FileStore{filePath: filePath, ops: make(map[string]*models.Operation)}
	if err := fs.load(); err != nil {
		return nil, fmt.Errorf("store: failed to load operations from file: %w", err)
	}
	return fs, nil
}

func (f *FileStore) CreateOperation(ctx context.Context, op *models.Operation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops[op.ID] = deepCopyOperation(op)
	return f.persist()
}

func (f *FileStore) GetOperation(ctx context.Context, userID, id string) (*models.Operation, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	op, ok := f.ops[id]
	if !ok || op.UserID != userID {
		return nil, ErrNotFound
	}
	out := deepCopyOperation(op)
	sort.Slice(out.Steps, func(i, j int) bool { return out.Steps[i].StepIndex < out.Steps[j].StepIndex })
	return out, nil
}

func (f *FileStore) ListOperations(ctx context.Context, filter ListFilter) ([]*models.Operation, int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var matched []*models.Operation
	for _, op := range f.ops {
		if op.UserID != filter.UserID {
			continue
		}
		if filter.Type != nil && op.Type != *filter.Type {
			continue
		}
		if filter.Status != nil && op.Status != *filter.Status {
			continue
		}
		matched = append(matched, op)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []*models.Operation{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	out := make([]*models.Operation, 0, end-offset)
	for _, op := range matched[offset:end] {
		out = append(out, deepCopyOperation(op))
	}
	return out, total, nil
}

func (f *FileStore) ListOperationsByStatus(ctx context.Context, status models.OperationStatus) ([]*models.Operation, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var out []*models.Operation
	for _, op := range f.ops {
		if op.Status == status {
			out = append(out, deepCopyOperation(op))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (f *FileStore) UpdateOperation(ctx context.Context, op *models.Operation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.ops[op.ID]; !ok {
		return ErrNotFound
	}
	f.ops[op.ID] = deepCopyOperation(op)
	return f.persist()
}

func (f *FileStore) CompareAndSetStepStatus(ctx context.Context, operationID, stepID string, expected, next models.StepStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	op, ok := f.ops[operationID]
	if !ok {
		return ErrNotFound
	}
	step := op.StepByID(stepID)
	if step == nil {
		return ErrNotFound
	}
	if step.Status != expected {
		return ErrStatusMismatch
	}
	step.Status = next
	op.Status = op.DeriveStatus()
	return f.persist()
}

func (f *FileStore) load() error {
	if _, err := os.Stat(f.filePath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(f.filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var ops map[string]*models.Operation
	if err := json.Unmarshal(data, &ops); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	f.ops = ops
	return nil
}

// persist saves the whole table to disk atomically. Caller must hold the
// write lock.
func (f *FileStore) persist() error {
	dir := filepath.Dir(f.filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(f.ops, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	tmpPath := f.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tmpPath, f.filePath); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
