package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/arcsign/opsengine/internal/models"
)

// MemoryStore is an in-memory Store, guarded by a single RWMutex the same
// way arcsign's FileTxStore guards its map — adequate for tests and for a
// single-process reconciler, not for horizontal scaling (spec.md §5 calls
// that out as a separate design problem).
type MemoryStore struct {
	mu   sync.RWMutex
	ops  map[string]*models.Operation
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ops: make(map[string]*models.Operation)}
}

func (m *MemoryStore) CreateOperation(ctx context.Context, op *models.Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops[op.ID] = deepCopyOperation(op)
	return nil
}

func (m *MemoryStore) GetOperation(ctx context.Context, userID, id string) (*models.Operation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	op, ok := m.ops[id]
	if !ok || op.UserID != userID {
		return nil, ErrNotFound
	}
	out := deepCopyOperation(op)
	sort.Slice(out.Steps, func(i, j int) bool { return out.Steps[i].StepIndex < out.Steps[j].StepIndex })
	return out, nil
}

func (m *MemoryStore) ListOperations(ctx context.Context, filter ListFilter) ([]*models.Operation, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*models.Operation
	for _, op := range m.ops {
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

func (m *MemoryStore) ListOperationsByStatus(ctx context.Context, status models.OperationStatus) ([]*models.Operation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Operation
	for _, op := range m.ops {
		if op.Status == status {
			out = append(out, deepCopyOperation(op))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) UpdateOperation(ctx context.Context, op *models.Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ops[op.ID]; !ok {
		return ErrNotFound
	}
	m.ops[op.ID] = deepCopyOperation(op)
	return nil
}

func (m *MemoryStore) CompareAndSetStepStatus(ctx context.Context, operationID, stepID string, expected, next models.StepStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	op, ok := m.ops[operationID]
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
	return nil
}

// deepCopyOperation round-trips op through JSON to break all aliasing
// between the caller's copy and the stored copy, the same defensive
// pattern arcsign's FileTxStore.copyState applies per-field.
func deepCopyOperation(op *models.Operation) *models.Operation {
	data, err := json.Marshal(op)
	if err != nil {
		panic("store: operation failed to marshal for copy: " + err.Error())
	}
	var out models.Operation
	if err := json.Unmarshal(data, &out); err != nil {
		panic("store: operation failed to unmarshal for copy: " + err.Error())
	}
	return &out
}
