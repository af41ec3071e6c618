// Package store defines the transactional key-indexed Operation/Step record
// store the engine assumes (spec.md §1, §6) and ships two concrete
// implementations: an in-memory store for tests, and a file-backed store
// grounded directly on arcsign's chainadapter/storage.FileTxStore
// temp-file-then-rename persistence. Implementations must be thread-safe
// and must offer row-level atomicity for step status transitions via
// CompareAndSetStepStatus (spec.md §5, "Shared resources").
package store

import (
	"context"
	"errors"

	"github.com/arcsign/opsengine/internal/models"
)

// ErrNotFound is returned by GetOperation, UpdateOperation and
// CompareAndSetStepStatus when the referenced record does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrStatusMismatch is returned by CompareAndSetStepStatus when the step's
// current status does not match the expected prior status, signaling a
// concurrent writer already moved it.
var ErrStatusMismatch = errors.New("store: step status mismatch")

// ListFilter narrows ListOperations to a user's operations, optionally by
// type and status.
type ListFilter struct {
	UserID string
	Type   *models.OperationType
	Status *models.OperationStatus
	Limit  int
	Offset int
}

// Store is the record store interface consumed by the planner, executor,
// reconciler, and query packages.
type Store interface {
	// CreateOperation persists a newly planned operation and its steps.
	CreateOperation(ctx context.Context, op *models.Operation) error

	// GetOperation fetches one operation with its steps, sorted by
	// StepIndex. Returns ErrNotFound if absent or owned by a different
	// user.
	GetOperation(ctx context.Context, userID, id string) (*models.Operation, error)

	// ListOperations returns a page of operations matching filter plus the
	// total matching count.
	ListOperations(ctx context.Context, filter ListFilter) ([]*models.Operation, int, error)

	// ListOperationsByStatus returns every operation (across users) in the
	// given status, with steps. Used by the reconciler to load the
	// PROCESSING worklist.
	ListOperationsByStatus(ctx context.Context, status models.OperationStatus) ([]*models.Operation, error)

	// UpdateOperation persists the full current state of op (status,
	// summary, sign requests, steps). Callers must have already derived
	// op.Status via op.DeriveStatus().
	UpdateOperation(ctx context.Context, op *models.Operation) error

	// CompareAndSetStepStatus atomically transitions the step identified
	// by (operationID, stepID) from expected to next, returning
	// ErrStatusMismatch if its current status is not expected. This is the
	// single row-level atomicity primitive the concurrency model (spec.md
	// §5) requires of any implementation.
	CompareAndSetStepStatus(ctx context.Context, operationID, stepID string, expected, next models.StepStatus) error
}
