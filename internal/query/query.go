// Package query implements the operation engine's read path (spec.md
// §4.7): fetching a single operation with its steps, and paginated listing
// filtered by type/status.
package query

import (
	"context"
	"fmt"

	"github.com/arcsign/opsengine/internal/engineerr"
	"github.com/arcsign/opsengine/internal/engineext"
	"github.com/arcsign/opsengine/internal/models"
	"github.com/arcsign/opsengine/internal/store"
)

const (
	defaultLimit = 20
)

// Service answers read-only queries against the record store.
type Service struct {
	Store engineext.RecordStore
}

// New constructs a query Service.
func New(s engineext.RecordStore) *Service {
	return &Service{Store: s}
}

// GetOperation returns userID's operation id with its steps sorted by
// stepIndex (the store guarantees the sort). Not-found is reported as an
// engineerr NotFound, never the raw store.ErrNotFound.
func (q *Service) GetOperation(ctx context.Context, userID, id string) (*models.Operation, error) {
	op, err := q.Store.GetOperation(ctx, userID, id)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, engineerr.NewNotFound(engineerr.CodeOperationNotFound, "operation not found: "+id, err)
		}
		return nil, fmt.Errorf("query: failed to fetch operation: %w", err)
	}
	return op, nil
}

// ListFilter narrows GetOperations. Limit defaults to 20 and Offset to 0
// when zero.
type ListFilter struct {
	Type   *models.OperationType
	Status *models.OperationStatus
	Limit  int
	Offset int
}

// GetOperations returns a page of userID's operations plus the total
// matching count (spec.md §4.7).
func (q *Service) GetOperations(ctx context.Context, userID string, filter ListFilter) ([]*models.Operation, int, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	ops, total, err := q.Store.ListOperations(ctx, store.ListFilter{
		UserID: userID, Type: filter.Type, Status: filter.Status,
		Limit: limit, Offset: filter.Offset,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("query: failed to list operations: %w", err)
	}
	return ops, total, nil
}
