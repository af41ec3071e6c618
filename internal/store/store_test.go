package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcsign/opsengine/internal/models"
)

func sampleOperation(id, userID string) *models.Operation {
	return &models.Operation{
		ID:        id,
		UserID:    userID,
		Type:      models.OperationSend,
		Status:    models.OperationAwaitingSignature,
		CreatedAt: time.Now(),
		Steps: []*models.Step{
			{ID: id + "-s0", OperationID: id, StepIndex: 0, Status: models.StepAwaitingSignature},
		},
	}
}

func testStoreImplementations(t *testing.T) map[string]Store {
	memStore := NewMemoryStore()

	dir := t.TempDir()
	fileStore, err := NewFileStore(filepath.Join(dir, "ops.json"))
	require.NoError(t, err)

	return map[string]Store{
		"memory": memStore,
		"file":   fileStore,
	}
}

func TestCreateAndGetOperation(t *testing.T) {
	for name, s := range testStoreImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			op := sampleOperation("op1", "user1")
			require.NoError(t, s.CreateOperation(ctx, op))

			got, err := s.GetOperation(ctx, "user1", "op1")
			require.NoError(t, err)
			assert.Equal(t, "op1", got.ID)
			assert.Len(t, got.Steps, 1)
		})
	}
}

func TestGetOperationNotFoundOrWrongUser(t *testing.T) {
	for name, s := range testStoreImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			op := sampleOperation("op1", "user1")
			require.NoError(t, s.CreateOperation(ctx, op))

			_, err := s.GetOperation(ctx, "user2", "op1")
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = s.GetOperation(ctx, "user1", "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestListOperationsPagination(t *testing.T) {
	for name, s := range testStoreImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 5; i++ {
				op := sampleOperation(string(rune('a'+i)), "user1")
				require.NoError(t, s.CreateOperation(ctx, op))
			}

			page, total, err := s.ListOperations(ctx, ListFilter{UserID: "user1", Limit: 2, Offset: 0})
			require.NoError(t, err)
			assert.Equal(t, 5, total)
			assert.Len(t, page, 2)

			page2, _, err := s.ListOperations(ctx, ListFilter{UserID: "user1", Limit: 2, Offset: 4})
			require.NoError(t, err)
			assert.Len(t, page2, 1)
		})
	}
}

func TestListOperationsByStatus(t *testing.T) {
	for name, s := range testStoreImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			op1 := sampleOperation("op1", "user1")
			op1.Status = models.OperationProcessing
			op2 := sampleOperation("op2", "user1")
			op2.Status = models.OperationCompleted
			require.NoError(t, s.CreateOperation(ctx, op1))
			require.NoError(t, s.CreateOperation(ctx, op2))

			processing, err := s.ListOperationsByStatus(ctx, models.OperationProcessing)
			require.NoError(t, err)
			require.Len(t, processing, 1)
			assert.Equal(t, "op1", processing[0].ID)
		})
	}
}

func TestCompareAndSetStepStatus(t *testing.T) {
	for name, s := range testStoreImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			op := sampleOperation("op1", "user1")
			require.NoError(t, s.CreateOperation(ctx, op))

			err := s.CompareAndSetStepStatus(ctx, "op1", "op1-s0", models.StepAwaitingSignature, models.StepConfirmed)
			require.NoError(t, err)

			got, err := s.GetOperation(ctx, "user1", "op1")
			require.NoError(t, err)
			assert.Equal(t, models.StepConfirmed, got.Steps[0].Status)
			assert.Equal(t, models.OperationCompleted, got.Status)
		})
	}
}

func TestCompareAndSetStepStatusMismatch(t *testing.T) {
	for name, s := range testStoreImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			op := sampleOperation("op1", "user1")
			require.NoError(t, s.CreateOperation(ctx, op))

			err := s.CompareAndSetStepStatus(ctx, "op1", "op1-s0", models.StepPending, models.StepConfirmed)
			assert.ErrorIs(t, err, ErrStatusMismatch)
		})
	}
}

func TestFileStoreSurvivesReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ops.json")

	s1, err := NewFileStore(path)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s1.CreateOperation(ctx, sampleOperation("op1", "user1")))

	_, statErr := os.Stat(path)
	require.NoError(t, statErr)

	s2, err := NewFileStore(path)
	require.NoError(t, err)
	got, err := s2.GetOperation(ctx, "user1", "op1")
	require.NoError(t, err)
	assert.Equal(t, "op1", got.ID)
}
