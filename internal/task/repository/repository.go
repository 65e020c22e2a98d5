package repository

import (
	"context"
	"fmt"

	"github.com/nayhtooyan/collabtask/internal/task/domain"
)

// SnapshotFunc receives the full ordered task list every time the underlying
// data changes.
type SnapshotFunc func(tasks []domain.Task)

// TaskRepository defines the interface for task data access. The live
// subscription is the read path; there are no point reads.
type TaskRepository interface {
	// Subscribe opens a live query for the owner's tasks ordered by creation
	// time descending and invokes fn with every snapshot. On subscription
	// failure fn receives an empty list rather than going silently stale.
	// The returned cancel is idempotent and stops all further deliveries.
	Subscribe(ctx context.Context, ownerID string, fn SnapshotFunc) (func(), error)

	// Create persists a new task and returns the store-assigned id.
	Create(ctx context.Context, task *domain.Task) (string, error)

	// Update applies a partial update to the task with the given id.
	Update(ctx context.Context, id string, fields map[string]any) error

	// Delete removes the task with the given id.
	Delete(ctx context.Context, id string) error
}

// StoreErrorCode classifies document store failures.
type StoreErrorCode string

const (
	StoreErrPermissionDenied StoreErrorCode = "PERMISSION_DENIED"
	StoreErrMissingIndex     StoreErrorCode = "MISSING_INDEX"
	StoreErrUnknown          StoreErrorCode = "UNKNOWN"
)

// StoreError is a classified document store error.
type StoreError struct {
	Code    StoreErrorCode
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
