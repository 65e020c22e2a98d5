package repository

import (
	"context"
	"log"
	"sync"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nayhtooyan/collabtask/internal/task/domain"
)

// FirestoreTaskRepository implements TaskRepository on a Firestore collection.
type FirestoreTaskRepository struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreTaskRepository creates a repository over the given collection.
func NewFirestoreTaskRepository(client *firestore.Client, collection string) *FirestoreTaskRepository {
	return &FirestoreTaskRepository{client: client, collection: collection}
}

// Subscribe opens a live query filtered server-side by owner and ordered by
// createdAt descending. Deliveries stop permanently after cancel or after the
// first subscription error; on error the caller sees an empty list so the UI
// never renders another identity's or an outdated task set.
func (r *FirestoreTaskRepository) Subscribe(ctx context.Context, ownerID string, fn SnapshotFunc) (func(), error) {
	subCtx, stop := context.WithCancel(ctx)

	query := r.client.Collection(r.collection).
		Where("userId", "==", ownerID).
		OrderBy("createdAt", firestore.Desc)
	snapshots := query.Snapshots(subCtx)

	log.Printf("[TaskRepo] Subscription opened for owner %s", ownerID)

	go func() {
		defer snapshots.Stop()
		for {
			snap, err := snapshots.Next()
			if err != nil {
				if subCtx.Err() != nil || status.Code(err) == codes.Canceled {
					return
				}
				if status.Code(err) == codes.FailedPrecondition {
					// Composite index on (userId, createdAt desc) is required.
					log.Printf("[TaskRepo] Missing Firestore index for tasks query: %v", err)
				} else {
					log.Printf("[TaskRepo] Subscription error for owner %s: %v", ownerID, err)
				}
				fn([]domain.Task{})
				return
			}

			tasks := make([]domain.Task, 0, snap.Size)
			docs := snap.Documents
			for {
				doc, err := docs.Next()
				if err == iterator.Done {
					break
				}
				if err != nil {
					log.Printf("[TaskRepo] Snapshot iteration error: %v", err)
					break
				}
				var t domain.Task
				if err := doc.DataTo(&t); err != nil {
					log.Printf("[TaskRepo] Skipping undecodable task %s: %v", doc.Ref.ID, err)
					continue
				}
				t.ID = doc.Ref.ID
				tasks = append(tasks, t)
			}
			fn(tasks)
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			log.Printf("[TaskRepo] Subscription cancelled for owner %s", ownerID)
			stop()
		})
	}
	return cancel, nil
}

// Create persists a task. The id comes back from the store; updatedAt is
// stamped server-side.
func (r *FirestoreTaskRepository) Create(ctx context.Context, task *domain.Task) (string, error) {
	doc, _, err := r.client.Collection(r.collection).Add(ctx, map[string]any{
		"userId":      task.OwnerID,
		"title":       task.Title,
		"description": task.Description,
		"completed":   task.Completed,
		"priority":    task.Priority,
		"category":    task.Category,
		"createdAt":   task.CreatedAt,
		"subTasks":    task.SubTasks,
		"updatedAt":   firestore.ServerTimestamp,
	})
	if err != nil {
		return "", classifyStoreError(err)
	}
	return doc.ID, nil
}

// Update applies a partial update plus the server-side modification stamp.
func (r *FirestoreTaskRepository) Update(ctx context.Context, id string, fields map[string]any) error {
	updates := make([]firestore.Update, 0, len(fields)+1)
	for path, value := range fields {
		updates = append(updates, firestore.Update{Path: path, Value: value})
	}
	updates = append(updates, firestore.Update{Path: "updatedAt", Value: firestore.ServerTimestamp})

	if _, err := r.client.Collection(r.collection).Doc(id).Update(ctx, updates); err != nil {
		return classifyStoreError(err)
	}
	return nil
}

// Delete removes a task document.
func (r *FirestoreTaskRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.client.Collection(r.collection).Doc(id).Delete(ctx); err != nil {
		return classifyStoreError(err)
	}
	return nil
}

// classifyStoreError maps gRPC status codes onto the store taxonomy.
func classifyStoreError(err error) *StoreError {
	switch status.Code(err) {
	case codes.PermissionDenied:
		return &StoreError{
			Code:    StoreErrPermissionDenied,
			Message: "You do not have permission to modify tasks. Please make sure you are logged in.",
			Err:     err,
		}
	case codes.FailedPrecondition:
		return &StoreError{
			Code:    StoreErrMissingIndex,
			Message: "The tasks query needs a composite index on (userId, createdAt desc).",
			Err:     err,
		}
	default:
		return &StoreError{Code: StoreErrUnknown, Message: err.Error(), Err: err}
	}
}
