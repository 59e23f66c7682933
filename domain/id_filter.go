package domain

import "context"

// IDFilter is a probabilistic set of existing comment ids
type IDFilter interface {
	// Add records id
	Add(ctx context.Context, id int64) error

	// Exists reports false only when id was never added (definitely absent).
	// true means "maybe": callers still ask the database.
	Exists(ctx context.Context, id int64) (bool, error)

	// BulkAdd records ids and marks the filter as complete
	BulkAdd(ctx context.Context, ids []int64, complete bool) error
}

// CommentIDSource pages through the ids of all stored comments
type CommentIDSource interface {
	// FetchIDs returns up to limit ids greater than afterID, ascending
	FetchIDs(ctx context.Context, afterID int64, limit int) ([]int64, error)
}
