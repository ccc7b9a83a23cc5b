package storage

import "context"

// ObjectStore holds finished render artifacts. Keys are scoped as
// <job id>/<run id>/<artifact>, so a superseding run never overwrites
// objects a concurrent reader may still be fetching.
type ObjectStore interface {
	PutFile(ctx context.Context, key, filename string) error

	GetObject(ctx context.Context, key string) ([]byte, error)

	DeleteObjects(ctx context.Context, prefix string) error
}
