package sink

import (
	"context"
	"errors"
	"time"

	"fragmenter/internal/contenthash"
)

var (
	// ErrDuplicate is returned by Store.Insert when the hash is already stored.
	ErrDuplicate = errors.New("duplicate content hash")
	// ErrNotFound is returned by Store.Get for unknown hashes.
	ErrNotFound = errors.New("record not found")
)

// Record is one stored artifact. Data is only populated by Get.
type Record struct {
	ID         int64
	Hash       contenthash.Hash
	Filename   string
	SizeBytes  int64
	SourceName string
	Metadata   map[string]any
	CreatedAt  time.Time
	Data       []byte
}

// ListOptions pages through stored records, newest first.
type ListOptions struct {
	Limit  int
	Offset int
}

// Stats summarizes a store's contents.
type Stats struct {
	Records       int64
	TotalBytes    int64
	LastCreatedAt time.Time
}

// Store is a hash-keyed, append-only artifact table.
type Store interface {
	Exists(ctx context.Context, hash contenthash.Hash) (bool, error)
	Insert(ctx context.Context, rec Record) error
	Get(ctx context.Context, hash contenthash.Hash) (*Record, error)
	List(ctx context.Context, opts ListOptions) ([]Record, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}
