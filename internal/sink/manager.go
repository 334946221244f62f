package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fragmenter/internal/contenthash"
	"fragmenter/internal/logging"
	"fragmenter/internal/services"
)

// PutStatus is the successful result of a put.
type PutStatus string

const (
	PutStored         PutStatus = "stored"
	PutAlreadyPresent PutStatus = "already_present"
)

// Artifact is the payload handed to Manager.Put.
type Artifact struct {
	Filename   string
	SourceName string
	Data       []byte
	// Hash is computed from Data when empty.
	Hash     contenthash.Hash
	Metadata map[string]any
}

// PutResult describes a successful put.
type PutResult struct {
	Sink   string
	Status PutStatus
	Hash   contenthash.Hash
}

// Manager applies the idempotent put contract to one store.
type Manager struct {
	name   string
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewManager wraps store under the given sink name (primary, secondary).
func NewManager(name string, store Store, logger *slog.Logger) *Manager {
	return &Manager{
		name:   name,
		store:  store,
		logger: logging.NewComponentLogger(logger, "sink").With(logging.String("sink", name)),
		now:    time.Now,
	}
}

// Name returns the sink name.
func (m *Manager) Name() string { return m.name }

// Store exposes the backend for read-side callers.
func (m *Manager) Store() Store { return m.store }

// Exists reports whether hash is already stored.
func (m *Manager) Exists(ctx context.Context, hash contenthash.Hash) (bool, error) {
	ok, err := m.store.Exists(ctx, hash)
	if err != nil {
		return false, m.classify("exists", err)
	}
	return ok, nil
}

// Put stores the artifact unless its hash is already present. Errors are
// tagged with services.ErrSinkUnavailable or services.ErrSinkWrite.
func (m *Manager) Put(ctx context.Context, artifact Artifact) (PutResult, error) {
	hash := artifact.Hash
	if hash == "" {
		hash = contenthash.Bytes(artifact.Data)
	}
	result := PutResult{Sink: m.name, Hash: hash}
	logger := logging.WithContext(ctx, m.logger).With(logging.String("file_hash", hash.Short()))

	exists, err := m.Exists(ctx, hash)
	if err != nil {
		return result, m.logFailure(logger, "exists", err)
	}
	if exists {
		result.Status = PutAlreadyPresent
		logger.Info("fragment already stored",
			logging.String(logging.FieldEventType, "sink_already_present"),
			logging.String("filename", artifact.Filename),
		)
		return result, nil
	}

	err = m.store.Insert(ctx, Record{
		Hash:       hash,
		Filename:   artifact.Filename,
		SizeBytes:  int64(len(artifact.Data)),
		SourceName: artifact.SourceName,
		Metadata:   artifact.Metadata,
		CreatedAt:  m.now(),
		Data:       artifact.Data,
	})
	if errors.Is(err, ErrDuplicate) {
		// Another writer stored the same content between Exists and Insert.
		result.Status = PutAlreadyPresent
		logger.Info("fragment already stored",
			logging.String(logging.FieldEventType, "sink_already_present"),
			logging.String("filename", artifact.Filename),
		)
		return result, nil
	}
	if err != nil {
		return result, m.logFailure(logger, "insert", m.classify("insert", err))
	}

	result.Status = PutStored
	logger.Info("fragment stored",
		logging.String(logging.FieldEventType, "sink_stored"),
		logging.String("filename", artifact.Filename),
		logging.Int("size_bytes", len(artifact.Data)),
	)
	return result, nil
}

// Close releases the backend.
func (m *Manager) Close() error {
	if m == nil || m.store == nil {
		return nil
	}
	return m.store.Close()
}

// logFailure records an already classified put failure and returns it.
func (m *Manager) logFailure(logger *slog.Logger, operation string, err error) error {
	logging.ErrorWithContext(logger, "sink put failed", "sink_failed",
		logging.String("operation", operation),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, fmt.Sprintf("check the %s sink connection settings", m.name)),
	)
	return err
}

func (m *Manager) classify(operation string, err error) error {
	marker := services.ErrSinkWrite
	if operation == "exists" || isUnavailable(m.store, err) {
		marker = services.ErrSinkUnavailable
	}
	return services.Wrap(marker, "sink", operation, m.name, err)
}

type availabilityClassifier interface {
	unavailable(error) bool
}

func isUnavailable(store Store, err error) bool {
	if c, ok := store.(availabilityClassifier); ok {
		return c.unavailable(err)
	}
	return false
}
