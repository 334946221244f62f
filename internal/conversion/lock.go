package conversion

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gofrs/flock"

	"fragmenter/internal/logging"
)

// LockFileName is created in the target directory while a batch run holds it.
const LockFileName = ".fragmenter.lock"

// ErrRunInProgress is returned when another process holds the target lock.
var ErrRunInProgress = errors.New("conversion run already in progress")

type runLock struct {
	lock *flock.Flock
}

func acquireRunLock(targetDir string) (*runLock, error) {
	path := filepath.Join(targetDir, LockFileName)
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s is locked", ErrRunInProgress, path)
	}
	return &runLock{lock: lock}, nil
}

func (l *runLock) release(logger *slog.Logger) {
	if l == nil || l.lock == nil {
		return
	}
	if err := l.lock.Unlock(); err != nil {
		logger.Warn("release run lock failed", logging.String("path", l.lock.Path()), logging.Error(err))
	}
}
