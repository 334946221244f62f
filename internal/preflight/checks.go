package preflight

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"fragmenter/internal/config"
	"fragmenter/internal/sink"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.W_OK|unix.X_OK, "read/write ok")
}

// CheckReadableDirectory verifies that the directory exists and can be listed.
func CheckReadableDirectory(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.X_OK, "readable")
}

func checkDirectory(name, path string, mode uint32, ok string) Result {
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, ok)}
}

// CheckSink opens the sink, creating its table if needed, and reads its
// record count. The connection is closed before returning.
func CheckSink(ctx context.Context, name string, cfg config.Sink) Result {
	label := "Sink " + name
	checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	store, err := sink.Open(checkCtx, cfg)
	if err != nil {
		return Result{Name: label, Detail: fmt.Sprintf("%s: %v", cfg.Driver, err)}
	}
	defer store.Close()

	stats, err := store.Stats(checkCtx)
	if err != nil {
		return Result{Name: label, Detail: fmt.Sprintf("%s: stats: %v", cfg.Driver, err)}
	}
	return Result{
		Name:   label,
		Passed: true,
		Detail: fmt.Sprintf("%s reachable (%d records)", cfg.Driver, stats.Records),
	}
}
