// Package sentinel implements file-existence signalling between processes.
//
// One side waits for a path to appear; the other side creates it. The file's
// contents are irrelevant, only its existence matters.
package sentinel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	logging "github.com/op/go-logging"
)

var log = logging.MustGetLogger("sentinel")

// DefaultPollInterval is the fallback existence check period used by Wait.
const DefaultPollInterval = 100 * time.Millisecond

// Touch creates path if it does not exist. An existing file is left as is.
func Touch(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("touch sentinel %s: %w", path, err)
	}
	return f.Close()
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// Remove deletes path. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove sentinel %s: %w", path, err)
	}
	return nil
}

// Wait blocks until path exists or ctx is done.
//
// The parent directory is watched with fsnotify when possible; the existence
// check also runs every poll interval so a missed or unsupported notification
// only delays the wakeup. A poll of 0 uses DefaultPollInterval.
func Wait(ctx context.Context, path string, poll time.Duration) error {
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	if Exists(path) {
		return nil
	}

	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer watcher.Close()
		if err := watcher.Add(filepath.Dir(path)); err != nil {
			log.Debugf("watch %s: %v, polling only", filepath.Dir(path), err)
		} else {
			events = watcher.Events
			errs = watcher.Errors
		}
	} else {
		log.Debugf("create watcher: %v, polling only", err)
	}

	return waitLoop(ctx, path, poll, events, errs)
}

// waitLoop checks for path on every watcher event for it and every poll
// tick. Watcher errors are logged and the loop keeps going.
func waitLoop(ctx context.Context, path string, poll time.Duration, events <-chan fsnotify.Event, errs <-chan error) error {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	target := filepath.Clean(path)
	for {
		// Re-check after the watch is in place to close the gap with the
		// first check.
		if Exists(path) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Warningf("watch %s: %v", path, err)
		case <-ticker.C:
		}
	}
}
