package host

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/charliek/sidecarhost/internal/constants"
)

// Watch restarts the sidecar whenever its resolved binary is rewritten. The
// binary's directory is watched so rename-over saves are seen too. Watch
// returns once the watcher is installed; it stops when ctx is done.
func (h *Host) Watch(ctx context.Context) error {
	path, err := h.resolver.Resolve()
	if err != nil {
		return err
	}
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	h.logger.Info("watching sidecar binary", "path", path)
	go h.watchLoop(ctx, watcher, path)
	return nil
}

func (h *Host) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path string) {
	defer watcher.Close()

	// Builds touch the file several times; restart once it settles
	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Chmod) {
				debounce.Reset(constants.WatchDebounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			h.logger.Warn("binary watcher error", "error", err)

		case <-debounce.C:
			h.logger.Info("sidecar binary changed, restarting", "path", path)
			h.RestartSidecar(ctx)
		}
	}
}

// RestartSidecar stops the current instance, if any, and spawns a new one.
// A spawn failure is logged by the supervisor and leaves the sidecar stopped.
func (h *Host) RestartSidecar(ctx context.Context) {
	stopCtx, cancel := context.WithTimeout(ctx, h.cfg.Sidecar.ShutdownTimeoutDuration()+constants.KillGracePeriod)
	h.StopSidecar(stopCtx)
	cancel()

	_ = h.StartSidecar(ctx)
}
