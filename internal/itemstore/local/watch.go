package local

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fsnotify/fsnotify"

	"github.com/roach88/configstore/internal/model"
	"github.com/roach88/configstore/internal/polling"
)

// DefaultQuietPeriod is how long the tree must stay unchanged before a
// change triggers a scan.
const DefaultQuietPeriod = 500 * time.Millisecond

// ChangeRequester requests a MANUAL scan whenever files under the store
// root change. Bursts of changes are collapsed into one request.
type ChangeRequester struct {
	store *Store
	quiet time.Duration
	clock clock.Clock
}

// Watch returns a requester for changes under the store root. A zero
// quiet period uses DefaultQuietPeriod.
func (s *Store) Watch(quiet time.Duration, clk clock.Clock) *ChangeRequester {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	if clk == nil {
		clk = clock.New()
	}
	return &ChangeRequester{store: s, quiet: quiet, clock: clk}
}

// ScanRequests starts watching. The stream closes when ctx ends.
func (r *ChangeRequester) ScanRequests(ctx context.Context) (<-chan model.ScanRequest, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := r.addTree(w, r.store.root); err != nil {
		_ = w.Close()
		return nil, err
	}

	changes := make(chan time.Time)
	go r.watchLoop(ctx, w, changes)

	out := make(chan model.ScanRequest)
	settled := polling.Debounce(ctx, changes, r.quiet, r.clock)
	go func() {
		defer close(out)
		for changed := range settled {
			req := model.NewScanRequest(changed, r.clock.Now().UTC(), model.ScanManual)
			select {
			case <-ctx.Done():
				return
			case out <- req:
			}
		}
	}()
	return out, nil
}

// addTree watches dir and every directory below it.
func (r *ChangeRequester) addTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != r.store.root && strings.HasPrefix(d.Name(), ".") {
			return fs.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (r *ChangeRequester) watchLoop(ctx context.Context, w *fsnotify.Watcher, changes chan<- time.Time) {
	defer close(changes)
	defer w.Close()
	logger := r.store.logger

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			if event.Has(fsnotify.Create) {
				// New directories are not watched recursively by fsnotify.
				if err := r.addTree(w, event.Name); err != nil {
					logger.Debugw("could not watch new path", "path", event.Name, "error", err)
				}
			}
			logger.Debugw("store changed", "path", event.Name, "op", event.Op.String())
			select {
			case <-ctx.Done():
				return
			case changes <- r.clock.Now().UTC():
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Warnw("file watcher error", "error", err)
		}
	}
}
