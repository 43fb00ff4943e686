package tables

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors a table override folder and swaps the provider snapshot
// whenever a table file changes. Stop must be called to release filesystem
// resources.
type Watcher struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop halts the watcher and waits for the underlying goroutine to exit.
func (w *Watcher) Stop() {
	if w == nil {
		return
	}
	w.once.Do(func() {
		w.cancel()
		<-w.done
	})
}

// Watch wires fsnotify around the override folder and reloads the snapshot
// on any relevant change. A reload that fails keeps the previous snapshot
// live: the data may go stale but never disappears mid-request.
func (p *Provider) Watch(ctx context.Context, folder string, onError func(error)) (*Watcher, error) {
	if folder == "" {
		return nil, errors.New("tables: no override folder configured for watching")
	}

	watchCtx, cancel := context.WithCancel(ctx)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("tables: watch: %w", err)
	}
	root, err := filepath.Abs(folder)
	if err != nil {
		root = folder
	}
	if err := watcher.Add(root); err != nil {
		if closeErr := watcher.Close(); closeErr != nil && onError != nil {
			onError(fmt.Errorf("tables: watch close: %w", closeErr))
		}
		cancel()
		return nil, fmt.Errorf("tables: watch add %s: %w", root, err)
	}

	done := make(chan struct{})
	w := &Watcher{cancel: cancel, done: done}

	go func() {
		defer close(done)
		defer func() {
			if err := watcher.Close(); err != nil && onError != nil {
				onError(fmt.Errorf("tables: watch close: %w", err))
			}
		}()

		reload := func() {
			snapshot, err := Load(folder)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				return
			}
			p.swap(snapshot)
		}

		const debounce = 25 * time.Millisecond
		var reloadTimer *time.Timer
		var reloadSignal <-chan time.Time
		scheduleReload := func() {
			if reloadTimer == nil {
				reloadTimer = time.NewTimer(debounce)
			} else {
				if !reloadTimer.Stop() {
					select {
					case <-reloadTimer.C:
					default:
					}
				}
				reloadTimer.Reset(debounce)
			}
			reloadSignal = reloadTimer.C
		}
		flushTimer := func() {
			if reloadTimer == nil {
				return
			}
			if !reloadTimer.Stop() {
				select {
				case <-reloadTimer.C:
				default:
				}
			}
			reloadSignal = nil
		}
		defer flushTimer()

		for {
			select {
			case <-watchCtx.Done():
				return
			case <-reloadSignal:
				flushTimer()
				reload()
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Ext(event.Name) != ".json" {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
					scheduleReload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if err != nil && onError != nil {
					onError(fmt.Errorf("tables: watch event: %w", err))
				}
			}
		}
	}()

	return w, nil
}
