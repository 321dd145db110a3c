// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc receives the freshly parsed scoring config. Returning an
// error rejects the reload; the previous config stays active.
type ReloadFunc func(ScoringConfig) error

// Watcher hot-reloads the scoring section when the config file changes.
// Only scoring is reloadable: regions, providers and queue tuning require
// a restart because workers and lanes are built from them at startup.
type Watcher struct {
	path     string
	onReload ReloadFunc
	// debounce collapses the write bursts editors and kubelet config-map
	// updates produce into one reload.
	debounce time.Duration
}

// NewWatcher creates a watcher for the config file at path.
func NewWatcher(path string, onReload ReloadFunc) *Watcher {
	return &Watcher{path: path, onReload: onReload, debounce: 500 * time.Millisecond}
}

// Run watches until ctx is cancelled. Watches the parent directory rather
// than the file itself so atomic rename-replace (the common k8s and editor
// save pattern) keeps working after the inode changes.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return err
	}
	slog.Info("config watcher started", "path", w.path)

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config watcher error", "error", err)
		case <-fire:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		slog.Error("config reload failed, keeping previous scoring config",
			"path", w.path, "error", err)
		return
	}
	if err := w.onReload(cfg.Scoring); err != nil {
		slog.Error("scoring config rejected, keeping previous",
			"path", w.path, "error", err)
		return
	}
	slog.Info("scoring config reloaded", "path", w.path)
}
