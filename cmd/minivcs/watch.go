package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"minivcs/internal/repo"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// watchStatus renders once, then again after each burst of working-tree or
// index changes. The repository is opened per render so the lock is free
// between redraws.
func (e *env) watchStatus(cmd *cobra.Command, render func() error, debounce time.Duration) error {
	root, err := repo.FindRoot(e.dir)
	if err != nil {
		return err
	}
	control := filepath.Join(root, repo.ControlDir)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatchDirs(watcher, root); err != nil {
		return fmt.Errorf("add watch dirs: %w", err)
	}
	if err := watcher.Add(control); err != nil {
		return fmt.Errorf("watch %s: %w", control, err)
	}

	if err := render(); err != nil {
		return err
	}

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if shouldIgnoreEvent(event, control) {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = addWatchDirs(watcher, event.Name)
				}
			}
			if !pending {
				timer.Reset(debounce)
				pending = true
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", err)
		case <-timer.C:
			pending = false
			fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", e.pal.header.Sprint(time.Now().Format(time.TimeOnly)))
			if err := render(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "status: %v\n", err)
			}
		}
	}
}

func addWatchDirs(watcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}

		if info.IsDir() {
			base := filepath.Base(path)
			if strings.HasPrefix(base, ".") && path != root {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
}

// shouldIgnoreEvent drops events that cannot change status output. Inside
// the control directory only index and HEAD updates count; the lock file and
// database churn on every render.
func shouldIgnoreEvent(event fsnotify.Event, control string) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return true
	}

	if filepath.Dir(event.Name) == control {
		switch filepath.Base(event.Name) {
		case repo.IndexFile, "HEAD":
			return false
		}
		return true
	}
	return strings.HasPrefix(event.Name, control+string(filepath.Separator))
}
