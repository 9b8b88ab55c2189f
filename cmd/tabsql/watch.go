package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"tabsql/internal/tables"
)

// defaultDebounce coalesces the burst of events an editor save produces.
const defaultDebounce = 250 * time.Millisecond

// watchPaths lists the config files and every file they refer to,
// including the tables named by a tables document.
func watchPaths(configPaths []string) ([]string, error) {
	pipelines, err := loadPipelines(configPaths)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for i, p := range pipelines {
		add(configPaths[i])
		for _, path := range p.Paths() {
			add(path)
		}
		if p.Tables == "" {
			continue
		}
		tc, err := tables.Load(p.Tables)
		if err != nil {
			// The run reports it; the document itself is still watched.
			continue
		}
		for _, t := range tc.Tables {
			add(t.Path)
			add(t.Schema)
		}
	}
	sort.Strings(out)
	return out, nil
}

// watchAndRun calls fn after any of paths is written or recreated, once per
// burst of events within debounce. Parent directories are watched so that
// files replaced by rename are still seen. It returns when ctx is done.
func watchAndRun(ctx context.Context, paths []string, debounce time.Duration, fn func(context.Context)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()

	targets := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		targets[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for d := range dirs {
		if err := w.Add(d); err != nil {
			return fmt.Errorf("watch %s: %w", d, err)
		}
	}
	log.Printf("watch: %d file(s) in %d dir(s)", len(targets), len(dirs))

	var (
		fire    <-chan time.Time
		changed string
	)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil || !targets[abs] {
				continue
			}
			changed = abs
			fire = time.After(debounce)

		case <-fire:
			fire = nil
			log.Printf("watch: %s changed; re-running", changed)
			fn(ctx)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch: %v", err)
		}
	}
}

// runScheduled calls fn on the cron schedule expr until ctx is done. A run
// still in progress when the next one is due causes that one to be skipped.
func runScheduled(ctx context.Context, expr string, fn func(context.Context)) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(expr, func() { fn(ctx) }); err != nil {
		return fmt.Errorf("schedule %q: %w", expr, err)
	}
	c.Start()
	log.Printf("schedule: started spec=%q", expr)

	<-ctx.Done()
	<-c.Stop().Done()
	log.Printf("schedule: stopped")
	return nil
}
