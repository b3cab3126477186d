package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"planboard/internal/core/ports"
	"planboard/internal/core/watcher"
	"planboard/internal/shared/observability"
	"planboard/internal/shared/util"
)

var _ ports.WatchService = (*Service)(nil)

// changeSet coalesces watcher callbacks between two runs.
type changeSet struct {
	mu     sync.Mutex
	paths  map[string]bool
	notify chan struct{}
}

func newChangeSet() *changeSet {
	return &changeSet{paths: make(map[string]bool), notify: make(chan struct{}, 1)}
}

func (c *changeSet) add(paths []string) {
	c.mu.Lock()
	for _, p := range paths {
		c.paths[p] = true
	}
	c.mu.Unlock()
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *changeSet) drain() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.paths))
	for p := range c.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	c.paths = make(map[string]bool)
	return out
}

// Watch runs the pipeline once, then again after every debounced snapshot
// change, at most watch.max_runs_per_second times per second.
func (s *Service) Watch(ctx context.Context, handler func(ports.WatchUpdate)) error {
	changes := newChangeSet()
	w, err := watcher.NewWatcher(s.Config.Watch.Debounce, s.Config.Input.Exclude, changes.add)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Watch(s.Paths.Snapshots); err != nil {
		return err
	}

	limiter := util.NewLimiter(s.Config.Watch.MaxRunsPerSecond, s.Config.Watch.Burst)
	emit := func(update ports.WatchUpdate) {
		if handler != nil {
			handler(update)
		}
	}

	limiter.Allow(1)
	emit(s.RunOnce(ctx, nil))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes.notify:
		}

		if !limiter.Allow(1) {
			observability.WatchRunsThrottledTotal.Inc()
			if err := limiter.Wait(ctx, 1); err != nil {
				return nil
			}
		}
		changed := changes.drain()
		if len(changed) == 0 {
			continue
		}
		s.logger.Info("snapshot change detected", "paths", changed)
		emit(s.RunOnce(ctx, changed))
	}
}

// RunOnce loads, analyzes, writes outputs and records history. Failures are
// reported on the update rather than returned so the watch loop survives a
// half-saved snapshot.
func (s *Service) RunOnce(ctx context.Context, changed []string) ports.WatchUpdate {
	ctx, span := observability.Tracer.Start(ctx, "planService.RunOnce")
	defer span.End()

	update := ports.WatchUpdate{Changed: changed, At: time.Now().UTC()}

	snap, err := s.LoadSnapshot(ctx)
	if err != nil {
		s.logger.Warn("snapshot load failed", "error", err)
		update.Err = err
		return update
	}
	analysis, err := s.Analyze(ctx, snap)
	if err != nil {
		update.Err = err
		return update
	}
	update.Analysis = &analysis

	written, err := s.WriteOutputs(ctx, analysis)
	if err != nil {
		s.logger.Error("writing outputs failed", "error", err)
		update.Err = err
		return update
	}
	update.Written = written.Written

	if s.HistoryEnabled() {
		if err := s.RecordRun(ctx, analysis); err != nil {
			s.logger.Warn("history record failed", "error", err)
			update.Err = err
		}
	}
	return update
}
