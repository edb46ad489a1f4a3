package retention

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrAlreadyScheduled is returned when a directory already has a running schedule.
var ErrAlreadyScheduled = errors.New("cleanup already scheduled for directory")

// RunFunc observes the outcome of each scheduled sweep. It runs on the
// schedule's goroutine after the sweep has finished and may stop the
// schedule.
type RunFunc func(dir string, result *Result, err error)

// Scheduler owns the periodic sweeps, at most one per directory.
type Scheduler struct {
	sweeper *Sweeper
	onRun   RunFunc

	mu      sync.Mutex
	handles map[string]*Handle
}

// NewScheduler creates a Scheduler. onRun may be nil.
func NewScheduler(sweeper *Sweeper, onRun RunFunc) *Scheduler {
	return &Scheduler{
		sweeper: sweeper,
		onRun:   onRun,
		handles: make(map[string]*Handle),
	}
}

// Handle controls one running schedule.
type Handle struct {
	dir  string
	stop chan struct{}
	done chan struct{}
	once sync.Once

	// inHook is set while the RunFunc for this schedule is running.
	inHook atomic.Bool
}

// Dir returns the directory this schedule sweeps.
func (h *Handle) Dir() string { return h.dir }

// Stop prevents further ticks and waits for a tick in progress to finish.
// Called from the RunFunc, it returns without waiting, since the sweep is
// already complete. It is safe to call more than once.
func (h *Handle) Stop() {
	h.once.Do(func() { close(h.stop) })
	if h.inHook.Load() {
		return
	}
	<-h.done
}

// Done is closed once the schedule has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Start runs a cleanup of dir immediately and then every interval until the
// returned handle is stopped or ctx is cancelled. A failing or panicking
// tick is logged and the next tick still fires.
func (s *Scheduler) Start(ctx context.Context, dir string, policy Policy, interval time.Duration) (*Handle, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("cleanup interval must be positive, got %s", interval)
	}

	key, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve directory %s: %w", dir, err)
	}

	s.mu.Lock()
	if _, exists := s.handles[key]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyScheduled, key)
	}
	h := &Handle{
		dir:  key,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	s.handles[key] = h
	s.mu.Unlock()

	log.Info().
		Str("dir", key).
		Dur("interval", interval).
		Dur("retention", policy.Retention).
		Int("max_files", policy.MaxFiles).
		Bool("dry_run", policy.DryRun).
		Msg("Scheduled image cleanup started")

	go s.loop(ctx, h, policy, interval)
	return h, nil
}

// StopAll stops every running schedule.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	handles := make([]*Handle, 0, len(s.handles))
	for _, h := range s.handles {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, h := range handles {
		h.Stop()
	}
}

func (s *Scheduler) loop(ctx context.Context, h *Handle, policy Policy, interval time.Duration) {
	defer close(h.done)
	defer s.release(h)

	s.tick(ctx, h, policy)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			log.Info().Str("dir", h.dir).Msg("Scheduled image cleanup stopped")
			return
		case <-ctx.Done():
			log.Info().Str("dir", h.dir).Msg("Scheduled image cleanup cancelled")
			return
		case <-ticker.C:
			s.tick(ctx, h, policy)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, h *Handle, policy Policy) {
	dir := h.dir
	var (
		result *Result
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("cleanup panicked: %v", r)
			}
		}()
		result, err = s.sweeper.Cleanup(ctx, dir, policy)
	}()

	if err != nil {
		log.Error().Err(err).Str("dir", dir).Msg("Scheduled image cleanup failed")
	}
	if s.onRun != nil {
		h.inHook.Store(true)
		defer h.inHook.Store(false)
		s.onRun(dir, result, err)
	}
}

func (s *Scheduler) release(h *Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handles[h.dir] == h {
		delete(s.handles, h.dir)
	}
}
