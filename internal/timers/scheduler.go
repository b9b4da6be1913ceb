// Package timers schedules named deferred events backed by persistent
// storage, with an in-memory fast path for near-term deadlines.
package timers

import (
	"context"
	"sync"
	"time"

	"github.com/Fyssion/GlaDOS/internal/storage"

	"go.uber.org/zap"
)

const completionSuffix = "_timer_complete"

// Handler receives a fired timer. Handlers for an event run in registration
// order within one dispatch.
type Handler func(ctx context.Context, timer storage.Timer)

// Config tunes the scheduler. Zero values fall back to the defaults, which
// match production behavior: poll every 30s, keep timers due within 60s in
// memory only, and wake the loop for anything inside 40 days.
type Config struct {
	PollInterval time.Duration
	ShortDelay   time.Duration
	WakeHorizon  time.Duration
}

// Scheduler owns the dispatch loop over persisted timers. Timers with short
// delays are dispatched from memory and never persisted; they carry no ID and
// cannot be referenced later.
type Scheduler struct {
	store  *storage.Store
	logger *zap.Logger
	cfg    Config

	mu       sync.Mutex
	handlers map[string][]Handler

	// Single-slot wake signal; safe to set redundantly from concurrent
	// Create calls.
	wake chan struct{}

	wg sync.WaitGroup
}

func New(store *storage.Store, logger *zap.Logger, cfg Config) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.ShortDelay <= 0 {
		cfg.ShortDelay = 60 * time.Second
	}
	if cfg.WakeHorizon <= 0 {
		cfg.WakeHorizon = 40 * 24 * time.Hour
	}
	return &Scheduler{
		store:    store,
		logger:   logger,
		cfg:      cfg,
		handlers: make(map[string][]Handler),
		wake:     make(chan struct{}, 1),
	}
}

// Subscribe registers a handler for a completion event name, e.g.
// "block_timer_complete". Register at startup, before Run.
func (s *Scheduler) Subscribe(event string, handler Handler) {
	s.mu.Lock()
	s.handlers[event] = append(s.handlers[event], handler)
	s.mu.Unlock()
}

// Create schedules event to fire at expiresAt carrying args and kwargs.
// Delays at or under the short-delay threshold are dispatched from an
// in-process task and never written to storage; the returned timer then has
// no ID. Longer delays are persisted, and the dispatch loop is woken when the
// new timer is near enough that it could be more urgent than whatever the
// loop is sleeping on.
func (s *Scheduler) Create(ctx context.Context, expiresAt time.Time, event string, args []any, kwargs map[string]any) (storage.Timer, error) {
	return s.CreateAt(ctx, time.Now(), expiresAt, event, args, kwargs)
}

// CreateAt is Create with a pinned creation time, for callers that need the
// created/expiry delta to stay consistent across retries or replays.
func (s *Scheduler) CreateAt(ctx context.Context, createdAt, expiresAt time.Time, event string, args []any, kwargs map[string]any) (storage.Timer, error) {
	timer := storage.Timer{
		Event:     event,
		Args:      args,
		Kwargs:    kwargs,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}

	delay := expiresAt.Sub(createdAt)
	if delay <= s.cfg.ShortDelay {
		s.wg.Add(1)
		go s.shortTimer(ctx, delay, timer)
		return timer, nil
	}

	if err := s.store.InsertTimer(ctx, &timer); err != nil {
		return storage.Timer{}, err
	}

	if delay <= s.cfg.WakeHorizon {
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
	return timer, nil
}

func (s *Scheduler) shortTimer(ctx context.Context, delay time.Duration, timer storage.Timer) {
	defer s.wg.Done()
	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return
		}
	}
	s.dispatch(ctx, timer)
}

// Run drives the dispatch loop until ctx is cancelled. It waits for storage
// connectivity before the first poll, and a failed poll is logged and retried
// on the next tick rather than tearing the loop down.
func (s *Scheduler) Run(ctx context.Context) {
	if !s.waitForStorage(ctx) {
		return
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	s.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return
		case <-ticker.C:
			s.poll(ctx)
		case <-s.wake:
			s.poll(ctx)
		}
	}
}

func (s *Scheduler) waitForStorage(ctx context.Context) bool {
	for {
		if err := s.store.Ping(ctx); err == nil {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Second):
		}
	}
}

func (s *Scheduler) poll(ctx context.Context) {
	due, err := s.store.DueTimers(ctx, s.cfg.PollInterval)
	if err != nil {
		s.logger.Warn("timer poll failed", zap.Error(err))
		return
	}
	for _, timer := range due {
		s.wg.Add(1)
		go s.fire(ctx, timer)
	}
}

// fire sleeps until the timer is due, deletes the row, and dispatches. The
// delete happens before dispatch, so a crash in between loses the firing:
// at-most-once by design. The rows-affected result guards against a second
// poll cycle firing the same timer.
func (s *Scheduler) fire(ctx context.Context, timer storage.Timer) {
	defer s.wg.Done()

	if wait := time.Until(timer.ExpiresAt); wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return
		}
	}

	deleted, err := s.store.DeleteTimer(ctx, timer.ID)
	if err != nil {
		s.logger.Warn("timer delete failed", zap.Int64("id", timer.ID), zap.Error(err))
		return
	}
	if !deleted {
		return
	}
	s.dispatch(ctx, timer)
}

func (s *Scheduler) dispatch(ctx context.Context, timer storage.Timer) {
	event := timer.Event + completionSuffix

	s.mu.Lock()
	handlers := make([]Handler, len(s.handlers[event]))
	copy(handlers, s.handlers[event])
	s.mu.Unlock()

	s.logger.Info("timer fired", zap.String("event", event), zap.Int64("id", timer.ID))
	for _, handler := range handlers {
		handler(ctx, timer)
	}
}
