package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fpang/autopost/internal/store"
	"github.com/robfig/cron"
	"github.com/rs/zerolog/log"
)

// Runner executes one tick.
type Runner interface {
	Run(ctx context.Context) (Outcome, error)
}

// CronSpec returns the six-field cron expression (seconds first) for cfg.
// Config weekdays count Monday as 0; cron counts Sunday as 0.
func CronSpec(cfg store.ScheduleConfig) string {
	cfg = cfg.Normalize()
	base := fmt.Sprintf("0 %d %d", cfg.Minute, cfg.Hour)

	switch cfg.Cadence {
	case store.CadenceEveryNDays:
		return fmt.Sprintf("%s */%d * *", base, cfg.EveryNDays)
	case store.CadenceWeekdays:
		days := make([]string, len(cfg.Weekdays))
		for i, d := range cfg.Weekdays {
			days[i] = strconv.Itoa((d + 1) % 7)
		}
		return fmt.Sprintf("%s * * %s", base, strings.Join(days, ","))
	default:
		return base + " * * *"
	}
}

// NextFire returns when cfg next fires after now, evaluated in loc, or nil
// when the schedule is disabled.
func NextFire(cfg store.ScheduleConfig, loc *time.Location, now time.Time) *time.Time {
	if !cfg.Enabled {
		return nil
	}
	return nextAfter(CronSpec(cfg), now.In(loc))
}

func nextAfter(spec string, t time.Time) *time.Time {
	sched, err := cron.Parse(spec)
	if err != nil {
		log.Warn().Err(err).Str("spec", spec).Msg("Unparseable cron spec")
		return nil
	}
	next := sched.Next(t)
	return &next
}

// Service owns the cron schedule that triggers ticks. The zero value is not
// usable; create one with NewService.
type Service struct {
	runner Runner
	loc    *time.Location
	now    func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
	spec string

	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool

	// wg.Add happens under mu while stopped is false, so Stop's Wait never
	// races a new tick.
	wg       sync.WaitGroup
	inFlight atomic.Bool
}

// NewService creates a Service firing in loc (UTC when nil).
func NewService(runner Runner, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{runner: runner, loc: loc, now: time.Now}
}

// Location returns the schedule's timezone.
func (s *Service) Location() *time.Location { return s.loc }

// Start installs the schedule for cfg. Ticks run with a context derived
// from ctx; Stop cancels it.
func (s *Service) Start(ctx context.Context, cfg store.ScheduleConfig) error {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.stopped = false
	s.mu.Unlock()
	return s.Reschedule(cfg)
}

// Reschedule replaces the current schedule with one for cfg. A disabled
// config leaves no schedule installed.
func (s *Service) Reschedule(cfg store.ScheduleConfig) error {
	cfg = cfg.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
		s.spec = ""
	}
	if !cfg.Enabled {
		log.Info().Msg("Scheduler: disabled, no job installed")
		return nil
	}

	spec := CronSpec(cfg)
	c := cron.NewWithLocation(s.loc)
	if err := c.AddFunc(spec, s.tick); err != nil {
		return fmt.Errorf("install schedule %q: %w", spec, err)
	}
	c.Start()
	s.cron = c
	s.spec = spec

	ev := log.Info().Str("spec", spec).Str("timezone", s.loc.String())
	if next := s.nextLocked(); next != nil {
		ev = ev.Time("nextRun", *next)
	}
	ev.Msg("Scheduler: job installed")
	return nil
}

// TriggerNow starts a tick on its own goroutine. It returns false when a
// tick started by this Service is still running or the Service is stopped.
func (s *Service) TriggerNow() bool {
	if !s.begin() {
		return false
	}
	go func() {
		defer s.end()
		s.run()
	}()
	return true
}

// NextRun returns the next scheduled fire time, or nil when nothing is
// scheduled.
func (s *Service) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextLocked()
}

func (s *Service) nextLocked() *time.Time {
	if s.spec == "" {
		return nil
	}
	return nextAfter(s.spec, s.now().In(s.loc))
}

// Stop removes the schedule, cancels running ticks, and waits for them.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
		s.spec = ""
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.stopped = true
	s.mu.Unlock()
	s.wg.Wait()
}

// begin claims the single tick slot.
func (s *Service) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || !s.inFlight.CompareAndSwap(false, true) {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Service) end() {
	s.inFlight.Store(false)
	s.wg.Done()
}

func (s *Service) tick() {
	if !s.begin() {
		log.Warn().Msg("Scheduler: tick skipped, previous tick still running or scheduler stopped")
		return
	}
	defer s.end()
	s.run()
}

func (s *Service) run() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Scheduler: tick panicked")
		}
	}()
	// Run logs its own outcome.
	_, _ = s.runner.Run(ctx)
}
