package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fpang/autopost/internal/store"
)

func TestCronSpec(t *testing.T) {
	tests := []struct {
		name string
		cfg  store.ScheduleConfig
		want string
	}{
		{"daily", store.ScheduleConfig{Cadence: store.CadenceDaily, Hour: 8}, "0 0 8 * * *"},
		{"every n days", store.ScheduleConfig{Cadence: store.CadenceEveryNDays, Hour: 9, Minute: 30, EveryNDays: 3}, "0 30 9 */3 * *"},
		{"weekdays map monday to 1", store.ScheduleConfig{Cadence: store.CadenceWeekdays, Hour: 7, Minute: 5, Weekdays: []int{0, 2, 6}}, "0 5 7 * * 1,3,0"},
		{"unknown cadence runs daily", store.ScheduleConfig{Cadence: "hourly", Hour: 21, Minute: 15}, "0 15 21 * * *"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CronSpec(tt.cfg); got != tt.want {
				t.Errorf("CronSpec() = %q, want %q", got, tt.want)
			}
		})
	}
}

type blockingRunner struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingRunner) Run(ctx context.Context) (Outcome, error) {
	b.started <- struct{}{}
	<-b.release
	return OutcomeQueued, nil
}

type noopRunner struct{}

func (noopRunner) Run(context.Context) (Outcome, error) { return OutcomeDisabled, nil }

func TestServiceTriggerNowSingleFlight(t *testing.T) {
	r := &blockingRunner{started: make(chan struct{}, 1), release: make(chan struct{})}
	svc := NewService(r, time.UTC)
	if err := svc.Start(context.Background(), store.DefaultScheduleConfig()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	if !svc.TriggerNow() {
		t.Fatal("first TriggerNow() = false")
	}
	<-r.started
	if svc.TriggerNow() {
		t.Error("TriggerNow() started a second tick while one was running")
	}
	close(r.release)
	svc.Stop()

	if svc.inFlight.Load() {
		t.Error("tick still marked in flight after Stop")
	}
}

type countingRunner struct {
	mu    sync.Mutex
	calls int
}

func (c *countingRunner) Run(context.Context) (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return OutcomeDisabled, nil
}

func TestServiceStoppedRejectsTicks(t *testing.T) {
	r := &countingRunner{}
	svc := NewService(r, time.UTC)
	if err := svc.Start(context.Background(), store.DefaultScheduleConfig()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	svc.Stop()

	if svc.TriggerNow() {
		t.Error("TriggerNow() started a tick after Stop")
	}
	svc.tick()
	if r.calls != 0 {
		t.Errorf("runner called %d times after Stop", r.calls)
	}
	if svc.inFlight.Load() {
		t.Error("rejected tick left the slot claimed")
	}

	// A restarted service accepts ticks again.
	if err := svc.Start(context.Background(), store.DefaultScheduleConfig()); err != nil {
		t.Fatal(err)
	}
	svc.tick()
	svc.Stop()
	if r.calls != 1 {
		t.Errorf("runner called %d times after restart, want 1", r.calls)
	}
}

func TestServiceConcurrentTriggerAndStop(t *testing.T) {
	svc := NewService(&countingRunner{}, time.UTC)
	if err := svc.Start(context.Background(), store.DefaultScheduleConfig()); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			svc.TriggerNow()
		}()
		go func() {
			defer wg.Done()
			svc.tick()
		}()
	}
	svc.Stop()
	wg.Wait()
	svc.Stop()

	if svc.inFlight.Load() {
		t.Error("tick still marked in flight after Stop")
	}
}

func TestServiceNextRun(t *testing.T) {
	svc := NewService(noopRunner{}, time.UTC)
	// Monday 2 March 2026, 10:00 UTC.
	svc.now = func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) }

	if err := svc.Start(context.Background(), store.DefaultScheduleConfig()); err != nil {
		t.Fatal(err)
	}
	if next := svc.NextRun(); next != nil {
		t.Fatalf("NextRun() = %v for a disabled schedule, want nil", next)
	}

	cfg := store.DefaultScheduleConfig()
	cfg.Enabled = true
	cfg.Hour = 8
	if err := svc.Reschedule(cfg); err != nil {
		t.Fatalf("Reschedule() error: %v", err)
	}
	want := time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)
	if next := svc.NextRun(); next == nil || !next.Equal(want) {
		t.Errorf("NextRun() = %v, want %v", next, want)
	}

	cfg.Cadence = store.CadenceWeekdays
	cfg.Weekdays = []int{4} // Friday
	if err := svc.Reschedule(cfg); err != nil {
		t.Fatal(err)
	}
	want = time.Date(2026, 3, 6, 8, 0, 0, 0, time.UTC)
	if next := svc.NextRun(); next == nil || !next.Equal(want) {
		t.Errorf("weekday NextRun() = %v, want %v", next, want)
	}

	svc.Stop()
	if next := svc.NextRun(); next != nil {
		t.Errorf("NextRun() after Stop = %v, want nil", next)
	}
}

func TestServiceUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	svc := NewService(noopRunner{}, loc)
	svc.now = func() time.Time { return time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) } // 09:00 local

	cfg := store.DefaultScheduleConfig()
	cfg.Enabled = true
	cfg.Hour, cfg.Minute = 12, 30
	if err := svc.Start(context.Background(), cfg); err != nil {
		t.Fatal(err)
	}
	defer svc.Stop()

	want := time.Date(2026, 3, 2, 12, 30, 0, 0, loc)
	if next := svc.NextRun(); next == nil || !next.Equal(want) {
		t.Errorf("NextRun() = %v, want %v", next, want)
	}
}

func TestNextFire(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	cfg := store.DefaultScheduleConfig()
	if got := NextFire(cfg, time.UTC, now); got != nil {
		t.Errorf("NextFire(disabled) = %v, want nil", got)
	}

	cfg.Enabled = true
	cfg.Cadence = store.CadenceEveryNDays
	cfg.EveryNDays = 10
	cfg.Hour = 6
	want := time.Date(2026, 3, 11, 6, 0, 0, 0, time.UTC)
	if got := NextFire(cfg, time.UTC, now); got == nil || !got.Equal(want) {
		t.Errorf("NextFire(every 10 days) = %v, want %v", got, want)
	}
}
