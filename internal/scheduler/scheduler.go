// Package scheduler runs named recurring alarms in process. Registering a
// name that already exists replaces the earlier alarm, so callers can
// re-register defensively on every start.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/growth-engine/internal/logging"
	"github.com/growth-engine/internal/models"
)

// Func is the work an alarm runs. Errors are logged and the alarm keeps firing.
type Func func(ctx context.Context) error

// Kind distinguishes interval alarms from midnight alarms
type Kind string

const (
	KindInterval Kind = "interval"
	KindDaily    Kind = "daily"
)

// ErrUnknownAlarm is returned by Fire for a name with no registered alarm
var ErrUnknownAlarm = errors.New("alarm is not registered")

// AlarmInfo describes a registered alarm
type AlarmInfo struct {
	Name     string        `json:"name"`
	Kind     Kind          `json:"kind"`
	Interval time.Duration `json:"interval,omitempty"`
	LastRun  *time.Time    `json:"lastRun,omitempty"`
	Runs     int           `json:"runs"`
}

type alarm struct {
	info   AlarmInfo
	fn     Func
	cancel context.CancelFunc
	doneCh chan struct{}
}

// Config holds configuration for a scheduler
type Config struct {
	// Now is the clock used for midnight alarms. Default: time.Now.
	Now func() time.Time
}

// Scheduler owns one goroutine per alarm
type Scheduler struct {
	now func() time.Time

	mu      sync.Mutex
	ctx     context.Context
	running bool
	alarms  map[string]*alarm
}

// New creates a stopped scheduler
func New(cfg *Config) *Scheduler {
	now := time.Now
	if cfg != nil && cfg.Now != nil {
		now = cfg.Now
	}
	return &Scheduler{
		now:    now,
		alarms: make(map[string]*alarm),
	}
}

// Start runs registered alarms until ctx is done or Stop is called.
// Alarms registered later start immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.ctx = ctx
	for _, a := range s.alarms {
		s.launchLocked(a)
	}
	logging.FromContext(ctx).Named("scheduler").WithField("alarms", len(s.alarms)).Info("Scheduler started")
	return nil
}

// Stop halts every alarm and waits for in-flight runs to return
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is not running")
	}
	s.running = false
	alarms := make([]*alarm, 0, len(s.alarms))
	for _, a := range s.alarms {
		alarms = append(alarms, a)
	}
	s.mu.Unlock()

	for _, a := range alarms {
		if err := halt(ctx, a); err != nil {
			return err
		}
	}
	logging.FromContext(ctx).Named("scheduler").Info("Scheduler stopped")
	return nil
}

// Every registers fn to run once per interval
func (s *Scheduler) Every(name string, interval time.Duration, fn Func) {
	if interval <= 0 {
		logging.WithField("alarm", name).Warn("Ignoring alarm with non-positive interval")
		return
	}
	s.register(&alarm{info: AlarmInfo{Name: name, Kind: KindInterval, Interval: interval}, fn: fn})
}

// Daily registers fn to run at every local midnight
func (s *Scheduler) Daily(name string, fn Func) {
	s.register(&alarm{info: AlarmInfo{Name: name, Kind: KindDaily}, fn: fn})
}

// Cancel removes an alarm, cancels its in-flight run and waits for that run
// to return or ctx to end. It reports whether the alarm existed.
func (s *Scheduler) Cancel(ctx context.Context, name string) bool {
	s.mu.Lock()
	a, ok := s.alarms[name]
	if ok {
		delete(s.alarms, name)
	}
	s.mu.Unlock()

	if ok {
		if err := halt(ctx, a); err != nil {
			logging.FromContext(ctx).Named("scheduler").WithField("alarm", name).WithError(err).Warn("Alarm run still in flight after cancel")
		}
	}
	return ok
}

// Fire runs the named alarm's work now, outside its schedule
func (s *Scheduler) Fire(ctx context.Context, name string) error {
	s.mu.Lock()
	a, ok := s.alarms[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAlarm, name)
	}
	s.run(ctx, a)
	return nil
}

// Alarms lists registered alarms by name
func (s *Scheduler) Alarms() []AlarmInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AlarmInfo, 0, len(s.alarms))
	for _, a := range s.alarms {
		out = append(out, a.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) register(a *alarm) {
	s.mu.Lock()
	old := s.alarms[a.info.Name]
	s.alarms[a.info.Name] = a
	if s.running {
		s.launchLocked(a)
	}
	s.mu.Unlock()

	if old != nil && old.cancel != nil {
		old.cancel()
	}
}

func (s *Scheduler) launchLocked(a *alarm) {
	ctx, cancel := context.WithCancel(s.ctx)
	a.cancel = cancel
	a.doneCh = make(chan struct{})
	go s.loop(ctx, a)
}

func (s *Scheduler) loop(ctx context.Context, a *alarm) {
	defer close(a.doneCh)

	for {
		timer := time.NewTimer(s.untilNext(a))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.run(ctx, a)
		}
	}
}

func (s *Scheduler) untilNext(a *alarm) time.Duration {
	if a.info.Kind == KindDaily {
		now := s.now()
		return models.NextMidnight(now).Sub(now)
	}
	return a.info.Interval
}

func (s *Scheduler) run(ctx context.Context, a *alarm) {
	logger := logging.FromContext(ctx).Named("scheduler").WithField("alarm", a.info.Name)
	now := s.now()

	s.mu.Lock()
	a.info.LastRun = &now
	a.info.Runs++
	s.mu.Unlock()

	if err := a.fn(logging.WithLogger(ctx, logger)); err != nil {
		logger.WithError(err).Error("Alarm failed")
	}
}

func halt(ctx context.Context, a *alarm) error {
	if a.cancel == nil {
		return nil
	}
	a.cancel()
	select {
	case <-a.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
