// Package scheduler runs background refresh tasks on interval, daily,
// weekly, one-shot or cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"

	"github.com/quantumlife/nostrboard/internal/logging"
)

var taskRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "nostrboard_scheduler_runs_total",
	Help: "Scheduled task executions by outcome",
}, []string{"task", "outcome"})

// Scheduler manages scheduled tasks
type Scheduler struct {
	tasks    map[string]*Task
	running  map[string]context.CancelFunc
	mu       sync.RWMutex
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	timezone *time.Location
	log      *logging.Logger
}

// Config configures the scheduler
type Config struct {
	Timezone string // Timezone for daily, weekly and cron schedules (default: Local)
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Timezone: "Local",
	}
}

// NewScheduler creates a new scheduler. An unknown timezone falls back to Local.
func NewScheduler(cfg Config) (*Scheduler, error) {
	tz, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		tz = time.Local
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		tasks:    make(map[string]*Task),
		running:  make(map[string]context.CancelFunc),
		ctx:      ctx,
		cancel:   cancel,
		timezone: tz,
		log:      logging.WithField("component", "scheduler"),
	}, nil
}

// Task represents a scheduled task
type Task struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Schedule    Schedule      `json:"schedule"`
	Handler     TaskHandler   `json:"-"`
	Enabled     bool          `json:"enabled"`
	LastRun     *time.Time    `json:"last_run,omitempty"`
	NextRun     *time.Time    `json:"next_run,omitempty"`
	RunCount    int64         `json:"run_count"`
	ErrorCount  int64         `json:"error_count"`
	LastError   string        `json:"last_error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	Timeout     time.Duration `json:"timeout"`

	cron cron.Schedule
}

// TaskHandler is the function executed for a task
type TaskHandler func(ctx context.Context) error

// Schedule defines when a task runs
type Schedule struct {
	Type     ScheduleType   `json:"type"`
	Interval time.Duration  `json:"interval,omitempty"` // For interval schedules
	Cron     string         `json:"cron,omitempty"`     // Standard 5-field expression or descriptor
	At       string         `json:"at,omitempty"`       // "08:00" for daily and weekly, RFC3339 for once
	Days     []time.Weekday `json:"days,omitempty"`     // For weekly schedules
}

// ScheduleType represents the type of schedule
type ScheduleType string

const (
	ScheduleInterval ScheduleType = "interval" // Run every X duration
	ScheduleDaily    ScheduleType = "daily"    // Run at specific time daily
	ScheduleWeekly   ScheduleType = "weekly"   // Run on specific days
	ScheduleCron     ScheduleType = "cron"     // Cron expression
	ScheduleOnce     ScheduleType = "once"     // Run once at specific time
)

// ParseSchedule reads a config value:
//
//	"30s"                     interval (any positive Go duration)
//	"daily@07:30"             every day at a local clock time
//	"weekly@mon,thu@07:30"    on the listed weekdays at a clock time
//	"once@2025-03-15T08:00:00Z"
//	"*/5 * * * *", "@hourly"  cron expression
func ParseSchedule(spec string) (Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Schedule{}, fmt.Errorf("empty schedule")
	}

	if d, err := time.ParseDuration(spec); err == nil {
		if d <= 0 {
			return Schedule{}, fmt.Errorf("interval must be positive: %s", spec)
		}
		return Schedule{Type: ScheduleInterval, Interval: d}, nil
	}

	if kind, rest, ok := strings.Cut(spec, "@"); ok && kind != "" {
		return parseCalendar(strings.ToLower(kind), rest)
	}

	if _, err := cron.ParseStandard(spec); err != nil {
		return Schedule{}, fmt.Errorf("schedule %q is neither a duration nor a cron expression: %w", spec, err)
	}
	return Schedule{Type: ScheduleCron, Cron: spec}, nil
}

func parseCalendar(kind, rest string) (Schedule, error) {
	var sched Schedule
	switch kind {
	case "daily":
		sched = Schedule{Type: ScheduleDaily, At: rest}
	case "weekly":
		days, at, ok := strings.Cut(rest, "@")
		if !ok {
			return Schedule{}, fmt.Errorf("weekly schedule needs days and time: weekly@mon,thu@07:30")
		}
		weekdays, err := parseWeekdays(days)
		if err != nil {
			return Schedule{}, err
		}
		sched = Schedule{Type: ScheduleWeekly, At: at, Days: weekdays}
	case "once":
		sched = Schedule{Type: ScheduleOnce, At: rest}
	default:
		return Schedule{}, fmt.Errorf("unknown schedule kind %q", kind)
	}
	if err := sched.validate(); err != nil {
		return Schedule{}, err
	}
	return sched, nil
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

func parseWeekdays(list string) ([]time.Weekday, error) {
	var days []time.Weekday
	for _, name := range strings.Split(list, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if len(name) > 3 {
			name = name[:3]
		}
		day, ok := weekdayNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		days = append(days, day)
	}
	return days, nil
}

// validate checks the fields a calendar schedule depends on.
func (sc Schedule) validate() error {
	switch sc.Type {
	case ScheduleDaily:
		_, _, err := clockOf(sc.At)
		return err
	case ScheduleWeekly:
		if len(sc.Days) == 0 {
			return fmt.Errorf("weekly schedule has no days")
		}
		_, _, err := clockOf(sc.At)
		return err
	case ScheduleOnce:
		if _, err := time.Parse(time.RFC3339, sc.At); err != nil {
			return fmt.Errorf("once schedule needs an RFC3339 time: %w", err)
		}
	}
	return nil
}

// Register adds a task to the scheduler
func (s *Scheduler) Register(task *Task) error {
	if task.ID == "" {
		return fmt.Errorf("task ID is required")
	}
	if task.Handler == nil {
		return fmt.Errorf("task handler is required")
	}

	switch task.Schedule.Type {
	case ScheduleCron:
		sched, err := cron.ParseStandard(task.Schedule.Cron)
		if err != nil {
			return fmt.Errorf("task %s: invalid cron %q: %w", task.ID, task.Schedule.Cron, err)
		}
		task.cron = sched
	case ScheduleInterval:
		if task.Schedule.Interval <= 0 {
			return fmt.Errorf("task %s: interval must be positive", task.ID)
		}
	default:
		if err := task.Schedule.validate(); err != nil {
			return fmt.Errorf("task %s: %w", task.ID, err)
		}
	}

	if task.Timeout == 0 {
		task.Timeout = 5 * time.Minute
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task.CreatedAt = time.Now()
	task.Enabled = true

	nextRun := s.calculateNextRun(task)
	task.NextRun = &nextRun

	s.tasks[task.ID] = task

	if s.started {
		s.startTask(task)
	}

	return nil
}

// Unregister removes a task from the scheduler
func (s *Scheduler) Unregister(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, ok := s.running[taskID]; ok {
		cancel()
		delete(s.running, taskID)
	}

	delete(s.tasks, taskID)
	return nil
}

// Enable enables a task
func (s *Scheduler) Enable(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("task not found: %s", taskID)
	}

	task.Enabled = true
	if _, running := s.running[taskID]; s.started && !running {
		s.startTask(task)
	}

	return nil
}

// Disable disables a task
func (s *Scheduler) Disable(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("task not found: %s", taskID)
	}

	task.Enabled = false
	if cancel, ok := s.running[taskID]; ok {
		cancel()
		delete(s.running, taskID)
	}

	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler already started")
	}

	s.started = true

	for _, task := range s.tasks {
		if task.Enabled {
			s.startTask(task)
		}
	}

	return nil
}

// Stop cancels every task loop and waits for in-flight runs to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}

	s.cancel()
	for _, cancel := range s.running {
		cancel()
	}
	s.running = make(map[string]context.CancelFunc)
	s.mu.Unlock()

	// Task loops take s.mu while finishing, so wait without holding it.
	s.wg.Wait()

	s.mu.Lock()
	s.started = false
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	return nil
}

// startTask starts a single task's loop; s.mu must be held.
func (s *Scheduler) startTask(task *Task) {
	taskCtx, cancel := context.WithCancel(s.ctx)
	s.running[task.ID] = cancel

	s.wg.Add(1)
	go s.runTaskLoop(taskCtx, task)
}

func (s *Scheduler) runTaskLoop(ctx context.Context, task *Task) {
	defer s.wg.Done()

	for {
		s.mu.RLock()
		var wait time.Duration
		if task.NextRun != nil {
			wait = time.Until(*task.NextRun)
		} else {
			wait = time.Until(s.calculateNextRun(task))
		}
		once := task.Schedule.Type == ScheduleOnce
		s.mu.RUnlock()

		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.executeTask(ctx, task)
		}

		if once {
			return
		}
	}
}

func (s *Scheduler) executeTask(ctx context.Context, task *Task) {
	execCtx, cancel := context.WithTimeout(ctx, task.Timeout)
	defer cancel()

	now := time.Now()
	s.mu.Lock()
	task.LastRun = &now
	task.RunCount++
	s.mu.Unlock()

	err := task.Handler(execCtx)

	s.mu.Lock()
	if err != nil {
		task.ErrorCount++
		task.LastError = err.Error()
	} else {
		task.LastError = ""
	}
	nextRun := s.calculateNextRun(task)
	task.NextRun = &nextRun
	s.mu.Unlock()

	if err != nil {
		taskRuns.WithLabelValues(task.ID, "error").Inc()
		s.log.WithField("task", task.ID).Warn("run failed after %s: %v", time.Since(now).Round(time.Millisecond), err)
		return
	}
	taskRuns.WithLabelValues(task.ID, "ok").Inc()
	s.log.WithField("task", task.ID).Debug("run finished in %s", time.Since(now).Round(time.Millisecond))
}

// calculateNextRun returns when task should run next after now.
func (s *Scheduler) calculateNextRun(task *Task) time.Time {
	now := time.Now().In(s.timezone)
	schedule := task.Schedule

	switch schedule.Type {
	case ScheduleInterval:
		return now.Add(schedule.Interval)

	case ScheduleCron:
		if task.cron == nil {
			sched, err := cron.ParseStandard(schedule.Cron)
			if err != nil {
				return now.Add(time.Hour)
			}
			task.cron = sched
		}
		return task.cron.Next(now)

	case ScheduleDaily:
		hour, minute := parseClock(schedule.At)
		next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, s.timezone)
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next

	case ScheduleWeekly:
		hour, minute := parseClock(schedule.At)
		base := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, s.timezone)
		for i := 0; i < 8; i++ {
			candidate := base.AddDate(0, 0, i)
			for _, day := range schedule.Days {
				if candidate.Weekday() == day && candidate.After(now) {
					return candidate
				}
			}
		}
		return base.AddDate(0, 0, 7)

	case ScheduleOnce:
		t, err := time.Parse(time.RFC3339, schedule.At)
		if err != nil {
			return now.Add(time.Minute)
		}
		return t

	default:
		return now.Add(time.Hour)
	}
}

// parseClock reads "HH:MM", defaulting to 08:00.
func parseClock(at string) (int, int) {
	hour, minute, err := clockOf(at)
	if err != nil {
		return 8, 0
	}
	return hour, minute
}

func clockOf(at string) (int, int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(at))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock time %q, want HH:MM", at)
	}
	return t.Hour(), t.Minute(), nil
}

// RunNow executes a task immediately
func (s *Scheduler) RunNow(taskID string) error {
	s.mu.RLock()
	task, ok := s.tasks[taskID]
	ctx := s.ctx
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("task not found: %s", taskID)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.executeTask(ctx, task)
	}()
	return nil
}

// GetTask returns a task by ID
func (s *Scheduler) GetTask(taskID string) (*Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[taskID]
	return task, ok
}

// ListTasks returns all tasks
func (s *Scheduler) ListTasks() []*Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]*Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, task)
	}
	return tasks
}

// Snapshot returns copies of all tasks ordered by ID, safe to read while
// tasks keep running.
func (s *Scheduler) Snapshot() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, *task)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks
}

// GetStats returns scheduler statistics
func (s *Scheduler) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Started:      s.started,
		TotalTasks:   len(s.tasks),
		RunningTasks: len(s.running),
		Timezone:     s.timezone.String(),
	}

	for _, task := range s.tasks {
		if task.Enabled {
			stats.EnabledTasks++
		}
		stats.TotalRuns += task.RunCount
		stats.TotalErrors += task.ErrorCount
	}

	return stats
}

// Stats contains scheduler statistics
type Stats struct {
	Started      bool   `json:"started"`
	TotalTasks   int    `json:"total_tasks"`
	EnabledTasks int    `json:"enabled_tasks"`
	RunningTasks int    `json:"running_tasks"`
	TotalRuns    int64  `json:"total_runs"`
	TotalErrors  int64  `json:"total_errors"`
	Timezone     string `json:"timezone"`
}

// IntervalTask creates a task that runs at a fixed interval
func IntervalTask(id, name string, interval time.Duration, handler TaskHandler) *Task {
	return &Task{
		ID:       id,
		Name:     name,
		Schedule: Schedule{Type: ScheduleInterval, Interval: interval},
		Handler:  handler,
	}
}

// CronTask creates a task driven by a cron expression
func CronTask(id, name, expr string, handler TaskHandler) *Task {
	return &Task{
		ID:       id,
		Name:     name,
		Schedule: Schedule{Type: ScheduleCron, Cron: expr},
		Handler:  handler,
	}
}

// DailyTask creates a task that runs daily at a specific time
func DailyTask(id, name, at string, handler TaskHandler) *Task {
	return &Task{
		ID:       id,
		Name:     name,
		Schedule: Schedule{Type: ScheduleDaily, At: at},
		Handler:  handler,
	}
}

// OnceTask creates a task that runs once at a specific time
func OnceTask(id, name string, at time.Time, handler TaskHandler) *Task {
	return &Task{
		ID:       id,
		Name:     name,
		Schedule: Schedule{Type: ScheduleOnce, At: at.Format(time.RFC3339)},
		Handler:  handler,
	}
}

// ScheduledTask creates a task from a parsed schedule with a run timeout.
func ScheduledTask(id, name string, schedule Schedule, timeout time.Duration, handler TaskHandler) *Task {
	return &Task{
		ID:       id,
		Name:     name,
		Schedule: schedule,
		Handler:  handler,
		Timeout:  timeout,
	}
}
