package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"basegraph.app/standup/common/logger"
	"basegraph.app/standup/internal/scheduler"
	"basegraph.app/standup/internal/store"
)

// Prompt is the message a reminder sends.
const Prompt = ":calendar: It's time for your Standup report! **Type `/standup start` to begin.**"

var ErrNotRegistered = errors.New("user is not registered for reminders")

// Remind is called when a user's reminder fires.
type Remind func(ctx context.Context, userID string) error

// Patch changes part of a setting. Nil fields are left as stored.
type Patch struct {
	Timezone    *string
	Hour        *int
	Minute      *int
	ExcludeDays []string
}

func (p Patch) apply(s Setting) Setting {
	if p.Timezone != nil {
		s.Timezone = *p.Timezone
	}
	if p.Hour != nil {
		s.Hour = *p.Hour
	}
	if p.Minute != nil {
		s.Minute = *p.Minute
	}
	if p.ExcludeDays != nil {
		s.ExcludeDays = p.ExcludeDays
	}
	return s
}

type Option func(*Manager)

func WithClock(c scheduler.Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

// Manager owns one scheduled task per registered user.
type Manager struct {
	settings *store.Collection[Setting]
	remind   Remind
	clock    scheduler.Clock

	mu    sync.Mutex
	tasks map[string]*scheduler.Task
}

func NewManager(kv store.KV, remind Remind, opts ...Option) *Manager {
	m := &Manager{
		settings: store.NewCollection[Setting](kv, store.NamespaceReminders),
		remind:   remind,
		clock:    scheduler.SystemClock{},
		tasks:    make(map[string]*scheduler.Task),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Settings() *store.Collection[Setting] {
	return m.settings
}

// Register saves a setting for userID, keeping an existing schedule and only moving it
// to timezone, and starts the reminder.
func (m *Manager) Register(ctx context.Context, userID, timezone string) (Setting, error) {
	setting, ok, err := m.settings.Lookup(ctx, userID)
	if err != nil {
		return Setting{}, fmt.Errorf("loading reminder: %w", err)
	}
	if !ok {
		setting = DefaultSetting(timezone)
	}
	setting.Timezone = timezone
	return setting, m.save(ctx, userID, setting)
}

// Update applies patch to the stored setting and reschedules.
func (m *Manager) Update(ctx context.Context, userID string, patch Patch) (Setting, error) {
	setting, ok, err := m.settings.Lookup(ctx, userID)
	if err != nil {
		return Setting{}, fmt.Errorf("loading reminder: %w", err)
	}
	if !ok {
		return Setting{}, ErrNotRegistered
	}
	setting = patch.apply(setting)
	return setting, m.save(ctx, userID, setting)
}

func (m *Manager) save(ctx context.Context, userID string, setting Setting) error {
	if err := setting.Validate(); err != nil {
		return err
	}
	if err := m.settings.Put(ctx, userID, setting); err != nil {
		return fmt.Errorf("saving reminder: %w", err)
	}
	return m.Schedule(ctx, userID, setting)
}

// Schedule (re)starts the reminder task of userID.
func (m *Manager) Schedule(ctx context.Context, userID string, setting Setting) error {
	schedule, err := setting.Schedule()
	if err != nil {
		return err
	}

	task := scheduler.NewTask("reminder", schedule, func(ctx context.Context) {
		ctx = logger.WithLogFields(ctx, logger.LogFields{
			UserID: logger.Ptr(userID),
			Action: logger.Ptr("reminder"),
		})
		if err := m.remind(ctx, userID); err != nil {
			slog.WarnContext(ctx, "reminder failed", "error", err)
			return
		}
		slog.InfoContext(ctx, "reminder sent")
	}, scheduler.WithClock(m.clock))

	m.mu.Lock()
	prev := m.tasks[userID]
	m.tasks[userID] = task
	m.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}
	task.Start(context.WithoutCancel(ctx))
	return nil
}

// Restore schedules every stored reminder. Invalid settings are logged and skipped.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	all, err := m.settings.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading reminders: %w", err)
	}
	scheduled := 0
	for userID, setting := range all {
		if err := m.Schedule(ctx, userID, setting); err != nil {
			slog.WarnContext(ctx, "skipping invalid reminder", "user_id", userID, "error", err)
			continue
		}
		scheduled++
	}
	slog.InfoContext(ctx, "reminders restored", "count", scheduled)
	return scheduled, nil
}

// NextFire returns when userID's reminder fires next, after now.
func (m *Manager) NextFire(ctx context.Context, userID string) (time.Time, error) {
	setting, err := m.settings.Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return time.Time{}, ErrNotRegistered
	}
	if err != nil {
		return time.Time{}, err
	}
	schedule, err := setting.Schedule()
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(m.clock.Now()), nil
}

// Now is the manager's clock, used for help texts.
func (m *Manager) Now() time.Time {
	return m.clock.Now()
}

func (m *Manager) Scheduled(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tasks[userID]
	return ok
}

// Cancel stops userID's reminder without touching the stored setting.
func (m *Manager) Cancel(userID string) {
	m.mu.Lock()
	task := m.tasks[userID]
	delete(m.tasks, userID)
	m.mu.Unlock()

	if task != nil {
		task.Stop()
	}
}

// Stop stops every reminder.
func (m *Manager) Stop() {
	m.mu.Lock()
	tasks := m.tasks
	m.tasks = make(map[string]*scheduler.Task)
	m.mu.Unlock()

	for _, t := range tasks {
		t.Stop()
	}
}
