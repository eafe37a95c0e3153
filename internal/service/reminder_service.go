package service

import (
	"context"
	"fmt"
	"time"

	"taskhub/internal/domain"
	"taskhub/internal/metrics"
	"taskhub/internal/models"

	"github.com/rs/zerolog"
)

type outstandingTasks interface {
	ListOutstanding(ctx context.Context) ([]models.Task, error)
}

type reminderClaims interface {
	Claim(ctx context.Context, taskID uint, threshold string, at time.Time) (bool, error)
	Release(ctx context.Context, taskID uint, threshold string) error
}

type deadlineNotifier interface {
	NotifyDeadline(ctx context.Context, task *models.Task, threshold string) (*models.Notification, error)
}

// DueThresholds returns the thresholds that should fire for a task whose due
// date is untilDue away. A forward threshold t fires when untilDue lies in
// [t-window, t+window]; overdue fires once untilDue is negative. Thresholds
// for which has returns true are skipped.
func DueThresholds(untilDue, window time.Duration, has func(string) bool) []string {
	var out []string
	if untilDue < 0 {
		if !has(domain.ThresholdOverdue) {
			out = append(out, domain.ThresholdOverdue)
		}
		return out
	}
	for _, t := range domain.ForwardThresholds {
		if untilDue < t.Before-window || untilDue > t.Before+window {
			continue
		}
		if has(t.Type) {
			continue
		}
		out = append(out, t.Type)
	}
	return out
}

type ReminderService struct {
	tasks   outstandingTasks
	claims  reminderClaims
	notify  deadlineNotifier
	window  time.Duration
	metrics *metrics.Metrics
	log     zerolog.Logger
	now     func() time.Time
}

type ReminderOption func(*ReminderService)

func WithReminderWindow(d time.Duration) ReminderOption {
	return func(s *ReminderService) {
		if d > 0 {
			s.window = d
		}
	}
}

func WithReminderMetrics(m *metrics.Metrics) ReminderOption {
	return func(s *ReminderService) { s.metrics = m }
}

func WithReminderClock(now func() time.Time) ReminderOption {
	return func(s *ReminderService) { s.now = now }
}

func NewReminderService(tasks outstandingTasks, claims reminderClaims, notify deadlineNotifier, log zerolog.Logger, opts ...ReminderOption) *ReminderService {
	s := &ReminderService{
		tasks:  tasks,
		claims: claims,
		notify: notify,
		window: domain.DefaultReminderWindow,
		log:    log.With().Str("component", "reminders").Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckDeadlines scans outstanding tasks once and returns how many reminders
// were sent. Each threshold is claimed before the notification goes out and
// released again if the notification cannot be stored, so a later run retries
// it. Failures on one task never stop the scan.
func (s *ReminderService) CheckDeadlines(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveReminderRun(time.Since(start).Seconds())
	}()
	now := s.now()

	tasks, err := s.tasks.ListOutstanding(ctx)
	if err != nil {
		return 0, fmt.Errorf("list outstanding tasks: %w", err)
	}

	sent := 0
	for i := range tasks {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		task := &tasks[i]
		if task.AssigneeID == nil || task.DueDate == nil || task.IsCompleted() || task.Archived {
			continue
		}
		for _, threshold := range DueThresholds(task.DueDate.Sub(now), s.window, task.HasReminder) {
			if s.fire(ctx, task, threshold, now) {
				sent++
			}
		}
	}
	if sent > 0 {
		s.log.Info().Int("sent", sent).Int("tasks", len(tasks)).Msg("deadline reminders sent")
	}
	return sent, nil
}

func (s *ReminderService) fire(ctx context.Context, task *models.Task, threshold string, now time.Time) bool {
	log := s.log.With().Uint("task", task.ID).Str("threshold", threshold).Logger()

	claimed, err := s.claims.Claim(ctx, task.ID, threshold, now)
	if err != nil {
		log.Error().Err(err).Msg("record reminder failed")
		return false
	}
	if !claimed {
		log.Debug().Msg("reminder already recorded")
		return false
	}
	if _, err := s.notify.NotifyDeadline(ctx, task, threshold); err != nil {
		log.Error().Err(err).Msg("deadline notification failed")
		if err := s.claims.Release(ctx, task.ID, threshold); err != nil {
			log.Error().Err(err).Msg("release reminder failed")
		}
		return false
	}
	s.metrics.RecordReminder(threshold)
	return true
}
