package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"taskhub/internal/domain"
	"taskhub/internal/metrics"
	"taskhub/internal/models"
	"taskhub/internal/ws"

	"github.com/rs/zerolog"
)

type notificationRepo interface {
	Create(ctx context.Context, n *models.Notification) error
	CreateBatch(ctx context.Context, list []models.Notification) error
	ListByRecipient(ctx context.Context, recipientID uint, unreadOnly bool, limit, offset int) ([]models.Notification, error)
	CountUnread(ctx context.Context, recipientID uint) (int64, error)
	MarkRead(ctx context.Context, id, recipientID uint, at time.Time) error
	MarkAllRead(ctx context.Context, recipientID uint, at time.Time) (int64, error)
	Delete(ctx context.Context, id, recipientID uint) error
}

type memberDirectory interface {
	MemberIDs(ctx context.Context, projectID uint) ([]uint, error)
}

type userPusher interface {
	PublishToUser(userID uint, ev ws.Event) bool
}

type deviceTokens interface {
	DeviceToken(ctx context.Context, userID uint) (string, error)
}

type mobilePusher interface {
	SendToUser(ctx context.Context, token, notifType, title, body string, data map[string]interface{}) error
}

// NotifyInput describes one notification. SenderID, TaskID and ProjectID are
// optional. A non-empty EventID makes the notification idempotent per recipient.
type NotifyInput struct {
	EventID     string
	RecipientID uint
	SenderID    *uint
	Type        string
	Title       string
	Message     string
	Link        string
	TaskID      *uint
	ProjectID   *uint
}

type NotificationService struct {
	repo    notificationRepo
	members memberDirectory
	push    userPusher
	tokens  deviceTokens
	mobile  mobilePusher
	metrics *metrics.Metrics
	log     zerolog.Logger
	now     func() time.Time
}

type NotificationOption func(*NotificationService)

// WithMobilePush sends an FCM push when the recipient has no live connection.
func WithMobilePush(tokens deviceTokens, mobile mobilePusher) NotificationOption {
	return func(s *NotificationService) {
		s.tokens = tokens
		s.mobile = mobile
	}
}

func WithNotificationMetrics(m *metrics.Metrics) NotificationOption {
	return func(s *NotificationService) { s.metrics = m }
}

func NewNotificationService(repo notificationRepo, members memberDirectory, push userPusher, log zerolog.Logger, opts ...NotificationOption) *NotificationService {
	s := &NotificationService{
		repo:    repo,
		members: members,
		push:    push,
		log:     log.With().Str("component", "notifications").Logger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validateNotification(in NotifyInput) error {
	if !domain.IsNotificationType(in.Type) {
		return fmt.Errorf("unknown notification type %q: %w", in.Type, domain.ErrValidation)
	}
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("title required: %w", domain.ErrValidation)
	}
	return nil
}

func (in NotifyInput) record(recipientID uint) models.Notification {
	var eventID *string
	if in.EventID != "" {
		id := in.EventID
		eventID = &id
	}
	return models.Notification{
		EventID:     eventID,
		RecipientID: recipientID,
		SenderID:    in.SenderID,
		Type:        in.Type,
		Title:       strings.TrimSpace(in.Title),
		Message:     in.Message,
		Link:        in.Link,
		TaskID:      in.TaskID,
		ProjectID:   in.ProjectID,
	}
}

// Notify stores the notification and then pushes it to the recipient if
// they are online. Only the store can fail the call.
func (s *NotificationService) Notify(ctx context.Context, in NotifyInput) (*models.Notification, error) {
	if in.RecipientID == 0 {
		return nil, fmt.Errorf("recipient required: %w", domain.ErrValidation)
	}
	if err := validateNotification(in); err != nil {
		return nil, err
	}
	n := in.record(in.RecipientID)
	if err := s.repo.Create(ctx, &n); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			s.log.Debug().Str("event_id", in.EventID).Uint("recipient", in.RecipientID).Msg("notification already recorded")
			return nil, nil
		}
		return nil, fmt.Errorf("create notification: %w", err)
	}
	s.metrics.RecordNotification(n.Type)
	s.deliver(ctx, &n)
	return &n, nil
}

// NotifyProject fans one notification out to every project member except
// the sender, plus the owner when the owner is neither a member nor the sender.
// All records are written in one batch before any push. A redelivered event
// that is already recorded returns no notifications and pushes nothing.
func (s *NotificationService) NotifyProject(ctx context.Context, project *models.Project, senderID uint, in NotifyInput) ([]models.Notification, error) {
	if err := validateNotification(in); err != nil {
		return nil, err
	}
	memberIDs, err := s.members.MemberIDs(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("list project members: %w", err)
	}
	if in.ProjectID == nil {
		pid := project.ID
		in.ProjectID = &pid
	}
	recipients := ProjectRecipients(project.OwnerID, memberIDs, senderID)
	list := make([]models.Notification, 0, len(recipients))
	for _, uid := range recipients {
		list = append(list, in.record(uid))
	}
	if err := s.repo.CreateBatch(ctx, list); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			s.log.Debug().Err(err).Uint("project", project.ID).Msg("project notifications already recorded")
			return nil, nil
		}
		return nil, fmt.Errorf("create project notifications: %w", err)
	}
	for i := range list {
		s.metrics.RecordNotification(list[i].Type)
		s.deliver(ctx, &list[i])
	}
	return list, nil
}

// ProjectRecipients returns members minus the sender, with the owner added
// when they are not already a member and not the sender. Order follows
// memberIDs with the owner last; duplicates are dropped.
func ProjectRecipients(ownerID uint, memberIDs []uint, senderID uint) []uint {
	seen := make(map[uint]struct{}, len(memberIDs)+1)
	out := make([]uint, 0, len(memberIDs)+1)
	for _, id := range memberIDs {
		if id == 0 || id == senderID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if ownerID != 0 && ownerID != senderID {
		if _, member := seen[ownerID]; !member {
			out = append(out, ownerID)
		}
	}
	return out
}

func (s *NotificationService) deliver(ctx context.Context, n *models.Notification) {
	if s.push != nil && s.push.PublishToUser(n.RecipientID, ws.NewEvent(domain.EventNewNotification, n)) {
		return
	}
	if s.mobile == nil || s.tokens == nil {
		return
	}
	token, err := s.tokens.DeviceToken(ctx, n.RecipientID)
	if err != nil {
		s.log.Warn().Err(err).Uint("recipient", n.RecipientID).Msg("device token lookup failed")
		return
	}
	if token == "" {
		return
	}
	data := map[string]interface{}{"notification_id": n.ID}
	if n.Link != "" {
		data["link"] = n.Link
	}
	if err := s.mobile.SendToUser(ctx, token, n.Type, n.Title, n.Message, data); err != nil {
		s.log.Warn().Err(err).Uint("recipient", n.RecipientID).Str("type", n.Type).Msg("mobile push failed")
	}
}

// NotifyTaskAssigned tells the current assignee, unless they assigned the task to themselves.
func (s *NotificationService) NotifyTaskAssigned(ctx context.Context, eventID string, task *models.Task, assignerID uint) (*models.Notification, error) {
	if task.AssigneeID == nil {
		return nil, fmt.Errorf("task %d has no assignee: %w", task.ID, domain.ErrValidation)
	}
	if *task.AssigneeID == assignerID {
		return nil, nil
	}
	return s.Notify(ctx, NotifyInput{
		EventID:     eventID,
		RecipientID: *task.AssigneeID,
		SenderID:    optionalID(assignerID),
		Type:        domain.NotificationTaskAssigned,
		Title:       "New task assigned",
		Message:     fmt.Sprintf("You have been assigned %q", task.Title),
		Link:        taskLink(task.ID),
		TaskID:      &task.ID,
		ProjectID:   task.ProjectID,
	})
}

// NotifyTaskCompleted tells the task creator, unless they completed it themselves.
func (s *NotificationService) NotifyTaskCompleted(ctx context.Context, eventID string, task *models.Task, completedBy uint) (*models.Notification, error) {
	if task.CreatorID == completedBy {
		return nil, nil
	}
	return s.Notify(ctx, NotifyInput{
		EventID:     eventID,
		RecipientID: task.CreatorID,
		SenderID:    optionalID(completedBy),
		Type:        domain.NotificationTaskCompleted,
		Title:       "Task completed",
		Message:     fmt.Sprintf("%q has been completed", task.Title),
		Link:        taskLink(task.ID),
		TaskID:      &task.ID,
		ProjectID:   task.ProjectID,
	})
}

func (s *NotificationService) NotifyProjectInvited(ctx context.Context, eventID string, project *models.Project, inviteeID, inviterID uint) (*models.Notification, error) {
	if inviteeID == inviterID {
		return nil, nil
	}
	return s.Notify(ctx, NotifyInput{
		EventID:     eventID,
		RecipientID: inviteeID,
		SenderID:    optionalID(inviterID),
		Type:        domain.NotificationProjectInvited,
		Title:       "Project invitation",
		Message:     fmt.Sprintf("You have been added to %q", project.Name),
		Link:        projectLink(project.ID),
		ProjectID:   &project.ID,
	})
}

// NotifyDeadline builds the task_due_soon or task_overdue notification for a threshold.
func (s *NotificationService) NotifyDeadline(ctx context.Context, task *models.Task, threshold string) (*models.Notification, error) {
	if task.AssigneeID == nil {
		return nil, fmt.Errorf("task %d has no assignee: %w", task.ID, domain.ErrValidation)
	}
	in := NotifyInput{
		RecipientID: *task.AssigneeID,
		Type:        domain.NotificationTaskDueSoon,
		Title:       "Task due soon",
		Link:        taskLink(task.ID),
		TaskID:      &task.ID,
		ProjectID:   task.ProjectID,
	}
	switch threshold {
	case domain.ThresholdOverdue:
		in.Type = domain.NotificationTaskOverdue
		in.Title = "Task overdue"
		in.Message = fmt.Sprintf("%q is past its due date", task.Title)
	case domain.Threshold24h:
		in.Message = fmt.Sprintf("%q is due in 24 hours", task.Title)
	case domain.Threshold3h:
		in.Message = fmt.Sprintf("%q is due in 3 hours", task.Title)
	case domain.Threshold1h:
		in.Message = fmt.Sprintf("%q is due in 1 hour", task.Title)
	default:
		return nil, fmt.Errorf("unknown threshold %q: %w", threshold, domain.ErrValidation)
	}
	return s.Notify(ctx, in)
}

func (s *NotificationService) List(ctx context.Context, userID uint, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	return s.repo.ListByRecipient(ctx, userID, unreadOnly, limit, offset)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) error {
	return s.repo.MarkRead(ctx, id, userID, s.now())
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID, s.now())
}

func (s *NotificationService) Delete(ctx context.Context, userID, id uint) error {
	return s.repo.Delete(ctx, id, userID)
}

func optionalID(id uint) *uint {
	if id == 0 {
		return nil
	}
	return &id
}

func taskLink(id uint) string {
	return "/tasks/" + strconv.FormatUint(uint64(id), 10)
}

func projectLink(id uint) string {
	return "/projects/" + strconv.FormatUint(uint64(id), 10)
}
