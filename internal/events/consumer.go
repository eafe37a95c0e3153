package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"taskhub/internal/domain"
	"taskhub/internal/metrics"
	"taskhub/internal/models"
	"taskhub/internal/service"

	"github.com/rs/zerolog"
)

var (
	ErrInvalidEventPayload  = errors.New("invalid event payload")
	ErrUnsupportedEventType = errors.New("unsupported event type")
)

type notifier interface {
	Notify(ctx context.Context, in service.NotifyInput) (*models.Notification, error)
	NotifyProject(ctx context.Context, project *models.Project, senderID uint, in service.NotifyInput) ([]models.Notification, error)
	NotifyTaskAssigned(ctx context.Context, eventID string, task *models.Task, assignerID uint) (*models.Notification, error)
	NotifyTaskCompleted(ctx context.Context, eventID string, task *models.Task, completedBy uint) (*models.Notification, error)
	NotifyProjectInvited(ctx context.Context, eventID string, project *models.Project, inviteeID, inviterID uint) (*models.Notification, error)
}

type projectLookup interface {
	GetByID(ctx context.Context, id uint) (*models.Project, error)
}

type taskLookup interface {
	GetByID(ctx context.Context, id uint) (*models.Task, error)
}

var defaultTitles = map[string]string{
	domain.NotificationTaskAssigned:   "New task assigned",
	domain.NotificationTaskCompleted:  "Task completed",
	domain.NotificationProjectInvited: "Project invitation",
	domain.NotificationProjectUpdated: "Project updated",
	domain.NotificationMention:        "You were mentioned",
	domain.NotificationSystem:         "System notice",
}

type Consumer struct {
	notify   notifier
	projects projectLookup
	tasks    taskLookup
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

func NewConsumer(notify notifier, projects projectLookup, tasks taskLookup, m *metrics.Metrics, log zerolog.Logger) *Consumer {
	return &Consumer{
		notify:   notify,
		projects: projects,
		tasks:    tasks,
		metrics:  m,
		log:      log.With().Str("component", "events").Logger(),
	}
}

// Handle decodes one event and creates the notifications it implies.
// ErrInvalidEventPayload and ErrUnsupportedEventType mark events that will
// never succeed; any other error is worth a redelivery. Redelivering an
// event that carries an event_id does not notify anyone twice.
func (c *Consumer) Handle(ctx context.Context, payload []byte) error {
	var ev DomainEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		c.metrics.RecordEvent("unknown", "invalid")
		return fmt.Errorf("%w: %v", ErrInvalidEventPayload, err)
	}
	err := c.handle(ctx, ev)
	c.metrics.RecordEvent(ev.Type, outcome(err))
	return err
}

func (c *Consumer) handle(ctx context.Context, ev DomainEvent) error {
	title, ok := defaultTitles[ev.Type]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedEventType, ev.Type)
	}
	switch {
	case ev.Type == domain.NotificationTaskAssigned && ev.TaskID != 0:
		return c.taskAssigned(ctx, ev)
	case ev.Type == domain.NotificationTaskCompleted && ev.TaskID != 0:
		return c.taskCompleted(ctx, ev)
	case ev.Type == domain.NotificationProjectInvited && ev.ProjectID != 0:
		return c.projectInvited(ctx, ev)
	}

	if ev.Title != "" {
		title = ev.Title
	}
	in := service.NotifyInput{
		EventID:     ev.EventID,
		RecipientID: ev.RecipientID,
		SenderID:    idPtr(ev.ActorID),
		Type:        ev.Type,
		Title:       title,
		Message:     ev.Message,
		Link:        ev.Link,
		TaskID:      idPtr(ev.TaskID),
		ProjectID:   idPtr(ev.ProjectID),
	}
	if in.Link == "" {
		in.Link = linkFor(ev)
	}

	if ev.Type == domain.NotificationProjectUpdated && ev.RecipientID == 0 {
		return c.fanOut(ctx, ev, in)
	}
	if ev.RecipientID == 0 {
		return fmt.Errorf("%w: %s event without recipient", ErrInvalidEventPayload, ev.Type)
	}
	if ev.RecipientID == ev.ActorID && ev.Type != domain.NotificationSystem {
		return nil
	}
	_, err := c.notify.Notify(ctx, in)
	return classify(err)
}

// taskAssigned notifies whoever the task is assigned to now, which may
// differ from the event's recipient when the task was reassigned since.
func (c *Consumer) taskAssigned(ctx context.Context, ev DomainEvent) error {
	task, err := c.tasks.GetByID(ctx, ev.TaskID)
	if err != nil {
		return classify(err)
	}
	_, err = c.notify.NotifyTaskAssigned(ctx, ev.EventID, task, ev.ActorID)
	return classify(err)
}

func (c *Consumer) taskCompleted(ctx context.Context, ev DomainEvent) error {
	task, err := c.tasks.GetByID(ctx, ev.TaskID)
	if err != nil {
		return classify(err)
	}
	_, err = c.notify.NotifyTaskCompleted(ctx, ev.EventID, task, ev.ActorID)
	return classify(err)
}

func (c *Consumer) projectInvited(ctx context.Context, ev DomainEvent) error {
	if ev.RecipientID == 0 {
		return fmt.Errorf("%w: project_invited without recipient", ErrInvalidEventPayload)
	}
	project, err := c.projects.GetByID(ctx, ev.ProjectID)
	if err != nil {
		return classify(err)
	}
	_, err = c.notify.NotifyProjectInvited(ctx, ev.EventID, project, ev.RecipientID, ev.ActorID)
	return classify(err)
}

func (c *Consumer) fanOut(ctx context.Context, ev DomainEvent, in service.NotifyInput) error {
	if ev.ProjectID == 0 {
		return fmt.Errorf("%w: project_updated without project", ErrInvalidEventPayload)
	}
	project, err := c.projects.GetByID(ctx, ev.ProjectID)
	if err != nil {
		return classify(err)
	}
	list, err := c.notify.NotifyProject(ctx, project, ev.ActorID, in)
	if err != nil {
		return classify(err)
	}
	c.log.Debug().Str("event_id", ev.EventID).Uint("project", project.ID).Int("recipients", len(list)).Msg("project update fanned out")
	return nil
}

// classify turns errors that retrying cannot fix into ErrInvalidEventPayload.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrInvalidEventPayload, err)
	}
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidEventPayload):
		return "invalid"
	case errors.Is(err, ErrUnsupportedEventType):
		return "unsupported"
	}
	return "error"
}

func linkFor(ev DomainEvent) string {
	switch {
	case ev.TaskID != 0:
		return fmt.Sprintf("/tasks/%d", ev.TaskID)
	case ev.ProjectID != 0:
		return fmt.Sprintf("/projects/%d", ev.ProjectID)
	}
	return ""
}

func idPtr(id uint) *uint {
	if id == 0 {
		return nil
	}
	return &id
}
