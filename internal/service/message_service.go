package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taskhub/internal/domain"
	"taskhub/internal/models"
	"taskhub/internal/repository"
	"taskhub/internal/ws"

	"github.com/rs/zerolog"
)

type directMessageRepo interface {
	Create(ctx context.Context, m *models.DirectMessage) error
	GetByID(ctx context.Context, id uint) (*models.DirectMessage, error)
	MarkDelivered(ctx context.Context, id uint, at time.Time) (bool, error)
	MarkReadFrom(ctx context.Context, senderID, recipientID uint, at time.Time) (int64, error)
	ListConversation(ctx context.Context, userID, otherID uint, limit, offset int) ([]models.DirectMessage, error)
	UnreadBySender(ctx context.Context, recipientID uint) ([]repository.UnreadCount, error)
	Delete(ctx context.Context, id uint) error
}

type groupMessageRepo interface {
	Create(ctx context.Context, m *models.GroupMessage) error
	GetByID(ctx context.Context, id uint) (*models.GroupMessage, error)
	ListByProject(ctx context.Context, projectID, userID uint, limit, offset int) ([]models.GroupMessage, error)
	MarkProjectRead(ctx context.Context, projectID, userID uint, at time.Time) (int64, error)
	Delete(ctx context.Context, id uint) error
}

type projectDirectory interface {
	GetByID(ctx context.Context, id uint) (*models.Project, error)
	IsMember(ctx context.Context, projectID, userID uint) (bool, error)
}

type userDirectory interface {
	Exists(ctx context.Context, id uint) (bool, error)
}

type topicPublisher interface {
	userPusher
	Publish(topic string, ev ws.Event, exclude string) int
}

type notifier interface {
	Notify(ctx context.Context, in NotifyInput) (*models.Notification, error)
	NotifyProject(ctx context.Context, project *models.Project, senderID uint, in NotifyInput) ([]models.Notification, error)
}

type SendDirectInput struct {
	RecipientID uint            `json:"recipient_id"`
	Content     string          `json:"content"`
	Kind        string          `json:"kind"`
	File        models.FileMeta `json:"file"`
}

type SendProjectInput struct {
	ProjectID   uint              `json:"project_id"`
	Body        string            `json:"body"`
	Attachments []models.FileMeta `json:"attachments"`
	RecipientID *uint             `json:"recipient_id"`
	// ExcludeConn keeps the live push off the connection the message came from.
	ExcludeConn string `json:"-"`
}

// ReadReceipt is pushed as messages_read.
type ReadReceipt struct {
	ReaderID  uint      `json:"reader_id"`
	SenderID  uint      `json:"sender_id,omitempty"`
	ProjectID uint      `json:"project_id,omitempty"`
	Count     int64     `json:"count"`
	ReadAt    time.Time `json:"read_at"`
}

type DeletedMessage struct {
	ID        uint `json:"id"`
	ProjectID uint `json:"project_id,omitempty"`
}

type MessageService struct {
	direct   directMessageRepo
	group    groupMessageRepo
	projects projectDirectory
	users    userDirectory
	router   topicPublisher
	notify   notifier
	log      zerolog.Logger
	now      func() time.Time
}

func NewMessageService(direct directMessageRepo, group groupMessageRepo, projects projectDirectory, users userDirectory, router topicPublisher, notify notifier, log zerolog.Logger) *MessageService {
	return &MessageService{
		direct:   direct,
		group:    group,
		projects: projects,
		users:    users,
		router:   router,
		notify:   notify,
		log:      log.With().Str("component", "messages").Logger(),
		now:      time.Now,
	}
}

func validateDirect(senderID uint, in *SendDirectInput) error {
	if in.RecipientID == 0 {
		return fmt.Errorf("recipient required: %w", domain.ErrValidation)
	}
	if in.RecipientID == senderID {
		return fmt.Errorf("cannot message yourself: %w", domain.ErrValidation)
	}
	if in.Kind == "" {
		in.Kind = domain.MessageKindText
	}
	if !domain.IsMessageKind(in.Kind) {
		return fmt.Errorf("unknown message kind %q: %w", in.Kind, domain.ErrValidation)
	}
	in.Content = strings.TrimSpace(in.Content)
	if in.Kind == domain.MessageKindText && in.Content == "" {
		return fmt.Errorf("content required: %w", domain.ErrValidation)
	}
	if in.Kind != domain.MessageKindText && in.File.URL == "" {
		return fmt.Errorf("file required for %s message: %w", in.Kind, domain.ErrValidation)
	}
	return nil
}

// SendDirect persists the message as sent, pushes it to the recipient and
// marks it delivered only if the push reached a live connection.
func (s *MessageService) SendDirect(ctx context.Context, senderID uint, in SendDirectInput) (*models.DirectMessage, error) {
	if err := validateDirect(senderID, &in); err != nil {
		return nil, err
	}
	ok, err := s.users.Exists(ctx, in.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("lookup recipient: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("recipient %d: %w", in.RecipientID, domain.ErrNotFound)
	}

	msg := &models.DirectMessage{
		SenderID:    senderID,
		RecipientID: in.RecipientID,
		Content:     in.Content,
		Kind:        in.Kind,
		File:        in.File,
		Status:      domain.MessageStatusSent,
	}
	if err := s.direct.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("create direct message: %w", err)
	}

	if s.router.PublishToUser(in.RecipientID, ws.NewEvent(domain.EventNewMessage, msg)) {
		at := s.now()
		moved, err := s.direct.MarkDelivered(ctx, msg.ID, at)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Uint("message", msg.ID).Msg("mark delivered failed")
		case moved:
			msg.Status = domain.MessageStatusDelivered
			msg.DeliveredAt = &at
		}
	}

	if _, err := s.notify.Notify(ctx, NotifyInput{
		RecipientID: in.RecipientID,
		SenderID:    &senderID,
		Type:        domain.NotificationDirectMessage,
		Title:       "New message",
		Message:     preview(msg.Content, msg.Kind),
	}); err != nil {
		s.log.Warn().Err(err).Uint("message", msg.ID).Msg("direct message notification failed")
	}
	return msg, nil
}

// MarkDirectRead marks every unread message from senderID to readerID as read.
// Repeating it is a no-op; the sender hears about it only when something changed.
func (s *MessageService) MarkDirectRead(ctx context.Context, readerID, senderID uint) (int64, error) {
	if senderID == 0 {
		return 0, fmt.Errorf("sender required: %w", domain.ErrValidation)
	}
	at := s.now()
	n, err := s.direct.MarkReadFrom(ctx, senderID, readerID, at)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	if n > 0 {
		s.router.PublishToUser(senderID, ws.NewEvent(domain.EventMessagesRead, ReadReceipt{
			ReaderID: readerID,
			SenderID: senderID,
			Count:    n,
			ReadAt:   at,
		}))
	}
	return n, nil
}

func (s *MessageService) DeleteDirect(ctx context.Context, userID, id uint) error {
	msg, err := s.direct.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		return fmt.Errorf("only the sender can delete a message: %w", domain.ErrForbidden)
	}
	if err := s.direct.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete direct message: %w", err)
	}
	s.router.PublishToUser(msg.RecipientID, ws.NewEvent(domain.EventMessageDeleted, DeletedMessage{ID: id}))
	return nil
}

func (s *MessageService) Conversation(ctx context.Context, userID, otherID uint, limit, offset int) ([]models.DirectMessage, error) {
	return s.direct.ListConversation(ctx, userID, otherID, limit, offset)
}

func (s *MessageService) UnreadBySender(ctx context.Context, userID uint) ([]repository.UnreadCount, error) {
	return s.direct.UnreadBySender(ctx, userID)
}

func (s *MessageService) requireMember(ctx context.Context, projectID, userID uint) (*models.Project, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	ok, err := s.projects.IsMember(ctx, projectID, userID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("not a member of project %d: %w", projectID, domain.ErrForbidden)
	}
	return project, nil
}

// SendProject posts to a project. With RecipientID set the message goes to
// that member only; otherwise it is published to the project topic and every
// other member gets a notification.
func (s *MessageService) SendProject(ctx context.Context, senderID uint, in SendProjectInput) (*models.GroupMessage, error) {
	in.Body = strings.TrimSpace(in.Body)
	if in.ProjectID == 0 {
		return nil, fmt.Errorf("project required: %w", domain.ErrValidation)
	}
	if in.Body == "" && len(in.Attachments) == 0 {
		return nil, fmt.Errorf("body or attachment required: %w", domain.ErrValidation)
	}
	for _, a := range in.Attachments {
		if a.URL == "" {
			return nil, fmt.Errorf("attachment url required: %w", domain.ErrValidation)
		}
	}
	project, err := s.requireMember(ctx, in.ProjectID, senderID)
	if err != nil {
		return nil, err
	}
	if in.RecipientID != nil {
		if *in.RecipientID == senderID {
			return nil, fmt.Errorf("cannot message yourself: %w", domain.ErrValidation)
		}
		ok, err := s.projects.IsMember(ctx, in.ProjectID, *in.RecipientID)
		if err != nil {
			return nil, fmt.Errorf("check membership: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("recipient is not a member of project %d: %w", in.ProjectID, domain.ErrValidation)
		}
	}

	msg := &models.GroupMessage{
		ProjectID:   in.ProjectID,
		SenderID:    senderID,
		Body:        in.Body,
		RecipientID: in.RecipientID,
	}
	for _, a := range in.Attachments {
		msg.Attachments = append(msg.Attachments, models.GroupMessageAttachment{File: a})
	}
	if err := s.group.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("create project message: %w", err)
	}

	ev := ws.NewEvent(domain.EventNewProjectMessage, msg)
	note := NotifyInput{
		SenderID:  &senderID,
		Type:      domain.NotificationGroupMessage,
		Title:     "New message in " + project.Name,
		Message:   preview(msg.Body, domain.MessageKindText),
		Link:      projectLink(project.ID),
		ProjectID: &project.ID,
	}
	if in.RecipientID != nil {
		s.router.PublishToUser(*in.RecipientID, ev)
		note.RecipientID = *in.RecipientID
		if _, err := s.notify.Notify(ctx, note); err != nil {
			s.log.Warn().Err(err).Uint("message", msg.ID).Msg("project message notification failed")
		}
		return msg, nil
	}

	s.router.Publish(domain.ProjectTopic(project.ID), ev, in.ExcludeConn)
	if _, err := s.notify.NotifyProject(ctx, project, senderID, note); err != nil {
		s.log.Warn().Err(err).Uint("message", msg.ID).Uint("project", project.ID).Msg("project fan-out failed")
	}
	return msg, nil
}

// MarkProjectRead adds a read receipt for userID to every visible message in
// the project that does not have one yet.
func (s *MessageService) MarkProjectRead(ctx context.Context, projectID, userID uint) (int64, error) {
	if _, err := s.requireMember(ctx, projectID, userID); err != nil {
		return 0, err
	}
	at := s.now()
	n, err := s.group.MarkProjectRead(ctx, projectID, userID, at)
	if err != nil {
		return 0, fmt.Errorf("mark project read: %w", err)
	}
	if n > 0 {
		s.router.Publish(domain.ProjectTopic(projectID), ws.NewEvent(domain.EventMessagesRead, ReadReceipt{
			ReaderID:  userID,
			ProjectID: projectID,
			Count:     n,
			ReadAt:    at,
		}), "")
	}
	return n, nil
}

func (s *MessageService) DeleteProjectMessage(ctx context.Context, userID uint, isAdmin bool, id uint) error {
	msg, err := s.group.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if msg.SenderID != userID && !isAdmin {
		return fmt.Errorf("only the sender or an admin can delete a message: %w", domain.ErrForbidden)
	}
	if err := s.group.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete project message: %w", err)
	}
	s.router.Publish(domain.ProjectTopic(msg.ProjectID), ws.NewEvent(domain.EventMessageDeleted, DeletedMessage{
		ID:        id,
		ProjectID: msg.ProjectID,
	}), "")
	return nil
}

func (s *MessageService) ListProjectMessages(ctx context.Context, projectID, userID uint, limit, offset int) ([]models.GroupMessage, error) {
	if _, err := s.requireMember(ctx, projectID, userID); err != nil {
		return nil, err
	}
	return s.group.ListByProject(ctx, projectID, userID, limit, offset)
}

// CanJoinProject reports whether userID may subscribe to the project topic.
func (s *MessageService) CanJoinProject(ctx context.Context, projectID, userID uint) error {
	_, err := s.requireMember(ctx, projectID, userID)
	return err
}

const previewLen = 100

func preview(content, kind string) string {
	switch kind {
	case domain.MessageKindImage:
		return "Sent an image"
	case domain.MessageKindDocument:
		return "Sent a document"
	}
	r := []rune(content)
	if len(r) > previewLen {
		return string(r[:previewLen]) + "..."
	}
	return content
}
