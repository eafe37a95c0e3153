package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"taskhub/config"
	"taskhub/internal/auth"
	"taskhub/internal/domain"
	"taskhub/internal/models"
	"taskhub/internal/service"
	"taskhub/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type socketMessages interface {
	SendDirect(ctx context.Context, senderID uint, in service.SendDirectInput) (*models.DirectMessage, error)
	SendProject(ctx context.Context, senderID uint, in service.SendProjectInput) (*models.GroupMessage, error)
	MarkDirectRead(ctx context.Context, readerID, senderID uint) (int64, error)
	MarkProjectRead(ctx context.Context, projectID, userID uint) (int64, error)
	CanJoinProject(ctx context.Context, projectID, userID uint) error
}

type SocketHandler struct {
	jwt      *config.JWTConfig
	cfg      config.WebSocketConfig
	router   *ws.Router
	messages socketMessages
	log      zerolog.Logger
}

func NewSocketHandler(jwtCfg *config.JWTConfig, cfg config.WebSocketConfig, router *ws.Router, messages socketMessages, log zerolog.Logger) *SocketHandler {
	return &SocketHandler{
		jwt:      jwtCfg,
		cfg:      cfg,
		router:   router,
		messages: messages,
		log:      log.With().Str("component", "socket").Logger(),
	}
}

func bearerToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// ServeWS upgrades an authenticated request to the realtime socket. The
// token travels in the token query parameter or a bearer header. The
// connection stays anonymous until it sends join.
func (h *SocketHandler) ServeWS(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
		return
	}
	claims, err := auth.ParseAccessToken(h.jwt, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	conn, err := ws.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("upgrade failed")
		return
	}

	client := ws.NewClient(h.cfg.SendBuffer)
	h.router.Register(client)
	log := h.log.With().Str("conn", client.ID).Uint("user", claims.UserID).Logger()
	log.Debug().Msg("connection opened")

	done := make(chan struct{})
	go func() {
		ws.WritePump(conn, client, h.cfg)
		conn.Close()
		close(done)
	}()

	s := newSession(h.router, h.messages, client, claims.UserID, log)
	ctx := c.Request.Context()
	ws.ReadPump(conn, h.cfg, func(raw []byte) { s.handle(ctx, raw) })

	h.router.Disconnect(client.ID)
	<-done
	log.Debug().Msg("connection closed")
}

// session dispatches the frames of one connection. userID is the identity
// proven at upgrade; the connection only acts as that user after join.
type session struct {
	router   *ws.Router
	messages socketMessages
	client   *ws.Client
	userID   uint
	log      zerolog.Logger
}

func newSession(router *ws.Router, messages socketMessages, client *ws.Client, userID uint, log zerolog.Logger) *session {
	return &session{router: router, messages: messages, client: client, userID: userID, log: log}
}

type joinPayload struct {
	UserID uint `json:"user_id"`
}

type topicPayload struct {
	TaskID    uint `json:"task_id"`
	ProjectID uint `json:"project_id"`
}

type typingPayload struct {
	RecipientID uint `json:"recipient_id"`
	ProjectID   uint `json:"project_id"`
	TaskID      uint `json:"task_id"`
}

type markReadPayload struct {
	SenderID  uint `json:"sender_id"`
	ProjectID uint `json:"project_id"`
}

var (
	errInvalidFrame  = fmt.Errorf("invalid frame: %w", domain.ErrValidation)
	errJoinRequired  = fmt.Errorf("join required: %w", domain.ErrForbidden)
	errMissingData   = fmt.Errorf("missing data: %w", domain.ErrValidation)
	errUnknownTarget = fmt.Errorf("recipient_id, project_id or task_id required: %w", domain.ErrValidation)
)

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return errMissingData
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid data: %w", domain.ErrValidation)
	}
	return nil
}

func (s *session) handle(ctx context.Context, raw []byte) {
	var in ws.Inbound
	if err := json.Unmarshal(raw, &in); err != nil || in.Name == "" {
		s.reject("", errInvalidFrame)
		return
	}
	if in.Name != domain.EventJoin && s.client.UserID() == 0 {
		s.reject(in.Name, errJoinRequired)
		return
	}

	var err error
	switch in.Name {
	case domain.EventJoin:
		err = s.join(in.Data)
	case domain.EventJoinTask, domain.EventLeaveTask:
		err = s.taskTopic(in.Name, in.Data)
	case domain.EventJoinProject, domain.EventLeaveProject:
		err = s.projectTopic(ctx, in.Name, in.Data)
	case domain.EventTyping, domain.EventStopTyping:
		err = s.typing(in.Name, in.Data)
	case domain.EventSendMessage:
		err = s.sendDirect(ctx, in.Data)
	case domain.EventSendProjectMessage:
		err = s.sendProject(ctx, in.Data)
	case domain.EventMarkRead:
		err = s.markRead(ctx, in.Data)
	case domain.EventMarkProjectRead:
		err = s.markProjectRead(ctx, in.Data)
	default:
		err = fmt.Errorf("unknown event %q: %w", in.Name, domain.ErrValidation)
	}
	if err != nil {
		s.reject(in.Name, err)
	}
}

func (s *session) reject(event string, err error) {
	if statusFor(err) == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("event", event).Msg("socket event failed")
	}
	s.router.SendTo(s.client.ID, ws.NewEvent(domain.EventError, ws.ErrorPayload{Event: event, Message: publicMessage(err)}))
}

// join binds presence and replies with the current online snapshot. A
// payload naming another user is refused.
func (s *session) join(data json.RawMessage) error {
	var p joinPayload
	if len(data) > 0 && string(data) != "null" {
		if err := decode(data, &p); err != nil {
			return err
		}
	}
	if p.UserID != 0 && p.UserID != s.userID {
		return fmt.Errorf("cannot join as another user: %w", domain.ErrForbidden)
	}
	if err := s.router.Join(s.client.ID, s.userID); err != nil {
		return err
	}
	s.router.SendTo(s.client.ID, ws.NewEvent(domain.EventActiveUsers, ws.ActiveUsersPayload{
		Users: s.router.Presence().ListOnline(),
	}))
	return nil
}

func (s *session) taskTopic(event string, data json.RawMessage) error {
	var p topicPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if p.TaskID == 0 {
		return fmt.Errorf("task_id required: %w", domain.ErrValidation)
	}
	topic := domain.TaskTopic(p.TaskID)
	if event == domain.EventLeaveTask {
		s.router.Unsubscribe(s.client.ID, topic)
		return nil
	}
	return s.router.Subscribe(s.client.ID, topic)
}

func (s *session) projectTopic(ctx context.Context, event string, data json.RawMessage) error {
	var p topicPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if p.ProjectID == 0 {
		return fmt.Errorf("project_id required: %w", domain.ErrValidation)
	}
	topic := domain.ProjectTopic(p.ProjectID)
	if event == domain.EventLeaveProject {
		s.router.Unsubscribe(s.client.ID, topic)
		return nil
	}
	if err := s.messages.CanJoinProject(ctx, p.ProjectID, s.userID); err != nil {
		return err
	}
	return s.router.Subscribe(s.client.ID, topic)
}

// typing relays to a single user or to a topic the typist has joined.
func (s *session) typing(event string, data json.RawMessage) error {
	var p typingPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	out := domain.EventUserTyping
	if event == domain.EventStopTyping {
		out = domain.EventUserStopTyping
	}
	ev := ws.NewEvent(out, ws.TypingPayload{UserID: s.userID, ProjectID: p.ProjectID, TaskID: p.TaskID})

	switch {
	case p.RecipientID != 0:
		if p.RecipientID != s.userID {
			s.router.PublishToUser(p.RecipientID, ev)
		}
	case p.ProjectID != 0:
		return s.relay(domain.ProjectTopic(p.ProjectID), ev)
	case p.TaskID != 0:
		return s.relay(domain.TaskTopic(p.TaskID), ev)
	default:
		return errUnknownTarget
	}
	return nil
}

func (s *session) relay(topic string, ev ws.Event) error {
	if !s.router.IsSubscribed(s.client.ID, topic) {
		return fmt.Errorf("not subscribed to %s: %w", topic, domain.ErrForbidden)
	}
	s.router.Publish(topic, ev, s.client.ID)
	return nil
}

func (s *session) sendDirect(ctx context.Context, data json.RawMessage) error {
	var in service.SendDirectInput
	if err := decode(data, &in); err != nil {
		return err
	}
	msg, err := s.messages.SendDirect(ctx, s.userID, in)
	if err != nil {
		return err
	}
	s.router.SendTo(s.client.ID, ws.NewEvent(domain.EventMessageSent, msg))
	return nil
}

func (s *session) sendProject(ctx context.Context, data json.RawMessage) error {
	var in service.SendProjectInput
	if err := decode(data, &in); err != nil {
		return err
	}
	in.ExcludeConn = s.client.ID
	msg, err := s.messages.SendProject(ctx, s.userID, in)
	if err != nil {
		return err
	}
	s.router.SendTo(s.client.ID, ws.NewEvent(domain.EventMessageSent, msg))
	return nil
}

func (s *session) markRead(ctx context.Context, data json.RawMessage) error {
	var p markReadPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if p.SenderID == 0 {
		return fmt.Errorf("sender_id required: %w", domain.ErrValidation)
	}
	_, err := s.messages.MarkDirectRead(ctx, s.userID, p.SenderID)
	return err
}

func (s *session) markProjectRead(ctx context.Context, data json.RawMessage) error {
	var p markReadPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if p.ProjectID == 0 {
		return fmt.Errorf("project_id required: %w", domain.ErrValidation)
	}
	_, err := s.messages.MarkProjectRead(ctx, p.ProjectID, s.userID)
	return err
}
