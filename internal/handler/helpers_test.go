package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"taskhub/config"
	"taskhub/internal/auth"
	"taskhub/internal/domain"
	"taskhub/internal/middleware"
	"taskhub/internal/models"
	"taskhub/internal/repository"
	"taskhub/internal/service"
	"taskhub/internal/testutil"
	"taskhub/internal/ws"
	"taskhub/pkg/cloudinary"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testJWT = &config.JWTConfig{AccessSecret: "handler-secret", AccessExpiry: time.Hour, Issuer: "taskhub"}

var testSocket = config.WebSocketConfig{SendBuffer: 64, WriteWait: time.Second, PongWait: 5 * time.Second}

// fixture is the full stack on sqlite: a project owned by alice with bob
// and carol as members, and dave as an admin outside the project.
type fixture struct {
	db        *gorm.DB
	hub       *ws.Router
	messages  *service.MessageService
	notifs    *service.NotificationService
	reminders *service.ReminderService
	tasks     *repository.TaskRepository
	project   *models.Project
	engine    *gin.Engine

	alice, bob, carol, dave uint
}

func newFixture(t *testing.T, cloud cloudinary.Client) *fixture {
	t.Helper()
	ctx := context.Background()
	db := testutil.NewDB(t)

	users := []models.User{
		{Name: "alice", Email: "alice@example.com"},
		{Name: "bob", Email: "bob@example.com"},
		{Name: "carol", Email: "carol@example.com"},
		{Name: "dave", Email: "dave@example.com", Role: domain.RoleAdmin},
	}
	require.NoError(t, db.Create(&users).Error)

	projects := repository.NewProjectRepository(db)
	p := &models.Project{Name: "apollo", OwnerID: users[0].ID}
	require.NoError(t, projects.Create(ctx, p))
	require.NoError(t, projects.AddMember(ctx, p.ID, users[1].ID))
	require.NoError(t, projects.AddMember(ctx, p.ID, users[2].ID))

	hub := ws.NewRouter(ws.NewPresence(nil), nil, zerolog.Nop())
	tasks := repository.NewTaskRepository(db)
	notifs := service.NewNotificationService(repository.NewNotificationRepository(db), projects, hub, zerolog.Nop())
	messages := service.NewMessageService(repository.NewDirectMessageRepository(db), repository.NewGroupMessageRepository(db),
		projects, repository.NewUserRepository(db), hub, notifs, zerolog.Nop())
	reminders := service.NewReminderService(tasks, repository.NewReminderRepository(db), notifs, zerolog.Nop())

	f := &fixture{
		db:        db,
		hub:       hub,
		messages:  messages,
		notifs:    notifs,
		reminders: reminders,
		tasks:     tasks,
		project:   p,
		alice:     users[0].ID,
		bob:       users[1].ID,
		carol:     users[2].ID,
		dave:      users[3].ID,
	}
	f.engine = f.routes(cloud)
	return f
}

func (f *fixture) routes(cloud cloudinary.Client) *gin.Engine {
	r := gin.New()
	socket := NewSocketHandler(testJWT, testSocket, f.hub, f.messages, zerolog.Nop())
	msg := NewMessageHandler(f.messages)
	notif := NewNotificationHandler(f.notifs)
	admin := NewAdminHandler(f.reminders)
	upload := NewUploadHandler(cloud, "taskhub/chat")

	r.GET("/ws", socket.ServeWS)
	api := r.Group("/api/v1", middleware.AuthRequired(testJWT))
	api.POST("/messages/direct", msg.SendDirect)
	api.GET("/messages/direct", msg.Conversations)
	api.GET("/messages/direct/:id", msg.Conversation)
	api.POST("/messages/direct/:id/read", msg.MarkConversationRead)
	api.DELETE("/messages/direct/:id", msg.DeleteDirect)
	api.POST("/projects/:id/messages", msg.SendProject)
	api.GET("/projects/:id/messages", msg.ListProject)
	api.POST("/projects/:id/messages/read", msg.MarkProjectRead)
	api.DELETE("/projects/:id/messages/:message_id", msg.DeleteProject)
	api.GET("/me/notifications", notif.List)
	api.GET("/me/notifications/unread-count", notif.UnreadCount)
	api.PUT("/me/notifications/read-all", notif.MarkAllRead)
	api.PUT("/me/notifications/:id/read", notif.MarkRead)
	api.DELETE("/me/notifications/:id", notif.Delete)
	api.GET("/presence/online", NewPresenceHandler(f.hub.Presence()).Online)
	api.POST("/uploads/chat", upload.UploadChatMedia)
	api.POST("/admin/reminders/run", middleware.AdminRequired(), admin.RunReminders)
	return r
}

func (f *fixture) token(t *testing.T, userID uint) string {
	t.Helper()
	role := domain.RoleMember
	if userID == f.dave {
		role = domain.RoleAdmin
	}
	tok, err := auth.GenerateAccessToken(testJWT, userID, role)
	require.NoError(t, err)
	return tok
}

// do sends body as JSON unless it is already an io.Reader.
func (f *fixture) do(t *testing.T, method, path string, userID uint, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case io.Reader:
		reader = b
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if _, ok := body.(io.Reader); !ok && body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+f.token(t, userID))
	}
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

// connect registers a joined connection for userID and drains the join traffic.
func (f *fixture) connect(t *testing.T, userID uint) *ws.Client {
	t.Helper()
	c := ws.NewClient(64)
	f.hub.Register(c)
	require.NoError(t, f.hub.Join(c.ID, userID))
	received(c)
	return c
}

type frame struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

func received(c *ws.Client) []frame {
	var out []frame
	for {
		select {
		case raw, ok := <-c.Send:
			if !ok {
				return out
			}
			var fr frame
			if json.Unmarshal(raw, &fr) == nil {
				out = append(out, fr)
			}
		default:
			return out
		}
	}
}

func names(frames []frame) []string {
	out := make([]string, 0, len(frames))
	for _, fr := range frames {
		out = append(out, fr.Name)
	}
	return out
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
}

func sendText(to uint, content string) service.SendDirectInput {
	return service.SendDirectInput{RecipientID: to, Content: content, Kind: domain.MessageKindText}
}

func sendFile(to uint, up uploadResponse) service.SendDirectInput {
	return service.SendDirectInput{RecipientID: to, Kind: up.Kind, File: up.File}
}
