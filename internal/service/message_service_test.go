package service

import (
	"context"
	"encoding/json"
	"testing"

	"taskhub/internal/domain"
	"taskhub/internal/models"
	"taskhub/internal/repository"
	"taskhub/internal/testutil"
	"taskhub/internal/ws"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type messageFixture struct {
	db      *gorm.DB
	router  *ws.Router
	svc     *MessageService
	project *models.Project
	direct  *repository.DirectMessageRepository

	alice, bob, carol, dave uint
}

// newMessageFixture seeds a project owned by alice with bob and carol as
// members. dave is a registered user outside the project.
func newMessageFixture(t *testing.T) *messageFixture {
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

	r := newRouter()
	direct := repository.NewDirectMessageRepository(db)
	notifications := NewNotificationService(repository.NewNotificationRepository(db), projects, r, zerolog.Nop())
	svc := NewMessageService(direct, repository.NewGroupMessageRepository(db), projects,
		repository.NewUserRepository(db), r, notifications, zerolog.Nop())

	return &messageFixture{
		db:      db,
		router:  r,
		svc:     svc,
		project: p,
		direct:  direct,
		alice:   users[0].ID,
		bob:     users[1].ID,
		carol:   users[2].ID,
		dave:    users[3].ID,
	}
}

func (f *messageFixture) notificationsFor(t *testing.T, userID uint) []models.Notification {
	t.Helper()
	var list []models.Notification
	require.NoError(t, f.db.Where("recipient_id = ?", userID).Find(&list).Error)
	return list
}

func TestSendDirect_OfflineStaysSent(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	msg, err := f.svc.SendDirect(ctx, f.alice, SendDirectInput{RecipientID: f.bob, Content: " hello "})
	require.NoError(t, err)
	assert.Equal(t, domain.MessageStatusSent, msg.Status)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, domain.MessageKindText, msg.Kind)

	stored, err := f.direct.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MessageStatusSent, stored.Status)
	assert.Nil(t, stored.DeliveredAt)

	notes := f.notificationsFor(t, f.bob)
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotificationDirectMessage, notes[0].Type)
}

func TestSendDirect_OnlineBecomesDelivered(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()
	bob := connect(t, f.router, f.bob)

	msg, err := f.svc.SendDirect(ctx, f.alice, SendDirectInput{RecipientID: f.bob, Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, domain.MessageStatusDelivered, msg.Status)

	stored, err := f.direct.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MessageStatusDelivered, stored.Status)
	assert.NotNil(t, stored.DeliveredAt)

	frames := received(bob)
	require.Equal(t, []string{domain.EventNewMessage, domain.EventNewNotification}, names(frames))
	var pushed models.DirectMessage
	require.NoError(t, json.Unmarshal(frames[0].Data, &pushed))
	assert.Equal(t, msg.ID, pushed.ID)
	assert.Equal(t, "hi", pushed.Content)
}

func TestSendDirect_Validation(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	cases := map[string]SendDirectInput{
		"no recipient":  {Content: "x"},
		"self":          {RecipientID: f.alice, Content: "x"},
		"empty content": {RecipientID: f.bob, Content: "   "},
		"unknown kind":  {RecipientID: f.bob, Content: "x", Kind: "video"},
		"image no file": {RecipientID: f.bob, Kind: domain.MessageKindImage},
		"doc no file":   {RecipientID: f.bob, Kind: domain.MessageKindDocument, Content: "see attached"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.SendDirect(ctx, f.alice, in)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	var count int64
	require.NoError(t, f.db.Model(&models.DirectMessage{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, f.notificationsFor(t, f.bob))
}

func TestSendDirect_UnknownRecipient(t *testing.T) {
	f := newMessageFixture(t)
	_, err := f.svc.SendDirect(context.Background(), f.alice, SendDirectInput{RecipientID: 999, Content: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSendDirect_WithAttachment(t *testing.T) {
	f := newMessageFixture(t)
	file := models.FileMeta{URL: "https://cdn/a.pdf", Name: "a.pdf", MimeType: "application/pdf", Size: 42}

	msg, err := f.svc.SendDirect(context.Background(), f.alice, SendDirectInput{RecipientID: f.bob, Kind: domain.MessageKindDocument, File: file})
	require.NoError(t, err)

	stored, err := f.direct.GetByID(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, file, stored.File)
	assert.Equal(t, "Sent a document", f.notificationsFor(t, f.bob)[0].Message)
}

func TestSendDirect_NotificationFailureDoesNotFailSend(t *testing.T) {
	f := newMessageFixture(t)
	svc := NewMessageService(f.direct, repository.NewGroupMessageRepository(f.db), repository.NewProjectRepository(f.db),
		repository.NewUserRepository(f.db), f.router, failingNotifier{}, zerolog.Nop())

	msg, err := svc.SendDirect(context.Background(), f.alice, SendDirectInput{RecipientID: f.bob, Content: "hi"})
	require.NoError(t, err)

	_, err = f.direct.GetByID(context.Background(), msg.ID)
	assert.NoError(t, err)
}

func TestMarkDirectRead_IdempotentAndSkipsDelivered(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()
	alice := connect(t, f.router, f.alice)

	for i := 0; i < 2; i++ {
		_, err := f.svc.SendDirect(ctx, f.alice, SendDirectInput{RecipientID: f.bob, Content: "ping"})
		require.NoError(t, err)
	}

	n, err := f.svc.MarkDirectRead(ctx, f.bob, f.alice)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	frames := received(alice)
	require.Equal(t, []string{domain.EventMessagesRead}, names(frames))
	var receipt ReadReceipt
	require.NoError(t, json.Unmarshal(frames[0].Data, &receipt))
	assert.Equal(t, f.bob, receipt.ReaderID)
	assert.Equal(t, int64(2), receipt.Count)

	list, err := f.svc.Conversation(ctx, f.bob, f.alice, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, m := range list {
		assert.Equal(t, domain.MessageStatusRead, m.Status)
		assert.Nil(t, m.DeliveredAt)
		assert.NotNil(t, m.ReadAt)
	}

	n, err = f.svc.MarkDirectRead(ctx, f.bob, f.alice)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, received(alice))
}

func TestUnreadBySender(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	_, err := f.svc.SendDirect(ctx, f.alice, SendDirectInput{RecipientID: f.carol, Content: "a"})
	require.NoError(t, err)
	_, err = f.svc.SendDirect(ctx, f.bob, SendDirectInput{RecipientID: f.carol, Content: "b"})
	require.NoError(t, err)
	_, err = f.svc.SendDirect(ctx, f.bob, SendDirectInput{RecipientID: f.carol, Content: "c"})
	require.NoError(t, err)

	counts, err := f.svc.UnreadBySender(ctx, f.carol)
	require.NoError(t, err)
	assert.Equal(t, []repository.UnreadCount{{SenderID: f.alice, Unread: 1}, {SenderID: f.bob, Unread: 2}}, counts)
}

func TestDeleteDirect(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	msg, err := f.svc.SendDirect(ctx, f.alice, SendDirectInput{RecipientID: f.bob, Content: "oops"})
	require.NoError(t, err)
	bob := connect(t, f.router, f.bob)

	assert.ErrorIs(t, f.svc.DeleteDirect(ctx, f.bob, msg.ID), domain.ErrForbidden)
	require.NoError(t, f.svc.DeleteDirect(ctx, f.alice, msg.ID))
	assert.Equal(t, []string{domain.EventMessageDeleted}, names(received(bob)))

	_, err = f.direct.GetByID(ctx, msg.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.svc.DeleteDirect(ctx, f.alice, msg.ID), domain.ErrNotFound)
}

func TestSendProject_NonMemberForbidden(t *testing.T) {
	f := newMessageFixture(t)
	_, err := f.svc.SendProject(context.Background(), f.dave, SendProjectInput{ProjectID: f.project.ID, Body: "hi"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.SendProject(context.Background(), f.alice, SendProjectInput{ProjectID: 404, Body: "hi"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.SendProject(context.Background(), f.alice, SendProjectInput{ProjectID: f.project.ID})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSendProject_BroadcastFansOut(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()
	topic := domain.ProjectTopic(f.project.ID)

	alice := connect(t, f.router, f.alice)
	bob := connect(t, f.router, f.bob)
	received(alice)
	require.NoError(t, f.router.Subscribe(alice.ID, topic))
	require.NoError(t, f.router.Subscribe(bob.ID, topic))

	msg, err := f.svc.SendProject(ctx, f.alice, SendProjectInput{
		ProjectID:   f.project.ID,
		Body:        "standup in 5",
		Attachments: []models.FileMeta{{URL: "https://cdn/agenda.png", Name: "agenda.png"}},
		ExcludeConn: alice.ID,
	})
	require.NoError(t, err)
	require.Len(t, msg.Attachments, 1)

	assert.Empty(t, received(alice))
	assert.Equal(t, []string{domain.EventNewProjectMessage, domain.EventNewNotification}, names(received(bob)))

	assert.Len(t, f.notificationsFor(t, f.bob), 1)
	assert.Len(t, f.notificationsFor(t, f.carol), 1)
	assert.Empty(t, f.notificationsFor(t, f.alice), "sender is the owner and gets nothing")
}

func TestSendProject_OwnerNotifiedWhenNotSender(t *testing.T) {
	f := newMessageFixture(t)

	_, err := f.svc.SendProject(context.Background(), f.bob, SendProjectInput{ProjectID: f.project.ID, Body: "done"})
	require.NoError(t, err)

	assert.Len(t, f.notificationsFor(t, f.alice), 1)
	assert.Len(t, f.notificationsFor(t, f.carol), 1)
	assert.Empty(t, f.notificationsFor(t, f.bob))
}

func TestSendProject_Targeted(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()
	bob := connect(t, f.router, f.bob)
	carol := connect(t, f.router, f.carol)
	received(bob)
	require.NoError(t, f.router.Subscribe(bob.ID, domain.ProjectTopic(f.project.ID)))

	_, err := f.svc.SendProject(ctx, f.alice, SendProjectInput{ProjectID: f.project.ID, Body: "psst", RecipientID: &f.carol})
	require.NoError(t, err)

	assert.Empty(t, received(bob))
	assert.Equal(t, []string{domain.EventNewProjectMessage, domain.EventNewNotification}, names(received(carol)))
	assert.Empty(t, f.notificationsFor(t, f.bob))

	_, err = f.svc.SendProject(ctx, f.alice, SendProjectInput{ProjectID: f.project.ID, Body: "psst", RecipientID: &f.dave})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestMarkProjectRead(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	for _, body := range []string{"one", "two"} {
		_, err := f.svc.SendProject(ctx, f.alice, SendProjectInput{ProjectID: f.project.ID, Body: body})
		require.NoError(t, err)
	}
	alice := connect(t, f.router, f.alice)
	require.NoError(t, f.router.Subscribe(alice.ID, domain.ProjectTopic(f.project.ID)))

	n, err := f.svc.MarkProjectRead(ctx, f.project.ID, f.bob)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, []string{domain.EventMessagesRead}, names(received(alice)))

	n, err = f.svc.MarkProjectRead(ctx, f.project.ID, f.bob)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, received(alice))

	_, err = f.svc.MarkProjectRead(ctx, f.project.ID, f.dave)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestDeleteProjectMessage(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	msg, err := f.svc.SendProject(ctx, f.bob, SendProjectInput{ProjectID: f.project.ID, Body: "draft"})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.DeleteProjectMessage(ctx, f.carol, false, msg.ID), domain.ErrForbidden)
	require.NoError(t, f.svc.DeleteProjectMessage(ctx, f.dave, true, msg.ID))

	list, err := f.svc.ListProjectMessages(ctx, f.project.ID, f.bob, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}
