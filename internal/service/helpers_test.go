package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"taskhub/internal/domain"
	"taskhub/internal/models"
	"taskhub/internal/ws"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var errStore = errors.New("store unavailable")

func newRouter() *ws.Router {
	return ws.NewRouter(ws.NewPresence(nil), nil, zerolog.Nop())
}

// connect registers a live connection for userID and discards the join traffic.
func connect(t *testing.T, r *ws.Router, userID uint) *ws.Client {
	t.Helper()
	c := ws.NewClient(64)
	r.Register(c)
	require.NoError(t, r.Join(c.ID, userID))
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
			var f frame
			if json.Unmarshal(raw, &f) == nil {
				out = append(out, f)
			}
		default:
			return out
		}
	}
}

func names(frames []frame) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.Name)
	}
	return out
}

type fakeNotificationRepo struct {
	mu      sync.Mutex
	nextID  uint
	items   []models.Notification
	failErr error
}

func (f *fakeNotificationRepo) Create(_ context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	if f.recorded(n) {
		return domain.ErrDuplicate
	}
	f.nextID++
	n.ID = f.nextID
	f.items = append(f.items, *n)
	return nil
}

func (f *fakeNotificationRepo) CreateBatch(_ context.Context, list []models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	for i := range list {
		if f.recorded(&list[i]) {
			return domain.ErrDuplicate
		}
	}
	for i := range list {
		f.nextID++
		list[i].ID = f.nextID
		f.items = append(f.items, list[i])
	}
	return nil
}

func (f *fakeNotificationRepo) ListByRecipient(_ context.Context, recipientID uint, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Notification
	for _, n := range f.items {
		if n.RecipientID == recipientID && (!unreadOnly || !n.IsRead) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeNotificationRepo) CountUnread(_ context.Context, recipientID uint) (int64, error) {
	list, _ := f.ListByRecipient(context.Background(), recipientID, true, 0, 0)
	return int64(len(list)), nil
}

func (f *fakeNotificationRepo) MarkRead(_ context.Context, id, recipientID uint, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id && f.items[i].RecipientID == recipientID {
			f.items[i].IsRead = true
			f.items[i].ReadAt = &at
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeNotificationRepo) MarkAllRead(_ context.Context, recipientID uint, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for i := range f.items {
		if f.items[i].RecipientID == recipientID && !f.items[i].IsRead {
			f.items[i].IsRead = true
			f.items[i].ReadAt = &at
			n++
		}
	}
	return n, nil
}

func (f *fakeNotificationRepo) Delete(_ context.Context, id, recipientID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id && f.items[i].RecipientID == recipientID {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeNotificationRepo) recorded(n *models.Notification) bool {
	if n.EventID == nil {
		return false
	}
	for _, it := range f.items {
		if it.EventID != nil && *it.EventID == *n.EventID && it.RecipientID == n.RecipientID {
			return true
		}
	}
	return false
}

func (f *fakeNotificationRepo) recipients() []uint {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uint, 0, len(f.items))
	for _, n := range f.items {
		out = append(out, n.RecipientID)
	}
	return out
}

type fakeMembers map[uint][]uint

func (f fakeMembers) MemberIDs(_ context.Context, projectID uint) ([]uint, error) {
	return f[projectID], nil
}

type fakeTokens map[uint]string

func (f fakeTokens) DeviceToken(_ context.Context, userID uint) (string, error) {
	return f[userID], nil
}

type mobilePush struct {
	Token string
	Type  string
	Title string
}

type fakeMobile struct {
	mu   sync.Mutex
	sent []mobilePush
	err  error
}

func (f *fakeMobile) SendToUser(_ context.Context, token, notifType, title, _ string, _ map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, mobilePush{Token: token, Type: notifType, Title: title})
	return nil
}

type failingNotifier struct{}

func (failingNotifier) Notify(context.Context, NotifyInput) (*models.Notification, error) {
	return nil, errStore
}

func (failingNotifier) NotifyProject(context.Context, *models.Project, uint, NotifyInput) ([]models.Notification, error) {
	return nil, errStore
}

func uintPtr(v uint) *uint { return &v }
