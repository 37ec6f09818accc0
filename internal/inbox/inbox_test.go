package inbox_test

import (
	"context"
	"errors"
	"testing"

	"complaintdesk/backend/internal/apperr"
	"complaintdesk/backend/internal/inbox"
	"complaintdesk/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSource struct {
	mock.Mock
}

func (m *MockSource) Notifications(ctx context.Context, userID string) ([]models.Notification, error) {
	args := m.Called(ctx, userID)
	list, _ := args.Get(0).([]models.Notification)
	return list, args.Error(1)
}

func feed() []models.Notification {
	return []models.Notification{
		{ID: 1, Title: "Assigned", Unread: true},
		{ID: 2, Title: "Resolved", Unread: true},
		{ID: 3, Title: "Welcome", Unread: false},
	}
}

func loaded(t *testing.T) (*inbox.Inbox, *MockSource) {
	t.Helper()
	src := new(MockSource)
	src.On("Notifications", mock.Anything, "u1").Return(feed(), nil).Once()
	in := inbox.New(src)
	_, err := in.Load(context.Background(), "u1")
	require.NoError(t, err)
	return in, src
}

func TestToggleRead(t *testing.T) {
	in, _ := loaded(t)
	require.Equal(t, 2, in.Unread())

	n, err := in.ToggleRead(1)
	require.NoError(t, err)
	assert.False(t, n.Unread)
	assert.Equal(t, 1, in.Unread())

	n, err = in.ToggleRead(1)
	require.NoError(t, err)
	assert.True(t, n.Unread)

	_, err = in.ToggleRead(99)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestMarkAllRead_SurvivesReload(t *testing.T) {
	in, src := loaded(t)

	in.MarkAllRead()
	assert.Equal(t, 0, in.Unread())

	src.On("Notifications", mock.Anything, "u1").Return(append(feed(), models.Notification{ID: 4, Unread: true}), nil).Once()
	list, err := in.Load(context.Background(), "u1")
	require.NoError(t, err)

	assert.Len(t, list, 4)
	assert.Equal(t, 1, in.Unread())
}

func TestLoad_FailureKeepsFeed(t *testing.T) {
	in, src := loaded(t)
	src.On("Notifications", mock.Anything, "u1").Return(nil, apperr.Network("api.Notifications", errors.New("down"))).Once()

	_, err := in.Load(context.Background(), "u1")

	assert.ErrorIs(t, err, apperr.ErrNetwork)
	assert.Len(t, in.List(), 3)
}
