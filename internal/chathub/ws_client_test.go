package chathub_test

import (
	"context"
	"testing"
	"time"

	"complaintdesk/backend/internal/apperr"
	"complaintdesk/backend/internal/chathub"
	"complaintdesk/backend/internal/models"
	"complaintdesk/backend/internal/testserver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsSession(t *testing.T, srv *testserver.Server, token string) *chathub.Session {
	t.Helper()
	dialer := &chathub.WebSocketDialer{
		URL:   srv.WebSocketURL(),
		Token: func() string { return token },
	}
	s := chathub.NewSession(dialer, chathub.WithJoinTimeout(2*time.Second))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWebSocket_RoundTrip(t *testing.T) {
	// Arrange
	srv := testserver.New()
	defer srv.Close()
	s := wsSession(t, srv, "")

	// Act
	require.NoError(t, s.Open(context.Background(), "42"))
	_, err := s.Send("hello")
	require.NoError(t, err)
	srv.Say("42", "hi, how can we help?")
	srv.Say("7", "someone else's room")

	// Assert
	require.Eventually(t, func() bool { return len(s.Messages()) == 2 }, waitFor, tick)
	log := s.Messages()
	assert.Equal(t, models.SenderUser, log[0].Sender)
	assert.Equal(t, models.SenderEmployee, log[1].Sender)
	assert.Equal(t, "hi, how can we help?", log[1].Text)
	assert.Equal(t, 1, srv.RoomSize("42"))
}

func TestWebSocket_EchoIsDropped(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()
	srv.EchoSender(true)
	s := wsSession(t, srv, "")
	require.NoError(t, s.Open(context.Background(), "42"))

	_, err := s.Send("hello")
	require.NoError(t, err)
	srv.Say("42", "got it")

	require.Eventually(t, func() bool { return len(s.Messages()) == 2 }, waitFor, tick)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, s.Messages(), 2)
}

func TestWebSocket_ServerDropIsConnectionLost(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()
	s := wsSession(t, srv, "")
	require.NoError(t, s.Open(context.Background(), "42"))

	srv.DropRoom("42")

	ev := waitEvent(t, s, chathub.EventConnectionLost)
	assert.ErrorIs(t, ev.Err, apperr.ErrConnectionLost)
	assert.Equal(t, chathub.StateClosed, s.State())
}

func TestWebSocket_CloseLeavesRoom(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()
	s := wsSession(t, srv, "")
	require.NoError(t, s.Open(context.Background(), "42"))
	require.Equal(t, 1, srv.RoomSize("42"))

	require.NoError(t, s.Close())

	require.Eventually(t, func() bool { return srv.RoomSize("42") == 0 }, waitFor, tick)
}

func TestWebSocket_Auth(t *testing.T) {
	srv := testserver.New()
	defer srv.Close()
	srv.RequireAuth(true)

	err := wsSession(t, srv, "").Open(context.Background(), "42")
	assert.ErrorIs(t, err, apperr.ErrConnection)

	token, err := testserver.IssueToken("u1", time.Hour)
	require.NoError(t, err)
	assert.NoError(t, wsSession(t, srv, token).Open(context.Background(), "42"))
}

func TestWebSocket_Unreachable(t *testing.T) {
	srv := testserver.New()
	url := srv.WebSocketURL()
	srv.Close()

	s := chathub.NewSession(&chathub.WebSocketDialer{URL: url}, chathub.WithJoinTimeout(time.Second))
	err := s.Open(context.Background(), "42")

	assert.ErrorIs(t, err, apperr.ErrConnection)
	assert.Equal(t, chathub.StateClosed, s.State())
}
