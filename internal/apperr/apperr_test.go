package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"complaintdesk/backend/internal/apperr"

	"github.com/stretchr/testify/assert"
)

func TestErrorIs_MatchesByKind(t *testing.T) {
	err := apperr.Validation("complaint.Create", "title is required")

	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.False(t, errors.Is(err, apperr.ErrServer))
}

func TestErrorIs_ThroughWrapping(t *testing.T) {
	base := apperr.Network("api.ListComplaints", errors.New("dial tcp: connection refused"))
	wrapped := fmt.Errorf("refresh: %w", base)

	assert.True(t, errors.Is(wrapped, apperr.ErrNetwork))
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(wrapped))
}

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *apperr.Error
		want string
	}{
		{
			name: "server with status",
			err:  apperr.Server("api.CreateComplaint", 422, "title too long"),
			want: "api.CreateComplaint: server: title too long (status 422)",
		},
		{
			name: "network with cause",
			err:  apperr.Network("api.DeleteComplaint", errors.New("timeout")),
			want: "api.DeleteComplaint: network: timeout",
		},
		{
			name: "invalid state",
			err:  apperr.InvalidState("chat.Send", "session is closed"),
			want: "chat.Send: invalid_state: session is closed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, apperr.Kind(""), apperr.KindOf(errors.New("plain")))
}

func TestUnwrap_ExposesCause(t *testing.T) {
	cause := errors.New("handshake failed")
	err := apperr.Connection("chat.Open", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, apperr.ErrConnection)
}
