package complaint_test

import (
	"context"

	"complaintdesk/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) ListComplaints(ctx context.Context, userID string) ([]models.Complaint, error) {
	args := m.Called(ctx, userID)
	list, _ := args.Get(0).([]models.Complaint)
	return list, args.Error(1)
}

func (m *MockBackend) CreateComplaint(ctx context.Context, draft models.ComplaintDraft) (*models.Complaint, error) {
	args := m.Called(ctx, draft)
	c, _ := args.Get(0).(*models.Complaint)
	return c, args.Error(1)
}

func (m *MockBackend) UpdateComplaint(ctx context.Context, id models.ComplaintID, patch models.ComplaintPatch) (*models.Complaint, error) {
	args := m.Called(ctx, id, patch)
	c, _ := args.Get(0).(*models.Complaint)
	return c, args.Error(1)
}

func (m *MockBackend) DeleteComplaint(ctx context.Context, id models.ComplaintID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
