package api

import (
	"context"
	"net/http"

	"complaintdesk/backend/internal/apperr"
	"complaintdesk/backend/internal/models"
)

// ListComplaints returns every complaint owned by userID.
func (c *Client) ListComplaints(ctx context.Context, userID string) ([]models.Complaint, error) {
	const op = "api.ListComplaints"

	var out []models.Complaint
	if err := c.doJSON(ctx, op, http.MethodGet, c.endpoint("complaints", "user", userID), nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		// "null" is not an array.
		return nil, apperr.Server(op, http.StatusOK, "expected a list of complaints")
	}
	return out, nil
}

// CreateComplaint submits a draft and returns the server-confirmed record.
func (c *Client) CreateComplaint(ctx context.Context, draft models.ComplaintDraft) (*models.Complaint, error) {
	const op = "api.CreateComplaint"

	var out models.Complaint
	if err := c.doJSON(ctx, op, http.MethodPost, c.endpoint("complaints"), draft, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, apperr.Server(op, http.StatusOK, "created complaint has no id")
	}
	return &out, nil
}

// UpdateComplaint sends a partial update and returns the canonical record.
func (c *Client) UpdateComplaint(ctx context.Context, id models.ComplaintID, patch models.ComplaintPatch) (*models.Complaint, error) {
	const op = "api.UpdateComplaint"

	var out models.Complaint
	if err := c.doJSON(ctx, op, http.MethodPut, c.endpoint("complaints", string(id)), patch, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		// Some deployments answer with the fields only.
		out.ID = id
	}
	if out.ID != id {
		return nil, apperr.Server(op, http.StatusOK, "backend returned complaint "+string(out.ID)+" for "+string(id))
	}
	return &out, nil
}

// DeleteComplaint removes a complaint on the backend.
func (c *Client) DeleteComplaint(ctx context.Context, id models.ComplaintID) error {
	return c.doJSON(ctx, "api.DeleteComplaint", http.MethodDelete, c.endpoint("complaints", string(id)), nil, nil)
}

// ComplaintStats returns the dashboard counters for userID.
func (c *Client) ComplaintStats(ctx context.Context, userID string) (*models.ComplaintStats, error) {
	var out models.ComplaintStats
	if err := c.doJSON(ctx, "api.ComplaintStats", http.MethodGet, c.endpoint("complaints", "stats", "user", userID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Notifications returns the notification feed for userID.
func (c *Client) Notifications(ctx context.Context, userID string) ([]models.Notification, error) {
	const op = "api.Notifications"

	var out []models.Notification
	if err := c.doJSON(ctx, op, http.MethodGet, c.endpoint("notifications", userID), nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return []models.Notification{}, nil
	}
	return out, nil
}
