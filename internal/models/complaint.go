package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ComplaintID is the backend-assigned identifier of a complaint.
// The backend may send it as a JSON number or a JSON string.
type ComplaintID string

func (id *ComplaintID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ComplaintID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("complaint id: %w", err)
	}
	*id = ComplaintID(n.String())
	return nil
}

// ComplaintType says who can see a complaint.
type ComplaintType string

const (
	ComplaintCommon  ComplaintType = "common"
	ComplaintPrivate ComplaintType = "private"
)

// Valid reports whether t is a known complaint type.
func (t ComplaintType) Valid() bool {
	return t == ComplaintCommon || t == ComplaintPrivate
}

func (t *ComplaintType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = ComplaintType(strings.ToLower(strings.TrimSpace(s)))
	return nil
}

// ComplaintStatus is set by the backend and is read-only to the client.
type ComplaintStatus string

const (
	StatusPending  ComplaintStatus = "pending"
	StatusAssigned ComplaintStatus = "assigned"
	StatusResolved ComplaintStatus = "resolved"
)

// Valid reports whether s is a known status.
func (s ComplaintStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAssigned, StatusResolved:
		return true
	}
	return false
}

// UnmarshalJSON accepts any casing ("Pending", "RESOLVED").
func (s *ComplaintStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ComplaintStatus(strings.ToLower(strings.TrimSpace(raw)))
	return nil
}

// Complaint is a user-submitted issue record tracked through
// pending, assigned and resolved states.
type Complaint struct {
	ID            ComplaintID     `json:"id"`
	UserID        string          `json:"userId,omitempty"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Address       string          `json:"address,omitempty"`
	ComplaintType ComplaintType   `json:"complaintType"`
	Status        ComplaintStatus `json:"status"`
	// EmployeeID is set once the complaint is assigned to staff.
	EmployeeID *string   `json:"employeeId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// UnmarshalJSON also accepts the snake_case field names the backend uses
// for some routes.
func (c *Complaint) UnmarshalJSON(data []byte) error {
	type plain Complaint
	aux := struct {
		*plain
		UserIDSnake        *string        `json:"user_id"`
		ComplaintTypeSnake *ComplaintType `json:"complaint_type"`
		EmployeeIDSnake    *string        `json:"employee_id"`
		CreatedAtSnake     *time.Time     `json:"created_at"`
	}{plain: (*plain)(c)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if c.UserID == "" && aux.UserIDSnake != nil {
		c.UserID = *aux.UserIDSnake
	}
	if c.ComplaintType == "" && aux.ComplaintTypeSnake != nil {
		c.ComplaintType = *aux.ComplaintTypeSnake
	}
	if c.EmployeeID == nil && aux.EmployeeIDSnake != nil {
		c.EmployeeID = aux.EmployeeIDSnake
	}
	if c.CreatedAt.IsZero() && aux.CreatedAtSnake != nil {
		c.CreatedAt = *aux.CreatedAtSnake
	}
	return nil
}

// ComplaintDraft is what a user fills in before submitting a complaint.
type ComplaintDraft struct {
	UserID        string        `json:"userId" validate:"required"`
	Title         string        `json:"title" validate:"required"`
	Description   string        `json:"description"`
	ComplaintType ComplaintType `json:"complaintType" validate:"required,oneof=common private"`
	Address       string        `json:"address" validate:"required"`
}

// DefaultAddress is sent when the user leaves the address empty.
const DefaultAddress = "N/A"

// Normalize trims the text fields and fills in defaults.
func (d ComplaintDraft) Normalize() ComplaintDraft {
	d.UserID = strings.TrimSpace(d.UserID)
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.Address = strings.TrimSpace(d.Address)
	if d.Address == "" {
		d.Address = DefaultAddress
	}
	if d.ComplaintType == "" {
		d.ComplaintType = ComplaintCommon
	}
	return d
}

// ComplaintPatch is a typed partial update. Nil fields are left unchanged.
// Status is deliberately absent: only the backend moves it.
type ComplaintPatch struct {
	Title         *string        `json:"title,omitempty"`
	Description   *string        `json:"description,omitempty"`
	ComplaintType *ComplaintType `json:"complaintType,omitempty"`
	Address       *string        `json:"address,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ComplaintPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.ComplaintType == nil && p.Address == nil
}

// ApplyTo returns a copy of c with the patch fields set.
func (p ComplaintPatch) ApplyTo(c Complaint) Complaint {
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.ComplaintType != nil {
		c.ComplaintType = *p.ComplaintType
	}
	if p.Address != nil {
		c.Address = *p.Address
	}
	return c
}

// ComplaintStats holds per-status counts for the dashboard.
type ComplaintStats struct {
	Total    int `json:"total"`
	Assigned int `json:"assigned"`
	Resolved int `json:"resolved"`
	Pending  int `json:"pending"`
}

// StatusChange records a backend-driven status transition seen during a reload.
type StatusChange struct {
	Complaint Complaint
	From      ComplaintStatus
	To        ComplaintStatus
}
