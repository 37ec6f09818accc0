package complaint

import (
	"strings"

	"complaintdesk/backend/internal/models"
)

// Criterion selects complaints for display.
type Criterion string

const (
	All      Criterion = "all"
	Common   Criterion = "common"
	Private  Criterion = "private"
	Pending  Criterion = "pending"
	Assigned Criterion = "assigned"
	Resolved Criterion = "resolved"
)

// Criteria lists the known criteria in menu order.
var Criteria = []Criterion{All, Common, Private, Pending, Assigned, Resolved}

// Filter returns the cached complaints matching criterion, in cache order.
// Matching is case-insensitive. An unknown criterion matches nothing.
func (s *Store) Filter(criterion Criterion) []models.Complaint {
	return Apply(s.List(), criterion)
}

// Apply filters list without touching it.
func Apply(list []models.Complaint, criterion Criterion) []models.Complaint {
	match := matcher(criterion)
	out := make([]models.Complaint, 0, len(list))
	if match == nil {
		return out
	}
	for _, c := range list {
		if match(c) {
			out = append(out, c)
		}
	}
	return out
}

func matcher(criterion Criterion) func(models.Complaint) bool {
	switch Criterion(strings.ToLower(strings.TrimSpace(string(criterion)))) {
	case All:
		return func(models.Complaint) bool { return true }
	case Common:
		return byType(models.ComplaintCommon)
	case Private:
		return byType(models.ComplaintPrivate)
	case Pending:
		return byStatus(models.StatusPending)
	case Assigned:
		return byStatus(models.StatusAssigned)
	case Resolved:
		return byStatus(models.StatusResolved)
	}
	return nil
}

func byType(t models.ComplaintType) func(models.Complaint) bool {
	return func(c models.Complaint) bool {
		return models.ComplaintType(strings.ToLower(string(c.ComplaintType))) == t
	}
}

func byStatus(st models.ComplaintStatus) func(models.Complaint) bool {
	return func(c models.Complaint) bool {
		return models.ComplaintStatus(strings.ToLower(string(c.Status))) == st
	}
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
