// Package complaint keeps the signed-in user's complaints in a local cache
// and keeps that cache consistent with the backend.
package complaint

import (
	"context"
	"sync"

	"complaintdesk/backend/internal/apperr"
	"complaintdesk/backend/internal/logging"
	"complaintdesk/backend/internal/metrics"
	"complaintdesk/backend/internal/models"

	"go.uber.org/zap"
)

// Backend is the subset of the REST client the store needs.
type Backend interface {
	ListComplaints(ctx context.Context, userID string) ([]models.Complaint, error)
	CreateComplaint(ctx context.Context, draft models.ComplaintDraft) (*models.Complaint, error)
	UpdateComplaint(ctx context.Context, id models.ComplaintID, patch models.ComplaintPatch) (*models.Complaint, error)
	DeleteComplaint(ctx context.Context, id models.ComplaintID) error
}

// StatusListener is told about status transitions found by a reload.
type StatusListener interface {
	ComplaintStatusChanged(ctx context.Context, change models.StatusChange)
}

// StatusListenerFunc adapts a function to StatusListener.
type StatusListenerFunc func(ctx context.Context, change models.StatusChange)

func (f StatusListenerFunc) ComplaintStatusChanged(ctx context.Context, change models.StatusChange) {
	f(ctx, change)
}

type mutation int

const (
	mutCreated mutation = iota + 1
	mutUpdated
	mutRemoved
)

// stamp records the last local mutation of an id.
type stamp struct {
	seq  uint64
	kind mutation
}

// Store is the local complaint cache. All methods are safe for concurrent
// use; results are applied in completion order.
type Store struct {
	backend Backend
	log     *zap.Logger
	metrics *metrics.Metrics

	mu        sync.Mutex
	items     []models.Complaint
	seq       uint64
	stamps    map[models.ComplaintID]stamp
	loading   int
	listeners []StatusListener
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithMetrics records store operations on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// NewStore creates an empty store backed by b.
func NewStore(b Backend, opts ...Option) *Store {
	s := &Store{
		backend: b,
		stamps:  make(map[models.ComplaintID]stamp),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.OrNop(s.log)
	return s
}

// AddStatusListener registers l for status transitions seen by Load.
func (s *Store) AddStatusListener(l StatusListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Load fetches the user's complaints and replaces the cache with them.
// On failure the cache is left as it was.
//
// Local mutations that complete while the fetch is in flight win over the
// fetched data for the ids they touched.
func (s *Store) Load(ctx context.Context, userID string) ([]models.Complaint, error) {
	s.mu.Lock()
	start := s.seq
	s.loading++
	s.mu.Unlock()

	fresh, err := s.backend.ListComplaints(ctx, userID)

	s.mu.Lock()
	s.loading--
	if err != nil {
		s.pruneLocked()
		s.mu.Unlock()
		s.metrics.ObserveStoreOp("load", err)
		s.log.Warn("failed to load complaints", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	previous := s.items
	s.items = s.mergeLocked(fresh, start)
	changes := statusChanges(previous, s.items)
	s.pruneLocked()
	out := clone(s.items)
	listeners := append([]StatusListener(nil), s.listeners...)
	s.setSizeLocked()
	s.mu.Unlock()

	s.metrics.ObserveStoreOp("load", nil)
	s.log.Debug("complaints loaded",
		zap.String("user_id", userID),
		zap.Int("count", len(out)),
		zap.Int("status_changes", len(changes)),
	)

	for _, change := range changes {
		if s.metrics != nil {
			s.metrics.StatusChanges.WithLabelValues(string(change.To)).Inc()
		}
		s.log.Info("complaint status changed",
			zap.String("complaint_id", string(change.Complaint.ID)),
			zap.String("from", string(change.From)),
			zap.String("to", string(change.To)),
		)
		for _, l := range listeners {
			l.ComplaintStatusChanged(ctx, change)
		}
	}
	return out, nil
}

// mergeLocked combines a fetched list with mutations stamped after start.
func (s *Store) mergeLocked(fresh []models.Complaint, start uint64) []models.Complaint {
	local := make(map[models.ComplaintID]models.Complaint, len(s.items))
	for _, c := range s.items {
		local[c.ID] = c
	}
	newer := func(id models.ComplaintID) (stamp, bool) {
		st, ok := s.stamps[id]
		return st, ok && st.seq > start
	}

	merged := make([]models.Complaint, 0, len(fresh))
	seen := make(map[models.ComplaintID]bool, len(fresh))

	// Records created after the fetch started may be missing from it.
	for _, c := range s.items {
		if st, ok := newer(c.ID); ok && st.kind == mutCreated && !contains(fresh, c.ID) {
			merged = append(merged, c)
			seen[c.ID] = true
		}
	}

	for _, c := range fresh {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		if st, ok := newer(c.ID); ok {
			if st.kind == mutRemoved {
				continue
			}
			if mine, ok := local[c.ID]; ok {
				c = mine
			}
		}
		merged = append(merged, c)
	}
	return merged
}

// pruneLocked drops stamps once no fetch can be affected by them.
func (s *Store) pruneLocked() {
	if s.loading == 0 && len(s.stamps) > 0 {
		s.stamps = make(map[models.ComplaintID]stamp)
	}
}

func (s *Store) stampLocked(id models.ComplaintID, kind mutation) {
	s.seq++
	s.stamps[id] = stamp{seq: s.seq, kind: kind}
}

func (s *Store) setSizeLocked() {
	if s.metrics != nil {
		s.metrics.StoreSize.Set(float64(len(s.items)))
	}
}

// Create validates draft, submits it and puts the confirmed record at the
// front of the cache. Nothing is sent when validation fails.
func (s *Store) Create(ctx context.Context, draft models.ComplaintDraft) (*models.Complaint, error) {
	const op = "complaint.Create"

	draft = draft.Normalize()
	if err := models.Validate(op, draft); err != nil {
		s.metrics.ObserveStoreOp("create", err)
		return nil, err
	}

	created, err := s.backend.CreateComplaint(ctx, draft)
	s.metrics.ObserveStoreOp("create", err)
	if err != nil {
		s.log.Warn("failed to create complaint", zap.String("title", draft.Title), zap.Error(err))
		return nil, err
	}

	s.mu.Lock()
	s.items = append([]models.Complaint{*created}, s.without(created.ID)...)
	s.stampLocked(created.ID, mutCreated)
	s.setSizeLocked()
	s.mu.Unlock()

	s.log.Info("complaint created", zap.String("complaint_id", string(created.ID)))
	out := *created
	return &out, nil
}

// Update applies patch to a cached complaint and replaces it with the
// backend's canonical copy.
func (s *Store) Update(ctx context.Context, id models.ComplaintID, patch models.ComplaintPatch) (*models.Complaint, error) {
	const op = "complaint.Update"

	if _, ok := s.Get(id); !ok {
		err := apperr.NotFound(op, string(id))
		s.metrics.ObserveStoreOp("update", err)
		return nil, err
	}
	if patch.Empty() {
		err := apperr.Validation(op, "nothing to update")
		s.metrics.ObserveStoreOp("update", err)
		return nil, err
	}
	if patch.ComplaintType != nil && !patch.ComplaintType.Valid() {
		err := apperr.Validation(op, "complaintType must be one of: common private")
		s.metrics.ObserveStoreOp("update", err)
		return nil, err
	}
	if patch.Title != nil && isBlank(*patch.Title) {
		err := apperr.Validation(op, "title is required")
		s.metrics.ObserveStoreOp("update", err)
		return nil, err
	}

	updated, err := s.backend.UpdateComplaint(ctx, id, patch)
	s.metrics.ObserveStoreOp("update", err)
	if err != nil {
		s.log.Warn("failed to update complaint", zap.String("complaint_id", string(id)), zap.Error(err))
		return nil, err
	}

	s.mu.Lock()
	found := false
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i] = *updated
			s.stampLocked(id, mutUpdated)
			found = true
			break
		}
	}
	s.mu.Unlock()

	if !found {
		s.log.Warn("complaint removed while its update was in flight", zap.String("complaint_id", string(id)))
		return nil, apperr.NotFound(op, string(id))
	}

	out := *updated
	return &out, nil
}

// Remove deletes a cached complaint on the backend. confirmed must be true:
// it is the caller's record that the user agreed to the deletion.
func (s *Store) Remove(ctx context.Context, id models.ComplaintID, confirmed bool) error {
	const op = "complaint.Remove"

	if !confirmed {
		err := apperr.Validation(op, "deletion must be confirmed")
		s.metrics.ObserveStoreOp("remove", err)
		return err
	}
	if _, ok := s.Get(id); !ok {
		err := apperr.NotFound(op, string(id))
		s.metrics.ObserveStoreOp("remove", err)
		return err
	}

	err := s.backend.DeleteComplaint(ctx, id)
	s.metrics.ObserveStoreOp("remove", err)
	if err != nil {
		s.log.Warn("failed to delete complaint", zap.String("complaint_id", string(id)), zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.items = s.without(id)
	s.stampLocked(id, mutRemoved)
	s.setSizeLocked()
	s.mu.Unlock()

	s.log.Info("complaint deleted", zap.String("complaint_id", string(id)))
	return nil
}

// Get returns the cached complaint with id.
func (s *Store) Get(id models.ComplaintID) (models.Complaint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.items {
		if c.ID == id {
			return c, true
		}
	}
	return models.Complaint{}, false
}

// List returns a copy of the cache in display order.
func (s *Store) List() []models.Complaint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.items)
}

// Stats counts the cached complaints by status.
func (s *Store) Stats() models.ComplaintStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := models.ComplaintStats{Total: len(s.items)}
	for _, c := range s.items {
		switch c.Status {
		case models.StatusPending:
			st.Pending++
		case models.StatusAssigned:
			st.Assigned++
		case models.StatusResolved:
			st.Resolved++
		}
	}
	return st
}

// without returns the items minus id. Callers hold mu.
func (s *Store) without(id models.ComplaintID) []models.Complaint {
	out := make([]models.Complaint, 0, len(s.items))
	for _, c := range s.items {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}

func statusChanges(before, after []models.Complaint) []models.StatusChange {
	old := make(map[models.ComplaintID]models.ComplaintStatus, len(before))
	for _, c := range before {
		old[c.ID] = c.Status
	}
	var changes []models.StatusChange
	for _, c := range after {
		if from, ok := old[c.ID]; ok && from != c.Status {
			changes = append(changes, models.StatusChange{Complaint: c, From: from, To: c.Status})
		}
	}
	return changes
}

func contains(list []models.Complaint, id models.ComplaintID) bool {
	for _, c := range list {
		if c.ID == id {
			return true
		}
	}
	return false
}

func clone(list []models.Complaint) []models.Complaint {
	return append(make([]models.Complaint, 0, len(list)), list...)
}
