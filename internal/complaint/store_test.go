package complaint_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"complaintdesk/backend/internal/apperr"
	"complaintdesk/backend/internal/complaint"
	"complaintdesk/backend/internal/metrics"
	"complaintdesk/backend/internal/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

func sample(id string, typ models.ComplaintType, status models.ComplaintStatus) models.Complaint {
	return models.Complaint{
		ID:            models.ComplaintID(id),
		UserID:        "u1",
		Title:         "complaint " + id,
		ComplaintType: typ,
		Status:        status,
		CreatedAt:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func loadedStore(t *testing.T, items ...models.Complaint) (*complaint.Store, *MockBackend) {
	t.Helper()
	backend := new(MockBackend)
	store := complaint.NewStore(backend)
	backend.On("ListComplaints", mock.Anything, "u1").Return(items, nil).Once()
	_, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	return store, backend
}

func ids(list []models.Complaint) []models.ComplaintID {
	out := make([]models.ComplaintID, len(list))
	for i, c := range list {
		out[i] = c.ID
	}
	return out
}

func TestLoad_ReplacesCache(t *testing.T) {
	store, backend := loadedStore(t, sample("1", models.ComplaintCommon, models.StatusPending))

	backend.On("ListComplaints", mock.Anything, "u1").
		Return([]models.Complaint{sample("2", models.ComplaintPrivate, models.StatusAssigned)}, nil).Once()

	list, err := store.Load(ctx, "u1")

	require.NoError(t, err)
	assert.Equal(t, []models.ComplaintID{"2"}, ids(list))
	assert.Equal(t, []models.ComplaintID{"2"}, ids(store.List()))
}

func TestLoad_FailureKeepsCache(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"network", apperr.Network("api.ListComplaints", errors.New("dial tcp: refused")), apperr.ErrNetwork},
		{"server", apperr.Server("api.ListComplaints", 200, "expected a list of complaints"), apperr.ErrServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, backend := loadedStore(t, sample("1", models.ComplaintCommon, models.StatusPending))
			backend.On("ListComplaints", mock.Anything, "u1").Return(nil, tt.err).Once()

			_, err := store.Load(ctx, "u1")

			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, []models.ComplaintID{"1"}, ids(store.List()))
		})
	}
}

func TestCreate_PrependsConfirmedRecord(t *testing.T) {
	// Arrange
	store, backend := loadedStore(t, sample("7", models.ComplaintCommon, models.StatusResolved))
	draft := models.ComplaintDraft{UserID: "u1", Title: "Broken light", Description: "Lamp post out", ComplaintType: models.ComplaintCommon}
	confirmed := &models.Complaint{ID: "42", UserID: "u1", Title: "Broken light", ComplaintType: models.ComplaintCommon, Status: models.StatusPending, Address: "N/A"}
	backend.On("CreateComplaint", mock.Anything, mock.MatchedBy(func(d models.ComplaintDraft) bool {
		return d.Address == models.DefaultAddress && d.Title == "Broken light"
	})).Return(confirmed, nil).Once()

	// Act
	created, err := store.Create(ctx, draft)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, models.ComplaintID("42"), created.ID)
	assert.Equal(t, []models.ComplaintID{"42", "7"}, ids(store.List()))
	assert.Equal(t, []models.ComplaintID{"42"}, ids(store.Filter(complaint.Pending)))
	assert.NotContains(t, ids(store.Filter(complaint.Resolved)), models.ComplaintID("42"))
	backend.AssertExpectations(t)
}

func TestCreate_ValidationFailsWithoutNetwork(t *testing.T) {
	tests := []struct {
		name  string
		draft models.ComplaintDraft
	}{
		{"empty title", models.ComplaintDraft{UserID: "u1", Title: "   ", ComplaintType: models.ComplaintCommon}},
		{"no user", models.ComplaintDraft{Title: "x", ComplaintType: models.ComplaintCommon}},
		{"unknown type", models.ComplaintDraft{UserID: "u1", Title: "x", ComplaintType: "secret"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, backend := loadedStore(t, sample("1", models.ComplaintCommon, models.StatusPending))

			_, err := store.Create(ctx, tt.draft)

			assert.ErrorIs(t, err, apperr.ErrValidation)
			backend.AssertNotCalled(t, "CreateComplaint", mock.Anything, mock.Anything)
			assert.Equal(t, []models.ComplaintID{"1"}, ids(store.List()))
		})
	}
}

func TestCreate_BackendFailureLeavesCache(t *testing.T) {
	store, backend := loadedStore(t, sample("1", models.ComplaintCommon, models.StatusPending))
	backend.On("CreateComplaint", mock.Anything, mock.Anything).
		Return(nil, apperr.Server("api.CreateComplaint", 500, "boom")).Once()

	_, err := store.Create(ctx, models.ComplaintDraft{UserID: "u1", Title: "x"})

	assert.ErrorIs(t, err, apperr.ErrServer)
	assert.Equal(t, []models.ComplaintID{"1"}, ids(store.List()))
}

func strPtr(s string) *string { return &s }

func TestUpdate(t *testing.T) {
	store, backend := loadedStore(t,
		sample("1", models.ComplaintCommon, models.StatusPending),
		sample("2", models.ComplaintCommon, models.StatusPending),
	)
	patch := models.ComplaintPatch{Title: strPtr("renamed")}
	canonical := sample("2", models.ComplaintCommon, models.StatusPending)
	canonical.Title = "renamed"
	backend.On("UpdateComplaint", mock.Anything, models.ComplaintID("2"), patch).Return(&canonical, nil).Once()

	updated, err := store.Update(ctx, "2", patch)

	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)
	got, ok := store.Get("2")
	require.True(t, ok)
	assert.Equal(t, "renamed", got.Title)
	assert.Equal(t, []models.ComplaintID{"1", "2"}, ids(store.List()))
}

func TestUpdate_UnknownIDIsNotFound(t *testing.T) {
	store, backend := loadedStore(t, sample("1", models.ComplaintCommon, models.StatusPending))
	before := store.List()

	_, err := store.Update(ctx, "999", models.ComplaintPatch{Title: strPtr("x")})

	assert.ErrorIs(t, err, apperr.ErrNotFound)
	backend.AssertNotCalled(t, "UpdateComplaint", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, before, store.List())
}

func TestUpdate_RejectsBadPatch(t *testing.T) {
	store, backend := loadedStore(t, sample("1", models.ComplaintCommon, models.StatusPending))
	bad := models.ComplaintType("secret")

	_, err := store.Update(ctx, "1", models.ComplaintPatch{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = store.Update(ctx, "1", models.ComplaintPatch{ComplaintType: &bad})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = store.Update(ctx, "1", models.ComplaintPatch{Title: strPtr(" ")})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	backend.AssertNotCalled(t, "UpdateComplaint", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdate_RemovedWhileInFlightIsNotFound(t *testing.T) {
	// Arrange
	store, backend := loadedStore(t,
		sample("1", models.ComplaintCommon, models.StatusPending),
		sample("2", models.ComplaintCommon, models.StatusPending),
	)
	patch := models.ComplaintPatch{Title: strPtr("renamed")}
	canonical := sample("1", models.ComplaintCommon, models.StatusPending)
	canonical.Title = "renamed"
	backend.On("DeleteComplaint", mock.Anything, models.ComplaintID("1")).Return(nil).Once()
	backend.On("UpdateComplaint", mock.Anything, models.ComplaintID("1"), patch).
		Run(func(mock.Arguments) {
			require.NoError(t, store.Remove(ctx, "1", true))
		}).
		Return(&canonical, nil).Once()

	// Act
	updated, err := store.Update(ctx, "1", patch)

	// Assert
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Nil(t, updated)
	assert.Equal(t, []models.ComplaintID{"2"}, ids(store.List()))
	backend.AssertExpectations(t)
}

func TestFilter(t *testing.T) {
	items := []models.Complaint{
		sample("1", models.ComplaintCommon, models.StatusPending),
		sample("2", models.ComplaintPrivate, models.StatusAssigned),
		sample("3", models.ComplaintCommon, models.StatusResolved),
		sample("4", models.ComplaintPrivate, models.StatusPending),
		sample("5", models.ComplaintCommon, models.StatusAssigned),
	}

	tests := []struct {
		name      string
		criterion complaint.Criterion
		want      []models.ComplaintID
	}{
		{"all", complaint.All, []models.ComplaintID{"1", "2", "3", "4", "5"}},
		{"common", complaint.Common, []models.ComplaintID{"1", "3", "5"}},
		{"private", complaint.Private, []models.ComplaintID{"2", "4"}},
		{"pending", complaint.Pending, []models.ComplaintID{"1", "4"}},
		{"assigned", complaint.Assigned, []models.ComplaintID{"2", "5"}},
		{"resolved", complaint.Resolved, []models.ComplaintID{"3"}},
		{"mixed case", complaint.Criterion("Common"), []models.ComplaintID{"1", "3", "5"}},
		{"upper case", complaint.Criterion("PENDING"), []models.ComplaintID{"1", "4"}},
		{"unknown", complaint.Criterion("urgent"), []models.ComplaintID{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			store, _ := loadedStore(t, items...)
			before := store.List()

			// Act
			first := store.Filter(tt.criterion)
			second := store.Filter(tt.criterion)

			// Assert
			require.NotNil(t, first)
			assert.Equal(t, tt.want, ids(first))
			assert.Equal(t, first, second)
			assert.Equal(t, before, store.List())
		})
	}
}

func TestFilter_ReturnsCopy(t *testing.T) {
	store, _ := loadedStore(t,
		sample("1", models.ComplaintCommon, models.StatusPending),
		sample("2", models.ComplaintPrivate, models.StatusPending),
	)

	got := store.Filter(complaint.Common)
	require.Len(t, got, 1)
	got[0].Title = "changed"

	cached, ok := store.Get("1")
	require.True(t, ok)
	assert.Equal(t, "complaint 1", cached.Title)
}

func TestRemove(t *testing.T) {
	t.Run("requires confirmation", func(t *testing.T) {
		store, backend := loadedStore(t, sample("1", models.ComplaintCommon, models.StatusPending))

		err := store.Remove(ctx, "1", false)

		assert.ErrorIs(t, err, apperr.ErrValidation)
		backend.AssertNotCalled(t, "DeleteComplaint", mock.Anything, mock.Anything)
		assert.Len(t, store.List(), 1)
	})

	t.Run("unknown id", func(t *testing.T) {
		store, backend := loadedStore(t, sample("1", models.ComplaintCommon, models.StatusPending))

		err := store.Remove(ctx, "2", true)

		assert.ErrorIs(t, err, apperr.ErrNotFound)
		backend.AssertNotCalled(t, "DeleteComplaint", mock.Anything, mock.Anything)
	})

	t.Run("backend failure keeps record", func(t *testing.T) {
		store, backend := loadedStore(t, sample("1", models.ComplaintCommon, models.StatusPending))
		backend.On("DeleteComplaint", mock.Anything, models.ComplaintID("1")).
			Return(apperr.Network("api.DeleteComplaint", errors.New("timeout"))).Once()

		err := store.Remove(ctx, "1", true)

		assert.ErrorIs(t, err, apperr.ErrNetwork)
		assert.Len(t, store.List(), 1)
	})

	t.Run("success drops record", func(t *testing.T) {
		store, backend := loadedStore(t,
			sample("1", models.ComplaintCommon, models.StatusPending),
			sample("2", models.ComplaintCommon, models.StatusPending),
		)
		backend.On("DeleteComplaint", mock.Anything, models.ComplaintID("1")).Return(nil).Once()

		require.NoError(t, store.Remove(ctx, "1", true))

		assert.Equal(t, []models.ComplaintID{"2"}, ids(store.List()))
		_, ok := store.Get("1")
		assert.False(t, ok)
	})
}

func TestStats(t *testing.T) {
	store, _ := loadedStore(t,
		sample("1", models.ComplaintCommon, models.StatusPending),
		sample("2", models.ComplaintCommon, models.StatusAssigned),
		sample("3", models.ComplaintPrivate, models.StatusResolved),
		sample("4", models.ComplaintPrivate, models.StatusResolved),
	)

	assert.Equal(t, models.ComplaintStats{Total: 4, Pending: 1, Assigned: 1, Resolved: 2}, store.Stats())
}

// blockingList makes the next ListComplaints call wait until release is closed.
func blockingList(backend *MockBackend, result []models.Complaint) (started, release chan struct{}) {
	started = make(chan struct{})
	release = make(chan struct{})
	backend.On("ListComplaints", mock.Anything, "u1").
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(result, nil).Once()
	return started, release
}

func TestLoad_KeepsRecordCreatedDuringFetch(t *testing.T) {
	store, backend := loadedStore(t, sample("1", models.ComplaintCommon, models.StatusPending))
	started, release := blockingList(backend, []models.Complaint{sample("1", models.ComplaintCommon, models.StatusPending)})
	confirmed := sample("42", models.ComplaintCommon, models.StatusPending)
	backend.On("CreateComplaint", mock.Anything, mock.Anything).Return(&confirmed, nil).Once()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := store.Load(ctx, "u1")
		assert.NoError(t, err)
	}()
	<-started

	_, err := store.Create(ctx, models.ComplaintDraft{UserID: "u1", Title: "x"})
	require.NoError(t, err)
	close(release)
	wg.Wait()

	assert.Equal(t, []models.ComplaintID{"42", "1"}, ids(store.List()))
}

func TestLoad_KeepsRemovalDuringFetch(t *testing.T) {
	store, backend := loadedStore(t,
		sample("1", models.ComplaintCommon, models.StatusPending),
		sample("2", models.ComplaintCommon, models.StatusPending),
	)
	started, release := blockingList(backend, []models.Complaint{
		sample("1", models.ComplaintCommon, models.StatusPending),
		sample("2", models.ComplaintCommon, models.StatusPending),
	})
	backend.On("DeleteComplaint", mock.Anything, models.ComplaintID("2")).Return(nil).Once()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = store.Load(ctx, "u1")
	}()
	<-started
	require.NoError(t, store.Remove(ctx, "2", true))
	close(release)
	<-done

	assert.Equal(t, []models.ComplaintID{"1"}, ids(store.List()))
}

func TestLoad_KeepsUpdateDuringFetch(t *testing.T) {
	store, backend := loadedStore(t, sample("1", models.ComplaintCommon, models.StatusPending))
	started, release := blockingList(backend, []models.Complaint{sample("1", models.ComplaintCommon, models.StatusPending)})
	canonical := sample("1", models.ComplaintCommon, models.StatusPending)
	canonical.Title = "newer"
	backend.On("UpdateComplaint", mock.Anything, models.ComplaintID("1"), mock.Anything).Return(&canonical, nil).Once()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = store.Load(ctx, "u1")
	}()
	<-started
	_, err := store.Update(ctx, "1", models.ComplaintPatch{Title: strPtr("newer")})
	require.NoError(t, err)
	close(release)
	<-done

	got, ok := store.Get("1")
	require.True(t, ok)
	assert.Equal(t, "newer", got.Title)
}

func TestLoad_LaterLoadDropsOldStamps(t *testing.T) {
	store, backend := loadedStore(t)
	confirmed := sample("42", models.ComplaintCommon, models.StatusPending)
	backend.On("CreateComplaint", mock.Anything, mock.Anything).Return(&confirmed, nil).Once()
	_, err := store.Create(ctx, models.ComplaintDraft{UserID: "u1", Title: "x"})
	require.NoError(t, err)

	// The backend no longer has it; a fetch started after the create wins.
	backend.On("ListComplaints", mock.Anything, "u1").Return([]models.Complaint{}, nil).Once()
	_, err = store.Load(ctx, "u1")
	require.NoError(t, err)

	assert.Empty(t, store.List())
}

func TestLoad_NotifiesStatusChanges(t *testing.T) {
	m := metrics.New()
	backend := new(MockBackend)
	store := complaint.NewStore(backend, complaint.WithMetrics(m))

	var got []models.StatusChange
	store.AddStatusListener(complaint.StatusListenerFunc(func(_ context.Context, change models.StatusChange) {
		got = append(got, change)
	}))

	backend.On("ListComplaints", mock.Anything, "u1").Return([]models.Complaint{
		sample("1", models.ComplaintCommon, models.StatusPending),
		sample("2", models.ComplaintCommon, models.StatusPending),
	}, nil).Once()
	backend.On("ListComplaints", mock.Anything, "u1").Return([]models.Complaint{
		sample("1", models.ComplaintCommon, models.StatusAssigned),
		sample("2", models.ComplaintCommon, models.StatusPending),
		sample("3", models.ComplaintCommon, models.StatusResolved),
	}, nil).Once()

	_, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = store.Load(ctx, "u1")
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, models.ComplaintID("1"), got[0].Complaint.ID)
	assert.Equal(t, models.StatusPending, got[0].From)
	assert.Equal(t, models.StatusAssigned, got[0].To)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StatusChanges.WithLabelValues("assigned")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StoreOperations.WithLabelValues("load", metrics.ResultOK)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.StoreSize))
}
