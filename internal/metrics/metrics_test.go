package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveStoreOp(t *testing.T) {
	m := New()

	m.ObserveStoreOp("create", nil)
	m.ObserveStoreOp("create", nil)
	m.ObserveStoreOp("create", errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StoreOperations.WithLabelValues("create", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreOperations.WithLabelValues("create", ResultError)))
}

func TestObserveStoreOp_NilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.ObserveStoreOp("load", nil) })
}

func TestNew_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	a.ChatDuplicates.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.ChatDuplicates))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ChatDuplicates))
	assert.Equal(t, 7, testutil.CollectAndCount(a.Registry))
}
