package metrics

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Cycles(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.CycleCompleted(OutcomeSuccess, 20*time.Millisecond)
	r.CycleCompleted(OutcomeSuccess, 30*time.Millisecond)
	r.CycleCompleted(OutcomeNoWorkers, time.Millisecond)
	r.AssignmentsCreated(7)
	r.LeasesPurged(3)

	require.Equal(t, 2.0, testutil.ToFloat64(r.cyclesTotal.WithLabelValues(OutcomeSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(r.cyclesTotal.WithLabelValues(OutcomeNoWorkers)))
	require.Equal(t, 7.0, testutil.ToFloat64(r.assignmentsCreated))
	require.Equal(t, 3.0, testutil.ToFloat64(r.leasesPurged))
}

func TestRecorder_Completions(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.CompletionRecorded(true, nil)
	r.CompletionRecorded(false, nil)
	r.CompletionRecorded(false, nil)
	r.CompletionRecorded(false, errors.New("store down"))

	require.Equal(t, 1.0, testutil.ToFloat64(r.completions.WithLabelValues("completed")))
	require.Equal(t, 2.0, testutil.ToFloat64(r.completions.WithLabelValues("miss")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.completions.WithLabelValues("error")))
}

func TestRecorder_ChecksAndHTTP(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.CheckIngested("up")
	r.CheckIngested("down")
	r.CheckIngested("up")
	r.HTTPRequest(http.MethodPost, http.StatusCreated, 5*time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(r.checksIngested.WithLabelValues("up")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.checksIngested.WithLabelValues("down")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.httpRequests.WithLabelValues("POST", "201")))
}

func TestNew_SeparateRegistries(t *testing.T) {
	require.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}

func TestRecorder_NilDiscards(t *testing.T) {
	var r *Recorder

	require.NotPanics(t, func() {
		r.CycleCompleted(OutcomeError, time.Second)
		r.AssignmentsCreated(1)
		r.LeasesPurged(1)
		r.CheckIngested("up")
		r.CompletionRecorded(true, nil)
		r.HTTPRequest(http.MethodGet, http.StatusOK, time.Millisecond)
	})
}
