package jobmetrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const scan = "notify:low_stock_scan"

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	fixed := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	require.NoError(t, m.Track(scan).End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track(scan).End(boom), boom)
	skipped := fmt.Errorf("bad payload: %w", asynq.SkipRetry)
	require.ErrorIs(t, m.Track(scan).End(skipped), asynq.SkipRetry)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(scan, StatusSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(scan, StatusFailure)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(scan, StatusSkipped)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues(scan)))
	require.Equal(t, float64(fixed.Unix()), testutil.ToFloat64(m.lastSuccess.WithLabelValues(scan)))
}

func TestAddNotified(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddNotified("notify:appointment_reminders", 3)
	m.AddNotified("notify:appointment_reminders", 0)
	require.Equal(t, 3.0, testutil.ToFloat64(m.notified.WithLabelValues("notify:appointment_reminders")))

	var nilMetrics *Metrics
	nilMetrics.AddNotified("x", 1)
	require.NoError(t, nilMetrics.Track("x").End(nil))
}

func TestDefaultMetricsShared(t *testing.T) {
	require.Same(t, NewMetrics(nil), NewMetrics(nil))
}
