package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordCryptoOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetricsWithRegistry(reg)

	m.RecordCryptoOperation("encrypt", "NORMAL", 2*time.Millisecond, "")
	m.RecordCryptoOperation("decrypt", "NORMAL", 2*time.Millisecond, "algorithm-symmetric")

	if got := testutil.ToFloat64(m.cryptoOperations.WithLabelValues("encrypt", "NORMAL")); got != 1 {
		t.Errorf("encrypt counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.cryptoErrors.WithLabelValues("decrypt", "NORMAL", "algorithm-symmetric")); got != 1 {
		t.Errorf("error counter = %v, want 1", got)
	}
	// Success must not count as an error.
	if got := testutil.ToFloat64(m.cryptoErrors.WithLabelValues("encrypt", "NORMAL", "")); got != 0 {
		t.Errorf("error counter for success = %v, want 0", got)
	}
}

func TestRotationMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetricsWithRegistry(reg)

	m.RecordRotation("manual_rotation", 2)
	m.RecordRotationFailure()
	m.SetRotationActive(true)

	if got := testutil.ToFloat64(m.rotationsTotal.WithLabelValues("manual_rotation")); got != 1 {
		t.Errorf("rotations counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.rotationFailures); got != 1 {
		t.Errorf("failure counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.currentKeyVersion); got != 2 {
		t.Errorf("key version gauge = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.rotationActive); got != 1 {
		t.Errorf("rotation active gauge = %v, want 1", got)
	}

	m.SetRotationActive(false)
	if got := testutil.ToFloat64(m.rotationActive); got != 0 {
		t.Errorf("rotation active gauge = %v, want 0", got)
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetricsWithRegistry(reg)

	m.RecordHTTPRequest("POST", "/v1/encrypt", "OK", 3*time.Millisecond)
	m.RecordHTTPRequest("POST", "/v1/encrypt", "OK", 5*time.Millisecond)

	if got := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("POST", "/v1/encrypt", "OK")); got != 2 {
		t.Errorf("request counter = %v, want 2", got)
	}
}
