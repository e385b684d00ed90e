package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(staleEventsTotal.WithLabelValues("message", "stale_event_ignored"))
	StaleEvent("message", "stale_event_ignored")
	after := testutil.ToFloat64(staleEventsTotal.WithLabelValues("message", "stale_event_ignored"))
	if after != before+1 {
		t.Fatalf("expected counter to increase by 1, got %v -> %v", before, after)
	}

	Transition("call", "queued", "active")
	if testutil.ToFloat64(transitionsTotal.WithLabelValues("call", "queued", "active")) < 1 {
		t.Fatalf("expected transition counted")
	}

	stop := ExternalTimer("ticketing")
	stop()
	ExternalError("ticketing")
	if testutil.ToFloat64(externalErrorsTotal.WithLabelValues("ticketing")) < 1 {
		t.Fatalf("expected external error counted")
	}
}
