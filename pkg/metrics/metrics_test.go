package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestIntakeMetricsIncrement(t *testing.T) {
	before := testutil.ToFloat64(SubmissionsAccepted.WithLabelValues("single"))
	SubmissionsAccepted.WithLabelValues("single").Inc()
	if v := testutil.ToFloat64(SubmissionsAccepted.WithLabelValues("single")); v != before+1 {
		t.Fatalf("expected SubmissionsAccepted to grow by 1, got %v -> %v", before, v)
	}

	SubmissionsRejected.WithLabelValues("validation").Add(2)
	if v := testutil.ToFloat64(SubmissionsRejected.WithLabelValues("validation")); v < 2 {
		t.Fatalf("expected SubmissionsRejected >= 2, got %v", v)
	}
}

func TestMetricsHandlerExposesDeliveryCounters(t *testing.T) {
	JobsEscalated.Inc()
	FallbackWrites.Inc()

	srv := httptest.NewServer(MetricsHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)

	for _, name := range []string{"formrelay_jobs_escalated_total", "formrelay_fallback_writes_total"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("expected %s in metrics output", name)
		}
	}
}
