package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	walletauth "github.com/MrEthical07/walletauth"
)

type fakeSource struct {
	snapshot walletauth.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() walletauth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                        { return f.dropped }

func gather(t *testing.T, c *Collector) map[string]*dto.MetricFamily {
	t.Helper()
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("register: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		out[mf.GetName()] = mf
	}
	return out
}

func TestCollectorDisabledMetricsOnlyExposeDrops(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: walletauth.MetricsSnapshot{
			Counters:   map[walletauth.MetricID]uint64{},
			Histograms: map[walletauth.MetricID][]uint64{},
		},
	})

	families := gather(t, c)
	if len(families) != 1 || families["walletauth_audit_dropped_total"] == nil {
		t.Fatalf("expected only the audit drop counter, got %d families", len(families))
	}
}

func TestCollectorCountersAndHistogram(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: walletauth.MetricsSnapshot{
			Counters: map[walletauth.MetricID]uint64{
				walletauth.MetricSIWFSuccess: 7,
				walletauth.MetricStoreError:  1,
			},
			Histograms: map[walletauth.MetricID][]uint64{
				walletauth.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	families := gather(t, c)
	if got := families["walletauth_siwf_success_total"].GetMetric()[0].GetCounter().GetValue(); got != 7 {
		t.Fatalf("siwf success = %v", got)
	}
	if got := families["walletauth_audit_dropped_total"].GetMetric()[0].GetCounter().GetValue(); got != 2 {
		t.Fatalf("audit dropped = %v", got)
	}

	h := families["walletauth_session_lookup_latency_seconds"].GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 36 {
		t.Fatalf("sample count = %d", h.GetSampleCount())
	}
	buckets := h.GetBucket()
	if len(buckets) != 7 || buckets[0].GetUpperBound() != 0.005 || buckets[0].GetCumulativeCount() != 1 {
		t.Fatalf("unexpected buckets %v", buckets)
	}
	if buckets[6].GetCumulativeCount() != 28 {
		t.Fatalf("0.5s bucket = %d", buckets[6].GetCumulativeCount())
	}
}

func TestHandlerServesTextFormat(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: walletauth.MetricsSnapshot{
			Counters:   map[walletauth.MetricID]uint64{walletauth.MetricSessionCreated: 1},
			Histograms: map[walletauth.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected text exposition, got %q", got)
	}
	if !strings.Contains(rec.Body.String(), "walletauth_session_created_total 1") {
		t.Fatalf("counter missing from output:\n%s", rec.Body.String())
	}
}

func BenchmarkCollect(b *testing.B) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: walletauth.MetricsSnapshot{
			Counters: map[walletauth.MetricID]uint64{
				walletauth.MetricSIWFSuccess:        1000,
				walletauth.MetricSIWFFailure:        40,
				walletauth.MetricSessionCreated:     1000,
				walletauth.MetricSessionValidateHit: 90000,
			},
			Histograms: map[walletauth.MetricID][]uint64{
				walletauth.MetricValidateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = reg.Gather()
	}
}
