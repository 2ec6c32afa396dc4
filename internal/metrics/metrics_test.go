package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

// counterValue sums every series of the named family whose labels include
// all of want.
func counterValue(t *testing.T, m *Metrics, name string, want map[string]string) float64 {
	t.Helper()

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	series:
		for _, metric := range f.GetMetric() {
			labels := make(map[string]string)
			for _, l := range metric.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue series
				}
			}
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func TestCounters(t *testing.T) {
	m := New(false)

	m.RepliesSent.WithLabelValues("reply").Inc()
	m.RepliesSent.WithLabelValues("push").Inc()
	m.RepliesSent.WithLabelValues("push").Inc()
	m.WebhookSignatureFailures.Inc()

	tests := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"lineledger_replies_total", map[string]string{"method": "reply"}, 1},
		{"lineledger_replies_total", map[string]string{"method": "push"}, 2},
		{"lineledger_replies_total", nil, 3},
		{"lineledger_webhook_signature_failures_total", nil, 1},
		{"lineledger_events_received_total", nil, 0},
	}
	for _, tt := range tests {
		if got := counterValue(t, m, tt.name, tt.labels); got != tt.want {
			t.Errorf("%s%v = %v, want %v", tt.name, tt.labels, got, tt.want)
		}
	}
}

func TestHandler(t *testing.T) {
	m := New(true)
	m.TransactionsRecorded.WithLabelValues("expense").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `lineledger_transactions_recorded_total{kind="expense"} 1`) {
		t.Errorf("counter missing from exposition:\n%s", body)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("runtime collector not registered")
	}
}
