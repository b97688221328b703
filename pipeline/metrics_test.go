package pipeline

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestMetricsRecordInvocationIncrementsCounterAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordInvocation("doc_processing", "extract", "success", 150*time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if !hasMetricFamily(families, "contentflow_executor_invocations_total") {
		t.Fatal("expected contentflow_executor_invocations_total to be registered")
	}
	if !hasMetricFamily(families, "contentflow_executor_duration_seconds") {
		t.Fatal("expected contentflow_executor_duration_seconds to be registered")
	}
}

func TestMetricsDisableStopsRecording(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.Disable()

	m.IncrementIterations("p1")
	m.SetMailboxDepth("p1", "exec", 3)

	families, _ := reg.Gather()
	for _, fam := range families {
		if fam.GetName() == "contentflow_run_iterations_total" {
			for _, metric := range fam.Metric {
				if metric.GetCounter().GetValue() != 0 {
					t.Fatalf("expected no iterations recorded while disabled, got %v", metric)
				}
			}
		}
	}
}

func TestMetricsNilReceiverIsNoOp(t *testing.T) {
	var m *Metrics
	m.RecordInvocation("p", "e", "success", time.Second)
	m.SetMailboxDepth("p", "e", 1)
	m.IncrementIterations("p")
}

func hasMetricFamily(families []*dto.MetricFamily, name string) bool {
	for _, fam := range families {
		if fam.GetName() == name {
			return true
		}
	}
	return false
}
