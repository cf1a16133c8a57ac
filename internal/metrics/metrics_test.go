package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	Init(reg)
	Init(reg) // second call must not panic on duplicate registration

	ObserveQuery("http", "is_open", ResultOpen)
	ObserveQuery("http", "is_open", ResultOpen)
	ObserveQuery("grpc", "nearest_open", ResultExhausted)

	if got := testutil.ToFloat64(queriesTotal.WithLabelValues("http", "is_open", ResultOpen)); got != 2 {
		t.Errorf("http is_open open = %v, want 2", got)
	}
	if got := testutil.ToFloat64(queriesTotal.WithLabelValues("grpc", "nearest_open", ResultExhausted)); got != 1 {
		t.Errorf("grpc nearest_open exhausted = %v, want 1", got)
	}

	SetExceptions("tw", 12, 1, 2, 0)
	if got := testutil.ToFloat64(exceptions.WithLabelValues("tw", "closed")); got != 12 {
		t.Errorf("closed gauge = %v, want 12", got)
	}

	ObserveLoad("csv", nil)
	ObserveLoad("csv", errors.New("boom"))
	if got := testutil.ToFloat64(loadsTotal.WithLabelValues("csv", "error")); got != 1 {
		t.Errorf("csv load errors = %v, want 1", got)
	}

	ObserveSearch("forward", 3)
	if n := testutil.CollectAndCount(searchSteps); n != 1 {
		t.Errorf("search histogram series = %d, want 1", n)
	}
}
