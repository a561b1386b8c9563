package health

import (
	"testing"

	"netpool/pkg/pool"
)

type fakeProvider struct {
	stats pool.Stats
}

func (f *fakeProvider) Stats() pool.Stats {
	return f.stats
}

// TestReportIncludesPoolStats tests that pool counters flow through
func TestReportIncludesPoolStats(t *testing.T) {
	m := NewMonitor(&fakeProvider{stats: pool.Stats{Entries: 4, InUse: 7}})

	report := m.Report()
	if report.Pool.Entries != 4 || report.Pool.InUse != 7 {
		t.Errorf("pool stats = %+v, want entries=4 in_use=7", report.Pool)
	}
	if report.Status != StatusHealthy {
		t.Errorf("status = %s, want healthy with no components", report.Status)
	}
	if report.Goroutines < 1 {
		t.Error("goroutine count should be positive")
	}
}

// TestWorstComponentWins tests overall status aggregation
func TestWorstComponentWins(t *testing.T) {
	m := NewMonitor(nil)

	m.SetComponentStatus("pool", StatusHealthy, "")
	if got := m.Report().Status; got != StatusHealthy {
		t.Errorf("status = %s, want healthy", got)
	}

	m.SetComponentStatus("storage", StatusDegraded, "db unreachable")
	if got := m.Report().Status; got != StatusDegraded {
		t.Errorf("status = %s, want degraded", got)
	}

	m.SetComponentStatus("transport", StatusUnhealthy, "dial failures")
	if got := m.Report().Status; got != StatusUnhealthy {
		t.Errorf("status = %s, want unhealthy", got)
	}

	// Recovery of one component does not mask the unhealthy one
	m.SetComponentStatus("storage", StatusHealthy, "recovered")
	if got := m.Report().Status; got != StatusUnhealthy {
		t.Errorf("status = %s, want unhealthy", got)
	}
}

// TestComponentUpdateReplaces tests that statuses update in place
func TestComponentUpdateReplaces(t *testing.T) {
	m := NewMonitor(nil)
	m.SetComponentStatus("pool", StatusDegraded, "warming up")
	m.SetComponentStatus("pool", StatusHealthy, "ready")

	report := m.Report()
	if len(report.Components) != 1 {
		t.Fatalf("components = %d, want 1", len(report.Components))
	}
	if report.Components[0].Status != StatusHealthy {
		t.Errorf("component status = %s, want healthy", report.Components[0].Status)
	}
}
