// Package health tracks component statuses and samples system load for
// the stats API. It reads pool counters but never feeds back into pool
// behavior.
package health

import (
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"netpool/pkg/pool"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// ComponentHealth represents the health status of a single component
type ComponentHealth struct {
	Name        string      `json:"name"`
	Status      Status      `json:"status"`
	Description string      `json:"description,omitempty"`
	LastChecked time.Time   `json:"last_checked"`
	Details     interface{} `json:"details,omitempty"`
}

// Report represents overall service health
type Report struct {
	Status        Status            `json:"status"`
	Uptime        int64             `json:"uptime_seconds"`
	Timestamp     time.Time         `json:"timestamp"`
	Pool          pool.Stats        `json:"pool"`
	Goroutines    int               `json:"goroutines"`
	HeapMB        uint64            `json:"heap_mb"`
	CPUPercent    float64           `json:"cpu_percent"`
	MemoryPercent float64           `json:"memory_percent"`
	Components    []ComponentHealth `json:"components"`
}

// StatsProvider supplies pool counters to the monitor
type StatsProvider interface {
	Stats() pool.Stats
}

// Monitor tracks component statuses and builds health reports
type Monitor struct {
	startTime  time.Time
	provider   StatsProvider
	mu         sync.RWMutex
	components map[string]*ComponentHealth
}

// NewMonitor creates a new health monitor reading pool counters from
// the given provider
func NewMonitor(provider StatsProvider) *Monitor {
	return &Monitor{
		startTime:  time.Now(),
		provider:   provider,
		components: make(map[string]*ComponentHealth),
	}
}

// SetComponentStatus updates the status of a component
func (m *Monitor) SetComponentStatus(name string, status Status, description string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[name] = &ComponentHealth{
		Name:        name,
		Status:      status,
		Description: description,
		LastChecked: time.Now(),
	}
}

// Report returns the current service health
func (m *Monitor) Report() *Report {
	m.mu.RLock()
	components := make([]ComponentHealth, 0, len(m.components))
	overallStatus := StatusHealthy
	for _, comp := range m.components {
		components = append(components, *comp)
		if comp.Status == StatusUnhealthy {
			overallStatus = StatusUnhealthy
		} else if comp.Status == StatusDegraded && overallStatus == StatusHealthy {
			overallStatus = StatusDegraded
		}
	}
	m.mu.RUnlock()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	report := &Report{
		Status:     overallStatus,
		Uptime:     int64(time.Since(m.startTime).Seconds()),
		Timestamp:  time.Now(),
		Goroutines: runtime.NumGoroutine(),
		HeapMB:     memStats.Alloc / 1024 / 1024,
		Components: components,
	}

	if m.provider != nil {
		report.Pool = m.provider.Stats()
	}

	// Best effort; a sampling failure leaves the gauges at zero
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		report.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		report.MemoryPercent = vm.UsedPercent
	}

	return report
}
