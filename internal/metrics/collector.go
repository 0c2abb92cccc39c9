package metrics

import (
	"sync"
	"time"
)

// Collector ties the Prometheus instruments, the exact SessionTracker,
// and the background system/runtime samplers into one handle the
// wsfront server wires into its HTTP routes.
type Collector struct {
	Metrics  *Metrics
	Sessions *SessionTracker

	system  *SystemMetrics
	runtime *RuntimeMetricsReader

	mu             sync.RWMutex
	startTime      time.Time
	lastUpdateTime time.Time
	updateInterval time.Duration

	stop chan struct{}
}

// NewCollector wires a fresh Metrics instance to the system and runtime
// samplers. Call Start to begin the background refresh loop.
func NewCollector(m *Metrics) *Collector {
	return &Collector{
		Metrics:        m,
		Sessions:       NewSessionTracker(),
		system:         NewSystemMetrics(),
		runtime:        NewRuntimeMetricsReader(),
		startTime:      time.Now(),
		lastUpdateTime: time.Now(),
		updateInterval: 5 * time.Second,
		stop:           make(chan struct{}),
	}
}

// Start begins the periodic sampling loop. It returns immediately; the
// loop runs until Stop is called.
func (c *Collector) Start() {
	ticker := time.NewTicker(c.updateInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.refresh()
			case <-c.stop:
				return
			}
		}
	}()
}

func (c *Collector) Stop() {
	close(c.stop)
}

func (c *Collector) refresh() {
	c.system.Update()
	c.runtime.Update()

	c.Metrics.UpdateMemoryUsage(uint64(c.system.GetMemoryMB() * 1024 * 1024))
	c.Metrics.UpdateCPUUsage(c.system.GetCPUPercent())
	c.Metrics.UpdateGoroutinesCount(c.system.GetSystemInfo()["runtime"].(map[string]interface{})["goroutines"].(int))

	c.mu.Lock()
	c.lastUpdateTime = time.Now()
	c.mu.Unlock()
}

// Snapshot returns the structure served from /metrics/system: system
// resource usage, Go runtime internals, and the exact session registry.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	lastUpdate := c.lastUpdateTime
	c.mu.RUnlock()

	return map[string]interface{}{
		"uptime_seconds":   time.Since(c.startTime).Seconds(),
		"last_update":      lastUpdate.Unix(),
		"sessions":         c.Sessions.Summary(),
		"sessions_detail":  c.Sessions.Snapshot(),
		"system": map[string]interface{}{
			"memory": c.system.GetMemoryStats(),
			"cpu": map[string]interface{}{
				"percent": c.system.GetCPUPercent(),
				"cores":   c.system.GetSystemInfo()["cpu"].(map[string]interface{})["cores"],
			},
		},
		"runtime": c.runtime.GetAllStats(),
	}
}
