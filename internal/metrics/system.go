package metrics

import (
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
)

// SystemMetrics samples process-wide memory and CPU usage for the
// /metrics/system endpoint and the Prometheus gauges.
type SystemMetrics struct {
	mu            sync.RWMutex
	cpuPercent    float64
	memoryStats   runtime.MemStats
	lastMemUpdate time.Time
}

func NewSystemMetrics() *SystemMetrics {
	sm := &SystemMetrics{lastMemUpdate: time.Now()}
	sm.updateCPUMetrics()
	return sm
}

// Update refreshes both memory and CPU snapshots. CPU sampling blocks for
// one second (gopsutil's measurement window), so call this from a
// background ticker, never from a request path.
func (sm *SystemMetrics) Update() {
	sm.updateMemoryMetrics()
	sm.updateCPUMetrics()
}

func (sm *SystemMetrics) updateMemoryMetrics() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	runtime.ReadMemStats(&sm.memoryStats)
	sm.lastMemUpdate = time.Now()
}

func (sm *SystemMetrics) updateCPUMetrics() {
	percents, err := cpu.Percent(time.Second, false)
	if err != nil || len(percents) == 0 {
		return
	}
	current := percents[0]

	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.cpuPercent == 0 {
		sm.cpuPercent = current
	} else {
		const alpha = 0.3
		sm.cpuPercent = alpha*current + (1-alpha)*sm.cpuPercent
	}
}

func (sm *SystemMetrics) GetMemoryMB() float64 {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return float64(sm.memoryStats.HeapAlloc) / 1024 / 1024
}

func (sm *SystemMetrics) GetMemoryStats() map[string]interface{} {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return map[string]interface{}{
		"heap_alloc_mb":    float64(sm.memoryStats.HeapAlloc) / 1024 / 1024,
		"heap_sys_mb":      float64(sm.memoryStats.HeapSys) / 1024 / 1024,
		"heap_idle_mb":     float64(sm.memoryStats.HeapIdle) / 1024 / 1024,
		"heap_inuse_mb":    float64(sm.memoryStats.HeapInuse) / 1024 / 1024,
		"heap_released_mb": float64(sm.memoryStats.HeapReleased) / 1024 / 1024,
		"stack_inuse_mb":   float64(sm.memoryStats.StackInuse) / 1024 / 1024,
		"sys_total_mb":     float64(sm.memoryStats.Sys) / 1024 / 1024,
		"gc_count":         sm.memoryStats.NumGC,
		"gc_cpu_percent":   sm.memoryStats.GCCPUFraction * 100,
		"goroutines":       runtime.NumGoroutine(),
	}
}

func (sm *SystemMetrics) GetCPUPercent() float64 {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.cpuPercent
}

func (sm *SystemMetrics) GetSystemInfo() map[string]interface{} {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return map[string]interface{}{
		"cpu": map[string]interface{}{
			"cores":   runtime.NumCPU(),
			"percent": sm.cpuPercent,
		},
		"memory": map[string]interface{}{
			"heap_alloc_mb": float64(sm.memoryStats.HeapAlloc) / 1024 / 1024,
			"sys_total_mb":  float64(sm.memoryStats.Sys) / 1024 / 1024,
			"gc_count":      sm.memoryStats.NumGC,
		},
		"runtime": map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"go_version": runtime.Version(),
		},
	}
}
