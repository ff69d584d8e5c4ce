package api

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// ServerMetrics содержит метрики процесса сервера
type ServerMetrics struct {
	StartTime time.Time
	proc      *process.Process
}

// ProcessStats срез метрик процесса для /api/session
type ProcessStats struct {
	Uptime     string  `json:"uptime"`
	MemoryMB   float64 `json:"memory_mb"`
	RSSMB      float64 `json:"rss_mb,omitempty"`
	CPUPercent float64 `json:"cpu_percent"`
	Goroutines int     `json:"goroutines"`
	NumGC      uint32  `json:"num_gc"`
}

// NewServerMetrics создает новый экземпляр метрик
func NewServerMetrics() *ServerMetrics {
	sm := &ServerMetrics{StartTime: time.Now()}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		sm.proc = p
	}
	return sm
}

// GetUptime возвращает время работы сервера
func (sm *ServerMetrics) GetUptime() string {
	uptime := time.Since(sm.StartTime)

	days := int(uptime.Hours()) / 24
	hours := int(uptime.Hours()) % 24
	minutes := int(uptime.Minutes()) % 60
	seconds := int(uptime.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dд %dч %dм %dс", days, hours, minutes, seconds)
	} else if hours > 0 {
		return fmt.Sprintf("%dч %dм %dс", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dм %dс", minutes, seconds)
	}
	return fmt.Sprintf("%dс", seconds)
}

// Snapshot собирает метрики. Ошибки gopsutil не фатальны: поле остаётся нулевым.
func (sm *ServerMetrics) Snapshot() ProcessStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	st := ProcessStats{
		Uptime:     sm.GetUptime(),
		MemoryMB:   float64(m.Alloc) / 1024 / 1024,
		Goroutines: runtime.NumGoroutine(),
		NumGC:      m.NumGC,
	}
	if sm.proc == nil {
		return st
	}
	if cpu, err := sm.proc.CPUPercent(); err == nil {
		st.CPUPercent = cpu
	}
	if mem, err := sm.proc.MemoryInfo(); err == nil && mem != nil {
		st.RSSMB = float64(mem.RSS) / 1024 / 1024
	}
	return st
}
