package monitor

import (
	"context"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/fraktlabs/fencewatch/internal/logger"
)

// HostStats is a point-in-time reading of host resources.
type HostStats struct {
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryPercent float64 `json:"memoryPercent"`
	MemoryUsed    uint64  `json:"memoryUsedBytes"`
	MemoryTotal   uint64  `json:"memoryTotalBytes"`
	DiskPath      string  `json:"diskPath,omitempty"`
	DiskPercent   float64 `json:"diskPercent,omitempty"`
}

// ReadHostStats samples CPU, memory and the disk holding diskPath. Readings
// that fail are left zero and logged; an empty diskPath skips the disk.
func ReadHostStats(ctx context.Context, diskPath string) HostStats {
	log := GetLogger()
	var stats HostStats

	// 0 interval compares against the previous call instead of blocking
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		log.Debug("failed to get CPU usage", logger.Error(err))
	} else if len(pct) > 0 {
		stats.CPUPercent = pct[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		log.Debug("failed to get memory info", logger.Error(err))
	} else {
		stats.MemoryPercent = vm.UsedPercent
		stats.MemoryUsed = vm.Used
		stats.MemoryTotal = vm.Total
	}

	if diskPath != "" {
		if usage, err := disk.UsageWithContext(ctx, diskPath); err != nil {
			log.Debug("failed to get disk usage", logger.Error(err), logger.String("path", diskPath))
		} else {
			stats.DiskPath = diskPath
			stats.DiskPercent = usage.UsedPercent
		}
	}
	return stats
}
