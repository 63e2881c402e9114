package supervisor

import (
	"github.com/shirou/gopsutil/v3/process"

	"github.com/charliek/sidecarhost/internal/domain"
)

// SampleResources reads the memory and CPU usage of the process with the
// given pid. It returns nil if the process cannot be inspected.
func SampleResources(pid int) *domain.Resources {
	if pid <= 0 {
		return nil
	}
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil
	}

	res := &domain.Resources{}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		res.RSSBytes = mem.RSS
	}
	if cpu, err := p.CPUPercent(); err == nil {
		res.CPUPercent = cpu
	}
	return res
}
