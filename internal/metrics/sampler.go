// Package metrics samples this process's own CPU and memory usage for the
// get_server_info RPC (§4.C function 9, §6). Implemented against
// /proc/<pid>/stat deltas rather than an external metrics library: no
// example repo in the pack imports a process-metrics library, and the
// teacher's own health reporting (sharedmem's allocation tracker) never
// reaches outside the process for these numbers either — see DESIGN.md
// for the full justification.
package metrics

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Sampler tracks enough /proc/<pid>/stat state between calls to report an
// approximate CPU percentage, plus current resident memory in MiB.
type Sampler struct {
	pid int

	mu          sync.Mutex
	lastSampled time.Time
	lastJiffies uint64
}

func NewSampler(pid int) *Sampler {
	return &Sampler{pid: pid, lastSampled: time.Now()}
}

// Sample returns (cpuPercent, memMB) since the previous call (or process
// start, for the first call). clockTicksPerSec is assumed to be the Linux
// default of 100.
func (s *Sampler) Sample() (cpuPercent, memMB float64) {
	jiffies, rssPages, err := readProcStat(s.pid)
	if err != nil {
		return 0, 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(s.lastSampled).Seconds()
	if elapsed > 0 && jiffies >= s.lastJiffies {
		const clockTicksPerSec = 100
		deltaTicks := float64(jiffies - s.lastJiffies)
		cpuPercent = (deltaTicks / clockTicksPerSec) / elapsed * 100
	}
	s.lastSampled = now
	s.lastJiffies = jiffies

	const pageSizeBytes = 4096
	memMB = float64(rssPages*pageSizeBytes) / (1024 * 1024)
	return cpuPercent, memMB
}

// readProcStat parses utime+stime (fields 14, 15) and rss (field 24) out
// of /proc/<pid>/stat. The comm field (2nd, parenthesized) may itself
// contain spaces, so splitting happens after the closing paren.
func readProcStat(pid int) (jiffies uint64, rssPages uint64, err error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return 0, 0, err
	}
	line := string(data)
	close := strings.LastIndex(line, ")")
	if close < 0 {
		return 0, 0, fmt.Errorf("unexpected /proc/%d/stat format", pid)
	}
	fields := strings.Fields(line[close+1:])
	// fields[0] is state (field 3 overall); utime/stime are fields 14/15
	// overall, i.e. fields[11]/fields[12] here; rss is field 24, fields[21].
	if len(fields) < 22 {
		return 0, 0, fmt.Errorf("too few fields in /proc/%d/stat", pid)
	}
	utime, err := strconv.ParseUint(fields[11], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	stime, err := strconv.ParseUint(fields[12], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	rss, err := strconv.ParseUint(fields[21], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return utime + stime, rss, nil
}
