package topology

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"k8s.io/utils/cpuset"
)

// LscpuProvider enumerates logical processors by parsing lscpu output,
// supplemented with the sysfs hybrid-core hints and /proc/cpuinfo package
// identity. HOST_ROOT redirects the sysfs/procfs lookups for tests.
type LscpuProvider struct{}

func (p LscpuProvider) Describe() (Platform, []Descriptor, error) {
	out, err := exec.Command("lscpu", "-p=socket,core,cpu,cache", "--online").Output()
	if err != nil {
		return Platform{}, nil, fmt.Errorf("lscpu failed: %w", err)
	}
	descs, err := ParseLscpuOutput(out)
	if err != nil {
		return Platform{}, nil, err
	}
	applyHybridHints(descs)
	platform := readPlatform()
	return platform, descs, nil
}

// ParseLscpuOutput parses `lscpu -p=socket,core,cpu,cache` lines into raw
// descriptors. The cache column is colon-separated per level; the last field
// is the last-level cache identifier.
func ParseLscpuOutput(output []byte) ([]Descriptor, error) {
	var descs []Descriptor
	for _, line := range strings.Split(string(output), "\n") {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 4 {
			continue
		}
		socketID, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("failed to parse socket ID: %v", err)
		}
		coreID, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("failed to parse core ID: %v", err)
		}
		cpuID, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("failed to parse cpu ID: %v", err)
		}
		descs = append(descs, Descriptor{
			CPUID:     cpuID,
			SocketID:  socketID,
			CoreID:    coreID,
			L3CacheID: parseLastLevelCache(fields[3]),
			ClusterID: -1,
		})
	}
	return descs, nil
}

func parseLastLevelCache(field string) int {
	levels := strings.Split(field, ":")
	id, err := strconv.Atoi(levels[len(levels)-1])
	if err != nil {
		return -1
	}
	return id
}

// applyHybridHints reads the Intel hybrid core lists exposed under
// /sys/devices/cpu_atom and /sys/devices/cpu_core. Both files absent means a
// homogeneous package and the hints stay HintNone.
func applyHybridHints(descs []Descriptor) {
	atom, okAtom := readCPUList(hostSys("devices/cpu_atom/cpus"))
	perf, okPerf := readCPUList(hostSys("devices/cpu_core/cpus"))
	if !okAtom && !okPerf {
		return
	}
	for i := range descs {
		switch {
		case okAtom && atom.Contains(descs[i].CPUID):
			descs[i].Hint = HintEfficiency
		case okPerf && perf.Contains(descs[i].CPUID):
			descs[i].Hint = HintPerformance
		case okAtom:
			// cpu_core list missing; anything outside the atom list is a
			// performance core.
			descs[i].Hint = HintPerformance
		}
	}
}

func readCPUList(path string) (cpuset.CPUSet, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cpuset.New(), false
	}
	set, err := cpuset.Parse(strings.TrimSpace(string(data)))
	if err != nil {
		return cpuset.New(), false
	}
	return set, true
}

// readPlatform extracts vendor, brand and family/model from /proc/cpuinfo.
// Missing fields are left at their zero values; classification downgrades
// gracefully without them.
func readPlatform() Platform {
	data, err := os.ReadFile(hostProc("cpuinfo"))
	if err != nil {
		return Platform{}
	}
	return ParseCpuinfo(string(data))
}

// ParseCpuinfo reads the first processor block of /proc/cpuinfo content.
func ParseCpuinfo(content string) Platform {
	var platform Platform
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			break // first block only
		}
		fields := strings.SplitN(line, ":", 2)
		if len(fields) != 2 {
			continue
		}
		key := strings.TrimSpace(fields[0])
		value := strings.TrimSpace(fields[1])
		switch key {
		case "vendor_id":
			platform.VendorID = value
		case "model name":
			platform.Brand = value
		case "cpu family":
			platform.Family, _ = strconv.Atoi(value)
		case "model":
			platform.Model, _ = strconv.Atoi(value)
		}
	}
	return platform
}

func hostRoot() string {
	if root := os.Getenv("HOST_ROOT"); root != "" {
		return root
	}
	return "/"
}

func hostSys(rel string) string {
	return filepath.Join(hostRoot(), "sys", rel)
}

func hostProc(rel string) string {
	return filepath.Join(hostRoot(), "proc", rel)
}
