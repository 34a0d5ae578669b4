package forecast

import (
	"fmt"
	"strconv"
	"strings"

	"slurmgpu/common"
	"slurmgpu/slurm"
)

// inferNodeExpression picks the node expression by state: the actual
// allocation first for running jobs, the scheduler's placement estimate
// first for pending jobs.
func inferNodeExpression(state JobState, fields map[string]string) string {
	keys := []string{"NodeList", "SchedNodeList"}
	if state != StateRunning {
		keys = []string{"SchedNodeList", "NodeList"}
	}
	for _, key := range keys {
		if value := fields[key]; !slurm.IsNoneValue(value) {
			return value
		}
	}
	return ""
}

// inferRequestedNodes reads the requested node count from ReqTRES, falling
// back to the first digit run in NumNodes (which Slurm may print as a
// range such as "1-1").
func inferRequestedNodes(fields map[string]string) int {
	if n := slurm.ParseTresInt(fields["ReqTRES"], "node"); n > 0 {
		return n
	}
	value := fields["NumNodes"]
	if value == "" {
		value = "1"
	}
	for i := 0; i < len(value); i++ {
		if value[i] >= '0' && value[i] <= '9' {
			if n, ok := slurm.ParseLeadingInt(value[i:]); ok {
				return n
			}
			break
		}
	}
	return 1
}

// parseJobRecord builds a JobRecord from one line's fields.  Inactive jobs
// and jobs without a GPU request yield (nil, nil); a malformed field in an
// otherwise eligible job yields an error so the caller can drop the line.
func parseJobRecord(fields map[string]string) (*JobRecord, error) {
	state := JobState(fields["JobState"])
	if state != StateRunning && state != StatePending {
		return nil, nil
	}
	reqTres := fields["ReqTRES"]
	requestedGpus := slurm.ParseGpuCount(reqTres)
	if requestedGpus <= 0 {
		return nil, nil
	}
	jobId, err := strconv.Atoi(fields["JobId"])
	if err != nil {
		return nil, fmt.Errorf("bad JobId %q", fields["JobId"])
	}
	startTime, hasStart, err := slurm.ParseDateTime(fields["StartTime"])
	if err != nil {
		return nil, err
	}
	endTime, hasEnd, err := slurm.ParseDateTime(fields["EndTime"])
	if err != nil {
		return nil, err
	}
	timeLimit := fields["TimeLimit"]
	if timeLimit == "" {
		timeLimit = "00:00:00"
	}
	timeLimitHours, err := slurm.ParseDurationHours(timeLimit)
	if err != nil {
		return nil, err
	}
	runTime := fields["RunTime"]
	if runTime == "" {
		runTime = "00:00:00"
	}
	runTimeHours, err := slurm.ParseDurationHours(runTime)
	if err != nil {
		return nil, err
	}
	requestedMemMiB, err := slurm.ParseTresMemMiB(reqTres)
	if err != nil {
		return nil, err
	}
	return &JobRecord{
		JobId:           jobId,
		State:           state,
		RequestedGpus:   requestedGpus,
		AllocatedGpus:   slurm.ParseGpuCount(fields["AllocTRES"]),
		StartTime:       startTime,
		HasStart:        hasStart,
		EndTime:         endTime,
		HasEnd:          hasEnd,
		TimeLimitHours:  timeLimitHours,
		RunTimeHours:    runTimeHours,
		RequestedCpus:   slurm.ParseTresInt(reqTres, "cpu"),
		RequestedMemMiB: requestedMemMiB,
		RequestedNodes:  inferRequestedNodes(fields),
		NodeExpression:  inferNodeExpression(state, fields),
		PartitionNames:  slurm.ParsePartitionNames(fields["Partition"]),
	}, nil
}

// ParseJobRecords parses the active GPU jobs out of `scontrol show jobs -o`
// text.  Lines that fail to parse are logged and counted but do not abort
// the pass.
func ParseJobRecords(rawJobs string) (records []JobRecord, dropped int) {
	for _, line := range strings.Split(rawJobs, "\n") {
		record, err := parseJobRecord(slurm.ParseFields(line))
		if err != nil {
			common.Log.Warningf("Dropping job line: %v", err)
			dropped++
			continue
		}
		if record != nil {
			records = append(records, *record)
		}
	}
	return records, dropped
}

// ParseNodeCapacities parses `scontrol show nodes -o` text into a per-node
// capacity map.  Only GPU nodes with a complete CPU and memory
// configuration enter the table; allocated values prefer the dedicated
// CPUAlloc/AllocMem fields with AllocTRES as fallback.
func ParseNodeCapacities(rawNodes string) (map[string]NodeCapacity, int) {
	capacities := make(map[string]NodeCapacity)
	dropped := 0
	for _, line := range strings.Split(rawNodes, "\n") {
		fields := slurm.ParseFields(line)
		cfgTres := fields["CfgTRES"]
		gpuCount := slurm.ParseGpuCount(cfgTres)
		if gpuCount <= 0 {
			continue
		}
		nodeName := fields["NodeName"]
		cpuCount := slurm.ParseTresInt(cfgTres, "cpu")
		memMiB, err := slurm.ParseTresMemMiB(cfgTres)
		if err != nil {
			common.Log.Warningf("Dropping node line for %s: %v", nodeName, err)
			dropped++
			continue
		}
		allocTres := fields["AllocTRES"]
		cpuAlloc := parseIntField(fields, "CPUAlloc")
		if cpuAlloc <= 0 {
			cpuAlloc = slurm.ParseTresInt(allocTres, "cpu")
		}
		memAllocMiB := int64(parseIntField(fields, "AllocMem"))
		if memAllocMiB <= 0 {
			memAllocMiB, err = slurm.ParseTresMemMiB(allocTres)
			if err != nil {
				common.Log.Warningf("Dropping node line for %s: %v", nodeName, err)
				dropped++
				continue
			}
		}
		if nodeName == "" || cpuCount <= 0 || memMiB <= 0 {
			continue
		}
		capacities[nodeName] = NodeCapacity{
			NodeName:       nodeName,
			Cpu:            cpuCount,
			MemMiB:         memMiB,
			Gpus:           gpuCount,
			CpuAlloc:       cpuAlloc,
			MemAllocMiB:    memAllocMiB,
			GpuAlloc:       slurm.ParseGpuCount(allocTres),
			PartitionNames: slurm.ParsePartitionNames(fields["Partitions"]),
		}
	}
	return capacities, dropped
}

func parseIntField(fields map[string]string, key string) int {
	if n, err := strconv.Atoi(fields[key]); err == nil {
		return n
	}
	return 0
}
