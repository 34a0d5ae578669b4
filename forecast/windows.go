package forecast

import (
	"sort"
	"time"
)

func hoursToDuration(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}

// WindowFromRecord converts one record into a future-facing occupancy
// window.  Running jobs occupy from now until their projected end; pending
// jobs occupy from their estimated start, when the scheduler has one.  The
// second return is false when the record produces no window.
func WindowFromRecord(record *JobRecord, now time.Time, projectedGpus int) (JobWindow, bool) {
	if projectedGpus <= 0 {
		return JobWindow{}, false
	}
	var start, end time.Time
	if record.State == StateRunning {
		start = now
		if record.HasEnd {
			end = record.EndTime
		} else {
			end = now.Add(hoursToDuration(max(record.TimeLimitHours-record.RunTimeHours, 0)))
		}
	} else {
		if !record.HasStart {
			return JobWindow{}, false
		}
		start = record.StartTime
		if start.Before(now) {
			start = now
		}
		if record.HasEnd {
			end = record.EndTime
		} else {
			end = start.Add(hoursToDuration(record.TimeLimitHours))
		}
	}
	if !end.After(start) {
		return JobWindow{}, false
	}
	return JobWindow{
		JobId: record.JobId,
		State: record.State,
		Gpus:  projectedGpus,
		Start: start,
		End:   end,
	}, true
}

// runningEndTime projects when a running job will release its resources.
func runningEndTime(record *JobRecord, now time.Time) time.Time {
	if record.HasEnd {
		return record.EndTime
	}
	return now.Add(hoursToDuration(max(record.TimeLimitHours-record.RunTimeHours, 0)))
}

// isFullNodeByResources reports whether the job's CPU or memory request
// effectively consumes whole nodes.  Memory counts as saturating slightly
// below the configured total because Slurm reserves a sliver for the OS.
func isFullNodeByResources(record *JobRecord, capacities []NodeCapacity, memSaturation float64) bool {
	if len(capacities) == 0 {
		return false
	}
	nodeCount := record.RequestedNodes
	if nodeCount <= 0 {
		nodeCount = len(capacities)
	}
	cpuPerNode := 0.0
	if record.RequestedCpus > 0 {
		cpuPerNode = float64(record.RequestedCpus) / float64(nodeCount)
	}
	memPerNode := 0.0
	if record.RequestedMemMiB > 0 {
		memPerNode = float64(record.RequestedMemMiB) / float64(nodeCount)
	}
	for _, capacity := range capacities {
		if cpuPerNode >= float64(capacity.Cpu) {
			return true
		}
		if memPerNode >= float64(capacity.MemMiB)*memSaturation {
			return true
		}
	}
	return false
}

// adjustedProjectedGpus corrects the projected GPU count for degenerate
// whole-node jobs: a job that saturates a node's CPUs or memory blocks the
// node's remaining GPUs even when it did not request them, so its
// occupancy is inflated to the full node GPU count.  Returns the possibly
// inflated count, whether an adjustment happened, and the extra GPUs
// reserved.
func adjustedProjectedGpus(
	record *JobRecord,
	nodeCapacities map[string]NodeCapacity,
	hosts *HostExpander,
	memSaturation float64,
) (int, bool, int) {
	baseGpus := record.ProjectedGpus()
	var capacities []NodeCapacity
	for _, host := range hosts.Expand(record.NodeExpression) {
		if capacity, found := nodeCapacities[host]; found {
			capacities = append(capacities, capacity)
		}
	}
	if len(capacities) == 0 {
		return baseGpus, false, 0
	}
	totalNodeGpus := 0
	for _, capacity := range capacities {
		totalNodeGpus += capacity.Gpus
	}
	if baseGpus >= totalNodeGpus {
		return baseGpus, false, 0
	}
	if !isFullNodeByResources(record, capacities, memSaturation) {
		return baseGpus, false, 0
	}
	return totalNodeGpus, true, totalNodeGpus - baseGpus
}

type jobEnd struct {
	jobId int
	end   time.Time
}

// runningJobsByNode maps each known node to the running jobs placed on it
// and their projected end times.
func runningJobsByNode(
	records []JobRecord,
	nodeCapacities map[string]NodeCapacity,
	now time.Time,
	hosts *HostExpander,
) map[string][]jobEnd {
	mapping := make(map[string][]jobEnd)
	for i := range records {
		record := &records[i]
		if record.State != StateRunning {
			continue
		}
		endTime := runningEndTime(record, now)
		if !endTime.After(now) {
			continue
		}
		for _, host := range hosts.Expand(record.NodeExpression) {
			if _, found := nodeCapacities[host]; found {
				mapping[host] = append(mapping[host], jobEnd{record.JobId, endTime})
			}
		}
	}
	return mapping
}

// degenerateNodeLockWindows builds synthetic occupancy windows for nodes
// whose free GPUs are unschedulable because co-resident jobs have
// exhausted the node's CPUs or memory.  The lock holds until the earliest
// co-resident job is projected to end.  A single job owning the node is
// not a lock; its own degenerate adjustment covers that case.  Lock
// windows carry negative synthetic job ids.
func degenerateNodeLockWindows(
	records []JobRecord,
	nodeCapacities map[string]NodeCapacity,
	now time.Time,
	hosts *HostExpander,
	memSaturation float64,
) (lockWindows []JobWindow, degenerateNodes int, lockedGpusTotal int) {
	mapping := runningJobsByNode(records, nodeCapacities, now, hosts)
	nodeNames := make([]string, 0, len(mapping))
	for nodeName := range mapping {
		nodeNames = append(nodeNames, nodeName)
	}
	sort.Strings(nodeNames)
	for _, nodeName := range nodeNames {
		jobs := mapping[nodeName]
		capacity := nodeCapacities[nodeName]
		freeGpus := capacity.Gpus - capacity.GpuAlloc
		cpuFull := capacity.CpuAlloc >= capacity.Cpu
		memFull := capacity.MemAllocMiB >= int64(float64(capacity.MemMiB)*memSaturation)
		if freeGpus <= 0 || !(cpuFull || memFull) {
			continue
		}
		distinct := make(map[int]bool)
		for _, job := range jobs {
			distinct[job.jobId] = true
		}
		if len(distinct) < 2 {
			continue
		}
		unlockTime := jobs[0].end
		for _, job := range jobs[1:] {
			if job.end.Before(unlockTime) {
				unlockTime = job.end
			}
		}
		if !unlockTime.After(now) {
			continue
		}
		lockWindows = append(lockWindows, JobWindow{
			JobId: -(degenerateNodes + 1),
			State: StateRunningLock,
			Gpus:  freeGpus,
			Start: now,
			End:   unlockTime,
		})
		degenerateNodes++
		lockedGpusTotal += freeGpus
	}
	return lockWindows, degenerateNodes, lockedGpusTotal
}
