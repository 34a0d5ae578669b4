package forecast

import "time"

// Policy holds the site-tunable thresholds of the degenerate-job
// corrections and the large-GPU partition heuristic.
type Policy struct {
	// MemSaturation is the fraction of configured node memory at which a
	// request counts as consuming the whole node's memory.
	MemSaturation float64
	// LargeGpuPartition names the partition that hosts large multi-GPU
	// jobs, when the cluster has one.
	LargeGpuPartition string
	// LargeGpuThreshold is the requested-GPU count above which a job with
	// no placement or partition information is inferred to target the
	// large-GPU partition.
	LargeGpuThreshold int
}

func DefaultPolicy() Policy {
	return Policy{
		MemSaturation:     0.98,
		LargeGpuPartition: "quad",
		LargeGpuThreshold: 3,
	}
}

// Scope selects what one forecast pass covers: the whole cluster when
// Partition is empty, otherwise one partition, optionally with the
// large-GPU inference heuristic enabled.
type Scope struct {
	Partition     string
	InferLargeGpu bool
}

func (s Scope) Name() string {
	if s.Partition == "" {
		return "cluster"
	}
	return s.Partition
}

// Forecaster ties a policy to a host expander for one forecast pass.
type Forecaster struct {
	Policy Policy
	Hosts  *HostExpander
}

// CollectJobWindows parses raw job text and turns every eligible job into
// occupancy windows, applying the degenerate corrections and the scope
// filter, and tallies coverage stats for the pass.
func (f *Forecaster) CollectJobWindows(
	rawJobs string,
	now time.Time,
	nodeCapacities map[string]NodeCapacity,
	scope Scope,
) ([]JobWindow, Stats) {
	records, _ := ParseJobRecords(rawJobs)
	activeCapacities := nodeCapacities
	if scope.Partition != "" {
		activeCapacities = PartitionNodeCapacities(nodeCapacities, scope.Partition)
		partitionNodeNames := make(map[string]bool, len(activeCapacities))
		for nodeName := range activeCapacities {
			partitionNodeNames[nodeName] = true
		}
		records = filterRecordsForPartition(
			records, scope.Partition, partitionNodeNames, f.Hosts, scope.InferLargeGpu, f.Policy)
	}

	var windows []JobWindow
	degenerateJobs := 0
	degenerateExtraGpus := 0
	for i := range records {
		record := &records[i]
		projectedGpus, isDegenerate, extraGpus := adjustedProjectedGpus(
			record, activeCapacities, f.Hosts, f.Policy.MemSaturation)
		if isDegenerate {
			degenerateJobs++
			degenerateExtraGpus += extraGpus
		}
		if window, ok := WindowFromRecord(record, now, projectedGpus); ok {
			windows = append(windows, window)
		}
	}
	lockWindows, degenerateNodes, degenerateLockedGpus := degenerateNodeLockWindows(
		records, activeCapacities, now, f.Hosts, f.Policy.MemSaturation)
	windows = append(windows, lockWindows...)

	pending := 0
	pendingWithStart := 0
	running := 0
	for i := range records {
		switch records[i].State {
		case StateRunning:
			running++
		case StatePending:
			pending++
			if records[i].HasStart {
				pendingWithStart++
			}
		}
	}
	stats := Stats{
		ActiveGpuJobs:        len(records),
		RunningGpuJobs:       running,
		PendingGpuJobs:       pending,
		PendingWithStart:     pendingWithStart,
		PendingWithoutStart:  pending - pendingWithStart,
		ForecastWindows:      len(windows),
		DegenerateJobs:       degenerateJobs,
		DegenerateExtraGpus:  degenerateExtraGpus,
		DegenerateNodes:      degenerateNodes,
		DegenerateLockedGpus: degenerateLockedGpus,
	}
	return windows, stats
}

// BuildSeries computes the availability step series for one scope over a
// fixed horizon.  The horizon is floored at half an hour so a degenerate
// request still yields a plottable series.
func (f *Forecaster) BuildSeries(
	now time.Time,
	horizonHours float64,
	rawJobs string,
	nodeCapacities map[string]NodeCapacity,
	scope Scope,
) (times []time.Time, available []int, capacity int, stats Stats) {
	windows, stats := f.CollectJobWindows(rawJobs, now, nodeCapacities, scope)
	if scope.Partition != "" {
		capacity = PartitionGpuCapacity(nodeCapacities, scope.Partition)
	} else {
		capacity = TotalGpuCapacity(nodeCapacities)
	}
	baseline, events := BuildEventDeltas(windows, now)
	horizon := now.Add(hoursToDuration(max(horizonHours, halfHour)))
	seriesTimes, usage := BuildStepSeries(now, baseline, GroupEventDeltas(events), horizon)
	return seriesTimes, AvailableSeries(usage, capacity), capacity, stats
}

// BuildSnapshot computes a full snapshot: the step series plus its
// half-hour sampled points.
func (f *Forecaster) BuildSnapshot(
	now time.Time,
	horizonHours float64,
	rawJobs string,
	nodeCapacities map[string]NodeCapacity,
	scope Scope,
) Snapshot {
	times, available, capacity, stats := f.BuildSeries(now, horizonHours, rawJobs, nodeCapacities, scope)
	offsets := HalfHourOffsets(horizonHours)
	points := make([]Point, len(offsets))
	for i, offset := range offsets {
		points[i] = Point{
			OffsetHours:   offset,
			AvailableGpus: StepValueAt(now.Add(hoursToDuration(offset)), times, available),
		}
	}
	return Snapshot{
		GeneratedAt:     now,
		Capacity:        capacity,
		Points:          points,
		SeriesTimes:     times,
		SeriesAvailable: available,
		Stats:           stats,
	}
}

// BuildBundle computes the cluster-wide snapshot plus, when the policy's
// large-GPU partition has any capacity, a partition snapshot with the
// inference heuristic enabled.
func (f *Forecaster) BuildBundle(
	now time.Time,
	horizonHours float64,
	rawJobs string,
	nodeCapacities map[string]NodeCapacity,
) Bundle {
	allGpus := f.BuildSnapshot(now, horizonHours, rawJobs, nodeCapacities, Scope{})
	if PartitionGpuCapacity(nodeCapacities, f.Policy.LargeGpuPartition) <= 0 {
		return Bundle{AllGpus: allGpus}
	}
	partitionSnapshot := f.BuildSnapshot(now, horizonHours, rawJobs, nodeCapacities, Scope{
		Partition:     f.Policy.LargeGpuPartition,
		InferLargeGpu: true,
	})
	return Bundle{AllGpus: allGpus, LargeGpu: &partitionSnapshot}
}
