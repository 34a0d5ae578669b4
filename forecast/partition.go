package forecast

import "strings"

// PartitionNodeCapacities selects the nodes hosting one partition.
func PartitionNodeCapacities(nodeCapacities map[string]NodeCapacity, partitionName string) map[string]NodeCapacity {
	target := strings.ToLower(partitionName)
	subset := make(map[string]NodeCapacity)
	for nodeName, capacity := range nodeCapacities {
		for _, name := range capacity.PartitionNames {
			if name == target {
				subset[nodeName] = capacity
				break
			}
		}
	}
	return subset
}

// TotalGpuCapacity sums schedulable GPUs over a node-capacity map.
func TotalGpuCapacity(nodeCapacities map[string]NodeCapacity) int {
	total := 0
	for _, capacity := range nodeCapacities {
		total += capacity.Gpus
	}
	return total
}

// PartitionGpuCapacity sums schedulable GPUs hosted by one partition.
func PartitionGpuCapacity(nodeCapacities map[string]NodeCapacity, partitionName string) int {
	return TotalGpuCapacity(PartitionNodeCapacities(nodeCapacities, partitionName))
}

// recordTargetsPartition decides whether a job contributes to one
// partition's forecast.  Actual placement is authoritative when known: a
// running job whose hosts all fall outside the partition is excluded even
// if its partition field matches.  Jobs without placement or partition
// information can still be pulled in by the large-GPU inference rule.
func recordTargetsPartition(
	record *JobRecord,
	partitionName string,
	partitionNodeNames map[string]bool,
	hosts *HostExpander,
	inferLargeGpu bool,
	policy Policy,
) bool {
	target := strings.ToLower(partitionName)
	expanded := hosts.Expand(record.NodeExpression)
	if len(expanded) > 0 {
		for _, host := range expanded {
			if partitionNodeNames[host] {
				return true
			}
		}
		if record.State == StateRunning {
			return false
		}
	}
	for _, name := range record.PartitionNames {
		if name == target {
			return true
		}
	}
	if len(record.PartitionNames) > 0 {
		return false
	}
	if inferLargeGpu && target == policy.LargeGpuPartition && record.RequestedGpus > policy.LargeGpuThreshold {
		return true
	}
	return false
}

// filterRecordsForPartition keeps the records expected to occupy one
// partition.
func filterRecordsForPartition(
	records []JobRecord,
	partitionName string,
	partitionNodeNames map[string]bool,
	hosts *HostExpander,
	inferLargeGpu bool,
	policy Policy,
) []JobRecord {
	var kept []JobRecord
	for i := range records {
		if recordTargetsPartition(&records[i], partitionName, partitionNodeNames, hosts, inferLargeGpu, policy) {
			kept = append(kept, records[i])
		}
	}
	return kept
}
