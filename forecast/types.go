// Package forecast computes cluster-wide GPU availability forecasts from
// live Slurm job and node metadata.
//
// The package is pure: all Slurm I/O (raw scontrol text, host expansion)
// is injected by the caller, which makes every computation replayable from
// captured text.
package forecast

import (
	"fmt"
	"time"
)

type JobState string

const (
	StateRunning     JobState = "RUNNING"
	StatePending     JobState = "PENDING"
	StateRunningLock JobState = "RUNNING_LOCK"
)

// JobRecord holds the job fields needed for usage forecasting.  Start and
// end times from the scheduler are estimates and may be unknown; the Has
// flags distinguish "unknown" from a zero time.
type JobRecord struct {
	JobId           int
	State           JobState
	RequestedGpus   int
	AllocatedGpus   int
	StartTime       time.Time
	HasStart        bool
	EndTime         time.Time
	HasEnd          bool
	TimeLimitHours  float64
	RunTimeHours    float64
	RequestedCpus   int
	RequestedMemMiB int64
	RequestedNodes  int
	NodeExpression  string
	PartitionNames  []string
}

// ProjectedGpus is the GPU count a job contributes to the forecast: the
// allocation when one exists for a running job, the request otherwise.
func (r *JobRecord) ProjectedGpus() int {
	if r.State == StateRunning && r.AllocatedGpus > 0 {
		return r.AllocatedGpus
	}
	return r.RequestedGpus
}

// JobWindow is one closed-open GPU occupancy interval [Start, End).
type JobWindow struct {
	JobId int
	State JobState
	Gpus  int
	Start time.Time
	End   time.Time
}

// NodeCapacity carries the per-node schedulable and allocated resource
// totals needed for degenerate-job detection.
type NodeCapacity struct {
	NodeName       string
	Cpu            int
	MemMiB         int64
	Gpus           int
	CpuAlloc       int
	MemAllocMiB    int64
	GpuAlloc       int
	PartitionNames []string
}

// Stats summarizes forecast coverage and exclusions for one pass.
type Stats struct {
	ActiveGpuJobs        int `json:"active_gpu_jobs"`
	RunningGpuJobs       int `json:"running_gpu_jobs"`
	PendingGpuJobs       int `json:"pending_gpu_jobs"`
	PendingWithStart     int `json:"pending_with_start"`
	PendingWithoutStart  int `json:"pending_without_start"`
	ForecastWindows      int `json:"forecast_windows"`
	DegenerateJobs       int `json:"degenerate_jobs"`
	DegenerateExtraGpus  int `json:"degenerate_extra_gpus"`
	DegenerateNodes      int `json:"degenerate_nodes"`
	DegenerateLockedGpus int `json:"degenerate_locked_gpus"`
}

// Subtitle returns the canonical one-line summary used in titles and logs.
func (s *Stats) Subtitle() string {
	return fmt.Sprintf(
		"active=%d, running=%d, pending=%d, pending_known_start=%d, "+
			"pending_unknown_start=%d, degenerate_jobs=%d, extra_gpu_reserved=%d, "+
			"degenerate_nodes=%d, node_locked_gpus=%d",
		s.ActiveGpuJobs, s.RunningGpuJobs, s.PendingGpuJobs, s.PendingWithStart,
		s.PendingWithoutStart, s.DegenerateJobs, s.DegenerateExtraGpus,
		s.DegenerateNodes, s.DegenerateLockedGpus)
}

// Point is one sampled forecast value at a relative offset from snapshot
// time.
type Point struct {
	OffsetHours   float64 `json:"offset_hours"`
	AvailableGpus int     `json:"available_gpus"`
}

// Label returns canonical tick text such as "+0.5h" or "+2h".
func (p Point) Label() string {
	return FormatRelativeHours(p.OffsetHours)
}

// Snapshot is one complete forecast result: the half-hour sampled points
// plus the full step series they were sampled from.
type Snapshot struct {
	GeneratedAt     time.Time   `json:"generated_at"`
	Capacity        int         `json:"capacity"`
	Points          []Point     `json:"points"`
	SeriesTimes     []time.Time `json:"series_times"`
	SeriesAvailable []int       `json:"series_available"`
	Stats           Stats       `json:"stats"`
}

func (s *Snapshot) MinAvailable() int {
	m := 0
	for i, p := range s.Points {
		if i == 0 || p.AvailableGpus < m {
			m = p.AvailableGpus
		}
	}
	return m
}

func (s *Snapshot) MaxAvailable() int {
	m := 0
	for _, p := range s.Points {
		if p.AvailableGpus > m {
			m = p.AvailableGpus
		}
	}
	return m
}

// CurrentAvailable is the availability at forecast start (+0h).
func (s *Snapshot) CurrentAvailable() int {
	if len(s.Points) == 0 {
		return 0
	}
	return s.Points[0].AvailableGpus
}

// AvailabilityFraction returns "available/capacity" display text.
func (s *Snapshot) AvailabilityFraction() string {
	return fmt.Sprintf("%d/%d", s.CurrentAvailable(), s.Capacity)
}

// Bundle pairs the cluster-wide snapshot with an optional snapshot of the
// large-GPU partition, for dashboards that show both.
type Bundle struct {
	AllGpus  Snapshot  `json:"all_gpus"`
	LargeGpu *Snapshot `json:"large_gpu,omitempty"`
}
