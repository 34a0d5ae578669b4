// Package search generates probe ladders for finding the largest
// schedulable allocation: a time-halving phase at maximum GPUs followed by
// a GPU-halving phase at the shortest probed time.  The package builds
// probe definitions and their srun/sbatch argument vectors; it never
// submits anything itself.
package search

import (
	"errors"
	"fmt"
	"strings"
)

// Bounds limits probe generation for the two-phase halving search.
type Bounds struct {
	// MaxTimeMinutes is the largest time probe.
	MaxTimeMinutes int
	// MinTimeMinutes is the smallest allowed time probe, at least 30.
	MinTimeMinutes int
	// MaxGpus is the largest GPU probe.
	MaxGpus int
	// MinGpus is the smallest allowed GPU probe, at least 1.
	MinGpus int
	// SwitchMinutes is the time threshold below which the search stops
	// halving time and starts halving GPUs.
	SwitchMinutes int
}

func (b *Bounds) Validate() error {
	var errs []error
	if b.MinTimeMinutes < 30 {
		errs = append(errs, errors.New("minimum time probe must be at least 30 minutes"))
	}
	if b.MaxTimeMinutes < b.MinTimeMinutes {
		errs = append(errs, errors.New("maximum time probe below the minimum"))
	}
	if b.MinGpus < 1 {
		errs = append(errs, errors.New("minimum GPU probe must be at least 1"))
	}
	if b.MaxGpus < b.MinGpus {
		errs = append(errs, errors.New("maximum GPU probe below the minimum"))
	}
	if b.SwitchMinutes <= 0 {
		errs = append(errs, errors.New("switch threshold must be positive"))
	}
	return errors.Join(errs...)
}

// Probe is one allocation configuration in the search ladder.  Phase is
// "time" or "gpu"; Index is the 1-based submission position.
type Probe struct {
	TimeMinutes int
	Gpus        int
	Cpus        int
	Mem         string
	Phase       string
	Index       int
}

// HumanTimeLabel returns compact time text such as "1h30m".
func (p *Probe) HumanTimeLabel() string {
	return FormatCompactMinutes(p.TimeMinutes)
}

// JobLabel builds the canonical Slurm job name for this probe.
func (p *Probe) JobLabel(prefix string) string {
	return fmt.Sprintf("%s-g%d-%s", p.HumanTimeLabel(), p.Gpus, prefix)
}

// SlurmTime returns the probe time as a Slurm walltime string.
func (p *Probe) SlurmTime() string {
	return MinutesToSlurmTime(p.TimeMinutes)
}

// SummaryLine returns one compact line for submission reports.
func (p *Probe) SummaryLine(prefix string) string {
	return fmt.Sprintf("#%02d %s t=%s g=%d c=%d m=%s name=%s",
		p.Index, strings.ToUpper(p.Phase), p.HumanTimeLabel(),
		p.Gpus, p.Cpus, p.Mem, p.JobLabel(prefix))
}

// FormatCompactMinutes converts minutes to compact text: "2d4h", "1h30m",
// "30m".  Zero-valued leading units are omitted; zero total is "0m".
func FormatCompactMinutes(minutes int) string {
	total := max(0, minutes)
	days := total / 1440
	hours := (total % 1440) / 60
	mins := total % 60
	var b strings.Builder
	if days > 0 {
		fmt.Fprintf(&b, "%dd", days)
	}
	if hours > 0 {
		fmt.Fprintf(&b, "%dh", hours)
	}
	if mins > 0 || b.Len() == 0 {
		fmt.Fprintf(&b, "%dm", mins)
	}
	return b.String()
}

// MinutesToSlurmTime converts minutes to Slurm walltime text,
// "D-HH:MM:00" when days are present and "HH:MM:00" otherwise.
func MinutesToSlurmTime(minutes int) string {
	total := max(0, minutes)
	days := total / 1440
	hours := (total % 1440) / 60
	mins := total % 60
	if days > 0 {
		return fmt.Sprintf("%d-%02d:%02d:00", days, hours, mins)
	}
	return fmt.Sprintf("%02d:%02d:00", hours, mins)
}

// BuildProbes generates the ordered probe ladder: the time phase halves
// the walltime at maximum GPUs until it drops below the switch threshold
// (floored at the minimum), then the GPU phase halves the GPU count at
// the final probed time.  Duplicate (time, gpus) pairs are removed and
// the survivors reindexed from 1.
func BuildProbes(bounds Bounds, cpus int, mem string) ([]Probe, error) {
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	if cpus < 1 {
		return nil, errors.New("probes need at least one CPU")
	}
	timePhase := buildTimePhase(bounds, cpus, mem)
	baseTime := timePhase[len(timePhase)-1].TimeMinutes
	probes := append(timePhase, buildGpuPhase(bounds, baseTime, cpus, mem)...)

	type key struct{ time, gpus int }
	seen := make(map[key]bool)
	var unique []Probe
	for _, probe := range probes {
		k := key{probe.TimeMinutes, probe.Gpus}
		if seen[k] {
			continue
		}
		seen[k] = true
		probe.Index = len(unique) + 1
		unique = append(unique, probe)
	}
	return unique, nil
}

func buildTimePhase(bounds Bounds, cpus int, mem string) []Probe {
	probes := []Probe{{
		TimeMinutes: bounds.MaxTimeMinutes,
		Gpus:        bounds.MaxGpus,
		Cpus:        cpus,
		Mem:         mem,
		Phase:       "time",
	}}
	currentTime := bounds.MaxTimeMinutes
	for {
		candidate := max(bounds.MinTimeMinutes, currentTime/2)
		if candidate == currentTime {
			return probes
		}
		probes = append(probes, Probe{
			TimeMinutes: candidate,
			Gpus:        bounds.MaxGpus,
			Cpus:        cpus,
			Mem:         mem,
			Phase:       "time",
		})
		currentTime = candidate
		if currentTime < bounds.SwitchMinutes {
			return probes
		}
	}
}

func buildGpuPhase(bounds Bounds, baseTimeMinutes, cpus int, mem string) []Probe {
	var probes []Probe
	currentGpu := bounds.MaxGpus
	for {
		candidate := max(bounds.MinGpus, currentGpu/2)
		if candidate == currentGpu {
			return probes
		}
		probes = append(probes, Probe{
			TimeMinutes: baseTimeMinutes,
			Gpus:        candidate,
			Cpus:        cpus,
			Mem:         mem,
			Phase:       "gpu",
		})
		currentGpu = candidate
	}
}

// SrunArgs builds the interactive srun argument vector mirroring a probe
// allocation.
func SrunArgs(gpus, cpus int, timeStr, account, shell, mem string) []string {
	args := []string{"srun"}
	if gpus > 0 {
		args = append(args, fmt.Sprintf("--gres=gpu:%d", gpus))
	}
	args = append(args,
		fmt.Sprintf("--cpus-per-task=%d", cpus),
		fmt.Sprintf("--time=%s", timeStr),
		fmt.Sprintf("--account=%s", account),
		fmt.Sprintf("--mem=%s", mem),
		"--pty",
		shell,
	)
	return args
}

// SbatchArgs builds the batch submission argument vector for a probe: a
// parsable sbatch holding the allocation with a sleep, optionally with a
// BEGIN mail notification.
func SbatchArgs(gpus, cpus int, timeStr, account, mem, email, jobName string) []string {
	args := []string{"sbatch", "--parsable"}
	if gpus > 0 {
		args = append(args, fmt.Sprintf("--gres=gpu:%d", gpus))
	}
	args = append(args,
		fmt.Sprintf("--cpus-per-task=%d", cpus),
		fmt.Sprintf("--time=%s", timeStr),
		fmt.Sprintf("--account=%s", account),
		fmt.Sprintf("--mem=%s", mem),
		fmt.Sprintf("--job-name=%s", jobName),
	)
	if email != "" {
		args = append(args, fmt.Sprintf("--mail-user=%s", email), "--mail-type=BEGIN")
	}
	args = append(args, "--wrap", "sleep infinity")
	return args
}
