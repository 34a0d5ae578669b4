// Package command holds the argument structs shared by the slurmgpu verbs.
// Each struct contributes flags with Add, resolves ini-file defaults and
// checks consistency in Validate, and exposes the parsed values.
package command

import (
	"errors"
	"flag"
	"fmt"
	"strconv"

	"slurmgpu/common"
	"slurmgpu/forecast"
	"slurmgpu/slurm"
)

// Command is the interface the verb dispatcher works against.
type Command interface {
	Add(fs *flag.FlagSet)
	Summary() []string
	Validate() error
	Perform() error
}

// VerboseArgs adds -v.
type VerboseArgs struct {
	Verbose bool
}

func (va *VerboseArgs) Add(fs *flag.FlagSet) {
	fs.BoolVar(&va.Verbose, "v", false, "Print diagnostic information")
}

func (va *VerboseArgs) Validate() error {
	if va.Verbose {
		common.Log.SetLevel(common.LogLevelInfo)
	}
	return nil
}

// SourceArgs selects where Slurm state comes from: the live scontrol
// programs, or captured text files for testing and replay.
type SourceArgs struct {
	JobsFile  string
	NodesFile string
}

func (sa *SourceArgs) Add(fs *flag.FlagSet) {
	fs.StringVar(&sa.JobsFile, "jobs-file", "", "Read job state from `filename` instead of scontrol")
	fs.StringVar(&sa.NodesFile, "nodes-file", "", "Read node state from `filename` instead of scontrol")
}

func (sa *SourceArgs) Validate() error {
	if (sa.JobsFile == "") != (sa.NodesFile == "") {
		return errors.New("-jobs-file and -nodes-file must be used together")
	}
	return nil
}

func (sa *SourceArgs) Client() *slurm.Client {
	return &slurm.Client{JobsFile: sa.JobsFile, NodesFile: sa.NodesFile}
}

// HorizonArgs adds the forecast horizon, default 8 hours, ini-file
// overridable.
type HorizonArgs struct {
	horizon      string
	HorizonHours float64
}

func (ha *HorizonArgs) Add(fs *flag.FlagSet) {
	fs.StringVar(&ha.horizon, "horizon-hours", "", "Forecast horizon in `hours` (default 8)")
}

func (ha *HorizonArgs) Validate() error {
	common.ApplyDefault(&ha.horizon, common.ForecastHorizonHours)
	if ha.horizon == "" {
		ha.HorizonHours = 8.0
		return nil
	}
	hours, err := strconv.ParseFloat(ha.horizon, 64)
	if err != nil || hours <= 0 {
		return fmt.Errorf("bad -horizon-hours value %q", ha.horizon)
	}
	ha.HorizonHours = hours
	return nil
}

// PolicyArgs adds the degenerate-correction thresholds, ini-file
// overridable, defaulting to the observed cluster policy.
type PolicyArgs struct {
	memSaturationPct  string
	largeGpuPartition string
	largeGpuThreshold string
	policy            forecast.Policy
}

func (pa *PolicyArgs) Add(fs *flag.FlagSet) {
	fs.StringVar(&pa.memSaturationPct, "mem-saturation-pct", "",
		"Node-memory `percentage` at which a request counts as whole-node (default 98)")
	fs.StringVar(&pa.largeGpuPartition, "large-gpu-partition", "",
		"`name` of the partition hosting large multi-GPU jobs (default quad)")
	fs.StringVar(&pa.largeGpuThreshold, "large-gpu-threshold", "",
		"Requested-GPU `count` above which unplaced jobs are inferred to target the large-GPU partition (default 3)")
}

func (pa *PolicyArgs) Validate() error {
	common.ApplyDefault(&pa.memSaturationPct, common.ForecastMemSaturationPct)
	common.ApplyDefault(&pa.largeGpuPartition, common.ForecastLargeGpuPartition)
	common.ApplyDefault(&pa.largeGpuThreshold, common.ForecastLargeGpuThreshold)
	pa.policy = forecast.DefaultPolicy()
	var e1, e2 error
	if pa.memSaturationPct != "" {
		pct, err := strconv.ParseFloat(pa.memSaturationPct, 64)
		if err != nil || pct <= 0 || pct > 100 {
			e1 = fmt.Errorf("bad -mem-saturation-pct value %q", pa.memSaturationPct)
		} else {
			pa.policy.MemSaturation = pct / 100.0
		}
	}
	if pa.largeGpuPartition != "" {
		pa.policy.LargeGpuPartition = pa.largeGpuPartition
	}
	if pa.largeGpuThreshold != "" {
		threshold, err := strconv.Atoi(pa.largeGpuThreshold)
		if err != nil || threshold < 1 {
			e2 = fmt.Errorf("bad -large-gpu-threshold value %q", pa.largeGpuThreshold)
		} else {
			pa.policy.LargeGpuThreshold = threshold
		}
	}
	return errors.Join(e1, e2)
}

func (pa *PolicyArgs) Policy() forecast.Policy {
	return pa.policy
}
