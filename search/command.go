// `slurmgpu search` - print the two-phase probe ladder for discovering
// the largest schedulable allocation.  The command only constructs probe
// definitions and argument vectors; submitting them is up to the user.

package search

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"slurmgpu/command"
	"slurmgpu/common"
)

type SearchCommand struct {
	command.VerboseArgs
	maxTimeMinutes int
	minTimeMinutes int
	maxGpus        int
	minGpus        int
	switchMinutes  int
	cpus           int
	mem            string
	account        string
	prefix         string
	email          string
	sbatch         bool
}

func (sc *SearchCommand) Add(fs *flag.FlagSet) {
	sc.VerboseArgs.Add(fs)
	fs.IntVar(&sc.maxTimeMinutes, "max-time-minutes", 240, "Largest walltime probe in `minutes`")
	fs.IntVar(&sc.minTimeMinutes, "min-time-minutes", 30, "Smallest walltime probe in `minutes`, at least 30")
	fs.IntVar(&sc.maxGpus, "max-gpus", 4, "Largest GPU probe `count`")
	fs.IntVar(&sc.minGpus, "min-gpus", 1, "Smallest GPU probe `count`, at least 1")
	fs.IntVar(&sc.switchMinutes, "switch-minutes", 60, "Walltime in `minutes` below which the search halves GPUs instead")
	fs.IntVar(&sc.cpus, "cpus", 4, "CPUs per probe `count`")
	fs.StringVar(&sc.mem, "mem", "16G", "Memory per probe, Slurm `size` syntax")
	fs.StringVar(&sc.account, "account", "", "Slurm `account` for the sbatch argument vectors")
	fs.StringVar(&sc.prefix, "prefix", "probe", "Job-name `suffix` identifying this search")
	fs.StringVar(&sc.email, "email", "", "Notify this `address` when a probe starts")
	fs.BoolVar(&sc.sbatch, "sbatch", false, "Also print the sbatch argument vector for each probe")
}

func (sc *SearchCommand) Summary() []string {
	return []string{
		"Print the probe ladder for finding the largest allocation the",
		"scheduler will grant: the walltime is halved at maximum GPUs",
		"until it drops below the switch threshold, then the GPU count",
		"is halved at the shortest probed walltime.",
	}
}

func (sc *SearchCommand) Validate() error {
	err := sc.VerboseArgs.Validate()
	common.ApplyDefault(&sc.account, common.SlurmAccount)
	if sc.sbatch && sc.account == "" {
		return errors.Join(err, errors.New("-sbatch requires -account or a configured default"))
	}
	return err
}

func (sc *SearchCommand) Perform() error {
	bounds := Bounds{
		MaxTimeMinutes: sc.maxTimeMinutes,
		MinTimeMinutes: sc.minTimeMinutes,
		MaxGpus:        sc.maxGpus,
		MinGpus:        sc.minGpus,
		SwitchMinutes:  sc.switchMinutes,
	}
	probes, err := BuildProbes(bounds, sc.cpus, sc.mem)
	if err != nil {
		return err
	}
	for i := range probes {
		probe := &probes[i]
		fmt.Println(probe.SummaryLine(sc.prefix))
		if sc.sbatch {
			args := SbatchArgs(probe.Gpus, probe.Cpus, probe.SlurmTime(),
				sc.account, probe.Mem, sc.email, probe.JobLabel(sc.prefix))
			fmt.Printf("    %s\n", strings.Join(args, " "))
		}
	}
	return nil
}
