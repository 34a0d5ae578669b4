// `slurmgpu dash` and `slurmgpu blame` - queue overview and per-user GPU
// pressure, printed as plain text.

package dash

import (
	"flag"
	"fmt"

	"slurmgpu/command"
	"slurmgpu/slurm"
)

type DashCommand struct {
	command.VerboseArgs
}

func (dc *DashCommand) Add(fs *flag.FlagSet) {
	dc.VerboseArgs.Add(fs)
}

func (dc *DashCommand) Summary() []string {
	return []string{
		"Print the current queue: running jobs first, then pending,",
		"newest first within each group.",
	}
}

func (dc *DashCommand) Validate() error {
	return dc.VerboseArgs.Validate()
}

func (dc *DashCommand) Perform() error {
	client := new(slurm.Client)
	rows, err := client.QueueRows()
	if err != nil {
		return err
	}
	jobs := ParseQueueJobs(rows)
	fmt.Printf("%8s %-2s %-22s %9s %10s %-18s %-16s\n",
		"JOBID", "ST", "NAME", "TIME", "TIME_LEFT", "REASON", "NODELIST")
	running, pending := 0, 0
	for i := range jobs {
		fmt.Println(jobs[i].DisplayRow())
		if jobs[i].IsRunning() {
			running++
		} else {
			pending++
		}
	}
	fmt.Printf("%d running, %d pending\n", running, pending)
	return nil
}

type BlameCommand struct {
	command.VerboseArgs
	noNames bool
}

func (bc *BlameCommand) Add(fs *flag.FlagSet) {
	bc.VerboseArgs.Add(fs)
	fs.BoolVar(&bc.noNames, "no-names", false,
		"Skip the getent/sacctmgr lookups of full names and coordinators")
}

func (bc *BlameCommand) Summary() []string {
	return []string{
		"Print per-user GPU usage aggregated from the queue, heaviest",
		"users first: running GPUs, pending GPUs, and the average",
		"requested walltime of their jobs.",
	}
}

func (bc *BlameCommand) Validate() error {
	return bc.VerboseArgs.Validate()
}

func (bc *BlameCommand) Perform() error {
	client := new(slurm.Client)
	rows, err := client.BlameRows()
	if err != nil {
		return err
	}
	var resolver NameResolver = SystemResolver{}
	if bc.noNames {
		resolver = NullResolver{}
	}
	records := ParseBlameRecords(rows, resolver)
	fmt.Printf("%-12s %-12s %5s %5s %9s  %s\n",
		"USER", "ACCOUNT", "RUN", "PEND", "AVG_MIN", "NAME")
	for _, record := range records {
		name := record.FullName
		if record.CoordinatorName != "" {
			name = fmt.Sprintf("%s (coord %s)", name, record.CoordinatorName)
		}
		fmt.Printf("%-12s %-12s %5d %5d %9.0f  %s\n",
			record.Username, record.Account, record.RunningGpus,
			record.PendingGpus, record.AvgRequestMinutes, name)
	}
	return nil
}
