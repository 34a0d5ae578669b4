// `slurmgpu` -- forecast and inspect GPU availability on a Slurm cluster
//
// Run `slurmgpu help` for brief help.

package main

import (
	"flag"
	"fmt"
	"os"

	"slurmgpu/command"
	"slurmgpu/daemon"
	"slurmgpu/dash"
	"slurmgpu/search"
)

const SlurmgpuVersion = "0.1.0"

func main() {
	err := slurmgpu()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func slurmgpu() error {
	cmd := commandLine()
	return cmd.Perform()
}

func commandLine() command.Command {
	out := flag.CommandLine.Output()

	if len(os.Args) < 2 {
		fmt.Fprintf(out, "Required operation missing, try `slurmgpu help`\n")
		os.Exit(2)
	}

	var cmd command.Command
	var verb = os.Args[1]
	switch verb {
	case "help", "-h":
		fmt.Fprintf(out, "Usage: %s command [options]\n", os.Args[0])
		fmt.Fprintf(out, "Commands:\n")
		fmt.Fprintf(out, "  forecast - print a GPU availability forecast\n")
		fmt.Fprintf(out, "  dash     - print the current queue\n")
		fmt.Fprintf(out, "  blame    - print per-user GPU usage, heaviest first\n")
		fmt.Fprintf(out, "  search   - print the allocation-search probe ladder\n")
		fmt.Fprintf(out, "  daemon   - run the forecast service\n")
		fmt.Fprintf(out, "  version  - print information about the program\n")
		fmt.Fprintf(out, "  help     - print this message\n")
		fmt.Fprintf(out, "Each command accepts -h to further explain options.\n")
		os.Exit(0)
	case "forecast":
		cmd = new(ForecastCommand)
	case "dash":
		cmd = new(dash.DashCommand)
	case "blame":
		cmd = new(dash.BlameCommand)
	case "search":
		cmd = new(search.SearchCommand)
	case "daemon":
		cmd = new(daemon.DaemonCommand)
	case "version":
		fmt.Printf("slurmgpu version(%s)\n", SlurmgpuVersion)
		os.Exit(0)
	default:
		fmt.Fprintf(out, "Required operation missing, try `slurmgpu help`\n")
		os.Exit(2)
	}

	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	cmd.Add(fs)

	fs.Usage = func() {
		fmt.Fprintf(out, "Usage: %s %s [options]\n\n", os.Args[0], verb)
		for _, s := range cmd.Summary() {
			fmt.Fprintln(out, "  ", s)
		}
		fmt.Fprintln(out, "\nOptions:")
		fs.PrintDefaults()
	}
	fs.Parse(os.Args[2:])

	if fs.NArg() > 0 {
		fmt.Fprintf(out, "Rest arguments not accepted by `%s`.\n", verb)
		os.Exit(2)
	}

	err := cmd.Validate()
	if err != nil {
		fmt.Fprintf(out, "Bad arguments, try -h\n%v\n", err.Error())
		os.Exit(2)
	}

	return cmd
}
