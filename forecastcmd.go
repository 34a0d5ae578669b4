// `slurmgpu forecast` - one plain-text GPU availability snapshot.

package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"slurmgpu/command"
	"slurmgpu/common"
	"slurmgpu/forecast"
)

type ForecastCommand struct {
	command.VerboseArgs
	command.SourceArgs
	command.HorizonArgs
	command.PolicyArgs
	partition string
	infer     bool
	asJson    bool
}

func (fc *ForecastCommand) Add(fs *flag.FlagSet) {
	fc.VerboseArgs.Add(fs)
	fc.SourceArgs.Add(fs)
	fc.HorizonArgs.Add(fs)
	fc.PolicyArgs.Add(fs)
	fs.StringVar(&fc.partition, "partition", "", "Restrict the forecast to `partition`")
	fs.BoolVar(&fc.infer, "infer", false,
		"Infer that unplaced large-GPU requests target the large-GPU partition")
	fs.BoolVar(&fc.asJson, "json", false, "Print the snapshot as JSON instead of text")
}

func (fc *ForecastCommand) Summary() []string {
	return []string{
		"Forecast GPU availability from the current Slurm job and node",
		"state: a half-hourly step series of free GPUs over the horizon,",
		"with corrections for jobs whose requests saturate whole nodes.",
	}
}

func (fc *ForecastCommand) Validate() error {
	var e1, e2, e3, e4 error
	e1 = fc.VerboseArgs.Validate()
	e2 = fc.SourceArgs.Validate()
	e3 = fc.HorizonArgs.Validate()
	e4 = fc.PolicyArgs.Validate()
	return errors.Join(e1, e2, e3, e4)
}

func (fc *ForecastCommand) Perform() error {
	client := fc.Client()
	rawJobs, err := client.RawJobs()
	if err != nil {
		return err
	}
	rawNodes, err := client.RawNodes()
	if err != nil {
		return err
	}
	capacities, dropped := forecast.ParseNodeCapacities(rawNodes)
	if dropped > 0 {
		common.Log.Warningf("Dropped %d node lines", dropped)
	}
	forecaster := &forecast.Forecaster{
		Policy: fc.Policy(),
		Hosts:  forecast.NewHostExpander(client.Hostnames),
	}
	snapshot := forecaster.BuildSnapshot(
		time.Now(), fc.HorizonHours, rawJobs, capacities,
		forecast.Scope{Partition: fc.partition, InferLargeGpu: fc.infer})

	if fc.asJson {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(&snapshot)
	}
	fmt.Printf("Generated: %s\n", snapshot.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Capacity: %d\n", snapshot.Capacity)
	fmt.Println(snapshot.Stats.Subtitle())
	for i := range snapshot.Points {
		fmt.Printf("%6s  %3d\n", snapshot.Points[i].Label(), snapshot.Points[i].AvailableGpus)
	}
	return nil
}
