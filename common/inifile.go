package common

import (
	"errors"
	"os"
	"path"

	ini "github.com/lars-t-hansen/ini"
)

// Defaults are read once from ~/.slurmgpu.  Any field can also be set on the
// command line; the file only fills in values that were left blank.

// MT: Constant after initialization
var (
	p     = ini.NewParser()
	store *ini.Store

	forecastSection           = p.AddSection("forecast")
	ForecastHorizonHours      = forecastSection.AddString("horizon-hours")
	ForecastRefreshSeconds    = forecastSection.AddString("refresh-seconds")
	ForecastLargeGpuPartition = forecastSection.AddString("large-gpu-partition")
	ForecastLargeGpuThreshold = forecastSection.AddString("large-gpu-threshold")
	ForecastMemSaturationPct  = forecastSection.AddString("mem-saturation-pct")

	daemonSection     = p.AddSection("daemon")
	DaemonPort        = daemonSection.AddString("port")
	DaemonKafkaBroker = daemonSection.AddString("kafka-broker")
	DaemonDatabase    = daemonSection.AddString("database")
	DaemonCluster     = daemonSection.AddString("cluster")

	slurmSection = p.AddSection("slurm")
	SlurmAccount = slurmSection.AddString("account")
)

func init() {
	home := os.Getenv("HOME")
	if home == "" {
		return
	}
	fn := path.Join(path.Clean(home), ".slurmgpu")
	input, err := os.Open(fn)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			Log.Errorf("Error in trying to open %s: %s", fn, err.Error())
		}
		return
	}
	defer input.Close()
	store, err = p.Parse(input)
	if err != nil {
		Log.Errorf("Error in trying to parse %s: %s", fn, err.Error())
		return
	}
}

func HasDefault(f *ini.Field) bool {
	return store != nil && f.Present(store)
}

func ApplyDefault(sp *string, f *ini.Field) bool {
	if *sp != "" || store == nil || !f.Present(store) {
		return false
	}
	*sp = os.ExpandEnv(f.StringVal(store))
	return true
}
