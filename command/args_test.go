package command

import (
	"flag"
	"testing"
)

func TestHorizonArgs(t *testing.T) {
	var ha HorizonArgs
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	ha.Add(fs)
	if err := fs.Parse([]string{}); err != nil {
		t.Fatal(err)
	}
	if err := ha.Validate(); err != nil {
		t.Fatal(err)
	}
	if ha.HorizonHours != 8.0 {
		t.Fatalf("default horizon %v", ha.HorizonHours)
	}

	var ha2 HorizonArgs
	fs2 := flag.NewFlagSet("test", flag.ContinueOnError)
	ha2.Add(fs2)
	if err := fs2.Parse([]string{"-horizon-hours", "2.5"}); err != nil {
		t.Fatal(err)
	}
	if err := ha2.Validate(); err != nil {
		t.Fatal(err)
	}
	if ha2.HorizonHours != 2.5 {
		t.Fatalf("parsed horizon %v", ha2.HorizonHours)
	}

	var ha3 HorizonArgs
	fs3 := flag.NewFlagSet("test", flag.ContinueOnError)
	ha3.Add(fs3)
	if err := fs3.Parse([]string{"-horizon-hours", "zero"}); err != nil {
		t.Fatal(err)
	}
	if err := ha3.Validate(); err == nil {
		t.Fatal("bad horizon must be rejected")
	}
}

func TestPolicyArgs(t *testing.T) {
	var pa PolicyArgs
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	pa.Add(fs)
	if err := fs.Parse([]string{"-mem-saturation-pct", "95", "-large-gpu-partition", "octo", "-large-gpu-threshold", "7"}); err != nil {
		t.Fatal(err)
	}
	if err := pa.Validate(); err != nil {
		t.Fatal(err)
	}
	policy := pa.Policy()
	if policy.MemSaturation != 0.95 {
		t.Fatalf("mem saturation %v", policy.MemSaturation)
	}
	if policy.LargeGpuPartition != "octo" || policy.LargeGpuThreshold != 7 {
		t.Fatalf("policy %+v", policy)
	}

	var pa2 PolicyArgs
	fs2 := flag.NewFlagSet("test", flag.ContinueOnError)
	pa2.Add(fs2)
	if err := fs2.Parse([]string{}); err != nil {
		t.Fatal(err)
	}
	if err := pa2.Validate(); err != nil {
		t.Fatal(err)
	}
	defaults := pa2.Policy()
	if defaults.MemSaturation != 0.98 || defaults.LargeGpuPartition != "quad" || defaults.LargeGpuThreshold != 3 {
		t.Fatalf("defaults %+v", defaults)
	}

	var pa3 PolicyArgs
	fs3 := flag.NewFlagSet("test", flag.ContinueOnError)
	pa3.Add(fs3)
	if err := fs3.Parse([]string{"-mem-saturation-pct", "200", "-large-gpu-threshold", "0"}); err != nil {
		t.Fatal(err)
	}
	if err := pa3.Validate(); err == nil {
		t.Fatal("out-of-range policy values must be rejected")
	}
}

func TestSourceArgs(t *testing.T) {
	var sa SourceArgs
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	sa.Add(fs)
	if err := fs.Parse([]string{"-jobs-file", "jobs.txt"}); err != nil {
		t.Fatal(err)
	}
	if err := sa.Validate(); err == nil {
		t.Fatal("jobs-file without nodes-file must be rejected")
	}

	var sa2 SourceArgs
	fs2 := flag.NewFlagSet("test", flag.ContinueOnError)
	sa2.Add(fs2)
	if err := fs2.Parse([]string{"-jobs-file", "jobs.txt", "-nodes-file", "nodes.txt"}); err != nil {
		t.Fatal(err)
	}
	if err := sa2.Validate(); err != nil {
		t.Fatal(err)
	}
	client := sa2.Client()
	if client.JobsFile != "jobs.txt" || client.NodesFile != "nodes.txt" {
		t.Fatalf("client %+v", client)
	}
}
