package search

import (
	"strings"
	"testing"
)

func expectEq[T comparable](t *testing.T, got, want T) {
	t.Helper()
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestBoundsValidate(t *testing.T) {
	good := Bounds{MaxTimeMinutes: 240, MinTimeMinutes: 30, MaxGpus: 4, MinGpus: 1, SwitchMinutes: 60}
	if err := good.Validate(); err != nil {
		t.Fatal(err)
	}
	bad := Bounds{MaxTimeMinutes: 20, MinTimeMinutes: 10, MaxGpus: 0, MinGpus: 0, SwitchMinutes: 0}
	err := bad.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"30 minutes", "GPU probe", "switch threshold"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q should mention %q", err, want)
		}
	}
}

func TestFormatCompactMinutes(t *testing.T) {
	expectEq(t, FormatCompactMinutes(30), "30m")
	expectEq(t, FormatCompactMinutes(90), "1h30m")
	expectEq(t, FormatCompactMinutes(120), "2h")
	expectEq(t, FormatCompactMinutes(2*1440+4*60), "2d4h")
	expectEq(t, FormatCompactMinutes(0), "0m")
	expectEq(t, FormatCompactMinutes(-5), "0m")
}

func TestMinutesToSlurmTime(t *testing.T) {
	expectEq(t, MinutesToSlurmTime(30), "00:30:00")
	expectEq(t, MinutesToSlurmTime(90), "01:30:00")
	expectEq(t, MinutesToSlurmTime(1440), "1-00:00:00")
	expectEq(t, MinutesToSlurmTime(1440+90), "1-01:30:00")
}

func TestBuildProbesTwoPhases(t *testing.T) {
	bounds := Bounds{MaxTimeMinutes: 240, MinTimeMinutes: 30, MaxGpus: 4, MinGpus: 1, SwitchMinutes: 60}
	probes, err := BuildProbes(bounds, 8, "50G")
	if err != nil {
		t.Fatal(err)
	}
	// Time halving 240,120,60,30 at 4 GPUs, then GPU halving 2,1 at 30m.
	expectEq(t, len(probes), 6)
	wantTimes := []int{240, 120, 60, 30, 30, 30}
	wantGpus := []int{4, 4, 4, 4, 2, 1}
	for i, probe := range probes {
		expectEq(t, probe.TimeMinutes, wantTimes[i])
		expectEq(t, probe.Gpus, wantGpus[i])
		expectEq(t, probe.Cpus, 8)
		expectEq(t, probe.Mem, "50G")
		expectEq(t, probe.Index, i+1)
	}
	expectEq(t, probes[0].Phase, "time")
	expectEq(t, probes[5].Phase, "gpu")
}

func TestBuildProbesDegenerateTimeRange(t *testing.T) {
	bounds := Bounds{MaxTimeMinutes: 60, MinTimeMinutes: 60, MaxGpus: 4, MinGpus: 1, SwitchMinutes: 60}
	probes, err := BuildProbes(bounds, 4, "16G")
	if err != nil {
		t.Fatal(err)
	}
	expectEq(t, len(probes), 3)
	expectEq(t, probes[0].TimeMinutes, 60)
	expectEq(t, probes[0].Gpus, 4)
	expectEq(t, probes[1].Gpus, 2)
	expectEq(t, probes[2].Gpus, 1)
}

func TestBuildProbesRejectsBadInput(t *testing.T) {
	bounds := Bounds{MaxTimeMinutes: 240, MinTimeMinutes: 30, MaxGpus: 4, MinGpus: 1, SwitchMinutes: 60}
	if _, err := BuildProbes(bounds, 0, "50G"); err == nil {
		t.Fatal("zero CPUs must be rejected")
	}
	if _, err := BuildProbes(Bounds{}, 8, "50G"); err == nil {
		t.Fatal("empty bounds must be rejected")
	}
}

func TestProbeLabels(t *testing.T) {
	probe := Probe{TimeMinutes: 90, Gpus: 2, Cpus: 8, Mem: "50G", Phase: "time", Index: 3}
	expectEq(t, probe.HumanTimeLabel(), "1h30m")
	expectEq(t, probe.JobLabel("srch"), "1h30m-g2-srch")
	expectEq(t, probe.SlurmTime(), "01:30:00")
	expectEq(t, probe.SummaryLine("srch"), "#03 TIME t=1h30m g=2 c=8 m=50G name=1h30m-g2-srch")
}

func TestSrunArgs(t *testing.T) {
	args := SrunArgs(2, 8, "00:30:00", "P123", "bash", "16G")
	want := []string{
		"srun", "--gres=gpu:2", "--cpus-per-task=8", "--time=00:30:00",
		"--account=P123", "--mem=16G", "--pty", "bash",
	}
	expectEq(t, len(args), len(want))
	for i := range want {
		expectEq(t, args[i], want[i])
	}
	noGpu := SrunArgs(0, 4, "00:10:00", "P123", "bash", "8G")
	expectEq(t, noGpu[1], "--cpus-per-task=4")
}

func TestSbatchArgs(t *testing.T) {
	args := SbatchArgs(2, 8, "00:30:00", "P123", "16G", "ops@example.com", "1h-g2-srch")
	joined := strings.Join(args, " ")
	for _, want := range []string{
		"sbatch", "--parsable", "--gres=gpu:2", "--cpus-per-task=8",
		"--time=00:30:00", "--account=P123", "--mem=16G",
		"--job-name=1h-g2-srch", "--mail-user=ops@example.com",
		"--mail-type=BEGIN", "--wrap", "sleep infinity",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args %q missing %q", joined, want)
		}
	}
	noMail := SbatchArgs(0, 8, "00:30:00", "P123", "16G", "", "demo")
	if strings.Contains(strings.Join(noMail, " "), "--mail") {
		t.Fatal("no email must mean no mail flags")
	}
}
