package dash

import (
	"math"
	"strings"
	"testing"
)

func expectEq[T comparable](t *testing.T, got, want T) {
	t.Helper()
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseQueueJob(t *testing.T) {
	job, ok := ParseQueueJob("12345\tR\ttrain-llm\t1:02:03\t2:57:57\tNone\tgpu[01-02]\t/home/demo/run")
	expectEq(t, ok, true)
	expectEq(t, job.JobId, "12345")
	expectEq(t, job.StateCompact, "R")
	expectEq(t, job.Name, "train-llm")
	expectEq(t, job.NodeList, "gpu[01-02]")
	expectEq(t, job.WorkDir, "/home/demo/run")
	expectEq(t, job.IsRunning(), true)
	expectEq(t, job.IsPending(), false)

	if _, ok := ParseQueueJob("1\tCG\tdone\t0:00\t0:00\tNone\tgpu01\t/tmp"); ok {
		t.Fatal("completing jobs must be dropped")
	}
	if _, ok := ParseQueueJob("short\tline"); ok {
		t.Fatal("rows with missing fields must be dropped")
	}
}

func TestParseQueueJobsOrdering(t *testing.T) {
	rows := []string{
		"100\tPD\ta\t0:00\t1:00\tPriority\t\t/tmp",
		"300\tR\tb\t0:10\t0:50\tNone\tgpu01\t/tmp",
		"200\tR\tc\t0:20\t0:40\tNone\tgpu02\t/tmp",
		"400\tPD\td\t0:00\t1:00\tResources\t\t/tmp",
	}
	jobs := ParseQueueJobs(rows)
	expectEq(t, len(jobs), 4)
	expectEq(t, jobs[0].JobId, "300")
	expectEq(t, jobs[1].JobId, "200")
	expectEq(t, jobs[2].JobId, "400")
	expectEq(t, jobs[3].JobId, "100")
}

func TestDisplayRow(t *testing.T) {
	job := QueueJob{
		JobId:        "42",
		StateCompact: "R",
		Name:         "a-very-long-job-name-that-overflows",
		TimeUsed:     "1:00",
		TimeLeft:     "2:00",
		Reason:       "None",
		NodeList:     "gpu01",
	}
	row := job.DisplayRow()
	if !strings.HasPrefix(row, "      42 R  a-very-long-job-name-t") {
		t.Fatalf("unexpected row %q", row)
	}
	if strings.Contains(row, "overflows") {
		t.Fatal("name must be truncated to 22 characters")
	}
}

func TestParseGresGpuCount(t *testing.T) {
	expectEq(t, parseGresGpuCount("gpu:2"), 2)
	expectEq(t, parseGresGpuCount("gpu:a100:4"), 4)
	expectEq(t, parseGresGpuCount("gres/gpu:4"), 4)
	expectEq(t, parseGresGpuCount("cpu=8"), 0)
	expectEq(t, parseGresGpuCount("N/A"), 0)
	expectEq(t, parseGresGpuCount("mem:10G,gpu:1"), 1)
}

func TestParseDurationMinutes(t *testing.T) {
	tests := []struct {
		input   string
		minutes float64
	}{
		{"02:03:04", 123.0 + 4.0/60.0},
		{"1-02:03:04", 24*60 + 123.0 + 4.0/60.0},
		{"20:00", 20},
		{"bogus", 0},
		{"1:2:3:4", 0},
	}
	for _, test := range tests {
		if got := ParseDurationMinutes(test.input); math.Abs(got-test.minutes) > 1e-9 {
			t.Fatalf("%s: got %v, want %v", test.input, got, test.minutes)
		}
	}
}

type tableResolver struct {
	names        map[string]string
	coordinators map[string]string
}

func (r tableResolver) FullName(username string) string { return r.names[username] }
func (r tableResolver) AccountCoordinators([]string) map[string]string {
	return r.coordinators
}

func TestParseBlameRecords(t *testing.T) {
	rows := []string{
		"alice|proj1|gpu:2|2|04:00:00|R",
		"alice|proj1|gpu:1|1|02:00:00|PD",
		"bob|proj2|gpu:a100:4|1|1-00:00:00|R",
		"carol|proj1|N/A|1|04:00:00|R",
		"|proj1|gpu:1|1|04:00:00|R",
	}
	resolver := tableResolver{
		names:        map[string]string{"alice": "Alice A", "bob": "Bob B"},
		coordinators: map[string]string{"proj1": "Paula PI"},
	}
	records := ParseBlameRecords(rows, resolver)
	expectEq(t, len(records), 2)

	expectEq(t, records[0].Username, "alice")
	expectEq(t, records[0].Account, "proj1")
	expectEq(t, records[0].RunningGpus, 4)
	expectEq(t, records[0].PendingGpus, 1)
	if math.Abs(records[0].AvgRequestMinutes-180.0) > 1e-9 {
		t.Fatalf("avg minutes %v", records[0].AvgRequestMinutes)
	}
	expectEq(t, records[0].FullName, "Alice A")
	expectEq(t, records[0].CoordinatorName, "Paula PI")

	expectEq(t, records[1].Username, "bob")
	expectEq(t, records[1].RunningGpus, 4)
	expectEq(t, records[1].PendingGpus, 0)
}

func TestParseBlameRecordsSortsByRunningGpus(t *testing.T) {
	rows := []string{
		"small|p|gpu:1|1|01:00:00|R",
		"big|p|gpu:4|2|01:00:00|R",
	}
	records := ParseBlameRecords(rows, NullResolver{})
	expectEq(t, records[0].Username, "big")
	expectEq(t, records[1].Username, "small")
}
