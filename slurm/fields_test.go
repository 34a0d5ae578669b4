package slurm

import (
	"math"
	"testing"
	"time"
)

func expectEq[T comparable](t *testing.T, got, want T) {
	t.Helper()
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseFields(t *testing.T) {
	fields := ParseFields("JobId=123 JobState=RUNNING Partition=normal Reason=None garbage TRES=cpu=4,mem=16G")
	expectEq(t, fields["JobId"], "123")
	expectEq(t, fields["JobState"], "RUNNING")
	expectEq(t, fields["TRES"], "cpu=4,mem=16G")
	if _, present := fields["garbage"]; present {
		t.Fatal("token without = should be dropped")
	}
}

func TestParseDurationHours(t *testing.T) {
	tests := []struct {
		input string
		hours float64
	}{
		{"00:30:00", 0.5},
		{"01:00:00", 1},
		{"2-00:00:00", 48},
		{"1-12:30:00", 36.5},
		{"UNLIMITED", 24 * 365},
	}
	for _, test := range tests {
		hours, err := ParseDurationHours(test.input)
		if err != nil {
			t.Fatalf("%s: %v", test.input, err)
		}
		if math.Abs(hours-test.hours) > 1e-9 {
			t.Fatalf("%s: got %v, want %v", test.input, hours, test.hours)
		}
	}
	for _, bad := range []string{"", "xyzzy", "10:00", "a-01:00:00", "01:xx:00"} {
		if _, err := ParseDurationHours(bad); err == nil {
			t.Fatalf("%q should not parse", bad)
		}
	}
}

func TestParseDateTime(t *testing.T) {
	when, ok, err := ParseDateTime("2026-08-25T14:30:00")
	if err != nil || !ok {
		t.Fatalf("unexpected ok=%v err=%v", ok, err)
	}
	expectEq(t, when, time.Date(2026, 8, 25, 14, 30, 0, 0, time.Local))

	for _, sentinel := range []string{"Unknown", "N/A", "None", "(null)", ""} {
		_, ok, err := ParseDateTime(sentinel)
		if err != nil || ok {
			t.Fatalf("%q: sentinel should be unknown without error", sentinel)
		}
	}

	if _, _, err := ParseDateTime("yesterday"); err == nil {
		t.Fatal("malformed timestamp should error")
	}
}

func TestParseGpuCount(t *testing.T) {
	expectEq(t, ParseGpuCount("cpu=8,mem=64G,gres/gpu=4"), 4)
	expectEq(t, ParseGpuCount("cpu=8,gres/gpu=4,gres/gpu:a100=4"), 4)
	expectEq(t, ParseGpuCount("cpu=8,gres/gpu:a100=2,gres/gpu:h100=3"), 5)
	expectEq(t, ParseGpuCount("cpu=8,mem=64G"), 0)
	expectEq(t, ParseGpuCount(""), 0)
}

func TestParseTresInt(t *testing.T) {
	expectEq(t, ParseTresInt("cpu=16,mem=64G,node=2", "cpu"), 16)
	expectEq(t, ParseTresInt("cpu=16,mem=64G,node=2", "node"), 2)
	expectEq(t, ParseTresInt("mem=64G", "cpu"), 0)
	expectEq(t, ParseTresInt("cpu=x", "cpu"), 0)
}

func TestSizeToMiB(t *testing.T) {
	tests := []struct {
		number string
		unit   string
		mib    int64
	}{
		{"2048", "K", 0},
		{"500", "M", 500},
		{"16", "G", 16384},
		{"2", "T", 2 * 1024 * 1024},
		{"1", "P", 1024 * 1024 * 1024},
		{"1048576", "", 1024},
	}
	for _, test := range tests {
		mib, err := SizeToMiB(test.number, test.unit)
		if err != nil {
			t.Fatalf("%s%s: %v", test.number, test.unit, err)
		}
		expectEq(t, mib, test.mib)
	}
	if _, err := SizeToMiB("16", "Q"); err == nil {
		t.Fatal("unknown unit should error")
	}
	if _, err := SizeToMiB("much", "G"); err == nil {
		t.Fatal("non-numeric size should error")
	}
}

func TestParseTresMemMiB(t *testing.T) {
	mib, err := ParseTresMemMiB("cpu=8,mem=64G,gres/gpu=4")
	if err != nil {
		t.Fatal(err)
	}
	expectEq(t, mib, int64(64*1024))

	mib, err = ParseTresMemMiB("cpu=8,mem=512000M")
	if err != nil {
		t.Fatal(err)
	}
	expectEq(t, mib, int64(512000))

	mib, err = ParseTresMemMiB("cpu=8")
	if err != nil || mib != 0 {
		t.Fatalf("absent mem should be zero, got %v err=%v", mib, err)
	}

	if _, err := ParseTresMemMiB("mem=G"); err == nil {
		t.Fatal("mem without a number should error")
	}
}

func TestParsePartitionNames(t *testing.T) {
	names := ParsePartitionNames("Normal*,quad,NORMAL, bigmem")
	if len(names) != 3 || names[0] != "normal" || names[1] != "quad" || names[2] != "bigmem" {
		t.Fatalf("got %v", names)
	}
	if names := ParsePartitionNames("N/A"); names != nil {
		t.Fatalf("sentinel should yield nil, got %v", names)
	}
}

func TestParseLeadingInt(t *testing.T) {
	n, ok := ParseLeadingInt("1-1")
	expectEq(t, ok, true)
	expectEq(t, n, 1)
	n, ok = ParseLeadingInt("12")
	expectEq(t, ok, true)
	expectEq(t, n, 12)
	if _, ok := ParseLeadingInt("x2"); ok {
		t.Fatal("no leading digits should fail")
	}
}
