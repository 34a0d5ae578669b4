package daemon

import (
	"context"
	"os"
	"path"
	"testing"
	"time"

	"slurmgpu/forecast"
	"slurmgpu/slurm"
)

func writeCapture(t *testing.T, jobs, nodes string) *slurm.Client {
	t.Helper()
	dir := t.TempDir()
	jobsFile := path.Join(dir, "jobs.txt")
	nodesFile := path.Join(dir, "nodes.txt")
	if err := os.WriteFile(jobsFile, []byte(jobs), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(nodesFile, []byte(nodes), 0o644); err != nil {
		t.Fatal(err)
	}
	return &slurm.Client{JobsFile: jobsFile, NodesFile: nodesFile}
}

func TestServiceRefreshAndSnapshot(t *testing.T) {
	client := writeCapture(t,
		"JobId=100 JobState=RUNNING Partition=normal StartTime=2026-08-25T11:00:00 EndTime=Unknown TimeLimit=02:00:00 RunTime=01:00:00 NumNodes=1 NodeList=gpu01 ReqTRES=cpu=8,mem=64G,gres/gpu=2 AllocTRES=cpu=8,mem=64G,gres/gpu=2\n",
		"NodeName=gpu01 CPUAlloc=8 AllocMem=65536 Partitions=normal CfgTRES=cpu=64,mem=512G,gres/gpu=4 AllocTRES=cpu=8,mem=64G,gres/gpu=2\n")
	svc := newService(client, forecast.DefaultPolicy(), 8.0, time.Minute)
	svc.refresh(context.Background())

	snapshot, err := svc.snapshot(1.0, forecast.Scope{})
	if err != nil {
		t.Fatal(err)
	}
	if snapshot.Capacity != 4 {
		t.Fatalf("capacity %d", snapshot.Capacity)
	}
	if snapshot.CurrentAvailable() != 2 {
		t.Fatalf("current available %d", snapshot.CurrentAvailable())
	}

	// Default horizon applies when the caller passes zero.
	snapshot, err = svc.snapshot(0, forecast.Scope{})
	if err != nil {
		t.Fatal(err)
	}
	if len(snapshot.Points) != 17 {
		t.Fatalf("expected 8h half-hour points, got %d", len(snapshot.Points))
	}
}

func TestServiceSnapshotWithoutState(t *testing.T) {
	client := &slurm.Client{JobsFile: "/nonexistent/jobs", NodesFile: "/nonexistent/nodes"}
	svc := newService(client, forecast.DefaultPolicy(), 8.0, time.Minute)
	svc.refresh(context.Background())

	if _, err := svc.snapshot(1.0, forecast.Scope{}); err == nil {
		t.Fatal("expected forecast-unavailable error")
	}
}

func TestServiceKeepsLastGoodState(t *testing.T) {
	client := writeCapture(t,
		"JobId=1 JobState=PENDING StartTime=Unknown TimeLimit=01:00:00 RunTime=00:00:00 ReqTRES=gres/gpu=1\n",
		"NodeName=gpu01 CPUAlloc=0 AllocMem=0 Partitions=normal CfgTRES=cpu=64,mem=512G,gres/gpu=4 AllocTRES=\n")
	svc := newService(client, forecast.DefaultPolicy(), 8.0, time.Minute)
	svc.refresh(context.Background())

	// Later fetches fail; the previous capture keeps serving.
	client.JobsFile = "/nonexistent/jobs"
	svc.refresh(context.Background())
	snapshot, err := svc.snapshot(1.0, forecast.Scope{})
	if err != nil {
		t.Fatal(err)
	}
	if snapshot.Capacity != 4 {
		t.Fatalf("capacity %d", snapshot.Capacity)
	}
}

func TestPartitionTable(t *testing.T) {
	capacities := map[string]forecast.NodeCapacity{
		"b01": {NodeName: "b01", Gpus: 4, PartitionNames: []string{"normal", "quad"}},
		"a01": {NodeName: "a01", Gpus: 4, PartitionNames: []string{"normal"}},
	}
	partitions := partitionTable(capacities)
	if len(partitions) != 2 {
		t.Fatalf("partitions %v", partitions)
	}
	if string(partitions[0].Name) != "normal" || string(partitions[1].Name) != "quad" {
		t.Fatalf("partition order %v", partitions)
	}
	if len(partitions[0].Nodes) != 2 || string(partitions[0].Nodes[0]) != "a01" {
		t.Fatalf("node order %v", partitions[0].Nodes)
	}
	if len(partitions[1].Nodes) != 1 || string(partitions[1].Nodes[0]) != "b01" {
		t.Fatalf("quad nodes %v", partitions[1].Nodes)
	}
}

func TestTriggerRefreshNeverBlocks(t *testing.T) {
	svc := newService(&slurm.Client{}, forecast.DefaultPolicy(), 8.0, time.Minute)
	svc.triggerRefresh()
	svc.triggerRefresh()
	svc.triggerRefresh()
}
