package daemon

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/NordicHPC/sonar/util/formats/newfmt"

	"slurmgpu/common"
	"slurmgpu/db"
	"slurmgpu/forecast"
	"slurmgpu/slurm"
)

// service holds the last good Slurm capture and computes snapshots from
// it on demand.  A capture is raw job text plus the parsed node table;
// keeping the raw text lets one capture serve snapshots for any horizon
// and partition.
type service struct {
	client          *slurm.Client
	policy          forecast.Policy
	horizonHours    float64
	refreshInterval time.Duration
	store           *db.HistoryStore
	publisher       *kafkaPublisher

	refreshCh chan struct{}

	mu         sync.Mutex
	rawJobs    string
	capacities map[string]forecast.NodeCapacity
	fetchedAt  time.Time
	haveState  bool
	lastErr    error
}

func newService(
	client *slurm.Client,
	policy forecast.Policy,
	horizonHours float64,
	refreshInterval time.Duration,
) *service {
	return &service{
		client:          client,
		policy:          policy,
		horizonHours:    horizonHours,
		refreshInterval: refreshInterval,
		refreshCh:       make(chan struct{}, 1),
	}
}

// run refreshes on a ticker until the context is canceled.  A trigger on
// refreshCh forces an immediate refresh between ticks.
func (s *service) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	s.refresh(ctx)
	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(ctx)
		case <-s.refreshCh:
			s.refresh(ctx)
		}
	}
}

// triggerRefresh requests an immediate refresh without blocking; a refresh
// already pending is good enough.
func (s *service) triggerRefresh() {
	select {
	case s.refreshCh <- struct{}{}:
	default:
	}
}

func (s *service) refresh(ctx context.Context) {
	rawJobs, err := s.client.RawJobs()
	if err != nil {
		s.noteFailure(err)
		return
	}
	rawNodes, err := s.client.RawNodes()
	if err != nil {
		s.noteFailure(err)
		return
	}
	capacities, dropped := forecast.ParseNodeCapacities(rawNodes)
	if dropped > 0 {
		common.Log.Warningf("Dropped %d node lines during refresh", dropped)
	}
	now := time.Now()

	s.mu.Lock()
	s.rawJobs = rawJobs
	s.capacities = capacities
	s.fetchedAt = now
	s.haveState = true
	s.lastErr = nil
	s.mu.Unlock()
	common.Log.Infof("Refreshed Slurm state: %d GPU nodes", len(capacities))

	if s.publisher == nil && s.store == nil {
		return
	}
	forecaster := s.forecaster()
	bundle := forecaster.BuildBundle(now, s.horizonHours, rawJobs, capacities)
	s.export(ctx, "cluster", &bundle.AllGpus)
	if bundle.LargeGpu != nil {
		s.export(ctx, s.policy.LargeGpuPartition, bundle.LargeGpu)
	}
	if s.publisher != nil {
		s.publisher.publishPartitions(ctx, partitionTable(capacities))
	}
}

func (s *service) noteFailure(err error) {
	common.Log.Errorf("Refresh failed: %v", err)
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func (s *service) export(ctx context.Context, scope string, snapshot *forecast.Snapshot) {
	if s.publisher != nil {
		s.publisher.publishSnapshot(ctx, scope, snapshot)
	}
	if s.store != nil {
		if err := s.store.Save(ctx, scope, snapshot); err != nil {
			common.Log.Errorf("SOFT ERROR: %v", err)
		}
	}
}

func (s *service) forecaster() *forecast.Forecaster {
	return &forecast.Forecaster{
		Policy: s.policy,
		Hosts:  forecast.NewHostExpander(s.client.Hostnames),
	}
}

// state returns the last good capture, or an error when no capture has
// ever succeeded.
func (s *service) state() (string, map[string]forecast.NodeCapacity, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.haveState {
		err := s.lastErr
		if err == nil {
			err = fmt.Errorf("%w: no Slurm state fetched yet", slurm.ErrForecastUnavailable)
		}
		return "", nil, time.Time{}, err
	}
	return s.rawJobs, s.capacities, s.fetchedAt, nil
}

// snapshot computes one snapshot from the last good capture.
func (s *service) snapshot(horizonHours float64, scope forecast.Scope) (forecast.Snapshot, error) {
	rawJobs, capacities, fetchedAt, err := s.state()
	if err != nil {
		return forecast.Snapshot{}, err
	}
	if horizonHours <= 0 {
		horizonHours = s.horizonHours
	}
	return s.forecaster().BuildSnapshot(fetchedAt, horizonHours, rawJobs, capacities, scope), nil
}

// bundle computes the cluster-wide plus large-GPU snapshot pair from the
// last good capture.
func (s *service) bundle(horizonHours float64) (forecast.Bundle, error) {
	rawJobs, capacities, fetchedAt, err := s.state()
	if err != nil {
		return forecast.Bundle{}, err
	}
	if horizonHours <= 0 {
		horizonHours = s.horizonHours
	}
	return s.forecaster().BuildBundle(fetchedAt, horizonHours, rawJobs, capacities), nil
}

// partitionTable converts the node table into the partition export
// format: one entry per partition listing its member nodes.
func partitionTable(capacities map[string]forecast.NodeCapacity) []newfmt.ClusterPartition {
	nodesByPartition := make(map[string][]string)
	for nodeName, capacity := range capacities {
		for _, partitionName := range capacity.PartitionNames {
			nodesByPartition[partitionName] = append(nodesByPartition[partitionName], nodeName)
		}
	}
	partitionNames := make([]string, 0, len(nodesByPartition))
	for partitionName := range nodesByPartition {
		partitionNames = append(partitionNames, partitionName)
	}
	sort.Strings(partitionNames)
	partitions := make([]newfmt.ClusterPartition, 0, len(partitionNames))
	for _, partitionName := range partitionNames {
		nodeNames := nodesByPartition[partitionName]
		sort.Strings(nodeNames)
		nodes := make([]newfmt.HostnameRange, 0, len(nodeNames))
		for _, nodeName := range nodeNames {
			nodes = append(nodes, newfmt.HostnameRange(nodeName))
		}
		partitions = append(partitions, newfmt.ClusterPartition{
			Name:  newfmt.NonemptyString(partitionName),
			Nodes: nodes,
		})
	}
	return partitions
}
