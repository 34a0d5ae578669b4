package daemon

import (
	"context"
	"encoding/json"

	"github.com/NordicHPC/sonar/util/formats/newfmt"
	"github.com/twmb/franz-go/pkg/kgo"

	"slurmgpu/common"
	"slurmgpu/forecast"
)

const (
	forecastTopicSuffix   = ".gpu-forecast"
	partitionsTopicSuffix = ".gpu-partitions"
)

// kafkaPublisher pushes snapshots and the partition table to a broker.
// Publish failures are soft: they are logged and the refresh loop
// continues, the broker may simply be down for a while.
type kafkaPublisher struct {
	client  *kgo.Client
	cluster string
}

func newKafkaPublisher(broker, cluster string) (*kafkaPublisher, error) {
	client, err := kgo.NewClient(kgo.SeedBrokers(broker))
	if err != nil {
		return nil, err
	}
	return &kafkaPublisher{client: client, cluster: cluster}, nil
}

func (p *kafkaPublisher) publishSnapshot(ctx context.Context, scope string, snapshot *forecast.Snapshot) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		common.Log.Errorf("SOFT ERROR: Cannot encode snapshot for %s: %v", scope, err)
		return
	}
	record := &kgo.Record{
		Topic: p.cluster + forecastTopicSuffix,
		Key:   []byte(scope),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		common.Log.Errorf("SOFT ERROR: Cannot publish snapshot for %s: %v", scope, err)
	}
}

func (p *kafkaPublisher) publishPartitions(ctx context.Context, partitions []newfmt.ClusterPartition) {
	payload, err := json.Marshal(partitions)
	if err != nil {
		common.Log.Errorf("SOFT ERROR: Cannot encode partition table: %v", err)
		return
	}
	record := &kgo.Record{
		Topic: p.cluster + partitionsTopicSuffix,
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		common.Log.Errorf("SOFT ERROR: Cannot publish partition table: %v", err)
	}
}

func (p *kafkaPublisher) Close() {
	p.client.Close()
}
