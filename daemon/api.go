package daemon

import (
	"context"
	"net/http"

	"github.com/NordicHPC/sonar/util/formats/newfmt"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"slurmgpu/db"
	"slurmgpu/forecast"
)

const apiVersion = "0.1.0"

type forecastInput struct {
	Horizon   float64 `query:"horizon" doc:"Forecast horizon in hours; the daemon default when omitted"`
	Partition string  `query:"partition" doc:"Restrict the forecast to one partition"`
	Infer     bool    `query:"infer" doc:"Enable the large-GPU partition inference heuristic"`
}

type forecastOutput struct {
	Body forecast.Snapshot
}

type bundleInput struct {
	Horizon float64 `query:"horizon" doc:"Forecast horizon in hours; the daemon default when omitted"`
}

type bundleOutput struct {
	Body forecast.Bundle
}

type partitionsOutput struct {
	Body []newfmt.ClusterPartition
}

type historyInput struct {
	Scope string `query:"scope" doc:"Snapshot scope, \"cluster\" or a partition name"`
	Limit int    `query:"limit" doc:"Maximum number of rows, newest first"`
}

type historyOutput struct {
	Body []db.HistoryRow
}

type refreshOutput struct {
	Body struct {
		Triggered bool `json:"triggered"`
	}
}

func registerAPI(mux *http.ServeMux, svc *service) {
	api := humago.New(mux, huma.DefaultConfig("slurmgpu", apiVersion))

	huma.Get(api, "/forecast",
		func(ctx context.Context, input *forecastInput) (*forecastOutput, error) {
			snapshot, err := svc.snapshot(input.Horizon, forecast.Scope{
				Partition:     input.Partition,
				InferLargeGpu: input.Infer,
			})
			if err != nil {
				return nil, huma.Error503ServiceUnavailable(err.Error())
			}
			return &forecastOutput{Body: snapshot}, nil
		})

	huma.Get(api, "/bundle",
		func(ctx context.Context, input *bundleInput) (*bundleOutput, error) {
			bundle, err := svc.bundle(input.Horizon)
			if err != nil {
				return nil, huma.Error503ServiceUnavailable(err.Error())
			}
			return &bundleOutput{Body: bundle}, nil
		})

	huma.Get(api, "/partitions",
		func(ctx context.Context, input *struct{}) (*partitionsOutput, error) {
			_, capacities, _, err := svc.state()
			if err != nil {
				return nil, huma.Error503ServiceUnavailable(err.Error())
			}
			return &partitionsOutput{Body: partitionTable(capacities)}, nil
		})

	huma.Get(api, "/history",
		func(ctx context.Context, input *historyInput) (*historyOutput, error) {
			if svc.store == nil {
				return nil, huma.Error404NotFound("history store not configured")
			}
			scope := input.Scope
			if scope == "" {
				scope = "cluster"
			}
			rows, err := svc.store.Recent(ctx, scope, input.Limit)
			if err != nil {
				return nil, huma.Error500InternalServerError(err.Error())
			}
			return &historyOutput{Body: rows}, nil
		})

	huma.Post(api, "/refresh",
		func(ctx context.Context, input *struct{}) (*refreshOutput, error) {
			svc.triggerRefresh()
			out := &refreshOutput{}
			out.Body.Triggered = true
			return out, nil
		})
}
