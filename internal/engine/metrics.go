package engine

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("mfnet.engine")
	meter  = otel.Meter("mfnet.engine")
)

var (
	executedNodes metric.Int64Counter
	runs          metric.Int64Counter
	metricsOnce   sync.Once
	metricsErr    error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		executedNodes, metricsErr = meter.Int64Counter(
			"mfnet_engine_executed_nodes_total",
			metric.WithDescription("Number of node executions across all evaluations"),
		)
		if metricsErr != nil {
			return
		}
		runs, metricsErr = meter.Int64Counter(
			"mfnet_engine_runs_total",
			metric.WithDescription("Number of successful evaluations"),
		)
	})
	return metricsErr
}

func recordExecution(ctx context.Context, executed int64) {
	if err := initMetrics(); err != nil {
		return
	}
	runs.Add(ctx, 1)
	executedNodes.Add(ctx, executed)
}
