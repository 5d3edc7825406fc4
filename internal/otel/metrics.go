package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

var (
	initMetricsOnce     sync.Once
	mutationsCounter    metric.Int64Counter
	flushesCounter      metric.Int64Counter
	flushDuration       metric.Float64Histogram
	actionsCounter      metric.Int64Counter
	resolutionsCounter  metric.Int64Counter
	sseEventsCounter    metric.Int64Counter
	sseConnectionsGauge metric.Int64ObservableGauge
	sseConnections      int64
	sseConnectionsMu    sync.Mutex
)

// InitMetrics creates the meter instruments. Safe to call multiple times;
// only runs once. Call after InitMeterProvider.
func InitMetrics(ctx context.Context) error {
	var err error
	initMetricsOnce.Do(func() {
		m := Meter()
		mutationsCounter, err = m.Int64Counter("corius_store_mutations_total", metric.WithDescription("Total store mutations (add, update, delete)"))
		if err != nil {
			return
		}
		flushesCounter, err = m.Int64Counter("corius_store_flushes_total", metric.WithDescription("Total debounced flushes by outcome"))
		if err != nil {
			return
		}
		flushDuration, err = m.Float64Histogram("corius_store_flush_duration_seconds", metric.WithDescription("Flush duration in seconds"))
		if err != nil {
			return
		}
		actionsCounter, err = m.Int64Counter("corius_actions_total", metric.WithDescription("Total dispatched agent actions by intent and terminal status"))
		if err != nil {
			return
		}
		resolutionsCounter, err = m.Int64Counter("corius_resolutions_total", metric.WithDescription("Free-text target resolutions by outcome"))
		if err != nil {
			return
		}
		sseEventsCounter, err = m.Int64Counter("corius_sse_events_total", metric.WithDescription("Total SSE events published"))
		if err != nil {
			return
		}
		sseConnectionsGauge, err = m.Int64ObservableGauge("corius_sse_connections", metric.WithDescription("Current SSE subscriber count"))
		if err != nil {
			return
		}
		_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
			sseConnectionsMu.Lock()
			n := sseConnections
			sseConnectionsMu.Unlock()
			o.ObserveInt64(sseConnectionsGauge, n)
			return nil
		}, sseConnectionsGauge)
		if err != nil {
			return
		}
	})
	return err
}

// RecordMutation records one store mutation (add, update, delete).
func RecordMutation(ctx context.Context, op string, itemType string) {
	if mutationsCounter == nil {
		return
	}
	mutationsCounter.Add(ctx, 1, metric.WithAttributes(
		AttrOperation.String(op),
		AttrItemType.String(itemType),
	))
}

// RecordFlush records one flush attempt and its duration.
func RecordFlush(ctx context.Context, outcome string, duration time.Duration) {
	if flushesCounter != nil {
		flushesCounter.Add(ctx, 1, metric.WithAttributes(AttrOutcome.String(outcome)))
	}
	if flushDuration != nil {
		flushDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(AttrOutcome.String(outcome)))
	}
}

// RecordAction records one agent action reaching a terminal status.
func RecordAction(ctx context.Context, intent string, status string) {
	if actionsCounter == nil {
		return
	}
	actionsCounter.Add(ctx, 1, metric.WithAttributes(
		AttrIntent.String(intent),
		AttrStatus.String(status),
	))
}

// RecordResolution records one free-text resolution outcome (unique,
// ambiguous, not_found).
func RecordResolution(ctx context.Context, outcome string) {
	if resolutionsCounter == nil {
		return
	}
	resolutionsCounter.Add(ctx, 1, metric.WithAttributes(AttrOutcome.String(outcome)))
}

// RecordSSEEvent records one SSE event published.
func RecordSSEEvent(ctx context.Context) {
	if sseEventsCounter != nil {
		sseEventsCounter.Add(ctx, 1)
	}
}

// AddSSEConnection adds 1 to the SSE connection gauge (call on subscribe).
func AddSSEConnection() {
	sseConnectionsMu.Lock()
	sseConnections++
	sseConnectionsMu.Unlock()
}

// RemoveSSEConnection subtracts 1 from the SSE connection gauge (call on
// unsubscribe).
func RemoveSSEConnection() {
	sseConnectionsMu.Lock()
	sseConnections--
	if sseConnections < 0 {
		sseConnections = 0
	}
	sseConnectionsMu.Unlock()
}
