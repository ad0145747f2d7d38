package websocket

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"mfledger/internal/infrastructure"
)

// hubMetrics are the websocket instruments. A nil *hubMetrics records nothing.
type hubMetrics struct {
	clients  metric.Int64UpDownCounter
	sent     metric.Int64Counter
	dropped  metric.Int64Counter
	sentSize metric.Int64Histogram
}

func newHubMetrics(meter metric.Meter) *hubMetrics {
	if meter == nil {
		meter = otel.Meter(infrastructure.MeterName)
	}
	var (
		m   hubMetrics
		err error
	)
	if m.clients, err = meter.Int64UpDownCounter("mfledger_websocket_clients",
		metric.WithDescription("Connected websocket clients")); err != nil {
		return nil
	}
	if m.sent, err = meter.Int64Counter("mfledger_websocket_messages_sent_total",
		metric.WithDescription("Messages queued to clients, by type")); err != nil {
		return nil
	}
	if m.dropped, err = meter.Int64Counter("mfledger_websocket_clients_dropped_total",
		metric.WithDescription("Clients disconnected because their buffer was full")); err != nil {
		return nil
	}
	if m.sentSize, err = meter.Int64Histogram("mfledger_websocket_message_bytes",
		metric.WithDescription("Size of broadcast messages"),
		metric.WithUnit("By")); err != nil {
		return nil
	}
	return &m
}

func (m *hubMetrics) connected(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.clients.Add(ctx, delta)
}

func (m *hubMetrics) broadcast(ctx context.Context, msgType string, size, delivered int) {
	if m == nil {
		return
	}
	m.sent.Add(ctx, int64(delivered), metric.WithAttributes(attribute.String("type", msgType)))
	m.sentSize.Record(ctx, int64(size))
}

func (m *hubMetrics) drop(ctx context.Context) {
	if m == nil {
		return
	}
	m.dropped.Add(ctx, 1)
}
