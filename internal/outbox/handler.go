package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/NordCoder/streamcheck/internal/domain/channel"
	domainkafka "github.com/NordCoder/streamcheck/internal/domain/kafka"
	"github.com/NordCoder/streamcheck/internal/domain/outbox"
	"github.com/NordCoder/streamcheck/internal/obs/retry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var (
	outboxHandlerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_handler_latency_seconds",
		Help:    "Latency of outbox handlers including retries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	outboxHandlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_handler_errors_total",
		Help: "Errors in outbox handlers (after retries).",
	}, []string{"kind"})
)

// StatusChangedKey is the idempotency key of a change; one per channel per run.
func StatusChangedKey(ch channel.Change) string {
	return fmt.Sprintf("status:%s:%s", ch.RunID, ch.Name)
}

func EncodeStatusChanged(ch channel.Change) ([]byte, error) {
	b, err := json.Marshal(ch)
	if err != nil {
		return nil, fmt.Errorf("marshal status change: %w", err)
	}
	return b, nil
}

func instrument(kind outbox.Kind, h outbox.KindHandler, pol retry.Policy) outbox.KindHandler {
	tr := otel.Tracer("outbox.handler")
	label := kind.String()
	if pol.Name == "" {
		pol.Name = "outbox_" + label
	}
	return func(ctx context.Context, data []byte) error {
		ctx, span := tr.Start(ctx, "outbox.handle "+label)
		defer span.End()

		start := time.Now()
		err := retry.Do(ctx, func() error { return h(ctx, data) }, pol)
		outboxHandlerLatency.WithLabelValues(label).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			outboxHandlerErrors.WithLabelValues(label).Inc()
		}
		return err
	}
}

func MakeGlobalOutboxHandler(pub domainkafka.StatusEvents, pol retry.Policy) outbox.GlobalHandler {
	statusChanged := instrument(outbox.KindStatusChanged, func(ctx context.Context, data []byte) error {
		var ch channel.Change
		if err := json.Unmarshal(data, &ch); err != nil {
			return retry.Permanent(fmt.Errorf("unmarshal status-changed payload: %w", err))
		}
		return pub.PublishStatusChanged(ctx, ch)
	}, pol)

	return func(kind outbox.Kind) (outbox.KindHandler, error) {
		switch kind {
		case outbox.KindStatusChanged:
			return statusChanged, nil
		default:
			return nil, fmt.Errorf("unsupported outbox kind: %d", kind)
		}
	}
}
