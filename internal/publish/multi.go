// Package publish fans committed trade events out to notification layers:
// Kafka, WebSocket clients and the on-disk trade journal.
package publish

import (
	"context"
	"errors"
	"fmt"

	"fusion-trader/internal/interfaces"
	"fusion-trader/internal/logger"
	"fusion-trader/internal/metrics"
	"fusion-trader/internal/types"
)

// Named is implemented by publishers that label their own failures.
type Named interface {
	Name() string
}

// Multi delivers to every publisher, even after one fails, and joins the errors.
type Multi struct {
	pubs []interfaces.Publisher
}

func NewMulti(pubs ...interfaces.Publisher) *Multi {
	out := make([]interfaces.Publisher, 0, len(pubs))
	for _, p := range pubs {
		if p != nil {
			out = append(out, p)
		}
	}
	return &Multi{pubs: out}
}

func (m *Multi) Len() int { return len(m.pubs) }

func (m *Multi) Publish(ctx context.Context, ev types.TradeEvent) error {
	var errs []error
	for i, p := range m.pubs {
		if err := p.Publish(ctx, ev); err != nil {
			name := fmt.Sprintf("publisher-%d", i)
			if n, ok := p.(Named); ok {
				name = n.Name()
			}
			metrics.PublishFailures.WithLabelValues(name).Inc()
			logger.Warn(ctx, "Trade event not delivered", "publisher", name, "trade_id", ev.Trade.ID, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
