package publish

import (
	"context"

	"fusion-trader/internal/tradelog"
	"fusion-trader/internal/types"
)

// JournalPublisher appends every trade event to the daily trade journal.
type JournalPublisher struct {
	j *tradelog.Journal
}

func NewJournalPublisher(j *tradelog.Journal) *JournalPublisher {
	return &JournalPublisher{j: j}
}

func (p *JournalPublisher) Name() string { return "journal" }

func (p *JournalPublisher) Publish(_ context.Context, ev types.TradeEvent) error {
	var qty int64
	if ev.Position != nil {
		qty = ev.Position.Quantity
	}
	return p.j.Append(tradelog.Entry{Trade: ev.Trade, Cash: ev.Cash.StringFixed(2), PositionQty: qty})
}
