package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Signal is the action a strategy or the composer recommends.
type Signal string

const (
	StrongBuy Signal = "STRONG_BUY"
	Buy       Signal = "BUY"
	Hold      Signal = "HOLD"
	Sell      Signal = "SELL"
	NoData    Signal = "NO_DATA"
)

// IsBuy reports whether the signal opens or extends a long position.
func (s Signal) IsBuy() bool { return s == Buy || s == StrongBuy }

// TechnicalSignal is the output of the technical evaluator.
type TechnicalSignal string

const (
	TechBuy    TechnicalSignal = "BUY"
	TechHold   TechnicalSignal = "HOLD"
	TechNoData TechnicalSignal = "NO_DATA"
)

// Regime classifies market-wide risk appetite from the volatility index.
type Regime string

const (
	RegimeHighPanic Regime = "HIGH_PANIC"
	RegimeNeutral   Regime = "NEUTRAL"
	RegimeLowFear   Regime = "LOW_FEAR"
	RegimeNoData    Regime = "NO_DATA"
)

// EventKind is the classification attached by the news ingestion pipeline.
type EventKind string

const (
	EventNews              EventKind = "NEWS"
	EventEarnings          EventKind = "EARNINGS"
	EventEconomicIndicator EventKind = "ECONOMIC_INDICATOR"
)

// PriceBar is one bar from the market-data feed. Zero Open/High/Low/Volume
// mean the feed did not supply them.
type PriceBar struct {
	Instrument  string    `json:"instrument"`
	Ts          time.Time `json:"ts"`
	Open        float64   `json:"open,omitempty"`
	High        float64   `json:"high,omitempty"`
	Low         float64   `json:"low,omitempty"`
	Close       float64   `json:"close"`
	Volume      float64   `json:"volume,omitempty"`
	SMA5        float64   `json:"sma_5,omitempty"`
	Volatility5 float64   `json:"volatility_5,omitempty"`
	RSI         float64   `json:"rsi,omitempty"`
	HasRSI      bool      `json:"has_rsi,omitempty"`
}

type VolatilityReading struct {
	Ts    time.Time `json:"ts"`
	Value float64   `json:"value"`
}

// EventRecord is a news/earnings/macro item. Instrument is empty for
// macro-tagged records, in which case Tag carries the macro tag.
type EventRecord struct {
	ID         string    `json:"id"`
	Instrument string    `json:"instrument,omitempty"`
	Tag        string    `json:"tag,omitempty"`
	Ts         time.Time `json:"ts"`
	Content    string    `json:"content"`
	Score      *float64  `json:"score,omitempty"` // [0,1]
	Insight    string    `json:"insight,omitempty"`
	Kind       EventKind `json:"kind"`
}

// IsMacro reports whether the record is not bound to a single instrument.
func (e EventRecord) IsMacro() bool { return e.Instrument == "" }

// TechnicalSnapshot is recomputed on every decision request and never persisted.
type TechnicalSnapshot struct {
	Instrument      string    `json:"instrument"`
	Ts              time.Time `json:"ts"`
	Close           float64   `json:"close"`
	Open            float64   `json:"open,omitempty"`
	PrevClose       float64   `json:"prev_close"`
	PrevPrevClose   float64   `json:"prev_prev_close"`
	SMA5            float64   `json:"sma_5"`
	Volatility5     float64   `json:"volatility_5"`
	AvgVolatility20 float64   `json:"avg_volatility_20"`
	RSI             *float64  `json:"rsi,omitempty"`
}

// VolatilityRatio is volatility_5 / avg_volatility_20, or 0 when the average
// is not positive.
func (s TechnicalSnapshot) VolatilityRatio() float64 {
	if s.AvgVolatility20 <= 0 {
		return 0
	}
	return s.Volatility5 / s.AvgVolatility20
}

// DeviationPct is the percentage distance of close from sma_5.
func (s TechnicalSnapshot) DeviationPct() float64 {
	if s.SMA5 == 0 {
		return 0
	}
	return (s.Close - s.SMA5) / s.SMA5 * 100
}

// GapPct is the signed open-vs-previous-close gap in percent. Zero when either
// side is missing.
func (s TechnicalSnapshot) GapPct() float64 {
	if s.Open == 0 || s.PrevClose == 0 {
		return 0
	}
	return (s.Open - s.PrevClose) / s.PrevClose * 100
}

// PrevSessionReturnPct is the previous session's close-to-close return.
func (s TechnicalSnapshot) PrevSessionReturnPct() float64 {
	if s.PrevPrevClose == 0 {
		return 0
	}
	return (s.PrevClose - s.PrevPrevClose) / s.PrevPrevClose * 100
}

type StrategyResult struct {
	Signal        Signal   `json:"signal"`
	Confidence    float64  `json:"confidence"`
	Reasoning     string   `json:"reasoning"`
	StopLossPct   *float64 `json:"stop_loss_pct,omitempty"`
	TakeProfitPct *float64 `json:"take_profit_pct,omitempty"`
	Insight       string   `json:"insight,omitempty"`
	Strategy      string   `json:"strategy"`
}

// Degradation names why a decision fell back to a reduced path.
type Degradation string

const (
	DegradationNone                Degradation = "NONE"
	DegradationNoData              Degradation = "NO_DATA"
	DegradationStrategyUnavailable Degradation = "STRATEGY_UNAVAILABLE"
	DegradationFeedUnavailable     Degradation = "FEED_UNAVAILABLE"
)

// DecisionResult is what get_decision returns to presentation layers.
type DecisionResult struct {
	Instrument    string             `json:"instrument"`
	Decision      Signal             `json:"decision"`
	Confidence    float64            `json:"confidence"`
	Reasoning     string             `json:"reasoning"`
	StrategyName  string             `json:"strategy_name"`
	SelectedBy    string             `json:"selected_by,omitempty"`
	Sentiment     float64            `json:"sentiment"`
	Technical     TechnicalSignal    `json:"technical"`
	Regime        Regime             `json:"regime"`
	Insight       string             `json:"insight,omitempty"`
	StopLossPct   *float64           `json:"stop_loss_pct,omitempty"`
	TakeProfitPct *float64           `json:"take_profit_pct,omitempty"`
	Degradation   Degradation        `json:"degradation"`
	Snapshot      *TechnicalSnapshot `json:"snapshot,omitempty"`
	AsOf          time.Time          `json:"as_of"`
}

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Exit and entry tags recorded on trades.
const (
	TagStopLoss   = "STOP_LOSS"
	TagBreakEven  = "STOP"
	TagTimeExit   = "TIME_EXIT"
	TagTakeProfit = "TAKE_PROFIT"
	TagSell       = "SELL"
)

// Position is an open holding. At most one exists per instrument.
type Position struct {
	Instrument    string          `json:"instrument"`
	Quantity      int64           `json:"quantity"`
	AvgEntry      decimal.Decimal `json:"avg_entry"`
	EntryTime     time.Time       `json:"entry_time"`
	Strategy      string          `json:"strategy"`
	StopLossPct   float64         `json:"stop_loss_pct"`
	TakeProfitPct float64         `json:"take_profit_pct"`
	Partial       bool            `json:"partial"`
	BreakEven     decimal.Decimal `json:"break_even"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// MarketValue marks the position at price.
func (p Position) MarketValue(price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(p.Quantity))
}

// Trade is an immutable, append-only execution record.
type Trade struct {
	ID          string          `json:"id"`
	Ts          time.Time       `json:"ts"`
	Instrument  string          `json:"instrument"`
	Side        Side            `json:"side"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Commission  decimal.Decimal `json:"commission"`
	Notional    decimal.Decimal `json:"notional"`
	Tag         string          `json:"tag"`
	Sentiment   float64         `json:"sentiment"`
	Strategy    string          `json:"strategy"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	LogReturn   float64         `json:"log_return"`
}

// StepResult summarises one engine cycle for one instrument.
type StepResult struct {
	Instrument string         `json:"instrument"`
	Decision   DecisionResult `json:"decision"`
	Price      float64        `json:"price"`
	Time       time.Time      `json:"time"`
	Trades     []Trade        `json:"trades"`
	Reason     string         `json:"reason"`
}

// DecisionRequest carries everything the composer needs for one instrument.
// Bars are most recent first.
type DecisionRequest struct {
	Instrument string
	Bars       []PriceBar
	Volatility *VolatilityReading
	Events     []EventRecord
	AsOf       time.Time
}

// TradeEvent is what publishers receive after a ledger transaction commits.
type TradeEvent struct {
	Type     string          `json:"type"` // "trade_executed"
	Trade    Trade           `json:"trade"`
	Position *Position       `json:"position,omitempty"`
	Cash     decimal.Decimal `json:"cash"`
}
