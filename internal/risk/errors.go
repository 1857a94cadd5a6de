package risk

import (
	"errors"
	"fmt"
)

var (
	ErrRiskLimitExceeded    = errors.New("RISK_LIMIT_EXCEEDED")
	ErrInsufficientCash     = errors.New("INSUFFICIENT_CASH")
	ErrExposureExceeded     = errors.New("EXPOSURE_EXCEEDED")
	ErrPositionExists       = errors.New("POSITION_EXISTS")
	ErrOutsideTradingWindow = errors.New("OUTSIDE_TRADING_WINDOW")
)

// Rejection is returned when the gate refuses a BUY. It unwraps to one of the
// sentinel errors above.
type Rejection struct {
	Instrument string
	Reason     error
	Detail     string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("risk rejected %s: %s: %s", r.Instrument, r.Reason, r.Detail)
}

func (r *Rejection) Unwrap() error { return r.Reason }

// Code is the sentinel's name, used as a metrics label.
func (r *Rejection) Code() string { return r.Reason.Error() }

func reject(instrument string, reason error, format string, args ...any) *Rejection {
	return &Rejection{Instrument: instrument, Reason: reason, Detail: fmt.Sprintf(format, args...)}
}
