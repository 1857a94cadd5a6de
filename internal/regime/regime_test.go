package regime

import (
	"testing"

	"fusion-trader/internal/types"
)

func TestClassify(t *testing.T) {
	c := New(DefaultConfig())
	tests := []struct {
		value float64
		want  types.Regime
	}{
		{30, types.RegimeHighPanic},
		{25, types.RegimeHighPanic},
		{24.99, types.RegimeNeutral},
		{20, types.RegimeNeutral},
		{15, types.RegimeLowFear},
		{9, types.RegimeLowFear},
	}
	for _, tt := range tests {
		got := c.Classify(&types.VolatilityReading{Value: tt.value})
		if got != tt.want {
			t.Errorf("Expected %s for %.2f, got %s", tt.want, tt.value, got)
		}
	}
}

func TestClassify_NoReading(t *testing.T) {
	c := New(DefaultConfig())
	if got := c.Classify(nil); got != types.RegimeNoData {
		t.Errorf("Expected NO_DATA, got %s", got)
	}
}
