package decision

import (
	"testing"
	"time"

	"fusion-trader/internal/types"
)

func TestCache_SetGet(t *testing.T) {
	c, err := NewCache(100, time.Minute)
	if err != nil {
		t.Fatalf("Expected cache, got %v", err)
	}
	defer c.Close()

	if _, ok := c.Get("INFY"); ok {
		t.Error("Expected miss on empty cache")
	}

	c.Set(types.DecisionResult{Instrument: "INFY", Decision: types.Buy, Confidence: 0.7})
	got, ok := c.Get("INFY")
	if !ok {
		t.Fatal("Expected cached decision")
	}
	if got.Decision != types.Buy || got.Confidence != 0.7 {
		t.Errorf("Expected BUY 0.7, got %s %f", got.Decision, got.Confidence)
	}

	c.Del("INFY")
	if _, ok := c.Get("INFY"); ok {
		t.Error("Expected miss after delete")
	}
}
