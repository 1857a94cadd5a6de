package publish

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"fusion-trader/internal/metrics"
	"fusion-trader/internal/tradelog"
	"fusion-trader/internal/types"
)

func sampleEvent() types.TradeEvent {
	ts := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	return types.TradeEvent{
		Type: "trade_executed",
		Trade: types.Trade{
			ID: "t-1", Ts: ts, Instrument: "ACME", Side: types.SideBuy,
			Quantity: 5, Price: decimal.NewFromInt(100), Notional: decimal.NewFromInt(500),
		},
		Position: &types.Position{Instrument: "ACME", Quantity: 5, AvgEntry: decimal.NewFromInt(100)},
		Cash:     decimal.NewFromInt(99500),
	}
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaPublisher_KeysByInstrument(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, "trade-events", nil)

	if err := p.Publish(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "ACME" {
		t.Errorf("Expected key ACME, got %s", w.msgs[0].Key)
	}
	var got types.TradeEvent
	if err := json.Unmarshal(w.msgs[0].Value, &got); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if got.Trade.ID != "t-1" || !got.Cash.Equal(decimal.NewFromInt(99500)) {
		t.Errorf("Expected payload to round-trip, got %+v", got)
	}
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := newKafkaPublisher(&fakeWriter{err: errors.New("broker down")}, "trade-events", nil)
	if err := p.Publish(context.Background(), sampleEvent()); err == nil {
		t.Error("Expected error from failing writer")
	}
}

type recorder struct {
	name string
	got  []types.TradeEvent
	err  error
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Publish(_ context.Context, ev types.TradeEvent) error {
	r.got = append(r.got, ev)
	return r.err
}

func TestMulti_DeliversPastFailures(t *testing.T) {
	bad := &recorder{name: "bad", err: errors.New("nope")}
	good := &recorder{name: "good"}
	m := NewMulti(bad, nil, good)

	if m.Len() != 2 {
		t.Fatalf("Expected nil publishers skipped, got %d", m.Len())
	}
	err := m.Publish(context.Background(), sampleEvent())
	if err == nil || !strings.Contains(err.Error(), "bad") {
		t.Errorf("Expected joined error naming the failing publisher, got %v", err)
	}
	if len(good.got) != 1 {
		t.Errorf("Expected good publisher to receive the event, got %d", len(good.got))
	}
}

func TestJournalPublisher(t *testing.T) {
	dir := t.TempDir()
	p := NewJournalPublisher(tradelog.New(dir, time.UTC))

	if err := p.Publish(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "2024-03-04.txt"))
	if err != nil {
		t.Fatalf("Expected journal file, got %v", err)
	}
	if !strings.Contains(string(b), `"position_qty":5`) {
		t.Errorf("Expected position quantity in journal line, got %s", b)
	}
}

func TestWSHub_BroadcastsToClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewWSHub()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.Clients() != 1 {
		t.Fatalf("Expected 1 client, got %d", hub.Clients())
	}

	if err := hub.Publish(ctx, sampleEvent()); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got types.TradeEvent
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("bad message: %v", err)
	}
	if got.Trade.Instrument != "ACME" {
		t.Errorf("Expected ACME, got %s", got.Trade.Instrument)
	}
}

func TestWSHub_FullBufferCountsDrop(t *testing.T) {
	ctx := context.Background()
	hub := NewWSHub()
	for i := 0; i < cap(hub.broadcast); i++ {
		if err := hub.Publish(ctx, sampleEvent()); err != nil {
			t.Fatalf("Expected room in buffer at %d, got %v", i, err)
		}
	}

	if err := hub.Publish(ctx, sampleEvent()); !errors.Is(err, ErrHubFull) {
		t.Fatalf("Expected ErrHubFull, got %v", err)
	}

	before := testutil.ToFloat64(metrics.PublishFailures.WithLabelValues("ws"))
	err := NewMulti(hub).Publish(ctx, sampleEvent())
	if !errors.Is(err, ErrHubFull) {
		t.Errorf("Expected Multi to surface ErrHubFull, got %v", err)
	}
	if got := testutil.ToFloat64(metrics.PublishFailures.WithLabelValues("ws")); got != before+1 {
		t.Errorf("Expected ws failure count %v, got %v", before+1, got)
	}
}
