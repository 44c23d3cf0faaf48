package jupitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"jupitor/internal/morph/calendar"
	"jupitor/internal/morph/pipeline"
	"jupitor/internal/morph/shape"
	"jupitor/internal/morph/stroke"
	"jupitor/internal/morphapi"
)

func newMorphMux(s *morphapi.Server) *http.ServeMux {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8080/"
	c := NewClient(baseURL)

	if c == nil {
		t.Fatal("expected non-nil client")
	}
	if c.baseURL != "http://localhost:8080" {
		t.Errorf("expected trailing slash trimmed, got %q", c.baseURL)
	}
	if c.httpClient == nil {
		t.Fatal("expected non-nil httpClient")
	}
}

func newTestPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	dates := calendar.NewDateSetFromStrings([]string{"2020-02-10"})
	ticks, err := calendar.NewTickSet(calendar.Tick1Min, dates)
	if err != nil {
		t.Fatal(err)
	}
	return pipeline.New(pipeline.Config{
		Stroke:      stroke.DefaultConfig(),
		SourceTicks: ticks,
		TargetTicks: ticks,
	})
}

func zigzagBars(legs, legLen int) []shape.Bar {
	var bars []shape.Bar
	minute := 0
	base := 0.0
	up := true
	for l := 0; l < legs*2; l++ {
		for i := 0; i < legLen; i++ {
			if up {
				base += 1.0
			} else {
				base -= 1.0
			}
			bars = append(bars, shape.Bar{
				Timestamp: time.Date(2020, 2, 10, 10, minute, 0, 0, time.UTC),
				Low:       decimal.NewFromFloat(base),
				High:      decimal.NewFromFloat(base + 0.5),
			})
			minute++
		}
		base -= 0.25
		up = !up
	}
	return bars
}

func TestClientStreamDeltasReceivesEvents(t *testing.T) {
	hub := morphapi.NewHub()
	hub.Register("AAPL", "1m", newTestPipeline(t))
	server := morphapi.NewServer(hub)

	srv := httptest.NewServer(newMorphMux(server))
	defer srv.Close()

	c := NewClient(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	deltas, errc, err := c.StreamDeltas(ctx, "AAPL", "1m", "parting")
	if err != nil {
		t.Fatalf("StreamDeltas: %v", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		for _, b := range zigzagBars(4, 5) {
			hub.Step("AAPL", "1m", shape.AddDelta(b))
		}
	}()

	select {
	case d, ok := <-deltas:
		if !ok {
			t.Fatal("deltas channel closed before any event arrived")
		}
		if d.Kind == "" {
			t.Error("expected a non-empty delta kind")
		}
	case err := <-errc:
		t.Fatalf("unexpected stream error: %v", err)
	case <-ctx.Done():
		t.Fatal("timed out waiting for a parting delta")
	}
}

func TestClientStreamDeltasUnknownLayer(t *testing.T) {
	hub := morphapi.NewHub()
	server := morphapi.NewServer(hub)
	srv := httptest.NewServer(newMorphMux(server))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, _, err := c.StreamDeltas(context.Background(), "AAPL", "1m", "bogus")
	if err == nil {
		t.Fatal("expected an error for an unknown layer")
	}
}
