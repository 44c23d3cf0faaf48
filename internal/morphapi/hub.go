// Package morphapi exposes the morphology pipeline's per-layer delta
// stream over HTTP SSE, WebSocket, and gRPC. It is a thin adapter: every
// method here either feeds a pipeline.Pipeline or forwards the deltas it
// already produced, never reimplementing morphology logic.
package morphapi

import (
	"encoding/json"
	"fmt"
	"sync"

	"jupitor/internal/morph/pipeline"
	"jupitor/internal/morph/shape"
)

// Layer names one of the pipeline's delta-emitting outputs a stream can
// subscribe to. CK deltas are internal plumbing between merge and
// parting and are not exposed.
type Layer string

const (
	LayerParting  Layer = "parting"
	LayerStroke   Layer = "stroke"
	LayerSegment  Layer = "segment"
	LayerSubTrend Layer = "subtrend"
	LayerCenter   Layer = "center"
)

// Event is the wire envelope for one delta: a kind tag plus its
// JSON-encoded payload. A generated proto oneof would need one message
// variant per layer type for no real benefit over this envelope, so
// both the HTTP and gRPC surfaces share it.
type Event struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type streamKey struct {
	symbol      string
	granularity string
	layer       Layer
}

// Hub owns one pipeline.Pipeline per (symbol, granularity) stream and
// fans the deltas each Step produces out to per-layer subscribers.
type Hub struct {
	mu        sync.Mutex
	pipelines map[string]*pipeline.Pipeline

	subsMu    sync.Mutex
	nextSubID int
	subs      map[streamKey]map[int]chan Event
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{
		pipelines: make(map[string]*pipeline.Pipeline),
		subs:      make(map[streamKey]map[int]chan Event),
	}
}

// Register installs the Pipeline backing a (symbol, granularity) stream.
// Callers feed it bars through Hub.Step, not by calling p.Step directly,
// so the Hub can broadcast each step's deltas.
func (h *Hub) Register(symbol, granularity string, p *pipeline.Pipeline) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pipelines[pipelineKey(symbol, granularity)] = p
}

// Step feeds one bar delta through the named stream's Pipeline and
// broadcasts the resulting per-layer deltas to that stream's
// subscribers before returning them to the caller.
func (h *Hub) Step(symbol, granularity string, bar shape.Delta[shape.Bar]) (pipeline.StepResult, error) {
	h.mu.Lock()
	p, ok := h.pipelines[pipelineKey(symbol, granularity)]
	h.mu.Unlock()
	if !ok {
		return pipeline.StepResult{}, fmt.Errorf("morphapi: no pipeline registered for %s/%s", symbol, granularity)
	}

	res, err := p.Step(bar)
	if err != nil {
		return res, err
	}

	publish(h, symbol, granularity, LayerParting, res.Parting)
	publish(h, symbol, granularity, LayerStroke, res.Stroke)
	publish(h, symbol, granularity, LayerSegment, res.Segment)
	for _, d := range res.SubTrends {
		publish(h, symbol, granularity, LayerSubTrend, d)
	}
	for _, d := range res.Centers {
		publish(h, symbol, granularity, LayerCenter, d)
	}
	return res, nil
}

// Subscribe returns a channel that receives every Event broadcast for
// (symbol, granularity, layer). bufSize bounds the channel; a slow
// consumer has events dropped rather than blocking Step.
func (h *Hub) Subscribe(symbol, granularity string, layer Layer, bufSize int) (int, <-chan Event) {
	key := streamKey{symbol, granularity, layer}
	ch := make(chan Event, bufSize)

	h.subsMu.Lock()
	defer h.subsMu.Unlock()
	id := h.nextSubID
	h.nextSubID++
	if h.subs[key] == nil {
		h.subs[key] = make(map[int]chan Event)
	}
	h.subs[key][id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(symbol, granularity string, layer Layer, id int) {
	key := streamKey{symbol, granularity, layer}
	h.subsMu.Lock()
	defer h.subsMu.Unlock()
	if m, ok := h.subs[key]; ok {
		if ch, ok := m[id]; ok {
			delete(m, id)
			close(ch)
		}
	}
}

func publish[T any](h *Hub, symbol, granularity string, layer Layer, d shape.Delta[T]) {
	if d.IsNone() {
		return
	}
	evt, err := encodeEvent(d)
	if err != nil {
		return
	}
	key := streamKey{symbol, granularity, layer}

	h.subsMu.Lock()
	defer h.subsMu.Unlock()
	for _, ch := range h.subs[key] {
		select {
		case ch <- evt:
		default:
			// Slow consumer — drop the event rather than block Step.
		}
	}
}

func encodeEvent[T any](d shape.Delta[T]) (Event, error) {
	switch d.Kind() {
	case shape.KindAdd:
		v, _ := d.Add()
		b, err := json.Marshal(v)
		return Event{Kind: "add", Payload: b}, err
	case shape.KindUpdate:
		v, _ := d.Update()
		b, err := json.Marshal(v)
		return Event{Kind: "update", Payload: b}, err
	case shape.KindDelete:
		v, _ := d.Delete()
		b, err := json.Marshal(v)
		return Event{Kind: "delete", Payload: b}, err
	default:
		return Event{Kind: "none"}, nil
	}
}

func pipelineKey(symbol, granularity string) string { return symbol + "|" + granularity }

// parseLayer validates a path-supplied layer name against the known
// Layer constants, shared by the SSE and WebSocket surfaces.
func parseLayer(s string) (Layer, bool) {
	switch l := Layer(s); l {
	case LayerParting, LayerStroke, LayerSegment, LayerSubTrend, LayerCenter:
		return l, true
	default:
		return "", false
	}
}
