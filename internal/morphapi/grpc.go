package morphapi

import (
	"context"

	"google.golang.org/grpc"
)

// StreamRequest selects one (symbol, granularity) layer stream, the
// gRPC-side equivalent of the HTTP route's path parameters.
type StreamRequest struct {
	Symbol      string
	Granularity string
}

// MorphStreamServer will expose the Hub's layer streams as a
// server-streaming RPC per layer (StreamPartings, StreamStrokes,
// StreamSegments, StreamSubTrends, StreamCenters), each sending Events
// over the wire rather than a generated proto oneof per layer type.
//
// Wiring this onto an actual grpc.Server needs a .proto-derived service
// descriptor (RegisterMorphStreamServer, the generated client/server
// interfaces) that this pack has no toolchain to produce. The Hub-backed
// streaming methods below are real, but RegisterGRPC is a placeholder for
// the generated registration call.
type MorphStreamServer struct {
	hub *Hub
}

// NewMorphStreamServer creates a MorphStreamServer backed by hub.
func NewMorphStreamServer(hub *Hub) *MorphStreamServer {
	return &MorphStreamServer{hub: hub}
}

// RegisterGRPC would register the generated MorphStream service on gs.
func (s *MorphStreamServer) RegisterGRPC(_ *grpc.Server) {
	// TODO: pb.RegisterMorphStreamServer(gs, s) once MorphStream's proto
	// definitions are generated.
}

// eventSender abstracts a generated gRPC server-streaming Send method
// (grpc.ServerStreamingServer[Event]), letting the five layer streams
// below share one subscribe-and-forward loop without depending on
// not-yet-generated stream types.
type eventSender interface {
	Send(*Event) error
	Context() context.Context
}

func (s *MorphStreamServer) stream(req *StreamRequest, layer Layer, out eventSender) error {
	subID, ch := s.hub.Subscribe(req.Symbol, req.Granularity, layer, 256)
	defer s.hub.Unsubscribe(req.Symbol, req.Granularity, layer, subID)

	ctx := out.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-ch:
			if !ok {
				return nil
			}
			if err := out.Send(&evt); err != nil {
				return err
			}
		}
	}
}

// StreamPartings streams parting-layer deltas for (req.Symbol, req.Granularity).
func (s *MorphStreamServer) StreamPartings(req *StreamRequest, out eventSender) error {
	return s.stream(req, LayerParting, out)
}

// StreamStrokes streams stroke-layer deltas.
func (s *MorphStreamServer) StreamStrokes(req *StreamRequest, out eventSender) error {
	return s.stream(req, LayerStroke, out)
}

// StreamSegments streams segment-layer deltas.
func (s *MorphStreamServer) StreamSegments(req *StreamRequest, out eventSender) error {
	return s.stream(req, LayerSegment, out)
}

// StreamSubTrends streams sub-trend-layer deltas.
func (s *MorphStreamServer) StreamSubTrends(req *StreamRequest, out eventSender) error {
	return s.stream(req, LayerSubTrend, out)
}

// StreamCenters streams center-layer deltas.
func (s *MorphStreamServer) StreamCenters(req *StreamRequest, out eventSender) error {
	return s.stream(req, LayerCenter, out)
}
