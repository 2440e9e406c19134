package handlers

import (
	"context"
	"encoding/json"
	"log/slog"

	"EYE_MONITOR/go-backend/internal/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	MonitorServiceName = "drowsiness.Monitor"
	WatchMethod        = "/" + MonitorServiceName + "/Watch"

	watchBuffer = 64
)

// MonitorServer streams frame results to gRPC clients. Each result is sent
// as a google.protobuf.Struct with the same fields as the JSON form.
type MonitorServer interface {
	Watch(*emptypb.Empty, grpc.ServerStream) error
}

func watchHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(MonitorServer).Watch(in, stream)
}

var monitorServiceDesc = grpc.ServiceDesc{
	ServiceName: MonitorServiceName,
	HandlerType: (*MonitorServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       watchHandler,
			ServerStreams: true,
		},
	},
	Metadata: "drowsiness/monitor.proto",
}

var watchStreamDesc = grpc.StreamDesc{StreamName: "Watch", ServerStreams: true}

type GRPCHandler struct {
	hub    *Hub
	health *health.Server
}

func NewGRPCHandler(hub *Hub) *GRPCHandler {
	return &GRPCHandler{
		hub:    hub,
		health: health.NewServer(),
	}
}

// Register installs the monitor and health services on s.
func (h *GRPCHandler) Register(s *grpc.Server) {
	s.RegisterService(&monitorServiceDesc, h)
	healthpb.RegisterHealthServer(s, h.health)
	h.health.SetServingStatus(MonitorServiceName, healthpb.HealthCheckResponse_SERVING)
}

// Shutdown marks every service as not serving.
func (h *GRPCHandler) Shutdown() {
	h.health.Shutdown()
}

func (h *GRPCHandler) Watch(_ *emptypb.Empty, stream grpc.ServerStream) error {
	results, cancel := h.hub.Subscribe(watchBuffer)
	defer cancel()

	slog.Info("watch stream started")
	ctx := stream.Context()

	for {
		select {
		case <-ctx.Done():
			slog.Info("watch stream ended", "reason", ctx.Err())
			return nil
		case r, ok := <-results:
			if !ok {
				return status.Error(codes.Unavailable, "monitor shutting down")
			}
			msg, err := ResultStruct(r)
			if err != nil {
				return status.Error(codes.Internal, err.Error())
			}
			if err := stream.SendMsg(msg); err != nil {
				slog.Warn("watch send failed", "error", err)
				return err
			}
		}
	}
}

// ResultStruct converts a frame result to its wire form.
func ResultStruct(r models.FrameResult) (*structpb.Struct, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, err
	}
	return s, nil
}

// WatchResults opens a Watch stream on conn and calls fn for every result
// until the stream ends, ctx is cancelled or fn fails.
func WatchResults(ctx context.Context, conn grpc.ClientConnInterface, fn func(models.FrameResult) error) error {
	stream, err := conn.NewStream(ctx, &watchStreamDesc, WatchMethod)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}

	for {
		msg := &structpb.Struct{}
		if err := stream.RecvMsg(msg); err != nil {
			return err
		}

		b, err := protojson.Marshal(msg)
		if err != nil {
			return err
		}
		var r models.FrameResult
		if err := json.Unmarshal(b, &r); err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
	}
}
