package services

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"EYE_MONITOR/go-backend/internal/capture"
	"EYE_MONITOR/go-backend/internal/geometry"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	LandmarkServiceName = "landmarks.LandmarkService"
	DetectMethod        = "/" + LandmarkServiceName + "/Detect"

	// ShapePredictorHeader carries the landmark model path to the service.
	ShapePredictorHeader = "x-shape-predictor"

	detectTimeout = 5 * time.Second
)

var ErrMalformedResponse = errors.New("malformed landmark response")

// LandmarkClient asks the landmark service for the faces and 68-point
// landmarks found in a JPEG frame.
//
// The service takes a google.protobuf.BytesValue and answers with a
// google.protobuf.Struct of the form
//
//	{"faces": [{"box": [left, top, right, bottom], "landmarks": [x0, y0, ..., x67, y67]}]}
type LandmarkClient struct {
	conn           *grpc.ClientConn
	health         healthpb.HealthClient
	url            string
	shapePredictor string
}

func NewLandmarkClient(url, shapePredictor string, extra ...grpc.DialOption) (*LandmarkClient, error) {
	slog.Info("connecting to landmark service", "url", url)

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(50*1024*1024),
			grpc.MaxCallSendMsgSize(50*1024*1024),
		),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             3 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	opts = append(opts, extra...)

	conn, err := grpc.NewClient(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not connect to landmark service at %s: %w", url, err)
	}

	return &LandmarkClient{
		conn:           conn,
		health:         healthpb.NewHealthClient(conn),
		url:            url,
		shapePredictor: shapePredictor,
	}, nil
}

// Detect returns the faces found in frame. Faces whose landmark count is
// not 68 are dropped.
func (c *LandmarkClient) Detect(ctx context.Context, frame capture.Frame) ([]geometry.Face, error) {
	ctx, cancel := context.WithTimeout(ctx, detectTimeout)
	defer cancel()

	ctx = metadata.AppendToOutgoingContext(ctx, ShapePredictorHeader, c.shapePredictor)

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, DetectMethod, wrapperspb.Bytes(frame.Data), resp); err != nil {
		return nil, fmt.Errorf("could not detect landmarks: %w", err)
	}

	return DecodeFaces(resp)
}

// DecodeFaces converts a landmark service response into faces.
func DecodeFaces(resp *structpb.Struct) ([]geometry.Face, error) {
	facesVal, ok := resp.GetFields()["faces"]
	if !ok {
		return nil, nil
	}
	list := facesVal.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("%w: faces is not a list", ErrMalformedResponse)
	}

	faces := make([]geometry.Face, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		fields := v.GetStructValue().GetFields()

		box := numbers(fields["box"])
		if len(box) != 4 {
			return nil, fmt.Errorf("%w: face %d box has %d values", ErrMalformedResponse, i, len(box))
		}

		lm, err := geometry.NewLandmarks(numbers(fields["landmarks"]))
		if err != nil {
			slog.Warn("dropping face", "face", i, "error", err)
			continue
		}

		faces = append(faces, geometry.Face{
			Box:       image.Rect(int(box[0]), int(box[1]), int(box[2]), int(box[3])),
			Landmarks: lm,
		})
	}
	return faces, nil
}

func numbers(v *structpb.Value) []float64 {
	values := v.GetListValue().GetValues()
	out := make([]float64, len(values))
	for i, n := range values {
		out[i] = n.GetNumberValue()
	}
	return out
}

// HealthCheck reports whether the landmark service is serving.
func (c *LandmarkClient) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: LandmarkServiceName})
	if err != nil {
		slog.Debug("landmark service health check failed", "error", err)
		return false
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
}

func (c *LandmarkClient) URL() string {
	return c.url
}

func (c *LandmarkClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
