package services

import (
	"context"
	"net"
	"testing"

	"EYE_MONITOR/go-backend/internal/capture"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type landmarkServer interface {
	Detect(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error)
}

func detectHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	return srv.(landmarkServer).Detect(ctx, in)
}

var landmarkServiceDesc = grpc.ServiceDesc{
	ServiceName: LandmarkServiceName,
	HandlerType: (*landmarkServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Detect", Handler: detectHandler},
	},
}

type fakeLandmarks struct {
	resp          *structpb.Struct
	err           error
	gotPredictor  string
	gotFrameBytes int
}

func (f *fakeLandmarks) Detect(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error) {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(ShapePredictorHeader); len(v) > 0 {
			f.gotPredictor = v[0]
		}
	}
	f.gotFrameBytes = len(in.GetValue())
	return f.resp, f.err
}

func faceValue(box []interface{}, points int) map[string]interface{} {
	coords := make([]interface{}, points*2)
	for i := range coords {
		coords[i] = float64(i)
	}
	return map[string]interface{}{"box": box, "landmarks": coords}
}

func startLandmarkServer(t *testing.T, fake *fakeLandmarks) *LandmarkClient {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	srv.RegisterService(&landmarkServiceDesc, fake)

	hs := health.NewServer()
	hs.SetServingStatus(LandmarkServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	client, err := NewLandmarkClient("passthrough:///bufnet", "shape_predictor_68_face_landmarks.dat",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestLandmarkClientDetect(t *testing.T) {
	resp, err := structpb.NewStruct(map[string]interface{}{
		"faces": []interface{}{
			faceValue([]interface{}{10.0, 20.0, 110.0, 140.0}, 68),
			faceValue([]interface{}{0.0, 0.0, 5.0, 5.0}, 5),
		},
	})
	require.NoError(t, err)

	fake := &fakeLandmarks{resp: resp}
	client := startLandmarkServer(t, fake)

	faces, err := client.Detect(context.Background(), capture.Frame{Data: []byte{0xff, 0xd8, 0xff}})
	require.NoError(t, err)
	require.Len(t, faces, 1)

	require.Equal(t, 10, faces[0].Box.Min.X)
	require.Equal(t, 140, faces[0].Box.Max.Y)
	require.Equal(t, 72.0, faces[0].Landmarks[36].X)
	require.Equal(t, 73.0, faces[0].Landmarks[36].Y)

	require.Equal(t, "shape_predictor_68_face_landmarks.dat", fake.gotPredictor)
	require.Equal(t, 3, fake.gotFrameBytes)
}

func TestLandmarkClientNoFaces(t *testing.T) {
	client := startLandmarkServer(t, &fakeLandmarks{resp: &structpb.Struct{}})

	faces, err := client.Detect(context.Background(), capture.Frame{})
	require.NoError(t, err)
	require.Empty(t, faces)
}

func TestLandmarkClientServiceError(t *testing.T) {
	client := startLandmarkServer(t, &fakeLandmarks{err: status.Error(codes.Internal, "model not loaded")})

	_, err := client.Detect(context.Background(), capture.Frame{})
	require.Error(t, err)
	require.Equal(t, codes.Internal, status.Code(err))
}

func TestLandmarkClientHealth(t *testing.T) {
	client := startLandmarkServer(t, &fakeLandmarks{})
	require.True(t, client.HealthCheck(context.Background()))
	require.Equal(t, "passthrough:///bufnet", client.URL())
}

func TestDecodeFacesMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]interface{}
	}{
		{
			name: "faces not a list",
			in:   map[string]interface{}{"faces": "nope"},
		},
		{
			name: "short box",
			in: map[string]interface{}{
				"faces": []interface{}{faceValue([]interface{}{1.0, 2.0}, 68)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := structpb.NewStruct(tt.in)
			require.NoError(t, err)

			_, err = DecodeFaces(s)
			require.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}
