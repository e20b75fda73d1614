package grpcclient

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/example/faces-api/internal/facedetect"
	"github.com/example/faces-api/internal/logging"
)

// CountFacesMethod is the unary RPC served by the remote detector. It takes the
// image as google.protobuf.BytesValue and answers with google.protobuf.Int32Value.
const CountFacesMethod = "/faces.v1.FaceDetector/CountFaces"

// DialFaceDetector returns a ready-to-use gRPC face detector.
func DialFaceDetector(ctx context.Context, addr string, logger *zap.Logger, opts ...grpc.DialOption) (facedetect.Detector, *grpc.ClientConn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	}, opts...)

	conn, err := grpc.DialContext(dialCtx, addr, dialOpts...)
	if err != nil {
		wrapped := logging.NewOperationError("grpcclient.dial_face_detector", "", err)
		logger.Error("failed to dial face detector", zap.Error(wrapped), zap.String("addr", addr))
		return nil, nil, wrapped
	}
	return &grpcFaceDetector{conn: conn, logger: logger}, conn, nil
}

type grpcFaceDetector struct {
	conn   grpc.ClientConnInterface
	logger *zap.Logger
}

func (g *grpcFaceDetector) DetectFaces(ctx context.Context, imageBytes []byte) (int, error) {
	out := new(wrapperspb.Int32Value)
	if err := g.conn.Invoke(ctx, CountFacesMethod, wrapperspb.Bytes(imageBytes), out); err != nil {
		wrapped := logging.NewOperationError("grpcclient.count_faces", "", err)
		g.logger.Error("face detector call failed", zap.Error(wrapped), zap.Int("image_bytes", len(imageBytes)))
		return 0, wrapped
	}
	return int(out.GetValue()), nil
}
