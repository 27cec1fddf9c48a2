package logger

import (
	"context"
	"path"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// NewGrpcUnaryServerInterceptor logs every unary gRPC call with its status code and duration.
func NewGrpcUnaryServerInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		fields := []zap.Field{
			zap.String("grpc.service", path.Dir(info.FullMethod)[1:]),
			zap.String("grpc.method", path.Base(info.FullMethod)),
			zap.String("grpc.code", code.String()),
			zap.Duration("grpc.duration", time.Since(start)),
		}

		switch code {
		case codes.OK:
			logger.Debug("gRPC request completed", fields...)
		case codes.Canceled, codes.DeadlineExceeded, codes.ResourceExhausted,
			codes.Aborted, codes.Unavailable, codes.NotFound:
			logger.Warn("gRPC request failed", append(fields, zap.Error(err))...)
		default:
			logger.Error("gRPC request error", append(fields, zap.Error(err))...)
		}

		return resp, err
	}
}
