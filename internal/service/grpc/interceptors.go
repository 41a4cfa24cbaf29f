package grpcsvc

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// LoggingUnaryInterceptor пишет в лог метод, код ответа и длительность вызова.
// Тело запроса добавляется только на уровне debug.
func LoggingUnaryInterceptor(logger *log.Entry) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = log.WithField("component", "grpc")
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		entry := logger.WithFields(log.Fields{
			"method":      info.FullMethod,
			"code":        code.String(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if logger.Logger.IsLevelEnabled(log.DebugLevel) {
			if msg, ok := req.(proto.Message); ok {
				if body, mErr := protojson.Marshal(msg); mErr == nil {
					entry = entry.WithField("request", string(body))
				}
			}
		}

		switch code {
		case codes.OK:
			entry.Debug("grpc call")
		case codes.Internal, codes.Unknown:
			entry.WithError(err).Error("grpc call failed")
		default:
			entry.WithError(err).Info("grpc call rejected")
		}
		return resp, err
	}
}
