package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/household-docs/internal/common"
)

const requestIDHeader = "x-request-id"

// RequestInterceptor tags each call with a request id and a scoped logger,
// maps plain errors onto gRPC status codes, and logs the outcome.
func RequestInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		rid := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(requestIDHeader); len(v) > 0 {
				rid = v[0]
			}
		}
		if rid == "" {
			rid = uuid.New().String()
		}
		log := logger.With("req_id", rid, "method", info.FullMethod)
		ctx = common.WithLogger(common.WithRequestID(ctx, rid), log)

		start := time.Now()
		resp, err := handler(ctx, req)
		err = common.ToStatus(err)
		code := status.Code(err)
		if err != nil {
			log.Warn("grpc.request.failed", "code", code.String(), "error", err, "elapsed_ms", time.Since(start).Milliseconds())
			return nil, err
		}
		log.Info("grpc.request.ok", "elapsed_ms", time.Since(start).Milliseconds())
		return resp, nil
	}
}
