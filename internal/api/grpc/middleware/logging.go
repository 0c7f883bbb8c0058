package middleware

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/rbac-server/internal/logger"
)

// RPCRecorder counts finished calls.
type RPCRecorder interface {
	ObserveRPC(method, code string, seconds float64)
}

// Logging is a unary interceptor that logs gRPC requests and results.
type Logging struct {
	logger   *logger.Logger
	recorder RPCRecorder
}

// NewLogging creates a new Logging middleware. recorder may be nil.
func NewLogging(logger *logger.Logger, recorder RPCRecorder) *Logging {
	return &Logging{logger: logger, recorder: recorder}
}

// HandleGRPC logs method name, duration and status for each unary request.
func (l *Logging) HandleGRPC(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()

	l.logger.Debug("gRPC request started", "method", info.FullMethod)

	resp, err := handler(ctx, req)

	duration := time.Since(start)

	statusCode := codes.OK
	if err != nil {
		if st, ok := status.FromError(err); ok {
			statusCode = st.Code()
		} else {
			statusCode = codes.Internal
		}
	}

	if l.recorder != nil {
		l.recorder.ObserveRPC(info.FullMethod, statusCode.String(), duration.Seconds())
	}

	l.logger.Info("gRPC request completed",
		"method", info.FullMethod,
		"duration_ms", duration.Milliseconds(),
		"status", statusCode.String())

	// Client mistakes are already visible in the status above.
	if statusCode == codes.Internal || statusCode == codes.Unknown {
		l.logger.Error("gRPC request failed",
			"method", info.FullMethod,
			"error", err.Error())
	}

	return resp, err
}
