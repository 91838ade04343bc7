package alert

import (
	"context"
	"path"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/oshokin/emergency-alert/internal/logger"
)

const (
	// RequestIDHeader carries a caller-chosen request id; one is generated when absent.
	RequestIDHeader = "x-request-id"
	// ActorHeader carries the "user@host" of the caller for the audit trail.
	ActorHeader = "x-actor"
)

// Observer records RPC durations.
type Observer interface {
	ObserveRPC(method, code string, elapsed time.Duration)
}

// UnaryInterceptors returns the server interceptor chain: request logging with
// a request id, panic recovery and a per-call timeout. The logger of ctx is the
// base of every request logger. observer may be nil.
func UnaryInterceptors(ctx context.Context, timeout time.Duration, observer Observer) []grpc.UnaryServerInterceptor {
	return []grpc.UnaryServerInterceptor{
		loggingInterceptor(logger.FromContext(ctx), observer),
		recoveryInterceptor(),
		timeoutInterceptor(timeout),
	}
}

// loggingInterceptor attaches a request-scoped logger and logs the outcome of each call.
func loggingInterceptor(base *zap.SugaredLogger, observer Observer) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		method := path.Base(info.FullMethod)
		started := time.Now()

		kvs := []any{"request_id", requestID(ctx), "method", method}
		if actor := header(ctx, ActorHeader); actor != "" {
			kvs = append(kvs, "actor", actor)
		}

		ctx = logger.ToContext(ctx, base.With(kvs...))

		resp, err := handler(ctx, req)

		code := status.Code(err)
		elapsed := time.Since(started)

		if observer != nil {
			observer.ObserveRPC(method, code.String(), elapsed)
		}

		switch code {
		case codes.OK:
			logger.DebugKV(ctx, "RPC completed", "elapsed", elapsed)
		case codes.Internal, codes.Unknown, codes.Unavailable, codes.DeadlineExceeded:
			logger.ErrorKV(ctx, "RPC failed", "code", code.String(), "error", err, "elapsed", elapsed)
		default:
			logger.InfoKV(ctx, "RPC rejected", "code", code.String(), "error", err, "elapsed", elapsed)
		}

		return resp, err
	}
}

// recoveryInterceptor turns a handler panic into an Internal error.
func recoveryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorKV(ctx, "Recovered from handler panic", "panic", r, "stack", string(debug.Stack()))

				err = status.Error(codes.Internal, "internal error")
			}
		}()

		return handler(ctx, req)
	}
}

// timeoutInterceptor bounds every call; a non-positive timeout disables it.
func timeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if timeout <= 0 {
			return handler(ctx, req)
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}

// requestID returns the caller's request id or a new one.
func requestID(ctx context.Context) string {
	if id := header(ctx, RequestIDHeader); id != "" {
		return id
	}

	return uuid.NewString()
}

func header(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}

	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}

	return ""
}
