// Package observability provides gRPC client interceptors and the HTTP
// observability server.
package observability

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"speako/internal/observability/metrics"
)

// UnaryClientInterceptor returns a gRPC unary client interceptor for logging.
func UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		start := time.Now()

		err := invoker(ctx, method, req, reply, cc, opts...)

		st, _ := status.FromError(err)
		log.Debug().
			Str("method", method).
			Str("code", st.Code().String()).
			Dur("duration", time.Since(start)).
			Msg("gRPC unary call")

		return err
	}
}

// StreamClientInterceptor returns a gRPC stream client interceptor that
// records stream opens and open failures.
func StreamClientInterceptor(m *metrics.Metrics) grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		start := time.Now()

		cs, err := streamer(ctx, desc, cc, method, opts...)
		if err != nil {
			st, _ := status.FromError(err)
			m.RecordCloudStreamError(st.Code().String())
			log.Error().
				Err(err).
				Str("method", method).
				Str("code", st.Code().String()).
				Dur("duration", time.Since(start)).
				Msg("gRPC stream open failed")
			return nil, err
		}

		m.RecordCloudStreamOpen()
		log.Debug().
			Str("method", method).
			Dur("duration", time.Since(start)).
			Msg("gRPC stream opened")

		return cs, nil
	}
}
