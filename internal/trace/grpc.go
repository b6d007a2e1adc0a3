package trace

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// UnaryServerInterceptor continues the caller's trace from incoming metadata
// and returns the local ids in the response header.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		tc := fromIncoming(ctx)
		_ = grpc.SetHeader(ctx, metadata.Pairs(TraceIDKey, tc.TraceID, SpanIDKey, tc.SpanID))
		return handler(WithContext(ctx, tc), req)
	}
}

// UnaryClientInterceptor forwards the trace in ctx, starting one if absent,
// as outgoing metadata.
func UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx, tc := EnsureContext(ctx)
		ctx = metadata.AppendToOutgoingContext(ctx, TraceIDKey, tc.TraceID, SpanIDKey, tc.SpanID)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

func fromIncoming(ctx context.Context) Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return New()
	}
	return continueFrom(first(md.Get(TraceIDKey)), first(md.Get(SpanIDKey)))
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}
