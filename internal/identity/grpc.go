package identity

import (
	"context"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"messaging-service/internal/observability"
)

// ResolveSessionMethod is the auth service RPC taking the token as a
// StringValue and answering with the user id as a StringValue.
const ResolveSessionMethod = "/auth.AuthService/ResolveSession"

// GRPCResolver delegates token resolution to the auth service.
type GRPCResolver struct {
	conn grpc.ClientConnInterface
}

func NewGRPCResolver(conn grpc.ClientConnInterface) *GRPCResolver {
	return &GRPCResolver{conn: conn}
}

// DialAuth opens the client connection used by GRPCResolver.
func DialAuth(addr string) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithUnaryInterceptor(observability.GRPCClientMetricsUnaryInterceptor()),
	)
}

func (r *GRPCResolver) Resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	resp := &wrapperspb.StringValue{}
	if err := r.conn.Invoke(ctx, ResolveSessionMethod, wrapperspb.String(token), resp); err != nil {
		switch status.Code(err) {
		case codes.Unauthenticated, codes.NotFound, codes.InvalidArgument:
			return "", ErrInvalidToken
		}
		return "", err
	}
	if resp.GetValue() == "" {
		return "", ErrInvalidToken
	}
	return resp.GetValue(), nil
}
