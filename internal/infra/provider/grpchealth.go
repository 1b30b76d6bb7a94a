package provider

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// HealthProbe checks a local inference gateway's gRPC health service
// before a call is attempted. Probes are cheap compared to burning a full
// inference timeout against a stopped gateway.
type HealthProbe struct {
	providerName string
	conn         *grpc.ClientConn
	client       healthpb.HealthClient
	timeout      time.Duration
}

// NewHealthProbe dials the gateway's health endpoint. The connection is
// lazy; dial errors surface on the first Check.
func NewHealthProbe(providerName, target string, timeout time.Duration) (*HealthProbe, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial health endpoint %s: %w", target, err)
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthProbe{
		providerName: providerName,
		conn:         conn,
		client:       healthpb.NewHealthClient(conn),
		timeout:      timeout,
	}, nil
}

// Check returns nil when the gateway reports SERVING, a classified
// CallError otherwise.
func (p *HealthProbe) Check(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.Check(probeCtx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return classifyGRPC(p.providerName, err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		return &CallError{
			Provider: p.providerName,
			Kind:     KindTransport,
			Err:      fmt.Errorf("gateway health status %s", resp.Status),
		}
	}
	return nil
}

// Close releases the probe connection.
func (p *HealthProbe) Close() error {
	return p.conn.Close()
}

// classifyGRPC maps a gRPC error onto the call error taxonomy, honoring a
// server-advertised RetryInfo delay when one is attached.
func classifyGRPC(providerName string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return &CallError{Provider: providerName, Kind: KindTransport, Err: err}
	}

	kind := KindTransport
	switch st.Code() {
	case codes.DeadlineExceeded:
		kind = KindTimeout
	case codes.ResourceExhausted:
		kind = KindRateLimited
	case codes.Unauthenticated, codes.PermissionDenied:
		kind = KindInvalidCredentials
	}

	var retryAfter time.Duration
	for _, detail := range st.Details() {
		if info, ok := detail.(*errdetails.RetryInfo); ok {
			retryAfter = info.GetRetryDelay().AsDuration()
		}
	}

	return &CallError{
		Provider:   providerName,
		Kind:       kind,
		RetryAfter: retryAfter,
		Err:        err,
	}
}
