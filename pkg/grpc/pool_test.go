package grpc

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
)

func TestPool_ReusesConnection(t *testing.T) {
	pool := NewPool()
	a, err := pool.GetConnection("passthrough:///ledger-a")
	require.NoError(t, err)
	b, err := pool.GetConnection("passthrough:///ledger-a")
	require.NoError(t, err)
	assert.Same(t, a, b)

	c, err := pool.GetConnection("passthrough:///ledger-b")
	require.NoError(t, err)
	assert.NotSame(t, a, c)

	require.NoError(t, pool.Close())
	assert.Equal(t, connectivity.Shutdown, a.GetState())

	d, err := pool.GetConnection("passthrough:///ledger-a")
	require.NoError(t, err)
	assert.NotSame(t, a, d)
	require.NoError(t, pool.Close())
}

func TestPool_InterceptorsAddRequestID(t *testing.T) {
	lis := bufconn.Listen(1 << 16)
	var (
		mu   sync.Mutex
		seen []string
	)
	lastSeen := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return seen
	}
	server := grpc.NewServer(grpc.UnaryInterceptor(func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		mu.Lock()
		seen = md.Get("x-request-id")
		mu.Unlock()
		return handler(ctx, req)
	}))
	healthpb.RegisterHealthServer(server, health.NewServer())
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	pool := NewPool(
		WithInterceptor(RequestIDInterceptor()),
		WithDialOptions(grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		})),
	)
	t.Cleanup(func() { _ = pool.Close() })

	conn, err := pool.GetConnection("passthrough:///bufnet")
	require.NoError(t, err)
	_, err = healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	require.Len(t, lastSeen(), 1)
	assert.NotEmpty(t, lastSeen()[0])

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-request-id", "fixed")
	_, err = healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"fixed"}, lastSeen())
}
