package grpc

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/turtacn/ScentIQ-Intelligence/internal/application/intelligence"
	"github.com/turtacn/ScentIQ-Intelligence/internal/config"
	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/collection"
	"github.com/turtacn/ScentIQ-Intelligence/internal/interfaces/grpc/services"
)

type grpcRecorderSpy struct {
	mu    sync.Mutex
	calls []string
}

func (r *grpcRecorderSpy) RecordGRPCRequest(service, method, code string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, service+"/"+method+":"+code)
}

func (r *grpcRecorderSpy) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func startBufServer(t *testing.T, rec Recorder) (*Server, *grpc.ClientConn) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv, err := NewServer(config.GRPCConfig{Enabled: true, EnableReflection: true},
		WithListener(lis), WithRecorder(rec), WithGracefulTimeout(time.Second))
	require.NoError(t, err)

	engine, err := intelligence.NewEngine(intelligence.EngineConfig{
		Repository: collection.RepositoryFunc(func(context.Context, string) ([]*collection.Item, error) { return nil, nil }),
	})
	require.NoError(t, err)
	srv.RegisterService(&services.ServiceDesc, services.NewIntelligenceService(engine, nil))

	go func() { _ = srv.Start() }()

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return srv, conn
}

func TestServer_HealthAndMetrics(t *testing.T) {
	rec := &grpcRecorderSpy{}
	srv, conn := startBufServer(t, rec)
	defer srv.Stop(context.Background())

	hc := healthpb.NewHealthClient(conn)
	resp, err := hc.Check(context.Background(), &healthpb.HealthCheckRequest{Service: services.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	in, _ := structpb.NewStruct(map[string]interface{}{"user_id": "u1"})
	out := new(structpb.Struct)
	require.NoError(t, conn.Invoke(context.Background(), "/"+services.ServiceName+"/AnalyzeCollection", in, out))
	assert.Equal(t, true, out.AsMap()["empty"])

	assert.Equal(t, []string{services.ServiceName + "/AnalyzeCollection:OK"}, rec.snapshot())
}

func TestServer_StopBeforeStart(t *testing.T) {
	srv, err := NewServer(config.GRPCConfig{}, WithListener(bufconn.Listen(1024)))
	require.NoError(t, err)
	assert.NoError(t, srv.Stop(context.Background()))
	assert.Equal(t, "bufconn", srv.Addr())
}

func TestSplitMethodName(t *testing.T) {
	svc, m := splitMethodName("/scentiq.v1.CollectionIntelligence/RunOperation")
	assert.Equal(t, "scentiq.v1.CollectionIntelligence", svc)
	assert.Equal(t, "RunOperation", m)

	svc, m = splitMethodName("bare")
	assert.Equal(t, "unknown", svc)
	assert.Equal(t, "bare", m)
}
