package services

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/turtacn/ScentIQ-Intelligence/internal/application/intelligence"
	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/collection"
	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/fragrance"
)

type IntelligenceServiceTestSuite struct {
	suite.Suite
	server *grpc.Server
	conn   *grpc.ClientConn
}

func TestIntelligenceServiceTestSuite(t *testing.T) {
	suite.Run(t, new(IntelligenceServiceTestSuite))
}

func (s *IntelligenceServiceTestSuite) SetupTest() {
	created := time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC)
	repo := collection.RepositoryFunc(func(_ context.Context, userID string) ([]*collection.Item, error) {
		if userID == "broken" {
			return nil, errors.New("pool exhausted")
		}
		return []*collection.Item{
			{FragranceID: "santal-33", Rating: 5, CreatedAt: created, Fragrance: &fragrance.Fragrance{ID: "santal-33", Family: "woody", Price: 200}},
			{FragranceID: "neroli", Rating: 4, CreatedAt: created, Fragrance: &fragrance.Fragrance{ID: "neroli", Family: "citrus", Price: 90}},
		}, nil
	})
	engine, err := intelligence.NewEngine(intelligence.EngineConfig{Repository: repo})
	s.Require().NoError(err)

	lis := bufconn.Listen(1 << 20)
	s.server = grpc.NewServer()
	s.server.RegisterService(&ServiceDesc, NewIntelligenceService(engine, nil))
	go func() { _ = s.server.Serve(lis) }()

	s.conn, err = grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	s.Require().NoError(err)
}

func (s *IntelligenceServiceTestSuite) TearDownTest() {
	_ = s.conn.Close()
	s.server.Stop()
}

func (s *IntelligenceServiceTestSuite) call(method string, req map[string]interface{}) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	s.Require().NoError(err)
	out := new(structpb.Struct)
	err = s.conn.Invoke(context.Background(), "/"+ServiceName+"/"+method, in, out)
	return out, err
}

func (s *IntelligenceServiceTestSuite) TestAnalyzeCollection() {
	out, err := s.call("AnalyzeCollection", map[string]interface{}{"user_id": "alice"})
	s.Require().NoError(err)
	m := out.AsMap()
	s.Equal("alice", m["user_id"])
	s.Equal(true, m["success"])
	s.Contains(m, "personality_profile")
}

func (s *IntelligenceServiceTestSuite) TestMissingUserID() {
	_, err := s.call("AnalyzeCollection", map[string]interface{}{})
	s.Equal(codes.InvalidArgument, status.Code(err))
	s.Contains(status.Convert(err).Message(), "user_id is required")
}

func (s *IntelligenceServiceTestSuite) TestFailureMapsToStatus() {
	_, err := s.call("AnalyzeCollection", map[string]interface{}{"user_id": "broken"})
	s.Equal(codes.Unavailable, status.Code(err))

	_, err = s.call("RecommendAdditions", map[string]interface{}{"user_id": "alice", "limit": 3})
	s.Equal(codes.Unavailable, status.Code(err))
}

func (s *IntelligenceServiceTestSuite) TestRunOperation() {
	out, err := s.call("RunOperation", map[string]interface{}{"user_id": "alice", "operation": "gaps.seasonal"})
	s.Require().NoError(err)
	s.Equal(true, out.AsMap()["success"])

	out, err = s.call("RunOperation", map[string]interface{}{"user_id": "alice", "operation": "optimization.budget", "budget": 150})
	s.Require().NoError(err)
	s.Equal("alice", out.AsMap()["user_id"])

	_, err = s.call("RunOperation", map[string]interface{}{"user_id": "alice", "operation": "tarot"})
	s.Equal(codes.InvalidArgument, status.Code(err))

	_, err = s.call("RunOperation", map[string]interface{}{"user_id": "alice", "operation": "optimization.budget", "budget": -5})
	s.Equal(codes.InvalidArgument, status.Code(err))
}

func (s *IntelligenceServiceTestSuite) TestDetectChanges() {
	out, err := s.call("DetectChanges", map[string]interface{}{
		"user_id": "alice", "change_type": "added", "fragrance_id": "santal-33", "rating": 5,
	})
	s.Require().NoError(err)
	m := out.AsMap()
	s.Equal("added", m["change_type"])
	s.NotEmpty(m["insight"])

	_, err = s.call("DetectChanges", map[string]interface{}{
		"user_id": "alice", "change_type": "teleported", "fragrance_id": "santal-33",
	})
	s.Equal(codes.InvalidArgument, status.Code(err))

	_, err = s.call("DetectChanges", map[string]interface{}{
		"user_id": "alice", "change_type": "usage_updated", "fragrance_id": "santal-33", "usage_frequency": "hourly",
	})
	s.Equal(codes.InvalidArgument, status.Code(err))
}

func (s *IntelligenceServiceTestSuite) TestCreateStrategicPlan() {
	out, err := s.call("CreateStrategicPlan", map[string]interface{}{"user_id": "alice", "target_size": 6, "budget": 500})
	s.Require().NoError(err)
	s.Equal(true, out.AsMap()["success"])

	_, err = s.call("CreateStrategicPlan", map[string]interface{}{"user_id": "alice", "target_size": -2, "budget": 500})
	s.Equal(codes.InvalidArgument, status.Code(err))
}

func (s *IntelligenceServiceTestSuite) TestGenerateNotification() {
	out, err := s.call("GenerateNotification", map[string]interface{}{
		"user_id": "alice", "trigger": "collection_milestone", "values": map[string]interface{}{"count": "2"},
	})
	s.Require().NoError(err)
	n := out.AsMap()["notification"].(map[string]interface{})
	s.Equal("Your collection just reached 2 fragrances.", n["message"])

	_, err = s.call("GenerateNotification", map[string]interface{}{"user_id": "alice", "trigger": "eclipse"})
	s.Equal(codes.InvalidArgument, status.Code(err))
}

func (s *IntelligenceServiceTestSuite) TestInvalidateCache() {
	out, err := s.call("InvalidateCache", map[string]interface{}{"user_id": "alice"})
	s.Require().NoError(err)
	s.Equal(true, out.AsMap()["invalidated"])
}
