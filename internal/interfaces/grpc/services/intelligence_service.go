// Package services holds the gRPC service implementations. Messages are
// google.protobuf.Struct documents whose shape matches the HTTP API's JSON.
package services

import (
	"context"

	"github.com/goccy/go-json"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/turtacn/ScentIQ-Intelligence/internal/application/intelligence"
	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/collection"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/validation"
)

const ServiceName = "scentiq.intelligence.v1.CollectionIntelligence"

// CollectionIntelligenceServer is the handler type behind ServiceDesc.
type CollectionIntelligenceServer interface {
	AnalyzeCollection(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	InvalidateCache(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	RecommendAdditions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	RunOperation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	DetectChanges(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CreateStrategicPlan(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GenerateNotification(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc registers an IntelligenceService on a grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CollectionIntelligenceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("AnalyzeCollection", CollectionIntelligenceServer.AnalyzeCollection),
		unary("InvalidateCache", CollectionIntelligenceServer.InvalidateCache),
		unary("RecommendAdditions", CollectionIntelligenceServer.RecommendAdditions),
		unary("RunOperation", CollectionIntelligenceServer.RunOperation),
		unary("DetectChanges", CollectionIntelligenceServer.DetectChanges),
		unary("CreateStrategicPlan", CollectionIntelligenceServer.CreateStrategicPlan),
		unary("GenerateNotification", CollectionIntelligenceServer.GenerateNotification),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "scentiq/intelligence/v1/intelligence.proto",
}

type structMethod func(CollectionIntelligenceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call structMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(CollectionIntelligenceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(s, ctx, req.(*structpb.Struct))
			})
		},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Request shapes
// ─────────────────────────────────────────────────────────────────────────────

type userRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

type recommendRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Limit  int    `json:"limit" validate:"omitempty,min=0"`
}

type operationRequest struct {
	UserID    string  `json:"user_id" validate:"required"`
	Operation string  `json:"operation" validate:"required"`
	Limit     int     `json:"limit"`
	Budget    float64 `json:"budget"`
}

type planRequest struct {
	UserID string `json:"user_id" validate:"required"`
	intelligence.PlanRequest
}

type notificationRequest struct {
	UserID  string                   `json:"user_id" validate:"required"`
	Trigger intelligence.TriggerType `json:"trigger" validate:"required"`
	Values  map[string]string        `json:"values"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Service
// ─────────────────────────────────────────────────────────────────────────────

// IntelligenceService serves the engine over gRPC.
type IntelligenceService struct {
	engine intelligence.Engine
	logger logging.Logger
}

func NewIntelligenceService(engine intelligence.Engine, logger logging.Logger) *IntelligenceService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &IntelligenceService{engine: engine, logger: logger}
}

func (s *IntelligenceService) AnalyzeCollection(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in userRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	return reply(s.engine.AnalyzeCollection(ctx, in.UserID))
}

func (s *IntelligenceService) InvalidateCache(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in userRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	if err := s.engine.InvalidateCacheOnCollectionChange(ctx, in.UserID, nil); err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]interface{}{"user_id": in.UserID, "invalidated": true})
}

func (s *IntelligenceService) RecommendAdditions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in recommendRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	return reply(s.engine.RecommendAdditions(ctx, in.UserID, in.Limit))
}

// RunOperation dispatches any named read-only analysis, e.g. "gaps.seasonal".
func (s *IntelligenceService) RunOperation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in operationRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	rep, err := intelligence.RunOperation(ctx, s.engine, in.Operation, in.UserID,
		intelligence.OperationParams{Limit: in.Limit, Budget: in.Budget})
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(rep)
}

// DetectChanges invalidates the cached analysis and returns the change insight.
func (s *IntelligenceService) DetectChanges(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var ev collection.ChangeEvent
	if err := decode(req, &ev); err != nil {
		return nil, err
	}
	if !ev.UsageFrequency.IsValid() {
		return nil, status.Errorf(codes.InvalidArgument, "usage_frequency %q is invalid", ev.UsageFrequency)
	}
	if err := s.engine.InvalidateCacheOnCollectionChange(ctx, ev.UserID, &ev); err != nil {
		s.logger.Warn("cache invalidation failed", logging.UserID(ev.UserID), logging.Err(err))
	}
	return reply(s.engine.Insights().DetectCollectionChanges(ctx, ev.UserID, ev))
}

func (s *IntelligenceService) CreateStrategicPlan(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in planRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	return reply(s.engine.Optimizer().CreateStrategicPlan(ctx, in.UserID, in.PlanRequest))
}

func (s *IntelligenceService) GenerateNotification(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in notificationRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	return reply(s.engine.Insights().GenerateSmartNotification(ctx, in.UserID, in.Trigger, in.Values))
}

// ─────────────────────────────────────────────────────────────────────────────
// Conversion
// ─────────────────────────────────────────────────────────────────────────────

// decode round-trips req through JSON into dst and validates it.
func decode(req *structpb.Struct, dst interface{}) error {
	data, err := req.MarshalJSON()
	if err != nil {
		return status.Error(codes.InvalidArgument, "malformed request")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return status.Error(codes.InvalidArgument, "malformed request: "+err.Error())
	}
	if err := validation.Struct(dst); err != nil {
		return toStatus(err)
	}
	return nil
}

// reply encodes a successful report, or turns its failure into a status.
func reply(rep intelligence.Reporter) (*structpb.Struct, error) {
	if err := rep.Status().Err(); err != nil {
		return nil, toStatus(err)
	}
	data, err := json.Marshal(rep)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode report")
	}
	out := new(structpb.Struct)
	if err := out.UnmarshalJSON(data); err != nil {
		return nil, status.Error(codes.Internal, "failed to encode report")
	}
	return out, nil
}

func toStatus(err error) error {
	code := errors.GetCode(err)
	msg := err.Error()
	var app *errors.AppError
	if errors.As(err, &app) {
		msg = app.Message
	}
	return status.Error(errors.GRPCCodeForCode(code), msg)
}
