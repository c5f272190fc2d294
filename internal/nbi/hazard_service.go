// Package nbi serves hazard predictions over gRPC and provides the matching
// client used by sessions that query a remote evaluator.
package nbi

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/orbital-guard/core"
	"github.com/signalsfoundry/orbital-guard/internal/logging"
	"github.com/signalsfoundry/orbital-guard/internal/observability"
	"github.com/signalsfoundry/orbital-guard/kb"
	"github.com/signalsfoundry/orbital-guard/model"
	"github.com/signalsfoundry/orbital-guard/timectrl"
)

// Wire names of the hazard service.
const (
	HazardServiceName    = "orbitalguard.v1.HazardService"
	PredictHazardsMethod = "/" + HazardServiceName + "/PredictHazards"
)

// HazardServiceServer is the server API for the hazard service. Messages are
// google.protobuf.Struct values: the request carries targetName and an
// optional RFC 3339 time, the response a "hazards" list.
type HazardServiceServer interface {
	PredictHazards(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// HazardServiceDesc describes the service for grpc.ServiceRegistrar.
var HazardServiceDesc = grpc.ServiceDesc{
	ServiceName: HazardServiceName,
	HandlerType: (*HazardServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PredictHazards", Handler: predictHazardsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "orbitalguard/v1/hazard.proto",
}

// RegisterHazardServiceServer registers srv on s.
func RegisterHazardServiceServer(s grpc.ServiceRegistrar, srv HazardServiceServer) {
	s.RegisterService(&HazardServiceDesc, srv)
}

func predictHazardsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HazardServiceServer).PredictHazards(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PredictHazardsMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(HazardServiceServer).PredictHazards(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// HazardService evaluates hazards against the local catalog.
type HazardService struct {
	catalog   *kb.Catalog
	evaluator *core.Evaluator
	clock     timectrl.SimClock
	log       logging.Logger
}

var _ HazardServiceServer = (*HazardService)(nil)

// NewHazardService constructs a HazardService. A nil clock means wall time.
func NewHazardService(cat *kb.Catalog, ev *core.Evaluator, clock timectrl.SimClock, log logging.Logger) *HazardService {
	if log == nil {
		log = logging.Noop()
	}
	if ev == nil {
		ev = core.NewEvaluator(core.DefaultThresholds())
	}
	if cat == nil {
		cat = kb.NewCatalog()
	}
	return &HazardService{catalog: cat, evaluator: ev, clock: clock, log: log}
}

// Predict resolves the target by key or name and evaluates the catalog at
// the requested time.
func (s *HazardService) Predict(ctx context.Context, req PredictRequest) ([]model.HazardRecord, error) {
	reqLog := logging.FromContext(ctx, s.log).With(
		logging.String("operation", "predict"),
		logging.String("target", req.TargetName),
	)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	target, err := s.catalog.FindByName(req.TargetName)
	if err != nil {
		reqLog.Debug(ctx, "target not in catalog")
		return nil, err
	}

	at := s.now()
	if req.Time != nil {
		at = *req.Time
	}

	ctx, span := startEvaluationSpan(ctx, observability.EvaluationAttributes(target.Key(), at)...)
	defer span.End()

	start := time.Now()
	hazards := s.evaluator.Evaluate(target, s.catalog.Objects(), at)
	span.SetAttributes(observability.HazardAttributes(hazards)...)

	reqLog.Debug(ctx, "Predict completed",
		logging.Int("count", len(hazards)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return hazards, nil
}

// PredictHazards implements HazardServiceServer.
func (s *HazardService) PredictHazards(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := DecodePredictRequest(in)
	if err != nil {
		return nil, ToStatusError(err)
	}
	hazards, err := s.Predict(ctx, req)
	if err != nil {
		return nil, ToStatusError(err)
	}
	out, err := EncodeHazards(hazards)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return out, nil
}

func (s *HazardService) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now()
}
