package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xtding233/gacha-sim/internal/banner"
	"github.com/xtding233/gacha-sim/internal/gacha"
)

const ServiceName = "gachasim.v1.Simulator"

// SimulatorServer is the gRPC API. Requests and responses are
// google.protobuf.Struct documents with the same keys as the HTTP API.
type SimulatorServer interface {
	Simulate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RunTrial(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var SimulatorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SimulatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Simulate", Handler: unaryHandler("Simulate", SimulatorServer.Simulate)},
		{MethodName: "RunTrial", Handler: unaryHandler("RunTrial", SimulatorServer.RunTrial)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gachasim/v1/simulator.proto",
}

func unaryHandler(method string, call func(SimulatorServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SimulatorServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SimulatorServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func RegisterSimulatorServer(s grpc.ServiceRegistrar, srv SimulatorServer) {
	s.RegisterService(&SimulatorServiceDesc, srv)
}

// SimulatorClient calls the gRPC API.
type SimulatorClient struct {
	cc grpc.ClientConnInterface
}

func NewSimulatorClient(cc grpc.ClientConnInterface) *SimulatorClient {
	return &SimulatorClient{cc: cc}
}

func (c *SimulatorClient) Simulate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Simulate", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SimulatorClient) RunTrial(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/RunTrial", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GRPCService implements SimulatorServer on top of a Server.
type GRPCService struct {
	srv *Server
}

func NewGRPCService(s *Server) *GRPCService {
	return &GRPCService{srv: s}
}

// Simulate handles Monte Carlo requests.
func (g *GRPCService) Simulate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "simulate request is required")
	}
	req, err := requestFromStruct(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	rep, err := g.srv.Simulate(ctx, req)
	if err != nil {
		return nil, g.status(err)
	}
	return toStruct(rep)
}

// RunTrial handles single session requests.
func (g *GRPCService) RunTrial(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "trial request is required")
	}
	req, err := requestFromStruct(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	t, err := g.srv.Trial(ctx, req)
	if err != nil {
		return nil, g.status(err)
	}
	return toStruct(t)
}

func (g *GRPCService) status(err error) error {
	switch {
	case errors.Is(err, banner.ErrUnknownBanner):
		return status.Error(codes.NotFound, err.Error())
	case clientError(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	g.srv.Log.Error().Err(err).Msg("grpc request failed")
	return status.Errorf(codes.Internal, "simulation failed: %v", err)
}

// toStruct converts a JSON-encodable value into a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func requestFromStruct(in *structpb.Struct) (Request, error) {
	f := in.GetFields()
	req := Request{
		Banner:        f["banner"].GetStringValue(),
		Criterion:     gacha.Criterion(f["criterion"].GetStringValue()),
		Mode:          gacha.TargetMode(f["mode"].GetStringValue()),
		IncludeTrials: f["include_trials"].GetBoolValue(),
	}
	var err error
	if req.Value, err = intField(f, "value"); err != nil {
		return req, err
	}
	if req.StartingParts, err = intField(f, "starting_parts"); err != nil {
		return req, err
	}
	if req.Trials, err = intField(f, "trials"); err != nil {
		return req, err
	}
	if req.BudgetCents, err = intField(f, "budget_cents"); err != nil {
		return req, err
	}
	if v, ok := f["seed"]; ok {
		seed, err := seedValue(v)
		if err != nil {
			return req, err
		}
		req.Seed = &seed
	}
	if v, ok := f["rate"]; ok {
		var rate decimal.Decimal
		switch k := v.GetKind().(type) {
		case *structpb.Value_StringValue:
			if rate, err = decimal.NewFromString(k.StringValue); err != nil {
				return req, fmt.Errorf("invalid rate: %w", err)
			}
		case *structpb.Value_NumberValue:
			rate = decimal.NewFromFloat(k.NumberValue)
		default:
			return req, errors.New("invalid rate")
		}
		req.Rate = &rate
	}
	return req, nil
}

func intField(f map[string]*structpb.Value, key string) (int, error) {
	v, ok := f[key]
	if !ok {
		return 0, nil
	}
	n, isNum := v.GetKind().(*structpb.Value_NumberValue)
	if !isNum || n.NumberValue != math.Trunc(n.NumberValue) || math.Abs(n.NumberValue) > math.MaxInt32 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return int(n.NumberValue), nil
}

// seedValue accepts a number or, for seeds above 2^53, a decimal string.
func seedValue(v *structpb.Value) (uint64, error) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		s, err := strconv.ParseUint(k.StringValue, 10, 64)
		if err != nil {
			return 0, errors.New("invalid seed")
		}
		return s, nil
	case *structpb.Value_NumberValue:
		if k.NumberValue < 0 || k.NumberValue != math.Trunc(k.NumberValue) || k.NumberValue > 1<<53 {
			return 0, errors.New("invalid seed")
		}
		return uint64(k.NumberValue), nil
	}
	return 0, errors.New("invalid seed")
}
