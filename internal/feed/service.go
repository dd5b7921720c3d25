package feed

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/sotamapper/internal/mapdata"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "sotamapper.feed.v1.PlayerFeed"

const (
	currentMethod = "/" + ServiceName + "/Current"
	watchMethod   = "/" + ServiceName + "/Watch"
	addItemMethod = "/" + ServiceName + "/AddItem"
)

// PlayerFeedServer is the server API for the PlayerFeed service.
type PlayerFeedServer interface {
	// Current returns the latest player State.
	Current(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// Watch streams every State published from now on, starting with the
	// latest one.
	Watch(*emptypb.Empty, grpc.ServerStreamingServer[structpb.Struct]) error
	// AddItem appends a named item at the player's location to the player's
	// current map.
	AddItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterPlayerFeedServer registers srv on s.
func RegisterPlayerFeedServer(s grpc.ServiceRegistrar, srv PlayerFeedServer) {
	s.RegisterService(&playerFeedServiceDesc, srv)
}

func currentHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PlayerFeedServer).Current(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: currentMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PlayerFeedServer).Current(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func addItemHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PlayerFeedServer).AddItem(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: addItemMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PlayerFeedServer).AddItem(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(PlayerFeedServer).Watch(in, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}

var playerFeedServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PlayerFeedServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Current", Handler: currentHandler},
		{MethodName: "AddItem", Handler: addItemHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "sotamapper/feed/v1/feed.proto",
}

// Service implements PlayerFeedServer over a Hub and a map Store.
type Service struct {
	hub    *Hub
	maps   *mapdata.Store
	logger *zap.Logger
}

// NewService creates a Service.
//
// Precondition: hub, maps and logger must be non-nil.
func NewService(hub *Hub, maps *mapdata.Store, logger *zap.Logger) *Service {
	return &Service{hub: hub, maps: maps, logger: logger}
}

// Current implements PlayerFeedServer. Before the first publication it
// returns an all-null State.
func (s *Service) Current(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st, _ := s.hub.Latest()
	return StateToStruct(st), nil
}

// Watch implements PlayerFeedServer.
func (s *Service) Watch(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ch, cancel := s.hub.Subscribe()
	defer cancel()

	ctx := stream.Context()
	s.logger.Debug("watch started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("watch ended", zap.Error(ctx.Err()))
			return nil
		case st, ok := <-ch:
			if !ok {
				return nil
			}
			if err := stream.Send(StateToStruct(st)); err != nil {
				return err
			}
		}
	}
}

// AddItem implements PlayerFeedServer. The request carries the item name
// under "name"; the response echoes the map, item and new item count.
func (s *Service) AddItem(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name := strings.TrimSpace(req.GetFields()[keyName].GetStringValue())
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "item name is required")
	}

	st, _ := s.hub.Latest()
	mapName, ok := st.MapName.Get()
	if !ok {
		return nil, status.Error(codes.FailedPrecondition, "no map name for player")
	}
	loc, ok := st.Loc.Get()
	if !ok {
		return nil, status.Error(codes.FailedPrecondition, "no location for player")
	}

	rec, err := s.maps.AppendItem(mapName, mapdata.Item{Name: name, Coord: loc})
	switch {
	case errors.Is(err, mapdata.ErrMapNotFound):
		return nil, status.Errorf(codes.NotFound, "no map file for %q", mapName)
	case errors.Is(err, mapdata.ErrInvalidItem):
		return nil, status.Error(codes.InvalidArgument, err.Error())
	case err != nil:
		return nil, status.Errorf(codes.Internal, "adding item: %v", err)
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		keyMap:   structpb.NewStringValue(rec.Name),
		keyName:  structpb.NewStringValue(name),
		keyLoc:   structpb.NewStructValue(coordStruct(loc)),
		keyItems: structpb.NewNumberValue(float64(rec.Len())),
	}}, nil
}
