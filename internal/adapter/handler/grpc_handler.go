package handler

import (
	"context"
	"log"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/invsnap/internal/core/domain"
	"github.com/rl1809/invsnap/internal/core/service"
)

const fetchFullStateMethod = "/invsnap.SnapshotService/FetchFullState"

type FetchFullStateRequest struct {
	Marketplace string `json:"marketplace"`
	WithItems   bool   `json:"with_items"`
}

type FetchFullStateResponse struct {
	Snapshot SnapshotView `json:"snapshot"`
}

type SnapshotServer interface {
	FetchFullState(ctx context.Context, req *FetchFullStateRequest) (*FetchFullStateResponse, error)
}

var SnapshotServiceDesc = grpc.ServiceDesc{
	ServiceName: "invsnap.SnapshotService",
	HandlerType: (*SnapshotServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "FetchFullState", Handler: fetchFullStateHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterSnapshotServer(s grpc.ServiceRegistrar, srv SnapshotServer) {
	s.RegisterService(&SnapshotServiceDesc, srv)
}

func fetchFullStateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(FetchFullStateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SnapshotServer).FetchFullState(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fetchFullStateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SnapshotServer).FetchFullState(ctx, req.(*FetchFullStateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

type GRPCHandler struct {
	snapshotService *service.SnapshotService
}

func NewGRPCHandler(snapshotService *service.SnapshotService) *GRPCHandler {
	return &GRPCHandler{snapshotService: snapshotService}
}

func (h *GRPCHandler) FetchFullState(ctx context.Context, req *FetchFullStateRequest) (*FetchFullStateResponse, error) {
	mp, err := domain.ParseMarketplace(req.Marketplace)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	snap, err := h.snapshotService.FetchFullState(ctx, mp)
	if err != nil {
		_, c, message := mapError(err)
		if c == codes.Internal {
			log.Printf("snapshot %s failed: %v", mp, err)
		}
		return nil, status.Error(c, message)
	}

	return &FetchFullStateResponse{Snapshot: NewSnapshotView(snap, req.WithItems)}, nil
}

// SnapshotClient calls SnapshotService over a connection using the JSON codec.
type SnapshotClient struct {
	cc grpc.ClientConnInterface
}

func NewSnapshotClient(cc grpc.ClientConnInterface) *SnapshotClient {
	return &SnapshotClient{cc: cc}
}

func (c *SnapshotClient) FetchFullState(ctx context.Context, req *FetchFullStateRequest, opts ...grpc.CallOption) (*FetchFullStateResponse, error) {
	out := new(FetchFullStateResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := c.cc.Invoke(ctx, fetchFullStateMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
