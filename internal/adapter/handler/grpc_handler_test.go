package handler

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/rl1809/invsnap/internal/core/service"
)

func dialSnapshotServer(t *testing.T, svc *service.SnapshotService) *SnapshotClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterSnapshotServer(srv, NewGRPCHandler(svc))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewSnapshotClient(conn)
}

func TestGRPC_FetchFullState(t *testing.T) {
	client := dialSnapshotServer(t, newTestService(brickLinkStub()))

	resp, err := client.FetchFullState(context.Background(), &FetchFullStateRequest{Marketplace: "bricklink", WithItems: true})
	require.NoError(t, err)
	assert.Equal(t, "bricklink", resp.Snapshot.Marketplace)
	assert.Equal(t, 2, resp.Snapshot.ItemCount)
	assert.Equal(t, int64(1714638600), resp.Snapshot.Orders.TopDate)
	require.Len(t, resp.Snapshot.Items, 2)
	assert.Equal(t, "S", resp.Snapshot.Items[1].Type)
}

func TestGRPC_ErrorCodes(t *testing.T) {
	empty := brickLinkStub()
	empty.items = nil
	client := dialSnapshotServer(t, newTestService(empty))

	_, err := client.FetchFullState(context.Background(), &FetchFullStateRequest{Marketplace: "lego"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.FetchFullState(context.Background(), &FetchFullStateRequest{Marketplace: "brickowl"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.FetchFullState(context.Background(), &FetchFullStateRequest{Marketplace: "bricklink"})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}
