package feed

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/sotamapper/internal/mapdata"
	"github.com/cory-johannsen/sotamapper/internal/player"
)

// Client calls the PlayerFeed service.
type Client struct {
	cc   grpc.ClientConnInterface
	conn *grpc.ClientConn
}

// Dial creates a Client for the feed at addr. The connection is established
// lazily on the first call.
//
// Postcondition: Returns a Client that must be closed, or an error.
func Dial(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial feed %s: %w", addr, err)
	}
	return &Client{cc: conn, conn: conn}, nil
}

// NewClient wraps an existing connection. Close does not close cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Close releases the connection opened by Dial.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Current returns the latest published State.
func (c *Client) Current(ctx context.Context) (player.State, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, currentMethod, &emptypb.Empty{}, out); err != nil {
		return player.State{}, err
	}
	return StateFromStruct(out)
}

// Watch calls fn with every State the feed publishes until ctx ends, the
// server closes the stream, or fn returns an error.
//
// Postcondition: Returns nil when the server ends the stream; ctx and fn
// errors are returned as is.
func (c *Client) Watch(ctx context.Context, fn func(player.State) error) error {
	stream, err := c.cc.NewStream(ctx, &playerFeedServiceDesc.Streams[0], watchMethod)
	if err != nil {
		return err
	}
	x := &grpc.GenericClientStream[emptypb.Empty, structpb.Struct]{ClientStream: stream}
	if err := x.SendMsg(&emptypb.Empty{}); err != nil {
		return err
	}
	if err := x.CloseSend(); err != nil {
		return err
	}

	for {
		msg, err := x.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		st, err := StateFromStruct(msg)
		if err != nil {
			return fmt.Errorf("decoding state: %w", err)
		}
		if err := fn(st); err != nil {
			return err
		}
	}
}

// AddedItem describes an item appended through AddItem.
type AddedItem struct {
	Map   string
	Item  mapdata.Item
	Items int
}

// AddItem asks the feed to append an item named name at the player's
// location.
func (c *Client) AddItem(ctx context.Context, name string) (AddedItem, error) {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{keyName: structpb.NewStringValue(name)}}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, addItemMethod, in, out); err != nil {
		return AddedItem{}, err
	}
	f := out.GetFields()
	loc, err := coordFromStruct(f[keyLoc].GetStructValue())
	if err != nil {
		return AddedItem{}, fmt.Errorf("decoding item location: %w", err)
	}
	return AddedItem{
		Map:   f[keyMap].GetStringValue(),
		Item:  mapdata.Item{Name: f[keyName].GetStringValue(), Coord: loc},
		Items: int(f[keyItems].GetNumberValue()),
	}, nil
}
