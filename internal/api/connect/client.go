package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"

	"github.com/osa030/videowall/internal/app/notification"
	"github.com/osa030/videowall/internal/domain/source"
)

// Client is a wall service client.
type Client struct {
	getStatus      *connect.Client[GetStatusRequest, Status]
	togglePlay     *connect.Client[TogglePlayRequest, Status]
	enqueue        *connect.Client[EnqueueRequest, EnqueueResponse]
	remove         *connect.Client[RemoveRequest, Status]
	moveUp         *connect.Client[MoveRequest, Status]
	moveDown       *connect.Client[MoveRequest, Status]
	reorder        *connect.Client[ReorderRequest, Status]
	playNext       *connect.Client[PlayNextRequest, Status]
	loadSource     *connect.Client[LoadSourceRequest, Status]
	updateSync     *connect.Client[UpdateSyncRequest, Status]
	setMuted       *connect.Client[SetMutedRequest, Status]
	setQueuePolicy *connect.Client[SetQueuePolicyRequest, Status]
	watch          *connect.Client[WatchRequest, notification.Notification]
}

// NewClient creates a client for the wall service at baseURL.
// A non-empty token is sent with every call.
func NewClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{
		connect.WithCodec(Codec{}),
		connect.WithInterceptors(NewTokenInterceptor(token)),
	}, opts...)

	return &Client{
		getStatus:      connect.NewClient[GetStatusRequest, Status](httpClient, baseURL+GetStatusProcedure, opts...),
		togglePlay:     connect.NewClient[TogglePlayRequest, Status](httpClient, baseURL+TogglePlayProcedure, opts...),
		enqueue:        connect.NewClient[EnqueueRequest, EnqueueResponse](httpClient, baseURL+EnqueueProcedure, opts...),
		remove:         connect.NewClient[RemoveRequest, Status](httpClient, baseURL+RemoveProcedure, opts...),
		moveUp:         connect.NewClient[MoveRequest, Status](httpClient, baseURL+MoveUpProcedure, opts...),
		moveDown:       connect.NewClient[MoveRequest, Status](httpClient, baseURL+MoveDownProcedure, opts...),
		reorder:        connect.NewClient[ReorderRequest, Status](httpClient, baseURL+ReorderProcedure, opts...),
		playNext:       connect.NewClient[PlayNextRequest, Status](httpClient, baseURL+PlayNextProcedure, opts...),
		loadSource:     connect.NewClient[LoadSourceRequest, Status](httpClient, baseURL+LoadSourceProcedure, opts...),
		updateSync:     connect.NewClient[UpdateSyncRequest, Status](httpClient, baseURL+UpdateSyncProcedure, opts...),
		setMuted:       connect.NewClient[SetMutedRequest, Status](httpClient, baseURL+SetMutedProcedure, opts...),
		setQueuePolicy: connect.NewClient[SetQueuePolicyRequest, Status](httpClient, baseURL+SetQueuePolicyProcedure, opts...),
		watch:          connect.NewClient[WatchRequest, notification.Notification](httpClient, baseURL+WatchProcedure, opts...),
	}
}

func (c *Client) GetStatus(ctx context.Context) (*Status, error) {
	return call(ctx, c.getStatus, &GetStatusRequest{})
}

func (c *Client) TogglePlay(ctx context.Context) (*Status, error) {
	return call(ctx, c.togglePlay, &TogglePlayRequest{})
}

func (c *Client) Enqueue(ctx context.Context, src source.Source) (*EnqueueResponse, error) {
	return call(ctx, c.enqueue, &EnqueueRequest{Source: src})
}

func (c *Client) Remove(ctx context.Context, id string) (*Status, error) {
	return call(ctx, c.remove, &RemoveRequest{ID: id})
}

func (c *Client) MoveUp(ctx context.Context, id string) (*Status, error) {
	return call(ctx, c.moveUp, &MoveRequest{ID: id})
}

func (c *Client) MoveDown(ctx context.Context, id string) (*Status, error) {
	return call(ctx, c.moveDown, &MoveRequest{ID: id})
}

func (c *Client) Reorder(ctx context.Context, from, to int) (*Status, error) {
	return call(ctx, c.reorder, &ReorderRequest{From: from, To: to})
}

func (c *Client) PlayNext(ctx context.Context) (*Status, error) {
	return call(ctx, c.playNext, &PlayNextRequest{})
}

func (c *Client) LoadSource(ctx context.Context, src source.Source) (*Status, error) {
	return call(ctx, c.loadSource, &LoadSourceRequest{Source: src})
}

func (c *Client) UpdateSync(ctx context.Context, req *UpdateSyncRequest) (*Status, error) {
	return call(ctx, c.updateSync, req)
}

func (c *Client) SetMuted(ctx context.Context, muted bool) (*Status, error) {
	return call(ctx, c.setMuted, &SetMutedRequest{Muted: muted})
}

func (c *Client) SetQueuePolicy(ctx context.Context, req *SetQueuePolicyRequest) (*Status, error) {
	return call(ctx, c.setQueuePolicy, req)
}

// Watch calls fn for every notification until ctx ends, the server closes
// the stream, or fn returns an error.
func (c *Client) Watch(ctx context.Context, fn func(*notification.Notification) error) error {
	stream, err := c.watch.CallServerStream(ctx, connect.NewRequest(&WatchRequest{}))
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Receive() {
		if err := fn(stream.Msg()); err != nil {
			return err
		}
	}
	return stream.Err()
}

func call[Req, Res any](ctx context.Context, c *connect.Client[Req, Res], req *Req) (*Res, error) {
	res, err := c.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}
