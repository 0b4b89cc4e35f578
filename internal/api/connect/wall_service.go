package connect

import (
	"context"
	"net/http"
	"sync"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/videowall/internal/app/notification"
	"github.com/osa030/videowall/internal/app/session"
)

// WallServiceName is the fully-qualified name of the wall service.
const WallServiceName = "videowall.v1.WallService"

// Procedure paths of the wall service.
const (
	GetStatusProcedure      = "/" + WallServiceName + "/GetStatus"
	TogglePlayProcedure     = "/" + WallServiceName + "/TogglePlay"
	EnqueueProcedure        = "/" + WallServiceName + "/Enqueue"
	RemoveProcedure         = "/" + WallServiceName + "/Remove"
	MoveUpProcedure         = "/" + WallServiceName + "/MoveUp"
	MoveDownProcedure       = "/" + WallServiceName + "/MoveDown"
	ReorderProcedure        = "/" + WallServiceName + "/Reorder"
	PlayNextProcedure       = "/" + WallServiceName + "/PlayNext"
	LoadSourceProcedure     = "/" + WallServiceName + "/LoadSource"
	UpdateSyncProcedure     = "/" + WallServiceName + "/UpdateSync"
	SetMutedProcedure       = "/" + WallServiceName + "/SetMuted"
	SetQueuePolicyProcedure = "/" + WallServiceName + "/SetQueuePolicy"
	WatchProcedure          = "/" + WallServiceName + "/Watch"
)

// ReadOnlyProcedures need no admin token.
var ReadOnlyProcedures = []string{GetStatusProcedure, WatchProcedure}

// WallService implements the wall RPCs on top of the session manager.
type WallService struct {
	session *session.Manager
}

// NewWallService creates a new WallService.
func NewWallService(session *session.Manager) *WallService {
	return &WallService{session: session}
}

// NewWallServiceHandler builds an HTTP handler serving every wall procedure.
// It returns the path prefix to mount it on.
func NewWallServiceHandler(svc *WallService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(GetStatusProcedure, connect.NewUnaryHandler(GetStatusProcedure, svc.GetStatus, opts...))
	mux.Handle(TogglePlayProcedure, connect.NewUnaryHandler(TogglePlayProcedure, svc.TogglePlay, opts...))
	mux.Handle(EnqueueProcedure, connect.NewUnaryHandler(EnqueueProcedure, svc.Enqueue, opts...))
	mux.Handle(RemoveProcedure, connect.NewUnaryHandler(RemoveProcedure, svc.Remove, opts...))
	mux.Handle(MoveUpProcedure, connect.NewUnaryHandler(MoveUpProcedure, svc.MoveUp, opts...))
	mux.Handle(MoveDownProcedure, connect.NewUnaryHandler(MoveDownProcedure, svc.MoveDown, opts...))
	mux.Handle(ReorderProcedure, connect.NewUnaryHandler(ReorderProcedure, svc.Reorder, opts...))
	mux.Handle(PlayNextProcedure, connect.NewUnaryHandler(PlayNextProcedure, svc.PlayNext, opts...))
	mux.Handle(LoadSourceProcedure, connect.NewUnaryHandler(LoadSourceProcedure, svc.LoadSource, opts...))
	mux.Handle(UpdateSyncProcedure, connect.NewUnaryHandler(UpdateSyncProcedure, svc.UpdateSync, opts...))
	mux.Handle(SetMutedProcedure, connect.NewUnaryHandler(SetMutedProcedure, svc.SetMuted, opts...))
	mux.Handle(SetQueuePolicyProcedure, connect.NewUnaryHandler(SetQueuePolicyProcedure, svc.SetQueuePolicy, opts...))
	mux.Handle(WatchProcedure, connect.NewServerStreamHandler(WatchProcedure, svc.Watch, opts...))
	return "/" + WallServiceName + "/", mux
}

// GetStatus returns the current wall status.
func (s *WallService) GetStatus(
	ctx context.Context,
	req *connect.Request[GetStatusRequest],
) (*connect.Response[Status], error) {
	return s.status(), nil
}

// TogglePlay pauses or resumes the wall.
func (s *WallService) TogglePlay(
	ctx context.Context,
	req *connect.Request[TogglePlayRequest],
) (*connect.Response[Status], error) {
	if err := s.session.TogglePlay(); err != nil {
		return nil, toConnectError(err)
	}
	return s.status(), nil
}

// Enqueue admits a source to the queue.
func (s *WallService) Enqueue(
	ctx context.Context,
	req *connect.Request[EnqueueRequest],
) (*connect.Response[EnqueueResponse], error) {
	result, err := s.session.Enqueue(ctx, req.Msg.Source)
	if err != nil {
		return nil, toConnectError(err)
	}

	resp := &EnqueueResponse{
		Accepted: result.Accepted,
		Code:     result.Code,
		Status:   toStatus(s.session.GetStatus()),
	}
	if result.Accepted {
		item := result.Item
		resp.Item = &item
	}
	return connect.NewResponse(resp), nil
}

// Remove deletes a queued item.
func (s *WallService) Remove(
	ctx context.Context,
	req *connect.Request[RemoveRequest],
) (*connect.Response[Status], error) {
	s.session.Remove(req.Msg.ID)
	return s.status(), nil
}

// MoveUp moves a queued item towards the head.
func (s *WallService) MoveUp(
	ctx context.Context,
	req *connect.Request[MoveRequest],
) (*connect.Response[Status], error) {
	s.session.MoveUp(req.Msg.ID)
	return s.status(), nil
}

// MoveDown moves a queued item towards the tail.
func (s *WallService) MoveDown(
	ctx context.Context,
	req *connect.Request[MoveRequest],
) (*connect.Response[Status], error) {
	s.session.MoveDown(req.Msg.ID)
	return s.status(), nil
}

// Reorder moves a queued item between positions.
func (s *WallService) Reorder(
	ctx context.Context,
	req *connect.Request[ReorderRequest],
) (*connect.Response[Status], error) {
	s.session.Reorder(req.Msg.From, req.Msg.To)
	return s.status(), nil
}

// PlayNext loads the next queued source.
func (s *WallService) PlayNext(
	ctx context.Context,
	req *connect.Request[PlayNextRequest],
) (*connect.Response[Status], error) {
	if err := s.session.PlayNext(); err != nil {
		return nil, toConnectError(err)
	}
	return s.status(), nil
}

// LoadSource loads a source directly, bypassing the queue.
func (s *WallService) LoadSource(
	ctx context.Context,
	req *connect.Request[LoadSourceRequest],
) (*connect.Response[Status], error) {
	if err := s.session.Load(req.Msg.Source); err != nil {
		return nil, toConnectError(err)
	}
	return s.status(), nil
}

// UpdateSync changes the gap and drift correction switch.
func (s *WallService) UpdateSync(
	ctx context.Context,
	req *connect.Request[UpdateSyncRequest],
) (*connect.Response[Status], error) {
	if req.Msg.GapMs != nil {
		s.session.SetGap(*req.Msg.GapMs)
	}
	if req.Msg.SyncEnabled != nil {
		s.session.SetSyncEnabled(*req.Msg.SyncEnabled)
	}
	return s.status(), nil
}

// SetMuted mutes or unmutes the wall.
func (s *WallService) SetMuted(
	ctx context.Context,
	req *connect.Request[SetMutedRequest],
) (*connect.Response[Status], error) {
	s.session.SetMuted(req.Msg.Muted)
	return s.status(), nil
}

// SetQueuePolicy changes auto-advance and loop queue.
func (s *WallService) SetQueuePolicy(
	ctx context.Context,
	req *connect.Request[SetQueuePolicyRequest],
) (*connect.Response[Status], error) {
	if req.Msg.AutoAdvance != nil {
		s.session.SetAutoAdvance(*req.Msg.AutoAdvance)
	}
	if req.Msg.LoopQueue != nil {
		s.session.SetLoopQueue(*req.Msg.LoopQueue)
	}
	return s.status(), nil
}

// Watch streams wall notifications, starting with an INITIAL_STATE snapshot.
// The watcher subscribes before the snapshot is taken; notifications raised
// meanwhile are held and follow the snapshot.
func (s *WallService) Watch(
	ctx context.Context,
	req *connect.Request[WatchRequest],
	stream *connect.ServerStream[notification.Notification],
) error {
	notifManager := s.session.GetNotificationManager()
	adapter := &notificationStreamAdapter{stream: stream}

	subscriptionID := notifManager.Subscribe(adapter)
	defer func() {
		notifManager.Unsubscribe(subscriptionID)
		zlog.Debug().Msgf("api: watcher unsubscribed: id=%s", subscriptionID)
	}()
	zlog.Debug().Msgf("api: watcher subscribed: id=%s peer=%s", subscriptionID, req.Peer().Addr)

	st := s.session.GetStatus()
	initial := notification.InitialState(st.State.String(), st.Loaded, st.Queue, st.Current)
	notifManager.Stamp(initial)
	if err := adapter.start(initial); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-s.session.Done():
	}
	return nil
}

func (s *WallService) status() *connect.Response[Status] {
	return connect.NewResponse(toStatus(s.session.GetStatus()))
}

type notificationSender interface {
	Send(*notification.Notification) error
}

// notificationStreamAdapter adapts connect.ServerStream to notification.Stream.
// Broadcast may overlap sends after a timeout, so sends are serialised.
// Until start runs, notifications are held instead of sent.
type notificationStreamAdapter struct {
	mu      sync.Mutex
	stream  notificationSender
	started bool
	held    []*notification.Notification
}

func (a *notificationStreamAdapter) Send(n *notification.Notification) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		a.held = append(a.held, n)
		return nil
	}
	return a.stream.Send(n)
}

// start sends first, then everything held, and switches to direct sends.
func (a *notificationStreamAdapter) start(first *notification.Notification) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	held := a.held
	a.held = nil
	a.started = true

	if err := a.stream.Send(first); err != nil {
		return err
	}
	for _, n := range held {
		if err := a.stream.Send(n); err != nil {
			return err
		}
	}
	return nil
}

// toConnectError maps manager errors to Connect codes.
func toConnectError(err error) error {
	switch {
	case errors.Is(err, session.ErrInvalidSource):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, session.ErrNothingLoaded), errors.Is(err, session.ErrQueueEmpty):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, session.ErrClosed), errors.Is(err, session.ErrNoSession):
		return connect.NewError(connect.CodeUnavailable, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
