package connect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/videowall/internal/app/drift"
	"github.com/osa030/videowall/internal/app/notification"
	"github.com/osa030/videowall/internal/app/session"
	"github.com/osa030/videowall/internal/domain/source"
	"github.com/osa030/videowall/internal/domain/tile"
	"github.com/osa030/videowall/internal/domain/tile/tiletest"
)

const testToken = "s3cret"

func buildFakes(kind source.Kind, count int) ([]tile.Handle, error) {
	if kind == source.KindLocal {
		fakes, handles := tiletest.RateFakes(count)
		for _, f := range fakes {
			f.PrimeReady = true
		}
		return handles, nil
	}
	fakes, handles := tiletest.Fakes(count)
	for _, f := range fakes {
		f.PrimeReady = true
	}
	return handles, nil
}

func newTestServer(t *testing.T) (*Client, *session.Manager, *httptest.Server) {
	t.Helper()
	mgr, err := session.NewManager(session.Config{
		TileCount:   2,
		InitialKind: source.KindLocal,
		Muted:       true,
		Sync:        drift.Settings{SyncEnabled: true},
		AutoAdvance: true,
		Filters:     map[string]map[string]any{"source_ref_filter": nil},
	}, buildFakes, nil)
	require.NoError(t, err)

	path, handler := NewWallServiceHandler(NewWallService(mgr),
		connect.WithInterceptors(NewAdminAuthInterceptor(testToken, ReadOnlyProcedures...)))
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		mgr.Close()
		srv.Close()
	})
	return NewClient(srv.Client(), srv.URL, testToken), mgr, srv
}

var clip = source.Source{Kind: source.KindLocal, DisplayName: "Intro", Ref: "/media/intro.mp4"}

func TestWallService_Auth(t *testing.T) {
	_, _, srv := newTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing token", token: ""},
		{name: "wrong token", token: "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			anon := NewClient(srv.Client(), srv.URL, tt.token)

			_, err := anon.TogglePlay(ctx)
			require.Error(t, err)
			assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

			// Read-only calls stay open.
			st, err := anon.GetStatus(ctx)
			require.NoError(t, err)
			assert.Equal(t, "IDLE", st.State)
		})
	}
}

func TestWallService_LoadAndToggle(t *testing.T) {
	client, _, _ := newTestServer(t)
	ctx := context.Background()

	_, err := client.TogglePlay(ctx)
	require.Error(t, err)
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))

	st, err := client.LoadSource(ctx, clip)
	require.NoError(t, err)
	assert.Equal(t, "PLAYING", st.State)
	require.NotNil(t, st.Loaded)
	assert.Equal(t, clip, *st.Loaded)
	assert.Equal(t, source.KindLocal, st.Kind)
	assert.Equal(t, 2, st.Expected)

	st, err = client.TogglePlay(ctx)
	require.NoError(t, err)
	assert.Equal(t, "PAUSED", st.State)

	_, err = client.LoadSource(ctx, source.Source{Kind: "VHS", Ref: "x"})
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestWallService_Queue(t *testing.T) {
	client, _, _ := newTestServer(t)
	ctx := context.Background()

	res, err := client.Enqueue(ctx, source.Source{Kind: source.KindLocal, Ref: "/media/a.txt"})
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, "unsupported_extension", res.Code)
	assert.Nil(t, res.Item)

	var ids []string
	for _, ref := range []string{"/media/a.mp4", "/media/b.mp4", "/media/c.mp4"} {
		res, err := client.Enqueue(ctx, source.Source{Kind: source.KindLocal, Ref: ref})
		require.NoError(t, err)
		require.True(t, res.Accepted)
		require.NotNil(t, res.Item)
		ids = append(ids, res.Item.ID)
	}

	st, err := client.GetStatus(ctx)
	require.NoError(t, err)
	require.NotNil(t, st.Loaded, "auto-advance starts the idle wall")
	assert.Equal(t, "/media/a.mp4", st.Loaded.Ref)
	require.Len(t, st.Queue, 2)

	st, err = client.MoveUp(ctx, ids[2])
	require.NoError(t, err)
	assert.Equal(t, ids[2], st.Queue[0].ID)

	st, err = client.MoveDown(ctx, ids[2])
	require.NoError(t, err)
	assert.Equal(t, ids[1], st.Queue[0].ID)

	st, err = client.Reorder(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, ids[2], st.Queue[0].ID)

	st, err = client.Remove(ctx, ids[2])
	require.NoError(t, err)
	require.Len(t, st.Queue, 1)

	st, err = client.PlayNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/media/b.mp4", st.Loaded.Ref)
	assert.Empty(t, st.Queue)

	_, err = client.PlayNext(ctx)
	require.Error(t, err)
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))
}

func TestWallService_Settings(t *testing.T) {
	client, _, _ := newTestServer(t)
	ctx := context.Background()

	gap := 250
	st, err := client.UpdateSync(ctx, &UpdateSyncRequest{GapMs: &gap})
	require.NoError(t, err)
	assert.Equal(t, 250, st.GapMs)
	assert.True(t, st.SyncEnabled)

	off := false
	st, err = client.UpdateSync(ctx, &UpdateSyncRequest{SyncEnabled: &off})
	require.NoError(t, err)
	assert.Equal(t, 250, st.GapMs)
	assert.False(t, st.SyncEnabled)

	st, err = client.SetMuted(ctx, false)
	require.NoError(t, err)
	assert.False(t, st.Muted)

	on := true
	st, err = client.SetQueuePolicy(ctx, &SetQueuePolicyRequest{LoopQueue: &on})
	require.NoError(t, err)
	assert.True(t, st.LoopQueue)
	assert.True(t, st.AutoAdvance)

	st, err = client.SetQueuePolicy(ctx, &SetQueuePolicyRequest{AutoAdvance: &off})
	require.NoError(t, err)
	assert.False(t, st.AutoAdvance)
	assert.True(t, st.LoopQueue)
}

func TestWallService_Watch(t *testing.T) {
	client, mgr, _ := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan *notification.Notification, 32)
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- client.Watch(ctx, func(n *notification.Notification) error {
			got <- n
			return nil
		})
	}()

	first := <-got
	assert.Equal(t, notification.TypeInitialState, first.Type)
	assert.Equal(t, "IDLE", first.State)

	// The watcher is subscribed by the time the snapshot arrives.
	assert.Equal(t, 1, mgr.GetNotificationManager().SubscriberCount())

	_, err := client.LoadSource(ctx, clip)
	require.NoError(t, err)

	for {
		select {
		case n := <-got:
			assert.Greater(t, n.SequenceNo, first.SequenceNo)
			if n.Type == notification.TypeStateChanged && n.State == "PLAYING" {
				cancel()
				<-watchErr
				return
			}
		case <-ctx.Done():
			t.Fatal("no PLAYING notification")
		}
	}
}

type recordingSender struct {
	sent []*notification.Notification
}

func (r *recordingSender) Send(n *notification.Notification) error {
	r.sent = append(r.sent, n)
	return nil
}

func TestNotificationStreamAdapter_HoldsUntilStarted(t *testing.T) {
	rec := &recordingSender{}
	adapter := &notificationStreamAdapter{stream: rec}

	// Raised while the snapshot is being taken.
	early := notification.StateChanged("BUFFERING")
	require.NoError(t, adapter.Send(early))
	assert.Empty(t, rec.sent)

	initial := notification.InitialState("IDLE", source.Source{}, nil, nil)
	require.NoError(t, adapter.start(initial))
	late := notification.StateChanged("PLAYING")
	require.NoError(t, adapter.Send(late))

	assert.Equal(t, []*notification.Notification{initial, early, late}, rec.sent)
}

func TestCodec(t *testing.T) {
	c := Codec{}
	assert.Equal(t, "json", c.Name())

	data, err := c.Marshal(&ReorderRequest{From: 1, To: 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"from":1,"to":3}`, string(data))

	var req ReorderRequest
	require.NoError(t, c.Unmarshal(nil, &req))
	assert.Equal(t, ReorderRequest{}, req)
	assert.Error(t, c.Unmarshal([]byte("{"), &req))
}
