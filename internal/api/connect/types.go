package connect

import (
	"github.com/osa030/videowall/internal/app/session"
	"github.com/osa030/videowall/internal/domain/source"
)

// Status is the wall snapshot returned by GetStatus and every mutating call.
type Status struct {
	State         string             `json:"state"`
	Kind          source.Kind        `json:"kind"`
	Loaded        *source.Source     `json:"loaded,omitempty"`
	Current       *source.QueueItem  `json:"current,omitempty"`
	Queue         []source.QueueItem `json:"queue"`
	Ready         int                `json:"ready"`
	Expected      int                `json:"expected"`
	GapMs         int                `json:"gap_ms"`
	SyncEnabled   bool               `json:"sync_enabled"`
	EngineRunning bool               `json:"engine_running"`
	Muted         bool               `json:"muted"`
	AutoAdvance   bool               `json:"auto_advance"`
	LoopQueue     bool               `json:"loop_queue"`
}

type GetStatusRequest struct{}

type TogglePlayRequest struct{}

type PlayNextRequest struct{}

type EnqueueRequest struct {
	Source source.Source `json:"source"`
}

type EnqueueResponse struct {
	Accepted bool              `json:"accepted"`
	Code     string            `json:"code,omitempty"`
	Item     *source.QueueItem `json:"item,omitempty"`
	Status   *Status           `json:"status"`
}

type RemoveRequest struct {
	ID string `json:"id"`
}

// MoveRequest is used by MoveUp and MoveDown.
type MoveRequest struct {
	ID string `json:"id"`
}

type ReorderRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type LoadSourceRequest struct {
	Source source.Source `json:"source"`
}

// UpdateSyncRequest changes only the fields that are set.
type UpdateSyncRequest struct {
	GapMs       *int  `json:"gap_ms,omitempty"`
	SyncEnabled *bool `json:"sync_enabled,omitempty"`
}

type SetMutedRequest struct {
	Muted bool `json:"muted"`
}

// SetQueuePolicyRequest changes only the fields that are set.
type SetQueuePolicyRequest struct {
	AutoAdvance *bool `json:"auto_advance,omitempty"`
	LoopQueue   *bool `json:"loop_queue,omitempty"`
}

type WatchRequest struct{}

func toStatus(st *session.Status) *Status {
	out := &Status{
		State:         st.State.String(),
		Kind:          st.Kind,
		Current:       st.Current,
		Queue:         st.Queue,
		Ready:         st.Ready,
		Expected:      st.Expected,
		GapMs:         st.Sync.GapMillis,
		SyncEnabled:   st.Sync.SyncEnabled,
		EngineRunning: st.EngineRunning,
		Muted:         st.Muted,
		AutoAdvance:   st.AutoAdvance,
		LoopQueue:     st.LoopQueue,
	}
	if out.Queue == nil {
		out.Queue = []source.QueueItem{}
	}
	if !st.Loaded.IsZero() {
		loaded := st.Loaded
		out.Loaded = &loaded
	}
	return out
}
