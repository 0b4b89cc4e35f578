// Package main provides the wall control CLI entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/videowall/internal/api/connect"
	"github.com/osa030/videowall/internal/app/notification"
	"github.com/osa030/videowall/internal/domain/source"
)

var (
	app    = kingpin.New("wallctl", "Video wall control client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Admin token (or set WALL_ADMIN_TOKEN env)").Envar("WALL_ADMIN_TOKEN").String()

	// status command
	statusCmd = app.Command("status", "Show wall status")

	// toggle command
	toggleCmd = app.Command("toggle", "Toggle play/pause (starts the queue if nothing is loaded)")

	// next command
	nextCmd = app.Command("next", "Load the next queued source")

	// enqueue command
	enqueueCmd  = app.Command("enqueue", "Add a source to the queue").Alias("add")
	enqueueKind = enqueueCmd.Arg("kind", "Source kind (LOCAL or REMOTE)").Required().String()
	enqueueRef  = enqueueCmd.Arg("ref", "Media URL or remote video id").Required().String()
	enqueueName = enqueueCmd.Flag("name", "Display name").String()

	// load command
	loadCmd  = app.Command("load", "Load a source immediately, bypassing the queue")
	loadKind = loadCmd.Arg("kind", "Source kind (LOCAL or REMOTE)").Required().String()
	loadRef  = loadCmd.Arg("ref", "Media URL or remote video id").Required().String()
	loadName = loadCmd.Flag("name", "Display name").String()

	// queue editing commands
	removeCmd  = app.Command("remove", "Remove a queued item").Alias("rm")
	removeID   = removeCmd.Arg("id", "Queue item ID").Required().String()
	upCmd      = app.Command("up", "Move a queued item one position up")
	upID       = upCmd.Arg("id", "Queue item ID").Required().String()
	downCmd    = app.Command("down", "Move a queued item one position down")
	downID     = downCmd.Arg("id", "Queue item ID").Required().String()
	reorderCmd = app.Command("reorder", "Move a queued item from one index to another")
	reorderSrc = reorderCmd.Arg("from", "Source index").Required().Int()
	reorderDst = reorderCmd.Arg("to", "Destination index").Required().Int()

	// sync command
	syncCmd     = app.Command("sync", "Update sync settings")
	syncGapSet  bool
	syncGap     = syncCmd.Flag("gap", "Per-tile offset in milliseconds").IsSetByUser(&syncGapSet).Int()
	syncEnable  = syncCmd.Flag("enable", "Enable drift correction").Bool()
	syncDisable = syncCmd.Flag("disable", "Disable drift correction (free run)").Bool()

	// mute commands
	muteCmd   = app.Command("mute", "Mute every tile")
	unmuteCmd = app.Command("unmute", "Unmute every tile")

	// policy command
	policyCmd     = app.Command("policy", "Update queue policy")
	policyAutoSet bool
	policyAuto    = policyCmd.Flag("auto-advance", "Load the next source when the current one ends").IsSetByUser(&policyAutoSet).Bool()
	policyLoopSet bool
	policyLoop    = policyCmd.Flag("loop", "Re-append played sources to the queue").IsSetByUser(&policyLoopSet).Bool()

	// watch command
	watchCmd = app.Command("watch", "Stream wall notifications")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := apiconnect.NewClient(http.DefaultClient, *server, *token)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, client, command, os.Stdout); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func execute(ctx context.Context, client *apiconnect.Client, command string, w io.Writer) error {
	var (
		st  *apiconnect.Status
		err error
	)

	switch command {
	case statusCmd.FullCommand():
		st, err = client.GetStatus(ctx)
	case toggleCmd.FullCommand():
		st, err = client.TogglePlay(ctx)
	case nextCmd.FullCommand():
		st, err = client.PlayNext(ctx)
	case enqueueCmd.FullCommand():
		return enqueue(ctx, client, w, newSource(*enqueueKind, *enqueueRef, *enqueueName))
	case loadCmd.FullCommand():
		st, err = client.LoadSource(ctx, newSource(*loadKind, *loadRef, *loadName))
	case removeCmd.FullCommand():
		st, err = client.Remove(ctx, *removeID)
	case upCmd.FullCommand():
		st, err = client.MoveUp(ctx, *upID)
	case downCmd.FullCommand():
		st, err = client.MoveDown(ctx, *downID)
	case reorderCmd.FullCommand():
		st, err = client.Reorder(ctx, *reorderSrc, *reorderDst)
	case syncCmd.FullCommand():
		st, err = client.UpdateSync(ctx, syncRequest())
	case muteCmd.FullCommand():
		st, err = client.SetMuted(ctx, true)
	case unmuteCmd.FullCommand():
		st, err = client.SetMuted(ctx, false)
	case policyCmd.FullCommand():
		st, err = client.SetQueuePolicy(ctx, policyRequest())
	case watchCmd.FullCommand():
		return watch(ctx, client, w)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	if err != nil {
		return err
	}

	printStatus(w, st)
	return nil
}

func newSource(kind, ref, name string) source.Source {
	return source.Source{
		Kind:        source.Kind(strings.ToUpper(kind)),
		Ref:         ref,
		DisplayName: name,
	}
}

func enqueue(ctx context.Context, client *apiconnect.Client, w io.Writer, src source.Source) error {
	resp, err := client.Enqueue(ctx, src)
	if err != nil {
		return err
	}

	if !resp.Accepted {
		fmt.Fprintf(w, "Rejected: %s\n", resp.Code)
		return nil
	}
	if resp.Item != nil {
		fmt.Fprintf(w, "Enqueued: %s (%s)\n", resp.Item.ID, label(resp.Item.Source))
	}
	printStatus(w, resp.Status)
	return nil
}

func syncRequest() *apiconnect.UpdateSyncRequest {
	req := &apiconnect.UpdateSyncRequest{}
	if syncGapSet {
		req.GapMs = syncGap
	}
	switch {
	case *syncEnable:
		enabled := true
		req.SyncEnabled = &enabled
	case *syncDisable:
		enabled := false
		req.SyncEnabled = &enabled
	}
	return req
}

func policyRequest() *apiconnect.SetQueuePolicyRequest {
	req := &apiconnect.SetQueuePolicyRequest{}
	if policyAutoSet {
		req.AutoAdvance = policyAuto
	}
	if policyLoopSet {
		req.LoopQueue = policyLoop
	}
	return req
}

func watch(ctx context.Context, client *apiconnect.Client, w io.Writer) error {
	err := client.Watch(ctx, func(n *notification.Notification) error {
		printNotification(w, n)
		return nil
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func printStatus(w io.Writer, st *apiconnect.Status) {
	if st == nil {
		return
	}
	fmt.Fprintln(w, "\n=== WALL STATUS ===")
	fmt.Fprintf(w, "State: %s\n", st.State)
	fmt.Fprintf(w, "Kind: %s\n", st.Kind)
	if st.State == "BUFFERING" {
		fmt.Fprintf(w, "Ready: %d/%d\n", st.Ready, st.Expected)
	}
	if st.Loaded != nil {
		fmt.Fprintf(w, "Loaded: %s\n", label(*st.Loaded))
	} else {
		fmt.Fprintln(w, "Loaded: (nothing)")
	}
	fmt.Fprintf(w, "Sync: enabled=%v gap=%dms engine_running=%v\n", st.SyncEnabled, st.GapMs, st.EngineRunning)
	fmt.Fprintf(w, "Muted: %v\n", st.Muted)
	fmt.Fprintf(w, "Policy: auto_advance=%v loop=%v\n", st.AutoAdvance, st.LoopQueue)

	fmt.Fprintf(w, "\nQueue (%d):\n", len(st.Queue))
	for i, item := range st.Queue {
		fmt.Fprintf(w, "  %2d. %s  %s\n", i, item.ID, label(item.Source))
	}
	fmt.Fprintln(w)
}

func printNotification(w io.Writer, n *notification.Notification) {
	prefix := fmt.Sprintf("[%d %s] %s", n.SequenceNo, n.Time.Format("15:04:05.000"), n.Type)
	switch n.Type {
	case notification.TypeStateChanged:
		fmt.Fprintf(w, "%s state=%s\n", prefix, n.State)
	case notification.TypeSourceLoaded:
		if n.Source != nil {
			fmt.Fprintf(w, "%s source=%s\n", prefix, label(*n.Source))
			return
		}
		fmt.Fprintln(w, prefix)
	case notification.TypeQueueChanged:
		fmt.Fprintf(w, "%s size=%d\n", prefix, len(n.Queue))
	case notification.TypeBarrierTimeout:
		fmt.Fprintf(w, "%s ready=%d/%d\n", prefix, n.Ready, n.Expected)
	case notification.TypeInitialState:
		fmt.Fprintf(w, "%s state=%s queue=%d\n", prefix, n.State, len(n.Queue))
	default:
		fmt.Fprintln(w, prefix)
	}
}

func label(src source.Source) string {
	if src.DisplayName != "" {
		return fmt.Sprintf("%s [%s %s]", src.DisplayName, src.Kind, src.Ref)
	}
	return fmt.Sprintf("[%s %s]", src.Kind, src.Ref)
}
