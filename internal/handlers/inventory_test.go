package handlers_test

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/coder/websocket"

	"github.com/MH0386/containr/internal/docker"
	"github.com/MH0386/containr/internal/state"
	"github.com/MH0386/containr/internal/testutil"
)

func containersMatch(pred func([]docker.Container) bool) func(json.RawMessage) bool {
	return func(data json.RawMessage) bool {
		var list []docker.Container
		if err := json.Unmarshal(data, &list); err != nil {
			return false
		}
		return pred(list)
	}
}

func stringMatch(pred func(string) bool) func(json.RawMessage) bool {
	return func(data json.RawMessage) bool {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return false
		}
		return pred(s)
	}
}

func TestConnectSendsEveryChannel(t *testing.T) {
	env := testutil.Setup(t)
	conn := env.DialWS(t)

	for _, f := range state.AllFields() {
		env.WaitForPush(t, conn, f.String(), nil)
	}
}

func TestConnectPushCarriesStoreVersion(t *testing.T) {
	env := testutil.Setup(t)
	env.Inventory.RecordAction("one")
	env.Inventory.RecordAction("two")

	conn := env.DialWS(t)
	msg := env.WaitForPush(t, conn, "lastAction", stringMatch(func(s string) bool { return s == "two" }))
	if msg.Version != 2 {
		t.Errorf("lastAction pushed at version %d, want 2", msg.Version)
	}

	env.Inventory.RecordAction("three")
	msg = env.WaitForPush(t, conn, "lastAction", nil)
	var got string
	json.Unmarshal(msg.Data, &got)
	if got != "three" || msg.Version != 3 {
		t.Errorf("next lastAction push = %q at version %d, want three at 3", got, msg.Version)
	}
}

// Connections that join while the field is being rewritten all settle on the
// final value: a connect-time value never overwrites a newer broadcast.
func TestLateConnectionsConverge(t *testing.T) {
	env := testutil.Setup(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 50 {
			env.Inventory.RecordAction(fmt.Sprintf("action %d", i))
		}
	}()

	conns := []*websocket.Conn{env.DialWS(t), env.DialWS(t), env.DialWS(t)}
	<-done
	env.Inventory.RecordAction("final")

	for i, conn := range conns {
		var last uint64
		for {
			msg := env.WaitForPush(t, conn, "lastAction", nil)
			if msg.Version < last {
				t.Fatalf("conn %d: version went back from %d to %d", i, last, msg.Version)
			}
			last = msg.Version
			var s string
			json.Unmarshal(msg.Data, &s)
			if s == "final" {
				break
			}
		}
	}
}

func TestRefreshAllBroadcastsLists(t *testing.T) {
	env := testutil.Setup(t)
	conn := env.DialWS(t)

	resp := env.SendAndReceive(t, conn, "refreshAll")
	if ok, _ := resp["ok"].(bool); !ok {
		t.Fatalf("refreshAll ack = %v", resp)
	}

	env.WaitForPush(t, conn, "containers", containersMatch(func(c []docker.Container) bool {
		return len(c) == 3
	}))

	env.Inventory.Wait()
	snap := env.Inventory.Store().Snapshot()
	if len(snap.Images) != 3 {
		t.Errorf("images = %d, want 3 tagged", len(snap.Images))
	}
	if len(snap.Volumes) != 2 {
		t.Errorf("volumes = %d, want 2", len(snap.Volumes))
	}
	if snap.IsLoading {
		t.Error("still loading after refreshAll settled")
	}
}

func TestSetContainerStateStartsContainer(t *testing.T) {
	env := testutil.Setup(t)
	conn := env.DialWS(t)

	resp := env.SendAndReceive(t, conn, "setContainerState", "db", "running")
	if ok, _ := resp["ok"].(bool); !ok {
		t.Fatalf("setContainerState ack = %v", resp)
	}

	env.WaitForPush(t, conn, "lastAction", stringMatch(func(s string) bool {
		return s == "Started container db"
	}))
	env.WaitForPush(t, conn, "containers", containersMatch(func(list []docker.Container) bool {
		for _, c := range list {
			if c.Name == "db" {
				return c.State == docker.Running
			}
		}
		return false
	}))

	if got := env.State.ContainerState("db"); got != "running" {
		t.Errorf("daemon state = %q", got)
	}
}

func TestSetContainerStateRejectsBadArgs(t *testing.T) {
	env := testutil.Setup(t)
	conn := env.DialWS(t)

	tests := []struct {
		name string
		args []any
	}{
		{"missing id", nil},
		{"bad state", []any{"db", "paused"}},
		{"missing state", []any{"db"}},
	}
	for _, tt := range tests {
		resp := env.SendAndReceive(t, conn, "setContainerState", tt.args...)
		if ok, _ := resp["ok"].(bool); ok {
			t.Errorf("%s: expected rejection, got %v", tt.name, resp)
		}
	}
	if got := env.State.ContainerState("db"); got != "exited" {
		t.Errorf("daemon state changed to %q", got)
	}
}

func TestStopFailureSetsError(t *testing.T) {
	env := testutil.Setup(t)
	env.State.SetFailure(docker.FakeOpStop, "container is locked")
	conn := env.DialWS(t)

	env.SendAndReceive(t, conn, "setContainerState", "web", "stopped")
	env.WaitForPush(t, conn, "errorMessage", stringMatch(func(s string) bool {
		return strings.HasPrefix(s, "Failed to stop container: ") && strings.Contains(s, "container is locked")
	}))

	env.Inventory.Wait()
	if got := env.Inventory.Store().LastAction(); got != "" {
		t.Errorf("last action = %q after failed stop", got)
	}
}

func TestRefreshFailureKeepsList(t *testing.T) {
	env := testutil.Setup(t)
	conn := env.DialWS(t)

	env.Inventory.RefreshImages()
	env.Inventory.Wait()
	before := env.Inventory.Store().Images()

	env.State.SetFailure(docker.FakeOpImages, "disk on fire")
	env.SendAndReceive(t, conn, "refreshImages")
	env.WaitForPush(t, conn, "errorMessage", stringMatch(func(s string) bool {
		return strings.HasPrefix(s, "Failed to list images: ") && strings.Contains(s, "disk on fire")
	}))

	env.Inventory.Wait()
	after := env.Inventory.Store().Images()
	if len(after) != len(before) || len(after) == 0 {
		t.Errorf("images changed after failed refresh: %d -> %d", len(before), len(after))
	}
}

func TestRecordActionAndSnapshot(t *testing.T) {
	env := testutil.Setup(t)
	conn := env.DialWS(t)

	env.SendAndReceive(t, conn, "recordAction", "Viewed images")
	env.WaitForPush(t, conn, "lastAction", stringMatch(func(s string) bool { return s == "Viewed images" }))

	env.Inventory.RefreshVolumes()
	env.Inventory.Wait()

	resp := env.SendAndReceive(t, conn, "getSnapshot")
	snap, _ := resp["snapshot"].(map[string]any)
	if snap == nil {
		t.Fatalf("getSnapshot ack = %v", resp)
	}
	if resp["version"] != "test" {
		t.Errorf("getSnapshot version = %v", resp["version"])
	}
	if snap["lastAction"] != "Viewed images" {
		t.Errorf("snapshot lastAction = %v", snap["lastAction"])
	}
	if snap["daemonHost"] != env.Host {
		t.Errorf("snapshot daemonHost = %v", snap["daemonHost"])
	}
	vols, _ := snap["volumes"].([]any)
	if len(vols) != 2 {
		t.Errorf("snapshot volumes = %v", snap["volumes"])
	}
}

func TestRecordActionRejectsNonString(t *testing.T) {
	env := testutil.Setup(t)
	conn := env.DialWS(t)

	// Without an id the request is served but not acked.
	env.SendEvent(t, conn, "recordAction", "Viewed volumes")
	env.WaitForPush(t, conn, "lastAction", stringMatch(func(s string) bool { return s == "Viewed volumes" }))

	tests := []struct {
		name string
		args []any
	}{
		{"number", []any{42}},
		{"empty string", []any{""}},
		{"object", []any{map[string]any{"msg": "x"}}},
		{"no args", nil},
	}
	for _, tt := range tests {
		resp := env.SendAndReceive(t, conn, "recordAction", tt.args...)
		if ok, _ := resp["ok"].(bool); ok {
			t.Errorf("%s: expected rejection, got %v", tt.name, resp)
		}
	}
	if got := env.Inventory.Store().LastAction(); got != "Viewed volumes" {
		t.Errorf("last action = %q after rejected calls", got)
	}
}

func TestUnavailableDaemon(t *testing.T) {
	env := testutil.SetupUnavailable(t)
	conn := env.DialWS(t)

	for _, event := range []string{"refreshContainers", "refreshImages", "refreshVolumes"} {
		resp := env.SendAndReceive(t, conn, event)
		if ok, _ := resp["ok"].(bool); !ok {
			t.Errorf("%s ack = %v", event, resp)
		}
	}
	env.SendAndReceive(t, conn, "setContainerState", "web", "running")

	env.WaitForPush(t, conn, "errorMessage", stringMatch(func(s string) bool {
		return s == state.ServiceUnavailable
	}))

	snap := env.Inventory.Store().Snapshot()
	if len(snap.Containers) != 0 || snap.IsLoading || snap.LastAction != "" {
		t.Errorf("store changed without a daemon: %+v", snap)
	}
}

func TestUnknownEvent(t *testing.T) {
	env := testutil.Setup(t)
	conn := env.DialWS(t)

	resp := env.SendAndReceive(t, conn, "deleteEverything")
	if ok, _ := resp["ok"].(bool); ok {
		t.Errorf("unknown event acked ok: %v", resp)
	}
}
