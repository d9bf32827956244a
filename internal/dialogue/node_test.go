package dialogue

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/dkeye/Classroom/internal/domain"
)

func TestNewNodeRequiresCollaborators(t *testing.T) {
	if _, err := NewNode(Options{ID: "x"}); err == nil {
		t.Fatal("expected an error without authority, transport and dispatcher")
	}
}

func TestFollowerInputsBecomeRequests(t *testing.T) {
	disp := &manualDispatcher{}
	f := newMember(t, "student", false, disp, instantConfig(), domain.DefaultScript(), nil)
	f.node.ReceiveSnapshot(EncodeSnapshot(State{Index: 1, Playing: true}))

	if f.node.Next() {
		t.Fatal("follower advance must not apply locally")
	}
	if f.node.Skip() {
		t.Fatal("follower skip must not apply locally")
	}
	if got := f.node.State(); got != (State{1, true}) {
		t.Fatalf("follower state moved to %s", got)
	}
	if len(f.tr.sent) != 2 {
		t.Fatalf("expected two requests, got %d", len(f.tr.sent))
	}
	if f.tr.sent[0].Target != TargetLeader || f.tr.sent[0].Payload.Kind() != KindRequestNext {
		t.Fatalf("unexpected first request: %+v", f.tr.sent[0])
	}
	if f.tr.sent[1].Target != TargetLeader || f.tr.sent[1].Payload.Kind() != KindRequestSkip {
		t.Fatalf("unexpected second request: %+v", f.tr.sent[1])
	}
	if len(f.tr.snapshots) != 0 {
		t.Fatal("follower must never push snapshots")
	}
}

func TestFollowerStartIsIgnored(t *testing.T) {
	disp := &manualDispatcher{}
	f := newMember(t, "student", false, disp, instantConfig(), domain.DefaultScript(), &fakeSynth{})
	if f.node.Start() {
		t.Fatal("follower start must be ignored")
	}
	if len(f.tr.sent) != 0 || f.node.State() != Idle {
		t.Fatal("follower start must have no effect")
	}
}

func TestRequestsFromFollowerDriveLeader(t *testing.T) {
	disp := &manualDispatcher{}
	script := domain.DefaultScript()
	leader := newMember(t, "host", true, disp, instantConfig(), script, &fakeSynth{})
	f := newMember(t, "student", false, disp, instantConfig(), script, nil)
	link(leader, f)

	// Requests while idle are ignored.
	f.node.Next()
	if leader.node.State() != Idle {
		t.Fatal("request while idle must not start the dialogue")
	}

	leader.node.Start()
	disp.drain()
	f.node.Next()
	disp.drain()
	if got := leader.node.State(); got != (State{1, true}) {
		t.Fatalf("leader should be on entry 1, got %s", got)
	}
	if got := f.node.State(); got != (State{1, true}) {
		t.Fatalf("follower should mirror entry 1, got %s", got)
	}

	f.node.Skip()
	if leader.node.State() != Idle || f.node.State() != Idle {
		t.Fatalf("skip request should end the dialogue: leader %s follower %s", leader.node.State(), f.node.State())
	}
}

func TestReplicationToFollowers(t *testing.T) {
	disp := &manualDispatcher{}
	script := domain.DefaultScript()
	leader := newMember(t, "host", true, disp, instantConfig(), script, &fakeSynth{})
	a := newMember(t, "alice", false, disp, instantConfig(), script, nil)
	b := newMember(t, "bob", false, disp, instantConfig(), script, nil)
	link(leader, a, b)

	leader.node.Start()
	disp.drain()

	for _, f := range []*member{a, b} {
		if !f.view.panel {
			t.Fatalf("%s: panel should be visible", f.node.id)
		}
		if f.view.speaker != "Teacher" || f.view.color != domain.ColorCyan {
			t.Fatalf("%s: unexpected speaker %q color %+v", f.node.id, f.view.speaker, f.view.color)
		}
		if f.view.text != script[0].Text {
			t.Fatalf("%s: unexpected text %q", f.node.id, f.view.text)
		}
		if f.view.cursor == nil || *f.view.cursor {
			t.Fatalf("%s: cursor should be unlocked", f.node.id)
		}
		if len(f.player.played) != 1 {
			t.Fatalf("%s: expected one buffer played, got %d", f.node.id, len(f.player.played))
		}
		want := leader.player.played[0]
		got := f.player.played[0]
		if got.SampleRate != want.SampleRate || got.Channels != want.Channels || len(got.Samples) != len(want.Samples) {
			t.Fatalf("%s: buffer shape differs", f.node.id)
		}
		for i := range want.Samples {
			if math.Float32bits(got.Samples[i]) != math.Float32bits(want.Samples[i]) {
				t.Fatalf("%s: sample %d differs", f.node.id, i)
			}
		}
	}

	for range script {
		leader.node.Next()
		disp.drain()
	}
	for _, f := range []*member{a, b} {
		if f.node.State() != Idle {
			t.Fatalf("%s: expected idle, got %s", f.node.id, f.node.State())
		}
		if f.view.panel {
			t.Fatalf("%s: panel should be hidden", f.node.id)
		}
		if len(f.player.played) != script.Len() {
			t.Fatalf("%s: expected %d buffers played, got %d", f.node.id, script.Len(), len(f.player.played))
		}
	}
}

func TestSnapshotIsIdempotent(t *testing.T) {
	disp := &manualDispatcher{}
	f := newMember(t, "student", false, disp, instantConfig(), domain.DefaultScript(), nil)

	snap := EncodeSnapshot(State{Index: 2, Playing: true})
	for i := 0; i < 3; i++ {
		if err := f.node.ReceiveSnapshot(snap); err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}
	if len(f.view.changes) != 1 {
		t.Fatalf("expected one observable change, got %v", f.view.changes)
	}
	if got := f.node.State(); got != (State{2, true}) {
		t.Fatalf("unexpected state %s", got)
	}
}

func TestMalformedSnapshotLeavesStateAlone(t *testing.T) {
	disp := &manualDispatcher{}
	f := newMember(t, "student", false, disp, instantConfig(), domain.DefaultScript(), nil)
	f.node.ReceiveSnapshot(EncodeSnapshot(State{Index: 0, Playing: true}))

	err := f.node.ReceiveSnapshot(EncodeSnapshot(State{Index: 3, Playing: false}))
	if !errors.Is(err, ErrMalformedSnapshot) {
		t.Fatalf("expected ErrMalformedSnapshot, got %v", err)
	}
	if got := f.node.State(); got != (State{0, true}) {
		t.Fatalf("state changed to %s", got)
	}
}

func TestLeaderIgnoresSnapshots(t *testing.T) {
	disp := &manualDispatcher{}
	leader := newMember(t, "host", true, disp, instantConfig(), domain.DefaultScript(), &fakeSynth{})
	leader.node.Start()
	disp.drain()

	if err := leader.node.ReceiveSnapshot(EncodeSnapshot(Idle)); err != nil {
		t.Fatal(err)
	}
	if got := leader.node.State(); got != (State{0, true}) {
		t.Fatalf("leader state overwritten to %s", got)
	}
}

func TestAudioForStaleIndexIsCachedNotPlayed(t *testing.T) {
	disp := &manualDispatcher{}
	f := newMember(t, "student", false, disp, instantConfig(), domain.DefaultScript(), nil)
	f.node.Receive(Envelope{FromLeader: true, Payload: ShowPanel{Show: true}})
	f.node.ReceiveSnapshot(EncodeSnapshot(State{Index: 3, Playing: true}))

	data, err := NewAudioData(1, testBuffer(1000, 1, 100))
	if err != nil {
		t.Fatal(err)
	}
	f.node.Receive(Envelope{Target: TargetOthers, FromLeader: true, Payload: data})

	if _, ok := f.node.Cache().Get(1); !ok {
		t.Fatal("audio for entry 1 should be cached")
	}
	if len(f.player.played) != 0 {
		t.Fatal("audio for a stale index must not play")
	}
}

func TestCachedAudioPlaysWhenStateCatchesUp(t *testing.T) {
	disp := &manualDispatcher{}
	f := newMember(t, "student", false, disp, instantConfig(), domain.DefaultScript(), nil)
	f.node.Receive(Envelope{FromLeader: true, Payload: ShowPanel{Show: true}})
	f.node.ReceiveSnapshot(EncodeSnapshot(State{Index: 0, Playing: true}))

	data, _ := NewAudioData(1, testBuffer(1000, 2, 100))
	f.node.Receive(Envelope{FromLeader: true, Payload: data})
	if len(f.player.played) != 0 {
		t.Fatal("audio arrived ahead of the snapshot and must wait")
	}

	f.node.ReceiveSnapshot(EncodeSnapshot(State{Index: 1, Playing: true}))
	if len(f.player.played) != 1 {
		t.Fatalf("expected the cached buffer to play, played %d", len(f.player.played))
	}
	// Replaying the same snapshot must not play it twice.
	f.node.ReceiveSnapshot(EncodeSnapshot(State{Index: 1, Playing: true}))
	f.node.Receive(Envelope{FromLeader: true, Payload: data})
	if len(f.player.played) != 1 {
		t.Fatalf("buffer played %d times", len(f.player.played))
	}
}

func TestShowPanelResetsCache(t *testing.T) {
	disp := &manualDispatcher{}
	f := newMember(t, "student", false, disp, instantConfig(), domain.DefaultScript(), nil)
	data, _ := NewAudioData(0, testBuffer(1000, 1, 10))
	f.node.Receive(Envelope{FromLeader: true, Payload: data})
	if f.node.Cache().Len() != 1 {
		t.Fatal("expected one cached buffer")
	}
	f.node.Receive(Envelope{FromLeader: true, Payload: ShowPanel{Show: true}})
	if f.node.Cache().Len() != 0 {
		t.Fatal("showing the panel starts a new sequence with an empty cache")
	}
}

func TestMalformedAudioFailsClosed(t *testing.T) {
	disp := &manualDispatcher{}
	f := newMember(t, "student", false, disp, instantConfig(), domain.DefaultScript(), nil)
	f.node.ReceiveSnapshot(EncodeSnapshot(State{Index: 0, Playing: true}))

	bad := []AudioData{
		{Index: 0, Samples: []byte{1, 2, 3}, SampleRate: 24000, Channels: 1},
		{Index: 0, Samples: nil, SampleRate: 24000, Channels: 1},
		{Index: 0, Samples: EncodeSamples([]float32{1, 2, 3}), SampleRate: 24000, Channels: 2},
		{Index: 0, Samples: EncodeSamples([]float32{1}), SampleRate: 0, Channels: 1},
	}
	for _, a := range bad {
		f.node.Receive(Envelope{FromLeader: true, Payload: a})
	}
	if f.node.Cache().Len() != 0 || len(f.player.played) != 0 {
		t.Fatal("malformed audio must be neither cached nor played")
	}
}

func TestLeaderKindsFromNonLeaderAreDropped(t *testing.T) {
	disp := &manualDispatcher{}
	f := newMember(t, "student", false, disp, instantConfig(), domain.DefaultScript(), nil)

	f.node.Receive(Envelope{From: "mallory", Payload: ShowPanel{Show: true}})
	f.node.Receive(Envelope{From: "mallory", Payload: UpdateText{Text: "forged"}})
	if f.view.panel || f.view.text != "" {
		t.Fatal("messages from a non-leader must not reach the view")
	}
}

func TestRequestsIgnoredByNonLeader(t *testing.T) {
	disp := &manualDispatcher{}
	f := newMember(t, "student", false, disp, instantConfig(), domain.DefaultScript(), nil)
	f.node.ReceiveSnapshot(EncodeSnapshot(State{Index: 0, Playing: true}))
	f.node.Receive(Envelope{From: "bob", Payload: RequestNext{}})
	if got := f.node.State(); got != (State{0, true}) {
		t.Fatalf("non-leader acted on a request: %s", got)
	}
}

func TestTickPushesSnapshotsOnlyAsLeader(t *testing.T) {
	disp := &manualDispatcher{}
	m := newMember(t, "host", false, disp, instantConfig(), domain.DefaultScript(), &fakeSynth{})
	m.node.Tick()
	if len(m.tr.snapshots) != 0 {
		t.Fatal("follower tick must not push")
	}

	m.auth.leader = true
	m.node.Tick()
	m.node.Tick()
	if len(m.tr.snapshots) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(m.tr.snapshots))
	}
	st, err := DecodeSnapshot(m.tr.snapshots[1])
	if err != nil || st != Idle {
		t.Fatalf("expected idle snapshot, got %s (%v)", st, err)
	}
}

func TestTransportFailuresAreNotFatal(t *testing.T) {
	disp := &manualDispatcher{}
	leader := newMember(t, "host", true, disp, instantConfig(), domain.DefaultScript(), &fakeSynth{})
	leader.tr.fail = errNetwork

	leader.node.Start()
	disp.drain()
	leader.node.Next()
	disp.drain()
	if got := leader.node.State(); got != (State{1, true}) {
		t.Fatalf("leader should keep running locally, got %s", got)
	}
}

func TestNewLeaderContinuesFromMirroredState(t *testing.T) {
	disp := &manualDispatcher{}
	script := domain.DefaultScript()
	old := newMember(t, "host", true, disp, instantConfig(), script, &fakeSynth{})
	heir := newMember(t, "student", false, disp, instantConfig(), script, &fakeSynth{})
	link(old, heir)

	old.node.Start()
	disp.drain()
	old.node.Next()
	disp.drain()

	// The old leader leaves; the heir is promoted.
	old.auth.leader = false
	heir.tr.peers = nil
	heir.auth.leader = true
	heir.node.Tick()

	if !heir.node.Next() {
		t.Fatal("new leader should accept advance")
	}
	disp.advance(10 * time.Millisecond)
	if got := heir.node.State(); got != (State{2, true}) {
		t.Fatalf("new leader should continue at entry 2, got %s", got)
	}
}
