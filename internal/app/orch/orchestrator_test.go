package orch

import (
	"errors"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/dkeye/Classroom/internal/app"
	"github.com/dkeye/Classroom/internal/app/fanout"
	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/dialogue"
	"github.com/dkeye/Classroom/internal/domain"
)

type fakeSignal struct {
	text   []core.Frame
	binary []core.Frame
	full   bool
}

func (f *fakeSignal) TrySend(b core.Frame) error {
	if f.full {
		return errors.New("backpressure")
	}
	f.text = append(f.text, b)
	return nil
}

func (f *fakeSignal) TrySendBinary(b core.Frame) error {
	if f.full {
		return errors.New("backpressure")
	}
	f.binary = append(f.binary, b)
	return nil
}

func (f *fakeSignal) Close() {}

// types lists the "type" field of every text frame received.
func (f *fakeSignal) types() []string {
	out := make([]string, 0, len(f.text))
	for _, b := range f.text {
		var env struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal(b, &env)
		out = append(out, env.Type)
	}
	return out
}

func (f *fakeSignal) last(typ string) map[string]any {
	for i := len(f.text) - 1; i >= 0; i-- {
		var m map[string]any
		_ = json.Unmarshal(f.text[i], &m)
		if m["type"] == typ {
			return m
		}
	}
	return nil
}

func (f *fakeSignal) reset() {
	f.text = nil
	f.binary = nil
}

type fakeChannel struct{ got []core.Frame }

func (c *fakeChannel) SendSnapshot(b core.Frame) error {
	c.got = append(c.got, b)
	return nil
}

func newOrch() *Orchestrator {
	return &Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    app.NewRoomManager(),
		Policy:   app.SimplePolicy{},
		Fanout:   fanout.NewManager(),
	}
}

func connect(o *Orchestrator, sid core.SessionID) (core.MemberSession, *fakeSignal) {
	user, _ := o.Registry.GetOrCreateUser(sid)
	sig := &fakeSignal{}
	sess := core.NewMemberSession(domain.NewMember(user)).UpdateSignal(sig)
	o.Connect(sid, sess, nil)
	return sess, sig
}

// classroom builds a room with members a (leader), b and c.
func classroom(t *testing.T) (*Orchestrator, core.RoomService, map[core.SessionID]*fakeSignal) {
	t.Helper()
	o := newOrch()
	room := o.CreateRoom("class")
	sigs := map[core.SessionID]*fakeSignal{}
	for _, sid := range []core.SessionID{"a", "b", "c"} {
		_, sig := connect(o, sid)
		sigs[sid] = sig
		if _, err := o.Join(sid, room.Room().ID); err != nil {
			t.Fatalf("join %s: %v", sid, err)
		}
	}
	for _, s := range sigs {
		s.reset()
	}
	return o, room, sigs
}

func dialogueFrame(t *testing.T, target dialogue.Target, p dialogue.Payload) core.Frame {
	t.Helper()
	b, err := dialogue.MarshalEnvelope(dialogue.Envelope{Target: target, Payload: p})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestJoinUnknownRoom(t *testing.T) {
	o := newOrch()
	connect(o, "a")
	if _, err := o.Join("a", "missing"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	room := o.CreateRoom("class")
	if _, err := o.Join("ghost", room.Room().ID); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestFirstMemberLeadsAndSeatMigrates(t *testing.T) {
	o, room, sigs := classroom(t)
	if room.Leader() != "a" {
		t.Fatalf("expected a to lead, got %q", room.Leader())
	}

	o.Leave("a")
	if room.Leader() != "b" {
		t.Fatalf("expected seat to move to b, got %q", room.Leader())
	}
	for _, sid := range []core.SessionID{"b", "c"} {
		ev := sigs[sid].last("leader")
		if ev == nil || ev["sid"] != "b" {
			t.Fatalf("%s: expected leader event for b, got %v", sid, sigs[sid].types())
		}
		if sigs[sid].last("member_left") == nil {
			t.Fatalf("%s: expected member_left", sid)
		}
	}
	if len(sigs["a"].text) != 0 {
		t.Fatalf("the leaving member should not get room events, got %v", sigs["a"].types())
	}
}

func TestLeaderMessagesFromFollowerAreDropped(t *testing.T) {
	o, _, sigs := classroom(t)
	err := o.OnDialogue("b", dialogueFrame(t, dialogue.TargetOthers, dialogue.ShowPanel{Show: true}))
	if !errors.Is(err, ErrNotLeader) {
		t.Fatalf("expected ErrNotLeader, got %v", err)
	}
	for sid, s := range sigs {
		if len(s.text) != 0 {
			t.Fatalf("%s received a forged frame", sid)
		}
	}
}

func TestLeaderMessagesAreStampedAndFannedOut(t *testing.T) {
	o, _, sigs := classroom(t)
	if err := o.OnDialogue("a", dialogueFrame(t, dialogue.TargetOthers, dialogue.UpdateText{Text: "hello"})); err != nil {
		t.Fatal(err)
	}
	if len(sigs["a"].text) != 0 {
		t.Fatal("sender must not get its own frame back")
	}
	for _, sid := range []core.SessionID{"b", "c"} {
		if len(sigs[sid].text) != 1 {
			t.Fatalf("%s: expected one frame, got %d", sid, len(sigs[sid].text))
		}
		env, err := dialogue.UnmarshalEnvelope(sigs[sid].text[0])
		if err != nil {
			t.Fatal(err)
		}
		if env.From != "a" || !env.FromLeader {
			t.Fatalf("%s: bad stamp %+v", sid, env)
		}
		if env.Payload.(dialogue.UpdateText).Text != "hello" {
			t.Fatalf("%s: payload changed", sid)
		}
	}
}

func TestRequestsGoToLeaderOnly(t *testing.T) {
	o, _, sigs := classroom(t)
	if err := o.OnDialogue("c", dialogueFrame(t, dialogue.TargetLeader, dialogue.RequestNext{})); err != nil {
		t.Fatal(err)
	}
	if len(sigs["b"].text) != 0 || len(sigs["c"].text) != 0 {
		t.Fatal("request leaked to non-leaders")
	}
	if len(sigs["a"].text) != 1 {
		t.Fatalf("leader should get the request, got %d frames", len(sigs["a"].text))
	}
	env, _ := dialogue.UnmarshalEnvelope(sigs["a"].text[0])
	if env.From != "c" || env.FromLeader {
		t.Fatalf("bad stamp %+v", env)
	}
}

func TestDialogueOutsideRoom(t *testing.T) {
	o := newOrch()
	connect(o, "x")
	if err := o.OnDialogue("x", dialogueFrame(t, dialogue.TargetLeader, dialogue.RequestSkip{})); !errors.Is(err, ErrNotInRoom) {
		t.Fatalf("expected ErrNotInRoom, got %v", err)
	}
	if err := o.OnDialogue("x", core.Frame(`{"type":"dialogue","kind":"nope","target":"all"}`)); !errors.Is(err, dialogue.ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestSnapshotRouting(t *testing.T) {
	o, room, sigs := classroom(t)
	ch := &fakeChannel{}
	o.Fanout.AddSubscriber(room.Room().ID, "b", ch)

	snap := dialogue.EncodeSnapshot(dialogue.State{Index: 1, Playing: true})
	o.OnSnapshot("c", snap)
	if len(ch.got) != 0 || len(sigs["a"].binary) != 0 || len(sigs["b"].binary) != 0 {
		t.Fatal("snapshot from a follower must be dropped")
	}

	o.OnSnapshot("a", []byte{9, 9})
	if len(sigs["c"].binary) != 0 {
		t.Fatal("malformed snapshot must be dropped")
	}

	o.OnSnapshot("a", snap)
	if len(ch.got) != 1 {
		t.Fatal("b should get the snapshot on its data channel")
	}
	if len(sigs["b"].binary) != 0 {
		t.Fatal("b must not get the snapshot twice")
	}
	if len(sigs["c"].binary) != 1 || len(sigs["a"].binary) != 0 {
		t.Fatal("c should get the snapshot over its signal connection")
	}
}

func TestSetLeaderMovesAuthority(t *testing.T) {
	o, room, sigs := classroom(t)
	if err := o.SetLeader(room.Room().ID, "c"); err != nil {
		t.Fatal(err)
	}
	if ev := sigs["a"].last("leader"); ev == nil || ev["sid"] != "c" {
		t.Fatalf("expected leader event for c, got %v", sigs["a"].types())
	}
	if err := o.OnDialogue("a", dialogueFrame(t, dialogue.TargetOthers, dialogue.SetCursor{Locked: true})); !errors.Is(err, ErrNotLeader) {
		t.Fatalf("old leader must lose authority, got %v", err)
	}
	if err := o.SetLeader(room.Room().ID, "zz"); !errors.Is(err, core.ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
	if err := o.SetLeader("missing", "a"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestSlowMemberIsKickedOnDialogue(t *testing.T) {
	o, room, sigs := classroom(t)
	sigs["c"].full = true
	if err := o.OnDialogue("a", dialogueFrame(t, dialogue.TargetOthers, dialogue.UpdateText{Text: "x"})); err != nil {
		t.Fatal(err)
	}
	if _, ok := room.Member("c"); ok {
		t.Fatal("slow member should have been removed")
	}
	if _, _, ok := o.Registry.RoomOf("c"); ok {
		t.Fatal("slow member still bound to the room")
	}
}

func TestSlowMemberKeepsSeatOnSnapshot(t *testing.T) {
	o, room, sigs := classroom(t)
	sigs["c"].full = true
	o.OnSnapshot("a", dialogue.EncodeSnapshot(dialogue.Idle))
	if _, ok := room.Member("c"); !ok {
		t.Fatal("a dropped snapshot must not kick the member")
	}
}

func TestDisconnectIgnoresReplacedSession(t *testing.T) {
	o, room, _ := classroom(t)
	old, _ := o.Registry.GetSession("b")
	connect(o, "b")
	if _, ok := room.Member("b"); ok {
		t.Fatal("reconnecting should drop the old membership")
	}
	if _, err := o.Join("b", room.Room().ID); err != nil {
		t.Fatal(err)
	}

	o.Disconnect("b", old)
	if _, ok := room.Member("b"); !ok {
		t.Fatal("stale disconnect removed the live member")
	}

	live, _ := o.Registry.GetSession("b")
	o.Disconnect("b", live)
	if _, ok := room.Member("b"); ok {
		t.Fatal("disconnect should remove the member")
	}
	if _, ok := o.Registry.GetSession("b"); ok {
		t.Fatal("session should be unbound")
	}
}

func TestEvictRoom(t *testing.T) {
	o, room, sigs := classroom(t)
	if !o.EvictRoom(room.Room().ID) {
		t.Fatal("evict should succeed")
	}
	if _, ok := o.Rooms.GetRoom(room.Room().ID); ok {
		t.Fatal("room still listed")
	}
	for sid, s := range sigs {
		if s.last("left") == nil {
			t.Fatalf("%s was not told it left", sid)
		}
	}
	if o.EvictRoom(room.Room().ID) {
		t.Fatal("second evict should report missing room")
	}
}
