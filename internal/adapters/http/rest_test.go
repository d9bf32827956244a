package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"

	"github.com/dkeye/Classroom/internal/app"
	"github.com/dkeye/Classroom/internal/app/fanout"
	"github.com/dkeye/Classroom/internal/app/orch"
	"github.com/dkeye/Classroom/internal/config"
	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

type nopSignal struct{ n int }

func (s *nopSignal) TrySend(core.Frame) error       { s.n++; return nil }
func (s *nopSignal) TrySendBinary(core.Frame) error { s.n++; return nil }
func (s *nopSignal) Close()                         {}

func setup(t *testing.T) (*gin.Engine, *orch.Orchestrator) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	o := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    app.NewRoomManager(),
		Policy:   app.SimplePolicy{},
		Fanout:   fanout.NewManager(),
	}
	r := SetupRouter(context.Background(), config.ServerConfig{Mode: "test", Secret: "test"}, o)
	return r, o
}

func join(t *testing.T, o *orch.Orchestrator, sid core.SessionID, room domain.RoomID) {
	t.Helper()
	user, _ := o.Registry.GetOrCreateUser(sid)
	sess := core.NewMemberSession(domain.NewMember(user)).UpdateSignal(&nopSignal{})
	o.Connect(sid, sess, nil)
	if _, err := o.Join(sid, room); err != nil {
		t.Fatal(err)
	}
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateAndListRooms(t *testing.T) {
	r, _ := setup(t)

	w := do(r, http.MethodPost, "/api/rooms", map[string]string{"name": "physics"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", w.Code, w.Body.String())
	}
	var created struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil || created.ID == "" || created.Name != "physics" {
		t.Fatalf("bad create response %s", w.Body.String())
	}
	if w.Result().Header.Get("Set-Cookie") == "" {
		t.Fatal("expected client token cookie")
	}

	w = do(r, http.MethodGet, "/api/rooms", nil)
	var list struct {
		Rooms []core.RoomInfo `json:"rooms"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil || len(list.Rooms) != 1 {
		t.Fatalf("bad list response %s", w.Body.String())
	}

	if w = do(r, http.MethodGet, "/api/rooms/"+created.ID, nil); w.Code != http.StatusOK {
		t.Fatalf("get: status %d", w.Code)
	}
	if w = do(r, http.MethodGet, "/api/rooms/nope", nil); w.Code != http.StatusNotFound {
		t.Fatalf("get missing: status %d", w.Code)
	}
	if w = do(r, http.MethodPost, "/api/rooms", map[string]string{}); w.Code != http.StatusBadRequest {
		t.Fatalf("create without name: status %d", w.Code)
	}
}

func TestMembersLeaderAndKick(t *testing.T) {
	r, o := setup(t)
	room := o.CreateRoom("class")
	id := string(room.Room().ID)
	join(t, o, "a", room.Room().ID)
	join(t, o, "b", room.Room().ID)

	w := do(r, http.MethodGet, "/api/rooms/"+id+"/members", nil)
	var members []core.MemberDTO
	if err := json.Unmarshal(w.Body.Bytes(), &members); err != nil || len(members) != 2 || !members[0].Leader {
		t.Fatalf("bad members %s", w.Body.String())
	}

	if w = do(r, http.MethodPost, "/api/rooms/"+id+"/leader", map[string]string{"sid": "b"}); w.Code != http.StatusOK {
		t.Fatalf("set leader: status %d", w.Code)
	}
	if room.Leader() != "b" {
		t.Fatalf("expected b to lead, got %q", room.Leader())
	}
	if w = do(r, http.MethodPost, "/api/rooms/"+id+"/leader", map[string]string{"sid": "zz"}); w.Code != http.StatusConflict {
		t.Fatalf("set leader to stranger: status %d", w.Code)
	}

	if w = do(r, http.MethodDelete, "/api/rooms/"+id+"/members/b", nil); w.Code != http.StatusNoContent {
		t.Fatalf("kick: status %d", w.Code)
	}
	if room.Leader() != "a" {
		t.Fatalf("seat should move back to a, got %q", room.Leader())
	}
	if w = do(r, http.MethodDelete, "/api/rooms/"+id+"/members/b", nil); w.Code != http.StatusNotFound {
		t.Fatalf("second kick: status %d", w.Code)
	}

	if w = do(r, http.MethodDelete, "/api/rooms/"+id, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", w.Code)
	}
	if _, ok := o.Rooms.GetRoom(room.Room().ID); ok {
		t.Fatal("room still present")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	r, _ := setup(t)
	if w := do(r, http.MethodGet, "/healthz", nil); w.Code != http.StatusOK {
		t.Fatalf("healthz: status %d", w.Code)
	}
	w := do(r, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("go_goroutines")) {
		t.Fatalf("metrics: status %d", w.Code)
	}
}
