package signal

import (
	"time"

	"github.com/dkeye/Classroom/internal/core"
)

// pong reports the server time and which path the member's snapshots take.
type pong struct {
	Type     string `json:"type"`
	Time     int64  `json:"time"`
	Snapshot string `json:"snapshot"`
}

func (ctl *SignalWSController) handlePing(sid core.SessionID, conn *WsSignalConn) {
	resp := pong{Type: "pong", Time: time.Now().UnixMilli(), Snapshot: "ws"}
	if sess, ok := ctl.Orch.Registry.GetSession(sid); ok {
		if mc := sess.Media(); mc != nil && !mc.IsClosed() && mc.SnapshotReady() {
			resp.Snapshot = "datachannel"
		}
	}
	ctl.sendJSON(conn, resp)
}
