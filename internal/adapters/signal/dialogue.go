package signal

import (
	"errors"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Classroom/internal/app/orch"
	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/dialogue"
	"github.com/dkeye/Classroom/internal/domain"
)

func (ctl *SignalWSController) handleDialogue(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var head struct {
		Kind dialogue.Kind `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		ctl.sendError(conn, "bad_payload")
		return
	}
	if head.Kind.Request() && ctl.Limiter != nil && !ctl.Limiter.Allow(domain.UserID(sid)) {
		metricRateLimited.WithLabelValues(string(head.Kind)).Inc()
		log.Debug().Str("module", "signal").Str("sid", string(sid)).Str("kind", string(head.Kind)).Msg("request rate limited")
		return
	}

	err := ctl.Orch.OnDialogue(sid, data)
	switch {
	case err == nil:
	case errors.Is(err, orch.ErrNotLeader):
		ctl.sendError(conn, "not_leader")
	case errors.Is(err, orch.ErrNotInRoom):
		ctl.sendError(conn, "not_in_room")
	default:
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad dialogue frame")
		ctl.sendError(conn, "bad_payload")
	}
}
