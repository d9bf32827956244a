package http

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/dkeye/Classroom/internal/app/orch"
	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

type roomsAPI struct {
	orch *orch.Orchestrator
}

func (a *roomsAPI) register(api *gin.RouterGroup) {
	api.GET("/rooms", a.list)
	api.POST("/rooms", a.create)
	api.GET("/rooms/:id", a.get)
	api.DELETE("/rooms/:id", a.stop)
	api.GET("/rooms/:id/members", a.members)
	api.DELETE("/rooms/:id/members/:sid", a.kick)
	api.POST("/rooms/:id/leader", a.setLeader)
}

func roomJSON(room core.RoomService) gin.H {
	return gin.H{
		"id":           room.Room().ID,
		"name":         room.Room().Name,
		"client_count": room.MemberCount(),
		"leader":       room.Leader(),
	}
}

func (a *roomsAPI) room(c *gin.Context) (core.RoomService, bool) {
	room, ok := a.orch.Rooms.GetRoom(domain.RoomID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
	}
	return room, ok
}

func (a *roomsAPI) list(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": a.orch.Rooms.List()})
}

func (a *roomsAPI) create(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid name"})
		return
	}
	room := a.orch.CreateRoom(req.Name)

	// Remember the last room this browser created.
	s := sessions.Default(c)
	s.Set("last_room", string(room.Room().ID))
	_ = s.Save()

	c.JSON(http.StatusCreated, roomJSON(room))
}

func (a *roomsAPI) get(c *gin.Context) {
	if room, ok := a.room(c); ok {
		c.JSON(http.StatusOK, roomJSON(room))
	}
}

func (a *roomsAPI) stop(c *gin.Context) {
	if !a.orch.EvictRoom(domain.RoomID(c.Param("id"))) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *roomsAPI) members(c *gin.Context) {
	if room, ok := a.room(c); ok {
		c.JSON(http.StatusOK, room.MembersSnapshot())
	}
}

func (a *roomsAPI) kick(c *gin.Context) {
	room, ok := a.room(c)
	if !ok {
		return
	}
	sid := core.SessionID(c.Param("sid"))
	if _, in := room.Member(sid); !in {
		c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
		return
	}
	a.orch.KickBySID(sid)
	c.Status(http.StatusNoContent)
}

func (a *roomsAPI) setLeader(c *gin.Context) {
	var req struct {
		SID string `json:"sid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.SID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sid"})
		return
	}
	err := a.orch.SetLeader(domain.RoomID(c.Param("id")), core.SessionID(req.SID))
	switch {
	case errors.Is(err, orch.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
	case errors.Is(err, core.ErrNotMember):
		c.JSON(http.StatusConflict, gin.H{"error": "not a member"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"leader": req.SID})
	}
}
