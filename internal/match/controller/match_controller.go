package controller

import (
	"codearena/internal/common/http/middleware"
	"codearena/internal/live"
	"codearena/internal/match/service"
	"codearena/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// MatchController exposes match rooms over HTTP and websocket.
type MatchController struct {
	coordinator *service.Coordinator
	hub         *live.Hub
}

// NewMatchController creates a match controller. hub may be nil when live
// updates are disabled.
func NewMatchController(coordinator *service.Coordinator, hub *live.Hub) *MatchController {
	return &MatchController{coordinator: coordinator, hub: hub}
}

// RegisterRoutes mounts authenticated match routes.
func (mc *MatchController) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/matches", mc.Create)
	group.GET("/matches", mc.ListOpen)
	group.POST("/matches/:token/join", mc.Join)
	group.POST("/matches/:token/submit", mc.Submit)
	group.GET("/matches/:token", mc.Get)
}

// RegisterLiveRoutes mounts the websocket endpoint. The room token is the
// only credential; handing it out is inviting someone in.
func (mc *MatchController) RegisterLiveRoutes(group *gin.RouterGroup) {
	if mc.hub == nil {
		return
	}
	group.GET("/matches/:token/live", mc.Live)
}

type createMatchRequest struct {
	Subject string `json:"subject" binding:"required"`
}

// Create opens a new match room for the caller.
func (mc *MatchController) Create(c *gin.Context) {
	var req createMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	userID := middleware.CallerID(c)
	view, tc, err := mc.coordinator.Create(c.Request.Context(), userID, req.Subject)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"match": view,
		"task": gin.H{
			"id":             tc.Task.ID,
			"title":          tc.Task.Title,
			"statement":      tc.Task.Statement,
			"input_format":   tc.Task.InputFormat,
			"output_format":  tc.Task.OutputFormat,
			"time_limit_sec": tc.Task.TimeLimitSec,
			"kind":           tc.Task.Kind,
		},
	})
}

// ListOpen lists rooms with a free seat, optionally filtered by subject.
func (mc *MatchController) ListOpen(c *gin.Context) {
	views := mc.coordinator.ListOpen(c.Query("subject"))
	if views == nil {
		views = []*service.MatchView{}
	}
	response.Success(c, views)
}

// Join adds the caller to a room.
func (mc *MatchController) Join(c *gin.Context) {
	userID := middleware.CallerID(c)
	view, err := mc.coordinator.Join(c.Request.Context(), c.Param("token"), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, view)
}

type submitRequest struct {
	Program string `json:"program"`
	Answer  string `json:"answer"`
}

// Submit judges the caller's attempt and applies it to the room.
func (mc *MatchController) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	userID := middleware.CallerID(c)
	result, err := mc.coordinator.SubmitAttempt(
		c.Request.Context(), c.Param("token"), userID, []byte(req.Program), req.Answer)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Get returns a room snapshot.
func (mc *MatchController) Get(c *gin.Context) {
	view, err := mc.coordinator.Get(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, view)
}

// Live upgrades to a websocket and streams room events. New subscribers get
// the current scores right away.
func (mc *MatchController) Live(c *gin.Context) {
	token := c.Param("token")
	view, err := mc.coordinator.Get(token)
	if err != nil {
		response.Error(c, err)
		return
	}

	initial := &live.Envelope{
		Event: live.EventScores,
		Data: service.ScoreUpdate{
			Scores:      append([]service.PlayerScore(nil), view.Players...),
			PlayerCount: view.PlayerCount,
		},
	}
	if err := mc.hub.Serve(c.Writer, c.Request, token, initial); err != nil {
		// The handshake already failed; nothing more to send.
		return
	}
}
