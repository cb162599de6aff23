package controller

import (
	"strconv"

	"codearena/internal/common/http/middleware"
	judgeservice "codearena/internal/judge/service"
	"codearena/internal/submission/repository"
	appErrors "codearena/pkg/errors"
	"codearena/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// SubmissionController exposes practice judging outside of matches.
type SubmissionController struct {
	judge       *judgeservice.Service
	submissions repository.SubmissionRepository
	stats       *judgeservice.VerdictStats
}

// NewSubmissionController creates a submission controller. stats may be nil
// when no message queue feeds the verdict counters.
func NewSubmissionController(judge *judgeservice.Service, submissions repository.SubmissionRepository, stats *judgeservice.VerdictStats) *SubmissionController {
	return &SubmissionController{judge: judge, submissions: submissions, stats: stats}
}

// RegisterRoutes mounts authenticated submission routes.
func (sc *SubmissionController) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/submissions", sc.Submit)
	group.GET("/submissions", sc.List)
	group.GET("/submissions/:id", sc.Get)
	group.GET("/tasks/:id/status", sc.TaskStatus)
}

// RegisterAdminRoutes mounts the operator-facing submission routes.
func (sc *SubmissionController) RegisterAdminRoutes(group *gin.RouterGroup) {
	group.GET("/stats/submissions", sc.Stats)
}

// Stats returns the aggregate submission counters.
func (sc *SubmissionController) Stats(c *gin.Context) {
	if sc.stats == nil {
		response.Error(c, appErrors.New(appErrors.ServiceUnavailable).WithMessage("submission stats are not enabled"))
		return
	}
	totals, err := sc.stats.Totals(c.Request.Context())
	if err != nil {
		response.Error(c, appErrors.InternalError(err))
		return
	}
	response.Success(c, totals)
}

type submitRequest struct {
	TaskID  int64  `json:"task_id" binding:"required"`
	Program string `json:"program"`
	Answer  string `json:"answer"`
}

// Submit judges a program or quiz answer against a task.
func (sc *SubmissionController) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	userID := middleware.CallerID(c)
	result, err := sc.judge.Judge(c.Request.Context(), judgeservice.Request{
		UserID:  userID,
		TaskID:  req.TaskID,
		Program: []byte(req.Program),
		Answer:  req.Answer,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// List returns the caller's recent submissions.
func (sc *SubmissionController) List(c *gin.Context) {
	userID := middleware.CallerID(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	subs, err := sc.submissions.ListByUser(c.Request.Context(), userID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"submissions": subs})
}

// TaskStatus returns the caller's latest submission for a task; the most
// recent attempt defines where they stand.
func (sc *SubmissionController) TaskStatus(c *gin.Context) {
	taskID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || taskID <= 0 {
		response.BadRequest(c, "invalid task id")
		return
	}
	userID := middleware.CallerID(c)
	sub, err := sc.submissions.Latest(c.Request.Context(), userID, taskID)
	if err != nil {
		if err == repository.ErrSubmissionNotFound {
			response.Success(c, gin.H{"attempted": false})
			return
		}
		response.Error(c, appErrors.InternalError(err))
		return
	}
	response.Success(c, gin.H{"attempted": true, "submission": sub})
}

// Get returns one submission. Callers can only see their own rows.
func (sc *SubmissionController) Get(c *gin.Context) {
	sub, err := sc.submissions.GetBySubmissionID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == repository.ErrSubmissionNotFound {
			response.Error(c, appErrors.New(appErrors.SubmissionNotFound))
			return
		}
		response.Error(c, appErrors.InternalError(err))
		return
	}
	if sub.UserID != middleware.CallerID(c) {
		response.Forbidden(c, "not your submission")
		return
	}
	response.Success(c, sub)
}
