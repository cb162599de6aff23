package controller

import (
	"strconv"

	"codearena/internal/task/repository"
	"codearena/internal/task/service"
	"codearena/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// TaskController exposes task authoring and lookup endpoints.
type TaskController struct {
	tasks *service.Service
	packs *service.PackService
}

// NewTaskController creates a task controller. packs may be nil when object
// storage is not configured.
func NewTaskController(tasks *service.Service, packs *service.PackService) *TaskController {
	return &TaskController{tasks: tasks, packs: packs}
}

// RegisterAdminRoutes mounts the task authoring routes. Reads are mounted
// separately so regular players can browse tasks.
func (tc *TaskController) RegisterAdminRoutes(group *gin.RouterGroup) {
	group.POST("/tasks", tc.CreateTask)
	group.POST("/tasks/generate", tc.GenerateTask)
	group.PUT("/tasks/:id", tc.UpdateTask)
	group.DELETE("/tasks/:id", tc.DeleteTask)
	if tc.packs != nil {
		group.POST("/tasks/:id/export", tc.ExportPack)
		group.POST("/tasks/import", tc.ImportPack)
	}
}

type createTaskRequest struct {
	Subject       string            `json:"subject" binding:"required"`
	Theme         string            `json:"theme"`
	Difficulty    string            `json:"difficulty"`
	Title         string            `json:"title" binding:"required"`
	Statement     string            `json:"statement" binding:"required"`
	InputFormat   string            `json:"input_format"`
	OutputFormat  string            `json:"output_format"`
	MemoryLimitMB int               `json:"memory_limit_mb"`
	TimeLimitSec  int               `json:"time_limit_sec"`
	Kind          string            `json:"kind"`
	Cases         []testCaseRequest `json:"cases" binding:"required,min=1"`
}

type testCaseRequest struct {
	Input    string `json:"input"`
	Expected string `json:"expected" binding:"required"`
}

// CreateTask stores an authored task with its cases.
func (tc *TaskController) CreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	task := &repository.Task{
		Subject:       req.Subject,
		Theme:         req.Theme,
		Difficulty:    req.Difficulty,
		Title:         req.Title,
		Statement:     req.Statement,
		InputFormat:   req.InputFormat,
		OutputFormat:  req.OutputFormat,
		MemoryLimitMB: req.MemoryLimitMB,
		TimeLimitSec:  req.TimeLimitSec,
		Kind:          req.Kind,
	}
	cases := make([]*repository.TestCase, 0, len(req.Cases))
	for _, rc := range req.Cases {
		cases = append(cases, &repository.TestCase{Input: rc.Input, Expected: rc.Expected})
	}
	if err := tc.tasks.CreateTask(c.Request.Context(), task, cases); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"task_id": task.ID})
}

type updateTaskRequest struct {
	Subject       string            `json:"subject" binding:"required"`
	Theme         string            `json:"theme"`
	Difficulty    string            `json:"difficulty"`
	Title         string            `json:"title" binding:"required"`
	Statement     string            `json:"statement" binding:"required"`
	InputFormat   string            `json:"input_format"`
	OutputFormat  string            `json:"output_format"`
	MemoryLimitMB int               `json:"memory_limit_mb"`
	TimeLimitSec  int               `json:"time_limit_sec"`
	Kind          string            `json:"kind"`
	Cases         []testCaseRequest `json:"cases"`
}

// UpdateTask rewrites an existing task. Omitting cases keeps the stored ones.
func (tc *TaskController) UpdateTask(c *gin.Context) {
	taskID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || taskID <= 0 {
		response.BadRequest(c, "invalid task id")
		return
	}
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	task := &repository.Task{
		ID:            taskID,
		Subject:       req.Subject,
		Theme:         req.Theme,
		Difficulty:    req.Difficulty,
		Title:         req.Title,
		Statement:     req.Statement,
		InputFormat:   req.InputFormat,
		OutputFormat:  req.OutputFormat,
		MemoryLimitMB: req.MemoryLimitMB,
		TimeLimitSec:  req.TimeLimitSec,
		Kind:          req.Kind,
	}
	cases := make([]*repository.TestCase, 0, len(req.Cases))
	for _, rc := range req.Cases {
		cases = append(cases, &repository.TestCase{Input: rc.Input, Expected: rc.Expected})
	}
	if err := tc.tasks.UpdateTask(c.Request.Context(), task, cases); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

type generateTaskRequest struct {
	Subject    string `json:"subject" binding:"required"`
	Theme      string `json:"theme"`
	Difficulty string `json:"difficulty"`
}

// GenerateTask produces and stores a new task via the configured generator.
func (tc *TaskController) GenerateTask(c *gin.Context) {
	var req generateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	result, err := tc.tasks.GenerateTask(c.Request.Context(), req.Subject, req.Theme, req.Difficulty)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// GetTask returns a task with its cases.
func (tc *TaskController) GetTask(c *gin.Context) {
	taskID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || taskID <= 0 {
		response.BadRequest(c, "invalid task id")
		return
	}
	result, err := tc.tasks.GetTask(c.Request.Context(), taskID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// ListTasks returns tasks for a subject.
func (tc *TaskController) ListTasks(c *gin.Context) {
	subject := c.Query("subject")
	if subject == "" {
		response.BadRequest(c, "subject is required")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	tasks, err := tc.tasks.ListTasks(c.Request.Context(), subject, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"tasks": tasks})
}

// DeleteTask removes a task and its cases.
func (tc *TaskController) DeleteTask(c *gin.Context) {
	taskID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || taskID <= 0 {
		response.BadRequest(c, "invalid task id")
		return
	}
	if err := tc.tasks.DeleteTask(c.Request.Context(), taskID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// ExportPack uploads a compressed pack for a task.
func (tc *TaskController) ExportPack(c *gin.Context) {
	taskID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || taskID <= 0 {
		response.BadRequest(c, "invalid task id")
		return
	}
	key, err := tc.packs.Export(c.Request.Context(), taskID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"key": key})
}

type importPackRequest struct {
	Key string `json:"key" binding:"required"`
}

// ImportPack downloads a pack and stores its task as a new record.
func (tc *TaskController) ImportPack(c *gin.Context) {
	var req importPackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	result, err := tc.packs.Import(c.Request.Context(), req.Key)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"task_id": result.Task.ID})
}
