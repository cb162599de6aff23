package controller

import (
	"strconv"

	"codearena/internal/common/http/middleware"
	"codearena/internal/user/service"
	"codearena/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// UserController exposes registration, login and ranking endpoints.
type UserController struct {
	auth        *service.AuthService
	leaderboard *service.LeaderboardService
}

// NewUserController creates a user controller.
func NewUserController(auth *service.AuthService, leaderboard *service.LeaderboardService) *UserController {
	return &UserController{auth: auth, leaderboard: leaderboard}
}

// RegisterPublicRoutes mounts routes that need no authentication.
func (uc *UserController) RegisterPublicRoutes(group *gin.RouterGroup) {
	group.POST("/auth/register", uc.Register)
	group.POST("/auth/login", uc.Login)
	group.GET("/leaderboard", uc.Leaderboard)
}

// RegisterProtectedRoutes mounts routes behind the auth middleware.
func (uc *UserController) RegisterProtectedRoutes(group *gin.RouterGroup) {
	group.GET("/users/me/rank", uc.MyRank)
}

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register creates a new account.
func (uc *UserController) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	user, err := uc.auth.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"user_id":    user.ID,
		"name":       user.Name,
		"elo_rating": user.EloRating,
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login verifies credentials and returns a bearer token.
func (uc *UserController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	token, user, err := uc.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"token":      token,
		"user_id":    user.ID,
		"name":       user.Name,
		"role":       user.Role,
		"elo_rating": user.EloRating,
	})
}

// Leaderboard returns the top rated players.
func (uc *UserController) Leaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	entries, err := uc.leaderboard.Top(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"entries": entries})
}

// MyRank returns the caller's leaderboard position.
func (uc *UserController) MyRank(c *gin.Context) {
	userID := middleware.CallerID(c)
	if userID == 0 {
		response.Unauthorized(c, "not authenticated")
		return
	}
	entry, err := uc.leaderboard.Rank(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, entry)
}
