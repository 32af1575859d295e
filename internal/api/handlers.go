// internal/api/handlers.go
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/drawatale/drawatale-backend/internal/llm"
	"github.com/drawatale/drawatale-backend/internal/models"
	"github.com/drawatale/drawatale-backend/internal/services"
	"github.com/drawatale/drawatale-backend/internal/storage"
	"github.com/drawatale/drawatale-backend/internal/utils"
	"github.com/gin-gonic/gin"
)

// Handler 处理API请求
type Handler struct {
	UserService    *services.UserService
	DrawingService *services.DrawingService
	StoryService   *services.StoryService
	QuestService   *services.QuestService
	AIService      *services.AIService
	LLMService     *services.LLMService
	LiveSessions   *services.LiveSessionService
	Sockets        *WebSocketManager
	Store          storage.Store
	Metrics        *utils.AppMetrics
	Response       *ResponseHelper
}

// UpdateLLMConfigRequest switches the story provider at runtime.
type UpdateLLMConfigRequest struct {
	Provider string `json:"provider" binding:"required"`
	APIKey   string `json:"api_key"`
	Model    string `json:"model"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Root 根路径
func (h *Handler) Root(c *gin.Context) {
	h.Response.Message(c, "Draw-a-Tale API is running!")
}

// Health reports liveness, provider readiness and, for database-backed
// stores, connectivity.
func (h *Handler) Health(c *gin.Context) {
	body := gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"llm_ready": h.LLMService.IsReady(),
	}

	if p, ok := h.Store.(pinger); ok {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			body["status"] = "degraded"
			body["storage"] = "unavailable"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["storage"] = "ok"
	}
	h.Response.Success(c, body)
}

// ===============================
// 认证
// ===============================

func (h *Handler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.InvalidBody(c, err)
		return
	}

	user, err := h.UserService.Register(c.Request.Context(), req)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, user)
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.InvalidBody(c, err)
		return
	}

	token, err := h.UserService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, token)
}

// Me returns the authenticated caller.
func (h *Handler) Me(c *gin.Context) {
	h.Response.Success(c, currentUser(c))
}

// ===============================
// 画作
// ===============================

func (h *Handler) CreateDrawing(c *gin.Context) {
	var req services.CreateDrawingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.InvalidBody(c, err)
		return
	}

	drawing, err := h.DrawingService.Create(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Created(c, drawing)
}

func (h *Handler) ListDrawings(c *gin.Context) {
	drawings, err := h.DrawingService.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, drawings)
}

func (h *Handler) GetDrawing(c *gin.Context) {
	drawing, err := h.DrawingService.Get(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, drawing)
}

func (h *Handler) UpdateDrawing(c *gin.Context) {
	var update models.DrawingUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		h.Response.InvalidBody(c, err)
		return
	}

	drawing, err := h.DrawingService.Update(c.Request.Context(), currentUserID(c), c.Param("id"), update)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, drawing)
}

func (h *Handler) DeleteDrawing(c *gin.Context) {
	if err := h.DrawingService.Delete(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Message(c, "Drawing deleted successfully")
}

// ===============================
// 故事
// ===============================

// GenerateStory builds a story for the caller's prompt. Provider failures
// fall back to the template story, so only validation and storage errors
// reach the client.
func (h *Handler) GenerateStory(c *gin.Context) {
	var req services.GenerateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.InvalidBody(c, err)
		return
	}

	story, err := h.StoryService.Generate(c.Request.Context(), currentUser(c), req)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, story)
}

func (h *Handler) CreateStory(c *gin.Context) {
	var req services.CreateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.InvalidBody(c, err)
		return
	}

	story, err := h.StoryService.Create(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, story)
}

func (h *Handler) ListStories(c *gin.Context) {
	stories, err := h.StoryService.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, stories)
}

// ===============================
// 任务与进度
// ===============================

func (h *Handler) UpdateProgress(c *gin.Context) {
	var req services.ProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.InvalidBody(c, err)
		return
	}

	progress, err := h.QuestService.UpdateProgress(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, progress)
}

func (h *Handler) ListProgress(c *gin.Context) {
	progress, err := h.QuestService.ListProgress(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, progress)
}

func (h *Handler) ListQuests(c *gin.Context) {
	h.Response.Success(c, gin.H{"quests": h.QuestService.Catalog()})
}

// ===============================
// 分析
// ===============================

func (h *Handler) GetInterests(c *gin.Context) {
	profile, err := h.AIService.Interests(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, profile)
}

func (h *Handler) GetRecommendations(c *gin.Context) {
	recs, err := h.AIService.Recommendations(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, gin.H{"recommendations": recs})
}

// AnalyzeDrawing accepts a saved drawing id or a raw action log. An empty
// log yields {"status":"no_data"}.
func (h *Handler) AnalyzeDrawing(c *gin.Context) {
	var req services.AnalyzeDrawingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.InvalidBody(c, err)
		return
	}

	analysis, err := h.AIService.AnalyzeDrawing(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, analysis)
}

func (h *Handler) GetDrawingHints(c *gin.Context) {
	hints, err := h.AIService.DrawingHints(c.Request.Context(), currentUserID(c), c.Query("quest_id"))
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, hints)
}

// ===============================
// LLM配置
// ===============================

// GetLLMStatus 获取LLM服务状态
func (h *Handler) GetLLMStatus(c *gin.Context) {
	h.Response.Success(c, h.LLMService.Status())
}

// ListLLMProviders lists registered providers with their suggested models.
func (h *Handler) ListLLMProviders(c *gin.Context) {
	names := llm.ListProviders()
	modelsByProvider := make(map[string][]string, len(names))
	for _, name := range names {
		modelsByProvider[name] = llm.GetSupportedModelsForProvider(name)
	}
	h.Response.Success(c, gin.H{
		"providers": names,
		"models":    modelsByProvider,
		"count":     len(names),
	})
}

// UpdateLLMConfig 更新LLM配置
func (h *Handler) UpdateLLMConfig(c *gin.Context) {
	var req UpdateLLMConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.InvalidBody(c, err)
		return
	}

	settings := map[string]string{
		"api_key":       req.APIKey,
		"default_model": req.Model,
	}
	if err := h.LLMService.UpdateProvider(req.Provider, settings); err != nil {
		message := "Provider configuration failed"
		if errors.Is(err, llm.ErrUnknownProvider) {
			message = "Unknown provider: " + req.Provider
		}
		h.Response.write(c, http.StatusBadRequest, ErrorLLMConfigInvalid, message, err.Error())
		return
	}
	h.Response.Success(c, h.LLMService.Status())
}

// GetMetrics 获取进程内指标
func (h *Handler) GetMetrics(c *gin.Context) {
	snapshot := h.Metrics.Collector().GetMetrics()
	snapshot["live_sessions"] = h.LiveSessions.Count()
	h.Response.Success(c, snapshot)
}
