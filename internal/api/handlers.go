// Package api exposes the engine over HTTP.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/example/learnengine/internal/engine"
	"github.com/example/learnengine/pkg/models"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handlers holds the HTTP handlers.
type Handlers struct {
	engine *engine.Engine
	logger *zap.Logger
}

// NewHandlers creates handlers over e.
func NewHandlers(e *engine.Engine, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{engine: e, logger: logger}
}

// NewRouter builds the gin engine with health, metrics and the v1 API.
// A nil gatherer disables /metrics.
func NewRouter(h *Handlers, gatherer prometheus.Gatherer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(h.logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	RegisterRoutes(router.Group("/v1"), h)
	return router
}

// RegisterRoutes mounts the API on rg.
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	users := rg.Group("/users/:userID")
	users.GET("/profile", h.HandleGetProfile)
	users.PUT("/profile", h.HandleSaveProfile)
	users.PATCH("/profile", h.HandleUpdateProfile)
	users.DELETE("/profile/cache", h.HandleClearCache)
	users.POST("/profile/rebuild", h.HandleRebuildProfile)
	users.POST("/history", h.HandleRecordHistory)
	users.POST("/items", h.HandleCreateItem)
	users.GET("/due", h.HandleDueItems)
	users.GET("/stats", h.HandleStatistics)

	rg.DELETE("/profile-cache", h.HandleClearAllCaches)
	rg.POST("/profiles/rebuild", h.HandleRebuildAll)

	rg.GET("/items/:itemID", h.HandleGetItem)
	rg.GET("/items/:itemID/retention", h.HandleRetention)
	rg.POST("/items/:itemID/reviews", h.HandleRecordReview)

	rg.POST("/rank", h.HandleRank)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// HandleGetProfile returns the cognitive profile of a user.
func (h *Handlers) HandleGetProfile(c *gin.Context) {
	p, err := h.engine.GetProfile(c.Request.Context(), c.Param("userID"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// HandleSaveProfile replaces the profile of a user.
func (h *Handlers) HandleSaveProfile(c *gin.Context) {
	var p models.CognitiveProfile
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, err)
		return
	}
	saved, err := h.engine.SaveProfile(c.Request.Context(), c.Param("userID"), &p)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

// HandleUpdateProfile applies a partial update to the profile of a user.
// Options omitted from the body keep their defaults.
func (h *Handlers) HandleUpdateProfile(c *gin.Context) {
	opts := models.DefaultProfileUpdateOptions()
	req := UpdateProfileRequest{Options: &opts}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	updated, err := h.engine.UpdateProfile(c.Request.Context(), c.Param("userID"), req.Update, opts)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// HandleClearCache evicts one user's cached profile.
func (h *Handlers) HandleClearCache(c *gin.Context) {
	h.engine.ClearCache(c.Param("userID"))
	c.Status(http.StatusNoContent)
}

// HandleClearAllCaches evicts every cached profile.
func (h *Handlers) HandleClearAllCaches(c *gin.Context) {
	h.engine.ClearCache("")
	c.Status(http.StatusNoContent)
}

// HandleRebuildProfile derives a user's profile from history.
func (h *Handlers) HandleRebuildProfile(c *gin.Context) {
	p, err := h.engine.RebuildProfile(c.Request.Context(), c.Param("userID"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// HandleRebuildAll rebuilds the profiles of every user owning items.
func (h *Handlers) HandleRebuildAll(c *gin.Context) {
	n, err := h.engine.RebuildProfiles(c.Request.Context(), nil)
	resp := RebuildResponse{Rebuilt: n}
	if err != nil {
		resp.Errors = []string{err.Error()}
	}
	c.JSON(http.StatusOK, resp)
}

// HandleRecordHistory appends learning history for a user.
func (h *Handlers) HandleRecordHistory(c *gin.Context) {
	var records []models.HistoryRecord
	if err := c.ShouldBindJSON(&records); err != nil {
		badRequest(c, err)
		return
	}
	userID := c.Param("userID")
	now := h.engine.Now()
	for i := range records {
		records[i].UserID = userID
		if records[i].OccurredAt.IsZero() {
			records[i].OccurredAt = now
		}
	}
	if err := h.engine.RecordHistory(c.Request.Context(), records); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"recorded": len(records)})
}

// HandleCreateItem creates a learning item for a user.
func (h *Handlers) HandleCreateItem(c *gin.Context) {
	var req CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	item, err := h.engine.CreateItem(c.Request.Context(), models.LearningItem{
		UserID:      c.Param("userID"),
		ModuleID:    req.ModuleID,
		TopicID:     req.TopicID,
		ContentType: req.ContentType,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// HandleDueItems lists a user's due items, least remembered first.
func (h *Handlers) HandleDueItems(c *gin.Context) {
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a non-negative integer", Code: "INVALID_REQUEST"})
			return
		}
		limit = n
	}
	items, err := h.engine.DueItems(c.Request.Context(), c.Param("userID"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	if items == nil {
		items = []models.LearningItem{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// HandleStatistics returns per-module review statistics for a user.
func (h *Handlers) HandleStatistics(c *gin.Context) {
	stats, err := h.engine.Statistics(c.Request.Context(), c.Param("userID"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"modules": stats})
}

// HandleGetItem returns one learning item.
func (h *Handlers) HandleGetItem(c *gin.Context) {
	item, err := h.engine.GetItem(c.Request.Context(), c.Param("itemID"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// HandleRetention reports the current retention of an item.
func (h *Handlers) HandleRetention(c *gin.Context) {
	item, err := h.engine.GetItem(c.Request.Context(), c.Param("itemID"))
	if err != nil {
		h.fail(c, err)
		return
	}
	now := h.engine.Now()
	threshold := h.engine.DueThreshold()
	c.JSON(http.StatusOK, RetentionResponse{
		ItemID:    item.ID,
		Retention: h.engine.Retention(&item, now),
		Threshold: threshold,
		Due:       h.engine.IsDue(&item, now, threshold),
	})
}

// HandleRecordReview applies a graded review to an item.
func (h *Handlers) HandleRecordReview(c *gin.Context) {
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	item, event, err := h.engine.RecordReview(c.Request.Context(), c.Param("itemID"), *req.Grade)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ReviewResponse{Item: item, Event: event})
}

// HandleRank scores and orders learning path candidates.
func (h *Handlers) HandleRank(c *gin.Context) {
	var req RankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": h.engine.TopN(req.Candidates, req.Limit)})
}
