package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"kaizoo/internal/domain/models"
	"kaizoo/internal/http/middleware"
)

type Activities interface {
	Record(ctx context.Context, a *models.Activity) (*models.Activity, error)
	List(ctx context.Context, userID int64) ([]models.Activity, error)
	Weekly(ctx context.Context, userID int64, weekStart time.Time) (*models.WeeklyMetrics, error)
}

type ActivityHandler struct {
	activities Activities
}

func NewActivityHandler(activities Activities) *ActivityHandler {
	return &ActivityHandler{activities: activities}
}

type activityRequest struct {
	Type        string    `json:"type" binding:"required,oneof=alongamento caminhada corrida pedalada yoga outro"`
	Date        time.Time `json:"dateISO" binding:"required"`
	DurationMin int       `json:"durationMin" binding:"min=0"`
	DistanceKm  *float64  `json:"distanceKm" binding:"omitempty,min=0"`
	Intensity   string    `json:"intensity" binding:"required,oneof=low medium high"`
	Mood        int       `json:"mood" binding:"required,min=1,max=5"`
	Environment string    `json:"environment" binding:"required,oneof=open closed"`
	Notes       string    `json:"notes" binding:"max=500"`
	Calories    int       `json:"calories" binding:"min=0"`
}

func (h *ActivityHandler) Create(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var req activityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	activity, err := h.activities.Record(c.Request.Context(), &models.Activity{
		UserID:      userID,
		Type:        req.Type,
		Date:        req.Date,
		DurationMin: req.DurationMin,
		DistanceKm:  req.DistanceKm,
		Intensity:   req.Intensity,
		Mood:        req.Mood,
		Environment: req.Environment,
		Notes:       req.Notes,
		Calories:    req.Calories,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusCreated, activity)
}

func (h *ActivityHandler) List(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	list, err := h.activities.List(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	if list == nil {
		list = []models.Activity{}
	}

	c.JSON(http.StatusOK, list)
}

func (h *ActivityHandler) Weekly(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var weekStart time.Time
	if raw := c.Query("weekStart"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			parsed, err = time.Parse("2006-01-02", raw)
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_week_start"})
			return
		}
		weekStart = parsed
	}

	metrics, err := h.activities.Weekly(c.Request.Context(), userID, weekStart)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, metrics)
}
