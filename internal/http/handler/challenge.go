package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"kaizoo/internal/domain/models"
	"kaizoo/internal/http/middleware"
	"kaizoo/internal/services/challenge"
)

type Challenges interface {
	Start(ctx context.Context, c *models.Challenge) (*models.Challenge, error)
	List(ctx context.Context, userID int64, status string) ([]models.Challenge, error)
	Complete(ctx context.Context, userID, challengeID int64) (*models.Challenge, error)
}

type ChallengeHandler struct {
	challenges Challenges
}

func NewChallengeHandler(challenges Challenges) *ChallengeHandler {
	return &ChallengeHandler{challenges: challenges}
}

type challengeRequest struct {
	Title             string   `json:"title" binding:"required"`
	Description       string   `json:"description"`
	RewardXP          int      `json:"rewardXP" binding:"min=0"`
	MetricType        string   `json:"metricType" binding:"omitempty,oneof=alongamento caminhada corrida pedalada yoga outro"`
	MetricDurationMin int      `json:"metricDurationMin" binding:"min=0"`
	MetricDistanceKm  *float64 `json:"metricDistanceKm" binding:"omitempty,min=0"`
	MetricIntensity   string   `json:"metricIntensity" binding:"omitempty,oneof=low medium high"`
}

func (h *ChallengeHandler) Start(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var req challengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	ch, err := h.challenges.Start(c.Request.Context(), &models.Challenge{
		UserID:            userID,
		Title:             req.Title,
		Description:       req.Description,
		RewardXP:          req.RewardXP,
		MetricType:        req.MetricType,
		MetricDurationMin: req.MetricDurationMin,
		MetricDistanceKm:  req.MetricDistanceKm,
		MetricIntensity:   req.MetricIntensity,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusCreated, ch)
}

func (h *ChallengeHandler) List(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	status := c.Query("status")
	if status != "" && status != models.ChallengeActive && status != models.ChallengeCompleted {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status"})
		return
	}

	list, err := h.challenges.List(c.Request.Context(), userID, status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	if list == nil {
		list = []models.Challenge{}
	}

	c.JSON(http.StatusOK, list)
}

func (h *ChallengeHandler) Complete(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	challengeID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_challenge_id"})
		return
	}

	ch, err := h.challenges.Complete(c.Request.Context(), userID, challengeID)
	if err != nil {
		switch {
		case errors.Is(err, challenge.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "challenge_not_found"})
		case errors.Is(err, challenge.ErrAlreadyCompleted):
			c.JSON(http.StatusConflict, gin.H{"error": "challenge_completed"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		}
		return
	}

	c.JSON(http.StatusOK, ch)
}
