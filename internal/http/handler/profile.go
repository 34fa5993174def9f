package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"kaizoo/internal/domain/models"
	"kaizoo/internal/http/middleware"
)

type Profiles interface {
	Get(ctx context.Context, userID int64) (*models.Profile, error)
	CompleteOnboarding(ctx context.Context, userID int64, mascot string) (*models.Profile, error)
	SetPreferences(ctx context.Context, userID int64, quiz models.Quiz) (*models.Profile, error)
}

type ProfileHandler struct {
	profiles Profiles
}

func NewProfileHandler(profiles Profiles) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

func (h *ProfileHandler) Get(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	p, err := h.profiles.Get(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, p)
}

type onboardingRequest struct {
	Mascot string `json:"mascot" binding:"required,oneof=tato dino koa kaia penny"`
}

func (h *ProfileHandler) Onboarding(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var req onboardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	p, err := h.profiles.CompleteOnboarding(c.Request.Context(), userID, req.Mascot)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, p)
}

type preferencesRequest struct {
	Goal  string   `json:"goal" binding:"required"`
	Freq  string   `json:"freq" binding:"required"`
	Likes []string `json:"likes" binding:"required,min=1"`
}

func (h *ProfileHandler) Preferences(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var req preferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	p, err := h.profiles.SetPreferences(c.Request.Context(), userID, models.Quiz{
		Goal:  req.Goal,
		Freq:  req.Freq,
		Likes: req.Likes,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, p)
}
