package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"kaizoo/internal/http/handler"
	"kaizoo/internal/http/middleware"
)

// NewRouter wires gin routes and middleware. Everything outside the three
// public auth endpoints sits behind the bearer token check.
func NewRouter(
	logger *slog.Logger,
	accessSecret string,
	authHandler *handler.AuthHandler,
	activityHandler *handler.ActivityHandler,
	profileHandler *handler.ProfileHandler,
	challengeHandler *handler.ChallengeHandler,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))

	requireAuth := middleware.RequireAuth(accessSecret)

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", requireAuth, authHandler.Logout)
		authGroup.GET("/me", requireAuth, authHandler.Me)
	}

	activities := r.Group("/activities", requireAuth)
	{
		activities.POST("", activityHandler.Create)
		activities.GET("", activityHandler.List)
	}

	r.GET("/metrics/weekly", requireAuth, activityHandler.Weekly)

	profileGroup := r.Group("/profile", requireAuth)
	{
		profileGroup.GET("", profileHandler.Get)
		profileGroup.POST("/onboarding", profileHandler.Onboarding)
		profileGroup.POST("/preferences", profileHandler.Preferences)
	}

	challengesGroup := r.Group("/challenges", requireAuth)
	{
		challengesGroup.POST("", challengeHandler.Start)
		challengesGroup.GET("", challengeHandler.List)
		challengesGroup.POST("/:id/complete", challengeHandler.Complete)
	}

	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}
