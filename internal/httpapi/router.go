package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mindline/mindline-backend/internal/config"
	"github.com/mindline/mindline-backend/internal/httpapi/handlers"
	"github.com/mindline/mindline-backend/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID())

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "route not found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"detail": "method not allowed"})
	})

	api := r.Group(fmt.Sprintf("/api/%s", config.APIVersion))

	api.GET("/health", h.Health)

	api.POST("/telegram/set-webhook", h.SetWebhook)
	api.POST("/telegram/webhook", h.Webhook)

	protected := api.Group("/")
	protected.Use(middleware.BearerAuth(h.Cfg.ServerAPIKey))
	protected.POST("/agent/chat", h.AgentChat)
	protected.POST("/user/register", h.Register)

	return r
}
