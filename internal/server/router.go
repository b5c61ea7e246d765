// Package server assembles the HTTP surface of the registry.
package server

import (
	"net/http"

	"github.com/eaglebank/registry/internal/handler"
	"github.com/eaglebank/registry/shared/logger"
	"github.com/eaglebank/registry/shared/metrics"
	"github.com/eaglebank/registry/shared/middleware"
	"github.com/gin-gonic/gin"
)

// Handlers groups the resource handlers mounted by NewRouter.
type Handlers struct {
	Users    *handler.UserHandler
	Accounts *handler.AccountHandler
	Metrics  *handler.MetricsHandler
}

// NewRouter builds the gin engine. A nil Metrics disables both request
// instrumentation and the /prometheus endpoint.
func NewRouter(h Handlers, log *logger.Logger, m *metrics.Metrics) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.LoggingMiddleware(log), middleware.Metrics(m))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if m != nil {
		router.GET("/prometheus", gin.WrapH(m.Handler()))
	}

	h.Users.RegisterRoutes(router.Group("/users"))
	h.Accounts.RegisterRoutes(router.Group("/accounts"))
	h.Metrics.RegisterRoutes(router.Group("/metrics"))
	return router
}
