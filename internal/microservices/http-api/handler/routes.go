package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ryoozeen/RCS/internal/microservices/http-api/middleware"
)

// RouterOptions selects the optional parts of the admin API.
type RouterOptions struct {
	Metrics bool                      // serve /metrics
	Auth    middleware.TokenValidator // protect listings with operator tokens, nil = open
}

// NewRouter wires the admin endpoints. /healthz and /metrics are never behind auth.
func NewRouter(h *AdminHandler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", h.Health)
	if opts.Metrics {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	admin := r.Group("/", middleware.AuthMiddleware(opts.Auth))
	admin.GET("/clients", h.ListClients)
	admin.GET("/operators", h.ListOperators)
	admin.GET("/operators/:id", h.GetOperator)
	return r
}
