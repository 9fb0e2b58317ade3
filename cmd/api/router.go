package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"geoattend/internal/httpmiddleware"
)

type routeRegistrar interface {
	Register(r gin.IRouter)
}

type routerDeps struct {
	webhook   interface{ Register(r gin.IRoutes) }
	admin     routeRegistrar
	health    func(ctx context.Context) map[string]bool
	rateLimit int
}

func newRouter(deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/", "/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		checks := deps.health(c.Request.Context())
		status := http.StatusOK
		for _, ok := range checks {
			if !ok {
				status = http.StatusServiceUnavailable
			}
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "db": checks["db"], "redis": checks["redis"]})
	})

	deps.webhook.Register(r)

	// Only the admin surface is rate limited per client.
	adminGroup := r.Group("")
	if deps.rateLimit > 0 {
		adminGroup.Use(httpmiddleware.NewTokenBucket(deps.rateLimit, deps.rateLimit).Middleware(httpmiddleware.ClientIP))
	}
	deps.admin.Register(adminGroup)

	return r
}

// corsMiddleware answers browser preflights for the admin API.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
