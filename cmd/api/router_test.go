package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stubRoutes struct{}

func (stubRoutes) Register(r gin.IRouter) {
	r.GET("/admin/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
}

type stubWebhook struct{}

func (stubWebhook) Register(r gin.IRoutes) {
	r.POST("/webhook", func(c *gin.Context) { c.String(http.StatusOK, "OK") })
}

func newTestRouter(healthy bool, rateLimit int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return newRouter(routerDeps{
		webhook: stubWebhook{},
		admin:   stubRoutes{},
		health: func(context.Context) map[string]bool {
			return map[string]bool{"db": true, "redis": healthy}
		},
		rateLimit: rateLimit,
	})
}

func serve(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "203.0.113.7:5555"
	r.ServeHTTP(w, req)
	return w
}

func TestRootAnswersOK(t *testing.T) {
	w := serve(newTestRouter(true, 0), http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestHealthz(t *testing.T) {
	w := serve(newTestRouter(true, 0), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"OK","db":true,"redis":true}`, w.Body.String())

	w = serve(newTestRouter(false, 0), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"Service Unavailable","db":true,"redis":false}`, w.Body.String())
}

func TestAdminRateLimitedWebhookNot(t *testing.T) {
	r := newTestRouter(true, 1)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/admin/ping").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodGet, "/admin/ping").Code)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/webhook").Code)
	}
}

func TestPreflight(t *testing.T) {
	w := serve(newTestRouter(true, 0), http.MethodOptions, "/admin/ping")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Methods"))
}
