package admin

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"geoattend/internal/attendance"
	"geoattend/internal/auth"
	"geoattend/internal/queue"
)

// eventView is the export shape of an event; it never carries the participant identity.
type eventView struct {
	EventID     string    `json:"event_id"`
	StudentID   string    `json:"student_id"`
	DisplayName string    `json:"display_name"`
	Cohort      *string   `json:"cohort"`
	OccurredAt  time.Time `json:"occurred_at"`
	FirstTime   bool      `json:"is_first_time"`
}

func toView(evt attendance.Event) eventView {
	return eventView{
		EventID:     evt.ID,
		StudentID:   evt.StudentID,
		DisplayName: evt.DisplayName,
		Cohort:      evt.Cohort,
		OccurredAt:  evt.OccurredAt,
		FirstTime:   evt.FirstTime,
	}
}

// Handler serves the admin and export routes.
type Handler struct {
	svc    *attendance.Service
	issuer *auth.Issuer
	apiKey string
	queue  queue.Queue
	log    *slog.Logger
}

// NewHandler builds the admin surface.
func NewHandler(svc *attendance.Service, issuer *auth.Issuer, apiKey string, q queue.Queue, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, issuer: issuer, apiKey: apiKey, queue: q, log: log.With("component", "admin")}
}

// Register mounts /admin routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/admin/token", h.token)

	g := r.Group("/admin", auth.AdminAuth(h.issuer))
	g.GET("/attendance", h.listAttendance)
	g.PATCH("/events/:id/cohort", h.correctEventCohort)
	g.PUT("/students/:student_id/cohort", h.setStudentCohort)
	g.POST("/notify", h.notify)
}

func (h *Handler) token(c *gin.Context) {
	var req struct {
		APIKey string `json:"api_key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.apiKey == "" || subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(h.apiKey)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
		return
	}
	tok, err := h.issuer.Issue("admin", auth.RoleAdmin)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"access_token": tok.AccessToken, "expires_at": tok.ExpiresAt.Unix()})
}

func (h *Handler) listAttendance(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		date = time.Now().In(h.svc.Location()).Format("2006-01-02")
	}
	events, err := h.svc.DailyEvents(c.Request.Context(), date, c.Query("cohort"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	views := make([]eventView, 0, len(events))
	for _, evt := range events {
		views = append(views, toView(evt))
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "events": views})
}

type cohortRequest struct {
	Cohort *string `json:"cohort"`
}

func (h *Handler) correctEventCohort(c *gin.Context) {
	var req cohortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	evt, err := h.svc.CorrectEventCohort(c.Request.Context(), c.Param("id"), req.Cohort)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toView(evt))
}

func (h *Handler) setStudentCohort(c *gin.Context) {
	var req cohortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.svc.SetStudentCohort(c.Request.Context(), c.Param("student_id"), req.Cohort)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"student_id": p.StudentID, "display_name": p.DisplayName, "cohort": p.Cohort})
}

func (h *Handler) notify(c *gin.Context) {
	var req struct {
		Date   string `json:"date" binding:"required"`
		Cohort string `json:"cohort"`
		Text   string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text required"})
		return
	}
	targets, err := h.svc.NotifyTargets(c.Request.Context(), req.Date, req.Cohort)
	if err != nil {
		h.respondError(c, err)
		return
	}

	queued := 0
	for _, to := range targets {
		if err := h.queue.Publish(c.Request.Context(), queue.Message{Type: queue.TypeNotify, Recipient: to, Text: req.Text}); err != nil {
			h.log.Error("queue publish failed", "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "queue unavailable", "queued": queued})
			return
		}
		queued++
	}
	h.log.Info("notifications queued", "count", queued, "date", req.Date, "cohort", req.Cohort)
	c.JSON(http.StatusAccepted, gin.H{"queued": queued})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, attendance.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, attendance.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.log.Error("admin request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
