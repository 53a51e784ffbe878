package http

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/zoobzio/clockz"

	"crashanalytix-console/internal/detector"
	"crashanalytix-console/internal/history"
	"crashanalytix-console/internal/http/middleware"
	"crashanalytix-console/internal/preview"
	"crashanalytix-console/internal/report"
	"crashanalytix-console/internal/service"
	"crashanalytix-console/internal/upload"
)

var allowedVideoExtensions = map[string]bool{
	".mkv": true,
	".mp4": true,
}

type Handler struct {
	console *service.ConsoleService
	history *history.Service
	clock   clockz.Clock
	log     zerolog.Logger
}

func NewHandler(console *service.ConsoleService, history *history.Service, clock clockz.Clock, log zerolog.Logger) *Handler {
	if clock == nil {
		clock = clockz.RealClock
	}
	return &Handler{console: console, history: history, clock: clock, log: log}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	api := r.Group("/api")
	api.Use(authMiddleware)

	api.POST("/sessions", h.createSession)
	api.GET("/sessions/:id", h.getSession)
	api.DELETE("/sessions/:id", h.closeSession)
	api.PUT("/sessions/:id/file", h.selectFile)
	api.GET("/sessions/:id/preview", h.streamPreview)
	api.POST("/sessions/:id/submit", h.submit)
	api.GET("/sessions/:id/view", h.getProcessedView)
	api.GET("/sessions/:id/report.pdf", h.sessionReport)

	api.GET("/accidents", h.listAccidents)
	api.GET("/accidents/:id", h.getAccident)
	api.GET("/accidents/:id/report.pdf", h.accidentReport)
	api.GET("/runs", h.listRuns)
}

type createSessionRequest struct {
	Kind upload.Kind `json:"kind" binding:"required"`
}

func (h *Handler) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("kind is required"))
		return
	}

	// principal is absent when the API runs without auth
	principal, _ := middleware.MustPrincipal(c)

	state, err := h.console.CreateSession(upload.Kind(strings.ToLower(strings.TrimSpace(string(req.Kind)))), principal.UserID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(state))
}

func (h *Handler) getSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	state, err := h.console.State(id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(state))
}

func (h *Handler) closeSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	if err := h.console.CloseSession(id); err != nil {
		h.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) selectFile(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("multipart field \"file\" is required"))
		return
	}
	if !allowedVideoExtensions[strings.ToLower(filepath.Ext(header.Filename))] {
		c.JSON(http.StatusBadRequest, errorResponse("only .mkv and .mp4 videos are accepted"))
		return
	}

	file, err := header.Open()
	if err != nil {
		h.handleError(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer file.Close()

	state, err := h.console.SelectFile(id, header.Filename, file)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(state))
}

func (h *Handler) streamPreview(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	file, ref, err := h.console.Preview(id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	defer file.Close()

	http.ServeContent(c.Writer, c.Request, ref.Name, ref.CreatedAt, file)
}

func (h *Handler) submit(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	wait := queryBool(c, "wait")

	state, err := h.console.Submit(c.Request.Context(), id, wait)
	if err != nil {
		h.handleError(c, err)
		return
	}

	status := http.StatusOK
	if !wait {
		status = http.StatusAccepted
	}
	c.JSON(status, successResponse(state))
}

func (h *Handler) getProcessedView(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	view, err := h.console.ProcessedView(id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(view))
}

func (h *Handler) sessionReport(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	pdf, err := h.console.Report(id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	h.sendPDF(c, pdf)
}

func (h *Handler) listAccidents(c *gin.Context) {
	listing, err := h.history.List(c.Request.Context(), queryBool(c, "sortBySeverity"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(listing))
}

func (h *Handler) getAccident(c *gin.Context) {
	details, err := h.history.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(details))
}

func (h *Handler) accidentReport(c *gin.Context) {
	pdf, err := h.history.Report(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	h.sendPDF(c, pdf)
}

func (h *Handler) listRuns(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, errorResponse("invalid limit"))
			return
		}
		limit = parsed
	}

	runs, err := h.console.RecentRuns(c.Request.Context(), limit)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(runs))
}

func (h *Handler) sendPDF(c *gin.Context, pdf []byte) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, report.Filename(h.clock.Now())))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrNoPreview),
		errors.Is(err, detector.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, upload.ErrNoFileSelected),
		errors.Is(err, service.ErrInvalidKind),
		errors.Is(err, history.ErrInvalidID):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, upload.ErrUploadInFlight),
		errors.Is(err, upload.ErrSuperseded),
		errors.Is(err, service.ErrNoProcessedView):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	case errors.Is(err, preview.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse(err.Error()))
	case detector.IsTransport(err):
		h.log.Error().Err(err).Msg("detection service unavailable")
		c.JSON(http.StatusBadGateway, errorResponse("detection service unavailable"))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid session id"))
		return uuid.Nil, false
	}
	return id, true
}

func queryBool(c *gin.Context, key string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(c.Query(key)))
	return err == nil && value
}

func successResponse(data interface{}) gin.H {
	return gin.H{"data": data}
}

func errorResponse(message string) gin.H {
	return gin.H{"error": message}
}
