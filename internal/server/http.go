// Package server exposes the worker's HTTP API: job submission into the
// queue and receipt exports for reviewers.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
	"github.com/joseph-ayodele/receipt-pipeline/internal/queue"
)

const maxJobPayload = 64 << 10 // 64KB, a job message is small

// Enqueuer accepts a raw job message payload for processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload []byte) error
}

// Exporter produces XLSX workbooks of stored receipts.
type Exporter interface {
	ExportReceiptsXLSX(ctx context.Context, tenantID uuid.UUID, from, to *time.Time) ([]byte, error)
}

// Server is the worker's HTTP API.
type Server struct {
	queue   Enqueuer
	exports Exporter
	logger  *slog.Logger
	router  *gin.Engine
}

func New(q Enqueuer, exports Exporter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		queue:   q,
		exports: exports,
		logger:  logger,
		router:  router,
	}
	router.Use(s.requestID())

	router.GET("/healthz", s.handleHealthz)
	v1 := router.Group("/v1")
	{
		v1.POST("/jobs", s.handleSubmitJob)
		v1.GET("/tenants/:tenantID/receipts/export", s.handleExportReceipts)
	}
	return s
}

// Handler returns the router for mounting on an http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// requestID stamps every request with an id, carried on the context so the
// rest of the call chain logs it.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := uuid.New().String()
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), reqID))
		c.Header("X-Request-Id", reqID)

		start := time.Now()
		c.Next()
		s.logger.Info("http.request",
			"req_id", reqID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleSubmitJob accepts one job message and queues it. The payload is the
// same JSON contract the queue validates; a schema violation is the
// submitter's error, a full queue is backpressure.
func (s *Server) handleSubmitJob(c *gin.Context) {
	ctx := c.Request.Context()
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxJobPayload+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable request body"})
		return
	}
	if len(payload) > maxJobPayload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "job message too large"})
		return
	}

	if err := s.queue.Enqueue(ctx, payload); err != nil {
		if errors.Is(err, queue.ErrQueueFull) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue is full, retry later"})
			return
		}
		s.logger.Warn("job submission rejected",
			"req_id", common.RequestIDFromContext(ctx), "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

// handleExportReceipts streams an XLSX export of a tenant's receipts,
// optionally windowed by ?from=YYYY-MM-DD&to=YYYY-MM-DD.
func (s *Server) handleExportReceipts(c *gin.Context) {
	ctx := c.Request.Context()
	tenantID, err := uuid.Parse(c.Param("tenantID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant id is not a uuid"})
		return
	}

	from, err := parseDateParam(c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from: " + err.Error()})
		return
	}
	to, err := parseDateParam(c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to: " + err.Error()})
		return
	}

	data, err := s.exports.ExportReceiptsXLSX(ctx, tenantID, from, to)
	if err != nil {
		s.logger.Error("receipt export failed",
			"req_id", common.RequestIDFromContext(ctx), "tenant_id", tenantID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	filename := fmt.Sprintf("receipts-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func parseDateParam(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	d, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("expected YYYY-MM-DD, got %q", value)
	}
	return &d, nil
}
