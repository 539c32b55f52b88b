package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"docqa/internal/adapter/fs"
	"docqa/internal/domain"
	"docqa/internal/port"
)

// Core is the set of operations the HTTP surface exposes.
type Core interface {
	AnswerQuestion(ctx context.Context, question string, projectID int64) (domain.Answer, error)
	GetProjectStats(ctx context.Context, projectID int64) (domain.ProjectStats, error)
	Summarize(ctx context.Context, projectID int64) (domain.Answer, error)
	Compare(ctx context.Context, projectID int64) (domain.Answer, error)
	DeleteProjectIndex(ctx context.Context, projectID int64) error
}

type Config struct {
	UploadDir   string
	MaxFileSize int64
}

type Server struct {
	core    Core
	queue   port.TaskQueue
	tracker port.JobTracker
	cfg     Config
	logger  *slog.Logger
	router  *gin.Engine
}

// New builds the router. tracker may be nil when job state lives outside the
// process (asynq).
func New(core Core, queue port.TaskQueue, tracker port.JobTracker, cfg Config, logger *slog.Logger) *Server {
	s := &Server{
		core:    core,
		queue:   queue,
		tracker: tracker,
		cfg:     cfg,
		logger:  logger,
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	projects := router.Group("/projects/:id")
	projects.POST("/files", s.uploadFile)
	projects.POST("/ask", s.ask)
	projects.GET("/stats", s.stats)
	projects.POST("/summarize", s.summarize)
	projects.POST("/compare", s.compare)
	projects.DELETE("/index", s.deleteIndex)

	router.GET("/jobs/:id", s.jobStatus)

	s.router = router
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

type askRequest struct {
	Question string `json:"question" binding:"required"`
}

func (s *Server) ask(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}

	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error_code": "invalid_request",
			"message":    "question is required",
		})
		return
	}

	ans, err := s.core.AnswerQuestion(c.Request.Context(), req.Question, projectID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ans)
}

func (s *Server) summarize(c *gin.Context) {
	s.canned(c, s.core.Summarize)
}

func (s *Server) compare(c *gin.Context) {
	s.canned(c, s.core.Compare)
}

func (s *Server) canned(c *gin.Context, fn func(context.Context, int64) (domain.Answer, error)) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}
	ans, err := fn(c.Request.Context(), projectID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ans)
}

func (s *Server) stats(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}
	stats, err := s.core.GetProjectStats(c.Request.Context(), projectID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) deleteIndex(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}
	if err := s.core.DeleteProjectIndex(c.Request.Context(), projectID); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) uploadFile(c *gin.Context) {
	projectID, ok := projectParam(c)
	if !ok {
		return
	}

	if s.cfg.MaxFileSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxFileSize+1<<20)
	}

	fileID, err := strconv.ParseInt(c.PostForm("file_id"), 10, 64)
	if err != nil || fileID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error_code": "invalid_file_id",
			"message":    "file_id must be a positive integer",
		})
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error_code": "no_file",
			"message":    "No PDF file provided",
		})
		return
	}

	if err := fs.ValidateUpload(header.Filename, header.Size, s.cfg.MaxFileSize); err != nil {
		code := "invalid_file"
		switch {
		case errors.Is(err, fs.ErrNotPDF):
			code = "invalid_file_type"
		case errors.Is(err, fs.ErrFileTooLarge):
			code = "file_too_large"
		}
		c.JSON(http.StatusBadRequest, gin.H{"error_code": code, "message": err.Error()})
		return
	}

	dir := filepath.Join(s.cfg.UploadDir, fmt.Sprintf("project_%d", projectID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		s.fail(c, err)
		return
	}
	path := filepath.Join(dir, uuid.NewString()+".pdf")
	if err := c.SaveUploadedFile(header, path); err != nil {
		s.fail(c, err)
		return
	}

	jobID, err := s.queue.Enqueue(c.Request.Context(), domain.FileJob{
		FileID:    fileID,
		ProjectID: projectID,
		Path:      path,
	})
	if err != nil {
		os.Remove(path)
		s.fail(c, err)
		return
	}

	s.logger.Info("upload accepted",
		"project_id", projectID,
		"file_id", fileID,
		"job_id", jobID,
		"filename", header.Filename,
	)
	c.JSON(http.StatusAccepted, gin.H{
		"job_id":     jobID,
		"file_id":    fileID,
		"project_id": projectID,
		"status":     domain.StatusPending,
		"filename":   header.Filename,
		"size":       header.Size,
	})
}

func (s *Server) jobStatus(c *gin.Context) {
	if s.tracker == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error_code": "not_tracked",
			"message":    "job status is not tracked by this server",
		})
		return
	}
	st, ok := s.tracker.Status(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error_code": "job_not_found",
			"message":    "job not found",
		})
		return
	}
	c.JSON(http.StatusOK, st)
}

func projectParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error_code": "invalid_project_id",
			"message":    "project id must be a positive integer",
		})
		return 0, false
	}
	return id, true
}

func (s *Server) fail(c *gin.Context, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error_code": code, "message": err.Error()})
}

func classify(err error) (int, string) {
	var (
		embErr *domain.EmbeddingServiceError
		genErr *domain.GenerationServiceError
		stErr  *domain.StorageError
		cfgErr *domain.ConfigurationError
	)
	switch {
	case errors.Is(err, domain.ErrEmptyQuestion):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrQueueFull), errors.Is(err, domain.ErrQueueClosed):
		return http.StatusServiceUnavailable, "queue_unavailable"
	case errors.Is(err, domain.ErrCircuitOpen):
		return http.StatusServiceUnavailable, "service_unavailable"
	case errors.As(err, &embErr):
		return http.StatusBadGateway, "embedding_failed"
	case errors.As(err, &genErr):
		return http.StatusBadGateway, "generation_failed"
	case errors.As(err, &stErr):
		return http.StatusInternalServerError, "storage_error"
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError, "configuration_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
