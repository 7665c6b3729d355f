package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/richd0tcom/sensordocs/core/consumer"
	"github.com/richd0tcom/sensordocs/internal/ingest"
	"github.com/richd0tcom/sensordocs/internal/metrics"
	"github.com/richd0tcom/sensordocs/internal/worker"
)

var ErrNoStore = errors.New("no document store configured")

const requestIDHeader = "X-Request-ID"

type Server struct {
	config    *ServerConfig
	processor *ingest.Processor
	worker    *worker.Worker
	registry  *prometheus.Registry
	router    *gin.Engine
	logger    *zap.Logger
}

func NewServer(options ...ConfigOption) (*Server, error) {
	config := &ServerConfig{
		WorkerCount:      4,
		BatchSize:        100,
		FlushInterval:    5 * time.Second,
		WriteConcurrency: 1,
		Port:             "8080",
		Logger:           zap.NewNop(),
	}

	for _, option := range options {
		if err := option(config); err != nil {
			return nil, err
		}
	}
	if config.Store == nil {
		return nil, ErrNoStore
	}

	// Set default consumer if not provided
	if config.Consumer == nil {
		config.Consumer = consumer.NewLogConsumer("batches", config.Logger)
	}
	if config.Decoder.Logger == nil {
		config.Decoder.Logger = config.Logger.Named("decoder")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	processor := ingest.NewProcessor(config.Store,
		ingest.WithConcurrency(config.WriteConcurrency),
		ingest.WithObserver(config.Consumer),
		ingest.WithMetrics(metrics.NewMetrics(registry)),
		ingest.WithLogger(config.Logger.Named("processor")),
	)

	gin.SetMode(gin.ReleaseMode)
	server := &Server{
		config:    config,
		processor: processor,
		registry:  registry,
		router:    gin.New(),
		logger:    config.Logger,
	}
	if config.MessageQueue != nil {
		server.worker = worker.NewWorker(processor, config.Decoder, worker.Config{
			WorkerCount:   config.WorkerCount,
			BatchSize:     config.BatchSize,
			FlushInterval: config.FlushInterval,
			DeadLetter:    config.DeadLetter,
		}, config.Logger.Named("worker"))
	}

	server.setupRoutes()
	return server, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery(), s.requestID(), s.accessLog())

	// Health check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	api := s.router.Group("/api/v1")
	{
		api.POST("/ingest", s.handleIngest)
	}
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	log := s.logger.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			zap.String("request_id", c.GetString("request_id")),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (s *Server) handleIngest(c *gin.Context) {
	data, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	measurements, err := s.config.Decoder.Decode(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	if s.config.MessageQueue != nil {
		if err := s.config.MessageQueue.Publish(ctx, data); err != nil {
			s.logger.Error("failed to publish data",
				zap.String("request_id", c.GetString("request_id")),
				zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to publish data"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"message": "data accepted for processing",
			"count":   len(measurements),
		})
		return
	}

	report, err := s.processor.ProcessBatch(ctx, measurements)
	if err != nil {
		failed := report.Failed()
		keys := make([]string, 0, len(failed))
		for _, d := range failed {
			keys = append(keys, d.ID.String())
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  err.Error(),
			"failed": keys,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"received":  report.Received,
		"dropped":   report.Dropped,
		"documents": len(report.Documents),
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is done. Shutdown stops the listener and waits for
// in-flight requests before the worker is stopped, so every payload a request
// published is handed to the worker before Start returns.
func (s *Server) Start(ctx context.Context) error {
	workerCtx, stopWorker := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorker()

	workerDone := make(chan struct{})
	if s.worker != nil {
		go func() {
			defer close(workerDone)
			if err := s.worker.Start(workerCtx, s.config.MessageQueue); err != nil {
				s.logger.Error("batch worker error", zap.Error(err))
			}
		}()
	} else {
		close(workerDone)
	}

	server := &http.Server{
		Addr:    ":" + s.config.Port,
		Handler: s.router,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http shutdown", zap.Error(err))
		}
	}()

	s.logger.Info("server starting", zap.String("port", s.config.Port))
	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		<-shutdownDone
		err = nil
	}

	stopWorker()
	<-workerDone
	return err
}

// Close releases the message queue. Call it after Start has returned.
func (s *Server) Close() error {
	if s.config.MessageQueue != nil {
		return s.config.MessageQueue.Close()
	}
	return nil
}
