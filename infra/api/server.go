// Package api exposes the market engine over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kilianp07/spotmarket/core/batch"
	"github.com/kilianp07/spotmarket/core/inputs"
	"github.com/kilianp07/spotmarket/core/journal"
	"github.com/kilianp07/spotmarket/core/model"
	"github.com/kilianp07/spotmarket/infra/logger"
)

// Server routes:
//
//	GET  /health
//	GET  /metrics
//	POST /api/v1/dispatch  one interval document, returns its DispatchResult
//	POST /api/v1/batch     a JSON array of documents, returns the batch report
//	GET  /api/v1/journal   journal records filtered by query parameters
type Server struct {
	cfg     Config
	runner  *batch.Runner
	journal journal.Store
	log     logger.Logger
	router  *gin.Engine
}

// BatchResponse is the body of POST /api/v1/batch.
type BatchResponse struct {
	RunID      string                 `json:"run_id"`
	Failed     int                    `json:"failed"`
	DurationMS int64                  `json:"duration_ms"`
	Results    []model.DispatchResult `json:"results"`
}

// NewServer builds the router. store may be nil, which disables the journal route.
func NewServer(cfg Config, runner *batch.Runner, store journal.Store, log logger.Logger) (*Server, error) {
	if runner == nil || log == nil {
		return nil, fmt.Errorf("api: nil parameter provided to NewServer")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{cfg: cfg, runner: runner, journal: store, log: log}
	r := gin.New()
	r.Use(recovery(log), requestLog(log))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	v1 := r.Group("/api/v1")
	{
		v1.POST("/dispatch", s.dispatch)
		v1.POST("/batch", s.batch)
		v1.GET("/journal", s.queryJournal)
	}
	r.NoRoute(func(c *gin.Context) {
		abort(c, http.StatusNotFound, "NOT_FOUND", "Not found")
	})
	s.router = r
	return s, nil
}

// Handler returns the router wrapped with CORS handling.
func (s *Server) Handler() http.Handler {
	return withCORS(s.cfg.CORSOrigins, s.router)
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.readTimeout(),
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("serving API on %s", s.cfg.Address)
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.shutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	return <-errCh
}

// StatusCode maps an interval outcome to an HTTP status.
func StatusCode(status model.Status) int {
	switch status {
	case model.StatusOptimal:
		return http.StatusOK
	case model.StatusInvalid:
		return http.StatusBadRequest
	case model.StatusInfeasible, model.StatusUnbounded:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) limitBody(c *gin.Context) {
	if s.cfg.MaxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes)
	}
}

func (s *Server) dispatch(c *gin.Context) {
	s.limitBody(c)
	var doc inputs.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		abort(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	rep, err := s.runner.Run(c.Request.Context(), []inputs.Document{doc})
	if err != nil {
		s.log.Errorf("dispatch run %s: %v", rep.RunID, err)
	}
	res := rep.Results[0]
	c.Header("X-Run-ID", rep.RunID)
	c.JSON(StatusCode(res.Status), res)
}

func (s *Server) batch(c *gin.Context) {
	s.limitBody(c)
	var docs []inputs.Document
	if err := c.ShouldBindJSON(&docs); err != nil {
		abort(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if len(docs) == 0 {
		abort(c, http.StatusBadRequest, "INVALID_REQUEST", "no interval documents")
		return
	}
	rep, err := s.runner.Run(c.Request.Context(), docs)
	if err != nil {
		s.log.Errorf("batch run %s: %v", rep.RunID, err)
	}
	c.Header("X-Run-ID", rep.RunID)
	c.JSON(http.StatusOK, BatchResponse{
		RunID:      rep.RunID,
		Failed:     rep.Failed,
		DurationMS: rep.Duration.Milliseconds(),
		Results:    rep.Results,
	})
}

func (s *Server) queryJournal(c *gin.Context) {
	if s.journal == nil {
		abort(c, http.StatusNotFound, "JOURNAL_DISABLED", "no journal configured")
		return
	}
	q := journal.Query{
		RunID:    c.Query("run_id"),
		Interval: c.Query("interval"),
		Status:   model.Status(c.Query("status")),
		Unit:     c.Query("unit"),
	}
	for key, dst := range map[string]*time.Time{"start": &q.Start, "end": &q.End} {
		v := c.Query(key)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			abort(c, http.StatusBadRequest, "INVALID_QUERY", fmt.Sprintf("%s: %v", key, err))
			return
		}
		*dst = t
	}
	recs, err := s.journal.Query(c.Request.Context(), q)
	if err != nil {
		abort(c, http.StatusInternalServerError, "JOURNAL_ERROR", err.Error())
		return
	}
	if recs == nil {
		recs = []journal.Record{}
	}
	c.JSON(http.StatusOK, recs)
}
