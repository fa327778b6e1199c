// Package httpapi serves the JSON API used by the web app.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"deepdive/internal/application"
)

const shutdownTimeout = 10 * time.Second

type Deps struct {
	Sparring *application.SparringService
	Coaching *application.CoachingService
	Sessions *application.SessionService
	Gatherer prometheus.Gatherer
	Log      *zap.Logger
	Debug    bool
}

type Server struct {
	deps   Deps
	log    *zap.Logger
	engine *gin.Engine
}

func New(d Deps) *Server {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	if !d.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	s := &Server{deps: d, log: d.Log.Named("http"), engine: engine}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-User-Email", "X-User-Name"}
	corsConfig.ExposeHeaders = []string{"Content-Disposition"}

	engine.Use(s.recovery(), s.requestLog(), cors.New(corsConfig))
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))

	api := s.engine.Group("/api", identity())
	{
		api.GET("/notes", s.listNotes)
		api.POST("/notes", s.createNote)
		api.GET("/people", s.listPeople)
		api.POST("/people", s.createPerson)
		api.GET("/presets", s.listPresets)
		api.GET("/profile", s.getProfile)
		api.PUT("/profile", s.putProfile)
	}

	dd := api.Group("/deep-dive")
	{
		dd.POST("/coach", s.coach)
		dd.POST("/sparring", s.sparringTurn)
		dd.POST("/drafts/rewrite", s.rewrite)
		dd.GET("/export", s.export)
		dd.POST("/reset", s.reset)
		dd.GET("/sessions", s.listSessions)
		dd.GET("/sessions/:id", s.sessionDetail)
		dd.POST("/sessions/:id/close", s.closeSparring)
		dd.POST("/sessions/:id/adopt-draft", s.adoptDraft)
		dd.POST("/sessions/:id/save-adopted-note", s.saveAdoptedNote)
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.log.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
