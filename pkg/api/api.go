package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"netpool/pkg/health"
	"netpool/pkg/logger"
	"netpool/pkg/pool"
	"netpool/pkg/storage"
)

// StatsProvider supplies live pool counters
type StatsProvider interface {
	Stats() pool.Stats
}

// Sweeper forces removal of currently idle entries
type Sweeper interface {
	RemoveIdle() int
}

// Server serves the stats and health API
type Server struct {
	router   *gin.Engine
	monitor  *health.Monitor
	provider StatsProvider
	sweeper  Sweeper
	store    storage.Store
	log      *logger.Logger
}

// NewServer wires the API routes. store may be nil, in which case the
// history endpoint reports that persistence is disabled.
func NewServer(monitor *health.Monitor, provider StatsProvider, sweeper Sweeper, store storage.Store) *Server {
	s := &Server{
		monitor:  monitor,
		provider: provider,
		sweeper:  sweeper,
		store:    store,
		log:      logger.Get(),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(s.log))
	router.Use(CORSMiddleware())

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/health", s.handleHealth)
		apiGroup.GET("/stats", s.handleStats)
		apiGroup.GET("/stats/history", s.handleHistory)
		apiGroup.POST("/sweep", s.handleSweep)
	}

	s.router = router
	return s
}

// Router returns the underlying gin engine, mainly for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves the API on the given address, blocking
func (s *Server) Run(addr string) error {
	s.log.InfoWith("stats api listening", "addr", addr)
	return s.router.Run(addr)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, s.monitor.Report())
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.provider.Stats())
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "stats persistence disabled"})
		return
	}

	n := 20
	if raw := c.Query("n"); raw != "" {
		val, err := strconv.Atoi(raw)
		if err != nil || val < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "n must be a positive integer"})
			return
		}
		n = val
	}

	snapshots, err := s.store.Recent(n)
	if err != nil {
		s.log.ErrorWithErr("reading snapshot history failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
		return
	}
	c.JSON(http.StatusOK, snapshots)
}

func (s *Server) handleSweep(c *gin.Context) {
	removed := s.sweeper.RemoveIdle()
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
