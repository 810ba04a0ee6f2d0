// Package api implements the Request Gateway (C7): a gin HTTP server
// fronting every other component, following the teacher's internal/api
// server.go shape (gin.New + gin.Recovery + gin-contrib/cors, route grouping
// by resource, Start/Shutdown lifecycle) with a unified {success, data,
// error} envelope in place of the teacher's split errorResponse/
// successResponse shape.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"sentineld/internal/binanceclient"
	"sentineld/internal/config"
	"sentineld/internal/ledger"
	"sentineld/internal/logging"
	"sentineld/internal/marketdata"
	"sentineld/internal/positions"
	"sentineld/internal/reconcile"
	"sentineld/internal/sentinel"
	"sentineld/internal/store"
	"sentineld/internal/strategyperf"
)

// Server is the Gateway component. It holds no business logic of its own —
// every handler delegates to one of C1-C6's components.
type Server struct {
	cfg    config.ServerConfig
	router *gin.Engine
	http   *http.Server

	fetcher    *marketdata.Fetcher
	positions  *positions.Manager
	ledger     *ledger.Ledger
	reconciler *reconcile.Reconciler
	strategies *strategyperf.Aggregator
	repo       *store.Repository
	db         *store.DB
	state      *store.CoreState

	clients map[sentinel.TradingMode]*binanceclient.Client

	walletSummaries       *store.EntityStore
	centralWalletStates   *store.EntityStore
	scanSettings          *store.EntityStore
	historicalPerformance *store.EntityStore

	openaiKey  string
	httpClient *http.Client

	fearGreed *fearGreedCache
}

// Deps bundles every backing component the Gateway wires into routes. Kept
// as one struct so NewServer's signature doesn't grow a parameter per
// component as the engine gains more of them.
type Deps struct {
	Fetcher    *marketdata.Fetcher
	Positions  *positions.Manager
	Ledger     *ledger.Ledger
	Reconciler *reconcile.Reconciler
	Strategies *strategyperf.Aggregator
	Repo       *store.Repository
	DB         *store.DB
	State      *store.CoreState
	Clients    map[sentinel.TradingMode]*binanceclient.Client

	WalletSummaries       *store.EntityStore
	CentralWalletStates   *store.EntityStore
	ScanSettings          *store.EntityStore
	HistoricalPerformance *store.EntityStore

	OpenAIKey string
}

// NewServer builds the gin router and registers every route.
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	if cfg.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogMiddleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		cfg:        cfg,
		router:     router,
		fetcher:    deps.Fetcher,
		positions:  deps.Positions,
		ledger:     deps.Ledger,
		reconciler: deps.Reconciler,
		strategies: deps.Strategies,
		repo:       deps.Repo,
		db:         deps.DB,
		state:      deps.State,
		clients:    deps.Clients,

		walletSummaries:       deps.WalletSummaries,
		centralWalletStates:   deps.CentralWalletStates,
		scanSettings:          deps.ScanSettings,
		historicalPerformance: deps.HistoricalPerformance,

		openaiKey:  deps.OpenAIKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		fearGreed:  newFearGreedCache(),
	}

	s.setupRoutes()
	return s
}

// requestLogMiddleware emits one line per request in the Gateway's own
// literal format, distinct from internal/logging.HTTPMiddleware's
// structured-field log (that middleware fronts plain net/http handlers
// elsewhere; gin owns this server's request path directly).
func requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		duration := time.Since(start)
		logging.APIContext(c.Request.Method, path, c.Writer.Status()).
			Info(fmt.Sprintf("%s %s -> %d %dms", c.Request.Method, path, c.Writer.Status(), duration.Milliseconds()))
	}
}

// Start begins serving. Blocks until Shutdown is called or the listener
// fails for a reason other than a clean close.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logging.Default().WithField("addr", addr).Info("gateway listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway listen failed: %w", err)
	}
	return nil
}

// Shutdown gracefully drains in-flight requests within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
