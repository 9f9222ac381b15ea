package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/lxzan/gws"

	"gosplash/config"
	"gosplash/downloader"
	"gosplash/history"
	"gosplash/pkg/logger"
	"gosplash/unsplash"
	"gosplash/variety"
)

const (
	PingInterval = 5 * time.Second
	PingWait     = 10 * time.Second

	pickTimeout = 60 * time.Second
)

// Server exposes the variety engine over a websocket. Each connection gets
// its own engine session; closing the socket ends it.
type Server struct {
	router        *http.ServeMux
	upgrader      *gws.Upgrader
	config        *config.Config
	db            *history.DB
	controller    *variety.Controller
	downloader    *downloader.Downloader
	closeProvider func()
	log           *logger.Logger
	httpServer    *http.Server
	stopPurge     context.CancelFunc
}

// New creates a new Server.
func New(cfg *config.Config, log *logger.Logger) (*Server, error) {
	retention, err := cfg.Database.RetentionDuration()
	if err != nil {
		return nil, err
	}

	db, err := history.Open(cfg.Database.Path, retention)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	minDelay, err := time.ParseDuration(cfg.Unsplash.MinDelay)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("invalid minDelay: %w", err)
	}
	maxDelay, err := time.ParseDuration(cfg.Unsplash.MaxDelay)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("invalid maxDelay: %w", err)
	}
	opts := unsplash.Options{
		PageSize:   cfg.Unsplash.PageSize,
		MaxPage:    cfg.Unsplash.MaxPage,
		MinDelay:   minDelay,
		MaxDelay:   maxDelay,
		UserAgents: cfg.Unsplash.UserAgents,
	}

	var provider variety.SearchProvider
	closeProvider := func() {}
	if cfg.Unsplash.AccessKey != "" {
		provider = unsplash.NewClient(cfg.Unsplash.AccessKey, log, opts)
	} else {
		log.Warn("No Unsplash access key configured, falling back to browser scraping")
		browser, err := unsplash.NewBrowser(log, opts)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to start browser provider: %w", err)
		}
		provider = browser
		closeProvider = browser.Close
	}

	policy := variety.Policy{
		ExploringLimit: cfg.Variety.ExploringLimit,
		ExpandingLimit: cfg.Variety.ExpandingLimit,
		ExploringPages: cfg.Variety.ExploringPages,
		ExpandingPages: cfg.Variety.ExpandingPages,
		DeepPages:      cfg.Variety.DeepPages,
		ProbeStride:    cfg.Variety.ProbeStride,
		ProbeAttempts:  cfg.Variety.ProbeAttempts,
	}

	agents := cfg.Unsplash.UserAgents
	if len(agents) == 0 {
		agents = []string{"gosplash/1.0"}
	}

	s := &Server{
		router:        http.NewServeMux(),
		config:        cfg,
		db:            db,
		controller:    variety.NewController(provider, db, retention, policy, log),
		downloader:    downloader.New(log, agents),
		closeProvider: closeProvider,
		log:           log,
	}

	s.upgrader = gws.NewUpgrader(s.newWsHandler(), &gws.ServerOption{
		ParallelEnabled:   true,
		Recovery:          gws.Recovery,
		PermessageDeflate: gws.PermessageDeflate{Enabled: true},
	})

	s.routes()
	return s, nil
}

// Start runs the HTTP server and the history purge loop. It blocks until the
// server stops.
func (s *Server) Start() error {
	purgeCtx, cancel := context.WithCancel(context.Background())
	s.stopPurge = cancel
	go s.purgeLoop(purgeCtx)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%s", s.config.Port),
		Handler: s.router,
	}
	s.log.Info("Server starting", "port", s.config.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server and releases the provider and database.
func (s *Server) Shutdown(ctx context.Context) {
	if s.stopPurge != nil {
		s.stopPurge()
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.Warn("HTTP shutdown failed", "error", err)
		}
	}
	s.closeProvider()
	if err := s.db.Close(); err != nil {
		s.log.Warn("Failed to close history database", "error", err)
	}
}

// purgeLoop drops expired history records on the configured interval.
func (s *Server) purgeLoop(ctx context.Context) {
	interval, err := s.config.Database.CleanupIntervalDuration()
	if err != nil {
		s.log.Error("Invalid cleanup interval, purge loop disabled", "error", err)
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.controller.PurgeExpired(time.Now()); err != nil {
				s.log.Warn("History purge failed", "error", err)
			} else {
				s.log.Debug("Purged expired history records")
			}
		case <-ctx.Done():
			return
		}
	}
}

// routes registers the HTTP handlers for the server.
func (s *Server) routes() {
	s.router.HandleFunc("/", s.handleIndex())
	s.router.HandleFunc("/search", s.authMiddleware(s.handleSearch()))
}

// handleIndex is a simple handler for the root endpoint.
func (s *Server) handleIndex() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "Image variety server is running.")
	}
}

// authMiddleware checks for valid credentials before allowing access.
func (s *Server) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientName := r.Header.Get("X-Client-Name")
		password := r.Header.Get("X-Password")

		expectedPassword, ok := s.config.Credentials[clientName]
		if !ok || expectedPassword != password {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	}
}

// handleSearch upgrades the connection and binds a fresh engine session to it.
func (s *Server) handleSearch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		socket, err := s.upgrader.Upgrade(w, r)
		if err != nil {
			s.log.Warn("Failed to upgrade connection", "error", err)
			return
		}
		socket.Session().Store("sessionID", uuid.NewString())
		go func() {
			socket.ReadLoop() // Blocking prevents the context from being GC.
		}()
	}
}
