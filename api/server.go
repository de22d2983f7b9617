// Package api exposes elections over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sealed-ballot/auth"
	"sealed-ballot/messaging"
	"sealed-ballot/service"
)

const module = "api"

// Options wires the server. Events feeds the websocket stream, which is
// disabled when it is nil.
type Options struct {
	Addr       string
	Elections  *service.Directory
	Challenger *auth.Challenger
	Tokens     *auth.TokenIssuer
	Events     *messaging.Bus
	Logger     *slog.Logger
}

type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	elections  *service.Directory
	challenger *auth.Challenger
	tokens     *auth.TokenIssuer
	events     *messaging.Bus
	logger     *slog.Logger
}

func NewServer(opts Options) *Server {
	s := &Server{
		router:     gin.New(),
		elections:  opts.Elections,
		challenger: opts.Challenger,
		tokens:     opts.Tokens,
		events:     opts.Events,
		logger:     service.ResolveLogger(opts.Logger),
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery())
	s.router.Use(requestLogger(s.logger))

	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.POST("/auth/challenge", s.handleChallenge)
		api.POST("/auth/login", s.handleLogin)

		api.GET("/elections", s.handleListElections)
		api.POST("/elections", s.authMiddleware(), s.handleCreateElection)
		api.GET("/elections/:id", s.handleGetElection)

		api.GET("/elections/:id/candidates", s.handleListCandidates)
		api.POST("/elections/:id/candidates", s.authMiddleware(), s.handleRequestCandidate)
		api.POST("/elections/:id/candidates/:wallet/approve", s.authMiddleware(), s.handleApproveCandidate)

		api.GET("/elections/:id/voters", s.handleListVoters)
		api.POST("/elections/:id/voters", s.authMiddleware(), s.handleRequestVoter)
		api.POST("/elections/:id/voters/:wallet/approve", s.authMiddleware(), s.handleApproveVoter)

		api.GET("/elections/:id/status/:wallet", s.handleStatus)

		api.POST("/elections/:id/commit", s.authMiddleware(), s.handleCommit)
		api.GET("/elections/:id/commitments", s.handleListCommitments)
		api.GET("/elections/:id/commitments/unrevealed", s.handleUnrevealed)
		api.GET("/elections/:id/commitments/:wallet", s.handleGetCommitment)

		api.POST("/elections/:id/reveal", s.authMiddleware(), s.handleReveal)
		api.GET("/elections/:id/tally", s.handleTally)
		api.GET("/elections/:id/results", s.handleResults)
		api.POST("/elections/:id/end", s.authMiddleware(), s.handleEndElection)
		api.GET("/elections/:id/audit", s.handleAudit)
		api.GET("/elections/:id/events", s.handleEvents)

		api.POST("/commitments/verify", s.handleVerifyCommitment)
		api.GET("/metrics", s.handleMetrics)
	}
}

// Handler returns the router, for tests and custom listeners.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening",
		"event", "http_listen",
		"module", module,
		"layer", "transport",
		"addr", s.httpServer.Addr,
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
