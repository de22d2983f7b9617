package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

const walletKey = "wallet"

// authMiddleware validates the bearer token and stores the caller's wallet.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthenticated(c, "missing authorization header")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			abortUnauthenticated(c, "invalid authorization header format")
			return
		}

		wallet, err := s.tokens.Parse(tokenString)
		if err != nil {
			abortUnauthenticated(c, "invalid token")
			return
		}

		c.Set(walletKey, wallet)
		c.Next()
	}
}

func abortUnauthenticated(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Code: "Unauthenticated", Error: message})
}

// callerWallet is the wallet set by authMiddleware.
func callerWallet(c *gin.Context) common.Address {
	wallet, _ := c.MustGet(walletKey).(common.Address)
	return wallet
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "http request",
			"event", "http_request",
			"module", module,
			"layer", "transport",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(started).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}
