package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"library-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// pinger is anything the worker depends on at startup
type pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker runs the startup checks and backs /health and /ready
type HealthChecker struct {
	checks []healthCheck
}

type healthCheck struct {
	name string
	dep  pinger
}

func newHealthChecker(redis, store, reports pinger) *HealthChecker {
	return &HealthChecker{checks: []healthCheck{
		{"redis", redis},
		{"store", store},
		{"report storage", reports},
	}}
}

// checkAll pings every dependency and stops at the first failure
func (h *HealthChecker) checkAll(ctx context.Context) error {
	for _, check := range h.checks {
		if check.dep == nil {
			return fmt.Errorf("%s is not configured", check.name)
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := check.dep.Ping(pingCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("%s check failed: %w", check.name, err)
		}
		logger.Info("startup check passed", map[string]interface{}{"check": check.name})
	}
	return nil
}

// startServices verifies dependencies and exposes the health endpoints
func startServices(ctx context.Context, checker *HealthChecker, cfg *Config) (*http.Server, error) {
	if err := checker.checkAll(ctx); err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:              cfg.HealthAddr,
		Handler:           healthRouter(checker),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("health server starting", map[string]interface{}{"addr": cfg.HealthAddr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server failed", err)
		}
	}()

	return srv, nil
}

func healthRouter(checker *HealthChecker) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "service": "library-worker"})
	})
	router.GET("/ready", func(c *gin.Context) {
		if err := checker.checkAll(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "NOT_READY", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "READY"})
	})

	return router
}
