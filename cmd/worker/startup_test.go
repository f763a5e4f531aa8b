package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthChecker_CheckAll(t *testing.T) {
	tests := []struct {
		name    string
		checker *HealthChecker
		wantErr string
	}{
		{"all up", newHealthChecker(stubPinger{}, stubPinger{}, stubPinger{}), ""},
		{"redis down", newHealthChecker(stubPinger{errors.New("refused")}, stubPinger{}, stubPinger{}), "redis check failed"},
		{"bucket missing", newHealthChecker(stubPinger{}, stubPinger{}, stubPinger{errors.New("no bucket")}), "report storage check failed"},
		{"store not configured", newHealthChecker(stubPinger{}, nil, stubPinger{}), "store is not configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.checker.checkAll(context.Background())
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestHealthRouter(t *testing.T) {
	down := healthRouter(newHealthChecker(stubPinger{}, stubPinger{errors.New("pool closed")}, stubPinger{}))

	w := httptest.NewRecorder()
	down.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	down.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "pool closed")

	up := healthRouter(newHealthChecker(stubPinger{}, stubPinger{}, stubPinger{}))
	w = httptest.NewRecorder()
	up.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
