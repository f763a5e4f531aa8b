package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"library-backend/internal/config"
	"library-backend/internal/domains/lending/handler"
	"library-backend/internal/domains/lending/model"
	"library-backend/internal/domains/lending/repository"
	"library-backend/internal/domains/lending/service"
	"library-backend/pkg/container"
	"library-backend/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// memoryContainer wires the lending stack on the memory store without Redis
func memoryContainer(t *testing.T) (*container.Container, *repository.MemoryStore) {
	t.Helper()

	store := repository.NewMemoryStore()
	policy := model.DefaultPolicy()
	lending := service.NewLendingService(store,
		service.NewEligibilityGate(store, policy.MaxActiveLoans),
		service.NewFineCalculator(policy.FinePerDay),
		nil, policy, nil)
	fines := service.NewFineService(store, nil, nil)
	dashboard := service.NewDashboardService(store, nil, time.Minute, nil)

	c := &container.Container{
		Config: &config.Config{
			App:   config.AppConfig{Version: "test", AllowedOrigins: []string{"http://localhost:3000"}},
			Store: config.StoreConfig{Driver: config.StoreMemory},
		},
		JWTManager:       jwt.NewManager("test-secret", time.Hour),
		LendingStore:     store,
		LendingService:   lending,
		FineService:      fines,
		DashboardService: dashboard,
		LendingHandler:   handler.NewHandler(lending, fines, dashboard, nil),
	}
	return c, store
}

func token(t *testing.T, c *container.Container, role string) string {
	t.Helper()
	tok, err := c.JWTManager.GenerateAccessToken(uuid.NewString(), "desk@library.test", role)
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestHealthCheck(t *testing.T) {
	c, _ := memoryContainer(t)
	router := SetupRouter(c)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Contains(t, w.Body.String(), `"redis":"disconnected"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestLendingRoutes_RequireDeskRole(t *testing.T) {
	c, store := memoryContainer(t)
	router := SetupRouter(c)

	reader := model.Reader{ID: uuid.New(), FullName: "Tenar", Status: model.ReaderStatusActive}
	book := model.Book{ID: uuid.New(), ISBN: "9780689845369", Title: "The Tombs of Atuan", TotalCopies: 1, AvailableCopies: 1, Version: 1}
	store.SeedReader(reader)
	store.SeedBook(book)

	tests := []struct {
		name   string
		auth   string
		status int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"reader role", token(t, c, "reader"), http.StatusForbidden},
		{"librarian", token(t, c, jwt.RoleLibrarian), http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"reader_id":"` + reader.ID.String() + `","book_id":"` + book.ID.String() + `","issue_date":"2024-01-10"}`
			req := httptest.NewRequest(http.MethodPost, "/api/v1/loans", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestLendingRoutes_AdminReadsDashboard(t *testing.T) {
	c, _ := memoryContainer(t)
	router := SetupRouter(c)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/stats", nil)
	req.Header.Set("Authorization", token(t, c, jwt.RoleAdmin))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_books":0`)
}

func TestLendingRoutes_OverdueSummaryNeedsStaff(t *testing.T) {
	c, _ := memoryContainer(t)
	router := SetupRouter(c)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/overdue", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/overdue", nil)
	req.Header.Set("Authorization", token(t, c, jwt.RoleAdmin))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"overdue_loans":0`)
}
