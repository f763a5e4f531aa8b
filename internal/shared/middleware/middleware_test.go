package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"library-backend/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(tokens *jwt.Manager, roles ...string) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/secure", AuthMiddleware(tokens), RequireRoles(roles...), func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c).String())
	})
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	return r
}

func TestAuthMiddleware(t *testing.T) {
	tokens := jwt.NewManager("secret", time.Hour)
	router := newRouter(tokens, jwt.RoleLibrarian, jwt.RoleAdmin)
	staffID := uuid.New()

	librarian, err := tokens.GenerateAccessToken(staffID.String(), "desk@library.test", jwt.RoleLibrarian)
	require.NoError(t, err)
	reader, err := tokens.GenerateAccessToken(uuid.NewString(), "reader@library.test", "reader")
	require.NoError(t, err)
	badSubject, err := tokens.GenerateAccessToken("not-a-uuid", "x@library.test", jwt.RoleAdmin)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Token " + librarian, http.StatusUnauthorized},
		{"garbage token", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"non uuid subject", "Bearer " + badSubject, http.StatusUnauthorized},
		{"role not allowed", "Bearer " + reader, http.StatusForbidden},
		{"librarian", "Bearer " + librarian, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/secure", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, staffID.String(), w.Body.String())
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	router := newRouter(jwt.NewManager("secret", time.Hour))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get(HeaderRequestID))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"SYS_001"`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	_, err := uuid.Parse(w.Header().Get(HeaderRequestID))
	assert.NoError(t, err, "generated id is a uuid")
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://desk.local"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://desk.local")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://desk.local", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.local")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
