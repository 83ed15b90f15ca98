package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/cleanly/booking-api/internal/middleware"
	"github.com/cleanly/booking-api/internal/model"
	"github.com/cleanly/booking-api/internal/repository/memory"
	"github.com/cleanly/booking-api/pkg/auth"
	"github.com/cleanly/booking-api/pkg/errors"
	"github.com/cleanly/booking-api/pkg/logger"
	"github.com/cleanly/booking-api/pkg/metrics"
)

const secret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
	middleware.ConfigureValidator(middleware.DefaultValidationConfig())
}

type envelope struct {
	Status string `json:"status"`
	Error  struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func token(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	tok, err := auth.CreateToken(secret, userID.String(), role, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func authRouter(store *memory.Store, roles ...model.Role) (*gin.Engine, *model.Actor) {
	m := middleware.NewAuthMiddleware(auth.NewJWTService(secret), store.Companies())
	seen := &model.Actor{}

	r := gin.New()
	r.GET("/", m.Authenticate(), m.RequireRoles(roles...), func(c *gin.Context) {
		*seen, _ = middleware.ActorFrom(c)
		c.Status(http.StatusOK)
	})
	return r, seen
}

func TestAuthenticateResolvesActor(t *testing.T) {
	store := memory.NewStore()
	owner := uuid.New()
	company := model.Company{Base: model.NewBase(time.Now()), OwnerID: owner, Name: "Sparkle Co"}
	store.AddCompany(company)

	r, seen := authRouter(store, model.RoleCompany, model.RoleProvider)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", token(t, owner, "COMPANY"))
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, owner, seen.UserID)
	assert.Equal(t, model.RoleCompany, seen.Role)
	require.NotNil(t, seen.CompanyID)
	assert.Equal(t, company.ID, *seen.CompanyID)
}

func TestAuthenticateDefaultsRoleToCustomer(t *testing.T) {
	r, seen := authRouter(memory.NewStore(), model.RoleCustomer)
	user := uuid.New()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", token(t, user, ""))
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.RoleCustomer, seen.Role)
	assert.Nil(t, seen.CompanyID)
}

func TestAuthenticateRejects(t *testing.T) {
	r, _ := authRouter(memory.NewStore(), model.RoleCustomer)

	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"missing header", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"not bearer", "Basic abc", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"bad token", "Bearer nope", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"unknown role", token(t, uuid.New(), "ROOT"), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrong role", token(t, uuid.New(), "PROVIDER"), http.StatusForbidden, "FORBIDDEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			env := decode(t, w)
			assert.Equal(t, "error", env.Status)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestErrorHandlerHidesInternalCause(t *testing.T) {
	r := gin.New()
	r.Use(middleware.ErrorHandler(logger.Nop()))
	r.GET("/internal", func(c *gin.Context) {
		_ = c.Error(assert.AnError)
	})
	r.GET("/missing", func(c *gin.Context) {
		_ = c.Error(errors.NotFound("booking"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/internal", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	env := decode(t, w)
	assert.Equal(t, "INTERNAL", env.Error.Code)
	assert.Equal(t, "internal server error", env.Error.Message)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "booking not found", decode(t, w).Error.Message)
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Recovery(logger.Nop()))
	r.GET("/", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderXRequestID))
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestRateLimitPerClient(t *testing.T) {
	m := metrics.NewNop()
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{Rate: rate.Every(time.Hour), Burst: 2}, m)

	r := gin.New()
	r.Use(rl.RateLimit())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	hit := func(ip string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, hit("10.0.0.1"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.2"))
}

type bindTarget struct {
	ScheduledAt string `json:"scheduled_at" binding:"required"`
	Items       []struct {
		ServiceID string `json:"service_id" binding:"required"`
	} `json:"items" binding:"required,min=1,dive"`
}

func TestBindingError(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing fields", `{}`, "scheduled_at is required"},
		{"empty items", `{"scheduled_at":"x","items":[]}`, "items is too short"},
		{"nested", `{"scheduled_at":"x","items":[{}]}`, "items[0].service_id is required"},
		{"syntax", `{`, "request body"},
		{"type", `{"scheduled_at":1}`, "wrong type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			c.Request.Header.Set("Content-Type", "application/json")

			var target bindTarget
			err := c.ShouldBindJSON(&target)
			require.Error(t, err)

			appErr := middleware.BindingError(err)
			assert.Equal(t, errors.ErrValidation, appErr.Code)
			assert.Contains(t, appErr.Message, tt.want)
		})
	}
}

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.Use(middleware.BodyLimit(8))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123")))
	assert.Equal(t, http.StatusOK, w.Code)
}
