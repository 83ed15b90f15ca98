package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"

	adminHandler "github.com/cleanly/booking-api/internal/handler/admin"
	bookingHandler "github.com/cleanly/booking-api/internal/handler/booking"
	"github.com/cleanly/booking-api/internal/handler/health"
	jobHandler "github.com/cleanly/booking-api/internal/handler/job"
	promHandler "github.com/cleanly/booking-api/internal/handler/prometheus"
	providerHandler "github.com/cleanly/booking-api/internal/handler/provider"
	webhookHandler "github.com/cleanly/booking-api/internal/handler/webhook"
	"github.com/cleanly/booking-api/internal/middleware"
	"github.com/cleanly/booking-api/internal/model"
	"github.com/cleanly/booking-api/internal/repository/memory"
	"github.com/cleanly/booking-api/internal/router"
	"github.com/cleanly/booking-api/internal/service/booking"
	"github.com/cleanly/booking-api/internal/service/event"
	"github.com/cleanly/booking-api/internal/service/idempotency"
	"github.com/cleanly/booking-api/internal/service/job"
	"github.com/cleanly/booking-api/internal/service/payment"
	"github.com/cleanly/booking-api/internal/service/verification"
	"github.com/cleanly/booking-api/pkg/auth"
	"github.com/cleanly/booking-api/pkg/logger"
	"github.com/cleanly/booking-api/pkg/metrics"
)

const (
	jwtSecret     = "router-secret"
	webhookSecret = "whsec_router"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.ConfigureValidator(middleware.DefaultValidationConfig())
}

type pingOK struct{}

func (pingOK) PingContext(ctx context.Context) error { return nil }

type app struct {
	engine   *gin.Engine
	store    *memory.Store
	standard model.Service
	deep     model.Service
}

func newApp(t *testing.T) *app {
	t.Helper()
	store := memory.NewStore()
	log := logger.Nop()
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("cleanly", "", reg)

	a := &app{
		store:    store,
		standard: model.Service{Base: model.NewBase(time.Now()), Name: "Standard clean", BasePriceCents: 12000, Active: true},
		deep:     model.Service{Base: model.NewBase(time.Now()), Name: "Deep clean", BasePriceCents: 25000, Active: true},
	}
	store.AddService(a.standard)
	store.AddService(a.deep)

	events := event.NewEventService(store.Outbox())
	gate := verification.NewService(store, store.Profiles(), log)
	bookings := booking.NewService(booking.Deps{
		Tx:        store,
		Bookings:  store.Bookings(),
		Services:  store.Services(),
		Addresses: store.Addresses(),
		Ledger:    idempotency.NewService(store.Idempotency(), idempotency.DefaultTTL),
		Gateway:   payment.NewDummyGateway(),
		Events:    events,
		Metrics:   m,
		Logger:    log,
	})
	jobs := job.NewService(job.Deps{
		Tx:          store,
		Jobs:        store.Jobs(),
		Bookings:    store.Bookings(),
		Companies:   store.Companies(),
		Eligibility: gate,
		Events:      events,
		Metrics:     m,
		Logger:      log,
	})

	r := router.NewRouter(
		middleware.NewAuthMiddleware(auth.NewJWTService(jwtSecret), store.Companies()),
		router.Handlers{
			Health:   health.NewHandler(pingOK{}),
			Bookings: bookingHandler.NewHandler(bookings),
			Jobs:     jobHandler.NewHandler(jobs),
			Provider: providerHandler.NewHandler(gate),
			Admin:    adminHandler.NewHandler(gate),
			Webhooks: webhookHandler.NewHandler(bookings, payment.NewWebhookVerifier(webhookSecret), true, log),
			Metrics:  promHandler.New(reg).Handler(),
		},
		log, m,
		router.RouterConfig{},
	)
	r.Setup()
	a.engine = r.Engine()
	return a
}

type response struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *app) do(t *testing.T, method, path string, user uuid.UUID, role string, body interface{}, headers map[string]string) (int, response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != uuid.Nil {
		tok, err := auth.CreateToken(jwtSecret, user.String(), role, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var res response
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" && bytes.HasPrefix(w.Body.Bytes(), []byte("{")) {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	}
	return w.Code, res
}

type bookingView struct {
	ID              uuid.UUID `json:"id"`
	Status          string    `json:"status"`
	TotalPriceCents int64     `json:"total_price_cents"`
	PaymentIntentID *string   `json:"payment_intent_id"`
	Items           []struct {
		ServiceName string `json:"service_name"`
		PriceCents  int64  `json:"price_cents"`
	} `json:"items"`
	Job *struct {
		ID     uuid.UUID `json:"id"`
		Status string    `json:"status"`
	} `json:"job"`
}

type jobView struct {
	ID         uuid.UUID `json:"id"`
	Status     string    `json:"status"`
	BookingID  uuid.UUID `json:"booking_id"`
	Completion *struct {
		Notes     *string  `json:"notes"`
		PhotoURLs []string `json:"photo_urls"`
	} `json:"completion"`
}

func decodeData(t *testing.T, res response, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(res.Data, dst))
}

func (a *app) createBody() map[string]interface{} {
	return map[string]interface{}{
		"scheduled_at": "2026-05-01T09:00:00Z",
		"address":      "12 Main St",
		"items": []map[string]interface{}{
			{"service_id": a.standard.ID, "quantity": 2},
			{"service_id": a.deep.ID, "quantity": 1},
		},
	}
}

func TestBookingToCompletionFlow(t *testing.T) {
	a := newApp(t)
	customer, provider, admin := uuid.New(), uuid.New(), uuid.New()
	key := map[string]string{bookingHandler.HeaderIdempotencyKey: "  retry-1 "}

	code, res := a.do(t, http.MethodPost, "/api/v1/bookings", customer, "CUSTOMER", a.createBody(), key)
	require.Equal(t, http.StatusCreated, code, res.Error.Message)
	var created bookingView
	decodeData(t, res, &created)
	assert.Equal(t, "PENDING", created.Status)
	assert.EqualValues(t, 49000, created.TotalPriceCents)
	require.Len(t, created.Items, 2)
	assert.Equal(t, "Standard clean", created.Items[0].ServiceName)

	code, res = a.do(t, http.MethodPost, "/api/v1/bookings", customer, "CUSTOMER", a.createBody(), map[string]string{bookingHandler.HeaderIdempotencyKey: "retry-1"})
	require.Equal(t, http.StatusOK, code)
	var replayed bookingView
	decodeData(t, res, &replayed)
	assert.Equal(t, created.ID, replayed.ID)
	assert.Equal(t, 1, a.store.CountBookings())

	code, res = a.do(t, http.MethodPost, "/api/v1/jobs", provider, "PROVIDER", map[string]interface{}{"booking_id": created.ID}, nil)
	require.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "FORBIDDEN", res.Error.Code)

	code, res = a.do(t, http.MethodGet, "/api/v1/provider/eligibility", provider, "PROVIDER", nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"eligible":false,"verification_status":"PENDING"}`, string(res.Data))

	code, _ = a.do(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/providers/%s/verify", provider), admin, "PLATFORM_ADMIN", map[string]string{"status": "verified"}, nil)
	require.Equal(t, http.StatusOK, code)

	code, res = a.do(t, http.MethodGet, "/api/v1/jobs/available", provider, "PROVIDER", nil, nil)
	require.Equal(t, http.StatusOK, code)
	var available []bookingView
	decodeData(t, res, &available)
	require.Len(t, available, 1)
	assert.Nil(t, available[0].PaymentIntentID)

	code, res = a.do(t, http.MethodPost, "/api/v1/jobs", provider, "PROVIDER", map[string]interface{}{"booking_id": created.ID}, nil)
	require.Equal(t, http.StatusCreated, code, res.Error.Message)
	var picked jobView
	decodeData(t, res, &picked)
	assert.Equal(t, "PENDING", picked.Status)

	code, res = a.do(t, http.MethodPost, "/api/v1/jobs", provider, "PROVIDER", map[string]interface{}{"booking_id": created.ID}, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "CONFLICT", res.Error.Code)

	code, res = a.do(t, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%s/confirm-payment", created.ID), customer, "CUSTOMER", nil, nil)
	require.Equal(t, http.StatusOK, code)
	var confirmed bookingView
	decodeData(t, res, &confirmed)
	assert.Equal(t, "CONFIRMED", confirmed.Status)
	require.NotNil(t, confirmed.Job)
	assert.Equal(t, picked.ID, confirmed.Job.ID)

	jobPath := fmt.Sprintf("/api/v1/jobs/%s", picked.ID)
	code, _ = a.do(t, http.MethodPatch, jobPath, provider, "PROVIDER", map[string]interface{}{"status": "IN_PROGRESS"}, nil)
	require.Equal(t, http.StatusOK, code)

	code, res = a.do(t, http.MethodPatch, jobPath, provider, "PROVIDER", map[string]interface{}{
		"status":                "COMPLETED",
		"completion_notes":      "  all rooms done ",
		"completion_photo_urls": []string{"https://img/1.jpg", ""},
	}, nil)
	require.Equal(t, http.StatusOK, code, res.Error.Message)
	var completed jobView
	decodeData(t, res, &completed)
	assert.Equal(t, "COMPLETED", completed.Status)
	require.NotNil(t, completed.Completion)
	assert.Equal(t, "all rooms done", *completed.Completion.Notes)
	assert.Equal(t, []string{"https://img/1.jpg"}, completed.Completion.PhotoURLs)

	code, res = a.do(t, http.MethodPatch, jobPath, provider, "PROVIDER", map[string]interface{}{"status": "IN_PROGRESS"}, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "INVALID_STATE", res.Error.Code)

	code, res = a.do(t, http.MethodGet, fmt.Sprintf("/api/v1/bookings/%s", created.ID), customer, "CUSTOMER", nil, nil)
	require.Equal(t, http.StatusOK, code)
	var final bookingView
	decodeData(t, res, &final)
	assert.Equal(t, "CONFIRMED", final.Status)
	assert.Equal(t, "COMPLETED", final.Job.Status)

	assert.NotEmpty(t, a.store.OutboxEvents())
}

func TestCreateBookingValidation(t *testing.T) {
	a := newApp(t)
	customer := uuid.New()

	code, res := a.do(t, http.MethodPost, "/api/v1/bookings", customer, "CUSTOMER", map[string]interface{}{
		"scheduled_at": "2026-05-01T09:00:00Z",
		"address":      "12 Main St",
		"items":        []interface{}{},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", res.Error.Code)

	body := a.createBody()
	body["items"] = []map[string]interface{}{{"service_id": a.standard.ID, "quantity": 1 << 40}}
	code, res = a.do(t, http.MethodPost, "/api/v1/bookings", customer, "CUSTOMER", body, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, res.Error.Message, "items[0].quantity")

	body = a.createBody()
	body["scheduled_at"] = "next tuesday"
	code, res = a.do(t, http.MethodPost, "/api/v1/bookings", customer, "CUSTOMER", body, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", res.Error.Code)
	assert.Zero(t, a.store.CountBookings())
}

func TestBookingOwnershipAndRoles(t *testing.T) {
	a := newApp(t)
	owner, stranger := uuid.New(), uuid.New()

	code, res := a.do(t, http.MethodPost, "/api/v1/bookings", owner, "CUSTOMER", a.createBody(), nil)
	require.Equal(t, http.StatusCreated, code)
	var b bookingView
	decodeData(t, res, &b)

	code, res = a.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/bookings/%s/cancel", b.ID), stranger, "CUSTOMER", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", res.Error.Code)

	code, _ = a.do(t, http.MethodGet, "/api/v1/bookings", owner, "PROVIDER", nil, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = a.do(t, http.MethodGet, "/api/v1/bookings", uuid.Nil, "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = a.do(t, http.MethodGet, "/api/v1/bookings/not-a-uuid", owner, "CUSTOMER", nil, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, res = a.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/bookings/%s/cancel", b.ID), owner, "CUSTOMER", nil, nil)
	require.Equal(t, http.StatusOK, code)
	var cancelled bookingView
	decodeData(t, res, &cancelled)
	assert.Equal(t, "CANCELLED", cancelled.Status)

	code, res = a.do(t, http.MethodGet, "/api/v1/bookings", owner, "CUSTOMER", nil, nil)
	require.Equal(t, http.StatusOK, code)
	var list []bookingView
	decodeData(t, res, &list)
	assert.Len(t, list, 1)
}

func TestStripeWebhookConfirmsBooking(t *testing.T) {
	a := newApp(t)
	customer := uuid.New()

	code, res := a.do(t, http.MethodPost, "/api/v1/bookings", customer, "CUSTOMER", a.createBody(), nil)
	require.Equal(t, http.StatusCreated, code)
	var b bookingView
	decodeData(t, res, &b)
	require.NotNil(t, b.PaymentIntentID)

	payload := fmt.Sprintf(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":%q,"object":"payment_intent","status":"succeeded"}}}`, *b.PaymentIntentID)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    webhookSecret,
		Timestamp: time.Now(),
	})

	send := func(sig string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(signed.Payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(webhookHandler.HeaderStripeSignature, sig)
		w := httptest.NewRecorder()
		a.engine.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusBadRequest, send("t=1,v1=bogus"))
	assert.Equal(t, http.StatusOK, send(signed.Header))
	assert.Equal(t, http.StatusOK, send(signed.Header))

	code, res = a.do(t, http.MethodGet, fmt.Sprintf("/api/v1/bookings/%s", b.ID), customer, "CUSTOMER", nil, nil)
	require.Equal(t, http.StatusOK, code)
	var after bookingView
	decodeData(t, res, &after)
	assert.Equal(t, "CONFIRMED", after.Status)
}

func TestPublicEndpoints(t *testing.T) {
	a := newApp(t)

	code, res := a.do(t, http.MethodGet, "/api/v1/health/live", uuid.Nil, "", nil, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", res.Status)

	code, _ = a.do(t, http.MethodGet, "/api/v1/health/ready", uuid.Nil, "", nil, nil)
	assert.Equal(t, http.StatusOK, code)

	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
