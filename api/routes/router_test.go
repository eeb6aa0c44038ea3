package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keystock/keystock-backend/internal/accessories"
	"github.com/keystock/keystock-backend/internal/alerts"
	"github.com/keystock/keystock-backend/internal/auth"
	"github.com/keystock/keystock-backend/internal/usage"
	"github.com/keystock/keystock-backend/internal/users"
	"github.com/keystock/keystock-backend/pkg/config"
	"github.com/keystock/keystock-backend/pkg/db/dbtest"
	"github.com/keystock/keystock-backend/pkg/enums"
	"github.com/keystock/keystock-backend/pkg/logger"
	"github.com/keystock/keystock-backend/pkg/metrics"
)

var (
	fastArgon = config.PasswordConfig{ArgonMemoryKB: 64, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32}
	shopZone  = time.FixedZone("shop", -6*60*60)
)

type testServer struct {
	handler http.Handler
	users   users.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		App:      config.AppConfig{Env: "test"},
		JWT:      config.JWTConfig{Secret: "router-secret", Issuer: "keystock", ExpirationMinutes: 60},
		Password: fastArgon,
		Ledger:   config.LedgerConfig{MaxUsageQty: 5},
		Seed:     config.SeedConfig{AdminUsername: "Admin", AdminPassword: "admin-pass"},
	}
	logg := logger.Nop()
	client := dbtest.New(t)
	registry := prometheus.NewRegistry()
	stock := metrics.NewStockMetrics(registry)

	userRepo := users.NewRepository(client.DB())
	_, _, err := users.EnsureDefaultAdmin(context.Background(), userRepo, cfg.Seed, cfg.Password)
	require.NoError(t, err)
	userSvc, err := users.NewService(userRepo, client, cfg.Password)
	require.NoError(t, err)

	authSvc, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	require.NoError(t, err)

	accRepo := accessories.NewRepository(client.DB())
	accSvc, err := accessories.NewService(accRepo, client)
	require.NoError(t, err)
	evaluator, err := alerts.NewEvaluator(accRepo, stock)
	require.NoError(t, err)

	reconciler, err := usage.NewReconciler(accRepo)
	require.NoError(t, err)
	usageSvc, err := usage.NewService(usage.ServiceParams{
		Repo:        usage.NewRepository(client.DB()),
		Reconciler:  reconciler,
		Tx:          client,
		Metrics:     stock,
		Logger:      logg,
		Location:    shopZone,
		MaxQuantity: cfg.Ledger.MaxUsageQty,
	})
	require.NoError(t, err)

	handler := NewRouter(Deps{
		Config:      cfg,
		Logger:      logg,
		Location:    shopZone,
		DB:          client,
		Registry:    registry,
		HTTPMetrics: metrics.NewHTTPMetrics(registry),
		Auth:        authSvc,
		Accessories: accSvc,
		Alerts:      evaluator,
		Usage:       usageSvc,
		Users:       userSvc,
	})
	return &testServer{handler: handler, users: userSvc}
}

func (s *testServer) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/auth/login", "", `{"username":"`+username+`","password":"`+password+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var payload auth.LoginResponse
	decode(t, rec, &payload)
	require.NotEmpty(t, payload.AccessToken)
	return payload.AccessToken
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	envelope := struct {
		Data any `json:"data"`
	}{Data: dest}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Error.Code
}

func TestHealthRoutes(t *testing.T) {
	srv := newTestServer(t)

	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/health/live", "", "").Code)
	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/health/ready", "", "").Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/api/v1/accessories", "/api/v1/usage", "/api/v1/users", "/api/v1/auth/me"} {
		rec := srv.do(t, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestLedgerFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.login(t, "Admin", "admin-pass")

	rec := srv.do(t, http.MethodPost, "/api/v1/accessories", admin, `{"name":"Llave TX","quantity":5,"min_quantity":2}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var accessory accessories.AccessoryDTO
	decode(t, rec, &accessory)

	rec = srv.do(t, http.MethodPost, "/api/v1/usage", admin,
		`{"accessory_id":"`+accessory.ID.String()+`","brand":"Nissan","model":"Versa","year":2019,"quantity":4}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var result usage.ResultDTO
	decode(t, rec, &result)
	assert.True(t, result.Alert)
	assert.Equal(t, 1, result.Accessory.Quantity)

	rec = srv.do(t, http.MethodPost, "/api/v1/usage", admin,
		`{"accessory_id":"`+accessory.ID.String()+`","brand":"Nissan","model":"Versa","year":2019,"quantity":2}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INSUFFICIENT_STOCK", errorCode(t, rec))

	rec = srv.do(t, http.MethodGet, "/api/v1/accessories/alerts", admin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var low []accessories.AccessoryDTO
	decode(t, rec, &low)
	require.Len(t, low, 1)
	assert.Equal(t, accessory.ID, low[0].ID)

	rec = srv.do(t, http.MethodDelete, "/api/v1/usage/"+result.Record.ID.String(), admin, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var deleted usage.ResultDTO
	decode(t, rec, &deleted)
	assert.Equal(t, 5, deleted.Accessory.Quantity)
	assert.False(t, deleted.Alert)

	rec = srv.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "keystock_http_request_duration_seconds")
}

func TestAdminRoutesRejectUsers(t *testing.T) {
	srv := newTestServer(t)
	_, err := srv.users.Create(context.Background(), users.CreateInput{Username: "maria", Password: "maria-pass", Role: enums.RoleUser})
	require.NoError(t, err)
	token := srv.login(t, "maria", "maria-pass")

	rec := srv.do(t, http.MethodPost, "/api/v1/accessories", token, `{"name":"Llave TX","quantity":5}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, http.MethodPut, "/api/v1/usage/"+uuid.NewString(), token, `{"quantity":1}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/v1/users", token, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/v1/accessories", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/v1/auth/me", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var me users.UserDTO
	decode(t, rec, &me)
	assert.Equal(t, "maria", me.Username)
}

func TestRefreshUnavailableWithoutSessions(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.login(t, "Admin", "admin-pass")

	rec := srv.do(t, http.MethodPost, "/api/v1/auth/refresh", "", `{"access_token":"`+admin+`","refresh_token":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
