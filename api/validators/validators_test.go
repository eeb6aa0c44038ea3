package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/keystock/keystock-backend/pkg/errors"
)

type sampleBody struct {
	Name     string `json:"name" validate:"required,max=8"`
	Quantity int    `json:"quantity" validate:"gte=1,lte=5"`
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"","quantity":9}`))
	var body sampleBody

	err := DecodeJSONBody(req, &body)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "is required", details["name"])
	assert.Equal(t, "must be less than or equal to 5", details["quantity"])
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"cut","quantity":1,"extra":true}`))
	var body sampleBody

	err := DecodeJSONBody(req, &body)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=abc", nil)
	_, err := ParseQueryInt(req, "limit", 10, 1, 100)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	got, err := ParseQueryInt(req, "limit", 10, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 10, got)
}

func TestParseQueryStringTrimsAndCaps(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?q=%20%20llavero%20%20", nil)
	assert.Equal(t, "llave", ParseQueryString(req, "q", 5))
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id.String())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	got, err := ParseUUIDParam(req, "id")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	bad := chi.NewRouteContext()
	bad.URLParams.Add("id", "nope")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, bad))
	_, err = ParseUUIDParam(req, "id")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}
