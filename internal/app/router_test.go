package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"communityhub/internal/config"
	"communityhub/internal/database"
	jwtsvc "communityhub/internal/pkg/jwt"
	"communityhub/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type E2ETestSuite struct {
	router        *gin.Engine
	managerToken  string
	residentToken string
	otherToken    string
}

type TestResponse struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   *ErrorDetail           `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func setupTestSuite(t *testing.T) *E2ETestSuite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Connect(fmt.Sprintf("file:e2e_%s?mode=memory&cache=shared", name))
	require.NoError(t, err, "Failed to connect to test database")

	catalog := config.DefaultCatalog()
	catalog.Resources = []config.ResourceConfig{
		{ID: "canteen", Name: "Canteen", Kind: config.KindFood, Capacity: 10},
		{ID: "shuttle", Name: "Shuttle", Kind: config.KindBus, Capacity: 2},
	}

	hub := realtime.NewHub(nil, nil)
	t.Cleanup(hub.Close)

	svc, err := Bootstrap(context.Background(), db, catalog, hub, nil)
	require.NoError(t, err)

	tokens := jwtsvc.New("test_secret_key_32_characters_min", 24*time.Hour)
	manager, err := tokens.GenerateToken(100, jwtsvc.RoleManager)
	require.NoError(t, err)
	resident, err := tokens.GenerateToken(1, jwtsvc.RoleResident)
	require.NoError(t, err)
	other, err := tokens.GenerateToken(2, jwtsvc.RoleResident)
	require.NoError(t, err)

	return &E2ETestSuite{
		router:        NewRouter(RouterDeps{DB: db, Services: svc, Hub: hub, Tokens: tokens}),
		managerToken:  manager,
		residentToken: resident,
		otherToken:    other,
	}
}

func (s *E2ETestSuite) makeRequest(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) *TestResponse {
	t.Helper()
	var resp TestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "body: %s", w.Body.String())
	return &resp
}

func bookingID(t *testing.T, resp *TestResponse) string {
	t.Helper()
	b, ok := resp.Data["booking"].(map[string]interface{})
	require.True(t, ok, "missing booking in %+v", resp.Data)
	id, _ := b["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestFlow1_ReservationToLoyalty(t *testing.T) {
	suite := setupTestSuite(t)
	var id string

	t.Run("POST /bookings", func(t *testing.T) {
		w := suite.makeRequest(http.MethodPost, "/api/v1/bookings", map[string]interface{}{
			"resource_id": "shuttle",
			"units":       2,
			"amount":      2_100_000,
			"discount":    100_000,
		}, suite.residentToken)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		id = bookingID(t, parseResponse(t, w))
	})

	t.Run("shuttle is full", func(t *testing.T) {
		w := suite.makeRequest(http.MethodPost, "/api/v1/bookings", map[string]interface{}{
			"resource_id": "shuttle",
			"units":       1,
		}, suite.otherToken)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "CAPACITY_EXCEEDED", parseResponse(t, w).Error.Code)

		w = suite.makeRequest(http.MethodGet, "/api/v1/resources/shuttle/availability", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		avail := parseResponse(t, w).Data["availability"].(map[string]interface{})
		assert.Equal(t, float64(0), avail["available"])
	})

	t.Run("manager walks the reservation", func(t *testing.T) {
		for _, st := range []string{"approved", "ready", "completed"} {
			w := suite.makeRequest(http.MethodPatch, "/api/v1/manage/bookings/"+id+"/status",
				map[string]string{"status": st}, suite.managerToken)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		}
	})

	t.Run("GET /loyalty/me", func(t *testing.T) {
		w := suite.makeRequest(http.MethodGet, "/api/v1/loyalty/me", nil, suite.residentToken)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		st := parseResponse(t, w).Data["loyalty"].(map[string]interface{})
		assert.Equal(t, float64(2_000_000), st["cumulative_spend"])
		assert.Equal(t, float64(100), st["points"])
		tier := st["tier"].(map[string]interface{})
		assert.Equal(t, "silver", tier["name"])
	})

	t.Run("GET /manage/reports/revenue", func(t *testing.T) {
		w := suite.makeRequest(http.MethodGet, "/api/v1/manage/reports/revenue", nil, suite.managerToken)
		require.Equal(t, http.StatusOK, w.Code)
		rev := parseResponse(t, w).Data["revenue"].(map[string]interface{})
		assert.Equal(t, float64(2_000_000), rev["revenue"])
	})
}

func TestFlow2_Authorization(t *testing.T) {
	suite := setupTestSuite(t)

	t.Run("no token", func(t *testing.T) {
		w := suite.makeRequest(http.MethodGet, "/api/v1/bookings/me", nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("resident on manager routes", func(t *testing.T) {
		for _, path := range []string{
			"/api/v1/manage/bookings",
			"/api/v1/manage/loyalty/1",
			"/api/v1/manage/reports/status-counts",
		} {
			w := suite.makeRequest(http.MethodGet, path, nil, suite.residentToken)
			assert.Equal(t, http.StatusForbidden, w.Code, path)
		}
	})

	t.Run("other resident cannot cancel", func(t *testing.T) {
		w := suite.makeRequest(http.MethodPost, "/api/v1/bookings", map[string]interface{}{
			"resource_id": "canteen", "units": 1, "amount": 30_000,
		}, suite.residentToken)
		require.Equal(t, http.StatusCreated, w.Code)
		id := bookingID(t, parseResponse(t, w))

		w = suite.makeRequest(http.MethodPatch, "/api/v1/bookings/"+id+"/cancel", nil, suite.otherToken)
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = suite.makeRequest(http.MethodPatch, "/api/v1/bookings/"+id+"/cancel", nil, suite.managerToken)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("loyalty for unknown resident", func(t *testing.T) {
		w := suite.makeRequest(http.MethodGet, "/api/v1/manage/loyalty/99", nil, suite.managerToken)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestFlow3_Operations(t *testing.T) {
	suite := setupTestSuite(t)

	w := suite.makeRequest(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = suite.makeRequest(http.MethodPost, "/api/v1/bookings", map[string]interface{}{
		"resource_id": "canteen", "units": 1,
	}, suite.residentToken)
	require.Equal(t, http.StatusCreated, w.Code)

	w = suite.makeRequest(http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "community_bookings_created_total")

	w = suite.makeRequest(http.MethodGet, "/api/v1/loyalty/tiers", nil, suite.residentToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, parseResponse(t, w).Data["tiers"], 4)
}
