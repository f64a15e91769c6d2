package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"farm-monitor-agent/config"
	"farm-monitor-agent/internal/auth"
	"farm-monitor-agent/internal/client"
	"farm-monitor-agent/internal/model"
	"farm-monitor-agent/internal/stores"
	"farm-monitor-agent/internal/token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router  *gin.Engine
	handler *Handler
	db      *gorm.DB
}

// newTestEnv builds the router against a stub upstream and seeds the device
// and grain bin caches from it.
func newTestEnv(t *testing.T, webpushOptions *webpush.Options) *testEnv {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /device/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": 2, "device_id": "FM-002", "name": "South Yard", "connected": false},
			{"id": 1, "device_id": "FM-001", "name": "North Yard", "connected": true,
			 "last_updated": "2024-02-19T04:07:04"}
		]`))
	})
	mux.HandleFunc("GET /device/1/updates/latest", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 900, "device": 1, "device_temp": 21.5}`))
	})
	mux.HandleFunc("GET /grainbin/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id": 7, "device": 1, "name": "Bin 7"}]`))
	})
	mux.HandleFunc("GET /grainbin/7/updates/latest", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": 910, "grainbin": 7, "sensor_name": "28.456", "temperature": 12.0},
			{"id": 911, "grainbin": 7, "sensor_name": "28.123", "temperature": 11.5}
		]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	tokens := token.NewStore(nil)
	c := client.NewWithBaseURL(srv.URL+"/", 5*time.Second, tokens)
	mgr := auth.NewManager(tokens, c)

	devices := stores.NewDeviceStore(c)
	deviceUpdates := stores.NewDeviceUpdateStore(c)
	grainbins := stores.NewGrainbinStore(c)
	grainbinUpdates := stores.NewGrainbinUpdateStore(c)

	ctx := t.Context()
	require.NoError(t, devices.FetchDevices(ctx))
	require.NoError(t, deviceUpdates.FetchLatestDeviceUpdate(ctx, 1))
	require.NoError(t, grainbins.FetchGrainbins(ctx))
	require.NoError(t, grainbinUpdates.FetchLatestGrainbinUpdates(ctx, 7))

	dsn := fmt.Sprintf("file:api_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.PushSubscription{}, &model.SubscribedDevice{}))

	handler := NewHandler(db, mgr, devices, deviceUpdates, grainbins, grainbinUpdates, webpushOptions)
	router := NewRouter(config.ServerConfig{
		RateLimitPerSec: 1000,
		RateLimitBurst:  1000,
		CacheTTLSeconds: 1,
	}, handler)

	return &testEnv{router: router, handler: handler, db: db}
}

func (e *testEnv) request(method, target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	e.router.ServeHTTP(w, req)
	return w
}

func TestGetDevices(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.request(http.MethodGet, "/api/devices", "")
	require.Equal(t, http.StatusOK, w.Code)

	var devices []DeviceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &devices))
	require.Len(t, devices, 2)
	assert.Equal(t, 1, devices[0].ID)
	assert.Equal(t, "FM-001", devices[0].DeviceID)
	require.NotNil(t, devices[0].LastUpdated)
	assert.Equal(t, time.Date(2024, 2, 19, 4, 7, 4, 0, time.UTC), devices[0].LastUpdated.UTC())
	assert.Nil(t, devices[1].LastUpdated)
}

func TestGetDeviceNotFound(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.request(http.MethodGet, "/api/devices/99", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.request(http.MethodGet, "/api/devices/bogus", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetDeviceUpdatesServesCache(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.request(http.MethodGet, "/api/devices/1/updates", "")
	require.Equal(t, http.StatusOK, w.Code)

	var updates []model.DeviceUpdate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updates))
	require.Len(t, updates, 1)
	assert.Equal(t, 21.5, updates[0].DeviceTemp)
}

func TestGetGrainbinUpdatesSortedBySensor(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.request(http.MethodGet, "/api/grainbins/7/updates", "")
	require.Equal(t, http.StatusOK, w.Code)

	var updates []model.GrainbinUpdate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updates))
	require.Len(t, updates, 2)
	assert.Equal(t, "28.123", updates[0].SensorName)
	assert.Equal(t, "28.456", updates[1].SensorName)
}

func TestGetAuthStatusLoggedOut(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.request(http.MethodGet, "/api/auth/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	var status AuthStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.False(t, status.LoggedIn)
	assert.Equal(t, token.DefaultErrorMessage, status.ErrorMessage)
	assert.Nil(t, status.AccessTokenExpiry)
}

func TestAuthRetryClearsError(t *testing.T) {
	env := newTestEnv(t, nil)
	env.handler.auth.Tokens().SetErrorMessage(client.ServerTimeoutMessage)

	w := env.request(http.MethodPost, "/api/auth/retry", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, token.DefaultErrorMessage, env.handler.auth.Tokens().ErrorMessage())
}

func TestSubscriptionLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)

	endpoint := "https://push.example.com/sub-1"
	body := fmt.Sprintf(`{"endpoint": %q, "p256dh": "key", "auth": "secret", "subscribed_devices": [1, 2]}`, endpoint)
	w := env.request(http.MethodPut, "/api/subscriptions", body)
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.request(http.MethodGet, "/api/subscriptions?endpoint="+endpoint, "")
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		SubscribedDevices []int `json:"subscribed_devices"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.ElementsMatch(t, []int{1, 2}, got.SubscribedDevices)

	// Replacing the subscription swaps the device set.
	body = fmt.Sprintf(`{"endpoint": %q, "p256dh": "key", "auth": "secret", "subscribed_devices": [3]}`, endpoint)
	w = env.request(http.MethodPut, "/api/subscriptions", body)
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.request(http.MethodGet, "/api/subscriptions?endpoint="+endpoint, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.ElementsMatch(t, []int{3}, got.SubscribedDevices)

	w = env.request(http.MethodDelete, "/api/subscriptions", fmt.Sprintf(`{"endpoint": %q}`, endpoint))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.request(http.MethodGet, "/api/subscriptions?endpoint="+endpoint, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPutSubscriptionValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.request(http.MethodPut, "/api/subscriptions", `{"endpoint": ""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetVAPIDPublicKey(t *testing.T) {
	env := newTestEnv(t, &webpush.Options{VAPIDPublicKey: "test-public-key"})

	w := env.request(http.MethodGet, "/api/vapid_public_key", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key": "test-public-key"}`, w.Body.String())

	env = newTestEnv(t, nil)
	w = env.request(http.MethodGet, "/api/vapid_public_key", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
