package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lanwatch/lanwatch/internal/core/engine"
	"github.com/lanwatch/lanwatch/internal/core/model"
	"github.com/lanwatch/lanwatch/internal/core/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "lanwatch.db"))
	require.NoError(t, err)

	logger := zap.NewNop().Sugar()
	eng := engine.New(logger, st, engine.Options{})
	require.NoError(t, eng.Initialize(context.Background()))
	t.Cleanup(eng.Shutdown)

	srv := httptest.NewServer(NewRouter(eng, logger, nil))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	var body map[string]any
	code := getJSON(t, srv.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["monitoring"])
}

func TestListDevicesIncludesLocalhost(t *testing.T) {
	srv := newTestServer(t)

	var devices []model.Device
	code := getJSON(t, srv.URL+"/api/v1/devices", &devices)
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, devices, 1)
	assert.Equal(t, model.LocalDeviceID, devices[0].ID)
}

func TestGetUnknownDeviceIs404(t *testing.T) {
	srv := newTestServer(t)
	code := getJSON(t, srv.URL+"/api/v1/devices/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAddDeviceThenDuplicateIPRejected(t *testing.T) {
	srv := newTestServer(t)

	body := `{"id":"sw1","ip":"10.9.9.9","community":"public"}`
	resp, err := http.Post(srv.URL+"/api/v1/devices", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	dup := `{"id":"sw2","ip":"10.9.9.9","community":"public"}`
	resp, err = http.Post(srv.URL+"/api/v1/devices", "application/json", strings.NewReader(dup))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestValidateRangeEndpoint(t *testing.T) {
	srv := newTestServer(t)

	var v struct {
		Valid    bool `json:"valid"`
		TotalIPs int  `json:"total_ips"`
	}
	code := getJSON(t, srv.URL+"/api/v1/scan/validate?range=10.0.0.0/24", &v)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, v.Valid)
	assert.Equal(t, 254, v.TotalIPs)
}

func TestSetConfigRejectsOutOfRangeValue(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/config", strings.NewReader(`{"refresh_interval":"999999"}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAlertStatsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	var stats struct {
		Total int `json:"total"`
	}
	code := getJSON(t, srv.URL+"/api/v1/alerts/stats", &stats)
	assert.Equal(t, http.StatusOK, code)
	assert.GreaterOrEqual(t, stats.Total, 0)
}

func TestRequestIDHeaderIsSet(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
}
