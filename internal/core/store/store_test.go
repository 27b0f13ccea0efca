package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanwatch/lanwatch/internal/core/config"
	"github.com/lanwatch/lanwatch/internal/core/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lanwatch.db")
	st, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestOpenSeedsDefaultsOnFirstOpen(t *testing.T) {
	st := newTestStore(t)
	cfg, err := st.GetConfig("")
	require.NoError(t, err)
	assert.Equal(t, config.Defaults[config.KeyRefreshInterval], cfg[config.KeyRefreshInterval])
}

func TestOpenSeededWinsOverDefaultsOnlyOnFirstOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lanwatch.db")
	seeds := map[string]string{config.KeyRefreshInterval: "42"}

	st, err := OpenSeeded(path, seeds)
	require.NoError(t, err)
	cfg, err := st.GetConfig(config.KeyRefreshInterval)
	require.NoError(t, err)
	assert.Equal(t, "42", cfg[config.KeyRefreshInterval])
	require.NoError(t, st.SetConfig(config.KeyRefreshInterval, "99", ""))
	st.Close()

	// Reopening with different seeds must not override the persisted value.
	st2, err := OpenSeeded(path, map[string]string{config.KeyRefreshInterval: "7"})
	require.NoError(t, err)
	defer st2.Close()
	cfg2, err := st2.GetConfig(config.KeyRefreshInterval)
	require.NoError(t, err)
	assert.Equal(t, "99", cfg2[config.KeyRefreshInterval])
}

func TestUpsertDevicePreservesFirstSeen(t *testing.T) {
	st := newTestStore(t)
	d := model.Device{ID: "dev1", IP: "10.0.0.5", Hostname: "box1"}
	require.NoError(t, st.UpsertDevice(d))

	got, err := st.GetDevice("dev1")
	require.NoError(t, err)
	firstSeen := got.FirstSeen
	assert.False(t, firstSeen.IsZero())

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, st.UpsertDevice(model.Device{ID: "dev1", IP: "10.0.0.5", Hostname: "box1-renamed"}))

	got2, err := st.GetDevice("dev1")
	require.NoError(t, err)
	assert.Equal(t, firstSeen, got2.FirstSeen)
	assert.Equal(t, "box1-renamed", got2.Hostname)
	assert.True(t, got2.LastSeen.After(got.LastSeen) || got2.LastSeen.Equal(got.LastSeen))
}

func TestGetDeviceByIP(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.UpsertDevice(model.Device{ID: "dev1", IP: "10.0.0.5"}))

	got, err := st.GetDeviceByIP("10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, "dev1", got.ID)

	_, err = st.GetDeviceByIP("10.0.0.99")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestDeleteDeviceCascades(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.UpsertDevice(model.Device{ID: "dev1", IP: "10.0.0.5"}))
	require.NoError(t, st.InsertMetric("dev1", model.MetricCPUUsage, 42, model.UnitPercent))
	require.NoError(t, st.InsertSystemInfo(model.SystemInfo{DeviceID: "dev1"}))

	require.NoError(t, st.DeleteDevice("dev1"))

	_, err := st.GetDevice("dev1")
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = st.GetDeviceByIP("10.0.0.5")
	assert.ErrorIs(t, err, model.ErrNotFound)

	history, err := st.MetricsHistory("dev1", model.MetricCPUUsage, 24)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestInsertMetricsAndLatest(t *testing.T) {
	st := newTestStore(t)
	now := time.Now().UTC()
	samples := []model.MetricSample{
		{MetricType: model.MetricCPUUsage, Value: 10, Unit: model.UnitPercent, Timestamp: now.Add(-time.Minute)},
		{MetricType: model.MetricCPUUsage, Value: 20, Unit: model.UnitPercent, Timestamp: now},
	}
	require.NoError(t, st.InsertMetrics("dev1", samples))

	latest, err := st.LatestMetrics("dev1", []model.MetricType{model.MetricCPUUsage})
	require.NoError(t, err)
	assert.Equal(t, float64(20), latest[model.MetricCPUUsage].Value)
}

func TestMetricsHistoryRespectsWindow(t *testing.T) {
	st := newTestStore(t)
	now := time.Now().UTC()
	samples := []model.MetricSample{
		{MetricType: model.MetricCPUUsage, Value: 5, Timestamp: now.Add(-48 * time.Hour)},
		{MetricType: model.MetricCPUUsage, Value: 10, Timestamp: now},
	}
	require.NoError(t, st.InsertMetrics("dev1", samples))

	history, err := st.MetricsHistory("dev1", model.MetricCPUUsage, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, float64(10), history[0].Value)
}

func TestAggregatedMetricsBucketsAvgMinMax(t *testing.T) {
	st := newTestStore(t)
	base := time.Now().UTC().Truncate(time.Hour)
	samples := []model.MetricSample{
		{MetricType: model.MetricCPUUsage, Value: 10, Timestamp: base.Add(time.Minute)},
		{MetricType: model.MetricCPUUsage, Value: 30, Timestamp: base.Add(2 * time.Minute)},
	}
	require.NoError(t, st.InsertMetrics("dev1", samples))

	buckets, err := st.AggregatedMetrics("dev1", model.MetricCPUUsage, 24, time.Hour)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, float64(20), buckets[0].Avg)
	assert.Equal(t, float64(10), buckets[0].Min)
	assert.Equal(t, float64(30), buckets[0].Max)
	assert.Equal(t, 2, buckets[0].SampleCount)
}

func TestInsertAlertRejectsDuplicateID(t *testing.T) {
	st := newTestStore(t)
	a := model.Alert{ID: "a1", DeviceID: "dev1", Type: model.AlertCPU, Severity: model.SeverityWarning, CreatedAt: time.Now()}
	require.NoError(t, st.InsertAlert(a))

	err := st.InsertAlert(a)
	assert.ErrorIs(t, err, model.ErrConflict)
}

func TestAckAndResolveAlertLifecycle(t *testing.T) {
	st := newTestStore(t)
	a := model.Alert{ID: "a1", DeviceID: "dev1", Type: model.AlertCPU, Severity: model.SeverityWarning, CreatedAt: time.Now()}
	require.NoError(t, st.InsertAlert(a))

	require.NoError(t, st.AckAlert("a1", "operator"))
	err := st.AckAlert("a1", "operator")
	assert.ErrorIs(t, err, model.ErrConflict)

	require.NoError(t, st.ResolveAlert("a1"))
	err = st.ResolveAlert("a1")
	assert.ErrorIs(t, err, model.ErrConflict)

	got, err := st.GetAlert("a1")
	require.NoError(t, err)
	assert.True(t, got.Acknowledged)
	assert.NotNil(t, got.ResolvedAt)
}

func TestListAlertsFiltersAndPaginates(t *testing.T) {
	st := newTestStore(t)
	for i := 0; i < 3; i++ {
		a := model.Alert{
			ID:        string(rune('a' + i)),
			DeviceID:  "dev1",
			Type:      model.AlertCPU,
			Severity:  model.SeverityWarning,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, st.InsertAlert(a))
	}

	all, err := st.ListAlerts(model.AlertFilter{DeviceID: "dev1"}, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// newest first
	assert.True(t, all[0].CreatedAt.After(all[1].CreatedAt) || all[0].CreatedAt.Equal(all[1].CreatedAt))

	page, err := st.ListAlerts(model.AlertFilter{DeviceID: "dev1"}, 1, 1)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestCleanupPurgesOldMetrics(t *testing.T) {
	st := newTestStore(t)
	old := time.Now().Add(-40 * 24 * time.Hour)
	require.NoError(t, st.InsertMetrics("dev1", []model.MetricSample{
		{MetricType: model.MetricCPUUsage, Value: 1, Timestamp: old},
	}))

	stBefore, err := st.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stBefore.Metrics)

	require.NoError(t, st.Cleanup(30))

	history, err := st.MetricsHistory("dev1", model.MetricCPUUsage, 24*365)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestCleanupLeavesRecentlyResolvedAlerts(t *testing.T) {
	st := newTestStore(t)
	a := model.Alert{ID: "a1", DeviceID: "dev1", Type: model.AlertCPU, Severity: model.SeverityWarning, CreatedAt: time.Now()}
	require.NoError(t, st.InsertAlert(a))
	require.NoError(t, st.ResolveAlert("a1"))

	require.NoError(t, st.Cleanup(30))

	got, err := st.GetAlert("a1")
	require.NoError(t, err)
	assert.NotNil(t, got.ResolvedAt)
}
