package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lanwatch/lanwatch/internal/core/model"
	"github.com/lanwatch/lanwatch/internal/core/scanner"
)

// --- Devices --------------------------------------------------------

func (a *API) listDevices(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, a.engine.Devices())
}

func (a *API) getDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	d, ok := a.engine.Device(id)
	if !ok {
		Error(w, model.NewError(model.KindNotFound, "GetDevice", nil))
		return
	}
	JSON(w, http.StatusOK, d)
}

func (a *API) addDevice(w http.ResponseWriter, r *http.Request) {
	var d model.Device
	if err := decodeJSON(r, &d); err != nil {
		Error(w, model.NewError(model.KindInvalid, "AddDevice", err))
		return
	}
	created, err := a.engine.AddDevice(d)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusCreated, created)
}

func (a *API) updateDevice(w http.ResponseWriter, r *http.Request) {
	var d model.Device
	if err := decodeJSON(r, &d); err != nil {
		Error(w, model.NewError(model.KindInvalid, "UpdateDevice", err))
		return
	}
	d.ID = chi.URLParam(r, "id")
	updated, err := a.engine.UpdateDevice(d)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, updated)
}

func (a *API) deleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.engine.RemoveDevice(id); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (a *API) testConnectivity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sample, err := a.engine.TestConnectivity(r.Context(), id)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, sample)
}

func (a *API) collectNow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.engine.CollectNow(r.Context(), id); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"id": id, "status": "collected"})
}

// --- Metrics ----------------------------------------------------------

func (a *API) metricsOverview(w http.ResponseWriter, r *http.Request) {
	devices := a.engine.Devices()
	overview := struct {
		TotalDevices   int `json:"total_devices"`
		OnlineDevices  int `json:"online_devices"`
		OfflineDevices int `json:"offline_devices"`
		ActiveAlerts   int `json:"active_alerts"`
	}{}
	overview.TotalDevices = len(devices)
	for _, d := range devices {
		switch d.Status {
		case model.StatusOffline:
			overview.OfflineDevices++
		case model.StatusOnline, model.StatusWarning, model.StatusCritical:
			overview.OnlineDevices++
		}
	}
	overview.ActiveAlerts = len(a.engine.Alerts().Active(""))
	JSON(w, http.StatusOK, overview)
}

func (a *API) metricsForDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	types := []model.MetricType{model.MetricCPUUsage, model.MetricMemoryUsage, model.MetricDiskUsage}
	latest, err := a.engine.Store().LatestMetrics(id, types)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, latest)
}

func (a *API) metricsHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t := model.MetricType(r.URL.Query().Get("type"))
	if t == "" {
		t = model.MetricCPUUsage
	}
	windowHours := intQuery(r, "window_hours", 24)
	rows, err := a.engine.Store().MetricsHistory(id, t, windowHours)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, rows)
}

func (a *API) metricsAggregated(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t := model.MetricType(r.URL.Query().Get("type"))
	if t == "" {
		t = model.MetricCPUUsage
	}
	windowHours := intQuery(r, "window_hours", 24)
	bucketMinutes := intQuery(r, "bucket_minutes", 60)
	rows, err := a.engine.Store().AggregatedMetrics(id, t, windowHours, time.Duration(bucketMinutes)*time.Minute)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, rows)
}

type topUsageRow struct {
	DeviceID string  `json:"device_id"`
	Value    float64 `json:"value"`
}

func (a *API) metricsTopUsage(w http.ResponseWriter, r *http.Request) {
	t := model.MetricType(r.URL.Query().Get("type"))
	if t == "" {
		t = model.MetricCPUUsage
	}
	limit := intQuery(r, "limit", 5)

	var rows []topUsageRow
	for _, d := range a.engine.Devices() {
		latest, err := a.engine.Store().LatestMetrics(d.ID, []model.MetricType{t})
		if err != nil {
			continue
		}
		if s, ok := latest[t]; ok {
			rows = append(rows, topUsageRow{DeviceID: d.ID, Value: s.Value})
		}
	}
	insertionSortDesc(rows)
	if len(rows) > limit {
		rows = rows[:limit]
	}
	JSON(w, http.StatusOK, rows)
}

// insertionSortDesc sorts rows by Value descending; the candidate
// lists here are sized by device count, never large enough to need
// anything past an insertion sort.
func insertionSortDesc(rows []topUsageRow) {
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0 && rows[j].Value > rows[j-1].Value; j-- {
			rows[j], rows[j-1] = rows[j-1], rows[j]
		}
	}
}

func (a *API) metricsRealtime(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sample, err := a.engine.TestConnectivity(r.Context(), id)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, sample)
}

// --- Alerts -------------------------------------------------------------

func (a *API) listAlerts(w http.ResponseWriter, r *http.Request) {
	filter := model.AlertFilter{
		DeviceID: r.URL.Query().Get("device_id"),
		Type:     model.AlertType(r.URL.Query().Get("type")),
		Severity: model.AlertSeverity(r.URL.Query().Get("severity")),
	}
	limit := intQuery(r, "limit", 0)
	offset := intQuery(r, "offset", 0)
	rows, err := a.engine.Store().ListAlerts(filter, limit, offset)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, rows)
}

func (a *API) getAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	al, err := a.engine.Store().GetAlert(id)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, al)
}

func (a *API) ackAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	who := r.URL.Query().Get("who")
	al, err := a.engine.Alerts().Ack(id, who)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, al)
}

func (a *API) resolveAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	who := r.URL.Query().Get("who")
	al, err := a.engine.Alerts().Resolve(id, who)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, al)
}

func (a *API) deleteAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.engine.Alerts().Delete(id); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

type bulkAlertRequest struct {
	IDs []string `json:"ids"`
	Who string   `json:"who"`
}

func (a *API) bulkAckAlerts(w http.ResponseWriter, r *http.Request) {
	var req bulkAlertRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, model.NewError(model.KindInvalid, "BulkAck", err))
		return
	}
	results := make(map[string]string, len(req.IDs))
	for _, id := range req.IDs {
		if _, err := a.engine.Alerts().Ack(id, req.Who); err != nil {
			results[id] = err.Error()
		} else {
			results[id] = "acknowledged"
		}
	}
	JSON(w, http.StatusOK, results)
}

func (a *API) bulkResolveAlerts(w http.ResponseWriter, r *http.Request) {
	var req bulkAlertRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, model.NewError(model.KindInvalid, "BulkResolve", err))
		return
	}
	results := make(map[string]string, len(req.IDs))
	for _, id := range req.IDs {
		if _, err := a.engine.Alerts().Resolve(id, req.Who); err != nil {
			results[id] = err.Error()
		} else {
			results[id] = "resolved"
		}
	}
	JSON(w, http.StatusOK, results)
}

func (a *API) alertStats(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, a.engine.Alerts().Stats())
}

// --- Scanner --------------------------------------------------------

type scanRequest struct {
	Range         string `json:"range"`
	TimeoutMS     int    `json:"timeout_ms"`
	Concurrent    int    `json:"concurrent"`
	IncludePorts  bool   `json:"include_ports"`
	PortTimeoutMS int    `json:"port_timeout_ms"`
}

func (a *API) startScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, model.NewError(model.KindInvalid, "StartScan", err))
		return
	}
	opts := scanner.Options{
		TimeoutMS:     req.TimeoutMS,
		Concurrent:    req.Concurrent,
		IncludePorts:  req.IncludePorts,
		PortTimeoutMS: req.PortTimeoutMS,
	}
	results, err := a.engine.ScanNetwork(r.Context(), req.Range, opts)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, results)
}

func (a *API) stopScan(w http.ResponseWriter, r *http.Request) {
	a.engine.StopScan()
	JSON(w, http.StatusOK, map[string]string{"status": "stopping"})
}

func (a *API) scanStatus(w http.ResponseWriter, r *http.Request) {
	inProgress, state, last := a.engine.ScanStatus()
	JSON(w, http.StatusOK, map[string]any{
		"scan_in_progress": inProgress,
		"state":            state,
		"last_scan":        last,
	})
}

func (a *API) scanHistory(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", 20)
	rows, err := a.engine.ScanHistory(limit)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, rows)
}

func (a *API) validateRange(w http.ResponseWriter, r *http.Request) {
	spec := r.URL.Query().Get("range")
	JSON(w, http.StatusOK, scanner.ValidateRange(spec))
}

type pingRequest struct {
	IP        string `json:"ip"`
	TimeoutMS int    `json:"timeout_ms"`
}

func (a *API) pingHost(w http.ResponseWriter, r *http.Request) {
	var req pingRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, model.NewError(model.KindInvalid, "PingHost", err))
		return
	}
	opts := scanner.DefaultOptions()
	if req.TimeoutMS > 0 {
		opts.TimeoutMS = req.TimeoutMS
	}
	results, err := a.engine.ScanNetwork(r.Context(), req.IP, opts)
	if err != nil {
		Error(w, err)
		return
	}
	alive := len(results) > 0
	JSON(w, http.StatusOK, map[string]any{"ip": req.IP, "alive": alive})
}

func (a *API) portScanHost(w http.ResponseWriter, r *http.Request) {
	var req pingRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, model.NewError(model.KindInvalid, "PortScanHost", err))
		return
	}
	opts := scanner.DefaultOptions()
	opts.IncludePorts = true
	results, err := a.engine.ScanNetwork(r.Context(), req.IP, opts)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, results)
}

func (a *API) scanPresets(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, []map[string]any{
		{"name": "quick", "concurrent": 100, "timeout_ms": 1000, "include_ports": false},
		{"name": "standard", "concurrent": 50, "timeout_ms": 2000, "include_ports": false},
		{"name": "thorough", "concurrent": 20, "timeout_ms": 3000, "include_ports": true},
	})
}

// --- Configuration / monitoring / health -------------------------------

func (a *API) getConfig(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, a.engine.Config())
}

func (a *API) setConfig(w http.ResponseWriter, r *http.Request) {
	var cfg map[string]string
	if err := decodeJSON(r, &cfg); err != nil {
		Error(w, model.NewError(model.KindInvalid, "SetConfig", err))
		return
	}
	if err := a.engine.UpdateConfig(r.Context(), cfg); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, a.engine.Config())
}

func (a *API) startMonitoring(w http.ResponseWriter, r *http.Request) {
	a.engine.StartMonitoring()
	JSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (a *API) stopMonitoring(w http.ResponseWriter, r *http.Request) {
	a.engine.StopMonitoring()
	JSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, a.engine.Health())
}

func (a *API) maintenance(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.Maintenance(); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

func intQuery(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
