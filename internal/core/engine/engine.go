// Package engine is the monitoring orchestrator: it owns the device
// registry, drives the periodic polling loop, dispatches scans,
// applies thresholds, and cross-wires the store, probes, scanner,
// alert engine, and broadcaster into one pipeline. Each tick snapshots
// the registry and fans polls out onto a bounded worker pool; a tick
// that has not finished when the next would fire is coalesced, never
// queued.
package engine

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lanwatch/lanwatch/internal/core/alerts"
	"github.com/lanwatch/lanwatch/internal/core/broadcast"
	"github.com/lanwatch/lanwatch/internal/core/config"
	"github.com/lanwatch/lanwatch/internal/core/hostprobe"
	"github.com/lanwatch/lanwatch/internal/core/model"
	"github.com/lanwatch/lanwatch/internal/core/remoteprobe"
	"github.com/lanwatch/lanwatch/internal/core/scanner"
	"github.com/lanwatch/lanwatch/internal/core/store"
	"github.com/lanwatch/lanwatch/internal/core/telemetry"
)

// discoveryCommunities is the ordered credential guess list tried
// against a newly scanned host.
var discoveryCommunities = []string{"public", "private", "monitoring"}

const defaultConcurrentPolls = 16

// hostProber is the minimal host-probe dependency the Engine needs; it
// is satisfied by *hostprobe.Probe and, in tests, by a stub that
// returns a fixed Sample without touching the host OS.
type hostProber interface {
	Collect(ctx context.Context) model.Sample
}

// remoteProber is the minimal remote-probe dependency the Engine
// needs; it is satisfied by *remoteprobe.Probe and, in tests, by a stub.
type remoteProber interface {
	CollectAll(ctx context.Context, ip, community string) model.Sample
	Close()
}

// Engine drives the whole monitoring pipeline.
type Engine struct {
	logger *zap.SugaredLogger

	store   *store.Store
	host    hostProber
	remote  remoteProber
	scan    *scanner.Scanner
	alerts  *alerts.Engine
	bus     *broadcast.Broadcaster
	metrics *telemetry.Metrics

	cfgMu sync.RWMutex
	cfg   config.Runtime

	regMu    sync.RWMutex
	registry map[string]model.Device // keyed by device id

	tickerMu   sync.Mutex
	ticker     *time.Ticker
	stopTicker chan struct{}
	tickerDone chan struct{}

	scanMu         sync.Mutex
	scanInProgress bool
	tickInFlight   bool
	monitoringOn   bool

	lastScanTime time.Time

	shutdownOnce sync.Once
	cancel       context.CancelFunc
}

// Options configure New.
type Options struct {
	SNMPTimeout time.Duration
	Metrics     *telemetry.Metrics
}

// New builds an Engine with its component dependencies already
// constructed; Initialize performs the startup sequence.
func New(logger *zap.SugaredLogger, st *store.Store, opts Options) *Engine {
	snmpTimeout := opts.SNMPTimeout
	if snmpTimeout <= 0 {
		snmpTimeout = 5 * time.Second
	}
	bus := broadcast.New(logger)
	e := &Engine{
		logger:   logger,
		store:    st,
		host:     hostprobe.New(logger),
		remote:   remoteprobe.New(logger, snmpTimeout),
		scan:     scanner.New(logger),
		bus:      bus,
		metrics:  opts.Metrics,
		registry: make(map[string]model.Device),
	}
	e.alerts = alerts.New(logger, st, bus)
	return e
}

// Broadcaster exposes the Engine's Broadcaster for transport adapters
// (REST/websocket) to subscribe to.
func (e *Engine) Broadcaster() *broadcast.Broadcaster { return e.bus }

// Alerts exposes the alert engine for read-mostly control-surface calls.
func (e *Engine) Alerts() *alerts.Engine { return e.alerts }

// Store exposes the underlying Store for read-mostly control-surface
// calls (metrics history/aggregation/overview).
func (e *Engine) Store() *store.Store { return e.store }

// Initialize loads configuration and devices, ensures the localhost
// device exists, hydrates the active alert set, starts the poll ticker
// and the daily maintenance job, and runs one monitoring cycle
// immediately. The order is load-bearing: configuration must be live
// before the first tick evaluates thresholds.
func (e *Engine) Initialize(ctx context.Context) error {
	kv, err := e.store.GetConfig("")
	if err != nil {
		return model.NewError(model.KindFatal, "Initialize", err)
	}
	rt := config.FromKV(kv, nil, func(msg string) { e.logger.Warnw("configuration fallback", "reason", msg) })
	e.cfgMu.Lock()
	e.cfg = rt
	e.cfgMu.Unlock()

	devices, err := e.store.ListDevices()
	if err != nil {
		return model.NewError(model.KindFatal, "Initialize", err)
	}
	e.regMu.Lock()
	for _, d := range devices {
		e.registry[d.ID] = d
	}
	e.regMu.Unlock()

	if err := e.ensureLocalhost(); err != nil {
		return model.NewError(model.KindFatal, "Initialize", err)
	}

	alertRows, err := e.store.ListAlerts(model.AlertFilter{}, 0, 0)
	if err != nil {
		return model.NewError(model.KindFatal, "Initialize", err)
	}
	e.alerts.Load(alertRows)

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.scanMu.Lock()
	e.monitoringOn = true
	e.scanMu.Unlock()

	e.startTicker(runCtx)
	go e.dailyMaintenance(runCtx)

	e.Tick(runCtx)
	return nil
}

func (e *Engine) ensureLocalhost() error {
	e.regMu.RLock()
	_, ok := e.registry[model.LocalDeviceID]
	e.regMu.RUnlock()
	if ok {
		return nil
	}

	ip := "127.0.0.1"
	sample := e.host.Collect(context.Background())
	for _, group := range sample.Network {
		if primary, found := hostprobe.Primary(group); found {
			if host, _, err := net.ParseCIDR(primary.CIDR); err == nil {
				ip = host.String()
			} else if addr := net.ParseIP(strings.SplitN(primary.CIDR, "/", 2)[0]); addr != nil {
				ip = addr.String()
			}
			break
		}
	}

	now := time.Now().UTC()
	d := model.Device{
		ID:        model.LocalDeviceID,
		IP:        ip,
		Hostname:  sample.System.Hostname,
		Community: model.LocalCommunity,
		Status:    model.StatusOnline,
		FirstSeen: now,
		LastSeen:  now,
	}
	if err := e.store.UpsertDevice(d); err != nil {
		return err
	}
	e.regMu.Lock()
	e.registry[d.ID] = d
	e.regMu.Unlock()
	return nil
}

func (e *Engine) startTicker(ctx context.Context) {
	e.tickerMu.Lock()
	defer e.tickerMu.Unlock()

	interval := e.currentConfig().RefreshInterval
	e.ticker = time.NewTicker(interval)
	e.stopTicker = make(chan struct{})
	e.tickerDone = make(chan struct{})

	go func() {
		defer close(e.tickerDone)
		for {
			select {
			case <-e.ticker.C:
				e.Tick(ctx)
			case <-e.stopTicker:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (e *Engine) restartTicker(ctx context.Context) {
	e.tickerMu.Lock()
	if e.ticker != nil {
		e.ticker.Stop()
		close(e.stopTicker)
	}
	e.tickerMu.Unlock()
	if e.tickerDone != nil {
		<-e.tickerDone
	}
	e.startTicker(ctx)
}

// dailyMaintenance invokes Cleanup at 2 AM local time every day.
func (e *Engine) dailyMaintenance(ctx context.Context) {
	for {
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(), 2, 0, 0, 0, now.Location())
		if !next.After(now) {
			next = next.Add(24 * time.Hour)
		}
		select {
		case <-time.After(time.Until(next)):
			if err := e.store.Cleanup(e.currentConfig().MaxHistoryDays); err != nil {
				e.logger.Errorw("maintenance cleanup failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) currentConfig() config.Runtime {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg
}

// snapshot copies the registry under a short-duration lock so poll
// tasks never hold it while probing.
func (e *Engine) snapshot() []model.Device {
	e.regMu.RLock()
	defer e.regMu.RUnlock()
	out := make([]model.Device, 0, len(e.registry))
	for _, d := range e.registry {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Tick runs one monitoring cycle. A tick already in flight, or a scan
// in progress, causes this call to return without doing work.
func (e *Engine) Tick(parent context.Context) {
	e.scanMu.Lock()
	if e.scanInProgress || !e.monitoringOn {
		e.scanMu.Unlock()
		return
	}
	e.scanMu.Unlock()

	if !e.tryBeginTick() {
		return
	}
	defer e.endTick()

	start := time.Now()
	cfg := e.currentConfig()
	ctx, cancel := context.WithTimeout(parent, cfg.RefreshInterval*2)
	defer cancel()
	ctx, span := telemetry.StartSpan(ctx, "engine.Tick")
	defer span.End()

	devices := e.snapshot()
	pool := defaultConcurrentPolls
	if len(devices) < pool {
		pool = len(devices)
	}
	if pool <= 0 {
		pool = 1
	}

	sem := make(chan struct{}, pool)
	var wg sync.WaitGroup
	for _, d := range devices {
		d := d
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			e.pollDevice(ctx, d, cfg)
		}()
	}
	wg.Wait()

	elapsed := time.Since(start)
	e.metrics.ObserveTick(elapsed)
	e.metrics.SetActiveAlerts(len(e.alerts.Active("")))
	e.metrics.SetDevicesTracked(len(devices))

	e.bus.Publish("monitoring_update", map[string]any{
		"devices":   e.snapshot(),
		"cycle_ms":  elapsed.Milliseconds(),
		"timestamp": time.Now().UTC(),
	})
}

func (e *Engine) tryBeginTick() bool {
	e.scanMu.Lock()
	defer e.scanMu.Unlock()
	if e.tickInFlight {
		return false
	}
	e.tickInFlight = true
	return true
}

func (e *Engine) endTick() {
	e.scanMu.Lock()
	e.tickInFlight = false
	e.scanMu.Unlock()
}

func (e *Engine) pollDevice(ctx context.Context, d model.Device, cfg config.Runtime) {
	var sample model.Sample
	if d.IsLocal() {
		sample = e.host.Collect(ctx)
	} else {
		community := d.Community
		if community == "" {
			community = cfg.DefaultCommunity
		}
		sample = e.remote.CollectAll(ctx, d.IP, community)
	}

	if !sample.Reachable && !d.IsLocal() {
		e.metrics.RecordPollFailure(d.ID)
		e.markOffline(d)
		return
	}

	_, storeSpan := telemetry.StartSpan(ctx, "store.persistSample")
	defer storeSpan.End()

	now := time.Now().UTC()
	d.Status = model.StatusOnline
	d.LastSeen = now
	if sample.System.Hostname != "" {
		d.Hostname = sample.System.Hostname
	}
	if sample.System.Description != "" {
		d.Description = sample.System.Description
	}
	if err := e.store.UpsertDevice(d); err != nil {
		e.logger.Warnw("upsert device failed", "device", d.ID, "error", err)
	}

	info := sample.SystemInfo
	info.DeviceID = d.ID
	info.Timestamp = now
	if err := e.store.InsertSystemInfo(info); err != nil {
		e.logger.Warnw("insert system_info failed", "device", d.ID, "error", err)
	}

	metrics := sampleMetrics(d.ID, sample, now)
	if len(metrics) > 0 {
		if err := e.store.InsertMetrics(d.ID, metrics); err != nil {
			e.logger.Warnw("insert metrics failed", "device", d.ID, "error", err)
		}
	}

	for i := range sample.Interfaces {
		sample.Interfaces[i].DeviceID = d.ID
		sample.Interfaces[i].Timestamp = now
	}
	if err := e.store.ReplaceInterfaces(d.ID, sample.Interfaces); err != nil {
		e.logger.Warnw("replace interfaces failed", "device", d.ID, "error", err)
	}

	// A successful poll means the device is reachable again; clear any
	// stale offline alert before evaluating the live thresholds.
	e.alerts.AutoResolve(d.ID, model.AlertOffline, 0, config.Thresholds{})

	e.checkThresholds(d, sample, cfg)

	d.Status = e.alerts.DeviceStatus(d.ID)
	if err := e.store.UpsertDevice(d); err != nil {
		e.logger.Warnw("status update failed", "device", d.ID, "error", err)
	}
	e.regMu.Lock()
	e.registry[d.ID] = d
	e.regMu.Unlock()

	e.bus.Publish("host_online", d)
}

func sampleMetrics(deviceID string, s model.Sample, ts time.Time) []model.MetricSample {
	var out []model.MetricSample
	add := func(t model.MetricType, v float64, unit model.MetricUnit) {
		out = append(out, model.MetricSample{DeviceID: deviceID, MetricType: t, Value: v, Unit: unit, Timestamp: ts})
	}
	if s.CPU.UsagePercent > 0 || len(s.Errors) == 0 {
		add(model.MetricCPUUsage, s.CPU.UsagePercent, model.UnitPercent)
	}
	if s.Memory.TotalBytes > 0 {
		add(model.MetricMemoryUsage, s.Memory.UsagePercent, model.UnitPercent)
		add(model.MetricMemoryTotal, float64(s.Memory.TotalBytes), model.UnitBytes)
		add(model.MetricMemoryUsed, float64(s.Memory.UsedBytes), model.UnitBytes)
	}
	if s.Disk.TotalBytes > 0 {
		add(model.MetricDiskUsage, s.Disk.UsagePercent, model.UnitPercent)
		add(model.MetricDiskTotal, float64(s.Disk.TotalBytes), model.UnitBytes)
		add(model.MetricDiskUsed, float64(s.Disk.UsedBytes), model.UnitBytes)
	}
	return out
}

func (e *Engine) markOffline(d model.Device) {
	d.Status = model.StatusOffline
	d.LastSeen = time.Now().UTC()
	if err := e.store.UpsertDevice(d); err != nil {
		e.logger.Warnw("mark offline failed", "device", d.ID, "error", err)
	}
	e.regMu.Lock()
	e.registry[d.ID] = d
	e.regMu.Unlock()

	_, _ = e.alerts.Create(alerts.CreateParams{
		DeviceID: d.ID,
		DeviceIP: d.IP,
		Type:     model.AlertOffline,
		Severity: model.SeverityCritical,
		Message:  fmt.Sprintf("device %s (%s) is unreachable", d.Hostname, d.IP),
	})
	e.bus.Publish("host_offline", d)
}

// checkThresholds evaluates cpu/memory/disk usage against the
// configured thresholds. A metric the sample has no reading for is
// skipped entirely — neither alerting nor auto-resolving on it.
func (e *Engine) checkThresholds(d model.Device, s model.Sample, cfg config.Runtime) {
	if s.CPU.UsagePercent > 0 || len(s.Errors) == 0 {
		e.evaluate(d, model.AlertCPU, s.CPU.UsagePercent, cfg.CPU)
	}
	if s.Memory.TotalBytes > 0 {
		e.evaluate(d, model.AlertMemory, s.Memory.UsagePercent, cfg.Memory)
	}
	if s.Disk.TotalBytes > 0 {
		e.evaluate(d, model.AlertDisk, s.Disk.UsagePercent, cfg.Disk)
	}
}

func (e *Engine) evaluate(d model.Device, t model.AlertType, usage float64, th config.Thresholds) {
	switch {
	case usage >= th.Critical:
		_, _ = e.alerts.Create(alerts.CreateParams{
			DeviceID: d.ID,
			DeviceIP: d.IP,
			Type:     t,
			Severity: model.SeverityCritical,
			Message:  fmt.Sprintf("%s usage %.0f%% on %s exceeds critical threshold %.0f%%", t, usage, d.Hostname, th.Critical),
		})
	case usage >= th.Warning:
		_, _ = e.alerts.Create(alerts.CreateParams{
			DeviceID: d.ID,
			DeviceIP: d.IP,
			Type:     t,
			Severity: model.SeverityWarning,
			Message:  fmt.Sprintf("%s usage %.0f%% on %s exceeds warning threshold %.0f%%", t, usage, d.Hostname, th.Warning),
		})
	default:
		e.alerts.AutoResolve(d.ID, t, usage, th)
	}
}

// ScanNetwork delegates to the Scanner, enriching each discovered host
// as its event arrives and recording a ScanRecord on completion.
// Devices registered during the sweep go into a staging list and are
// merged into the registry in one step once the sweep ends, so a
// half-finished scan never leaks partial registry state.
func (e *Engine) ScanNetwork(ctx context.Context, rng string, opts scanner.Options) ([]scanner.HostResult, error) {
	e.scanMu.Lock()
	if e.scanInProgress {
		e.scanMu.Unlock()
		return nil, model.NewError(model.KindConflict, "ScanNetwork", fmt.Errorf("scan already in progress"))
	}
	e.scanInProgress = true
	e.scanMu.Unlock()

	ctx, span := telemetry.StartSpan(ctx, "engine.ScanNetwork")
	defer span.End()

	defer func() {
		e.scanMu.Lock()
		e.scanInProgress = false
		e.lastScanTime = time.Now().UTC()
		e.scanMu.Unlock()
	}()

	totalIPs := 0
	if ips, err := scanner.ParseRange(rng); err == nil {
		totalIPs = len(ips)
	}

	var (
		stagedMu sync.Mutex
		staged   []model.Device
	)

	start := time.Now()
	results, err := e.scan.Sweep(ctx, rng, opts, func(ev scanner.Event) {
		e.bus.Publish(ev.Type, ev)
		if ev.Type == "host_discovered" && ev.Host != nil {
			if d, ok := e.registerDiscoveredHost(ctx, *ev.Host); ok {
				stagedMu.Lock()
				staged = append(staged, d)
				stagedMu.Unlock()
			}
		}
	})
	if err != nil {
		return nil, err
	}
	e.metrics.ObserveScan(time.Since(start))

	e.regMu.Lock()
	for _, d := range staged {
		e.registry[d.ID] = d
	}
	e.regMu.Unlock()

	rec := model.ScanRecord{
		ScanRange:       rng,
		TotalIPs:        totalIPs,
		DiscoveredHosts: len(results),
		DurationMS:      time.Since(start).Milliseconds(),
		StartedAt:       start,
		CompletedAt:     time.Now().UTC(),
	}
	if err := e.store.AppendScanHistory(rec); err != nil {
		e.logger.Warnw("append scan history failed", "error", err)
	}
	return results, nil
}

// registerDiscoveredHost persists a discovered host without touching
// the registry; the caller decides when the registry sees it.
func (e *Engine) registerDiscoveredHost(ctx context.Context, host scanner.HostResult) (model.Device, bool) {
	if existing, err := e.store.GetDeviceByIP(host.IP); err == nil {
		existing.Status = model.StatusOnline
		existing.LastSeen = time.Now().UTC()
		if err := e.store.UpsertDevice(existing); err != nil {
			e.logger.Warnw("mark discovered device online failed", "ip", host.IP, "error", err)
		}
		return existing, true
	}

	now := time.Now().UTC()
	d := model.Device{
		ID:        host.IP,
		IP:        host.IP,
		Hostname:  host.IP,
		Community: "public",
		Status:    model.StatusOnline,
		FirstSeen: now,
		LastSeen:  now,
	}

	for _, community := range discoveryCommunities {
		sample := e.remote.CollectAll(ctx, host.IP, community)
		if sample.Reachable {
			d.Community = community
			if sample.System.Hostname != "" {
				d.Hostname = sample.System.Hostname
			}
			d.Description = sample.System.Description
			break
		}
	}

	if err := e.store.UpsertDevice(d); err != nil {
		e.logger.Warnw("register discovered device failed", "ip", host.IP, "error", err)
		return model.Device{}, false
	}
	return d, true
}

// ProcessDiscoveredHost enriches and registers one discovered host
// immediately, outside any sweep.
func (e *Engine) ProcessDiscoveredHost(ctx context.Context, host scanner.HostResult) {
	d, ok := e.registerDiscoveredHost(ctx, host)
	if !ok {
		return
	}
	e.regMu.Lock()
	e.registry[d.ID] = d
	e.regMu.Unlock()
}

// UpdateConfig validates and persists cfg, then reloads the live
// Runtime, restarting the ticker if refresh_interval changed.
func (e *Engine) UpdateConfig(ctx context.Context, cfg map[string]string) error {
	for k, v := range cfg {
		if !config.Valid(k, v) {
			return model.NewError(model.KindInvalid, "UpdateConfig", fmt.Errorf("invalid value %q for key %q", v, k))
		}
	}
	for k, v := range cfg {
		if err := e.store.SetConfig(k, v, ""); err != nil {
			return model.NewError(model.KindFatal, "UpdateConfig", err)
		}
	}

	kv, err := e.store.GetConfig("")
	if err != nil {
		return model.NewError(model.KindFatal, "UpdateConfig", err)
	}
	prior := e.currentConfig()
	rt := config.FromKV(kv, &prior, func(msg string) { e.logger.Warnw("configuration fallback", "reason", msg) })

	changed := rt.RefreshInterval != prior.RefreshInterval
	e.cfgMu.Lock()
	e.cfg = rt
	e.cfgMu.Unlock()

	if changed {
		e.restartTicker(ctx)
	}
	return nil
}

// Shutdown stops the ticker, cancels in-flight tasks, and closes every
// component with held resources, in that order.
func (e *Engine) Shutdown() {
	e.shutdownOnce.Do(func() {
		e.tickerMu.Lock()
		if e.ticker != nil {
			e.ticker.Stop()
			close(e.stopTicker)
		}
		e.tickerMu.Unlock()
		if e.cancel != nil {
			e.cancel()
		}
		e.scan.Stop()
		e.remote.Close()
		if err := e.store.Close(); err != nil {
			e.logger.Warnw("store close failed", "error", err)
		}
	})
}

// StartMonitoring resumes ticks (idempotent).
func (e *Engine) StartMonitoring() {
	e.scanMu.Lock()
	e.monitoringOn = true
	e.scanMu.Unlock()
}

// StopMonitoring pauses ticks without tearing down components
// (idempotent); Shutdown is the irreversible teardown path.
func (e *Engine) StopMonitoring() {
	e.scanMu.Lock()
	e.monitoringOn = false
	e.scanMu.Unlock()
}

// MonitoringActive reports whether ticks are currently running.
func (e *Engine) MonitoringActive() bool {
	e.scanMu.Lock()
	defer e.scanMu.Unlock()
	return e.monitoringOn
}

// ScanStatus reports whether a scan is currently running and when the
// last one finished.
func (e *Engine) ScanStatus() (inProgress bool, state scanner.State, lastScan time.Time) {
	e.scanMu.Lock()
	defer e.scanMu.Unlock()
	return e.scanInProgress, e.scan.State(), e.lastScanTime
}

// StopScan requests the in-progress sweep end at the next batch boundary.
func (e *Engine) StopScan() { e.scan.Stop() }

// ScanHistory returns the most recent scan records.
func (e *Engine) ScanHistory(limit int) ([]model.ScanRecord, error) {
	return e.store.ListScanHistory(limit)
}

// Maintenance runs Store.Cleanup immediately with the current
// max_history_days setting.
func (e *Engine) Maintenance() error {
	return e.store.Cleanup(e.currentConfig().MaxHistoryDays)
}

// Health reports a coarse liveness summary for the /health endpoint.
func (e *Engine) Health() map[string]any {
	inProgress, scanState, lastScan := e.ScanStatus()
	out := map[string]any{
		"status":           "ok",
		"monitoring":       e.MonitoringActive(),
		"devices_tracked":  len(e.snapshot()),
		"scan_in_progress": inProgress,
		"scan_state":       scanState,
		"last_scan":        lastScan,
	}
	if st, err := e.store.Stats(); err == nil {
		out["storage"] = st
	}
	return out
}

// Config returns the live configuration as a key/value map.
func (e *Engine) Config() map[string]string {
	rt := e.currentConfig()
	return map[string]string{
		config.KeyRefreshInterval:  fmt.Sprintf("%d", int(rt.RefreshInterval/time.Second)),
		config.KeyDefaultCommunity: rt.DefaultCommunity,
		config.KeyScanTimeout:      fmt.Sprintf("%d", int(rt.ScanTimeout/time.Millisecond)),
		config.KeySNMPTimeout:      fmt.Sprintf("%d", int(rt.SNMPTimeout/time.Millisecond)),
		config.KeyMaxHistoryDays:   fmt.Sprintf("%d", rt.MaxHistoryDays),
		config.KeyCPUWarning:       fmt.Sprintf("%.0f", rt.CPU.Warning),
		config.KeyCPUCritical:      fmt.Sprintf("%.0f", rt.CPU.Critical),
		config.KeyMemoryWarning:    fmt.Sprintf("%.0f", rt.Memory.Warning),
		config.KeyMemoryCritical:   fmt.Sprintf("%.0f", rt.Memory.Critical),
		config.KeyDiskWarning:      fmt.Sprintf("%.0f", rt.Disk.Warning),
		config.KeyDiskCritical:     fmt.Sprintf("%.0f", rt.Disk.Critical),
	}
}

// AddDevice registers a new device; Invalid if the IP is already in
// use by another device.
func (e *Engine) AddDevice(d model.Device) (model.Device, error) {
	if _, err := e.store.GetDeviceByIP(d.IP); err == nil {
		return model.Device{}, model.NewError(model.KindInvalid, "AddDevice", fmt.Errorf("ip %s already registered", d.IP))
	}
	now := time.Now().UTC()
	d.FirstSeen = now
	d.LastSeen = now
	if d.Status == "" {
		d.Status = model.StatusUnknown
	}
	if err := e.store.UpsertDevice(d); err != nil {
		return model.Device{}, err
	}
	e.regMu.Lock()
	e.registry[d.ID] = d
	e.regMu.Unlock()
	return d, nil
}

// UpdateDevice overwrites the mutable fields of an existing device.
func (e *Engine) UpdateDevice(d model.Device) (model.Device, error) {
	existing, err := e.store.GetDevice(d.ID)
	if err != nil {
		return model.Device{}, err
	}
	existing.IP = d.IP
	existing.Hostname = d.Hostname
	existing.Description = d.Description
	existing.Location = d.Location
	existing.Contact = d.Contact
	existing.Community = d.Community
	if err := e.store.UpsertDevice(existing); err != nil {
		return model.Device{}, err
	}
	e.regMu.Lock()
	e.registry[existing.ID] = existing
	e.regMu.Unlock()
	return existing, nil
}

// RemoveDevice deletes a device and its dependent rows.
func (e *Engine) RemoveDevice(id string) error {
	if err := e.store.DeleteDevice(id); err != nil {
		return err
	}
	e.regMu.Lock()
	delete(e.registry, id)
	e.regMu.Unlock()
	return nil
}

// TestConnectivity probes a device on demand without mutating Store
// state beyond what a normal poll does.
func (e *Engine) TestConnectivity(ctx context.Context, id string) (model.Sample, error) {
	d, ok := e.Device(id)
	if !ok {
		return model.Sample{}, model.NewError(model.KindNotFound, "TestConnectivity", fmt.Errorf("device %s", id))
	}
	if d.IsLocal() {
		return e.host.Collect(ctx), nil
	}
	community := d.Community
	if community == "" {
		community = e.currentConfig().DefaultCommunity
	}
	return e.remote.CollectAll(ctx, d.IP, community), nil
}

// CollectNow runs one poll for a single device immediately, outside
// the regular tick cadence.
func (e *Engine) CollectNow(ctx context.Context, id string) error {
	d, ok := e.Device(id)
	if !ok {
		return model.NewError(model.KindNotFound, "CollectNow", fmt.Errorf("device %s", id))
	}
	e.pollDevice(ctx, d, e.currentConfig())
	return nil
}

// Devices returns a snapshot of the current registry.
func (e *Engine) Devices() []model.Device { return e.snapshot() }

// Device returns one registry entry.
func (e *Engine) Device(id string) (model.Device, bool) {
	e.regMu.RLock()
	defer e.regMu.RUnlock()
	d, ok := e.registry[id]
	return d, ok
}
