// Package store is the durable storage layer for devices, metrics,
// system info, interfaces, alerts, scan history, and configuration,
// backed by an embedded bbolt database: one bucket per kind, JSON
// values, and a write path serialized by bbolt's single-writer model.
package store

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/lanwatch/lanwatch/internal/core/config"
	"github.com/lanwatch/lanwatch/internal/core/model"
)

var (
	bucketDevices     = []byte("devices")
	bucketDevicesByIP = []byte("devices_by_ip")
	bucketMetrics     = []byte("metrics")
	bucketSystemInfo  = []byte("system_info")
	bucketInterfaces  = []byte("network_interfaces")
	bucketAlerts      = []byte("alerts")
	bucketScanHistory = []byte("scan_history")
	bucketConfig      = []byte("configuration")
)

var allBuckets = [][]byte{
	bucketDevices, bucketDevicesByIP, bucketMetrics, bucketSystemInfo,
	bucketInterfaces, bucketAlerts, bucketScanHistory, bucketConfig,
}

// Store is the persistence boundary the engine drives on its hot path.
// Reads may run concurrently; writes are serialized by bbolt's single
// writer transaction.
type Store struct {
	db *bbolt.DB
	mu sync.Mutex // orders the handful of read-then-write operations (ack/resolve/upsert)
}

// Open opens (creating if absent) the bbolt database at path, creates
// any missing buckets, and seeds default configuration keys on first
// open.
func Open(path string) (*Store, error) {
	return OpenSeeded(path, config.Defaults)
}

// OpenSeeded is Open but seeds first-open configuration from seeds
// instead of the hardcoded defaults. Callers pass in bootstrap values
// resolved from environment/file; any key already present in the
// configuration bucket is left untouched, so a second Open against the
// same file never re-applies the seed.
func OpenSeeded(path string, seeds map[string]string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	s := &Store{db: db}
	if err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		cfg := tx.Bucket(bucketConfig)
		for k, v := range config.Defaults {
			if seeded, ok := seeds[k]; ok {
				v = seeded
			}
			if cfg.Get([]byte(k)) == nil {
				if err := cfg.Put([]byte(k), []byte(v)); err != nil {
					return err
				}
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init store: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("store: marshal: %v", err))
	}
	return b
}

// --- Devices -----------------------------------------------------------

// UpsertDevice inserts or replaces a device by id. It refreshes
// LastSeen and preserves the existing FirstSeen, never overwriting it.
func (s *Store) UpsertDevice(d model.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	d.LastSeen = now

	return s.db.Update(func(tx *bbolt.Tx) error {
		devices := tx.Bucket(bucketDevices)
		byIP := tx.Bucket(bucketDevicesByIP)

		if existing := devices.Get([]byte(d.ID)); existing != nil {
			var prev model.Device
			if err := json.Unmarshal(existing, &prev); err == nil {
				if !prev.FirstSeen.IsZero() {
					d.FirstSeen = prev.FirstSeen
				}
				if prev.IP != d.IP && prev.IP != "" {
					byIP.Delete([]byte(prev.IP))
				}
			}
		}
		if d.FirstSeen.IsZero() {
			d.FirstSeen = now
		}
		if err := devices.Put([]byte(d.ID), mustJSON(d)); err != nil {
			return err
		}
		if d.IP != "" {
			if err := byIP.Put([]byte(d.IP), []byte(d.ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetDevice returns the device with id, or a NotFound error.
func (s *Store) GetDevice(id string) (model.Device, error) {
	var d model.Device
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketDevices).Get([]byte(id))
		if raw == nil {
			return model.NewError(model.KindNotFound, "GetDevice", fmt.Errorf("device %s", id))
		}
		return json.Unmarshal(raw, &d)
	})
	return d, err
}

// GetDeviceByIP returns the device registered under ip.
func (s *Store) GetDeviceByIP(ip string) (model.Device, error) {
	var id string
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketDevicesByIP).Get([]byte(ip))
		if raw == nil {
			return model.NewError(model.KindNotFound, "GetDeviceByIP", fmt.Errorf("ip %s", ip))
		}
		id = string(raw)
		return nil
	})
	if err != nil {
		return model.Device{}, err
	}
	return s.GetDevice(id)
}

// ListDevices returns every registered device, sorted by id.
func (s *Store) ListDevices() ([]model.Device, error) {
	var out []model.Device
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDevices).ForEach(func(k, v []byte) error {
			var d model.Device
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			out = append(out, d)
			return nil
		})
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

// DeleteDevice removes a device and cascades its metrics, system info,
// interfaces, and alerts.
func (s *Store) DeleteDevice(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bbolt.Tx) error {
		devices := tx.Bucket(bucketDevices)
		raw := devices.Get([]byte(id))
		if raw == nil {
			return model.NewError(model.KindNotFound, "DeleteDevice", fmt.Errorf("device %s", id))
		}
		var d model.Device
		if err := json.Unmarshal(raw, &d); err == nil && d.IP != "" {
			tx.Bucket(bucketDevicesByIP).Delete([]byte(d.IP))
		}
		if err := devices.Delete([]byte(id)); err != nil {
			return err
		}
		deletePrefix(tx.Bucket(bucketMetrics), []byte(id+"\x00"))
		deletePrefix(tx.Bucket(bucketSystemInfo), []byte(id+"\x00"))
		deletePrefix(tx.Bucket(bucketInterfaces), []byte(id+"\x00"))

		alerts := tx.Bucket(bucketAlerts)
		var toDelete [][]byte
		alerts.ForEach(func(k, v []byte) error {
			var a model.Alert
			if json.Unmarshal(v, &a) == nil && a.DeviceID == id {
				toDelete = append(toDelete, append([]byte{}, k...))
			}
			return nil
		})
		for _, k := range toDelete {
			if err := alerts.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func deletePrefix(b *bbolt.Bucket, prefix []byte) {
	c := b.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		c.Delete()
	}
}

// --- Metrics -------------------------------------------------------------

func metricKey(deviceID string, t model.MetricType, ts time.Time) []byte {
	var buf bytes.Buffer
	buf.WriteString(deviceID)
	buf.WriteByte(0)
	buf.WriteString(string(t))
	buf.WriteByte(0)
	var tbuf [8]byte
	binary.BigEndian.PutUint64(tbuf[:], uint64(ts.UnixNano()))
	buf.Write(tbuf[:])
	return buf.Bytes()
}

// InsertMetric writes one metric row.
func (s *Store) InsertMetric(deviceID string, t model.MetricType, value float64, unit model.MetricUnit) error {
	return s.InsertMetrics(deviceID, []model.MetricSample{{
		DeviceID: deviceID, MetricType: t, Value: value, Unit: unit, Timestamp: time.Now().UTC(),
	}})
}

// InsertMetrics atomically writes a batch of samples for one device/tick.
func (s *Store) InsertMetrics(deviceID string, samples []model.MetricSample) error {
	if len(samples) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMetrics)
		for _, sample := range samples {
			sample.DeviceID = deviceID
			if sample.Timestamp.IsZero() {
				sample.Timestamp = time.Now().UTC()
			}
			key := metricKey(deviceID, sample.MetricType, sample.Timestamp)
			if err := b.Put(key, mustJSON(sample)); err != nil {
				return err
			}
		}
		return nil
	})
}

// LatestMetrics returns the most recent row per requested type (or all
// known types if types is empty) for deviceID.
func (s *Store) LatestMetrics(deviceID string, types []model.MetricType) (map[model.MetricType]model.MetricSample, error) {
	out := make(map[model.MetricType]model.MetricSample)
	want := make(map[model.MetricType]bool, len(types))
	for _, t := range types {
		want[t] = true
	}
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketMetrics).Cursor()
		prefix := []byte(deviceID + "\x00")
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var sample model.MetricSample
			if err := json.Unmarshal(v, &sample); err != nil {
				return err
			}
			if len(types) > 0 && !want[sample.MetricType] {
				continue
			}
			if prev, ok := out[sample.MetricType]; !ok || sample.Timestamp.After(prev.Timestamp) {
				out[sample.MetricType] = sample
			}
		}
		return nil
	})
	return out, err
}

// MetricsHistory returns samples of type t for deviceID within the
// last windowHours, ordered ascending by timestamp.
func (s *Store) MetricsHistory(deviceID string, t model.MetricType, windowHours int) ([]model.MetricSample, error) {
	var out []model.MetricSample
	cutoff := time.Now().Add(-time.Duration(windowHours) * time.Hour)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketMetrics).Cursor()
		prefix := []byte(deviceID + "\x00" + string(t) + "\x00")
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var sample model.MetricSample
			if err := json.Unmarshal(v, &sample); err != nil {
				return err
			}
			if sample.Timestamp.Before(cutoff) {
				continue
			}
			out = append(out, sample)
		}
		return nil
	})
	return out, err
}

// AggregatedBucket is one bucketed roll-up produced by AggregatedMetrics.
type AggregatedBucket struct {
	BucketStart time.Time `json:"bucket_start"`
	Avg         float64   `json:"avg"`
	Min         float64   `json:"min"`
	Max         float64   `json:"max"`
	SampleCount int       `json:"sample_count"`
}

// AggregatedMetrics buckets MetricsHistory samples by the given
// duration (e.g. one hour), computing avg/min/max/count per bucket.
func (s *Store) AggregatedMetrics(deviceID string, t model.MetricType, windowHours int, bucket time.Duration) ([]AggregatedBucket, error) {
	samples, err := s.MetricsHistory(deviceID, t, windowHours)
	if err != nil {
		return nil, err
	}
	buckets := map[int64]*AggregatedBucket{}
	var order []int64
	for _, sample := range samples {
		slot := sample.Timestamp.Truncate(bucket).Unix()
		b, ok := buckets[slot]
		if !ok {
			b = &AggregatedBucket{BucketStart: time.Unix(slot, 0).UTC(), Min: sample.Value, Max: sample.Value}
			buckets[slot] = b
			order = append(order, slot)
		}
		b.Avg += sample.Value
		b.SampleCount++
		if sample.Value < b.Min {
			b.Min = sample.Value
		}
		if sample.Value > b.Max {
			b.Max = sample.Value
		}
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	out := make([]AggregatedBucket, 0, len(order))
	for _, slot := range order {
		b := buckets[slot]
		if b.SampleCount > 0 {
			b.Avg /= float64(b.SampleCount)
		}
		out = append(out, *b)
	}
	return out, nil
}

// --- System info ---------------------------------------------------------

// InsertSystemInfo writes one per-poll summary row.
func (s *Store) InsertSystemInfo(info model.SystemInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if info.Timestamp.IsZero() {
		info.Timestamp = time.Now().UTC()
	}
	key := metricKey(info.DeviceID, "system_info", info.Timestamp)
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSystemInfo).Put(key, mustJSON(info))
	})
}

// LatestSystemInfo returns the most recent SystemInfo row for deviceID.
func (s *Store) LatestSystemInfo(deviceID string) (model.SystemInfo, error) {
	var out model.SystemInfo
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketSystemInfo).Cursor()
		prefix := []byte(deviceID + "\x00")
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var info model.SystemInfo
			if err := json.Unmarshal(v, &info); err != nil {
				return err
			}
			if !found || info.Timestamp.After(out.Timestamp) {
				out = info
				found = true
			}
		}
		return nil
	})
	if err == nil && !found {
		return out, model.NewError(model.KindNotFound, "LatestSystemInfo", fmt.Errorf("device %s", deviceID))
	}
	return out, err
}

// --- Network interfaces ----------------------------------------------------

// ReplaceInterfaces atomically replaces the interface snapshot for a device.
func (s *Store) ReplaceInterfaces(deviceID string, list []model.NetworkInterface) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketInterfaces)
		deletePrefix(b, []byte(deviceID+"\x00"))
		for _, iface := range list {
			iface.DeviceID = deviceID
			key := fmt.Sprintf("%s\x00%08d", deviceID, iface.Index)
			if err := b.Put([]byte(key), mustJSON(iface)); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListInterfaces returns the latest interface snapshot for deviceID.
func (s *Store) ListInterfaces(deviceID string) ([]model.NetworkInterface, error) {
	var out []model.NetworkInterface
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketInterfaces).Cursor()
		prefix := []byte(deviceID + "\x00")
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var iface model.NetworkInterface
			if err := json.Unmarshal(v, &iface); err != nil {
				return err
			}
			out = append(out, iface)
		}
		return nil
	})
	return out, err
}

// --- Alerts ----------------------------------------------------------------

// InsertAlert inserts a brand-new alert row. It never clobbers an
// existing id: a conflicting id is a KindConflict error so the caller
// can increment occurrence_count instead of losing the original
// acknowledged/created_at state.
func (s *Store) InsertAlert(a model.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAlerts)
		if b.Get([]byte(a.ID)) != nil {
			return model.NewError(model.KindConflict, "InsertAlert", fmt.Errorf("alert %s exists", a.ID))
		}
		return b.Put([]byte(a.ID), mustJSON(a))
	})
}

// UpsertAlert writes a.ID unconditionally, used by the alert engine to
// mirror occurrence increments on an already-active alert.
func (s *Store) UpsertAlert(a model.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAlerts).Put([]byte(a.ID), mustJSON(a))
	})
}

func (s *Store) getAlert(tx *bbolt.Tx, id string) (model.Alert, error) {
	var a model.Alert
	raw := tx.Bucket(bucketAlerts).Get([]byte(id))
	if raw == nil {
		return a, model.NewError(model.KindNotFound, "GetAlert", fmt.Errorf("alert %s", id))
	}
	return a, json.Unmarshal(raw, &a)
}

// GetAlert returns the alert with id.
func (s *Store) GetAlert(id string) (model.Alert, error) {
	var a model.Alert
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		a, err = s.getAlert(tx, id)
		return err
	})
	return a, err
}

// AckAlert marks id acknowledged by who.
func (s *Store) AckAlert(id, who string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(tx *bbolt.Tx) error {
		a, err := s.getAlert(tx, id)
		if err != nil {
			return err
		}
		if a.Acknowledged {
			return model.NewError(model.KindConflict, "AckAlert", fmt.Errorf("alert %s already acknowledged", id))
		}
		now := time.Now().UTC()
		a.Acknowledged = true
		a.AcknowledgedBy = who
		a.AcknowledgedAt = &now
		return tx.Bucket(bucketAlerts).Put([]byte(id), mustJSON(a))
	})
}

// ResolveAlert marks id resolved.
func (s *Store) ResolveAlert(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(tx *bbolt.Tx) error {
		a, err := s.getAlert(tx, id)
		if err != nil {
			return err
		}
		if a.ResolvedAt != nil {
			return model.NewError(model.KindConflict, "ResolveAlert", fmt.Errorf("alert %s already resolved", id))
		}
		now := time.Now().UTC()
		a.ResolvedAt = &now
		return tx.Bucket(bucketAlerts).Put([]byte(id), mustJSON(a))
	})
}

// DeleteAlert removes an alert permanently.
func (s *Store) DeleteAlert(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAlerts)
		if b.Get([]byte(id)) == nil {
			return model.NewError(model.KindNotFound, "DeleteAlert", fmt.Errorf("alert %s", id))
		}
		return b.Delete([]byte(id))
	})
}

// ListAlerts returns alerts matching filter, newest first, paginated.
func (s *Store) ListAlerts(filter model.AlertFilter, limit, offset int) ([]model.Alert, error) {
	var all []model.Alert
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAlerts).ForEach(func(k, v []byte) error {
			var a model.Alert
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			if filter.DeviceID != "" && a.DeviceID != filter.DeviceID {
				return nil
			}
			if filter.Type != "" && a.Type != filter.Type {
				return nil
			}
			if filter.Severity != "" && a.Severity != filter.Severity {
				return nil
			}
			if filter.Acknowledged != nil && a.Acknowledged != *filter.Acknowledged {
				return nil
			}
			if filter.ActiveOnly && a.ResolvedAt != nil {
				return nil
			}
			all = append(all, a)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], nil
}

// --- Scan history ------------------------------------------------------

// AppendScanHistory records a completed sweep.
func (s *Store) AppendScanHistory(rec model.ScanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var tbuf [8]byte
	binary.BigEndian.PutUint64(tbuf[:], uint64(rec.StartedAt.UnixNano()))
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketScanHistory).Put(tbuf[:], mustJSON(rec))
	})
}

// ListScanHistory returns up to limit scan records, most recent first.
func (s *Store) ListScanHistory(limit int) ([]model.ScanRecord, error) {
	var out []model.ScanRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketScanHistory).Cursor()
		for k, v := c.Last(); k != nil && (limit <= 0 || len(out) < limit); k, v = c.Prev() {
			var rec model.ScanRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

// --- Configuration ------------------------------------------------------

// GetConfig returns all configuration keys, or a single key's value
// when key is non-empty.
func (s *Store) GetConfig(key string) (map[string]string, error) {
	out := make(map[string]string)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketConfig)
		if key != "" {
			if v := b.Get([]byte(key)); v != nil {
				out[key] = string(v)
			}
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			out[string(k)] = string(v)
			return nil
		})
	})
	return out, err
}

// SetConfig writes key=value. desc is accepted for callers that carry
// a description but is not separately persisted; keys are
// self-describing.
func (s *Store) SetConfig(key, value, desc string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketConfig).Put([]byte(key), []byte(value))
	})
}

// --- Maintenance ---------------------------------------------------------

// Cleanup deletes metrics/system_info older than retentionDays,
// interfaces older than 1 day, and alerts resolved more than 7 days ago.
func (s *Store) Cleanup(retentionDays int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	metricsCutoff := time.Now().AddDate(0, 0, -retentionDays)
	ifaceCutoff := time.Now().Add(-24 * time.Hour)
	alertCutoff := time.Now().Add(-7 * 24 * time.Hour)

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := purgeOlderThan(tx.Bucket(bucketMetrics), metricsCutoff, func(v []byte) (time.Time, error) {
			var m model.MetricSample
			if err := json.Unmarshal(v, &m); err != nil {
				return time.Time{}, err
			}
			return m.Timestamp, nil
		}); err != nil {
			return err
		}
		if err := purgeOlderThan(tx.Bucket(bucketSystemInfo), metricsCutoff, func(v []byte) (time.Time, error) {
			var info model.SystemInfo
			if err := json.Unmarshal(v, &info); err != nil {
				return time.Time{}, err
			}
			return info.Timestamp, nil
		}); err != nil {
			return err
		}
		if err := purgeOlderThan(tx.Bucket(bucketInterfaces), ifaceCutoff, func(v []byte) (time.Time, error) {
			var iface model.NetworkInterface
			if err := json.Unmarshal(v, &iface); err != nil {
				return time.Time{}, err
			}
			return iface.Timestamp, nil
		}); err != nil {
			return err
		}

		alerts := tx.Bucket(bucketAlerts)
		var toDelete [][]byte
		alerts.ForEach(func(k, v []byte) error {
			var a model.Alert
			if err := json.Unmarshal(v, &a); err != nil {
				return nil
			}
			if a.ResolvedAt != nil && a.ResolvedAt.Before(alertCutoff) {
				toDelete = append(toDelete, append([]byte{}, k...))
			}
			return nil
		})
		for _, k := range toDelete {
			if err := alerts.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func purgeOlderThan(b *bbolt.Bucket, cutoff time.Time, ts func([]byte) (time.Time, error)) error {
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		t, err := ts(v)
		if err != nil {
			continue
		}
		if t.Before(cutoff) {
			if err := c.Delete(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Stats is a row-count-per-table and size summary.
type Stats struct {
	Devices     int   `json:"devices"`
	Metrics     int   `json:"metrics"`
	SystemInfo  int   `json:"system_info"`
	Interfaces  int   `json:"interfaces"`
	Alerts      int   `json:"alerts"`
	ScanHistory int   `json:"scan_history"`
	SizeBytes   int64 `json:"size_bytes"`
}

// Stats computes row counts per table and the on-disk footprint.
func (s *Store) Stats() (Stats, error) {
	var st Stats
	err := s.db.View(func(tx *bbolt.Tx) error {
		st.Devices = tx.Bucket(bucketDevices).Stats().KeyN
		st.Metrics = tx.Bucket(bucketMetrics).Stats().KeyN
		st.SystemInfo = tx.Bucket(bucketSystemInfo).Stats().KeyN
		st.Interfaces = tx.Bucket(bucketInterfaces).Stats().KeyN
		st.Alerts = tx.Bucket(bucketAlerts).Stats().KeyN
		st.ScanHistory = tx.Bucket(bucketScanHistory).Stats().KeyN
		st.SizeBytes = tx.Size()
		return nil
	})
	return st, err
}
