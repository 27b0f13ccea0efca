// Package model holds the data types shared across the monitoring core:
// devices, metric samples, alerts, scan records, and the probe output
// shape both HostProbe and RemoteProbe normalize into.
package model

import (
	"fmt"
	"time"
)

// DeviceStatus is the derived operational state of a Device.
type DeviceStatus string

const (
	StatusUnknown  DeviceStatus = "unknown"
	StatusOnline   DeviceStatus = "online"
	StatusWarning  DeviceStatus = "warning"
	StatusCritical DeviceStatus = "critical"
	StatusOffline  DeviceStatus = "offline"
)

// LocalDeviceID is the sentinel id reserved for the host-probe device.
const LocalDeviceID = "localhost"

// LocalCommunity marks a device as probed via HostProbe rather than RemoteProbe.
const LocalCommunity = "local"

// Device is a monitored endpoint.
type Device struct {
	ID          string       `json:"id"`
	IP          string       `json:"ip"`
	Hostname    string       `json:"hostname"`
	Description string       `json:"description"`
	Location    string       `json:"location"`
	Contact     string       `json:"contact"`
	Community   string       `json:"community"`
	Status      DeviceStatus `json:"status"`
	FirstSeen   time.Time    `json:"first_seen"`
	LastSeen    time.Time    `json:"last_seen"`
}

// IsLocal reports whether d is the host-probe sentinel device.
func (d *Device) IsLocal() bool {
	return d != nil && d.ID == LocalDeviceID
}

// MetricType enumerates the recognized metric kinds.
type MetricType string

const (
	MetricCPUUsage    MetricType = "cpu_usage"
	MetricMemoryUsage MetricType = "memory_usage"
	MetricDiskUsage   MetricType = "disk_usage"
	MetricMemoryTotal MetricType = "memory_total"
	MetricMemoryUsed  MetricType = "memory_used"
	MetricDiskTotal   MetricType = "disk_total"
	MetricDiskUsed    MetricType = "disk_used"
)

// MetricUnit is the unit a MetricSample's value is expressed in.
type MetricUnit string

const (
	UnitPercent MetricUnit = "percent"
	UnitBytes   MetricUnit = "bytes"
)

// MetricSample is one immutable time-series observation.
type MetricSample struct {
	DeviceID   string     `json:"device_id"`
	MetricType MetricType `json:"metric_type"`
	Value      float64    `json:"value"`
	Unit       MetricUnit `json:"unit"`
	Timestamp  time.Time  `json:"timestamp"`
}

// SystemInfo is a per-poll summary of a device.
type SystemInfo struct {
	DeviceID  string    `json:"device_id"`
	UptimeS   uint64    `json:"uptime_s"`
	Processes int       `json:"processes"`
	Users     int       `json:"users"`
	Timestamp time.Time `json:"timestamp"`
}

// NetworkInterface is the latest known snapshot of one device interface.
type NetworkInterface struct {
	DeviceID    string    `json:"device_id"`
	Index       int       `json:"index"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	Speed       uint64    `json:"speed"`
	AdminStatus string    `json:"admin_status"`
	OperStatus  string    `json:"oper_status"`
	InOctets    uint64    `json:"in_octets"`
	OutOctets   uint64    `json:"out_octets"`
	Timestamp   time.Time `json:"timestamp"`
}

// AlertType enumerates the kinds of alerts the engine produces.
type AlertType string

const (
	AlertCPU     AlertType = "cpu"
	AlertMemory  AlertType = "memory"
	AlertDisk    AlertType = "disk"
	AlertNetwork AlertType = "network"
	AlertOffline AlertType = "offline"
)

// AlertSeverity is warning or critical.
type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Alert is a threshold or reachability violation, with dedup bookkeeping.
type Alert struct {
	ID               string        `json:"id"`
	DeviceID         string        `json:"device_id"`
	DeviceIP         string        `json:"device_ip"`
	Type             AlertType     `json:"type"`
	Severity         AlertSeverity `json:"severity"`
	Message          string        `json:"message"`
	Acknowledged     bool          `json:"acknowledged"`
	AcknowledgedBy   string        `json:"acknowledged_by,omitempty"`
	AcknowledgedAt   *time.Time    `json:"acknowledged_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	ResolvedAt       *time.Time    `json:"resolved_at,omitempty"`
	ResolvedBy       string        `json:"resolved_by,omitempty"`
	OccurrenceCount  int           `json:"occurrence_count"`
	LastOccurrence   time.Time     `json:"last_occurrence"`
}

// Active reports whether the alert has not been resolved.
func (a *Alert) Active() bool {
	return a != nil && a.ResolvedAt == nil
}

// ScanRecord is an audit row for a completed IP-range sweep.
type ScanRecord struct {
	ScanRange       string    `json:"scan_range"`
	TotalIPs        int       `json:"total_ips"`
	DiscoveredHosts int       `json:"discovered_hosts"`
	DurationMS      int64     `json:"duration_ms"`
	StartedAt       time.Time `json:"started_at"`
	CompletedAt     time.Time `json:"completed_at"`
}

// AlertFilter narrows ListAlerts results.
type AlertFilter struct {
	DeviceID     string
	Type         AlertType
	Severity     AlertSeverity
	Acknowledged *bool
	ActiveOnly   bool
}

// Interface describes one host network interface as reported by a probe.
type Interface struct {
	Name     string
	CIDR     string
	MAC      string
	Internal bool
}

// SystemBlock is the system-level portion of a Sample.
type SystemBlock struct {
	Hostname         string
	Description      string
	Location         string
	Contact          string
	UptimeS          uint64
	Platform         string
	Arch             string
	CPUCores         int
	TotalMemoryBytes uint64
	Processes        int
	Users            int
}

// UsageBlock is a percent/byte usage reading (CPU, memory, or disk).
type UsageBlock struct {
	UsagePercent float64
	TotalBytes   uint64
	UsedBytes    uint64
}

// NetIfaceGroup groups the interfaces discovered for one probe target.
type NetIfaceGroup struct {
	Name       string
	Interfaces []Interface
}

// Sample is the normalized output of HostProbe or RemoteProbe for one
// device in one tick. It is always returned, even when every
// sub-collection failed — failures are recorded in Errors instead of
// raised.
type Sample struct {
	System     SystemBlock
	CPU        UsageBlock
	Memory     UsageBlock
	Disk       UsageBlock
	Network    []NetIfaceGroup
	SystemInfo SystemInfo
	Interfaces []NetworkInterface
	Errors     []string
	Reachable  bool
}

// AddError appends a failure note without raising.
func (s *Sample) AddError(format string, args ...any) {
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
}
