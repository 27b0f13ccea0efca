// Package config loads the monitoring engine's bootstrap configuration
// from defaults, an optional file, and environment variables via
// viper. Once the store is open, its persisted configuration table
// values take precedence on every read.
package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Keys recognized in the persisted configuration table.
const (
	KeyRefreshInterval  = "refresh_interval"
	KeyDefaultCommunity = "default_community"
	KeyScanTimeout      = "scan_timeout"
	KeySNMPTimeout      = "snmp_timeout"
	KeyMaxHistoryDays   = "max_history_days"
	KeyCPUWarning       = "cpu_warning_threshold"
	KeyCPUCritical      = "cpu_critical_threshold"
	KeyMemoryWarning    = "memory_warning_threshold"
	KeyMemoryCritical   = "memory_critical_threshold"
	KeyDiskWarning      = "disk_warning_threshold"
	KeyDiskCritical     = "disk_critical_threshold"
)

// Defaults holds the out-of-the-box value for every recognized key.
var Defaults = map[string]string{
	KeyRefreshInterval:  "10",
	KeyDefaultCommunity: "public",
	KeyScanTimeout:      "3000",
	KeySNMPTimeout:      "5000",
	KeyMaxHistoryDays:   "30",
	KeyCPUWarning:       "75",
	KeyCPUCritical:      "90",
	KeyMemoryWarning:    "80",
	KeyMemoryCritical:   "95",
	KeyDiskWarning:      "85",
	KeyDiskCritical:     "95",
}

// Range bounds for numeric keys. Threshold keys share [1,100].
var ranges = map[string][2]int{
	KeyRefreshInterval: {5, 300},
	KeyScanTimeout:     {1000, 30000},
	KeySNMPTimeout:     {1000, 30000},
	KeyMaxHistoryDays:  {1, 365},
	KeyCPUWarning:      {1, 100},
	KeyCPUCritical:     {1, 100},
	KeyMemoryWarning:   {1, 100},
	KeyMemoryCritical:  {1, 100},
	KeyDiskWarning:     {1, 100},
	KeyDiskCritical:    {1, 100},
}

// Clamp forces v into the recognized range for key, if any is defined.
func Clamp(key string, v int) int {
	r, ok := ranges[key]
	if !ok {
		return v
	}
	if v < r[0] {
		return r[0]
	}
	if v > r[1] {
		return r[1]
	}
	return v
}

// Valid reports whether key/value is a recognized, in-range setting.
// The non-numeric key (default_community) is valid when non-empty.
func Valid(key, value string) bool {
	if _, ok := Defaults[key]; !ok {
		return false
	}
	if key == KeyDefaultCommunity {
		return value != ""
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return false
	}
	return Clamp(key, n) == n
}

// Bootstrap is the pre-Store configuration, sourced from defaults, an
// optional file, and LANWATCH_-prefixed environment variables.
type Bootstrap struct {
	v *viper.Viper
}

// Load builds a Bootstrap from an optional config file path (may be empty).
func Load(path string) (*Bootstrap, error) {
	v := viper.New()
	for k, val := range Defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix("LANWATCH")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("load config %s: %w", path, err)
			}
		}
	}
	return &Bootstrap{v: v}, nil
}

// String returns the bootstrap value for key, falling back to Defaults.
func (b *Bootstrap) String(key string) string {
	if b == nil || b.v == nil {
		return Defaults[key]
	}
	if s := b.v.GetString(key); s != "" {
		return s
	}
	return Defaults[key]
}

// Int returns the bootstrap value for key as an int, clamped to range.
func (b *Bootstrap) Int(key string) int {
	n, err := strconv.Atoi(b.String(key))
	if err != nil {
		n, _ = strconv.Atoi(Defaults[key])
	}
	return Clamp(key, n)
}

// Seeds resolves every recognized key from environment/file, each
// numeric key clamped to its range the same way FromKV clamps
// store-backed values (the warning < critical pair check is left to
// FromKV).
// Store.OpenSeeded uses this as the first-open seed so environment
// inputs win over the hardcoded Defaults before the store's own
// persisted overrides take over on every later open.
func (b *Bootstrap) Seeds() map[string]string {
	out := make(map[string]string, len(Defaults))
	for k := range Defaults {
		if k == KeyDefaultCommunity {
			out[k] = b.String(k)
			continue
		}
		out[k] = strconv.Itoa(b.Int(k))
	}
	return out
}

// Thresholds is a warning/critical pair for one metric.
type Thresholds struct {
	Warning  float64
	Critical float64
}

// Valid reports t.Warning < t.Critical, both in [1,100].
func (t Thresholds) Valid() bool {
	return t.Warning >= 1 && t.Critical <= 100 && t.Warning < t.Critical
}

// Runtime is the live, validated configuration the engine consults on
// each tick. It is rebuilt from store-backed key/value pairs whenever
// configuration changes.
type Runtime struct {
	RefreshInterval  time.Duration
	DefaultCommunity string
	ScanTimeout      time.Duration
	SNMPTimeout      time.Duration
	MaxHistoryDays   int
	CPU              Thresholds
	Memory           Thresholds
	Disk             Thresholds
}

// FromKV builds a Runtime from a flat key/value map (as read from the
// store's configuration table), clamping and validating each field and
// falling back to prior when a field is invalid. warn is called with a
// human-readable message for every field that had to fall back.
func FromKV(kv map[string]string, prior *Runtime, warn func(string)) Runtime {
	get := func(key string) string {
		if v, ok := kv[key]; ok && v != "" {
			return v
		}
		return Defaults[key]
	}
	getInt := func(key string) int {
		n, err := strconv.Atoi(get(key))
		if err != nil {
			n, _ = strconv.Atoi(Defaults[key])
		}
		return Clamp(key, n)
	}

	rt := Runtime{
		RefreshInterval:  time.Duration(getInt(KeyRefreshInterval)) * time.Second,
		DefaultCommunity: get(KeyDefaultCommunity),
		ScanTimeout:      time.Duration(getInt(KeyScanTimeout)) * time.Millisecond,
		SNMPTimeout:      time.Duration(getInt(KeySNMPTimeout)) * time.Millisecond,
		MaxHistoryDays:   getInt(KeyMaxHistoryDays),
	}

	cpu := Thresholds{Warning: float64(getInt(KeyCPUWarning)), Critical: float64(getInt(KeyCPUCritical))}
	mem := Thresholds{Warning: float64(getInt(KeyMemoryWarning)), Critical: float64(getInt(KeyMemoryCritical))}
	disk := Thresholds{Warning: float64(getInt(KeyDiskWarning)), Critical: float64(getInt(KeyDiskCritical))}

	if cpu.Valid() {
		rt.CPU = cpu
	} else if prior != nil {
		rt.CPU = prior.CPU
		if warn != nil {
			warn("cpu thresholds invalid (warning must be < critical), keeping prior value")
		}
	} else {
		rt.CPU = Thresholds{Warning: 75, Critical: 90}
	}

	if mem.Valid() {
		rt.Memory = mem
	} else if prior != nil {
		rt.Memory = prior.Memory
		if warn != nil {
			warn("memory thresholds invalid (warning must be < critical), keeping prior value")
		}
	} else {
		rt.Memory = Thresholds{Warning: 80, Critical: 95}
	}

	if disk.Valid() {
		rt.Disk = disk
	} else if prior != nil {
		rt.Disk = prior.Disk
		if warn != nil {
			warn("disk thresholds invalid (warning must be < critical), keeping prior value")
		}
	} else {
		rt.Disk = Thresholds{Warning: 85, Critical: 95}
	}

	return rt
}
