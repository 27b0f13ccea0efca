package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampBounds(t *testing.T) {
	assert.Equal(t, 5, Clamp(KeyRefreshInterval, 1))
	assert.Equal(t, 300, Clamp(KeyRefreshInterval, 10000))
	assert.Equal(t, 60, Clamp(KeyRefreshInterval, 60))
}

func TestClampUnknownKeyPassesThrough(t *testing.T) {
	assert.Equal(t, 42, Clamp("not_a_real_key", 42))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(KeyCPUWarning, "75"))
	assert.False(t, Valid(KeyCPUWarning, "not-a-number"))
	assert.False(t, Valid("unknown_key", "1"))
	assert.True(t, Valid(KeyDefaultCommunity, "public"))
	assert.False(t, Valid(KeyDefaultCommunity, ""))
}

func TestThresholdsValid(t *testing.T) {
	assert.True(t, Thresholds{Warning: 75, Critical: 90}.Valid())
	assert.False(t, Thresholds{Warning: 90, Critical: 75}.Valid())
	assert.False(t, Thresholds{Warning: 0, Critical: 90}.Valid())
	assert.False(t, Thresholds{Warning: 75, Critical: 150}.Valid())
}

func TestFromKVAppliesDefaultsForMissingKeys(t *testing.T) {
	rt := FromKV(map[string]string{}, nil, nil)

	assert.Equal(t, float64(75), rt.CPU.Warning)
	assert.Equal(t, float64(90), rt.CPU.Critical)
	assert.Equal(t, "public", rt.DefaultCommunity)
	assert.Equal(t, 30, rt.MaxHistoryDays)
}

func TestFromKVFallsBackToPriorOnInvalidThresholds(t *testing.T) {
	prior := &Runtime{CPU: Thresholds{Warning: 70, Critical: 85}}
	var warnings []string
	warn := func(msg string) { warnings = append(warnings, msg) }

	kv := map[string]string{
		KeyCPUWarning:  "95",
		KeyCPUCritical: "50", // invalid: warning > critical
	}
	rt := FromKV(kv, prior, warn)

	assert.Equal(t, prior.CPU, rt.CPU)
	assert.Len(t, warnings, 1)
}

func TestFromKVValidThresholdsOverridePrior(t *testing.T) {
	prior := &Runtime{CPU: Thresholds{Warning: 70, Critical: 85}}
	kv := map[string]string{
		KeyCPUWarning:  "60",
		KeyCPUCritical: "80",
	}
	rt := FromKV(kv, prior, nil)

	assert.Equal(t, Thresholds{Warning: 60, Critical: 80}, rt.CPU)
}

func TestBootstrapDefaultsWithoutConfigFile(t *testing.T) {
	boot, err := Load("")
	assert.NoError(t, err)
	assert.Equal(t, 10, boot.Int(KeyRefreshInterval))
	assert.Equal(t, "public", boot.String(KeyDefaultCommunity))
}

func TestBootstrapSeedsCoversAllDefaults(t *testing.T) {
	boot, err := Load("")
	assert.NoError(t, err)

	seeds := boot.Seeds()
	assert.Len(t, seeds, len(Defaults))
	for k := range Defaults {
		assert.Contains(t, seeds, k)
	}
}
