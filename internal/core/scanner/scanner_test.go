package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseRangeSingleIP(t *testing.T) {
	ips, err := ParseRange("192.168.1.10")
	require.NoError(t, err)
	assert.Equal(t, []string{"192.168.1.10"}, ips)
}

func TestParseRangeDashEnd(t *testing.T) {
	ips, err := ParseRange("192.168.1.250-252")
	require.NoError(t, err)
	assert.Equal(t, []string{"192.168.1.250", "192.168.1.251", "192.168.1.252"}, ips)
}

func TestParseRangeCIDR24(t *testing.T) {
	ips, err := ParseRange("10.0.0.0/24")
	require.NoError(t, err)
	assert.Len(t, ips, 254)
	assert.Equal(t, "10.0.0.1", ips[0])
	assert.Equal(t, "10.0.0.254", ips[253])
}

func TestParseRangeRejectsNonSlash24(t *testing.T) {
	_, err := ParseRange("10.0.0.0/16")
	assert.Error(t, err)
}

func TestParseRangeRejectsInvalidOctet(t *testing.T) {
	_, err := ParseRange("10.0.0.256")
	assert.Error(t, err)
}

func TestParseRangeRejectsEndBeforeStart(t *testing.T) {
	_, err := ParseRange("10.0.0.50-10")
	assert.Error(t, err)
}

func TestValidateRangeSamplesAtMostFive(t *testing.T) {
	v := ValidateRange("10.0.0.0/24")
	assert.True(t, v.Valid)
	assert.Equal(t, 254, v.TotalIPs)
	assert.Equal(t, "10.0.0.1", v.FirstIP)
	assert.Equal(t, "10.0.0.254", v.LastIP)
	assert.Len(t, v.SampleIPs, 5)
}

func TestValidateRangeInvalid(t *testing.T) {
	v := ValidateRange("not-an-ip")
	assert.False(t, v.Valid)
	assert.NotEmpty(t, v.Error)
}

func TestSweepRejectsConcurrentScan(t *testing.T) {
	s := New(zap.NewNop().Sugar())
	s.live = func(ctx context.Context, ip string, timeout time.Duration) (time.Duration, bool) {
		time.Sleep(20 * time.Millisecond)
		return 0, false
	}
	s.state = StateScanning

	_, err := s.Sweep(context.Background(), "10.0.0.1", DefaultOptions(), nil)
	assert.Error(t, err)
}

func TestSweepEmitsDiscoveryAndCompletionEvents(t *testing.T) {
	s := New(zap.NewNop().Sugar())
	s.live = func(ctx context.Context, ip string, timeout time.Duration) (time.Duration, bool) {
		return 5 * time.Millisecond, ip == "10.0.0.2"
	}

	var events []Event
	results, err := s.Sweep(context.Background(), "10.0.0.1-3", DefaultOptions(), func(e Event) {
		events = append(events, e)
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "10.0.0.2", results[0].IP)
	assert.Equal(t, StateIdleCompleted, s.State())

	var sawStart, sawDiscovered, sawCompleted bool
	for _, e := range events {
		switch e.Type {
		case "scan_started":
			sawStart = true
		case "host_discovered":
			sawDiscovered = true
		case "scan_completed":
			sawCompleted = true
		}
	}
	assert.True(t, sawStart)
	assert.True(t, sawDiscovered)
	assert.True(t, sawCompleted)
}

func TestSweepWithPortsAttachesPortsBeforeDiscoveryEvent(t *testing.T) {
	s := New(zap.NewNop().Sugar())
	s.live = func(ctx context.Context, ip string, timeout time.Duration) (time.Duration, bool) {
		return time.Millisecond, ip == "10.0.0.2"
	}
	s.ports = func(ctx context.Context, ip string, timeout time.Duration) []int {
		return []int{22, 443}
	}

	opts := DefaultOptions()
	opts.IncludePorts = true

	var discovered []Event
	results, err := s.Sweep(context.Background(), "10.0.0.1-3", opts, func(e Event) {
		if e.Type == "host_discovered" {
			discovered = append(discovered, e)
		}
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []int{22, 443}, results[0].Ports)

	require.Len(t, discovered, 1)
	require.NotNil(t, discovered[0].Host)
	assert.Equal(t, []int{22, 443}, discovered[0].Host.Ports)
}

func TestSweepStopSetsStoppedState(t *testing.T) {
	s := New(zap.NewNop().Sugar())
	s.live = func(ctx context.Context, ip string, timeout time.Duration) (time.Duration, bool) {
		return 0, false
	}

	opts := DefaultOptions()
	opts.Concurrent = 1
	ips, err := ParseRange("10.0.0.1-5")
	require.NoError(t, err)
	require.Len(t, ips, 5)

	var calls int
	_, err = s.Sweep(context.Background(), "10.0.0.1-5", opts, func(e Event) {
		if e.Type == "scan_progress" {
			calls++
			if calls == 1 {
				s.Stop()
			}
		}
	})
	require.NoError(t, err)
	assert.Equal(t, StateIdleStopped, s.State())
}
