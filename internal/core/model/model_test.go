package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeviceIsLocal(t *testing.T) {
	local := &Device{ID: LocalDeviceID}
	remote := &Device{ID: "192.168.1.10"}
	var nilDevice *Device

	assert.True(t, local.IsLocal())
	assert.False(t, remote.IsLocal())
	assert.False(t, nilDevice.IsLocal())
}

func TestAlertActive(t *testing.T) {
	active := &Alert{ID: "a1"}
	assert.True(t, active.Active())

	resolved := time.Now()
	withResolution := &Alert{ID: "a2", ResolvedAt: &resolved}
	assert.False(t, withResolution.Active())

	var nilAlert *Alert
	assert.False(t, nilAlert.Active())
}

func TestSampleAddError(t *testing.T) {
	var s Sample
	s.AddError("cpu probe failed: %s", "timeout")
	s.AddError("disk probe failed")

	assert.Len(t, s.Errors, 2)
	assert.Equal(t, "cpu probe failed: timeout", s.Errors[0])
	assert.Equal(t, "disk probe failed", s.Errors[1])
}
