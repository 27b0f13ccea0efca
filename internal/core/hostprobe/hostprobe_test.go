package hostprobe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lanwatch/lanwatch/internal/core/model"
)

func TestRoundHalfUp(t *testing.T) {
	assert.Equal(t, float64(1), roundHalfUp(0.5))
	assert.Equal(t, float64(2), roundHalfUp(1.5))
	assert.Equal(t, float64(0), roundHalfUp(0.49))
}

func TestPrimarySkipsInternalAndEmptyCIDR(t *testing.T) {
	group := model.NetIfaceGroup{
		Interfaces: []model.Interface{
			{Name: "lo", Internal: true, CIDR: "127.0.0.1/8"},
			{Name: "eth-noaddr", Internal: false, CIDR: ""},
			{Name: "eth0", Internal: false, CIDR: "192.168.1.5/24"},
		},
	}
	iface, ok := Primary(group)
	assert.True(t, ok)
	assert.Equal(t, "eth0", iface.Name)
}

func TestPrimarySkipsIPv6OnlyInterfaces(t *testing.T) {
	group := model.NetIfaceGroup{
		Interfaces: []model.Interface{
			{Name: "eth-v6", Internal: false, CIDR: "fe80::1c2a:ffff:fe3b:4d5e/64"},
			{Name: "eth1", Internal: false, CIDR: "10.1.2.3/16"},
		},
	}
	iface, ok := Primary(group)
	assert.True(t, ok)
	assert.Equal(t, "eth1", iface.Name)
}

func TestIsIPv4CIDR(t *testing.T) {
	assert.True(t, isIPv4CIDR("192.168.1.5/24"))
	assert.True(t, isIPv4CIDR("192.168.1.5"))
	assert.False(t, isIPv4CIDR("fe80::1/64"))
	assert.False(t, isIPv4CIDR("::1"))
	assert.False(t, isIPv4CIDR(""))
	assert.False(t, isIPv4CIDR("not-an-address"))
}

func TestPrimaryReturnsFalseWhenNoneQualify(t *testing.T) {
	group := model.NetIfaceGroup{Interfaces: []model.Interface{{Name: "lo", Internal: true}}}
	_, ok := Primary(group)
	assert.False(t, ok)
}

func TestCollectNeverRaisesAndAlwaysReportsReachable(t *testing.T) {
	p := New(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sample := p.Collect(ctx)
	assert.True(t, sample.Reachable, "host probe always considers localhost reachable")
	assert.NotEmpty(t, sample.System.Hostname)
}
