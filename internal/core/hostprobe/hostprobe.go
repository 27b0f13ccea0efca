// Package hostprobe reads CPU, memory, disk, uptime, and interface
// state of the local machine and normalizes it into a model.Sample.
// gopsutil carries its own per-platform fallback chain internally
// (proc files on Linux, sysctl on macOS, WMI on Windows); this package
// layers a never-raise contract on top of it.
package hostprobe

import (
	"context"
	"math"
	"net"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	gopshost "github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	gopsnet "github.com/shirou/gopsutil/v3/net"
	"go.uber.org/zap"

	"github.com/lanwatch/lanwatch/internal/core/model"
)

// Probe is HostProbe: it reads CPU/memory/disk/uptime/interfaces of
// the local machine. It never returns an error — every sub-reading
// failure is recorded into the returned Sample's Errors.
type Probe struct {
	logger *zap.SugaredLogger
}

// New builds a host Probe.
func New(logger *zap.SugaredLogger) *Probe {
	return &Probe{logger: logger}
}

// Collect produces a Sample describing the local machine. ctx bounds
// each sub-collection's blocking OS call.
func (p *Probe) Collect(ctx context.Context) model.Sample {
	var s model.Sample
	s.Reachable = true

	p.collectSystem(ctx, &s)
	p.collectCPU(ctx, &s)
	p.collectMemory(&s)
	p.collectDisk(&s)
	p.collectNetwork(&s)

	s.SystemInfo = model.SystemInfo{
		UptimeS:   s.System.UptimeS,
		Processes: s.System.Processes,
		Users:     s.System.Users,
	}
	return s
}

func (p *Probe) collectSystem(ctx context.Context, s *model.Sample) {
	s.System.Platform = runtime.GOOS
	s.System.Arch = runtime.GOARCH
	s.System.CPUCores = runtime.NumCPU()

	info, err := gopshost.InfoWithContext(ctx)
	if err != nil {
		s.AddError("host info: %v", err)
		return
	}
	s.System.Hostname = info.Hostname
	s.System.Description = info.Platform + " " + info.PlatformVersion
	s.System.UptimeS = info.Uptime
	s.System.Users = int(usersOrZero(ctx))
	s.System.Processes = int(info.Procs)
}

func usersOrZero(ctx context.Context) uint64 {
	users, err := gopshost.UsersWithContext(ctx)
	if err != nil {
		return 0
	}
	return uint64(len(users))
}

// collectCPU reads instantaneous CPU usage, rounded to a whole
// percent. gopsutil handles the per-OS mechanics.
func (p *Probe) collectCPU(ctx context.Context, s *model.Sample) {
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil || len(percents) == 0 {
		s.AddError("cpu percent: %v", err)
		return
	}
	s.CPU.UsagePercent = roundHalfUp(percents[0])
}

func (p *Probe) collectMemory(s *model.Sample) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		s.AddError("virtual memory: %v", err)
		return
	}
	s.Memory.TotalBytes = vm.Total
	s.Memory.UsedBytes = vm.Total - vm.Free
	if vm.Total > 0 {
		s.Memory.UsagePercent = roundHalfUp(100 * float64(s.Memory.UsedBytes) / float64(vm.Total))
	}
	s.System.TotalMemoryBytes = vm.Total
}

func (p *Probe) collectDisk(s *model.Sample) {
	usage, err := disk.Usage("/")
	if err != nil {
		// Windows roots at C:\, not /.
		usage, err = disk.Usage(`C:\`)
	}
	if err != nil {
		s.AddError("disk usage: %v", err)
		return
	}
	s.Disk.TotalBytes = usage.Total
	s.Disk.UsedBytes = usage.Used
	if usage.Total > 0 {
		s.Disk.UsagePercent = roundHalfUp(100 * float64(usage.Used) / float64(usage.Total))
	}
}

func (p *Probe) collectNetwork(s *model.Sample) {
	ifaces, err := gopsnet.Interfaces()
	if err != nil {
		s.AddError("network interfaces: %v", err)
		return
	}
	group := model.NetIfaceGroup{Name: "host"}
	for _, iface := range ifaces {
		internal := false
		for _, flag := range iface.Flags {
			if flag == "loopback" {
				internal = true
			}
		}
		// prefer an IPv4 address; link-local IPv6 is often listed first
		cidr := ""
		for _, addr := range iface.Addrs {
			if cidr == "" {
				cidr = addr.Addr
			}
			if isIPv4CIDR(addr.Addr) {
				cidr = addr.Addr
				break
			}
		}
		group.Interfaces = append(group.Interfaces, model.Interface{
			Name:     iface.Name,
			CIDR:     cidr,
			MAC:      iface.HardwareAddr,
			Internal: internal,
		})
	}
	s.Network = append(s.Network, group)
}

// Primary returns the first non-loopback, IPv4-family interface of
// group that has an address.
func Primary(group model.NetIfaceGroup) (model.Interface, bool) {
	for _, iface := range group.Interfaces {
		if iface.Internal {
			continue
		}
		if !isIPv4CIDR(iface.CIDR) {
			continue
		}
		return iface, true
	}
	return model.Interface{}, false
}

// isIPv4CIDR reports whether addr ("A.B.C.D/nn" or a bare address)
// carries an IPv4 address.
func isIPv4CIDR(addr string) bool {
	if addr == "" {
		return false
	}
	ip, _, err := net.ParseCIDR(addr)
	if err != nil {
		ip = net.ParseIP(strings.SplitN(addr, "/", 2)[0])
	}
	return ip != nil && ip.To4() != nil
}

func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}
