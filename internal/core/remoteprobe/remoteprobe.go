// Package remoteprobe queries remote devices over SNMPv2c and
// normalizes the results into a model.Sample. Sessions are cached per
// (ip, community), reused across polls, and invalidated on session
// error so the next use reconnects.
package remoteprobe

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"

	"github.com/lanwatch/lanwatch/internal/core/model"
)

// Well-known OIDs: MIB-2 system, host-resources, interfaces, and the
// UCD-SNMP memory/load extensions.
const (
	oidSysDescr    = "1.3.6.1.2.1.1.1.0"
	oidSysObjectID = "1.3.6.1.2.1.1.2.0"
	oidSysUptime   = "1.3.6.1.2.1.1.3.0"
	oidSysContact  = "1.3.6.1.2.1.1.4.0"
	oidSysName     = "1.3.6.1.2.1.1.5.0"
	oidSysLocation = "1.3.6.1.2.1.1.6.0"

	oidHrProcessorLoad = "1.3.6.1.2.1.25.3.3.1.2"
	oidHrStorageTable  = "1.3.6.1.2.1.25.2.3.1"
	oidHrMemorySize    = "1.3.6.1.2.1.25.2.2.0"

	oidIfTable = "1.3.6.1.2.1.2.2.1"

	oidLaLoad1      = "1.3.6.1.4.1.2021.10.1.3.1"
	oidMemTotalReal = "1.3.6.1.4.1.2021.4.5.0"
	oidMemAvailReal = "1.3.6.1.4.1.2021.4.6.0"
)

// hrStorageTable column suffixes.
const (
	hrStorageType            = 2
	hrStorageDescr           = 3
	hrStorageAllocationUnits = 4
	hrStorageSize            = 5
	hrStorageUsed            = 6
)

// ifTable column suffixes.
const (
	ifDescr       = 2
	ifType        = 3
	ifSpeed       = 5
	ifPhysAddress = 6
	ifAdminStatus = 7
	ifOperStatus  = 8
	ifInOctets    = 10
	ifOutOctets   = 16
)

// Probe is RemoteProbe: queries remote devices via SNMPv2c, caching
// sessions per (ip, community).
type Probe struct {
	logger  *zap.SugaredLogger
	timeout time.Duration
	retries int

	mu       sync.Mutex
	sessions map[string]*gosnmp.GoSNMP
}

// New builds a remote Probe with the given per-query timeout.
func New(logger *zap.SugaredLogger, timeout time.Duration) *Probe {
	return &Probe{
		logger:   logger,
		timeout:  timeout,
		retries:  2,
		sessions: make(map[string]*gosnmp.GoSNMP),
	}
}

func sessionKey(ip, community string) string { return ip + "|" + community }

// session returns a cached SNMPv2c client for (ip, community),
// creating and connecting one if absent. A race opening a new session
// for the same key is resolved first-winner-wins; the loser's
// connection is discarded.
func (p *Probe) session(ip, community string) (*gosnmp.GoSNMP, error) {
	key := sessionKey(ip, community)

	p.mu.Lock()
	if s, ok := p.sessions[key]; ok {
		p.mu.Unlock()
		return s, nil
	}
	p.mu.Unlock()

	client := &gosnmp.GoSNMP{
		Target:    ip,
		Port:      161,
		Community: community,
		Version:   gosnmp.Version2c,
		Timeout:   p.timeout,
		Retries:   p.retries,
	}
	if client.Timeout <= 0 {
		client.Timeout = 5 * time.Second
	}
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", ip, err)
	}

	p.mu.Lock()
	if existing, ok := p.sessions[key]; ok {
		p.mu.Unlock()
		client.Conn.Close()
		return existing, nil
	}
	p.sessions[key] = client
	p.mu.Unlock()
	return client, nil
}

// invalidate evicts a session after an unrecoverable error so the next
// use reconnects.
func (p *Probe) invalidate(ip, community string) {
	key := sessionKey(ip, community)
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.sessions[key]; ok {
		s.Conn.Close()
		delete(p.sessions, key)
	}
}

// Close closes every cached session.
func (p *Probe) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, s := range p.sessions {
		s.Conn.Close()
		delete(p.sessions, key)
	}
}

// CollectAll runs the system, CPU, memory, disk, and interface
// collections concurrently and merges their results into one Sample.
// Each may independently fail; the operation returns a Sample even
// when every sub-collection failed, with the failures in Errors.
func (p *Probe) CollectAll(ctx context.Context, ip, community string) model.Sample {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
		s  model.Sample
	)

	merge := func(fn func(*model.Sample)) {
		defer wg.Done()
		var local model.Sample
		fn(&local)
		mu.Lock()
		defer mu.Unlock()
		s.Errors = append(s.Errors, local.Errors...)
		if local.Reachable {
			s.Reachable = true
		}
		s.System.Hostname = firstNonEmpty(s.System.Hostname, local.System.Hostname)
		s.System.Description = firstNonEmpty(s.System.Description, local.System.Description)
		s.System.Location = firstNonEmpty(s.System.Location, local.System.Location)
		s.System.Contact = firstNonEmpty(s.System.Contact, local.System.Contact)
		if local.System.UptimeS > 0 {
			s.System.UptimeS = local.System.UptimeS
		}
		if local.CPU.UsagePercent > 0 {
			s.CPU = local.CPU
		}
		if local.Memory.TotalBytes > 0 {
			s.Memory = local.Memory
		}
		if local.Disk.TotalBytes > 0 {
			s.Disk = local.Disk
		}
		if len(local.Interfaces) > 0 {
			s.Interfaces = local.Interfaces
		}
	}

	wg.Add(5)
	go merge(func(out *model.Sample) { p.collectSystem(ctx, ip, community, out) })
	go merge(func(out *model.Sample) { p.collectCPU(ctx, ip, community, out) })
	go merge(func(out *model.Sample) { p.collectMemory(ctx, ip, community, out) })
	go merge(func(out *model.Sample) { p.collectDisk(ctx, ip, community, out) })
	go merge(func(out *model.Sample) { p.collectInterfaces(ctx, ip, community, out) })
	wg.Wait()

	s.SystemInfo.UptimeS = s.System.UptimeS
	return s
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func (p *Probe) get(ip, community string, oids []string) (*gosnmp.SnmpPacket, error) {
	sess, err := p.session(ip, community)
	if err != nil {
		return nil, err
	}
	pkt, err := sess.Get(oids)
	if err != nil {
		p.invalidate(ip, community)
		return nil, err
	}
	return pkt, nil
}

func (p *Probe) walk(ip, community, rootOid string, fn gosnmp.WalkFunc) error {
	sess, err := p.session(ip, community)
	if err != nil {
		return err
	}
	if err := sess.Walk(rootOid, fn); err != nil {
		p.invalidate(ip, community)
		return err
	}
	return nil
}

func (p *Probe) collectSystem(ctx context.Context, ip, community string, s *model.Sample) {
	pkt, err := p.get(ip, community, []string{oidSysDescr, oidSysUptime, oidSysContact, oidSysName, oidSysLocation})
	if err != nil {
		s.AddError("system: %v", err)
		return
	}
	s.Reachable = true
	for _, v := range pkt.Variables {
		switch v.Name {
		case "." + oidSysDescr, oidSysDescr:
			s.System.Description = pduString(v)
		case "." + oidSysUptime, oidSysUptime:
			// sysUpTime is in centiseconds
			s.System.UptimeS = uint64(pduUint(v) / 100)
		case "." + oidSysContact, oidSysContact:
			s.System.Contact = pduString(v)
		case "." + oidSysName, oidSysName:
			s.System.Hostname = pduString(v)
		case "." + oidSysLocation, oidSysLocation:
			s.System.Location = pduString(v)
		}
	}
}

// collectCPU averages the host-resources processor load table when it
// has rows, otherwise falls back to the 1-minute load average scaled
// by 10 and capped at 100.
func (p *Probe) collectCPU(ctx context.Context, ip, community string, s *model.Sample) {
	var loads []float64
	err := p.walk(ip, community, oidHrProcessorLoad, func(v gosnmp.SnmpPDU) error {
		loads = append(loads, pduFloat(v))
		return nil
	})
	if err == nil && len(loads) > 0 {
		var sum float64
		for _, l := range loads {
			sum += l
		}
		s.CPU.UsagePercent = roundHalfUp(sum / float64(len(loads)))
		s.Reachable = true
		return
	}

	pkt, err := p.get(ip, community, []string{oidLaLoad1})
	if err == nil && len(pkt.Variables) > 0 {
		load1 := pduFloat(pkt.Variables[0])
		s.CPU.UsagePercent = math.Min(100, load1*10)
		s.Reachable = true
		return
	}

	s.AddError("cpu: processor load table and load average both unavailable")
	s.CPU.UsagePercent = 0
}

// collectMemory tries UCD-style total/avail real memory first, then a
// host-resources storage row whose description mentions memory or ram.
func (p *Probe) collectMemory(ctx context.Context, ip, community string, s *model.Sample) {
	pkt, err := p.get(ip, community, []string{oidMemTotalReal, oidMemAvailReal})
	if err == nil && len(pkt.Variables) == 2 {
		totalKB := pduFloat(pkt.Variables[0])
		availKB := pduFloat(pkt.Variables[1])
		if totalKB > 0 {
			s.Memory.TotalBytes = uint64(totalKB * 1024)
			s.Memory.UsedBytes = uint64((totalKB - availKB) * 1024)
			s.Memory.UsagePercent = roundHalfUp(100 * float64(s.Memory.UsedBytes) / float64(s.Memory.TotalBytes))
			s.Reachable = true
			return
		}
	}

	rows, werr := p.storageRows(ip, community)
	if werr == nil {
		for _, r := range rows {
			d := strings.ToLower(r.descr)
			if strings.Contains(d, "memory") || strings.Contains(d, "ram") {
				s.Memory.TotalBytes = r.size * r.units
				s.Memory.UsedBytes = r.used * r.units
				if s.Memory.TotalBytes > 0 {
					s.Memory.UsagePercent = roundHalfUp(100 * float64(s.Memory.UsedBytes) / float64(s.Memory.TotalBytes))
				}
				s.Reachable = true
				return
			}
		}
	}
	s.AddError("memory: no UCD or host-resources source available")
}

// collectDisk aggregates host-resources storage rows that look like a
// filesystem mount.
func (p *Probe) collectDisk(ctx context.Context, ip, community string, s *model.Sample) {
	rows, err := p.storageRows(ip, community)
	if err != nil {
		s.AddError("disk: %v", err)
		return
	}
	var total, used uint64
	matched := false
	for _, r := range rows {
		d := strings.ToLower(r.descr)
		if strings.Contains(d, "/") || strings.Contains(d, "c:") || strings.Contains(d, "disk") {
			total += r.size * r.units
			used += r.used * r.units
			matched = true
		}
	}
	if !matched {
		s.AddError("disk: no storage rows matched a filesystem description")
		return
	}
	s.Disk.TotalBytes = total
	s.Disk.UsedBytes = used
	if total > 0 {
		s.Disk.UsagePercent = roundHalfUp(100 * float64(used) / float64(total))
	}
	s.Reachable = true
}

type storageRow struct {
	descr      string
	units      uint64
	size, used uint64
}

func (p *Probe) storageRows(ip, community string) ([]storageRow, error) {
	rows := map[string]*storageRow{}
	err := p.walk(ip, community, oidHrStorageTable, func(v gosnmp.SnmpPDU) error {
		idx, col, ok := splitTableOid(v.Name, oidHrStorageTable)
		if !ok {
			return nil
		}
		r, ok := rows[idx]
		if !ok {
			r = &storageRow{}
			rows[idx] = r
		}
		switch col {
		case hrStorageDescr:
			r.descr = pduString(v)
		case hrStorageAllocationUnits:
			r.units = pduUint(v)
		case hrStorageSize:
			r.size = pduUint(v)
		case hrStorageUsed:
			r.used = pduUint(v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]storageRow, 0, len(rows))
	for _, r := range rows {
		if r.units == 0 {
			r.units = 1
		}
		out = append(out, *r)
	}
	return out, nil
}

func (p *Probe) collectInterfaces(ctx context.Context, ip, community string, s *model.Sample) {
	type row struct {
		idx                                   int
		descr, typ                            string
		speed                                 uint64
		mac                                   string
		admin, oper                           string
		inOctets, outOctets                   uint64
	}
	rows := map[string]*row{}
	err := p.walk(ip, community, oidIfTable, func(v gosnmp.SnmpPDU) error {
		idx, col, ok := splitTableOid(v.Name, oidIfTable)
		if !ok {
			return nil
		}
		r, ok := rows[idx]
		if !ok {
			r = &row{}
			rows[idx] = r
		}
		switch col {
		case ifDescr:
			r.descr = pduString(v)
		case ifType:
			r.typ = fmt.Sprintf("%d", pduUint(v))
		case ifSpeed:
			r.speed = pduUint(v)
		case ifPhysAddress:
			r.mac = pduString(v)
		case ifAdminStatus:
			r.admin = ifStatusString(pduUint(v))
		case ifOperStatus:
			r.oper = ifStatusString(pduUint(v))
		case ifInOctets:
			r.inOctets = pduUint(v)
		case ifOutOctets:
			r.outOctets = pduUint(v)
		}
		return nil
	})
	if err != nil {
		s.AddError("interfaces: %v", err)
		return
	}
	now := time.Now().UTC()
	for idxStr, r := range rows {
		var idx int
		fmt.Sscanf(idxStr, "%d", &idx)
		s.Interfaces = append(s.Interfaces, model.NetworkInterface{
			Index:       idx,
			Name:        r.descr,
			Description: r.descr,
			Type:        r.typ,
			Speed:       r.speed,
			AdminStatus: r.admin,
			OperStatus:  r.oper,
			InOctets:    r.inOctets,
			OutOctets:   r.outOctets,
			Timestamp:   now,
		})
	}
	if len(s.Interfaces) > 0 {
		s.Reachable = true
	}
}

func ifStatusString(v uint64) string {
	switch v {
	case 1:
		return "up"
	case 2:
		return "down"
	default:
		return "testing"
	}
}

// splitTableOid extracts the table row index and column for a
// returned OID like root.column.index.
func splitTableOid(oid, root string) (idx string, col int, ok bool) {
	oid = strings.TrimPrefix(oid, ".")
	root = strings.TrimPrefix(root, ".")
	if !strings.HasPrefix(oid, root+".") {
		return "", 0, false
	}
	rest := strings.TrimPrefix(oid, root+".")
	parts := strings.SplitN(rest, ".", 2)
	if len(parts) != 2 {
		return "", 0, false
	}
	fmt.Sscanf(parts[0], "%d", &col)
	return parts[1], col, true
}

func pduString(v gosnmp.SnmpPDU) string {
	switch val := v.Value.(type) {
	case []byte:
		return string(val)
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

func pduUint(v gosnmp.SnmpPDU) uint64 {
	n := gosnmp.ToBigInt(v.Value)
	if n == nil {
		return 0
	}
	return n.Uint64()
}

func pduFloat(v gosnmp.SnmpPDU) float64 {
	return float64(pduUint(v))
}

func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}
