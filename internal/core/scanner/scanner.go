// Package scanner sweeps an IP range for live hosts with bounded
// concurrency, emitting discovery events as it goes. A sweep runs in
// fixed-size batches with a short pause between them so a full /24
// does not flood the local segment.
package scanner

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the scanner's run state machine.
type State string

const (
	StateIdle          State = "idle"
	StateScanning      State = "scanning"
	StateIdleCompleted State = "idle_completed"
	StateIdleStopped   State = "idle_stopped"
	StateIdleError     State = "idle_error"
)

// PortTargets is the fixed list of ports probed when a sweep is asked
// to include port checks.
var PortTargets = []int{22, 23, 53, 80, 443, 161, 162, 3389}

// Options configures one Sweep.
type Options struct {
	TimeoutMS     int
	Concurrent    int
	IncludePorts  bool
	PortTimeoutMS int
}

// DefaultOptions returns the standard sweep settings.
func DefaultOptions() Options {
	return Options{TimeoutMS: 2000, Concurrent: 50, IncludePorts: false, PortTimeoutMS: 1000}
}

func (o Options) normalized() Options {
	if o.TimeoutMS <= 0 {
		o.TimeoutMS = 2000
	}
	if o.Concurrent <= 0 {
		o.Concurrent = 50
	}
	if o.PortTimeoutMS <= 0 {
		o.PortTimeoutMS = 1000
	}
	return o
}

// HostResult is one responsive host found during a sweep.
type HostResult struct {
	IP    string `json:"ip"`
	RTTms int64  `json:"rtt_ms"`
	Ports []int  `json:"ports,omitempty"`
}

// Event is a discrete scanner occurrence published to the event
// callback (and, by the engine, onward to the Broadcaster).
type Event struct {
	Type    string      `json:"type"` // scan_started | scan_progress | host_discovered | scan_completed | scan_stopped | scan_error
	Range   string      `json:"range,omitempty"`
	Percent int         `json:"percent,omitempty"`
	IP      string      `json:"ip,omitempty"`
	Host    *HostResult `json:"host,omitempty"`
	Total   int         `json:"total_scanned,omitempty"`
	Found   int         `json:"total_found,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// EventFunc receives scanner events as they occur.
type EventFunc func(Event)

// portCheck returns the open ports of ip, probing each target port
// with its own connect timeout.
type portCheck func(ctx context.Context, ip string, timeout time.Duration) []int

func defaultPortCheck(ctx context.Context, ip string, timeout time.Duration) []int {
	var open []int
	for _, port := range PortTargets {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(ip, strconv.Itoa(port)))
		if err == nil {
			conn.Close()
			open = append(open, port)
		}
	}
	return open
}

// liveCheck reports whether ip answers within timeout. Raw ICMP probes
// require elevated privileges not guaranteed on an operator's box, so
// liveness is a bounded TCP connect attempt across a short list of
// commonly-open ports — the same compromise the host OS's own ping
// fallback makes when ICMP is filtered.
type liveCheck func(ctx context.Context, ip string, timeout time.Duration) (time.Duration, bool)

func defaultLiveCheck(ctx context.Context, ip string, timeout time.Duration) (time.Duration, bool) {
	probePorts := []int{80, 443, 22, 161, 445, 3389}
	start := time.Now()
	deadline := time.Now().Add(timeout)
	for _, port := range probePorts {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		d := net.Dialer{Timeout: remaining}
		conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(ip, strconv.Itoa(port)))
		if err == nil {
			conn.Close()
			return time.Since(start), true
		}
	}
	return 0, false
}

// Scanner sweeps IP ranges for live hosts.
type Scanner struct {
	logger   *zap.SugaredLogger
	live     liveCheck
	ports    portCheck
	mu       sync.Mutex
	state    State
	stopFlag bool
}

// New builds a Scanner.
func New(logger *zap.SugaredLogger) *Scanner {
	return &Scanner{logger: logger, live: defaultLiveCheck, ports: defaultPortCheck, state: StateIdle}
}

// State returns the current scan state.
func (s *Scanner) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stop requests the in-progress sweep end at the next batch boundary.
// In-flight probes are not interrupted.
func (s *Scanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateScanning {
		s.stopFlag = true
	}
}

// ParseRange expands a range specification into the ordered list of
// IPv4 addresses it denotes. Three forms are accepted: a single host
// (A.B.C.D), a last-octet span (A.B.C.D-N), and a /24 CIDR block
// (A.B.C.0/24, yielding the 254 usable hosts).
func ParseRange(spec string) ([]string, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("empty range")
	}

	if idx := strings.Index(spec, "/"); idx >= 0 {
		base := spec[:idx]
		bits, err := strconv.Atoi(spec[idx+1:])
		if err != nil || bits != 24 {
			return nil, fmt.Errorf("only /24 ranges are supported: %q", spec)
		}
		octets, err := parseOctets(base)
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, 254)
		for i := 1; i <= 254; i++ {
			out = append(out, fmt.Sprintf("%d.%d.%d.%d", octets[0], octets[1], octets[2], i))
		}
		return out, nil
	}

	if idx := strings.Index(spec, "-"); idx >= 0 {
		base := spec[:idx]
		endStr := spec[idx+1:]
		octets, err := parseOctets(base)
		if err != nil {
			return nil, err
		}
		end, err := strconv.Atoi(endStr)
		if err != nil || end < 0 || end > 255 {
			return nil, fmt.Errorf("invalid range end %q", endStr)
		}
		if end < octets[3] {
			return nil, fmt.Errorf("range end %d before start %d", end, octets[3])
		}
		out := make([]string, 0, end-octets[3]+1)
		for i := octets[3]; i <= end; i++ {
			out = append(out, fmt.Sprintf("%d.%d.%d.%d", octets[0], octets[1], octets[2], i))
		}
		return out, nil
	}

	octets, err := parseOctets(spec)
	if err != nil {
		return nil, err
	}
	return []string{fmt.Sprintf("%d.%d.%d.%d", octets[0], octets[1], octets[2], octets[3])}, nil
}

func parseOctets(ip string) ([4]int, error) {
	var out [4]int
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return out, fmt.Errorf("invalid IPv4 address %q", ip)
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return out, fmt.Errorf("invalid octet %q in %q", p, ip)
		}
		out[i] = n
	}
	return out, nil
}

// RangeValidation is the dry-run summary of a range specification.
type RangeValidation struct {
	Valid     bool     `json:"valid"`
	Error     string   `json:"error,omitempty"`
	TotalIPs  int      `json:"total_ips,omitempty"`
	FirstIP   string   `json:"first_ip,omitempty"`
	LastIP    string   `json:"last_ip,omitempty"`
	SampleIPs []string `json:"sample_ips,omitempty"`
}

// ValidateRange validates spec without scanning, returning a summary
// with up to five sample addresses.
func ValidateRange(spec string) RangeValidation {
	ips, err := ParseRange(spec)
	if err != nil {
		return RangeValidation{Valid: false, Error: err.Error()}
	}
	sample := ips
	if len(sample) > 5 {
		sample = sample[:5]
	}
	return RangeValidation{
		Valid:     true,
		TotalIPs:  len(ips),
		FirstIP:   ips[0],
		LastIP:    ips[len(ips)-1],
		SampleIPs: append([]string{}, sample...),
	}
}

// Sweep scans rng with opts, emitting events via emit. Only one sweep
// may run at a time; a second call while scanning is rejected. A
// cancelled ctx ends the sweep at the next batch boundary, like Stop.
// When opts.IncludePorts is set, each responsive host's ports are
// probed before its host_discovered event fires, so the event carries
// the same record the sweep returns.
func (s *Scanner) Sweep(ctx context.Context, rng string, opts Options, emit EventFunc) ([]HostResult, error) {
	s.mu.Lock()
	if s.state == StateScanning {
		s.mu.Unlock()
		return nil, fmt.Errorf("scan already in progress")
	}
	s.state = StateScanning
	s.stopFlag = false
	s.mu.Unlock()

	opts = opts.normalized()
	ips, err := ParseRange(rng)
	if err != nil {
		s.mu.Lock()
		s.state = StateIdleError
		s.mu.Unlock()
		if emit != nil {
			emit(Event{Type: "scan_error", Range: rng, Error: err.Error()})
		}
		return nil, err
	}

	if emit != nil {
		emit(Event{Type: "scan_started", Range: rng, Total: len(ips)})
	}

	var results []HostResult
	timeout := time.Duration(opts.TimeoutMS) * time.Millisecond
	portTimeout := time.Duration(opts.PortTimeoutMS) * time.Millisecond
	scanned := 0

	for batchStart := 0; batchStart < len(ips); batchStart += opts.Concurrent {
		s.mu.Lock()
		stopped := s.stopFlag
		s.mu.Unlock()
		if stopped {
			break
		}

		end := batchStart + opts.Concurrent
		if end > len(ips) {
			end = len(ips)
		}
		batch := ips[batchStart:end]

		var wg sync.WaitGroup
		var mu sync.Mutex
		for _, ip := range batch {
			wg.Add(1)
			go func(ip string) {
				defer wg.Done()
				rtt, alive := s.live(ctx, ip, timeout)
				mu.Lock()
				scanned++
				percent := scanned * 100 / len(ips)
				mu.Unlock()
				if emit != nil {
					emit(Event{Type: "scan_progress", Range: rng, Percent: percent, IP: ip})
				}
				if alive {
					hr := HostResult{IP: ip, RTTms: rtt.Milliseconds()}
					if opts.IncludePorts {
						hr.Ports = s.ports(ctx, ip, portTimeout)
					}
					mu.Lock()
					results = append(results, hr)
					mu.Unlock()
					if emit != nil {
						emit(Event{Type: "host_discovered", Range: rng, IP: ip, Host: &hr})
					}
				}
			}(ip)
		}
		wg.Wait()

		// congestion avoidance between batches
		if end < len(ips) {
			select {
			case <-ctx.Done():
				s.mu.Lock()
				s.stopFlag = true
				s.mu.Unlock()
			case <-time.After(100 * time.Millisecond):
			}
		}
	}

	s.mu.Lock()
	stopped := s.stopFlag
	if stopped {
		s.state = StateIdleStopped
	} else {
		s.state = StateIdleCompleted
	}
	s.mu.Unlock()

	if emit != nil {
		if stopped {
			emit(Event{Type: "scan_stopped", Range: rng, Total: len(ips), Found: len(results)})
		} else {
			emit(Event{Type: "scan_completed", Range: rng, Total: len(ips), Found: len(results)})
		}
	}

	return results, nil
}

