// Package reachability watches whether the weather provider can be reached
// over the network.
package reachability

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/i474232898/city-weather/internal/logger"
	"github.com/i474232898/city-weather/internal/scheduler"
)

const (
	stateUnknown int32 = iota - 1
	stateDown
	stateUp
)

// ProbeFunc reports whether the network path is usable.
type ProbeFunc func(ctx context.Context) bool

// DialProbe returns a ProbeFunc that opens and closes a TCP connection to addr.
func DialProbe(addr string) ProbeFunc {
	return func(ctx context.Context) bool {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}
}

// Config controls probing cadence.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Monitor probes periodically and publishes the result on Updates whenever it
// changes. The first probe result is always published.
type Monitor struct {
	probe   ProbeFunc
	timeout time.Duration
	sched   *scheduler.Scheduler
	log     logger.Logger

	state   *atomic.Int32
	updates chan bool
	stop    chan struct{}
	once    sync.Once
	probeMu sync.Mutex
}

// NewMonitor starts probing immediately.
func NewMonitor(probe ProbeFunc, cfg Config, log logger.Logger) (*Monitor, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}

	m := &Monitor{
		probe:   probe,
		timeout: cfg.Timeout,
		sched:   scheduler.New("reachability", log),
		log:     log.WithField("component", "reachability"),
		state:   atomic.NewInt32(stateUnknown),
		updates: make(chan bool, 1),
		stop:    make(chan struct{}),
	}

	if err := m.sched.Start(cfg.Interval, m.check); err != nil {
		return nil, err
	}
	go m.check()

	return m, nil
}

// Updates delivers reachability changes.
func (m *Monitor) Updates() <-chan bool {
	return m.updates
}

// Stop ends probing. Pending deliveries are abandoned.
func (m *Monitor) Stop() {
	m.once.Do(func() {
		close(m.stop)
		m.sched.Stop()
		m.log.Info("stopped")
	})
}

func (m *Monitor) check() {
	// Probes are serialized so results are published in the order observed.
	m.probeMu.Lock()
	defer m.probeMu.Unlock()

	select {
	case <-m.stop:
		return
	default:
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	up := m.probe(ctx)
	cancel()

	next := stateDown
	if up {
		next = stateUp
	}
	if prev := m.state.Swap(next); prev == next {
		return
	}

	m.log.Infof("network reachable: %v", up)
	select {
	case m.updates <- up:
	case <-m.stop:
	}
}
