package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/i474232898/city-weather/internal/weather"
)

type MockClient struct {
	mock.Mock
}

func (m *MockClient) Fetch(ctx context.Context, coords weather.Coordinates) (weather.Weather, error) {
	args := m.Called(ctx, coords)
	return args.Get(0).(weather.Weather), args.Error(1)
}

// FakePoller records Start/Stop calls and lets tests fire ticks by hand.
type FakePoller struct {
	mu       sync.Mutex
	job      func()
	interval time.Duration
	starts   int
	stops    int
	StartErr error
}

func (p *FakePoller) Start(interval time.Duration, job func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.StartErr != nil {
		return p.StartErr
	}
	p.job = job
	p.interval = interval
	p.starts++
	return nil
}

func (p *FakePoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.job = nil
	p.stops++
}

// Fire runs the armed job once. It reports false when nothing is armed.
func (p *FakePoller) Fire() bool {
	p.mu.Lock()
	job := p.job
	p.mu.Unlock()
	if job == nil {
		return false
	}
	job()
	return true
}

func (p *FakePoller) Armed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.job != nil
}

func (p *FakePoller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

func (p *FakePoller) Starts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.starts
}

// FakeReachability is a hand-driven reachability source.
type FakeReachability struct {
	updates chan bool
	once    sync.Once
	stopped chan struct{}
}

func NewFakeReachability() *FakeReachability {
	return &FakeReachability{
		updates: make(chan bool),
		stopped: make(chan struct{}),
	}
}

func (r *FakeReachability) Updates() <-chan bool {
	return r.updates
}

// Set delivers a reachability value; it blocks until the consumer reads it.
func (r *FakeReachability) Set(up bool) {
	select {
	case r.updates <- up:
	case <-r.stopped:
	}
}

func (r *FakeReachability) Stop() {
	r.once.Do(func() { close(r.stopped) })
}

func (r *FakeReachability) Stopped() bool {
	select {
	case <-r.stopped:
		return true
	default:
		return false
	}
}

// GatedClient blocks every Fetch until the test releases that call.
type GatedClient struct {
	mu    sync.Mutex
	calls []weather.Coordinates
	gates []chan Result
}

type Result struct {
	Weather weather.Weather
	Err     error
}

func NewGatedClient() *GatedClient {
	return &GatedClient{}
}

func (c *GatedClient) Fetch(ctx context.Context, coords weather.Coordinates) (weather.Weather, error) {
	gate := make(chan Result, 1)
	c.mu.Lock()
	c.calls = append(c.calls, coords)
	c.gates = append(c.gates, gate)
	c.mu.Unlock()

	r := <-gate
	return r.Weather, r.Err
}

// Release completes the i-th call (zero based) with r.
func (c *GatedClient) Release(i int, r Result) {
	c.mu.Lock()
	gate := c.gates[i]
	c.mu.Unlock()
	gate <- r
}

func (c *GatedClient) Calls() []weather.Coordinates {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]weather.Coordinates, len(c.calls))
	copy(out, c.calls)
	return out
}
