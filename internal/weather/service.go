package weather

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/city-weather/internal/logger"
)

// DefaultPollInterval is how often polling refreshes the selected city.
const DefaultPollInterval = 60 * time.Second

// ServiceConfig bundles the Service collaborators.
type ServiceConfig struct {
	Client       Client
	Catalog      *Catalog
	Poller       Poller
	Reachability Reachability
	PollInterval time.Duration
	// InitialCity defaults to the first catalog entry.
	InitialCity *City
	Logger      logger.Logger
}

type fetchResult struct {
	generation uint64
	fetchID    string
	weather    Weather
	err        error
}

// Service owns the observable weather state. All mutation happens on a single
// goroutine; public methods enqueue work onto it and return.
type Service struct {
	client   Client
	catalog  *Catalog
	poller   Poller
	reach    Reachability
	interval time.Duration
	log      logger.Logger

	cmds    chan func()
	results chan fetchResult
	ticks   chan struct{}
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once

	// Loop-owned.
	state       State
	generation  uint64
	subscribers map[chan State]struct{}
}

// NewService builds a Service and starts its loop. The loop immediately
// starts consuming reachability updates.
func NewService(cfg ServiceConfig) *Service {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}

	initial := catalog.Default()
	if cfg.InitialCity != nil {
		initial = *cfg.InitialCity
	}

	s := &Service{
		client:      cfg.Client,
		catalog:     catalog,
		poller:      cfg.Poller,
		reach:       cfg.Reachability,
		interval:    interval,
		log:         log.WithField("component", "weather_service"),
		cmds:        make(chan func()),
		results:     make(chan fetchResult),
		ticks:       make(chan struct{}, 1),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
		state:       State{SelectedCity: initial},
		subscribers: make(map[chan State]struct{}),
	}

	go s.loop()
	return s
}

func (s *Service) loop() {
	defer close(s.stopped)

	var updates <-chan bool
	if s.reach != nil {
		updates = s.reach.Updates()
	}

	for {
		select {
		case <-s.done:
			for ch := range s.subscribers {
				close(ch)
			}
			s.subscribers = nil
			return
		case fn := <-s.cmds:
			fn()
		case r := <-s.results:
			s.applyResult(r)
		case <-s.ticks:
			s.log.Debug("Polling tick")
			s.fetch("poll")
		case up, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			s.setNetwork(up)
		}
	}
}

// do runs fn on the loop goroutine and waits until it has run.
func (s *Service) do(fn func()) error {
	ran := make(chan struct{})
	select {
	case s.cmds <- func() { fn(); close(ran) }:
		<-ran
		return nil
	case <-s.done:
		return ErrClosed
	}
}

// Catalog exposes the city catalog backing the service.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// State returns a snapshot of the current state.
func (s *Service) State() State {
	var st State
	if err := s.do(func() { st = s.state.clone() }); err != nil {
		return State{}
	}
	return st
}

// Subscribe returns a channel receiving a snapshot after every state change,
// starting with the current one. Slow readers only see the latest snapshot.
// The channel is closed by cancel or when the service is closed.
func (s *Service) Subscribe() (<-chan State, func(), error) {
	ch := make(chan State, 1)
	err := s.do(func() {
		s.subscribers[ch] = struct{}{}
		ch <- s.state.clone()
	})
	if err != nil {
		return nil, nil, err
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			_ = s.do(func() {
				if _, ok := s.subscribers[ch]; ok {
					delete(s.subscribers, ch)
					close(ch)
				}
			})
		})
	}
	return ch, cancel, nil
}

// SelectCity changes the selected city and fetches its weather. Cities
// outside the catalog are rejected with ErrUnknownCity.
func (s *Service) SelectCity(city City) error {
	known, err := s.catalog.Lookup(city.ID)
	if err != nil {
		return err
	}
	return s.do(func() {
		s.log.Infof("Selected city %s", known.Name)
		s.state.SelectedCity = known
		s.publish()
		s.fetch("city_change")
	})
}

// FetchWeather fetches the selected city unless the network is down, in
// which case the error message is set and no request is made.
func (s *Service) FetchWeather() error {
	return s.do(func() { s.fetch("manual") })
}

// RetryFetch is the user-initiated retry after a failure. It is gated
// exactly like FetchWeather.
func (s *Service) RetryFetch() error {
	return s.do(func() { s.fetch("retry") })
}

// StartPolling arms the periodic refresh. It does nothing while the network
// is unavailable and does not arm itself later.
func (s *Service) StartPolling() error {
	var err error
	doErr := s.do(func() {
		if !s.state.IsNetworkAvailable {
			s.log.Info("Polling not started: network unavailable")
			return
		}
		if s.state.IsPolling || s.poller == nil {
			return
		}
		if err = s.poller.Start(s.interval, s.tick); err != nil {
			s.log.Errorf("Failed to start polling: %v", err)
			return
		}
		s.state.IsPolling = true
		s.publish()
	})
	if doErr != nil {
		return doErr
	}
	return err
}

// StopPolling disarms the periodic refresh. Safe to call at any time.
func (s *Service) StopPolling() error {
	return s.do(func() {
		if !s.state.IsPolling {
			return
		}
		s.poller.Stop()
		s.state.IsPolling = false
		s.publish()
	})
}

// Close stops polling and the reachability subscription and ends the loop.
// In-flight fetches complete but their results are discarded.
func (s *Service) Close() {
	s.once.Do(func() {
		close(s.done)
		<-s.stopped
		if s.poller != nil {
			s.poller.Stop()
		}
		if s.reach != nil {
			s.reach.Stop()
		}
		s.log.Info("Weather service closed")
	})
}

// tick is called from the poller goroutine. Ticks that arrive while one is
// already pending are coalesced.
func (s *Service) tick() {
	select {
	case s.ticks <- struct{}{}:
	default:
	}
}

// Loop-only helpers below.

func (s *Service) fetch(trigger string) {
	if !s.state.IsNetworkAvailable {
		s.log.Warnf("Fetch (%s) skipped: %s", trigger, NoNetworkMessage)
		s.state.IsLoading = false
		s.state.ErrorMessage = NoNetworkMessage
		s.publish()
		return
	}

	s.generation++
	gen := s.generation
	fetchID := uuid.NewString()
	city := s.state.SelectedCity
	coords := s.catalog.CoordinatesOf(city)

	s.state.IsLoading = true
	s.state.ErrorMessage = ""
	s.publish()

	log := s.log.WithFields(map[string]interface{}{
		"fetch_id":   fetchID,
		"generation": gen,
		"trigger":    trigger,
		"city":       city.ID,
	})
	log.Debug("Fetch started")

	go func() {
		w, err := s.client.Fetch(context.Background(), coords)
		select {
		case s.results <- fetchResult{generation: gen, fetchID: fetchID, weather: w, err: err}:
		case <-s.done:
			log.Debug("Service closed; dropping fetch result")
		}
	}()
}

func (s *Service) applyResult(r fetchResult) {
	log := s.log.WithFields(map[string]interface{}{
		"fetch_id":   r.fetchID,
		"generation": r.generation,
	})

	if r.generation != s.generation {
		log.Debugf("Dropping stale result, latest generation is %d", s.generation)
		return
	}

	s.state.IsLoading = false
	if r.err != nil {
		s.state.ErrorMessage = Describe(r.err)
		log.Warnf("Fetch failed: %s", s.state.ErrorMessage)
	} else {
		w := r.weather
		s.state.Weather = &w
		s.state.ErrorMessage = ""
		log.Infof("Fetched %.1f°C for %s", w.Temperature, w.City)
	}
	s.publish()
}

func (s *Service) setNetwork(up bool) {
	was := s.state.IsNetworkAvailable
	if was == up {
		return
	}
	s.state.IsNetworkAvailable = up
	s.log.Infof("Network available: %v", up)
	s.publish()

	if !was && up && s.state.Weather == nil {
		s.fetch("network_recovery")
	}
}

// publish hands every subscriber the latest snapshot, replacing any unread one.
func (s *Service) publish() {
	for ch := range s.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- s.state.clone()
	}
}
