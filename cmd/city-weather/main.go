package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/i474232898/city-weather/internal/api/http"
	"github.com/i474232898/city-weather/internal/config"
	"github.com/i474232898/city-weather/internal/logger"
	"github.com/i474232898/city-weather/internal/reachability"
	"github.com/i474232898/city-weather/internal/scheduler"
	"github.com/i474232898/city-weather/internal/weather"
	"github.com/i474232898/city-weather/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	appLog := logger.New(cfg.LogLevel, cfg.Env)

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	client := providers.NewOpenWeatherClient(httpClient, providers.OpenWeatherConfig{
		BaseURL: cfg.OpenWeatherBaseURL,
		APIKey:  cfg.OpenWeatherAPIKey,
		Breaker: providers.BreakerConfig{
			Enabled:     cfg.BreakerEnabled,
			MaxFailures: cfg.BreakerMaxFailures,
			OpenTimeout: cfg.BreakerOpenTimeout,
		},
	}, appLog)

	catalog := weather.DefaultCatalog()
	initial, err := catalog.Lookup(cfg.DefaultCity)
	if err != nil {
		appLog.Fatalf("invalid DEFAULT_CITY: %v", err)
	}

	monitor, err := reachability.NewMonitor(reachability.DialProbe(cfg.ReachabilityAddr), reachability.Config{
		Interval: cfg.ReachabilityInterval,
		Timeout:  cfg.ReachabilityTimeout,
	}, appLog)
	if err != nil {
		appLog.Fatalf("failed to start reachability monitor: %v", err)
	}

	// Core service owning the observable state.
	service := weather.NewService(weather.ServiceConfig{
		Client:       client,
		Catalog:      catalog,
		Poller:       scheduler.New("polling", appLog),
		Reachability: monitor,
		PollInterval: cfg.PollInterval,
		InitialCity:  &initial,
		Logger:       appLog,
	})
	defer service.Close()

	// Polling is only armed while the network is up, so give the first
	// probe a chance to land before arming it.
	if !waitForNetwork(service, cfg.ReachabilityTimeout+time.Second) {
		appLog.Warn("network not reachable yet; polling stays off until started again")
	}

	// Same order as a screen appearing: arm polling, then load once.
	if err := service.StartPolling(); err != nil {
		appLog.Warnf("polling not started: %v", err)
	}
	if err := service.FetchWeather(); err != nil {
		appLog.Warnf("initial fetch not issued: %v", err)
	}

	app := httpapi.NewApp(service, appLog)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			appLog.Errorf("fiber server stopped: %v", err)
		}
	}()
	appLog.WithFields(map[string]interface{}{
		"port":     cfg.Port,
		"city":     initial.ID,
		"provider": client.Name(),
	}).Info("city-weather started")

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		appLog.Errorf("error during shutdown: %v", err)
	}
}

// waitForNetwork reports whether the service saw the network come up within
// limit.
func waitForNetwork(svc *weather.Service, limit time.Duration) bool {
	updates, cancel, err := svc.Subscribe()
	if err != nil {
		return false
	}
	defer cancel()

	timer := time.NewTimer(limit)
	defer timer.Stop()

	for {
		select {
		case st, ok := <-updates:
			if !ok {
				return false
			}
			if st.IsNetworkAvailable {
				return true
			}
		case <-timer.C:
			return false
		}
	}
}
