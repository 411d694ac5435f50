package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/city-weather/internal/logger"
	"github.com/i474232898/city-weather/internal/weather"
)

const DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

// OpenWeatherConfig configures an OpenWeatherClient.
type OpenWeatherConfig struct {
	BaseURL string
	APIKey  string
	Breaker BreakerConfig
	// Now stamps readings; defaults to time.Now.
	Now func() time.Time
}

// OpenWeatherClient implements weather.Client for OpenWeatherMap's current
// weather endpoint.
type OpenWeatherClient struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
	now     func() time.Time
	log     logger.Logger
}

func NewOpenWeatherClient(client *http.Client, cfg OpenWeatherConfig, log logger.Logger) *OpenWeatherClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	const name = "openweathermap"
	return &OpenWeatherClient{
		name:    name,
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  client,
		circuit: newBreaker(name, cfg.Breaker),
		now:     now,
		log: log.WithFields(map[string]interface{}{
			"component": "weather_client",
			"provider":  name,
		}),
	}
}

func (p *OpenWeatherClient) Name() string {
	return p.name
}

// Fetch performs one GET /weather for coords. Transport problems come back as
// network errors, payloads that do not match the expected shape as decoding
// errors.
func (p *OpenWeatherClient) Fetch(ctx context.Context, coords weather.Coordinates) (weather.Weather, error) {
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("lat", strconv.FormatFloat(coords.Lat, 'f', -1, 64))
		values.Set("lon", strconv.FormatFloat(coords.Lon, 'f', -1, 64))
		values.Set("appid", p.apiKey)
		values.Set("units", "metric")

		u := fmt.Sprintf("%s/weather?%s", p.baseURL, values.Encode())
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-type", "application/json")
		return req, nil
	}

	p.log.Debugf("Fetching weather for lat=%v lon=%v", coords.Lat, coords.Lon)

	body, err := doRequest(ctx, p.client, p.circuit, buildRequest)
	if err != nil {
		p.log.Warnf("Request failed: %s", logger.FormatError(err))
		return weather.Weather{}, weather.NewNetworkError(err)
	}

	reading, err := decodeReading(body)
	if err != nil {
		p.log.Warnf("Unexpected payload: %s", logger.FormatError(err))
		return weather.Weather{}, weather.NewDecodingError(err)
	}

	w := reading.ToWeather(p.now())
	p.log.Debugf("Fetched %.1f°C for %s", w.Temperature, w.City)
	return w, nil
}

func decodeReading(body []byte) (*weather.RawReading, error) {
	var raw weather.RawReading
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if err := raw.Validate(); err != nil {
		return nil, err
	}
	return &raw, nil
}
