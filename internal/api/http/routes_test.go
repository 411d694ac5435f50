package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/city-weather/internal/logger"
	"github.com/i474232898/city-weather/internal/testutils"
	"github.com/i474232898/city-weather/internal/weather"
)

var londonReading = weather.Weather{City: "London", Temperature: 25.5, LastUpdated: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)}

type fixture struct {
	svc    *weather.Service
	client *testutils.MockClient
	poller *testutils.FakePoller
	reach  *testutils.FakeReachability
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		client: &testutils.MockClient{},
		poller: &testutils.FakePoller{},
		reach:  testutils.NewFakeReachability(),
	}
	f.client.On("Fetch", mock.Anything, mock.Anything).Return(londonReading, nil)
	f.svc = weather.NewService(weather.ServiceConfig{
		Client:       f.client,
		Poller:       f.poller,
		Reachability: f.reach,
	})
	t.Cleanup(f.svc.Close)
	return f
}

func decodeState(t *testing.T, resp *http.Response) weather.State {
	t.Helper()
	var st weather.State
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	return st
}

func TestHealth(t *testing.T) {
	app := NewApp(newFixture(t).svc, logger.Discard())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestLogging(t *testing.T) {
	f := newFixture(t)

	var debugOut bytes.Buffer
	app := NewApp(f.svc, logger.NewWithWriter("debug", &debugOut))
	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Contains(t, debugOut.String(), "GET /health")

	var infoOut bytes.Buffer
	app = NewApp(f.svc, logger.NewWithWriter("info", &infoOut))
	_, err = app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.NotContains(t, infoOut.String(), "/health")
}

func TestCities(t *testing.T) {
	app := NewApp(newFixture(t).svc, logger.Discard())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/cities", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cities []weather.City
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cities))
	assert.Equal(t, []weather.City{weather.London, weather.Helsinki}, cities)
}

func TestWeatherState(t *testing.T) {
	f := newFixture(t)
	app := NewApp(f.svc, logger.Discard())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/weather", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	st := decodeState(t, resp)
	assert.Equal(t, weather.London, st.SelectedCity)
	assert.False(t, st.IsNetworkAvailable)
	assert.Nil(t, st.Weather)
}

func TestFetchWithoutNetwork(t *testing.T) {
	f := newFixture(t)
	app := NewApp(f.svc, logger.Discard())

	for _, path := range []string{"/api/v1/weather/fetch", "/api/v1/weather/retry"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, path, nil))
		require.NoError(t, err)
		require.Equal(t, http.StatusAccepted, resp.StatusCode, path)

		st := decodeState(t, resp)
		assert.Equal(t, weather.NoNetworkMessage, st.ErrorMessage, path)
		assert.False(t, st.IsLoading, path)
	}
	f.client.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestSelectCity(t *testing.T) {
	testCases := []struct {
		name   string
		body   string
		status int
	}{
		{"by id", `{"city":"helsinki"}`, http.StatusAccepted},
		{"by display name", `{"city":"Helsinki"}`, http.StatusAccepted},
		{"unknown city", `{"city":"paris"}`, http.StatusNotFound},
		{"missing city", `{}`, http.StatusBadRequest},
		{"malformed body", `{"city":`, http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			app := NewApp(f.svc, logger.Discard())

			req := httptest.NewRequest(http.MethodPut, "/api/v1/weather/city", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)

			if tc.status == http.StatusAccepted {
				assert.Equal(t, weather.Helsinki, decodeState(t, resp).SelectedCity)
				return
			}
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, true, body["error"])
			assert.Equal(t, weather.London, f.svc.State().SelectedCity)
		})
	}
}

func TestPolling(t *testing.T) {
	f := newFixture(t)
	app := NewApp(f.svc, logger.Discard())

	f.reach.Set(true)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/polling/start", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.True(t, decodeState(t, resp).IsPolling)
	assert.True(t, f.poller.Armed())

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/polling/stop", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.False(t, decodeState(t, resp).IsPolling)
	assert.False(t, f.poller.Armed())
}

func TestClosedService(t *testing.T) {
	f := newFixture(t)
	app := NewApp(f.svc, logger.Discard())
	f.svc.Close()

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/weather/fetch", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/weather/stream", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStream(t *testing.T) {
	f := newFixture(t)
	app := NewApp(f.svc, logger.Discard())

	go func() {
		f.reach.Set(true)
		time.Sleep(200 * time.Millisecond)
		f.svc.Close()
	}()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/weather/stream", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	events := strings.Split(strings.TrimSpace(string(body)), "\n\n")
	require.NotEmpty(t, events)

	var last weather.State
	for _, ev := range events {
		require.True(t, strings.HasPrefix(ev, "data: "), ev)
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(ev, "data: ")), &last))
	}
	require.NotNil(t, last.Weather)
	assert.Equal(t, "London", last.Weather.City)
}

func TestStreamKeepAlive(t *testing.T) {
	prev := streamKeepAlive
	streamKeepAlive = 20 * time.Millisecond
	t.Cleanup(func() { streamKeepAlive = prev })

	f := newFixture(t)
	app := NewApp(f.svc, logger.Discard())

	go func() {
		time.Sleep(200 * time.Millisecond)
		f.svc.Close()
	}()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/weather/stream", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	// The state never changes, so only the initial snapshot and comments
	// are written.
	assert.Equal(t, 1, strings.Count(string(body), "data: "))
	assert.Contains(t, string(body), ": ping\n\n")
}
