package weather

import (
	"time"
)

// Coordinates is a geographic position in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// City is one entry of the closed city set.
type City struct {
	ID       string      `json:"id" validate:"required"`
	Name     string      `json:"name" validate:"required"`
	Location Coordinates `json:"coordinates"`
}

// Coordinates returns the city's position.
func (c City) Coordinates() Coordinates {
	return c.Location
}

// Weather is a single reading for one city. LastUpdated is the moment the
// client captured the reading, not the provider's observation time.
type Weather struct {
	City        string    `json:"city"`
	Temperature float64   `json:"temperatureC"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// State is the observable orchestrator state. A nil Weather means no reading
// yet; an empty ErrorMessage means no error.
type State struct {
	SelectedCity       City     `json:"selectedCity"`
	Weather            *Weather `json:"weather,omitempty"`
	IsLoading          bool     `json:"isLoading"`
	ErrorMessage       string   `json:"errorMessage,omitempty"`
	IsNetworkAvailable bool     `json:"isNetworkAvailable"`
	IsPolling          bool     `json:"isPolling"`
}

// clone returns a copy that shares nothing mutable with s.
func (s State) clone() State {
	if s.Weather != nil {
		w := *s.Weather
		s.Weather = &w
	}
	return s
}
