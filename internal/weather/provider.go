package weather

import (
	"context"
	"time"
)

// RawReading is the subset of the provider payload the client relies on.
// Pointer fields make a missing key distinguishable from a zero value.
type RawReading struct {
	Main *struct {
		Temp *float64 `json:"temp" validate:"required"`
	} `json:"main" validate:"required"`
	Name *string  `json:"name" validate:"required"`
	Dt   *float64 `json:"dt" validate:"required"`
}

// Validate reports missing required fields.
func (r *RawReading) Validate() error {
	return validate.Struct(r)
}

// ToWeather projects r into a Weather stamped with capturedAt. The provider's
// dt is deliberately ignored: it does not change on every poll.
func (r *RawReading) ToWeather(capturedAt time.Time) Weather {
	return Weather{
		City:        *r.Name,
		Temperature: *r.Main.Temp,
		LastUpdated: capturedAt,
	}
}

// Client performs one request to the weather provider. Errors are always
// *FetchError.
type Client interface {
	Fetch(ctx context.Context, coords Coordinates) (Weather, error)
}

// Poller arms a repeating trigger.
type Poller interface {
	Start(interval time.Duration, job func()) error
	Stop()
}

// Reachability reports network availability changes.
type Reachability interface {
	Updates() <-chan bool
	Stop()
}
