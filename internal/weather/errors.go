package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownCity is returned when a city key is not part of the catalog.
	ErrUnknownCity = errors.New("unknown city")
	// ErrClosed is returned by operations on a closed Service.
	ErrClosed = errors.New("weather service closed")
)

// NoNetworkMessage is shown when a fetch is refused because the network is down.
const NoNetworkMessage = "No network connection available"

// ErrorKind classifies a failed fetch.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNetwork
	KindDecoding
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindDecoding:
		return "decoding"
	default:
		return "unknown"
	}
}

// FetchError is the only error type a Client returns.
type FetchError struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func NewNetworkError(err error) *FetchError {
	return &FetchError{Kind: KindNetwork, Detail: err.Error(), Err: err}
}

func NewDecodingError(err error) *FetchError {
	return &FetchError{Kind: KindDecoding, Detail: err.Error(), Err: err}
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindNetwork:
		return fmt.Sprintf("Network error: %s", e.Detail)
	case KindDecoding:
		return fmt.Sprintf("Decoding error: %s", e.Detail)
	default:
		return "Unknown error occurred"
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Describe renders err for display. Errors that are not a FetchError are
// reported as unknown.
func Describe(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Error()
	}
	return (&FetchError{Kind: KindUnknown}).Error()
}
