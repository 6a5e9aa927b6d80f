package entity

import (
	"fmt"
	"time"
)

// ProviderRequest is what the engine asks of every provider
type ProviderRequest struct {
	Origin        string
	Destination   string
	DepartureDate time.Time
	ReturnDate    *time.Time
	Passengers    Passengers
	UserID        string
}

// ProviderErrorKind classifies why a provider query failed
type ProviderErrorKind string

const (
	ProviderErrorTimeout   ProviderErrorKind = "timeout"
	ProviderErrorTransport ProviderErrorKind = "transport"
	ProviderErrorProvider  ProviderErrorKind = "provider"
)

// ProviderError is a typed provider failure
type ProviderError struct {
	Provider string
	Kind     ProviderErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
