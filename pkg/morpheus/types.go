package morpheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/openmorph/morphctl/pkg/telemetry"
)

// Entity is one member of a remote collection listing.
type Entity struct {
	// ID is the remote identifier. Its JSON type (number or string) is
	// preserved so identifiers substituted into payloads keep the type
	// the API produced.
	ID interface{} `json:"id"`

	// Name is the entity name used for lookups.
	Name string `json:"name"`
}

// Config configures a Client.
type Config struct {
	// Host is the API hostname. A scheme prefix is honored; bare hosts
	// default to https.
	Host string `validate:"required"`

	// Token is the bearer token for API authentication.
	Token string `validate:"required"`

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool

	// Timeout bounds each request. Zero means 30 seconds.
	Timeout time.Duration

	// Metrics receives per-call counters and latency histograms. Nil
	// disables recording.
	Metrics *telemetry.Metrics
}

// ErrNotFound is returned when a lookup matches no entity.
var ErrNotFound = errors.New("entity not found")

// APIError is a failed response from the remote service.
type APIError struct {
	// Code is the HTTP status code.
	Code int

	// Message is the error payload, favoring the service's msg/errors
	// fields when present.
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP [%d] %s", e.Code, e.Message)
}

// IsNotFound reports whether err represents a missing entity, either the
// ErrNotFound sentinel or an HTTP 404.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == 404
}
