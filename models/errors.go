package models

import "fmt"

// AnalysisError is returned when a property analysis cannot be produced.
// Err carries the underlying cause when there is one.
type AnalysisError struct {
	Reason string
	Err    error
}

func (e *AnalysisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("analysis failed: %s: %v", e.Reason, e.Err)
	}
	return "analysis failed: " + e.Reason
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// ImageAnalysisError is returned by vision providers for unreadable or invalid images
type ImageAnalysisError struct {
	Image string
	Err   error
}

func (e *ImageAnalysisError) Error() string {
	if e.Image == "" {
		return fmt.Sprintf("image analysis: %v", e.Err)
	}
	return fmt.Sprintf("image analysis %q: %v", e.Image, e.Err)
}

func (e *ImageAnalysisError) Unwrap() error { return e.Err }

// PropertyLookupError is returned by lookup providers when an address cannot be resolved
type PropertyLookupError struct {
	Address string
	Err     error
}

func (e *PropertyLookupError) Error() string {
	return fmt.Sprintf("property lookup %q: %v", e.Address, e.Err)
}

func (e *PropertyLookupError) Unwrap() error { return e.Err }

// UnsupportedServiceError is returned when asked to price an unknown service
type UnsupportedServiceError struct {
	Service string
}

func (e *UnsupportedServiceError) Error() string {
	return fmt.Sprintf("unsupported service: %q", e.Service)
}

// AnalysisNotFoundError is returned when no analysis exists for an id
type AnalysisNotFoundError struct {
	ID string
}

func (e *AnalysisNotFoundError) Error() string {
	return fmt.Sprintf("property analysis not found: %s", e.ID)
}

// QuoteNotFoundError is returned when no quote exists for an id
type QuoteNotFoundError struct {
	ID string
}

func (e *QuoteNotFoundError) Error() string {
	return fmt.Sprintf("quote not found: %s", e.ID)
}

// InvalidStatusTransitionError is returned for unknown statuses or moves the workflow forbids
type InvalidStatusTransitionError struct {
	From QuoteStatus
	To   string
}

func (e *InvalidStatusTransitionError) Error() string {
	if e.From == "" {
		return fmt.Sprintf("invalid quote status %q", e.To)
	}
	return fmt.Sprintf("quote status cannot change from %s to %s", e.From, e.To)
}
