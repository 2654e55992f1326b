package config

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/wesleyorama2/loadcheck/internal/profile"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Path    string
	Message string
}

// Error returns the error message
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors collects every problem found in one pass.
type ValidationErrors []ValidationError

// Error joins the individual messages.
func (ve ValidationErrors) Error() string {
	msgs := make([]string, len(ve))
	for i, e := range ve {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the settings before any request is sent.
func (s *Settings) Validate() error {
	var errs ValidationErrors

	if _, err := profile.ParseScenario(s.Scenario); err != nil {
		errs = append(errs, ValidationError{
			Path:    KeyScenario,
			Message: fmt.Sprintf("must be %s or %s, got %q", profile.ConstantArrivalRate, profile.RampingArrivalRate, s.Scenario),
		})
	}

	if _, err := profile.ParseSubScenario(s.SubScenario); err != nil {
		errs = append(errs, ValidationError{
			Path:    KeySubScenario,
			Message: fmt.Sprintf("unknown sub-scenario %q", s.SubScenario),
		})
	}

	if s.Environment == "" {
		errs = append(errs, ValidationError{
			Path:    KeyEnvironment,
			Message: "environment is required",
		})
	}

	switch s.Method {
	case http.MethodGet, http.MethodPost:
	default:
		errs = append(errs, ValidationError{
			Path:    KeyMethod,
			Message: fmt.Sprintf("invalid method: %s", s.Method),
		})
	}

	if s.TargetRPS <= 0 {
		errs = append(errs, ValidationError{
			Path:    KeyTargetRPS,
			Message: "target rps must be positive",
		})
	}

	if s.TargetResponseMs <= 0 {
		errs = append(errs, ValidationError{
			Path:    KeyTargetResponseMs,
			Message: "target response time must be positive",
		})
	}

	if s.ConstantVUs < 0 {
		errs = append(errs, ValidationError{
			Path:    KeyConstantVUs,
			Message: "constant vus cannot be negative",
		})
	}

	if s.RequestTimeout <= 0 {
		errs = append(errs, ValidationError{
			Path:    KeyRequestTimeout,
			Message: "request timeout must be positive",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
