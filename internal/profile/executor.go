package profile

import (
	"fmt"
	"time"

	"github.com/samber/lo"
)

// ExecutorType identifies the arrival-rate executor a profile drives.
type ExecutorType string

const (
	// TypeConstantArrivalRate maintains a fixed iteration rate.
	TypeConstantArrivalRate ExecutorType = "constant-arrival-rate"

	// TypeRampingArrivalRate ramps iteration rate up and down.
	TypeRampingArrivalRate ExecutorType = "ramping-arrival-rate"
)

// Stage defines one segment of a ramping schedule.
type Stage struct {
	// Target is the iteration rate reached at the end of the stage.
	Target float64 `json:"target" yaml:"target"`

	// Duration of this stage.
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// ExecutorProfile is the concrete schedule handed to the load generator.
type ExecutorProfile struct {
	Type ExecutorType `json:"executor" yaml:"executor"`

	// Constant arrival rate
	Rate     float64       `json:"rate,omitempty" yaml:"rate,omitempty"`
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`

	// Ramping arrival rate
	StartRate float64 `json:"startRate,omitempty" yaml:"startRate,omitempty"`
	Stages    []Stage `json:"stages,omitempty" yaml:"stages,omitempty"`

	TimeUnit        time.Duration `json:"timeUnit" yaml:"timeUnit"`
	PreAllocatedVUs int           `json:"preAllocatedVUs" yaml:"preAllocatedVUs"`
	MaxVUs          int           `json:"maxVUs" yaml:"maxVUs"`
}

// ValidationError represents a profile validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Validate checks the profile invariants.
func (p *ExecutorProfile) Validate() error {
	if p.TimeUnit <= 0 {
		return &ValidationError{Field: "timeUnit", Message: "timeUnit must be > 0"}
	}
	if p.PreAllocatedVUs < 0 {
		return &ValidationError{Field: "preAllocatedVUs", Message: "preAllocatedVUs must be >= 0"}
	}
	if p.MaxVUs < 1 {
		return &ValidationError{Field: "maxVUs", Message: "maxVUs must be >= 1"}
	}
	if p.PreAllocatedVUs > p.MaxVUs {
		return &ValidationError{Field: "preAllocatedVUs", Message: "preAllocatedVUs must be <= maxVUs"}
	}

	switch p.Type {
	case TypeConstantArrivalRate:
		if p.Rate <= 0 {
			return &ValidationError{Field: "rate", Message: "rate must be > 0"}
		}
		if p.Duration <= 0 {
			return &ValidationError{Field: "duration", Message: "duration must be > 0"}
		}

	case TypeRampingArrivalRate:
		if len(p.Stages) == 0 {
			return &ValidationError{Field: "stages", Message: "at least one stage is required"}
		}
		if p.StartRate < 0 {
			return &ValidationError{Field: "startRate", Message: "startRate must be >= 0"}
		}
		for i, s := range p.Stages {
			if s.Target < 0 {
				return &ValidationError{Field: fmt.Sprintf("stages[%d].target", i), Message: "target must be >= 0"}
			}
			if s.Duration <= 0 {
				return &ValidationError{Field: fmt.Sprintf("stages[%d].duration", i), Message: "duration must be > 0"}
			}
		}
		if last := p.Stages[len(p.Stages)-1]; last.Target != 0 {
			return &ValidationError{Field: "stages", Message: "final stage must ramp to 0"}
		}

	default:
		return &ValidationError{Field: "executor", Message: fmt.Sprintf("unknown executor type %q", p.Type)}
	}

	return nil
}

// TotalDuration returns the scheduled run length.
func (p *ExecutorProfile) TotalDuration() time.Duration {
	if p.Type == TypeConstantArrivalRate {
		return p.Duration
	}
	return lo.SumBy(p.Stages, func(s Stage) time.Duration { return s.Duration })
}

// Targets returns the stage target rates in order.
func (p *ExecutorProfile) Targets() []float64 {
	return lo.Map(p.Stages, func(s Stage, _ int) float64 { return s.Target })
}
