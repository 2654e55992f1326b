// Package profile derives arrival-rate executor profiles from named load
// scenarios.
package profile

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/samber/lo"
)

// ErrInvalidScenario is returned for a scenario name outside the known set.
var ErrInvalidScenario = errors.New("invalid scenario")

// ErrInvalidSubScenario is returned for a sub-scenario outside the known set.
var ErrInvalidSubScenario = errors.New("invalid sub-scenario")

// Scenario selects the executor family.
type Scenario string

const (
	// ConstantArrivalRate holds a fixed iteration rate for a fixed duration.
	ConstantArrivalRate Scenario = "constant_arrival_rate"

	// RampingArrivalRate walks the iteration rate through stages.
	RampingArrivalRate Scenario = "ramping_arrival_rate"
)

// SubScenario selects the shape of the load within a scenario.
type SubScenario string

const (
	SubNone                SubScenario = ""
	SubSteadySmoke         SubScenario = "steady_smoke_test"
	SubSteadyStability     SubScenario = "steady_stability_test"
	SubSustainedThroughput SubScenario = "sustained_throughput_test"
	SubStress              SubScenario = "stress"
	SubSpike               SubScenario = "spike"
)

// ParseScenario converts a configuration string to a Scenario.
func ParseScenario(s string) (Scenario, error) {
	switch Scenario(s) {
	case ConstantArrivalRate, RampingArrivalRate:
		return Scenario(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidScenario, s)
}

// ParseSubScenario converts a configuration string to a SubScenario.
func ParseSubScenario(s string) (SubScenario, error) {
	switch SubScenario(s) {
	case SubNone, SubSteadySmoke, SubSteadyStability, SubSustainedThroughput, SubStress, SubSpike:
		return SubScenario(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSubScenario, s)
}

// SuggestedVUs returns the operator default VU hint for a sub-scenario.
func SuggestedVUs(sub SubScenario) int {
	switch sub {
	case SubSteadySmoke:
		return 50
	case SubSteadyStability, SubSpike:
		return 70
	case SubSustainedThroughput, SubStress:
		return 100
	default:
		return 50
	}
}

// Descriptor names a scenario together with its load targets.
type Descriptor struct {
	Name             Scenario    `json:"name" yaml:"name"`
	SubScenario      SubScenario `json:"sub_scenario" yaml:"sub_scenario"`
	TargetRPS        float64     `json:"target_rps" yaml:"target_rps"`
	TargetResponseMs float64     `json:"target_response_ms" yaml:"target_response_ms"`

	// ConstantVUHint overrides the derived VU estimate when > 0.
	ConstantVUHint int `json:"constant_vus,omitempty" yaml:"constant_vus,omitempty"`
}

const (
	constantTimeUnit = time.Second

	rampMaxVUs      = 500
	spikeMinMaxVUs  = 600
	spikeVUMultiple = 5
)

// Build derives the executor profile for a descriptor.
//
// The returned profile always satisfies Validate.
func Build(d Descriptor) (*ExecutorProfile, error) {
	if _, err := ParseSubScenario(string(d.SubScenario)); err != nil {
		return nil, err
	}

	var p *ExecutorProfile
	switch d.Name {
	case ConstantArrivalRate:
		p = buildConstant(d)
	case RampingArrivalRate:
		p = buildRamping(d)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidScenario, d.Name)
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("profile for %s/%s: %w", d.Name, d.SubScenario, err)
	}
	return p, nil
}

func estimateVUs(d Descriptor) int {
	if d.ConstantVUHint > 0 {
		return d.ConstantVUHint
	}
	return int(math.Ceil(d.TargetRPS * d.TargetResponseMs / 1000))
}

func buildConstant(d Descriptor) *ExecutorProfile {
	pre := d.ConstantVUHint
	if pre <= 0 {
		pre = int(math.Ceil(d.TargetRPS * 0.2))
	}

	multiple := 5
	if d.SubScenario == SubSustainedThroughput {
		multiple = 7
	}

	var duration time.Duration
	switch d.SubScenario {
	case SubSteadySmoke:
		duration = time.Minute
	case SubSteadyStability:
		duration = 5 * time.Minute
	case SubSustainedThroughput:
		duration = 10 * time.Minute
	case SubNone, SubStress, SubSpike:
		duration = 30 * time.Second
	}

	return &ExecutorProfile{
		Type:            TypeConstantArrivalRate,
		Rate:            d.TargetRPS,
		TimeUnit:        constantTimeUnit,
		Duration:        duration,
		PreAllocatedVUs: pre,
		MaxVUs:          pre * multiple,
	}
}

func buildRamping(d Descriptor) *ExecutorProfile {
	vus := estimateVUs(d)
	rps := d.TargetRPS

	p := &ExecutorProfile{
		Type:            TypeRampingArrivalRate,
		TimeUnit:        constantTimeUnit,
		PreAllocatedVUs: vus,
		MaxVUs:          rampMaxVUs,
		StartRate:       math.Max(1, math.Floor(rps*0.2)),
	}

	switch d.SubScenario {
	case SubStress:
		p.Stages = scaledStages(rps, []stageShape{
			{1, time.Minute},
			{2, 2 * time.Minute},
			{3, 2 * time.Minute},
			{4, 2 * time.Minute},
			{5, 2 * time.Minute},
			{6, 2 * time.Minute},
			{0, 30 * time.Second},
		})
	case SubSpike:
		p.MaxVUs = max(spikeMinMaxVUs, vus*spikeVUMultiple)
		p.StartRate = math.Max(1, math.Floor(rps))
		p.Stages = scaledStages(rps, []stageShape{
			{1, time.Minute},
			{10, 30 * time.Second},
			{1, 3 * time.Minute},
			{0, 30 * time.Second},
		})
	case SubNone, SubSteadySmoke, SubSteadyStability, SubSustainedThroughput:
		step20 := math.Max(1, math.Floor(rps*0.2))
		step10 := math.Max(1, math.Floor(rps*0.1))
		p.Stages = []Stage{
			{Target: rps, Duration: time.Minute},
			{Target: rps + step20, Duration: 2 * time.Minute},
			{Target: rps + step20, Duration: 2 * time.Minute},
			{Target: rps + step10, Duration: 2 * time.Minute},
			{Target: 0, Duration: 30 * time.Second},
		}
	}

	if p.MaxVUs < p.PreAllocatedVUs {
		p.MaxVUs = p.PreAllocatedVUs
	}
	return p
}

type stageShape struct {
	multiple float64
	duration time.Duration
}

func scaledStages(rps float64, shapes []stageShape) []Stage {
	return lo.Map(shapes, func(s stageShape, _ int) Stage {
		return Stage{Target: s.multiple * rps, Duration: s.duration}
	})
}
