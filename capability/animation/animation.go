// Package animation provides the layer-animation capability. It plans
// keyframes for a scalar property transition. When animation is disabled in
// the configuration the plan collapses to a single final-value frame, which
// models a reduced-motion environment.
package animation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/capkit/capkit/capability"
	"github.com/capkit/capkit/internal/runtime"
)

// Name is the identifier used to register and build this capability.
const Name = "animation"

func init() {
	capability.Register(Name, Build)
}

// frameIntervalMs is the spacing between planned keyframes.
const frameIntervalMs = 16

// Timing curve identifiers.
const (
	CurveLinear    = "linear"
	CurveEaseIn    = "ease_in"
	CurveEaseOut   = "ease_out"
	CurveEaseInOut = "ease_in_out"
)

// Input is the payload an animation request carries.
type Input struct {
	Property   string  `json:"property"`
	From       float64 `json:"from"`
	To         float64 `json:"to"`
	DurationMs int     `json:"duration_ms"`
	Curve      string  `json:"curve,omitempty"`
}

// Keyframe is one planned frame.
type Keyframe struct {
	OffsetMs int     `json:"offset_ms"`
	Value    float64 `json:"value"`
}

// Output is the planned keyframe sequence.
type Output struct {
	Property  string     `json:"property"`
	Keyframes []Keyframe `json:"keyframes"`
	Reduced   bool       `json:"reduced,omitempty"`
}

// DefaultConfig returns the animation capability's baseline configuration.
func DefaultConfig() capability.Config {
	return capability.Config{
		Enabled:          true,
		MaxConcurrent:    4,
		CacheCapacity:    64,
		QueueCapacity:    256,
		RequestTimeout:   200 * time.Millisecond,
		MetricsEnabled:   true,
		AnimationEnabled: true,
	}
}

// Build constructs the animation capability runtime. A nil config selects
// DefaultConfig.
func Build(conf *capability.Config, deps runtime.Dependencies) (*runtime.Capability, error) {
	if conf == nil {
		c := DefaultConfig()
		conf = &c
	}
	return runtime.New(Name, conf, Process, deps)
}

// Process plans the keyframe sequence for the requested transition.
func Process(ctx context.Context, req *runtime.Request, conf *capability.Config) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input, ok := req.Payload.(Input)
	if !ok {
		return nil, fmt.Errorf("animation: unexpected payload type %T", req.Payload)
	}
	if input.DurationMs <= 0 {
		return nil, fmt.Errorf("animation: duration must be positive, got %d", input.DurationMs)
	}

	out := Output{Property: input.Property}

	if !conf.AnimationEnabled {
		out.Reduced = true
		out.Keyframes = []Keyframe{{OffsetMs: 0, Value: input.To}}
		return out, nil
	}

	curve := input.Curve
	if curve == "" {
		curve = CurveEaseInOut
	}

	for offset := 0; offset < input.DurationMs; offset += frameIntervalMs {
		t := float64(offset) / float64(input.DurationMs)
		eased, err := ease(curve, t)
		if err != nil {
			return nil, err
		}
		out.Keyframes = append(out.Keyframes, Keyframe{
			OffsetMs: offset,
			Value:    input.From + (input.To-input.From)*eased,
		})
	}
	// The final frame always lands exactly on the target value.
	out.Keyframes = append(out.Keyframes, Keyframe{OffsetMs: input.DurationMs, Value: input.To})
	return out, nil
}

func ease(curve string, t float64) (float64, error) {
	switch curve {
	case CurveLinear:
		return t, nil
	case CurveEaseIn:
		return t * t, nil
	case CurveEaseOut:
		return t * (2 - t), nil
	case CurveEaseInOut:
		return 0.5 - 0.5*math.Cos(math.Pi*t), nil
	default:
		return 0, fmt.Errorf("animation: unknown curve %q", curve)
	}
}
