// Package touch provides the gesture-recognition capability. It classifies
// a sequence of touch points into a gesture using simple distance and
// duration thresholds.
package touch

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/capkit/capkit/capability"
	"github.com/capkit/capkit/internal/runtime"
)

// Name is the identifier used to register and build this capability.
const Name = "touch"

func init() {
	capability.Register(Name, Build)
}

// Recognition thresholds.
const (
	tapMaxDistance     = 10.0
	longPressMinMillis = 500
	swipeMinDistance   = 40.0
)

// Point is a single sampled touch location.
type Point struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	TimestampMs int64   `json:"timestamp_ms"`
}

// Input is the payload a touch request carries.
type Input struct {
	Points []Point `json:"points"`
}

// Output describes the recognized gesture.
type Output struct {
	Gesture    string  `json:"gesture"`
	Distance   float64 `json:"distance"`
	DurationMs int64   `json:"duration_ms"`
}

// Gesture classifications.
const (
	GestureTap       = "tap"
	GestureLongPress = "long_press"
	GestureSwipe     = "swipe"
	GestureUnknown   = "unknown"
)

// DefaultConfig returns the touch capability's baseline configuration.
func DefaultConfig() capability.Config {
	return capability.Config{
		Enabled:        true,
		MaxConcurrent:  8,
		CacheCapacity:  64,
		QueueCapacity:  512,
		RequestTimeout: 100 * time.Millisecond,
		MetricsEnabled: true,
	}
}

// Build constructs the touch capability runtime. A nil config selects
// DefaultConfig.
func Build(conf *capability.Config, deps runtime.Dependencies) (*runtime.Capability, error) {
	if conf == nil {
		c := DefaultConfig()
		conf = &c
	}
	return runtime.New(Name, conf, Process, deps)
}

// Process classifies the point sequence into a gesture.
func Process(ctx context.Context, req *runtime.Request, _ *capability.Config) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input, ok := req.Payload.(Input)
	if !ok {
		return nil, fmt.Errorf("touch: unexpected payload type %T", req.Payload)
	}
	if len(input.Points) == 0 {
		return nil, fmt.Errorf("touch: empty point sequence")
	}

	first := input.Points[0]
	last := input.Points[len(input.Points)-1]
	distance := math.Hypot(last.X-first.X, last.Y-first.Y)
	duration := last.TimestampMs - first.TimestampMs

	out := Output{
		Distance:   distance,
		DurationMs: duration,
	}

	switch {
	case distance <= tapMaxDistance && duration >= longPressMinMillis:
		out.Gesture = GestureLongPress
	case distance <= tapMaxDistance:
		out.Gesture = GestureTap
	case distance >= swipeMinDistance:
		out.Gesture = GestureSwipe
	default:
		out.Gesture = GestureUnknown
	}

	return out, nil
}
