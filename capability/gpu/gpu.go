// Package gpu provides the GPU-workload capability. It batches submitted
// draw requests by pipeline, the same coalescing a command encoder performs
// before submission. No real device is touched.
package gpu

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/capkit/capkit/capability"
	"github.com/capkit/capkit/internal/runtime"
)

// Name is the identifier used to register and build this capability.
const Name = "gpu"

func init() {
	capability.Register(Name, Build)
}

// maxInstancesPerCall caps how many instances a single batched draw carries.
const maxInstancesPerCall = 1024

// Draw is one requested draw operation.
type Draw struct {
	PipelineID string `json:"pipeline_id"`
	Vertices   int    `json:"vertices"`
	Instances  int    `json:"instances"`
}

// Input is the payload a GPU request carries.
type Input struct {
	Draws []Draw `json:"draws"`
}

// Batch is one coalesced draw call.
type Batch struct {
	PipelineID string `json:"pipeline_id"`
	Vertices   int    `json:"vertices"`
	Instances  int    `json:"instances"`
}

// Output is the batched submission plan.
type Output struct {
	Batches       []Batch `json:"batches"`
	DrawCalls     int     `json:"draw_calls"`
	TotalVertices int     `json:"total_vertices"`
}

// DefaultConfig returns the GPU capability's baseline configuration.
func DefaultConfig() capability.Config {
	return capability.Config{
		Enabled:        true,
		MaxConcurrent:  1,
		CacheCapacity:  32,
		QueueCapacity:  128,
		RequestTimeout: time.Second,
		MetricsEnabled: true,
	}
}

// Build constructs the GPU capability runtime. A nil config selects
// DefaultConfig.
func Build(conf *capability.Config, deps runtime.Dependencies) (*runtime.Capability, error) {
	if conf == nil {
		c := DefaultConfig()
		conf = &c
	}
	return runtime.New(Name, conf, Process, deps)
}

// Process coalesces draws sharing a pipeline into batches, splitting a batch
// when it would exceed maxInstancesPerCall.
func Process(ctx context.Context, req *runtime.Request, _ *capability.Config) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input, ok := req.Payload.(Input)
	if !ok {
		return nil, fmt.Errorf("gpu: unexpected payload type %T", req.Payload)
	}

	byPipeline := make(map[string][]Draw)
	for _, d := range input.Draws {
		if d.Instances <= 0 {
			d.Instances = 1
		}
		byPipeline[d.PipelineID] = append(byPipeline[d.PipelineID], d)
	}

	pipelines := make([]string, 0, len(byPipeline))
	for id := range byPipeline {
		pipelines = append(pipelines, id)
	}
	sort.Strings(pipelines)

	var out Output
	for _, id := range pipelines {
		current := Batch{PipelineID: id}
		for _, d := range byPipeline[id] {
			if current.Instances > 0 && current.Instances+d.Instances > maxInstancesPerCall {
				out.Batches = append(out.Batches, current)
				current = Batch{PipelineID: id}
			}
			current.Vertices += d.Vertices
			current.Instances += d.Instances
			out.TotalVertices += d.Vertices
		}
		if current.Instances > 0 {
			out.Batches = append(out.Batches, current)
		}
	}
	out.DrawCalls = len(out.Batches)
	return out, nil
}
