// Package uirender provides the declarative-UI render capability. It walks a
// view tree and produces a flat render plan, the kind of pass a declarative
// framework runs before handing work to the compositor.
package uirender

import (
	"context"
	"fmt"
	"time"

	"github.com/capkit/capkit/capability"
	"github.com/capkit/capkit/internal/runtime"
)

// Name is the identifier used to register and build this capability.
const Name = "uirender"

func init() {
	capability.Register(Name, Build)
}

// ViewNode is one node of the submitted view tree.
type ViewNode struct {
	Kind     string            `json:"kind"`
	Props    map[string]string `json:"props,omitempty"`
	Children []ViewNode        `json:"children,omitempty"`
}

// Input is the payload a render request carries.
type Input struct {
	Root ViewNode `json:"root"`
}

// RenderOp is one emitted drawing operation.
type RenderOp struct {
	Kind  string `json:"kind"`
	Depth int    `json:"depth"`
}

// Output is the flattened render plan.
type Output struct {
	Ops       []RenderOp `json:"ops"`
	NodeCount int        `json:"node_count"`
	MaxDepth  int        `json:"max_depth"`
}

// DefaultConfig returns the render capability's baseline configuration.
func DefaultConfig() capability.Config {
	return capability.Config{
		Enabled:        true,
		MaxConcurrent:  2,
		CacheCapacity:  64,
		QueueCapacity:  128,
		RequestTimeout: 500 * time.Millisecond,
		MetricsEnabled: true,
	}
}

// Build constructs the render capability runtime. A nil config selects
// DefaultConfig.
func Build(conf *capability.Config, deps runtime.Dependencies) (*runtime.Capability, error) {
	if conf == nil {
		c := DefaultConfig()
		conf = &c
	}
	return runtime.New(Name, conf, Process, deps)
}

// Process flattens the view tree into render operations in depth-first
// preorder.
func Process(ctx context.Context, req *runtime.Request, _ *capability.Config) (any, error) {
	input, ok := req.Payload.(Input)
	if !ok {
		return nil, fmt.Errorf("uirender: unexpected payload type %T", req.Payload)
	}
	if input.Root.Kind == "" {
		return nil, fmt.Errorf("uirender: root node has no kind")
	}

	var out Output
	if err := walk(ctx, input.Root, 0, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func walk(ctx context.Context, node ViewNode, depth int, out *Output) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	out.Ops = append(out.Ops, RenderOp{Kind: node.Kind, Depth: depth})
	out.NodeCount++
	if depth > out.MaxDepth {
		out.MaxDepth = depth
	}
	for _, child := range node.Children {
		if err := walk(ctx, child, depth+1, out); err != nil {
			return err
		}
	}
	return nil
}
