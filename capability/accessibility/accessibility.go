// Package accessibility provides the accessibility-audit capability. It
// sweeps a flat list of UI elements against a fixed rule set and reports
// findings.
package accessibility

import (
	"context"
	"fmt"
	"time"

	"github.com/capkit/capkit/capability"
	"github.com/capkit/capkit/internal/runtime"
)

// Name is the identifier used to register and build this capability.
const Name = "accessibility"

func init() {
	capability.Register(Name, Build)
}

// minContrastRatio is the smallest acceptable text contrast ratio.
const minContrastRatio = 4.5

// Element is one audited UI element.
type Element struct {
	ID            string  `json:"id"`
	Role          string  `json:"role"`
	Label         string  `json:"label,omitempty"`
	ContrastRatio float64 `json:"contrast_ratio,omitempty"`
}

// Input is the payload an accessibility request carries.
type Input struct {
	Elements []Element `json:"elements"`
}

// Finding is a single rule violation.
type Finding struct {
	ElementID string `json:"element_id"`
	Rule      string `json:"rule"`
	Detail    string `json:"detail"`
}

// Output is the audit report.
type Output struct {
	Findings []Finding `json:"findings"`
	Audited  int       `json:"audited"`
	Passed   bool      `json:"passed"`
}

// Rule identifiers.
const (
	RuleMissingLabel = "missing_label"
	RuleLowContrast  = "low_contrast"
	RuleUnknownRole  = "unknown_role"
)

var knownRoles = map[string]struct{}{
	"button":   {},
	"text":     {},
	"image":    {},
	"link":     {},
	"checkbox": {},
	"slider":   {},
	"heading":  {},
}

// DefaultConfig returns the accessibility capability's baseline
// configuration.
func DefaultConfig() capability.Config {
	return capability.Config{
		Enabled:        true,
		MaxConcurrent:  2,
		CacheCapacity:  32,
		QueueCapacity:  64,
		RequestTimeout: time.Second,
		MetricsEnabled: true,
	}
}

// Build constructs the accessibility capability runtime. A nil config selects
// DefaultConfig.
func Build(conf *capability.Config, deps runtime.Dependencies) (*runtime.Capability, error) {
	if conf == nil {
		c := DefaultConfig()
		conf = &c
	}
	return runtime.New(Name, conf, Process, deps)
}

// Process audits every element against the rule set. The context is checked
// between elements so large sweeps stop promptly on cancellation.
func Process(ctx context.Context, req *runtime.Request, _ *capability.Config) (any, error) {
	input, ok := req.Payload.(Input)
	if !ok {
		return nil, fmt.Errorf("accessibility: unexpected payload type %T", req.Payload)
	}

	out := Output{Audited: len(input.Elements)}
	for _, el := range input.Elements {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if el.Label == "" && el.Role != "image" {
			out.Findings = append(out.Findings, Finding{
				ElementID: el.ID,
				Rule:      RuleMissingLabel,
				Detail:    fmt.Sprintf("%s element has no accessible label", el.Role),
			})
		}
		if el.ContrastRatio > 0 && el.ContrastRatio < minContrastRatio {
			out.Findings = append(out.Findings, Finding{
				ElementID: el.ID,
				Rule:      RuleLowContrast,
				Detail:    fmt.Sprintf("contrast ratio %.2f below %.1f", el.ContrastRatio, minContrastRatio),
			})
		}
		if _, ok := knownRoles[el.Role]; !ok {
			out.Findings = append(out.Findings, Finding{
				ElementID: el.ID,
				Rule:      RuleUnknownRole,
				Detail:    fmt.Sprintf("role %q is not recognized", el.Role),
			})
		}
	}
	out.Passed = len(out.Findings) == 0
	return out, nil
}
