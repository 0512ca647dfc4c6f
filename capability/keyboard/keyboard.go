// Package keyboard provides the text-input capability: autocorrection and
// next-word prediction over submitted text. The linguistics are an
// illustrative stand-in; the runtime treats the processor as opaque.
package keyboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/capkit/capkit/capability"
	"github.com/capkit/capkit/internal/runtime"
)

// Name is the identifier used to register and build this capability.
const Name = "keyboard"

func init() {
	capability.Register(Name, Build)
}

// Input is the payload a keyboard request carries.
type Input struct {
	Text   string `json:"text"`
	Layout string `json:"layout,omitempty"`
}

// Output is the processed text with applied corrections and predictions.
type Output struct {
	Corrected    string   `json:"corrected"`
	Replacements int      `json:"replacements"`
	Suggestions  []string `json:"suggestions,omitempty"`
}

// corrections is a tiny static autocorrection table.
var corrections = map[string]string{
	"teh":        "the",
	"adn":        "and",
	"recieve":    "receive",
	"definately": "definitely",
	"seperate":   "separate",
	"occured":    "occurred",
}

// predictions maps a trailing word to likely continuations.
var predictions = map[string][]string{
	"thank": {"you", "them"},
	"good":  {"morning", "night", "luck"},
	"see":   {"you", "it"},
	"how":   {"are", "do", "about"},
}

// DefaultConfig returns the keyboard capability's baseline configuration.
func DefaultConfig() capability.Config {
	return capability.Config{
		Enabled:               true,
		MaxConcurrent:         4,
		CacheCapacity:         128,
		QueueCapacity:         256,
		RequestTimeout:        250 * time.Millisecond,
		MetricsEnabled:        true,
		AutocorrectionEnabled: true,
		PredictionEnabled:     true,
	}
}

// Build constructs the keyboard capability runtime. A nil config selects
// DefaultConfig.
func Build(conf *capability.Config, deps runtime.Dependencies) (*runtime.Capability, error) {
	if conf == nil {
		c := DefaultConfig()
		conf = &c
	}
	return runtime.New(Name, conf, Process, deps)
}

// Process applies the autocorrection table and, when enabled, predicts the
// next word from the trailing token.
func Process(ctx context.Context, req *runtime.Request, conf *capability.Config) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input, ok := req.Payload.(Input)
	if !ok {
		return nil, fmt.Errorf("keyboard: unexpected payload type %T", req.Payload)
	}

	words := strings.Fields(input.Text)
	replaced := 0
	if conf.AutocorrectionEnabled {
		for i, word := range words {
			lower := strings.ToLower(word)
			if fixed, ok := corrections[lower]; ok {
				words[i] = matchCase(word, fixed)
				replaced++
			}
		}
	}

	out := Output{
		Corrected:    strings.Join(words, " "),
		Replacements: replaced,
	}

	if conf.PredictionEnabled && len(words) > 0 {
		last := strings.ToLower(words[len(words)-1])
		out.Suggestions = predictions[last]
	}

	return out, nil
}

// matchCase keeps a leading capital when replacing a word.
func matchCase(original, replacement string) string {
	if original == "" || replacement == "" {
		return replacement
	}
	if original[0] >= 'A' && original[0] <= 'Z' {
		return strings.ToUpper(replacement[:1]) + replacement[1:]
	}
	return replacement
}
