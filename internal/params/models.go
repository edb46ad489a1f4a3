// Package params validates untrusted image-generation requests and resolves
// them against the DALL-E model capability table.
//
// Validation runs in a fixed order (prompt, model, size, quality, style, n,
// response_format, save) so that every model-dependent field is checked
// against an already-resolved model. The output of Validate is always a
// combination the OpenAI Images API accepts for the chosen model.
package params

import "sort"

// Model identifies a DALL-E generation model.
type Model string

const (
	ModelDallE2 Model = "dall-e-2"
	ModelDallE3 Model = "dall-e-3"
)

// Defaults applied when a field is omitted.
const (
	DefaultModel   = ModelDallE3
	DefaultSize    = "1024x1024"
	DefaultQuality = "standard"
	DefaultStyle   = "vivid"
	DefaultN       = 1

	MaxPromptLength = 4000
)

// Global enumerations, independent of model.
var (
	sizes           = []string{"256x256", "512x512", "1024x1024", "1792x1024", "1024x1792"}
	qualities       = []string{"standard", "hd"}
	styles          = []string{"vivid", "natural"}
	responseFormats = []string{"url", "b64_json"}
)

// Capability describes what a model accepts. An empty Styles list means the
// model has no style parameter.
type Capability struct {
	Model     Model    `json:"model"`
	Sizes     []string `json:"sizes"`
	Qualities []string `json:"qualities"`
	Styles    []string `json:"styles"`
	MinN      int      `json:"minN"`
	MaxN      int      `json:"maxN"`
}

// SupportsStyle reports whether the model takes a style parameter.
func (c Capability) SupportsStyle() bool {
	return len(c.Styles) > 0
}

func (c Capability) allowsSize(size string) bool       { return contains(c.Sizes, size) }
func (c Capability) allowsQuality(quality string) bool { return contains(c.Qualities, quality) }

var capabilities = map[Model]Capability{
	ModelDallE2: {
		Model:     ModelDallE2,
		Sizes:     []string{"256x256", "512x512", "1024x1024"},
		Qualities: []string{"standard"},
		Styles:    []string{},
		MinN:      1,
		MaxN:      10,
	},
	ModelDallE3: {
		Model:     ModelDallE3,
		Sizes:     []string{"1024x1024", "1792x1024", "1024x1792"},
		Qualities: []string{"standard", "hd"},
		Styles:    []string{"vivid", "natural"},
		MinN:      1,
		MaxN:      1,
	},
}

// Lookup returns a copy of the capability entry for model.
func Lookup(model string) (Capability, bool) {
	c, ok := capabilities[Model(model)]
	if !ok {
		return Capability{}, false
	}
	return c.clone(), true
}

// Models returns a copy of the capability table ordered by model name.
func Models() []Capability {
	out := make([]Capability, 0, len(capabilities))
	for _, c := range capabilities {
		out = append(out, c.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}

// Sizes returns every size accepted by at least one model.
func Sizes() []string { return append([]string(nil), sizes...) }

func (c Capability) clone() Capability {
	c.Sizes = append([]string{}, c.Sizes...)
	c.Qualities = append([]string{}, c.Qualities...)
	c.Styles = append([]string{}, c.Styles...)
	return c
}

func modelNames() []string {
	names := make([]string, 0, len(capabilities))
	for m := range capabilities {
		names = append(names, string(m))
	}
	sort.Strings(names)
	return names
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
