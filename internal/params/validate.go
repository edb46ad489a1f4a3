package params

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// Parameters is a fully resolved, model-consistent generation request.
type Parameters struct {
	Prompt         string `json:"prompt"`
	Model          Model  `json:"model"`
	Size           string `json:"size"`
	Quality        string `json:"quality"`
	N              int    `json:"n"`
	Style          string `json:"style,omitempty"`
	Save           *bool  `json:"save,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

// ShouldSave returns the explicit save flag, or def when the caller did not set one.
func (p *Parameters) ShouldSave(def bool) bool {
	if p.Save == nil {
		return def
	}
	return *p.Save
}

// ValidateJSON decodes a JSON object and validates it. Numbers are decoded
// as json.Number so integral values survive without float rounding.
func ValidateJSON(data []byte) (*Parameters, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, newError("body", KindInvalidType, "request body must be a JSON object: %v", err)
	}
	if raw == nil {
		return nil, newError("body", KindInvalidType, "request body must be a JSON object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, newError("body", KindInvalidType, "request body must contain a single JSON object")
	}
	return Validate(raw)
}

// Validate resolves a raw request into Parameters or returns a
// *ValidationError naming the first offending field. It never mutates raw
// and is safe for concurrent use.
func Validate(raw map[string]any) (*Parameters, error) {
	prompt, err := validatePrompt(raw)
	if err != nil {
		return nil, err
	}

	capability, err := resolveModel(raw)
	if err != nil {
		return nil, err
	}

	size, err := resolveSize(raw, capability)
	if err != nil {
		return nil, err
	}

	quality, err := resolveQuality(raw, capability)
	if err != nil {
		return nil, err
	}

	style, err := resolveStyle(raw, capability)
	if err != nil {
		return nil, err
	}

	n, err := resolveN(raw, capability)
	if err != nil {
		return nil, err
	}

	format, err := resolveResponseFormat(raw)
	if err != nil {
		return nil, err
	}

	save, err := resolveSave(raw)
	if err != nil {
		return nil, err
	}

	return &Parameters{
		Prompt:         prompt,
		Model:          capability.Model,
		Size:           size,
		Quality:        quality,
		N:              n,
		Style:          style,
		Save:           save,
		ResponseFormat: format,
	}, nil
}

func validatePrompt(raw map[string]any) (string, error) {
	v, ok := lookup(raw, "prompt")
	if !ok {
		return "", newError("prompt", KindMissingField, "prompt is required")
	}
	s, ok := v.(string)
	if !ok {
		return "", newError("prompt", KindInvalidType, "prompt must be a string, got %s", typeName(v))
	}
	s = strings.TrimSpace(s)
	length := utf8.RuneCountInString(s)
	if length == 0 {
		return "", newError("prompt", KindOutOfRange, "prompt cannot be empty")
	}
	if length > MaxPromptLength {
		return "", newError("prompt", KindOutOfRange,
			"prompt must be at most %d characters, got %d", MaxPromptLength, length)
	}
	return s, nil
}

func resolveModel(raw map[string]any) (Capability, error) {
	name, present, err := optionalString(raw, "model")
	if err != nil {
		return Capability{}, err
	}
	if !present {
		return capabilities[DefaultModel], nil
	}
	c, ok := capabilities[Model(name)]
	if !ok {
		return Capability{}, newError("model", KindInvalidEnum,
			"model must be one of %s, got %q", strings.Join(modelNames(), ", "), name)
	}
	return c, nil
}

func resolveSize(raw map[string]any, c Capability) (string, error) {
	size, present, err := optionalString(raw, "size")
	if err != nil {
		return "", err
	}
	if !present {
		size = DefaultSize
	}
	if !contains(sizes, size) {
		return "", newError("size", KindInvalidEnum,
			"size must be one of %s, got %q", strings.Join(sizes, ", "), size)
	}
	if !c.allowsSize(size) {
		return "", newError("size", KindUnsupported,
			"size %s is not supported by %s; allowed sizes: %s", size, c.Model, strings.Join(c.Sizes, ", "))
	}
	return size, nil
}

func resolveQuality(raw map[string]any, c Capability) (string, error) {
	quality, present, err := optionalString(raw, "quality")
	if err != nil {
		return "", err
	}
	if !present {
		quality = DefaultQuality
	}
	if !contains(qualities, quality) {
		return "", newError("quality", KindInvalidEnum,
			"quality must be one of %s, got %q", strings.Join(qualities, ", "), quality)
	}
	if !c.allowsQuality(quality) {
		return "", newError("quality", KindUnsupported,
			"quality %s is not supported by %s; allowed qualities: %s", quality, c.Model, strings.Join(c.Qualities, ", "))
	}
	return quality, nil
}

// resolveStyle drops the field entirely for models without style support,
// whatever the caller sent.
func resolveStyle(raw map[string]any, c Capability) (string, error) {
	if !c.SupportsStyle() {
		if v, ok := lookup(raw, "style"); ok {
			log.Warn().
				Str("model", string(c.Model)).
				Interface("style", v).
				Msg("Style is not supported by model, ignoring")
		}
		return "", nil
	}

	style, present, err := optionalString(raw, "style")
	if err != nil {
		return "", err
	}
	if !present {
		return DefaultStyle, nil
	}
	if !contains(c.Styles, style) {
		return "", newError("style", KindInvalidEnum,
			"style must be one of %s, got %q", strings.Join(styles, ", "), style)
	}
	return style, nil
}

func resolveN(raw map[string]any, c Capability) (int, error) {
	v, ok := lookup(raw, "n")
	if !ok {
		return DefaultN, nil
	}
	n, ok := coerceInt(v)
	if !ok {
		return 0, newError("n", KindInvalidType, "n must be an integer, got %s", describe(v))
	}
	if n < c.MinN || n > c.MaxN {
		if c.MinN == c.MaxN {
			return 0, newError("n", KindOutOfRange, "%s only supports n=%d, got %s", c.Model, c.MinN, describe(v))
		}
		return 0, newError("n", KindOutOfRange,
			"n must be between %d and %d for %s, got %s", c.MinN, c.MaxN, c.Model, describe(v))
	}
	return n, nil
}

func resolveResponseFormat(raw map[string]any) (string, error) {
	format, present, err := optionalString(raw, "response_format")
	if err != nil || !present {
		return "", err
	}
	if !contains(responseFormats, format) {
		return "", newError("response_format", KindInvalidEnum,
			"response_format must be one of %s, got %q", strings.Join(responseFormats, ", "), format)
	}
	return format, nil
}

// resolveSave parses strings with strconv.ParseBool, so "false" and "0" are
// false. Plain truthiness would turn "false" into true.
func resolveSave(raw map[string]any) (*bool, error) {
	v, ok := lookup(raw, "save")
	if !ok {
		return nil, nil
	}

	var b bool
	switch t := v.(type) {
	case bool:
		b = t
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return nil, newError("save", KindInvalidType, "save must be a boolean, got %q", t)
		}
		b = parsed
	default:
		f, ok := toFloat(v)
		if !ok {
			return nil, newError("save", KindInvalidType, "save must be a boolean, got %s", typeName(v))
		}
		b = f != 0
	}
	return &b, nil
}

// lookup treats an explicit JSON null the same as an absent key.
func lookup(raw map[string]any, key string) (any, bool) {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func optionalString(raw map[string]any, field string) (string, bool, error) {
	v, ok := lookup(raw, field)
	if !ok {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, newError(field, KindInvalidType, "%s must be a string, got %s", field, typeName(v))
	}
	return s, true, nil
}

func coerceInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int32:
		return int(t), true
	case int64:
		return int(t), true
	case string:
		s := strings.TrimSpace(t)
		if i, err := strconv.Atoi(s); err == nil {
			return i, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return integral(f)
	default:
		f, ok := toFloat(v)
		if !ok {
			return 0, false
		}
		return integral(f)
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// integral accepts whole, finite values. Magnitudes beyond int32 are clamped
// so they still fail the range check rather than the type check.
func integral(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	const limit = 1 << 31
	switch {
	case f > limit:
		return limit, true
	case f < -limit:
		return -limit, true
	}
	return int(f), true
}

func typeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int32, int64, json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "unknown"
	}
}

func describe(v any) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	if n, ok := v.(json.Number); ok {
		return n.String()
	}
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int, int32, int64:
		return fmt.Sprint(t)
	}
	return typeName(v)
}
