package params

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func mustValidate(t *testing.T, raw map[string]any) *Parameters {
	t.Helper()
	p, err := Validate(raw)
	if err != nil {
		t.Fatalf("Validate(%v) returned error: %v", raw, err)
	}
	return p
}

func expectFieldError(t *testing.T, raw map[string]any, field string, kind ErrorKind) *ValidationError {
	t.Helper()
	p, err := Validate(raw)
	if err == nil {
		t.Fatalf("Validate(%v) = %+v, want error on %q", raw, p, field)
	}
	ve, ok := AsValidationError(err)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	if ve.Field != field {
		t.Errorf("field: got %q, want %q (message: %s)", ve.Field, field, ve.Message)
	}
	if ve.Kind != kind {
		t.Errorf("kind: got %s, want %s (message: %s)", ve.Kind, kind, ve.Message)
	}
	return ve
}

func TestValidate_Defaults(t *testing.T) {
	p := mustValidate(t, map[string]any{"prompt": "a red fox"})

	want := &Parameters{
		Prompt:  "a red fox",
		Model:   ModelDallE3,
		Size:    "1024x1024",
		Quality: "standard",
		N:       1,
		Style:   "vivid",
	}
	if !reflect.DeepEqual(p, want) {
		t.Errorf("got %+v, want %+v", p, want)
	}
}

func TestValidate_PromptTrimmed(t *testing.T) {
	p := mustValidate(t, map[string]any{"prompt": "  a lighthouse at dusk \n"})
	if p.Prompt != "a lighthouse at dusk" {
		t.Errorf("prompt: got %q", p.Prompt)
	}
}

func TestValidate_PromptLengthBounds(t *testing.T) {
	tests := []struct {
		name    string
		prompt  string
		wantErr bool
	}{
		{"single char", "x", false},
		{"exactly max", strings.Repeat("a", MaxPromptLength), false},
		{"max after trim", "  " + strings.Repeat("a", MaxPromptLength) + "  ", false},
		{"max multibyte", strings.Repeat("é", MaxPromptLength), false},
		{"one over max", strings.Repeat("a", MaxPromptLength+1), true},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"tabs and newlines", "\t\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Validate(map[string]any{"prompt": tt.prompt})
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", p)
				}
				ve, _ := AsValidationError(err)
				if ve == nil || ve.Field != "prompt" || ve.Kind != KindOutOfRange {
					t.Errorf("unexpected error: %#v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Prompt != strings.TrimSpace(tt.prompt) {
				t.Errorf("prompt not trimmed input")
			}
		})
	}
}

func TestValidate_PromptMissingOrWrongType(t *testing.T) {
	expectFieldError(t, map[string]any{}, "prompt", KindMissingField)
	expectFieldError(t, map[string]any{"prompt": nil}, "prompt", KindMissingField)
	expectFieldError(t, map[string]any{"prompt": 42.0}, "prompt", KindInvalidType)
	expectFieldError(t, map[string]any{"prompt": []any{"a"}}, "prompt", KindInvalidType)
	expectFieldError(t, nil, "prompt", KindMissingField)
}

func TestValidate_Model(t *testing.T) {
	p := mustValidate(t, map[string]any{"prompt": "x", "model": "dall-e-2"})
	if p.Model != ModelDallE2 {
		t.Errorf("model: got %s", p.Model)
	}

	ve := expectFieldError(t, map[string]any{"prompt": "x", "model": "dall-e-4"}, "model", KindInvalidEnum)
	if !strings.Contains(ve.Message, "dall-e-2") || !strings.Contains(ve.Message, "dall-e-3") {
		t.Errorf("message should list accepted models: %s", ve.Message)
	}
	expectFieldError(t, map[string]any{"prompt": "x", "model": 3.0}, "model", KindInvalidType)
}

func TestValidate_Size(t *testing.T) {
	tests := []struct {
		name     string
		model    string
		size     string
		wantKind ErrorKind
	}{
		{"dall-e-2 small", "dall-e-2", "256x256", ""},
		{"dall-e-2 medium", "dall-e-2", "512x512", ""},
		{"dall-e-2 square", "dall-e-2", "1024x1024", ""},
		{"dall-e-2 wide", "dall-e-2", "1792x1024", KindUnsupported},
		{"dall-e-3 wide", "dall-e-3", "1792x1024", ""},
		{"dall-e-3 tall", "dall-e-3", "1024x1792", ""},
		{"dall-e-3 small", "dall-e-3", "256x256", KindUnsupported},
		{"unknown size", "dall-e-3", "800x600", KindInvalidEnum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := map[string]any{"prompt": "x", "model": tt.model, "size": tt.size}
			if tt.wantKind == "" {
				p := mustValidate(t, raw)
				if p.Size != tt.size {
					t.Errorf("size: got %s, want %s", p.Size, tt.size)
				}
				return
			}
			ve := expectFieldError(t, raw, "size", tt.wantKind)
			if tt.wantKind == KindUnsupported && !strings.Contains(ve.Message, "allowed sizes") {
				t.Errorf("unsupported message should name the allowed set: %s", ve.Message)
			}
		})
	}
}

func TestValidate_QualityHDUnsupportedOnDallE2(t *testing.T) {
	expectFieldError(t, map[string]any{"prompt": "x", "model": "dall-e-2", "quality": "hd"}, "quality", KindUnsupported)

	p := mustValidate(t, map[string]any{"prompt": "x", "model": "dall-e-3", "quality": "hd"})
	if p.Quality != "hd" {
		t.Errorf("quality: got %s", p.Quality)
	}

	expectFieldError(t, map[string]any{"prompt": "x", "quality": "ultra"}, "quality", KindInvalidEnum)
}

func TestValidate_StyleDroppedForDallE2(t *testing.T) {
	for _, style := range []any{"vivid", "natural", "bogus", 7.0} {
		p := mustValidate(t, map[string]any{"prompt": "x", "model": "dall-e-2", "style": style})
		if p.Style != "" {
			t.Errorf("style %v: expected style to be dropped, got %q", style, p.Style)
		}

		data, err := json.Marshal(p)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if strings.Contains(string(data), `"style"`) {
			t.Errorf("style should be absent from output JSON: %s", data)
		}
	}
}

func TestValidate_StyleDallE3(t *testing.T) {
	p := mustValidate(t, map[string]any{"prompt": "x", "style": "natural"})
	if p.Style != "natural" {
		t.Errorf("style: got %q", p.Style)
	}
	expectFieldError(t, map[string]any{"prompt": "x", "style": "gritty"}, "style", KindInvalidEnum)
	expectFieldError(t, map[string]any{"prompt": "x", "style": true}, "style", KindInvalidType)
}

func TestValidate_N(t *testing.T) {
	tests := []struct {
		name     string
		model    string
		n        any
		want     int
		wantKind ErrorKind
	}{
		{"dall-e-2 two", "dall-e-2", 2.0, 2, ""},
		{"dall-e-2 ten", "dall-e-2", 10.0, 10, ""},
		{"dall-e-2 eleven", "dall-e-2", 11.0, 0, KindOutOfRange},
		{"dall-e-2 zero", "dall-e-2", 0.0, 0, KindOutOfRange},
		{"dall-e-2 numeric string", "dall-e-2", "3", 3, ""},
		{"dall-e-2 padded string", "dall-e-2", " 4 ", 4, ""},
		{"dall-e-2 json number", "dall-e-2", json.Number("5"), 5, ""},
		{"dall-e-2 go int", "dall-e-2", 6, 6, ""},
		{"dall-e-3 one", "dall-e-3", 1.0, 1, ""},
		{"dall-e-3 two", "dall-e-3", 2.0, 0, KindOutOfRange},
		{"dall-e-3 string two", "dall-e-3", "2", 0, KindOutOfRange},
		{"fractional", "dall-e-2", 2.5, 0, KindInvalidType},
		{"non numeric string", "dall-e-2", "two", 0, KindInvalidType},
		{"boolean", "dall-e-2", true, 0, KindInvalidType},
		{"huge json number", "dall-e-2", json.Number("4294967297"), 0, KindOutOfRange},
		{"huge float", "dall-e-2", 1e20, 0, KindOutOfRange},
		{"huge negative", "dall-e-2", -1e20, 0, KindOutOfRange},
		{"huge string", "dall-e-2", "99999999999", 0, KindOutOfRange},
		{"huge on dall-e-3", "dall-e-3", json.Number("4294967297"), 0, KindOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := map[string]any{"prompt": "x", "model": tt.model, "n": tt.n}
			if tt.wantKind == "" {
				p := mustValidate(t, raw)
				if p.N != tt.want {
					t.Errorf("n: got %d, want %d", p.N, tt.want)
				}
				return
			}
			expectFieldError(t, raw, "n", tt.wantKind)
		})
	}
}

func TestValidate_NOutOfRangeMessageNamesBounds(t *testing.T) {
	ve := expectFieldError(t, map[string]any{"prompt": "x", "model": "dall-e-2", "n": 20.0}, "n", KindOutOfRange)
	if !strings.Contains(ve.Message, "1 and 10") {
		t.Errorf("message should name bounds: %s", ve.Message)
	}
	ve = expectFieldError(t, map[string]any{"prompt": "x", "model": "dall-e-3", "n": 2.0}, "n", KindOutOfRange)
	if !strings.Contains(ve.Message, "n=1") {
		t.Errorf("message should name the only allowed value: %s", ve.Message)
	}
}

func TestValidate_ResponseFormat(t *testing.T) {
	p := mustValidate(t, map[string]any{"prompt": "x", "response_format": "b64_json"})
	if p.ResponseFormat != "b64_json" {
		t.Errorf("response_format: got %q", p.ResponseFormat)
	}
	p = mustValidate(t, map[string]any{"prompt": "x"})
	if p.ResponseFormat != "" {
		t.Errorf("response_format should stay unset, got %q", p.ResponseFormat)
	}
	expectFieldError(t, map[string]any{"prompt": "x", "response_format": "png"}, "response_format", KindInvalidEnum)
}

func TestValidate_SaveCoercion(t *testing.T) {
	tests := []struct {
		name  string
		save  any
		want  bool
		unset bool
	}{
		{"true", true, true, false},
		{"false", false, false, false},
		{"string true", "true", true, false},
		{"string false", "false", false, false},
		{"string zero", "0", false, false},
		{"string one", "1", true, false},
		{"number zero", 0.0, false, false},
		{"number one", 1.0, true, false},
		{"null", nil, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mustValidate(t, map[string]any{"prompt": "x", "save": tt.save})
			if tt.unset {
				if p.Save != nil {
					t.Errorf("save should be unset, got %v", *p.Save)
				}
				return
			}
			if p.Save == nil {
				t.Fatal("save should be set")
			}
			if *p.Save != tt.want {
				t.Errorf("save: got %v, want %v", *p.Save, tt.want)
			}
		})
	}

	expectFieldError(t, map[string]any{"prompt": "x", "save": "maybe"}, "save", KindInvalidType)
}

func TestParameters_ShouldSave(t *testing.T) {
	p := &Parameters{}
	if !p.ShouldSave(true) || p.ShouldSave(false) {
		t.Error("unset save should follow the default")
	}
	f := false
	p.Save = &f
	if p.ShouldSave(true) {
		t.Error("explicit false should override the default")
	}
}

func TestValidate_OrderReportsFirstFailingField(t *testing.T) {
	// Both size and quality are wrong; size is validated first.
	expectFieldError(t, map[string]any{
		"prompt":  "x",
		"model":   "dall-e-2",
		"size":    "1792x1024",
		"quality": "hd",
	}, "size", KindUnsupported)
}

func TestValidate_Idempotent(t *testing.T) {
	raw := map[string]any{"prompt": " cat ", "model": "dall-e-2", "n": "3", "style": "vivid", "save": "false"}
	first := mustValidate(t, raw)
	second := mustValidate(t, raw)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Validate is not idempotent: %+v vs %+v", first, second)
	}
	if raw["style"] != "vivid" || raw["n"] != "3" {
		t.Error("Validate must not mutate its input")
	}
}

func TestValidate_EveryResultIsAcceptedByModel(t *testing.T) {
	for _, model := range []string{"dall-e-2", "dall-e-3"} {
		for _, size := range Sizes() {
			for _, quality := range []string{"standard", "hd"} {
				for _, style := range []string{"vivid", "natural"} {
					for n := 0; n <= 11; n++ {
						p, err := Validate(map[string]any{
							"prompt": "x", "model": model, "size": size,
							"quality": quality, "style": style, "n": float64(n),
						})
						if err != nil {
							continue
						}
						c, _ := Lookup(string(p.Model))
						if !contains(c.Sizes, p.Size) || !contains(c.Qualities, p.Quality) {
							t.Errorf("accepted invalid combination %+v", p)
						}
						if p.N < c.MinN || p.N > c.MaxN {
							t.Errorf("accepted n out of range %+v", p)
						}
						if c.SupportsStyle() != (p.Style != "") {
							t.Errorf("style presence inconsistent with model: %+v", p)
						}
					}
				}
			}
		}
	}
}

func TestValidateJSON(t *testing.T) {
	p, err := ValidateJSON([]byte(`{"prompt":"robot","model":"dall-e-2","n":4,"save":"false"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.N != 4 || p.Save == nil || *p.Save {
		t.Errorf("unexpected params: %+v", p)
	}

	if _, err := ValidateJSON([]byte("{\"prompt\":\"x\"}\n\t ")); err != nil {
		t.Errorf("trailing whitespace should be accepted: %v", err)
	}

	for _, body := range []string{`[]`, `"prompt"`, `not json`, `null`, `{"prompt":"x"} {"prompt":"y"}`, `{"prompt":"x"} garbage`} {
		_, err := ValidateJSON([]byte(body))
		ve, ok := AsValidationError(err)
		if !ok {
			t.Fatalf("body %s: expected validation error, got %v", body, err)
		}
		if ve.Field != "body" {
			t.Errorf("body %s: field got %q", body, ve.Field)
		}
	}
}

func TestValidateJSON_LargeNIsOutOfRange(t *testing.T) {
	_, err := ValidateJSON([]byte(`{"prompt":"x","model":"dall-e-2","n":4294967297}`))
	ve, ok := AsValidationError(err)
	if !ok || ve.Field != "n" || ve.Kind != KindOutOfRange {
		t.Fatalf("expected n OutOfRange, got %v", err)
	}
	if !strings.Contains(ve.Message, "1 and 10") || !strings.Contains(ve.Message, "4294967297") {
		t.Errorf("message should name bounds and the value sent: %s", ve.Message)
	}
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Field: "n", Kind: KindOutOfRange, Message: "too many"}
	if err.Error() != "invalid n: too many" {
		t.Errorf("got %q", err.Error())
	}
}
