package params

import "testing"

func TestLookup(t *testing.T) {
	c, ok := Lookup("dall-e-2")
	if !ok {
		t.Fatal("dall-e-2 should be known")
	}
	if c.SupportsStyle() {
		t.Error("dall-e-2 should not support style")
	}
	if c.MaxN != 10 {
		t.Errorf("dall-e-2 MaxN: got %d, want 10", c.MaxN)
	}

	c, ok = Lookup("dall-e-3")
	if !ok {
		t.Fatal("dall-e-3 should be known")
	}
	if !c.SupportsStyle() || c.MaxN != 1 {
		t.Errorf("unexpected dall-e-3 capability: %+v", c)
	}

	if _, ok := Lookup("gpt-image-1"); ok {
		t.Error("unknown model should not resolve")
	}
}

func TestLookup_ReturnsCopy(t *testing.T) {
	c, _ := Lookup("dall-e-3")
	c.Sizes[0] = "1x1"

	again, _ := Lookup("dall-e-3")
	if again.Sizes[0] == "1x1" {
		t.Error("mutating a returned capability must not change the table")
	}
}

func TestModels_Sorted(t *testing.T) {
	models := Models()
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}
	if models[0].Model != ModelDallE2 || models[1].Model != ModelDallE3 {
		t.Errorf("unexpected order: %s, %s", models[0].Model, models[1].Model)
	}
}

func TestModelSizesAreGlobalSizes(t *testing.T) {
	for _, c := range Models() {
		for _, s := range c.Sizes {
			if !contains(Sizes(), s) {
				t.Errorf("%s size %s missing from global enum", c.Model, s)
			}
		}
	}
}
