package pullxml

import "testing"

func TestDefaultConfig(t *testing.T) {
	c := Default()
	if !c.coalesceCharacters {
		t.Fatalf("coalesceCharacters = false, want true")
	}
	if !c.ignoreRootLevelWhitespace {
		t.Fatalf("ignoreRootLevelWhitespace = false, want true")
	}
	if c.maxEntityExpansionDepth != 10 {
		t.Fatalf("maxEntityExpansionDepth = %d, want 10", c.maxEntityExpansionDepth)
	}
	if c.maxEntityExpansionLength != 1<<20 {
		t.Fatalf("maxEntityExpansionLength = %d, want %d", c.maxEntityExpansionLength, 1<<20)
	}
	if c.trimWhitespace || c.whitespaceToCharacters || c.cdataToCharacters || c.ignoreComments || c.replaceUnknownEntityReferences {
		t.Fatalf("unexpected non-default flag set in Default(): %+v", c)
	}
}

func TestJoinOptionsLaterOverridesEarlier(t *testing.T) {
	c := JoinOptions(TrimWhitespace(true), TrimWhitespace(false))
	if c.trimWhitespace {
		t.Fatalf("trimWhitespace = true, want false (last option wins)")
	}
}

func TestJoinOptionsOnlySetFieldsOverride(t *testing.T) {
	c := JoinOptions(Default(), IgnoreComments(true))
	if !c.ignoreComments {
		t.Fatalf("ignoreComments = false, want true")
	}
	if !c.coalesceCharacters {
		t.Fatalf("coalesceCharacters lost after JoinOptions, want still true from Default()")
	}
}

func TestExtraEntitiesCopiesInputMap(t *testing.T) {
	src := map[string]string{"x": "1"}
	c := ExtraEntities(src)
	src["x"] = "mutated"
	if c.extraEntities["x"] != "1" {
		t.Fatalf("ExtraEntities did not deep-copy: got %q, want 1 unaffected by later mutation", c.extraEntities["x"])
	}
}

func TestExtraEntitiesNilValue(t *testing.T) {
	c := ExtraEntities(nil)
	if !c.extraEntitiesSet {
		t.Fatalf("extraEntitiesSet = false, want true even for a nil map")
	}
	if c.extraEntities != nil {
		t.Fatalf("extraEntities = %v, want nil", c.extraEntities)
	}
}
