package pullxml

import "testing"

func TestEntityTableBuiltins(t *testing.T) {
	tbl := newEntityTable(nil)
	cases := map[string]string{"lt": "<", "gt": ">", "amp": "&", "apos": "'", "quot": "\""}
	for name, want := range cases {
		got, ok := tbl.lookup(name)
		if !ok || got != want {
			t.Fatalf("lookup(%q) = %q, %v, want %q, true", name, got, ok, want)
		}
		if !tbl.isBuiltin(name) {
			t.Fatalf("isBuiltin(%q) = false, want true", name)
		}
	}
}

func TestEntityTableCustomDefine(t *testing.T) {
	tbl := newEntityTable(nil)
	tbl.define("x", "hello")
	got, ok := tbl.lookup("x")
	if !ok || got != "hello" {
		t.Fatalf("lookup(x) = %q, %v, want hello, true", got, ok)
	}
}

func TestEntityTableRedefiningBuiltinIgnored(t *testing.T) {
	tbl := newEntityTable(nil)
	tbl.define("amp", "OVERRIDE")
	got, _ := tbl.lookup("amp")
	if got != "&" {
		t.Fatalf("lookup(amp) = %q, want unchanged &", got)
	}
}

func TestEntityTableFirstDefinitionWins(t *testing.T) {
	tbl := newEntityTable(nil)
	tbl.define("x", "first")
	tbl.define("x", "second")
	got, _ := tbl.lookup("x")
	if got != "first" {
		t.Fatalf("lookup(x) = %q, want first (first definition wins)", got)
	}
}

func TestEntityTableExtraEntitiesFromConfig(t *testing.T) {
	tbl := newEntityTable(map[string]string{"copy": "(c)"})
	got, ok := tbl.lookup("copy")
	if !ok || got != "(c)" {
		t.Fatalf("lookup(copy) = %q, %v, want (c), true", got, ok)
	}
}

func TestEntityTableUnknownLookupFails(t *testing.T) {
	tbl := newEntityTable(nil)
	_, ok := tbl.lookup("nope")
	if ok {
		t.Fatalf("lookup(nope) reported ok=true, want false")
	}
}
