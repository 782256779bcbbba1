package fieldtree

import "testing"

func TestNilTreeLookupsReportAbsence(t *testing.T) {
	var tree Tree

	if sub := tree.Sub("device_metrics"); sub != nil {
		t.Fatalf("nil tree Sub must be nil, got %v", sub)
	}
	if _, ok := tree.Str("firmware_version"); ok {
		t.Fatalf("nil tree Str must be absent")
	}
	if _, ok := tree.Float("rssi"); ok {
		t.Fatalf("nil tree Float must be absent")
	}
	if _, ok := tree.Sub("user").Str("long_name"); ok {
		t.Fatalf("chained lookup through missing block must be absent")
	}
}

func TestSubAndList(t *testing.T) {
	tree := Tree{
		"user": map[string]any{"long_name": "Relay One"},
		"channels": []any{
			Tree{"settings": Tree{"name": "LongFast"}},
			map[string]any{"name": "Admin"},
			"not a block",
		},
	}

	if got, _ := tree.Sub("user").Str("long_name"); got != "Relay One" {
		t.Fatalf("unexpected long_name: %q", got)
	}

	items := tree.List("channels")
	if len(items) != 2 {
		t.Fatalf("unexpected channel count: %d", len(items))
	}
	if got, _ := items[0].Sub("settings").Str("name"); got != "LongFast" {
		t.Fatalf("unexpected first channel: %q", got)
	}
	if got, _ := items[1].Str("name"); got != "Admin" {
		t.Fatalf("unexpected second channel: %q", got)
	}
}

func TestNumericCoercion(t *testing.T) {
	tree := Tree{
		"a": int(7),
		"b": uint32(8),
		"c": float32(9.5),
		"d": int64(-3),
		"e": "text",
	}

	if v, ok := tree.Float("a"); !ok || v != 7 {
		t.Fatalf("int coercion failed: %v %v", v, ok)
	}
	if v, ok := tree.Int("b"); !ok || v != 8 {
		t.Fatalf("uint32 coercion failed: %v %v", v, ok)
	}
	if v, ok := tree.Float("c"); !ok || v != 9.5 {
		t.Fatalf("float32 coercion failed: %v %v", v, ok)
	}
	if _, ok := tree.Uint32("d"); ok {
		t.Fatalf("negative value must not coerce to uint32")
	}
	if _, ok := tree.Float("e"); ok {
		t.Fatalf("string must not coerce to float")
	}
}

func TestAliasOrdering(t *testing.T) {
	onlyOld := Tree{"rx_rssi": -91.0}
	if v, ok := onlyOld.FirstFloat("rssi", "rx_rssi", "last_heard_rssi"); !ok || v != -91.0 {
		t.Fatalf("alias fallback failed: %v %v", v, ok)
	}

	both := Tree{"rssi": -80.0, "rx_rssi": -91.0}
	if v, _ := both.FirstFloat("rssi", "rx_rssi", "last_heard_rssi"); v != -80.0 {
		t.Fatalf("first alias must win, got %v", v)
	}

	if _, ok := (Tree{}).FirstStr("text", "payload"); ok {
		t.Fatalf("empty tree must report absence")
	}
}
