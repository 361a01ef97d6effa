package catalog

import "testing"

func TestDisplayNameRoundTrip(t *testing.T) {
	reg := NewRegistry()
	for _, id := range reg.CategoryIDs() {
		name := reg.DisplayName(id)
		if name == "" {
			t.Errorf("expected display name for %q", id)
			continue
		}
		if got := reg.CategoryID(name); got != id {
			t.Errorf("round trip for %q: got %q", id, got)
		}
	}
}

func TestDisplayNameUnknown(t *testing.T) {
	reg := NewRegistry()
	if got := reg.DisplayName("bogus"); got != "" {
		t.Errorf("expected empty for unknown id, got %q", got)
	}
	if reg.KnownCategory("all") {
		t.Error("expected all not to be a real category")
	}
}

func TestContainerID(t *testing.T) {
	reg := NewRegistry()
	if got := reg.ContainerID("tax"); got != "tax-articles" {
		t.Errorf("expected tax-articles, got %q", got)
	}
	if got := reg.ContainerID("visa"); got != "visa-articles" {
		t.Errorf("expected visa-articles, got %q", got)
	}
	if got := reg.ContainerID("all"); got != "all-articles" {
		t.Errorf("expected aggregate container for all, got %q", got)
	}
	if got := reg.ContainerID("bogus"); got != "all-articles" {
		t.Errorf("expected aggregate fallback for unknown id, got %q", got)
	}
}

func TestContainerIDs(t *testing.T) {
	reg := NewRegistry()
	ids := reg.ContainerIDs()
	if len(ids) != 6 {
		t.Fatalf("expected 6 containers, got %d", len(ids))
	}
	if ids[0] != "all-articles" {
		t.Errorf("expected aggregate container first, got %q", ids[0])
	}
}

func TestDifficultyID(t *testing.T) {
	cases := map[string]string{
		"入门":           DifficultyBeginner,
		"初级":           DifficultyBeginner,
		"中级":           DifficultyIntermediate,
		"高级":           DifficultyAdvanced,
		"intermediate": DifficultyIntermediate,
		"":             "",
		"神级":           "",
	}
	reg := NewRegistry()
	for label, want := range cases {
		if got := reg.DifficultyID(label); got != want {
			t.Errorf("DifficultyID(%q): expected %q, got %q", label, want, got)
		}
	}
}
