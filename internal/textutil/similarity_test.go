package textutil

import (
	"math"
	"testing"
)

func TestCosineSimilarityNil(t *testing.T) {
	tests := []struct {
		name string
		a    *Fingerprint
		b    *Fingerprint
		want float64
	}{
		{"both nil", nil, nil, 0},
		{"a nil", nil, NewFingerprint("ancient volcanoes"), 0},
		{"b nil", NewFingerprint("ancient volcanoes"), nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if got != tt.want {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosineSimilarityIdentical(t *testing.T) {
	a := NewFingerprint("Famous Volcanoes of the World")
	b := NewFingerprint("famous volcanoes of the world")
	if got := CosineSimilarity(a, b); math.Abs(got-1) > 1e-9 {
		t.Errorf("CosineSimilarity(identical) = %v, want 1.0", got)
	}
}

func TestTokenizeFoldsUnicode(t *testing.T) {
	got := Tokenize("CAFÉ au lait, 1990s Ökonomie")
	want := []string{"café", "lait", "1990s", "ökonomie"}
	if len(got) != len(want) {
		t.Fatalf("Tokenize = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Tokenize = %v, want %v", got, want)
		}
	}
}

func TestFindSimilar(t *testing.T) {
	existing := []string{
		"History of Ancient Rome",
		"Famous Volcanoes",
		"famous  VOLCANOES",
		"History of Ancient Egypt",
	}
	matches := FindSimilar("Famous volcanoes", existing, DefaultDuplicateThreshold)
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %+v", matches)
	}
	for _, m := range matches {
		if m.Index != 1 && m.Index != 2 {
			t.Fatalf("unexpected match %+v", m)
		}
	}

	if got := FindSimilar("History of Ancient Greece", existing, DefaultDuplicateThreshold); len(got) != 0 {
		t.Fatalf("shared common words should not match: %+v", got)
	}
	if got := FindSimilar("", existing, DefaultDuplicateThreshold); len(got) != 0 {
		t.Fatalf("empty candidate matched: %+v", got)
	}
}

func TestStatusLabel(t *testing.T) {
	cases := map[string]string{
		"APPROVED_TOPIC": "Approved Topic",
		"IN_QUEUE":       "In Queue",
		"READY":          "Ready",
	}
	for in, want := range cases {
		if got := StatusLabel(in); got != want {
			t.Errorf("StatusLabel(%q) = %q, want %q", in, got, want)
		}
	}
}
