package catalog

import "testing"

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "The Beatles", "the beatles"},
		{"trims", "  Abbey Road  ", "abbey road"},
		{"collapses whitespace", "Kind  of\tBlue", "kind of blue"},
		{"strips diacritics", "Björk", "bjork"},
		{"transliterates", "Sigur Rós", "sigur ros"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeName(tt.input); got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestStableIDDeterministic(t *testing.T) {
	a := StableID("some/path.mp3")
	b := StableID("some/path.mp3")
	if a != b {
		t.Errorf("StableID not deterministic: %q vs %q", a, b)
	}
	if a == StableID("other/path.mp3") {
		t.Error("StableID collided for different keys")
	}
	if len(a) != 32 {
		t.Errorf("StableID length = %d, want 32 hex chars", len(a))
	}
}

func TestFingerprintEqual(t *testing.T) {
	base := Fingerprint{Path: "a.mp3", Size: 10, MTimeNS: 100}

	tests := []struct {
		name  string
		other Fingerprint
		want  bool
	}{
		{"identical", Fingerprint{Path: "a.mp3", Size: 10, MTimeNS: 100}, true},
		{"size differs", Fingerprint{Path: "a.mp3", Size: 11, MTimeNS: 100}, false},
		{"mtime differs", Fingerprint{Path: "a.mp3", Size: 10, MTimeNS: 101}, false},
		{"hash only on one side", Fingerprint{Path: "a.mp3", Size: 10, MTimeNS: 100, ContentHash: "abc"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Equal(tt.other); got != tt.want {
				t.Errorf("Equal = %v, want %v", got, tt.want)
			}
		})
	}

	withHash := Fingerprint{Size: 10, MTimeNS: 100, ContentHash: "abc"}
	otherHash := Fingerprint{Size: 10, MTimeNS: 100, ContentHash: "def"}
	if withHash.Equal(otherHash) {
		t.Error("Fingerprints with different content hashes compared equal")
	}
}
