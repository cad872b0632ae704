package licensekey

import (
	"strings"
	"testing"
)

func TestNew_LengthAndAlphabet(t *testing.T) {
	t.Parallel()

	key, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if len(key) != Length {
		t.Fatalf("expected length %d, got %d", Length, len(key))
	}
	for _, c := range key {
		if !strings.ContainsRune(alphabet, c) {
			t.Errorf("unexpected character %q in key %q", c, key)
		}
	}
}

func TestNew_Unique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key, err := New()
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if seen[key] {
			t.Fatalf("duplicate key generated: %q", key)
		}
		seen[key] = true
	}
}
