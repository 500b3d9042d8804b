package id

import (
	"sort"
	"testing"
)

func TestNew_Format(t *testing.T) {
	got := New()
	if len(got) != 26 {
		t.Fatalf("ULID length = %d, want 26", len(got))
	}
}

func TestNew_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		s := New()
		if _, ok := seen[s]; ok {
			t.Fatalf("duplicate ULID %s after %d draws", s, i)
		}
		seen[s] = struct{}{}
	}
}

func TestNew_Monotonic(t *testing.T) {
	ids := make([]string, 100)
	for i := range ids {
		ids[i] = New()
	}
	if !sort.StringsAreSorted(ids) {
		t.Fatal("IDs generated in sequence are not lexicographically sorted")
	}
}
