package emails

import (
	"strings"
	"testing"
)

const Cardinality = 10000

func TestGenerate(t *testing.T) {
	var n int
	for id := range Generate(Cardinality) {
		n++
		if !strings.HasPrefix(string(id), Prefix) {
			t.Fatalf("expected prefix %s, got %s", Prefix, string(id))
		}
		if len(id) != len(Prefix)+2*HashLen {
			t.Fatalf("expected %d bytes, got %d", len(Prefix)+2*HashLen, len(id))
		}
	}
	if n != Cardinality {
		t.Fatalf("expected %d identifiers, got %d", Cardinality, n)
	}
}

func TestCollect(t *testing.T) {
	// 256 bit random identifiers do not collide
	if ids := Collect(Cardinality); len(ids) != Cardinality {
		t.Fatalf("expected %d distinct identifiers, got %d", Cardinality, len(ids))
	}
}
