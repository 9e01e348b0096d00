package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestPairKeyIsOrderIndependent(t *testing.T) {
	a := uuid.MustParse("00000000-0000-4000-8000-00000000000a")
	b := uuid.MustParse("00000000-0000-4000-8000-00000000000b")
	if PairKey(a, b) != PairKey(b, a) {
		t.Fatalf("PairKey must not depend on argument order")
	}
	want := a.String() + "-" + b.String()
	if got := PairKey(b, a); got != want {
		t.Fatalf("PairKey: want %s got %s", want, got)
	}
	if !strings.HasPrefix(PairJobID(b, a), "pair:") || PairJobID(a, b) != PairJobID(b, a) {
		t.Fatalf("PairJobID should be prefixed and symmetric")
	}
}

func TestCanonicalPairSelf(t *testing.T) {
	a := uuid.New()
	lo, hi := CanonicalPair(a, a)
	if lo != a || hi != a {
		t.Fatalf("self pair should map to itself")
	}
}

func TestPrioritiesOrderPromotedFirst(t *testing.T) {
	if !(PriorityPromoted > PriorityEnrichment && PriorityEnrichment > PriorityNeighborhood) {
		t.Fatalf("unexpected priority order: promoted=%d enrichment=%d neighborhood=%d",
			PriorityPromoted, PriorityEnrichment, PriorityNeighborhood)
	}
}
