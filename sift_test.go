package substrates

import (
	"testing"

	"github.com/zoobzio/clockz"
)

func intCmp(a, b int) int { return a - b }

func TestSiftMinMax(t *testing.T) {
	s := newSift(intCmp)
	s.Min(3).Max(7)
	for v, want := range map[int]bool{2: false, 3: true, 5: true, 7: true, 8: false} {
		if got := s.test(v); got != want {
			t.Errorf("Min(3).Max(7).test(%d) = %v, want %v", v, got, want)
		}
	}
}

func TestSiftAboveBelow(t *testing.T) {
	s := newSift(intCmp)
	s.Above(2).Below(6)
	for v, want := range map[int]bool{2: false, 3: true, 5: true, 6: false} {
		if got := s.test(v); got != want {
			t.Errorf("Above(2).Below(6).test(%d) = %v, want %v", v, got, want)
		}
	}
}

func TestSiftPredicatesAreANDed(t *testing.T) {
	s := newSift(intCmp)
	s.Min(0).Max(10).Above(5)
	if s.test(3) {
		t.Fatal("3 fails Above(5); overall test should be false")
	}
	if !s.test(7) {
		t.Fatal("7 satisfies Min(0), Max(10), and Above(5); overall test should be true")
	}
}

func TestFlowSampleRateBounds(t *testing.T) {
	var allPass, nonePass []int
	pAll := NewFlow[int]().SampleRate(1).Apply(collect(&allPass))
	pNone := NewFlow[int]().SampleRate(0).Apply(collect(&nonePass))
	for i := 0; i < 20; i++ {
		pAll.Emit(i)
		pNone.Emit(i)
	}
	if len(allPass) != 20 {
		t.Fatalf("SampleRate(1) should forward every emission, got %d/20", len(allPass))
	}
	if len(nonePass) != 0 {
		t.Fatalf("SampleRate(0) should forward nothing, got %d/20", len(nonePass))
	}
}

// Two Flows seeded from independent FakeClocks pinned to the same instant
// must draw the identical SampleRate sequence: the seed comes from the
// injected Clock, not from wall-clock time.
func TestFlowSampleRateSeedsFromInjectedClock(t *testing.T) {
	clockA := clockz.NewFakeClock()
	clockB := clockz.NewFakeClock()

	var outA, outB []int
	fa := NewFlow[int]().withClock(clockA).SampleRate(0.5)
	fb := NewFlow[int]().withClock(clockB).SampleRate(0.5)
	pa := fa.Apply(collect(&outA))
	pb := fb.Apply(collect(&outB))

	for i := 0; i < 50; i++ {
		pa.Emit(i)
		pb.Emit(i)
	}

	if len(outA) != len(outB) {
		t.Fatalf("same-seeded SampleRate flows diverged in count: %d vs %d", len(outA), len(outB))
	}
	for i := range outA {
		if outA[i] != outB[i] {
			t.Fatalf("same-seeded SampleRate flows diverged at index %d: %d vs %d", i, outA[i], outB[i])
		}
	}
}
