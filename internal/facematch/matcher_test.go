package facematch

import (
	"math"
	"testing"
)

type stubSearcher struct {
	IdentitySlice
	nearest Identity
	ok      bool
	calls   int
}

func (s *stubSearcher) Nearest(query []float32) (Identity, bool) {
	s.calls++
	return s.nearest, s.ok
}

func TestMatcher_Identify(t *testing.T) {
	ref := IdentitySlice{
		{Name: "alice", Embedding: []float32{0, 0}},
		{Name: "bob", Embedding: []float32{1, 0}},
		{Name: "alice", Embedding: []float32{0, 0.2}},
	}
	m := NewMatcher(Euclidean, false)

	tests := []struct {
		name         string
		query        []float32
		tolerance    float64
		wantMatched  bool
		wantIdentity string
		wantDistance float64
	}{
		{"exact match", []float32{0, 0}, 0.5, true, "alice", 0},
		{"near bob", []float32{0.9, 0}, 0.5, true, "bob", 0.1},
		{"at tolerance boundary", []float32{0, -0.5}, 0.5, true, "alice", 0.5},
		{"beyond tolerance", []float32{0, -0.6}, 0.5, false, "", 0.6},
		{"dimension mismatch", []float32{0, 0, 0}, 0.5, false, "", math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := m.Identify(ref, tt.query, tt.tolerance)
			if res.Matched != tt.wantMatched {
				t.Fatalf("Matched = %v, want %v (distance %f)", res.Matched, tt.wantMatched, res.Distance)
			}
			if res.Identity != tt.wantIdentity {
				t.Errorf("Identity = %q, want %q", res.Identity, tt.wantIdentity)
			}
			if math.IsInf(tt.wantDistance, 1) {
				if !math.IsInf(res.Distance, 1) {
					t.Errorf("Distance = %f, want +Inf", res.Distance)
				}
			} else if math.Abs(res.Distance-tt.wantDistance) > 1e-6 {
				t.Errorf("Distance = %f, want %f", res.Distance, tt.wantDistance)
			}
			if !res.Matched && res.Confidence != 0 {
				t.Errorf("unmatched result should have zero confidence, got %f", res.Confidence)
			}
		})
	}
}

func TestMatcher_ThresholdAfterGlobalMinimum(t *testing.T) {
	// carol is within tolerance but dave is closer; the result must be dave
	// and a stricter tolerance must reject rather than fall back to carol.
	ref := IdentitySlice{
		{Name: "carol", Embedding: []float32{0.4, 0}},
		{Name: "dave", Embedding: []float32{0.1, 0}},
	}
	m := NewMatcher(Euclidean, false)

	res := m.Identify(ref, []float32{0, 0}, 0.5)
	if !res.Matched || res.Identity != "dave" {
		t.Fatalf("expected dave, got %+v", res)
	}

	res = m.Identify(ref, []float32{0, 0}, 0.05)
	if res.Matched {
		t.Fatalf("expected no match with strict tolerance, got %+v", res)
	}
}

func TestMatcher_TieGoesToFirst(t *testing.T) {
	ref := IdentitySlice{
		{Name: "first", Embedding: []float32{1, 0}},
		{Name: "second", Embedding: []float32{-1, 0}},
	}
	m := NewMatcher(Euclidean, false)

	res := m.Identify(ref, []float32{0, 0}, 1.0)
	if res.Identity != "first" {
		t.Errorf("expected first-encountered identity on tie, got %q", res.Identity)
	}
}

func TestMatcher_CosineIgnoresMismatchedDimensions(t *testing.T) {
	ref := IdentitySlice{
		{Name: "legacy", Embedding: []float32{1, 0, 0}},
		{Name: "blank", Embedding: []float32{0, 0}},
	}
	m := NewMatcher(Cosine, false)

	// Even a tolerance above the cosine range must not accept invalid pairs.
	res := m.Identify(ref, []float32{1, 0}, 3)
	if res.Matched {
		t.Fatalf("expected no match, got %+v", res)
	}

	ref = append(ref, Identity{Name: "alice", Embedding: []float32{2, 0}})
	res = m.Identify(ref, []float32{1, 0}, 0.1)
	if !res.Matched || res.Identity != "alice" {
		t.Errorf("expected alice, got %+v", res)
	}
}

func TestMatcher_EmptyReference(t *testing.T) {
	m := NewMatcher(Euclidean, false)

	for _, ref := range []Reference{nil, IdentitySlice{}} {
		res := m.Identify(ref, []float32{0.1, 0.2}, 0.5)
		if res.Matched {
			t.Errorf("expected no match for empty reference, got %+v", res)
		}
		if res.Label() != LabelUnknown {
			t.Errorf("expected label %q, got %q", LabelUnknown, res.Label())
		}
	}
}

func TestMatcher_Confidence(t *testing.T) {
	ref := IdentitySlice{{Name: "eve", Embedding: []float32{0.3, 0}}}
	m := NewMatcher(Euclidean, false)

	res := m.Identify(ref, []float32{0, 0}, 0.5)
	if res.Confidence != 70 {
		t.Errorf("expected confidence 70, got %f", res.Confidence)
	}
}

func TestMatcher_CosineMetric(t *testing.T) {
	ref := IdentitySlice{
		{Name: "x-axis", Embedding: []float32{10, 0}},
		{Name: "y-axis", Embedding: []float32{0, 10}},
	}
	m := NewMatcher(Cosine, false)

	res := m.Identify(ref, []float32{0.1, 1}, 0.5)
	if !res.Matched || res.Identity != "y-axis" {
		t.Errorf("expected y-axis, got %+v", res)
	}
	if m.Metric() != Cosine {
		t.Errorf("expected cosine metric, got %v", m.Metric())
	}
}

func TestMatcher_ApproximateUsesSearcher(t *testing.T) {
	ref := &stubSearcher{
		IdentitySlice: IdentitySlice{{Name: "scan", Embedding: []float32{0, 0}}},
		nearest:       Identity{Name: "indexed", Embedding: []float32{0.2, 0}},
		ok:            true,
	}

	res := NewMatcher(Euclidean, true).Identify(ref, []float32{0, 0}, 0.5)
	if ref.calls != 1 {
		t.Fatalf("expected searcher to be called once, got %d", ref.calls)
	}
	if res.Identity != "indexed" || math.Abs(res.Distance-0.2) > 1e-6 {
		t.Errorf("unexpected result %+v", res)
	}

	res = NewMatcher(Euclidean, false).Identify(ref, []float32{0, 0}, 0.5)
	if res.Identity != "scan" {
		t.Errorf("exact matcher should scan, got %+v", res)
	}
}

func TestIsWatchlisted(t *testing.T) {
	tests := []struct {
		label string
		want  bool
	}{
		{"alice", true},
		{LabelUnknown, false},
		{LabelNoFace, false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsWatchlisted(tt.label); got != tt.want {
			t.Errorf("IsWatchlisted(%q) = %v, want %v", tt.label, got, tt.want)
		}
	}
}
