package watchlist

import (
	"testing"

	"github.com/kozaktomas/facewatch/internal/facematch"
)

func TestIndex_Nearest(t *testing.T) {
	ids := []facematch.Identity{
		{Name: "a", Embedding: []float32{0, 0}},
		{Name: "b", Embedding: []float32{5, 5}},
		{Name: "c", Embedding: []float32{10, 0}},
	}
	idx := BuildIndex(ids, facematch.Euclidean)

	tests := []struct {
		query []float32
		want  string
	}{
		{[]float32{0.1, 0.1}, "a"},
		{[]float32{4.8, 5.2}, "b"},
		{[]float32{9, 0.5}, "c"},
	}
	for _, tt := range tests {
		got, ok := idx.Nearest(tt.query)
		if !ok {
			t.Fatalf("Nearest(%v) returned no result", tt.query)
		}
		if got.Name != tt.want {
			t.Errorf("Nearest(%v) = %q, want %q", tt.query, got.Name, tt.want)
		}
	}
}

func TestIndex_EmptyAndMismatch(t *testing.T) {
	if _, ok := BuildIndex(nil, facematch.Euclidean).Nearest([]float32{1}); ok {
		t.Error("empty index should not return a result")
	}

	idx := BuildIndex([]facematch.Identity{{Name: "a", Embedding: []float32{1, 2}}}, facematch.Cosine)
	if _, ok := idx.Nearest([]float32{1, 2, 3}); ok {
		t.Error("dimension mismatch should not return a result")
	}

	var nilIdx *Index
	if _, ok := nilIdx.Nearest([]float32{1}); ok {
		t.Error("nil index should not return a result")
	}
}
