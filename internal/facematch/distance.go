package facematch

import (
	"fmt"
	"math"
	"strings"
)

// Metric selects how embedding distance is computed.
type Metric int

const (
	// Euclidean is the L2 distance, the metric dlib style 128-d encodings are tuned for.
	Euclidean Metric = iota
	// Cosine is 1 - cosine similarity, for normalized ArcFace style embeddings.
	Cosine
)

// ParseMetric parses a metric name. Empty selects Euclidean.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "euclidean", "l2":
		return Euclidean, nil
	case "cosine":
		return Cosine, nil
	default:
		return Euclidean, fmt.Errorf("unknown distance metric %q", s)
	}
}

func (m Metric) String() string {
	if m == Cosine {
		return "cosine"
	}
	return "euclidean"
}

// Distance computes the distance between two embeddings under the metric.
func (m Metric) Distance(a, b []float32) float64 {
	if m == Cosine {
		return CosineDistance(a, b)
	}
	return EuclideanDistance(a, b)
}

// EuclideanDistance computes the L2 distance between two vectors.
// Vectors of different or zero length are infinitely far apart.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// CosineDistance computes 1 - cosine similarity, between 0 (identical) and
// 2 (opposite). Vectors of different or zero length, or with a zero norm,
// are infinitely far apart so no tolerance can accept them.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return math.Inf(1)
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors
	similarity = max(-1, min(1, similarity))

	return 1 - similarity
}

// Confidence converts a distance to a percentage score rounded to two decimals.
func Confidence(distance float64) float64 {
	return math.Round((1-distance)*100*100) / 100
}
