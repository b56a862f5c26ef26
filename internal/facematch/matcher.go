package facematch

import "math"

// Reference is an immutable view of the watchlist used for one matching call.
type Reference interface {
	Identities() []Identity
}

// NearestSearcher is implemented by references that carry an approximate
// nearest neighbour index.
type NearestSearcher interface {
	Nearest(query []float32) (Identity, bool)
}

// Matcher finds the watchlist identity closest to a face embedding.
type Matcher struct {
	metric      Metric
	approximate bool
}

// NewMatcher creates a matcher. With approximate set, references implementing
// NearestSearcher answer the nearest candidate lookup instead of a full scan.
func NewMatcher(metric Metric, approximate bool) *Matcher {
	return &Matcher{metric: metric, approximate: approximate}
}

// Metric returns the distance metric used by the matcher.
func (m *Matcher) Metric() Metric {
	return m.metric
}

// Identify compares query with every identity in ref and returns the nearest
// one if its distance is within tolerance. The threshold is applied after the
// global minimum is found; equidistant minima resolve to the first identity in
// reference order.
func (m *Matcher) Identify(ref Reference, query []float32, tolerance float64) MatchResult {
	name, best, found := m.nearest(ref, query)
	if !found || best > tolerance {
		return MatchResult{Distance: best}
	}
	return MatchResult{
		Matched:    true,
		Identity:   name,
		Distance:   best,
		Confidence: Confidence(best),
	}
}

func (m *Matcher) nearest(ref Reference, query []float32) (string, float64, bool) {
	best := math.Inf(1)
	if ref == nil || len(query) == 0 {
		return "", best, false
	}

	if m.approximate {
		if searcher, ok := ref.(NearestSearcher); ok {
			id, ok := searcher.Nearest(query)
			if !ok {
				return "", best, false
			}
			return id.Name, m.metric.Distance(query, id.Embedding), true
		}
	}

	var name string
	found := false
	for _, id := range ref.Identities() {
		d := m.metric.Distance(query, id.Embedding)
		if d < best {
			best = d
			name = id.Name
			found = true
		}
	}
	return name, best, found
}

// IdentitySlice adapts a plain slice to Reference.
type IdentitySlice []Identity

// Identities implements Reference.
func (s IdentitySlice) Identities() []Identity {
	return s
}
