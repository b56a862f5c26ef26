package watchlist

import (
	"github.com/coder/hnsw"
	"github.com/kozaktomas/facewatch/internal/constants"
	"github.com/kozaktomas/facewatch/internal/facematch"
)

// Index wraps an HNSW graph over the identities of one snapshot.
// It is built once and only read afterwards.
type Index struct {
	graph      *hnsw.Graph[int64]
	identities []facematch.Identity
	dims       int
}

// BuildIndex builds an index over identities. Identities whose dimension
// differs from the first one are left out of the graph.
func BuildIndex(identities []facematch.Identity, metric facematch.Metric) *Index {
	idx := &Index{identities: identities}
	if len(identities) == 0 {
		return idx
	}

	g := hnsw.NewGraph[int64]()
	g.M = constants.HNSWMaxNeighbors
	g.Ml = 1.0 / float64(constants.HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = constants.HNSWEfSearch
	if metric == facematch.Cosine {
		g.Distance = hnsw.CosineDistance
	} else {
		g.Distance = hnsw.EuclideanDistance
	}

	idx.dims = len(identities[0].Embedding)
	for i, id := range identities {
		if len(id.Embedding) == 0 || len(id.Embedding) != idx.dims {
			continue
		}
		g.Add(hnsw.MakeNode(int64(i), id.Embedding))
	}
	idx.graph = g
	return idx
}

// Nearest returns the approximate nearest identity to query.
func (i *Index) Nearest(query []float32) (facematch.Identity, bool) {
	if i == nil || i.graph == nil || i.dims == 0 || len(query) != i.dims {
		return facematch.Identity{}, false
	}

	neighbors := i.graph.Search(query, 1)
	if len(neighbors) == 0 {
		return facematch.Identity{}, false
	}
	key := neighbors[0].Key
	if key < 0 || int(key) >= len(i.identities) {
		return facematch.Identity{}, false
	}
	return i.identities[key], true
}
