package indexer

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// testEmbedder is a deterministic bag-of-words embedder so indexing
// tests run without a model.
type testEmbedder struct{}

const testEmbedderDim = 64

func (testEmbedder) embed(text string) []float32 {
	vec := make([]float32, testEmbedderDim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[int(h.Sum32())%testEmbedderDim]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}

func (e testEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embed(t)
	}
	return out, nil
}

func (e testEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

func (testEmbedder) Dimension() int {
	return testEmbedderDim
}
