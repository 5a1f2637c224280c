package gatewaypipeline

import "hash/fnv"

// embeddingDim is the stand-in embedder's fixed output width. A real
// deployment swaps Dependencies.Embed for a provider embedding call without
// touching any other pipeline stage.
const embeddingDim = 32

// HashEmbed is the default Embedder: a deterministic bag-of-words hash
// projection. It is not a semantic embedding — it only guarantees that
// identical prompts land on identical vectors so the cache's cosine
// similarity gate is exercisable without a network call in tests and in
// deployments that haven't wired a real embedding provider yet.
func HashEmbed(text string) []float64 {
	vec := make([]float64, embeddingDim)
	word := make([]byte, 0, 16)
	flush := func() {
		if len(word) == 0 {
			return
		}
		h := fnv.New32a()
		h.Write(word)
		idx := int(h.Sum32()) % embeddingDim
		if idx < 0 {
			idx += embeddingDim
		}
		vec[idx]++
		word = word[:0]
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == ' ' || c == '\n' || c == '\t' {
			flush()
			continue
		}
		word = append(word, c)
	}
	flush()
	return vec
}
