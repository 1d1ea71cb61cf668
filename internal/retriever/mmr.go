package retriever

import "math"

// DefaultLambda balances relevance against diversity in MMR selection.
const DefaultLambda = 0.5

// candidate is a fetched passage with its embedding.
type candidate struct {
	passage Passage
	vector  []float32
}

// selectMMR picks up to k candidates by maximal marginal relevance:
// lambda*sim(query, d) - (1-lambda)*max sim(d, selected). Ties keep the
// earlier candidate, so the index order decides between equals.
func selectMMR(query []float32, cands []candidate, k int, lambda float64) []Passage {
	if k <= 0 || len(cands) == 0 {
		return nil
	}
	k = min(k, len(cands))

	relevance := make([]float64, len(cands))
	for i, c := range cands {
		relevance[i] = cosine(query, c.vector)
	}

	// redundancy[i] tracks the max similarity of candidate i to the selection.
	redundancy := make([]float64, len(cands))
	used := make([]bool, len(cands))
	out := make([]Passage, 0, k)

	for len(out) < k {
		best := -1
		bestScore := math.Inf(-1)
		for i := range cands {
			if used[i] {
				continue
			}
			score := lambda*relevance[i] - (1-lambda)*redundancy[i]
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		used[best] = true
		out = append(out, cands[best].passage)

		for i := range cands {
			if used[i] {
				continue
			}
			if s := cosine(cands[i].vector, cands[best].vector); len(out) == 1 || s > redundancy[i] {
				redundancy[i] = s
			}
		}
	}
	return out
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
