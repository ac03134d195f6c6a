package recommend

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// rowCosineMatrix computes pairwise cosine similarity between the rows
// of m. Zero rows get zero similarity to everything, including
// themselves.
func rowCosineMatrix(m *mat.Dense) *mat.Dense {
	rows, _ := m.Dims()
	sim := mat.NewDense(rows, rows, nil)

	norms := make([]float64, rows)
	for i := 0; i < rows; i++ {
		row := m.RawRowView(i)
		norms[i] = math.Sqrt(floats.Dot(row, row))
	}

	for i := 0; i < rows; i++ {
		if norms[i] == 0 {
			continue
		}
		sim.Set(i, i, 1)

		for j := i + 1; j < rows; j++ {
			if norms[j] == 0 {
				continue
			}
			dot := floats.Dot(m.RawRowView(i), m.RawRowView(j))
			value := dot / (norms[i] * norms[j])
			sim.Set(i, j, value)
			sim.Set(j, i, value)
		}
	}

	return sim
}

// columnCosineMatrix computes pairwise cosine similarity between the
// columns of m.
func columnCosineMatrix(m *mat.Dense) *mat.Dense {
	var t mat.Dense
	t.CloneFrom(m.T())
	return rowCosineMatrix(&t)
}

func cosine32(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// tokenCosine computes cosine similarity between two term-count maps.
func tokenCosine(a, b map[string]int) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for term, ca := range a {
		normA += float64(ca) * float64(ca)
		if cb, ok := b[term]; ok {
			dot += float64(ca) * float64(cb)
		}
	}
	for _, cb := range b {
		normB += float64(cb) * float64(cb)
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
