package fragrance

import (
	"fmt"
	"math"

	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

// DefaultDimensions is the width of catalog embeddings.
const DefaultDimensions = 1536

// Embedding is a fixed-length vector describing a fragrance or a synthesized
// taste profile. Only vectors of equal length can be compared.
type Embedding []float32

// IsZero reports whether every component is zero (including the empty vector).
func (e Embedding) IsZero() bool {
	for _, v := range e {
		if v != 0 {
			return false
		}
	}
	return true
}

// Norm returns the Euclidean length of e.
func (e Embedding) Norm() float64 {
	var sum float64
	for _, v := range e {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// IncompatibleDimensions builds the error returned for mismatched vector lengths.
func IncompatibleDimensions(a, b int) error {
	return errors.New(errors.ErrCodeIncompatibleDimensions, "embedding dimensions do not match").
		WithDetail(fmt.Sprintf("%d != %d", a, b))
}

// IsIncompatibleDimensions reports whether err originates from a length mismatch.
func IsIncompatibleDimensions(err error) bool {
	return errors.IsCode(err, errors.ErrCodeIncompatibleDimensions)
}

// CosineSimilarity returns the cosine of the angle between a and b, clamped to
// [-1, 1]. Zero or empty vectors have no direction and yield 0.
func CosineSimilarity(a, b Embedding) (float64, error) {
	if len(a) != len(b) {
		return 0, IncompatibleDimensions(len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Max(-1, math.Min(1, sim)), nil
}

// Weighted pairs a vector with its aggregation weight.
type Weighted struct {
	Vector Embedding
	Weight float64
}

// WeightedAverage accumulates weight*vector component-wise and normalizes by
// the total weight. Samples with empty vectors are skipped. A zero total weight
// yields an all-zero vector of the sample width (DefaultDimensions when no
// sample carries a vector).
func WeightedAverage(samples []Weighted) (Embedding, error) {
	dims := 0
	for _, s := range samples {
		if len(s.Vector) == 0 {
			continue
		}
		if dims == 0 {
			dims = len(s.Vector)
			continue
		}
		if len(s.Vector) != dims {
			return nil, IncompatibleDimensions(dims, len(s.Vector))
		}
	}
	if dims == 0 {
		return make(Embedding, DefaultDimensions), nil
	}

	acc := make([]float64, dims)
	var total float64
	for _, s := range samples {
		if len(s.Vector) == 0 || s.Weight <= 0 {
			continue
		}
		for i, v := range s.Vector {
			acc[i] += s.Weight * float64(v)
		}
		total += s.Weight
	}

	out := make(Embedding, dims)
	if total == 0 {
		return out, nil
	}
	for i := range acc {
		out[i] = float32(acc[i] / total)
	}
	return out, nil
}
