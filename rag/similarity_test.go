package rag

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float64
		expected float64
	}{
		{
			name:     "identical vectors",
			a:        []float64{0.3, 0.5, 0.2},
			b:        []float64{0.3, 0.5, 0.2},
			expected: 1.0,
		},
		{
			name:     "orthogonal vectors",
			a:        []float64{1, 0},
			b:        []float64{0, 1},
			expected: 0.0,
		},
		{
			name:     "zero vector",
			a:        []float64{1, 2, 3},
			b:        []float64{0, 0, 0},
			expected: 0.0,
		},
		{
			name:     "length mismatch",
			a:        []float64{1, 2},
			b:        []float64{1, 2, 3},
			expected: 0.0,
		},
		{
			name:     "empty vectors",
			a:        nil,
			b:        nil,
			expected: 0.0,
		},
		{
			name:     "parallel scaled vectors",
			a:        []float64{1, 2, 3},
			b:        []float64{2, 4, 6},
			expected: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("CosineSimilarity = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCosineSimilaritySymmetry(t *testing.T) {
	a := []float64{0.1, 0.7, 0.3, 0.9}
	b := []float64{0.4, 0.2, 0.8, 0.5}

	if CosineSimilarity(a, b) != CosineSimilarity(b, a) {
		t.Error("expected sim(a,b) == sim(b,a)")
	}
}
