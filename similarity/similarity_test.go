package similarity_test

import (
	"math"
	"testing"

	"github.com/becomeliminal/recall/similarity"
)

func TestCosine_SelfSimilarityIsOne(t *testing.T) {
	vectors := [][]float32{
		{1, 0, 0},
		{0.5, 0.5, 0.7},
		{-3, 2, 9, 0.25},
	}

	for _, v := range vectors {
		score, err := similarity.Cosine(v, v)
		if err != nil {
			t.Fatalf("Cosine(v, v) failed: %v", err)
		}
		if math.Abs(score-1.0) > 1e-6 {
			t.Errorf("Cosine(v, v) = %v, want 1.0", score)
		}
	}
}

func TestCosine_Symmetric(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{-2, 0.5, 4}

	ab, err := similarity.Cosine(a, b)
	if err != nil {
		t.Fatalf("Cosine(a, b) failed: %v", err)
	}
	ba, err := similarity.Cosine(b, a)
	if err != nil {
		t.Fatalf("Cosine(b, a) failed: %v", err)
	}
	if ab != ba {
		t.Errorf("Cosine not symmetric: %v vs %v", ab, ba)
	}
}

func TestCosine_Orthogonal(t *testing.T) {
	score, err := similarity.Cosine([]float32{1, 0}, []float32{0, 1})
	if err != nil {
		t.Fatalf("Cosine failed: %v", err)
	}
	if math.Abs(score) > 1e-9 {
		t.Errorf("orthogonal vectors scored %v, want 0", score)
	}
}

func TestCosine_ZeroVectorErrors(t *testing.T) {
	if _, err := similarity.Cosine([]float32{0, 0, 0}, []float32{1, 2, 3}); err == nil {
		t.Error("expected error for zero-magnitude vector")
	}
	if _, err := similarity.Cosine([]float32{1, 2, 3}, []float32{0, 0, 0}); err == nil {
		t.Error("expected error for zero-magnitude candidate")
	}
}

func TestCosine_DimensionMismatchErrors(t *testing.T) {
	if _, err := similarity.Cosine([]float32{1, 2}, []float32{1, 2, 3}); err == nil {
		t.Error("expected error for mismatched dimensions")
	}
}

func TestRank_OrdersDescending(t *testing.T) {
	query := []float32{1, 0}
	candidates := [][]float32{
		{0, 1},       // orthogonal, score 0
		{1, 0.001},   // near-identical direction
		{-1, 0},      // opposite, score -1
		{0.5, 0.5},   // diagonal
	}

	ranked, err := similarity.Rank(query, candidates, 10)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if len(ranked) != 4 {
		t.Fatalf("got %d results, want 4", len(ranked))
	}

	wantOrder := []int{1, 3, 0, 2}
	for i, want := range wantOrder {
		if ranked[i].Index != want {
			t.Errorf("position %d: got candidate %d, want %d", i, ranked[i].Index, want)
		}
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i].Score > ranked[i-1].Score {
			t.Errorf("scores not descending at position %d", i)
		}
	}
}

func TestRank_LimitTruncates(t *testing.T) {
	query := []float32{1, 1}
	candidates := [][]float32{{1, 0}, {0, 1}, {1, 1}, {2, 1}}

	for limit := 0; limit <= 6; limit++ {
		ranked, err := similarity.Rank(query, candidates, limit)
		if err != nil {
			t.Fatalf("Rank failed: %v", err)
		}
		want := limit
		if want > len(candidates) {
			want = len(candidates)
		}
		if len(ranked) != want {
			t.Errorf("limit %d: got %d results, want %d", limit, len(ranked), want)
		}
	}
}

func TestRank_StableTieBreak(t *testing.T) {
	query := []float32{1, 0}
	// All candidates score identically; output must keep input order.
	candidates := [][]float32{{2, 0}, {3, 0}, {0.5, 0}}

	ranked, err := similarity.Rank(query, candidates, 3)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	for i, r := range ranked {
		if r.Index != i {
			t.Errorf("tie-break not stable: position %d holds candidate %d", i, r.Index)
		}
	}
}

func TestRank_EmptyCandidates(t *testing.T) {
	ranked, err := similarity.Rank([]float32{1, 2}, nil, 5)
	if err != nil {
		t.Fatalf("Rank on empty set failed: %v", err)
	}
	if len(ranked) != 0 {
		t.Errorf("got %d results from empty candidate set, want 0", len(ranked))
	}
}

func TestRank_ZeroCandidateSurfacesError(t *testing.T) {
	_, err := similarity.Rank([]float32{1, 2}, [][]float32{{1, 2}, {0, 0}}, 5)
	if err == nil {
		t.Error("expected error when a candidate has zero magnitude")
	}
}
