package cache

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    []float32
		b    []float32
		want float64
	}{
		{
			name: "identical",
			a:    []float32{1, 2, 3},
			b:    []float32{1, 2, 3},
			want: 1.0,
		},
		{
			name: "scaled_copy",
			a:    []float32{1, 2, 3},
			b:    []float32{2, 4, 6},
			want: 1.0,
		},
		{
			name: "orthogonal",
			a:    []float32{1, 0},
			b:    []float32{0, 1},
			want: 0.0,
		},
		{
			name: "opposite",
			a:    []float32{1, 0},
			b:    []float32{-1, 0},
			want: -1.0,
		},
		{
			name: "zero_vector",
			a:    []float32{0, 0},
			b:    []float32{1, 1},
			want: 0.0,
		},
		{
			name: "known_angle",
			a:    []float32{1, 0},
			b:    []float32{0.8, 0.6},
			want: 0.8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("CosineSimilarity = %f, want %f", got, tt.want)
			}
		})
	}
}

func candidate(hash string, embedding []float32, age time.Duration, now time.Time) *Record {
	return &Record{
		Namespace:     "test",
		CanonicalHash: hash,
		QueryText:     "query " + hash,
		Embedding:     embedding,
		Payload:       []byte("payload"),
		CreatedAt:     now.Add(-age),
		TTLSeconds:    3600,
	}
}

func TestBestMatch(t *testing.T) {
	now := time.Now().UTC()
	query := []float32{1, 0}

	t.Run("hit_above_threshold", func(t *testing.T) {
		cands := []*Record{
			candidate("close", []float32{0.97, 0.2431}, time.Minute, now),
			candidate("far", []float32{0.5, 0.866}, time.Minute, now),
		}

		match, score, err := BestMatch(query, cands, 0.95, now)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if match == nil {
			t.Fatal("Expected a match")
		}
		if match.Record.CanonicalHash != "close" {
			t.Errorf("Expected 'close' to win, got %q", match.Record.CanonicalHash)
		}
		if math.Abs(score-0.97) > 1e-3 {
			t.Errorf("Expected score near 0.97, got %f", score)
		}
	})

	t.Run("best_below_threshold", func(t *testing.T) {
		cands := []*Record{
			candidate("a", []float32{0.8, 0.6}, time.Minute, now),
		}

		match, score, err := BestMatch(query, cands, 0.95, now)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if match != nil {
			t.Errorf("Expected no match below threshold, got %q", match.Record.CanonicalHash)
		}
		if math.Abs(score-0.8) > 1e-3 {
			t.Errorf("Expected best score 0.8 reported for observability, got %f", score)
		}
	})

	t.Run("expired_candidates_rejected", func(t *testing.T) {
		cands := []*Record{
			candidate("expired", []float32{1, 0}, 2*time.Hour, now),
		}

		match, _, err := BestMatch(query, cands, 0.95, now)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if match != nil {
			t.Error("Expired candidate must not match")
		}
	})

	t.Run("embedding_less_candidates_skipped", func(t *testing.T) {
		cands := []*Record{
			candidate("no_embedding", nil, time.Minute, now),
			candidate("with_embedding", []float32{1, 0}, time.Minute, now),
		}

		match, _, err := BestMatch(query, cands, 0.95, now)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if match == nil || match.Record.CanonicalHash != "with_embedding" {
			t.Error("Expected the embedded candidate to match")
		}
	})

	t.Run("partial_dimension_mismatch_skipped", func(t *testing.T) {
		cands := []*Record{
			candidate("wrong_dim", []float32{1, 0, 0}, time.Minute, now),
			candidate("right_dim", []float32{1, 0}, time.Minute, now),
		}

		match, _, err := BestMatch(query, cands, 0.95, now)
		if err != nil {
			t.Fatalf("Mismatched candidate should be skipped, not fatal: %v", err)
		}
		if match == nil || match.Record.CanonicalHash != "right_dim" {
			t.Error("Expected the correctly-sized candidate to match")
		}
	})

	t.Run("all_dimensions_mismatch", func(t *testing.T) {
		cands := []*Record{
			candidate("wrong_a", []float32{1, 0, 0}, time.Minute, now),
			candidate("wrong_b", []float32{0, 1, 0}, time.Minute, now),
		}

		_, _, err := BestMatch(query, cands, 0.95, now)
		if !errors.Is(err, ErrDimensionMismatch) {
			t.Errorf("Expected ErrDimensionMismatch, got %v", err)
		}
	})

	t.Run("tie_breaks_to_most_recent", func(t *testing.T) {
		cands := []*Record{
			candidate("newer", []float32{2, 0}, time.Minute, now),
			candidate("older", []float32{1, 0}, time.Hour, now),
		}

		match, _, err := BestMatch(query, cands, 0.95, now)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if match == nil || match.Record.CanonicalHash != "newer" {
			t.Error("Expected the more recent record to win the tie")
		}
	})

	t.Run("no_candidates", func(t *testing.T) {
		match, score, err := BestMatch(query, nil, 0.95, now)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if match != nil || score != 0 {
			t.Errorf("Expected nil match and zero score, got %v / %f", match, score)
		}
	})
}
