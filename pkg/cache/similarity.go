package cache

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"
)

// Match is a similarity-scan result above the configured threshold.
type Match struct {
	Record *Record
	Score  float64
}

// CosineSimilarity computes the normalized dot product of two vectors,
// range [-1, 1]. Returns 0 for zero-magnitude vectors. Callers must ensure
// equal dimensions.
func CosineSimilarity(a, b []float32) float64 {
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

// BestMatch scores every candidate with a present embedding against the
// query embedding and selects the highest-scoring one.
//
// Candidates that have logically expired at now are rejected. Candidates
// whose embedding dimension disagrees with the query's are skipped and
// counted; if every scoreable candidate mismatches, ErrDimensionMismatch is
// returned because that indicates a configuration error rather than a
// similarity failure.
//
// The returned Match is nil when the best score is below threshold. The best
// score is returned regardless, for observability. Ties on the identical
// maximal score are broken in favor of the more recently created record;
// since candidates arrive most-recent-first, the first candidate at a given
// score wins.
func BestMatch(queryEmbedding []float32, candidates []*Record, threshold float64, now time.Time) (*Match, float64, error) {
	var (
		best       *Record
		bestScore  float64
		scoreable  int
		mismatched int
	)

	for _, cand := range candidates {
		if cand == nil || !cand.HasEmbedding() {
			continue
		}
		if cand.ExpiredAt(now) {
			continue
		}
		scoreable++

		if len(cand.Embedding) != len(queryEmbedding) {
			mismatched++
			log.Error().
				Str("namespace", cand.Namespace).
				Str("canonical_hash", cand.CanonicalHash).
				Int("candidate_dim", len(cand.Embedding)).
				Int("query_dim", len(queryEmbedding)).
				Msg("Embedding dimension mismatch, candidate skipped")
			DimensionMismatches.Inc()
			continue
		}

		score := CosineSimilarity(queryEmbedding, cand.Embedding)
		if best == nil || score > bestScore {
			best = cand
			bestScore = score
		} else if score == bestScore && cand.CreatedAt.After(best.CreatedAt) {
			best = cand
		}
	}

	if scoreable > 0 && mismatched == scoreable {
		return nil, 0, ErrDimensionMismatch
	}
	if best == nil || bestScore < threshold {
		return nil, bestScore, nil
	}
	return &Match{Record: best, Score: bestScore}, bestScore, nil
}
