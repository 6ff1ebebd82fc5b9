// Package semantic implements the canonical-text builder, deterministic
// embedding provider, and cosine-similarity conflict detection of
// spec.md §4.11.
package semantic

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/converge/converge/pkg/eventlog"
	"github.com/converge/converge/pkg/models"
	"github.com/converge/converge/pkg/store"
)

// DefaultSimilarityThreshold matches spec.md §4.11's default.
const DefaultSimilarityThreshold = 0.80

// DefaultDimension is the deterministic provider's vector width (spec.md
// §9: "64 for the deterministic provider").
const DefaultDimension = 64

// DefaultModel names the deterministic embedding provider for storage
// keys and the embedding table's `model` column.
const DefaultModel = "deterministic-sha256-v1"

// BuildCanonicalText renders a deterministic newline-joined list of
// key:value facts about an intent (spec.md §4.11), with every
// multi-valued fact's members sorted so textually-identical intents
// always produce byte-identical canonical text.
func BuildCanonicalText(intent models.Intent) string {
	var lines []string
	lines = append(lines, fmt.Sprintf("id:%s", intent.ID))
	lines = append(lines, fmt.Sprintf("source:%s", intent.Source))
	lines = append(lines, fmt.Sprintf("target:%s", intent.Target))

	semanticKeys := map[string]string{
		"problem":     intent.Semantic.Problem,
		"objective":   intent.Semantic.Objective,
		"description": intent.Semantic.Description,
	}
	for k, v := range intent.Semantic.Extra {
		semanticKeys["extra."+k] = v
	}
	lines = append(lines, sortedKVLines("semantic", semanticKeys)...)

	lines = append(lines, sortedListLines("scope", intent.Technical.ScopeHints)...)
	lines = append(lines, sortedListLines("deps", intent.Dependencies)...)
	lines = append(lines, sortedListLines("links", intent.Technical.Refs)...)
	lines = append(lines, sortedListLines("coupling", couplingFacts(intent))...)

	return strings.Join(lines, "\n")
}

// couplingFacts renders the scope-hint pairs an intent's ScopeHints imply
// are coupled: every 2-combination of hints, sorted, standing in for a
// historical file-pair coupling signal, which would need a repository's
// commit log that BuildCanonicalText (seeing one intent in isolation)
// does not have.
func couplingFacts(intent models.Intent) []string {
	hints := append([]string{}, intent.Technical.ScopeHints...)
	sort.Strings(hints)
	facts := make([]string, 0, len(hints)*(len(hints)-1)/2)
	for i := 0; i < len(hints); i++ {
		for j := i + 1; j < len(hints); j++ {
			facts = append(facts, fmt.Sprintf("%s~%s", hints[i], hints[j]))
		}
	}
	return facts
}

func sortedKVLines(prefix string, kv map[string]string) []string {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		if kv[k] == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s.%s:%s", prefix, k, kv[k]))
	}
	return lines
}

func sortedListLines(prefix string, values []string) []string {
	sorted := append([]string{}, values...)
	sort.Strings(sorted)
	lines := make([]string, 0, len(sorted))
	for _, v := range sorted {
		lines = append(lines, fmt.Sprintf("%s:%s", prefix, v))
	}
	return lines
}

// CanonicalChecksum returns the SHA-256 hex digest of text.
func CanonicalChecksum(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Embed deterministically expands text into a unit-norm vector of
// dimension via repeated SHA-256 hashing (spec.md §4.11): identical text
// always yields an identical vector, so cosine-similarity-based
// duplicate detection works in tests without an ML dependency.
func Embed(text string, dimension int) []float64 {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	vec := make([]float64, dimension)
	seed := []byte(text)
	var counter uint32
	var block [sha256.Size]byte
	idx := 0
	for idx < dimension {
		var ctrBytes [4]byte
		binary.BigEndian.PutUint32(ctrBytes[:], counter)
		block = sha256.Sum256(append(append([]byte{}, seed...), ctrBytes[:]...))
		for i := 0; i < len(block) && idx < dimension; i += 4 {
			v := binary.BigEndian.Uint32(block[i:])
			// Map to [-1, 1] for a zero-centered raw component.
			vec[idx] = float64(v)/float64(^uint32(0))*2 - 1
			idx++
		}
		counter++
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// CosineSimilarity computes the cosine similarity of two equal-length
// vectors, falling back per-pair dot product (spec.md §9) since the
// deterministic provider's dimension is small.
func CosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// ConflictCandidate is a pair of intents whose semantic similarity
// exceeded the configured threshold (spec.md §4.11).
type ConflictCandidate struct {
	IntentA    string  `json:"intent_a"`
	IntentB    string  `json:"intent_b"`
	Similarity float64 `json:"similarity"`
}

// scopeOverlap is the Jaccard index of two intents' scope hints.
func scopeOverlap(a, b models.Intent) float64 {
	if len(a.Technical.ScopeHints) == 0 || len(b.Technical.ScopeHints) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a.Technical.ScopeHints))
	for _, h := range a.Technical.ScopeHints {
		set[h] = struct{}{}
	}
	var intersection int
	union := make(map[string]struct{}, len(set))
	for k := range set {
		union[k] = struct{}{}
	}
	for _, h := range b.Technical.ScopeHints {
		if _, ok := set[h]; ok {
			intersection++
		}
		union[h] = struct{}{}
	}
	if len(union) == 0 {
		return 0
	}
	return float64(intersection) / float64(len(union))
}

// combinedConflictScore blends cosine similarity with scope and target
// overlap (spec.md §4.11). Similarity dominates since it is the signal
// that embeds both problem statement and description; scope and target
// overlap corroborate that two intents are likely to collide in the same
// merge window rather than merely discuss similar things.
func combinedConflictScore(similarity, scope float64, targetOverlap bool) float64 {
	score := 0.7*similarity + 0.2*scope
	if targetOverlap {
		score += 0.1
	}
	if score > 1 {
		score = 1
	}
	return score
}

// Indexer persists embeddings for intents and scans for conflicts.
type Indexer struct {
	store     store.Store
	log       *eventlog.Log
	dimension int
}

// New returns an Indexer using the default model/dimension.
func New(s store.Store, log *eventlog.Log) *Indexer {
	return &Indexer{store: s, log: log, dimension: DefaultDimension}
}

// IndexIntent computes and persists the embedding for intent.
func (idx *Indexer) IndexIntent(ctx context.Context, intent models.Intent) (models.Embedding, error) {
	text := BuildCanonicalText(intent)
	vec := Embed(text, idx.dimension)
	emb := models.Embedding{
		IntentID:    intent.ID,
		Model:       DefaultModel,
		Dimension:   idx.dimension,
		Checksum:    CanonicalChecksum(text),
		Vector:      vec,
		GeneratedAt: time.Now().UTC(),
	}
	if err := idx.store.UpsertEmbedding(ctx, emb); err != nil {
		return models.Embedding{}, fmt.Errorf("semantic: index intent %s: %w", intent.ID, err)
	}
	return emb, nil
}

// ScanConflicts compares every pair of embeddings for model, gates on raw
// cosine similarity exceeding threshold, then scores each surviving pair's
// CombinedScore by blending that similarity with scope-hint Jaccard
// overlap and target-branch equality (spec.md §4.11). Every pair that
// passes the gate is persisted as a ConflictCandidate row and reported via
// a SEMANTIC_CONFLICT_DETECTED event so VerificationDebt's conflict-
// pressure term has a real input.
func (idx *Indexer) ScanConflicts(ctx context.Context, traceID string, threshold float64, intents []models.Intent) ([]ConflictCandidate, error) {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	embeddings, err := idx.store.ListEmbeddings(ctx, DefaultModel)
	if err != nil {
		return nil, fmt.Errorf("semantic: scan conflicts: %w", err)
	}
	intentByID := make(map[string]models.Intent, len(intents))
	for _, i := range intents {
		intentByID[i.ID] = i
	}

	var candidates []ConflictCandidate
	for i := 0; i < len(embeddings); i++ {
		for j := i + 1; j < len(embeddings); j++ {
			a, b := embeddings[i], embeddings[j]
			sim := CosineSimilarity(a.Vector, b.Vector)
			if sim <= threshold {
				continue
			}

			ia, ib := intentByID[a.IntentID], intentByID[b.IntentID]
			scope := scopeOverlap(ia, ib)
			targetOverlap := ia.Target != "" && ia.Target == ib.Target
			combined := combinedConflictScore(sim, scope, targetOverlap)

			candidates = append(candidates, ConflictCandidate{IntentA: a.IntentID, IntentB: b.IntentID, Similarity: sim})

			row := models.ConflictCandidate{
				IntentA:       a.IntentID,
				IntentB:       b.IntentID,
				Similarity:    sim,
				ScopeOverlap:  scope,
				TargetOverlap: targetOverlap,
				CombinedScore: combined,
				DetectedAt:    time.Now().UTC(),
			}
			if err := idx.store.RecordConflictCandidate(ctx, row); err != nil {
				return nil, fmt.Errorf("semantic: scan conflicts: %w", err)
			}
			if _, err := idx.log.Emit(ctx, eventlog.TypeSemanticConflictDetected, traceID, &a.IntentID, nil, nil, map[string]any{
				"intent_a":       a.IntentID,
				"intent_b":       b.IntentID,
				"similarity":     sim,
				"scope_overlap":  scope,
				"target_overlap": targetOverlap,
				"combined_score": combined,
			}); err != nil {
				return nil, fmt.Errorf("semantic: scan conflicts: %w", err)
			}
		}
	}
	return candidates, nil
}

// ResolveConflict emits SEMANTIC_CONFLICT_RESOLVED for a handled pair.
func (idx *Indexer) ResolveConflict(ctx context.Context, traceID string, candidate ConflictCandidate, resolution string) error {
	_, err := idx.log.Emit(ctx, eventlog.TypeSemanticConflictResolved, traceID, &candidate.IntentA, nil, nil, map[string]any{
		"intent_a":   candidate.IntentA,
		"intent_b":   candidate.IntentB,
		"similarity": candidate.Similarity,
		"resolution": resolution,
	})
	if err != nil {
		return fmt.Errorf("semantic: resolve conflict: %w", err)
	}
	return nil
}
