package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/converge/converge/pkg/models"
)

// UpsertEmbedding inserts or replaces the stored vector for (intent_id, model).
func (s *SQLStore) UpsertEmbedding(ctx context.Context, e models.Embedding) error {
	vec, err := json.Marshal(e.Vector)
	if err != nil {
		return fmt.Errorf("marshal embedding vector: %w", err)
	}
	d := s.dialect
	q := fmt.Sprintf(`INSERT INTO intent_embeddings (intent_id, model, dimension, checksum, vector, generated_at)
		VALUES (%s)
		ON CONFLICT (intent_id, model) DO UPDATE SET dimension = %s, checksum = %s, vector = %s, generated_at = %s`,
		placeholders(d, 1, 6), d.Placeholder(7), d.Placeholder(8), d.Placeholder(9), d.Placeholder(10))
	_, err = s.db.ExecContext(ctx, q,
		e.IntentID, e.Model, e.Dimension, e.Checksum, vec, e.GeneratedAt,
		e.Dimension, e.Checksum, vec, e.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}
	return nil
}

func scanEmbedding(row interface{ Scan(...any) error }) (models.Embedding, error) {
	var e models.Embedding
	var vec string
	if err := row.Scan(&e.IntentID, &e.Model, &e.Dimension, &e.Checksum, &vec, &e.GeneratedAt); err != nil {
		return models.Embedding{}, err
	}
	if err := json.Unmarshal([]byte(vec), &e.Vector); err != nil {
		return models.Embedding{}, fmt.Errorf("unmarshal embedding vector: %w", err)
	}
	return e, nil
}

// GetEmbedding fetches the stored vector for (intentID, model).
func (s *SQLStore) GetEmbedding(ctx context.Context, intentID, model string) (models.Embedding, error) {
	d := s.dialect
	q := fmt.Sprintf("SELECT intent_id, model, dimension, checksum, vector, generated_at FROM intent_embeddings WHERE intent_id = %s AND model = %s",
		d.Placeholder(1), d.Placeholder(2))
	row := s.db.QueryRowContext(ctx, q, intentID, model)
	e, err := scanEmbedding(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Embedding{}, fmt.Errorf("get embedding %s/%s: %w", intentID, model, ErrNotFound)
		}
		return models.Embedding{}, err
	}
	return e, nil
}

// ListEmbeddings returns every stored vector for a given model.
func (s *SQLStore) ListEmbeddings(ctx context.Context, model string) ([]models.Embedding, error) {
	q := "SELECT intent_id, model, dimension, checksum, vector, generated_at FROM intent_embeddings WHERE model = " + s.dialect.Placeholder(1)
	rows, err := s.db.QueryContext(ctx, q, model)
	if err != nil {
		return nil, fmt.Errorf("list embeddings: %w", err)
	}
	defer rows.Close()

	var out []models.Embedding
	for rows.Next() {
		e, err := scanEmbedding(rows)
		if err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteEmbedding removes the stored vector for (intentID, model).
func (s *SQLStore) DeleteEmbedding(ctx context.Context, intentID, model string) error {
	d := s.dialect
	q := fmt.Sprintf("DELETE FROM intent_embeddings WHERE intent_id = %s AND model = %s", d.Placeholder(1), d.Placeholder(2))
	_, err := s.db.ExecContext(ctx, q, intentID, model)
	if err != nil {
		return fmt.Errorf("delete embedding: %w", err)
	}
	return nil
}

// EmbeddingCoverage reports how many distinct intents have an embedding
// for model, against the total intent count.
func (s *SQLStore) EmbeddingCoverage(ctx context.Context, model string) (int, int, error) {
	var covered, total int
	q := "SELECT COUNT(*) FROM intent_embeddings WHERE model = " + s.dialect.Placeholder(1)
	if err := s.db.QueryRowContext(ctx, q, model).Scan(&covered); err != nil {
		return 0, 0, fmt.Errorf("embedding coverage (covered): %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM intents").Scan(&total); err != nil {
		return 0, 0, fmt.Errorf("embedding coverage (total): %w", err)
	}
	return covered, total, nil
}
