package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/converge/converge/pkg/models"
)

// GetChainState returns the current hash-chain head for chainID.
func (s *SQLStore) GetChainState(ctx context.Context, chainID string) (models.ChainState, error) {
	q := "SELECT chain_id, last_hash, event_count, updated_at FROM event_chain_state WHERE chain_id = " + s.dialect.Placeholder(1)
	var cs models.ChainState
	err := s.db.QueryRowContext(ctx, q, chainID).Scan(&cs.ChainID, &cs.LastHash, &cs.EventCount, &cs.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.ChainState{}, fmt.Errorf("get chain state %s: %w", chainID, ErrNotFound)
		}
		return models.ChainState{}, fmt.Errorf("get chain state %s: %w", chainID, err)
	}
	return cs, nil
}

// SaveChainState persists the hash-chain head, replacing any prior value.
func (s *SQLStore) SaveChainState(ctx context.Context, cs models.ChainState) error {
	d := s.dialect
	ex := d.ExcludedPrefix()
	q := fmt.Sprintf(`INSERT INTO event_chain_state (chain_id, last_hash, event_count, updated_at)
		VALUES (%s)
		ON CONFLICT (chain_id) DO UPDATE SET last_hash = %slast_hash, event_count = %sevent_count, updated_at = %supdated_at`,
		placeholders(d, 1, 4), ex, ex, ex)
	_, err := s.db.ExecContext(ctx, q, cs.ChainID, cs.LastHash, cs.EventCount, cs.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save chain state %s: %w", cs.ChainID, err)
	}
	return nil
}
