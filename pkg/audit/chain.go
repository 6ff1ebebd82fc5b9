// Package audit implements the hash-chained integrity layer over the
// event log (spec.md §4.3): a running SHA-256 digest that lets a caller
// detect after the fact whether any event was altered or removed.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/converge/converge/pkg/eventlog"
	"github.com/converge/converge/pkg/models"
	"github.com/converge/converge/pkg/store"
)

// MainChainID is the single chain most deployments key everything under.
const MainChainID = "main"

// genesisHash is 64 hex zero digits: the chain's starting prev_hash.
const genesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Chain computes and verifies the hash chain over a Store's event log.
type Chain struct {
	store store.Store
	log   *eventlog.Log
}

// New returns a Chain over the given store, emitting its own lifecycle
// events through log.
func New(s store.Store, log *eventlog.Log) *Chain {
	return &Chain{store: s, log: log}
}

// VerifyResult is the outcome of Verify.
type VerifyResult struct {
	Verified   bool   `json:"verified"`
	Reason     string `json:"reason,omitempty"`
	LastHash   string `json:"last_hash"`
	EventCount int    `json:"event_count"`
}

// canonicalJSON renders v with lexicographically sorted keys and no
// whitespace. encoding/json already sorts map[string]any keys at every
// nesting level, so a plain compact Marshal satisfies this on its own.
func canonicalJSON(v map[string]any) (string, error) {
	if v == nil {
		v = map[string]any{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("audit: canonical json: %w", err)
	}
	return string(b), nil
}

func nextHash(prev string, e models.Event) (string, error) {
	payload, err := canonicalJSON(e.Payload)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(prev))
	h.Write([]byte("|"))
	h.Write([]byte(e.ID))
	h.Write([]byte("|"))
	h.Write([]byte(e.Timestamp.UTC().Format(time.RFC3339Nano)))
	h.Write([]byte("|"))
	h.Write([]byte(e.EventType))
	h.Write([]byte("|"))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// replay walks every event in chronological order, skipping the chain's
// own lifecycle events (TypeChainInitialized, TypeChainVerified,
// TypeChainTamperDetected), and returns the resulting (lastHash, count)
// over the events it hashed.
func (c *Chain) replay(ctx context.Context) (string, int, error) {
	total, err := c.store.CountEvents(ctx, models.EventFilters{})
	if err != nil {
		return "", 0, fmt.Errorf("audit: replay count: %w", err)
	}
	events, err := c.store.QueryEvents(ctx, models.EventFilters{}, total)
	if err != nil {
		return "", 0, fmt.Errorf("audit: replay query: %w", err)
	}
	// QueryEvents returns newest-first; the chain walks oldest-first.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}

	hash := genesisHash
	count := 0
	for _, e := range events {
		switch e.EventType {
		case eventlog.TypeChainInitialized, eventlog.TypeChainVerified, eventlog.TypeChainTamperDetected:
			continue
		}
		hash, err = nextHash(hash, e)
		if err != nil {
			return "", 0, err
		}
		count++
	}
	return hash, count, nil
}

// Initialize walks the full event log (minus the chain's own lifecycle
// events), computes the running hash, and persists (last_hash,
// event_count), emitting CHAIN_INITIALIZED. Safe to call again later to
// re-anchor after a verified tamper report.
func (c *Chain) Initialize(ctx context.Context, traceID string) (models.ChainState, error) {
	hash, count, err := c.replay(ctx)
	if err != nil {
		return models.ChainState{}, err
	}
	state := models.ChainState{
		ChainID:    MainChainID,
		LastHash:   hash,
		EventCount: count,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := c.store.SaveChainState(ctx, state); err != nil {
		return models.ChainState{}, fmt.Errorf("audit: save chain state: %w", err)
	}
	if c.log != nil {
		_, _ = c.log.Emit(ctx, eventlog.TypeChainInitialized, traceID, nil, nil, nil, map[string]any{
			"chain_id":    state.ChainID,
			"last_hash":   state.LastHash,
			"event_count": state.EventCount,
		})
	}
	return state, nil
}

// Verify recomputes the chain from scratch and compares it against the
// persisted state. A mismatch in either the hash or the count is treated
// as tamper evidence. The chain's own initialized/verified/tamper events
// are left out of every replay, so the event Initialize or Verify emits
// does not change what the next Initialize/Verify compares.
func (c *Chain) Verify(ctx context.Context, traceID string) (VerifyResult, error) {
	stored, err := c.store.GetChainState(ctx, MainChainID)
	if err != nil {
		if store.IsNotFound(err) {
			return VerifyResult{Verified: false, Reason: "chain not initialized"}, nil
		}
		return VerifyResult{}, fmt.Errorf("audit: get chain state: %w", err)
	}

	hash, count, err := c.replay(ctx)
	if err != nil {
		return VerifyResult{}, err
	}

	result := VerifyResult{LastHash: hash, EventCount: count}
	if hash == stored.LastHash && count == stored.EventCount {
		result.Verified = true
		if c.log != nil {
			_, _ = c.log.Emit(ctx, eventlog.TypeChainVerified, traceID, nil, nil, nil, map[string]any{
				"chain_id":    MainChainID,
				"last_hash":   hash,
				"event_count": count,
			})
		}
		return result, nil
	}

	result.Verified = false
	result.Reason = "hash or count mismatch"
	if c.log != nil {
		_, _ = c.log.Emit(ctx, eventlog.TypeChainTamperDetected, traceID, nil, nil, nil, map[string]any{
			"chain_id":       MainChainID,
			"expected_hash":  stored.LastHash,
			"computed_hash":  hash,
			"expected_count": stored.EventCount,
			"computed_count": count,
		})
	}
	return result, nil
}
