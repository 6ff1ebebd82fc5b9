package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/converge/converge/pkg/models"
)

// jsonBlobUpsert implements the generic "(tenant_key, data, updated_at)"
// upsert pattern named in spec.md §4.1's internal note: every policy
// table (agent/risk/compliance/ownership) shares this shape, keyed by
// (tenant_id, identifier) collapsed to one composite key column.
func (s *SQLStore) jsonBlobUpsert(ctx context.Context, table, keyCol string, key string, data any) error {
	blob, err := marshalJSON(data)
	if err != nil {
		return err
	}
	d := s.dialect
	q := fmt.Sprintf(`INSERT INTO %s (%s, data, updated_at) VALUES (%s)
		ON CONFLICT (%s) DO UPDATE SET data = %s, updated_at = %s`,
		table, keyCol, placeholders(d, 1, 3),
		keyCol, d.Placeholder(4), d.Placeholder(5))
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, q, key, blob, now, blob, now)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	return nil
}

func (s *SQLStore) jsonBlobGet(ctx context.Context, table, keyCol, key string, dst any) error {
	q := fmt.Sprintf("SELECT data FROM %s WHERE %s = %s", table, keyCol, s.dialect.Placeholder(1))
	var blob string
	if err := s.db.QueryRowContext(ctx, q, key).Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("get %s: %w", table, err)
	}
	return unmarshalJSON(blob, dst)
}

// agentPolicyKey combines tenant and agent into one composite key since
// agent policies are keyed by (agent_id, tenant_id) rather than tenant alone.
func agentPolicyKey(agentID string, tenantID *string) string {
	return tenantKey(tenantID) + "\x00" + agentID
}

func (s *SQLStore) UpsertAgentPolicy(ctx context.Context, p models.AgentPolicy) error {
	return s.jsonBlobUpsert(ctx, "agent_policies", "policy_key", agentPolicyKey(p.AgentID, p.TenantID), p)
}

func (s *SQLStore) GetAgentPolicy(ctx context.Context, agentID string, tenantID *string) (models.AgentPolicy, error) {
	var p models.AgentPolicy
	err := s.jsonBlobGet(ctx, "agent_policies", "policy_key", agentPolicyKey(agentID, tenantID), &p)
	if err != nil {
		if err == ErrNotFound {
			return models.DefaultAgentPolicy(agentID, tenantID), nil
		}
		return models.AgentPolicy{}, err
	}
	return p, nil
}

func (s *SQLStore) UpsertRiskPolicy(ctx context.Context, p models.RiskPolicy) error {
	return s.jsonBlobUpsert(ctx, "risk_policies", "tenant_key", tenantKey(p.TenantID), p)
}

func (s *SQLStore) GetRiskPolicy(ctx context.Context, tenantID *string) (models.RiskPolicy, error) {
	var p models.RiskPolicy
	err := s.jsonBlobGet(ctx, "risk_policies", "tenant_key", tenantKey(tenantID), &p)
	if err != nil {
		if err == ErrNotFound {
			return models.DefaultRiskPolicy(), nil
		}
		return models.RiskPolicy{}, err
	}
	return p, nil
}

func (s *SQLStore) UpsertComplianceThresholds(ctx context.Context, t models.ComplianceThresholds) error {
	return s.jsonBlobUpsert(ctx, "compliance_thresholds", "tenant_key", tenantKey(t.TenantID), t)
}

func (s *SQLStore) GetComplianceThresholds(ctx context.Context, tenantID *string) (models.ComplianceThresholds, error) {
	var t models.ComplianceThresholds
	err := s.jsonBlobGet(ctx, "compliance_thresholds", "tenant_key", tenantKey(tenantID), &t)
	if err != nil {
		if err == ErrNotFound {
			return models.DefaultComplianceThresholds(), nil
		}
		return models.ComplianceThresholds{}, err
	}
	return t, nil
}

func (s *SQLStore) UpsertOwnership(ctx context.Context, o models.OwnershipConfig) error {
	return s.jsonBlobUpsert(ctx, "ownership_configs", "tenant_key", tenantKey(o.TenantID), o)
}

func (s *SQLStore) GetOwnership(ctx context.Context, tenantID *string) (models.OwnershipConfig, error) {
	var o models.OwnershipConfig
	err := s.jsonBlobGet(ctx, "ownership_configs", "tenant_key", tenantKey(tenantID), &o)
	if err != nil {
		if err == ErrNotFound {
			return models.OwnershipConfig{TenantID: tenantID}, nil
		}
		return models.OwnershipConfig{}, err
	}
	return o, nil
}
