package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/converge/converge/pkg/models"
)

// Acquire implements the named advisory lock contract of spec.md §5: it
// succeeds iff no unexpired holder currently exists for lockName,
// regardless of who held it before. Expired locks are reclaimable by
// any acquirer, including the same holder that let it expire.
func (s *SQLStore) Acquire(ctx context.Context, lockName, holder string, ttl time.Duration) (bool, error) {
	d := s.dialect
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	ex := d.ExcludedPrefix()

	q := fmt.Sprintf(`INSERT INTO queue_locks (lock_name, holder_pid, acquired_at, expires_at)
		VALUES (%s)
		ON CONFLICT (lock_name) DO UPDATE SET
			holder_pid = %sholder_pid, acquired_at = %sacquired_at, expires_at = %sexpires_at
		WHERE queue_locks.expires_at < %s`,
		placeholders(d, 1, 4), ex, ex, ex, d.Placeholder(5))

	res, err := s.db.ExecContext(ctx, q, lockName, holder, now, expiresAt, now)
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", lockName, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s rows affected: %w", lockName, err)
	}
	return n > 0, nil
}

// Release drops the lock iff holder currently owns it.
func (s *SQLStore) Release(ctx context.Context, lockName, holder string) (bool, error) {
	d := s.dialect
	q := fmt.Sprintf("DELETE FROM queue_locks WHERE lock_name = %s AND holder_pid = %s", d.Placeholder(1), d.Placeholder(2))
	res, err := s.db.ExecContext(ctx, q, lockName, holder)
	if err != nil {
		return false, fmt.Errorf("release lock %s: %w", lockName, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("release lock %s rows affected: %w", lockName, err)
	}
	return n > 0, nil
}

// ForceRelease drops any holder of lockName (operational override).
func (s *SQLStore) ForceRelease(ctx context.Context, lockName string) error {
	q := "DELETE FROM queue_locks WHERE lock_name = " + s.dialect.Placeholder(1)
	if _, err := s.db.ExecContext(ctx, q, lockName); err != nil {
		return fmt.Errorf("force release lock %s: %w", lockName, err)
	}
	return nil
}

// LockInfo returns the current holder row for lockName.
func (s *SQLStore) LockInfo(ctx context.Context, lockName string) (models.QueueLock, error) {
	q := "SELECT lock_name, holder_pid, acquired_at, expires_at FROM queue_locks WHERE lock_name = " + s.dialect.Placeholder(1)
	var l models.QueueLock
	err := s.db.QueryRowContext(ctx, q, lockName).Scan(&l.LockName, &l.Holder, &l.AcquiredAt, &l.ExpiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.QueueLock{}, fmt.Errorf("lock info %s: %w", lockName, ErrNotFound)
		}
		return models.QueueLock{}, fmt.Errorf("lock info %s: %w", lockName, err)
	}
	return l, nil
}

// IsDuplicateDelivery reports whether deliveryID has already been recorded
// and has not yet expired.
func (s *SQLStore) IsDuplicateDelivery(ctx context.Context, deliveryID string) (bool, error) {
	d := s.dialect
	q := fmt.Sprintf("SELECT 1 FROM webhook_deliveries WHERE delivery_id = %s AND expires_at > %s",
		d.Placeholder(1), d.Placeholder(2))
	var exists int
	err := s.db.QueryRowContext(ctx, q, deliveryID, time.Now().UTC()).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check duplicate delivery %s: %w", deliveryID, err)
	}
	return true, nil
}

// RecordDelivery marks deliveryID as seen for ttl.
func (s *SQLStore) RecordDelivery(ctx context.Context, deliveryID string, ttl time.Duration) error {
	d := s.dialect
	now := time.Now().UTC()
	q := fmt.Sprintf(`INSERT INTO webhook_deliveries (delivery_id, seen_at, expires_at) VALUES (%s)
		ON CONFLICT (delivery_id) DO UPDATE SET seen_at = %s, expires_at = %s`,
		placeholders(d, 1, 3), d.Placeholder(4), d.Placeholder(5))
	_, err := s.db.ExecContext(ctx, q, deliveryID, now, now.Add(ttl), now, now.Add(ttl))
	if err != nil {
		return fmt.Errorf("record delivery %s: %w", deliveryID, err)
	}
	return nil
}
