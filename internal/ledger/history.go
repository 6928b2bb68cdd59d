package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"creativemind-api/internal/shared"
)

// UsageKind tags a usage history entry with the capability that produced it.
type UsageKind string

const (
	UsageImage     UsageKind = "image"
	UsageVoice     UsageKind = "voice"
	UsageBGRemoval UsageKind = "bg_removal"
)

var usageTypeLabels = map[UsageKind]string{
	UsageImage:     "Image Generation",
	UsageVoice:     "Voice Generation",
	UsageBGRemoval: "Background Removal",
}

// AppendUsageTx records one completed paid operation. Runs inside the same
// transaction as the balance decrement so the pair commits or rolls back
// together. Image generations also bump the per-user counter.
func (s *Store) AppendUsageTx(ctx context.Context, tx *sql.Tx, userID uint64, kind UsageKind, description string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO usage_history (user_id, kind, description, credits)
		VALUES (?, ?, ?, ?)
	`, userID, string(kind), description, shared.TaskCost)
	if err != nil {
		return fmt.Errorf("failed to append usage history: %w", err)
	}

	if kind == UsageImage {
		if _, err := tx.ExecContext(ctx, "UPDATE user SET images_generated = images_generated + 1 WHERE id = ?", userID); err != nil {
			return fmt.Errorf("failed to bump image counter: %w", err)
		}
	}
	return nil
}

// CreditHistory merges purchase transactions and usage entries into one
// timestamp-descending view.
func (s *Store) CreditHistory(ctx context.Context, userID uint64) ([]shared.CreditHistoryEntry, error) {
	entries := []shared.CreditHistoryEntry{}

	rows, err := s.RDB.QueryContext(ctx, `
		SELECT plan, credits, paid, created_at
		FROM transaction
		WHERE user_id = ?
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e shared.CreditHistoryEntry
		var plan string
		var paid bool
		if err := rows.Scan(&plan, &e.Amount, &paid, &e.Date); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		e.Type = "Credit Purchase"
		e.Description = plan + " Plan Purchase"
		e.Status = "pending"
		if paid {
			e.Status = "completed"
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading transactions: %w", err)
	}

	usageRows, err := s.RDB.QueryContext(ctx, `
		SELECT kind, description, credits, created_at
		FROM usage_history
		WHERE user_id = ?
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage history: %w", err)
	}
	defer usageRows.Close()

	for usageRows.Next() {
		var e shared.CreditHistoryEntry
		var kind string
		var credits int64
		if err := usageRows.Scan(&kind, &e.Description, &credits, &e.Date); err != nil {
			return nil, fmt.Errorf("failed to scan usage entry: %w", err)
		}
		label, ok := usageTypeLabels[UsageKind(kind)]
		if !ok {
			label = "Usage"
		}
		e.Type = label
		if e.Description == "" {
			e.Description = label
		}
		e.Amount = -credits
		e.Status = "completed"
		entries = append(entries, e)
	}
	if err := usageRows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading usage history: %w", err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date.After(entries[j].Date)
	})

	return entries, nil
}
