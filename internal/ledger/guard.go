// Package ledger guards the metered credit balance: a conservative
// pre-flight check before any remote work is spent, and a single idempotent
// deduction after a job verifiably completes.
package ledger

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clipforge/api/internal/config"
)

const (
	balanceKeyPrefix = "credits:balance:"
	settledKeyPrefix = "credits:settled:"
	entryKeyPrefix   = "credits:entry:"

	// Settlement markers outlive any realistic reconciliation window.
	settledTTL = 30 * 24 * time.Hour
)

// InsufficientError reports a failed pre-flight balance check. The caller
// redirects the user to a top-up flow; no remote call has been made.
type InsufficientError struct {
	Required  int
	Available int
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("insufficient credits: need %d, have %d", e.Required, e.Available)
}

// Guard owns all reads and writes of the credit balance.
type Guard struct {
	redis          *redis.Client
	unitCost       int
	maxClipsPerJob int
}

// NewGuard creates a ledger guard backed by redis.
func NewGuard(redisClient *redis.Client, cfg *config.CreditsConfig) *Guard {
	return &Guard{
		redis:          redisClient,
		unitCost:       cfg.UnitCost,
		maxClipsPerJob: cfg.MaxClipsPerJob,
	}
}

// EstimatedUnits is the conservative pre-flight estimate: per-clip cost times
// the assumed maximum clip count. Used only to fail fast, never to charge.
func (g *Guard) EstimatedUnits() int {
	return g.unitCost * g.maxClipsPerJob
}

// Balance returns the current credit balance for an account.
func (g *Guard) Balance(ctx context.Context, accountID string) (int, error) {
	val, err := g.redis.Get(ctx, balanceKeyPrefix+accountID).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return val, nil
}

// Grant adds credits to an account and returns the new balance.
func (g *Guard) Grant(ctx context.Context, accountID string, units int) (int, error) {
	newBal, err := g.redis.IncrBy(ctx, balanceKeyPrefix+accountID, int64(units)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to grant credits: %w", err)
	}
	return int(newBal), nil
}

// Precheck verifies the balance covers the conservative estimate. It never
// reserves or holds funds; it exists only to fail fast before submission.
func (g *Guard) Precheck(ctx context.Context, accountID string) error {
	required := g.EstimatedUnits()

	available, err := g.Balance(ctx, accountID)
	if err != nil {
		return err
	}

	if available < required {
		return &InsufficientError{Required: required, Available: available}
	}
	return nil
}

// Settle records the one-time deduction for a completed job. The amount is
// derived from the actual clip count, never an estimate. Idempotent per job:
// a SETNX marker makes repeat calls no-ops. A zero clip count is skipped
// entirely — nothing was produced, nothing to charge.
func (g *Guard) Settle(ctx context.Context, accountID, jobID string, clipCount int, reason string) error {
	if clipCount == 0 {
		return nil
	}

	amount := clipCount * g.unitCost

	ok, err := g.redis.SetNX(ctx, settledKeyPrefix+jobID, amount, settledTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to mark settlement: %w", err)
	}
	if !ok {
		log.Printf("[Ledger] job %s already settled, skipping", jobID)
		return nil
	}

	if err := g.redis.DecrBy(ctx, balanceKeyPrefix+accountID, int64(amount)).Err(); err != nil {
		// Release the marker so out-of-band reconciliation can retry.
		g.redis.Del(ctx, settledKeyPrefix+jobID)
		return fmt.Errorf("failed to deduct %d credits: %w", amount, err)
	}

	entry := map[string]interface{}{
		"account":   accountID,
		"job":       jobID,
		"amount":    amount,
		"clipCount": clipCount,
		"reason":    reason,
		"at":        time.Now().UTC().Format(time.RFC3339),
	}
	if err := g.redis.HSet(ctx, entryKeyPrefix+jobID, entry).Err(); err != nil {
		// The deduction stands; the audit entry is best-effort.
		log.Printf("[Ledger] failed to record entry for job %s: %v", jobID, err)
	}

	log.Printf("[Ledger] settled job %s: %d clips, %d credits (%s)", jobID, clipCount, amount, reason)
	return nil
}
