package ledger

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/api/internal/config"
)

// newTestGuard backs a guard with an in-process redis: unit cost 1,
// assumed maximum 15 clips, so the pre-flight estimate is 15 credits.
func newTestGuard(t *testing.T) (*Guard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	g := NewGuard(rdb, &config.CreditsConfig{UnitCost: 1, MaxClipsPerJob: 15})
	return g, mr
}

func TestGuard_EstimatedUnits(t *testing.T) {
	g := NewGuard(nil, &config.CreditsConfig{UnitCost: 3, MaxClipsPerJob: 5})

	assert.Equal(t, 15, g.EstimatedUnits())
}

func TestGuard_BalanceAndGrant(t *testing.T) {
	g, _ := newTestGuard(t)
	ctx := context.Background()

	// An account with no ledger entry starts at zero.
	bal, err := g.Balance(ctx, "acct-1")
	require.NoError(t, err)
	assert.Zero(t, bal)

	newBal, err := g.Grant(ctx, "acct-1", 20)
	require.NoError(t, err)
	assert.Equal(t, 20, newBal)

	bal, err = g.Balance(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 20, bal)
}

func TestGuard_PrecheckInsufficient(t *testing.T) {
	g, _ := newTestGuard(t)
	ctx := context.Background()

	_, err := g.Grant(ctx, "acct-1", 2)
	require.NoError(t, err)

	err = g.Precheck(ctx, "acct-1")

	var insufficient *InsufficientError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 15, insufficient.Required)
	assert.Equal(t, 2, insufficient.Available)
}

func TestGuard_PrecheckSufficient(t *testing.T) {
	g, _ := newTestGuard(t)
	ctx := context.Background()

	_, err := g.Grant(ctx, "acct-1", 15)
	require.NoError(t, err)

	assert.NoError(t, g.Precheck(ctx, "acct-1"))
}

func TestGuard_PrecheckUnknownAccount(t *testing.T) {
	g, _ := newTestGuard(t)

	err := g.Precheck(context.Background(), "acct-unknown")

	var insufficient *InsufficientError
	require.ErrorAs(t, err, &insufficient)
	assert.Zero(t, insufficient.Available)
}

func TestGuard_SettleDeductsActualCount(t *testing.T) {
	g, _ := newTestGuard(t)
	ctx := context.Background()

	_, err := g.Grant(ctx, "acct-1", 20)
	require.NoError(t, err)

	// 5 produced clips at unit cost 1, never the 15-credit estimate.
	err = g.Settle(ctx, "acct-1", "job-1", 5, "clip generation job job-1 (5 clips)")
	require.NoError(t, err)

	bal, err := g.Balance(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 15, bal)
}

func TestGuard_SettleIsIdempotentPerJob(t *testing.T) {
	g, _ := newTestGuard(t)
	ctx := context.Background()

	_, err := g.Grant(ctx, "acct-1", 20)
	require.NoError(t, err)

	require.NoError(t, g.Settle(ctx, "acct-1", "job-1", 5, "first"))
	require.NoError(t, g.Settle(ctx, "acct-1", "job-1", 5, "repeat"))
	require.NoError(t, g.Settle(ctx, "acct-1", "job-1", 5, "repeat"))

	bal, err := g.Balance(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 15, bal, "repeated settlement must not deduct again")
}

func TestGuard_SettleSkipsZeroClipCount(t *testing.T) {
	// Nothing produced, nothing to charge: must return before any redis
	// call (a nil client would panic otherwise).
	g := NewGuard(nil, &config.CreditsConfig{UnitCost: 1, MaxClipsPerJob: 15})

	err := g.Settle(context.Background(), "acct-1", "job-1", 0, "empty job")

	assert.NoError(t, err)
}

func TestGuard_SettleReleasesMarkerWhenDeductionFails(t *testing.T) {
	g, mr := newTestGuard(t)
	ctx := context.Background()

	// A balance key of the wrong type makes the deduction fail after the
	// settlement marker was taken.
	mr.HSet(balanceKeyPrefix+"acct-1", "broken", "1")

	err := g.Settle(ctx, "acct-1", "job-1", 5, "first")
	require.Error(t, err)
	assert.False(t, mr.Exists(settledKeyPrefix+"job-1"),
		"failed deduction must release the settlement marker")

	// With the marker released a retry can settle once the balance works.
	mr.Del(balanceKeyPrefix + "acct-1")
	_, err = g.Grant(ctx, "acct-1", 20)
	require.NoError(t, err)

	require.NoError(t, g.Settle(ctx, "acct-1", "job-1", 5, "retry"))

	bal, err := g.Balance(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 15, bal)
}

func TestInsufficientError_Message(t *testing.T) {
	err := &InsufficientError{Required: 15, Available: 2}

	assert.Equal(t, "insufficient credits: need 15, have 2", err.Error())
}
