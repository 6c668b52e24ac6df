package points

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mim1012/dorami-sub000/internal/config"
	"github.com/mim1012/dorami-sub000/internal/shop"
	"github.com/mim1012/dorami-sub000/internal/testutil"
)

func defaultCfg() config.PointsConfig {
	return config.PointsConfig{
		Enabled:              true,
		MinimumRedemption:    1000,
		MaxRedemptionPercent: 50,
		EarnRatePercent:      1,
	}
}

func TestCheckRedemption(t *testing.T) {
	cfg := defaultCfg()

	t.Run("disabled wins over every other check", func(t *testing.T) {
		off := cfg
		off.Enabled = false
		err := checkRedemption(off, 0, "u1", 1, 1)
		assert.True(t, shop.IsKind(err, shop.KindPointsDisabled))
	})

	t.Run("below minimum", func(t *testing.T) {
		err := checkRedemption(cfg, 5000, "u1", 999, 100000)
		require.True(t, shop.IsKind(err, shop.KindPointsBelowMinimum))
		de, _ := shop.AsDomain(err)
		assert.Equal(t, 1000, de.Available)
	})

	t.Run("exceeds max percent of order total", func(t *testing.T) {
		// 50% of 10000 is 5000; 5001 is over the cap even with balance to spare.
		err := checkRedemption(cfg, 100000, "u1", 5001, 10000)
		require.True(t, shop.IsKind(err, shop.KindPointsExceedMax))
		de, _ := shop.AsDomain(err)
		assert.Equal(t, 5000, de.Available)
	})

	t.Run("insufficient balance checked last", func(t *testing.T) {
		err := checkRedemption(cfg, 2000, "u1", 3000, 10000)
		require.True(t, shop.IsKind(err, shop.KindInsufficientPoints))
		de, _ := shop.AsDomain(err)
		assert.Equal(t, 2000, de.Available)
		assert.Equal(t, 3000, de.Requested)
	})

	t.Run("valid redemption", func(t *testing.T) {
		assert.NoError(t, checkRedemption(cfg, 5000, "u1", 5000, 10000))
	})

	t.Run("cap boundary is inclusive", func(t *testing.T) {
		assert.NoError(t, checkRedemption(cfg, 10000, "u1", 5000, 10000))
	})
}

func TestLedgerAddDeduct(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	l := &Ledger{DB: pool, Cfg: defaultCfg(), TxTimeout: 3 * time.Second}
	user := testutil.InsertUser(t, ctx, pool, "points@test.local")

	bal, err := l.Add(ctx, user, 5000, shop.PointAdminAdjust, "", "welcome credit")
	require.NoError(t, err)
	assert.Equal(t, 5000, bal.CurrentBalance)
	assert.Equal(t, 5000, bal.LifetimeEarned)

	bal, err = l.Deduct(ctx, user, 2000, shop.PointUsedOrder, "ORD-20260901-00001", "order payment")
	require.NoError(t, err)
	assert.Equal(t, 3000, bal.CurrentBalance)
	assert.Equal(t, 2000, bal.LifetimeUsed)

	// current == earned - used - expired must hold after every mutation
	assert.Equal(t, bal.LifetimeEarned-bal.LifetimeUsed-bal.LifetimeExpired, bal.CurrentBalance)
}

func TestLedgerDeductInsufficient(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	l := &Ledger{DB: pool, Cfg: defaultCfg(), TxTimeout: 3 * time.Second}
	user := testutil.InsertUser(t, ctx, pool, "broke@test.local")

	_, err := l.Add(ctx, user, 100, shop.PointAdminAdjust, "", "")
	require.NoError(t, err)

	_, err = l.Deduct(ctx, user, 500, shop.PointUsedOrder, "", "")
	require.True(t, shop.IsKind(err, shop.KindInsufficientPoints))

	// the failed deduction left no trace
	bal, err := l.Balance(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 100, bal.CurrentBalance)

	txs, err := l.History(ctx, user, 20, 0)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestLedgerExpireTracksLifetime(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	l := &Ledger{DB: pool, Cfg: defaultCfg(), TxTimeout: 3 * time.Second}
	user := testutil.InsertUser(t, ctx, pool, "expiring@test.local")

	_, err := l.Add(ctx, user, 1000, shop.PointEarnedOrder, "ORD-20260901-00002", "")
	require.NoError(t, err)
	bal, err := l.Deduct(ctx, user, 1000, shop.PointExpired, "", "12 month expiry")
	require.NoError(t, err)

	assert.Equal(t, 0, bal.CurrentBalance)
	assert.Equal(t, 1000, bal.LifetimeExpired)
	assert.Equal(t, 0, bal.LifetimeUsed)
}

func TestLedgerBalanceUnknownUserIsZero(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	l := &Ledger{DB: pool, Cfg: defaultCfg()}
	bal, err := l.Balance(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, bal.CurrentBalance)
}

func TestLedgerHistoryNewestFirst(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	l := &Ledger{DB: pool, Cfg: defaultCfg(), TxTimeout: 3 * time.Second}
	user := testutil.InsertUser(t, ctx, pool, "history@test.local")

	for i := 0; i < 3; i++ {
		_, err := l.Add(ctx, user, 100*(i+1), shop.PointAdminAdjust, "", "")
		require.NoError(t, err)
	}

	txs, err := l.History(ctx, user, 2, 0)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, 300, txs[0].Amount)
	assert.Equal(t, 600, txs[0].BalanceAfter)

	// out-of-range paging values are clamped, not passed through
	txs, err = l.History(ctx, user, -5, -3)
	require.NoError(t, err)
	assert.Len(t, txs, 3)
}
