package inventory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mim1012/dorami-sub000/internal/shop"
	"github.com/mim1012/dorami-sub000/internal/testutil"
)

func newTestRepo(t *testing.T) (*Repo, context.Context) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)
	return &Repo{DB: pool, TxTimeout: 5 * time.Second}, ctx
}

func TestDecrease(t *testing.T) {
	repo, ctx := newTestRepo(t)
	pid := testutil.InsertProduct(t, ctx, repo.DB, "hoodie", 35000, 3000, 10)

	lv, err := repo.Decrease(ctx, pid, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, lv.Quantity)
	assert.False(t, lv.SoldOut)
}

func TestDecreaseInsufficientStock(t *testing.T) {
	repo, ctx := newTestRepo(t)
	pid := testutil.InsertProduct(t, ctx, repo.DB, "hoodie", 35000, 3000, 2)

	_, err := repo.Decrease(ctx, pid, 5)
	require.True(t, shop.IsKind(err, shop.KindInsufficientStock))
	de, _ := shop.AsDomain(err)
	assert.Equal(t, 2, de.Available)
	assert.Equal(t, 5, de.Requested)

	qty, _ := testutil.ProductQuantity(t, ctx, repo.DB, pid)
	assert.Equal(t, 2, qty)
}

func TestDecreaseToZeroFlipsSoldOut(t *testing.T) {
	repo, ctx := newTestRepo(t)
	pid := testutil.InsertProduct(t, ctx, repo.DB, "limited", 99000, 0, 2)

	lv, err := repo.Decrease(ctx, pid, 2)
	require.NoError(t, err)
	assert.True(t, lv.SoldOut)

	_, status := testutil.ProductQuantity(t, ctx, repo.DB, pid)
	assert.Equal(t, string(shop.ProductSoldOut), status)
}

func TestRestoreReopensProduct(t *testing.T) {
	repo, ctx := newTestRepo(t)
	pid := testutil.InsertProduct(t, ctx, repo.DB, "limited", 99000, 0, 0)

	lv, err := repo.Restore(ctx, pid, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, lv.Quantity)
	assert.False(t, lv.SoldOut)

	_, status := testutil.ProductQuantity(t, ctx, repo.DB, pid)
	assert.Equal(t, string(shop.ProductAvailable), status)
}

func TestDecreaseRejectsNonPositiveQty(t *testing.T) {
	repo, ctx := newTestRepo(t)
	pid := testutil.InsertProduct(t, ctx, repo.DB, "hoodie", 35000, 3000, 5)

	for _, qty := range []int{0, -1} {
		_, err := repo.Decrease(ctx, pid, qty)
		assert.True(t, shop.IsKind(err, shop.KindInvalidQuantity))
	}
}

func TestDecreaseUnknownProduct(t *testing.T) {
	repo, ctx := newTestRepo(t)
	_, err := repo.Decrease(ctx, "missing", 1)
	assert.True(t, shop.IsKind(err, shop.KindProductNotFound))
}

func TestBatchDecreaseRollsBackOnFailure(t *testing.T) {
	repo, ctx := newTestRepo(t)
	ok := testutil.InsertProduct(t, ctx, repo.DB, "in stock", 10000, 0, 10)
	scarce := testutil.InsertProduct(t, ctx, repo.DB, "scarce", 10000, 0, 1)

	err := repo.BatchDecrease(ctx, []shop.ItemQty{
		{ProductID: ok, Qty: 5},
		{ProductID: scarce, Qty: 3},
	})
	require.True(t, shop.IsKind(err, shop.KindInsufficientStock))

	// the first line's decrement did not survive
	qty, _ := testutil.ProductQuantity(t, ctx, repo.DB, ok)
	assert.Equal(t, 10, qty)
}

func TestConcurrentDecreaseNeverOversells(t *testing.T) {
	repo, ctx := newTestRepo(t)
	pid := testutil.InsertProduct(t, ctx, repo.DB, "drop item", 50000, 0, 1)

	const buyers = 10
	var wg sync.WaitGroup
	results := make(chan error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Decrease(ctx, pid, 1)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, losses int
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		require.True(t, shop.IsKind(err, shop.KindInsufficientStock))
		losses++
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, buyers-1, losses)

	qty, status := testutil.ProductQuantity(t, ctx, repo.DB, pid)
	assert.Equal(t, 0, qty)
	assert.Equal(t, string(shop.ProductSoldOut), status)
}
