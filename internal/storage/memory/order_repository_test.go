package memory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func orderIDs(orders []*domain.Order) []int64 {
	ids := make([]int64, 0, len(orders))
	for _, order := range orders {
		ids = append(ids, order.ID)
	}
	return ids
}

func TestOrderRepository_AddGet(t *testing.T) {
	repo := memory.NewOrderRepository()
	order := domain.NewOrder(1, &domain.Customer{ID: 1, Name: "Ivan Ivanov"}, time.Now().UTC())
	require.NoError(t, repo.Add(order))

	stored, err := repo.Get(1)
	require.NoError(t, err)
	assert.Same(t, order, stored)

	assert.ErrorIs(t, repo.Add(order), domain.ErrOrderExists)
	_, err = repo.Get(42)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestOrderRepository_ListByCustomer_NewestFirst(t *testing.T) {
	repo := memory.NewOrderRepository()
	ivan := &domain.Customer{ID: 1}
	maria := &domain.Customer{ID: 2}
	base := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)

	for _, order := range []*domain.Order{
		domain.NewOrder(3, ivan, base.Add(2*time.Minute)),
		domain.NewOrder(1, ivan, base),
		domain.NewOrder(2, maria, base.Add(time.Minute)),
		domain.NewOrder(4, ivan, base.Add(2*time.Minute)),
	} {
		require.NoError(t, repo.Add(order))
	}

	assert.Equal(t, []int64{4, 3, 1}, orderIDs(repo.ListByCustomer(ivan.ID)))
	assert.Equal(t, []int64{2}, orderIDs(repo.ListByCustomer(maria.ID)))
	assert.NotNil(t, repo.ListByCustomer(99))
	assert.Empty(t, repo.ListByCustomer(99))
	assert.Equal(t, []int64{1, 2, 3, 4}, orderIDs(repo.List()))
}
