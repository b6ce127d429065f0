package store

import (
	"sync"
	"testing"
	"time"

	"github.com/plantitas/plantitas/pkg/shopapi"
	"github.com/plantitas/plantitas/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	loc, err := time.LoadLocation("America/Santiago")
	require.NoError(t, err)
	s := New(loc)
	require.NoError(t, s.Seed())
	return s
}

func newOrder(items ...shopapi.OrderItemInput) shopapi.OrderCreate {
	return shopapi.OrderCreate{
		Customer:      shopapi.Customer{FullName: "Francisca Soto", Phone: "+56911112222"},
		Delivery:      shopapi.Delivery{Mode: shopapi.DeliveryRetiro, Address: types.NullableStringFrom("ignored")},
		PaymentMethod: shopapi.PaymentDebito,
		Items:         items,
	}
}

func TestCategories(t *testing.T) {
	s := seeded(t)
	cats := s.ListCategories()
	require.Len(t, cats, 4)
	assert.Equal(t, "Accesorios", cats[0].Name)

	_, err := s.CreateCategory("ramos")
	var ferr *FieldError
	require.ErrorAs(t, err, &ferr)
	assert.Contains(t, ferr.Fields, "name")

	c, err := s.CreateCategory("Macetas")
	require.NoError(t, err)
	renamed, err := s.RenameCategory(c.ID, "Maceteros")
	require.NoError(t, err)
	assert.Equal(t, "Maceteros", renamed.Name)
	require.NoError(t, s.DeleteCategory(c.ID))
	assert.ErrorIs(t, s.DeleteCategory(c.ID), ErrNotFound)

	// Ramos still has products
	assert.ErrorIs(t, s.DeleteCategory(1), ErrCategoryInUse)

	_, err = s.RenameCategory(1, "Bouquets")
	require.NoError(t, err)
	p, err := s.GetProduct("P001")
	require.NoError(t, err)
	assert.Equal(t, "Bouquets", p.CategoryName())
}

func TestProducts(t *testing.T) {
	s := seeded(t)

	assert.Len(t, s.ListProducts(""), 8)
	found := s.ListProducts("ramo")
	require.Len(t, found, 2)
	assert.Equal(t, "Ramo Deluxe", found[0].Name)
	assert.Len(t, s.ListProducts("pl-cact"), 1)

	p, err := s.CreateProduct(shopapi.ProductInput{SKU: "PL-MON-01", Name: "Monstera", Price: 15990, Stock: 4, CategoryID: 2}, "")
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9a-f]{12}$`, p.ID)
	assert.Equal(t, "Plantas", p.CategoryName())

	_, err = s.CreateProduct(shopapi.ProductInput{SKU: "PL-MON-01", Name: "Otra", CategoryID: 2}, "")
	assert.Error(t, err)
	_, err = s.CreateProduct(shopapi.ProductInput{SKU: "X", Name: "Otra", CategoryID: 99}, "")
	assert.Error(t, err)

	price := int64(16990)
	updated, err := s.UpdateProduct(p.ID, shopapi.ProductPatch{Price: &price}, "/media/products/m.png")
	require.NoError(t, err)
	assert.Equal(t, int64(16990), updated.Price)
	assert.Equal(t, "/media/products/m.png", updated.Image)
	assert.Equal(t, 4, updated.Stock)

	require.NoError(t, s.DeleteProduct(p.ID))
	_, err = s.GetProduct(p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateOrder(t *testing.T) {
	s := seeded(t)
	s.SetClock(func() time.Time { return time.Date(2025, 3, 2, 2, 30, 0, 0, time.UTC) })

	o, err := s.CreateOrder(newOrder(
		shopapi.OrderItemInput{ProductID: "P001", Quantity: 2},
		shopapi.OrderItemInput{ProductID: "P008", Quantity: 1},
	))
	require.NoError(t, err)
	// 02:30 UTC is still March 1st in Santiago
	assert.Equal(t, "PDLF-20250301-0001", o.Code)
	assert.Equal(t, int64(2*13990+990), o.Total)
	assert.Equal(t, shopapi.OrderPaid, o.Status)
	assert.True(t, o.Address.IsNil())
	require.Len(t, o.Items, 2)
	assert.Equal(t, int64(27980), o.Items[0].LineTotal)

	p, _ := s.GetProduct("P001")
	assert.Equal(t, 5, p.Stock)

	// insufficient stock leaves everything untouched
	_, err = s.CreateOrder(newOrder(
		shopapi.OrderItemInput{ProductID: "P008", Quantity: 1},
		shopapi.OrderItemInput{ProductID: "P002", Quantity: 4},
	))
	var ferr *FieldError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "Insufficient stock for Ramo Deluxe. Available: 3.", ferr.Fields["items"][0])
	p, _ = s.GetProduct("P008")
	assert.Equal(t, 99, p.Stock)

	// repeated lines are checked together
	_, err = s.CreateOrder(newOrder(
		shopapi.OrderItemInput{ProductID: "P002", Quantity: 2},
		shopapi.OrderItemInput{ProductID: "P002", Quantity: 2},
	))
	assert.Error(t, err)

	_, err = s.CreateOrder(newOrder(shopapi.OrderItemInput{ProductID: "nope", Quantity: 1}))
	assert.Error(t, err)

	// sold products cannot be deleted and keep their snapshot
	assert.ErrorIs(t, s.DeleteProduct("P001"), ErrProductHasSales)
	require.NoError(t, s.DeleteProduct("P007"))

	got, err := s.GetOrder(o.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ramo Primavera", got.Items[0].Product)
	_, err = s.GetOrder(42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOrdersNewestFirst(t *testing.T) {
	s := seeded(t)
	for i := 0; i < 3; i++ {
		_, err := s.CreateOrder(newOrder(shopapi.OrderItemInput{ProductID: "P003", Quantity: 1}))
		require.NoError(t, err)
	}
	orders := s.ListOrders()
	require.Len(t, orders, 3)
	assert.Equal(t, 3, orders[0].ID)
	assert.Equal(t, 1, orders[2].ID)
}

func TestConcurrentOrdersNeverOversell(t *testing.T) {
	s := seeded(t)
	// P002 has 3 units
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.CreateOrder(newOrder(shopapi.OrderItemInput{ProductID: "P002", Quantity: 1})); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 3, ok)
	p, _ := s.GetProduct("P002")
	assert.Equal(t, 0, p.Stock)
}
